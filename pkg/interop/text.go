package interop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Encoding identifies how a host buffer encodes its characters
type Encoding int

const (
	// UTF8 is a narrow, UTF-8 encoded buffer
	UTF8 Encoding = iota
	// UTF16LE is a wide, little-endian UTF-16 buffer
	UTF16LE
)

// DefaultMaxLength bounds decoded text when no explicit limit is configured
const DefaultMaxLength = 64 * 1024

var (
	// ErrInvalidText is returned when a buffer is not valid in its encoding
	ErrInvalidText = errors.New("invalid host text")

	// ErrTextTooLong is returned when decoded text exceeds the length limit
	ErrTextTooLong = errors.New("host text exceeds length limit")

	// ErrUnknownEncoding is returned for encoding names this package does not support
	ErrUnknownEncoding = errors.New("unknown text encoding")
)

// String returns the wire name of the encoding
func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16LE:
		return "utf-16le"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding parses a wire or configuration encoding name
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "utf-16le", "utf16le", "utf-16", "wide":
		return UTF16LE, nil
	default:
		return UTF8, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// Decode converts a host buffer into an owned string. Trailing NUL
// terminators are dropped.
func Decode(b []byte, enc Encoding) (string, error) {
	switch enc {
	case UTF8:
		b = bytes.TrimRight(b, "\x00")
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w: not valid utf-8", ErrInvalidText)
		}
		return string(b), nil
	case UTF16LE:
		if len(b)%2 != 0 {
			return "", fmt.Errorf("%w: odd utf-16 length %d", ErrInvalidText, len(b))
		}
		for len(b) >= 2 && b[len(b)-1] == 0 && b[len(b)-2] == 0 {
			b = b[:len(b)-2]
		}
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidText, err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownEncoding, enc)
	}
}

// Encode converts s into a host buffer without a terminator
func Encode(s string, enc Encoding) ([]byte, error) {
	switch enc {
	case UTF8:
		return []byte(s), nil
	case UTF16LE:
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidText, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, enc)
	}
}

// Clone returns an owned copy of s after checking it is valid UTF-8 and at
// most limit bytes long. A limit <= 0 means DefaultMaxLength.
func Clone(s string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxLength
	}
	if len(s) > limit {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrTextTooLong, len(s), limit)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid utf-8", ErrInvalidText)
	}
	return strings.Clone(s), nil
}

// Text is host text as it travels over the wire
type Text struct {
	Value    string
	Encoding Encoding
}

// NewText wraps s for transmission using enc
func NewText(s string, enc Encoding) Text {
	return Text{Value: s, Encoding: enc}
}

// String returns the decoded text
func (t Text) String() string {
	return t.Value
}

type encodedText struct {
	Encoding string `json:"encoding"`
	Data     []byte `json:"data"`
}

// MarshalJSON emits a plain string for UTF-8 text and an encoded buffer
// otherwise
func (t Text) MarshalJSON() ([]byte, error) {
	if t.Encoding == UTF8 {
		return json.Marshal(t.Value)
	}
	data, err := Encode(t.Value, t.Encoding)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encodedText{Encoding: t.Encoding.String(), Data: data})
}

// UnmarshalJSON accepts either wire form
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text: %w", err)
		}
		t.Value, t.Encoding = s, UTF8
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*t = Text{}
		return nil
	}

	var raw encodedText
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode text: %w", err)
	}
	enc, err := ParseEncoding(raw.Encoding)
	if err != nil {
		return err
	}
	s, err := Decode(raw.Data, enc)
	if err != nil {
		return err
	}
	t.Value, t.Encoding = s, enc
	return nil
}
