package interop

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		enc     Encoding
		want    string
		wantErr error
	}{
		{
			name:  "utf-8",
			input: []byte("App.Animal"),
			enc:   UTF8,
			want:  "App.Animal",
		},
		{
			name:  "utf-8 with terminator",
			input: []byte("System.String\x00\x00"),
			enc:   UTF8,
			want:  "System.String",
		},
		{
			name:  "utf-16le",
			input: []byte{'A', 0, 'p', 0, 'p', 0},
			enc:   UTF16LE,
			want:  "App",
		},
		{
			name:  "utf-16le with terminator",
			input: []byte{'D', 0, 'o', 0, 'g', 0, 0, 0},
			enc:   UTF16LE,
			want:  "Dog",
		},
		{
			name:  "utf-16le non-ascii",
			input: []byte{0xe9, 0x00, 't', 0},
			enc:   UTF16LE,
			want:  "ét",
		},
		{
			name:    "odd utf-16 length",
			input:   []byte{'A', 0, 'p'},
			enc:     UTF16LE,
			wantErr: ErrInvalidText,
		},
		{
			name:    "invalid utf-8",
			input:   []byte{0xff, 0xfe, 'x'},
			enc:     UTF8,
			wantErr: ErrInvalidText,
		},
		{
			name:    "unknown encoding",
			input:   []byte("x"),
			enc:     Encoding(9),
			wantErr: ErrUnknownEncoding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input, tt.enc)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeDoesNotAliasInput(t *testing.T) {
	buf := []byte("App.Dog")
	s, err := Decode(buf, UTF8)
	require.NoError(t, err)

	buf[0] = 'X'
	assert.Equal(t, "App.Dog", s)
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{UTF8, UTF16LE} {
		t.Run(enc.String(), func(t *testing.T) {
			b, err := Encode("System.Collections.Generic.List`1", enc)
			require.NoError(t, err)

			s, err := Decode(b, enc)
			require.NoError(t, err)
			assert.Equal(t, "System.Collections.Generic.List`1", s)
		})
	}
}

func TestClone(t *testing.T) {
	s, err := Clone("App.Animal", 0)
	require.NoError(t, err)
	assert.Equal(t, "App.Animal", s)

	_, err = Clone(strings.Repeat("a", 17), 16)
	assert.ErrorIs(t, err, ErrTextTooLong)

	_, err = Clone(string([]byte{0xc3, 0x28}), 16)
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("UTF-16LE")
	require.NoError(t, err)
	assert.Equal(t, UTF16LE, enc)

	enc, err = ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, UTF8, enc)

	_, err = ParseEncoding("latin1")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestTextJSON(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		var txt Text
		require.NoError(t, json.Unmarshal([]byte(`"App.Animal"`), &txt))
		assert.Equal(t, "App.Animal", txt.String())
		assert.Equal(t, UTF8, txt.Encoding)
	})

	t.Run("encoded buffer", func(t *testing.T) {
		var txt Text
		require.NoError(t, json.Unmarshal([]byte(`{"encoding":"utf-16le","data":"QQBwAHAALgBBAG4AaQBtAGEAbAA="}`), &txt))
		assert.Equal(t, "App.Animal", txt.String())
		assert.Equal(t, UTF16LE, txt.Encoding)
	})

	t.Run("wide round trip", func(t *testing.T) {
		data, err := json.Marshal(NewText("System.String", UTF16LE))
		require.NoError(t, err)
		assert.JSONEq(t, `{"encoding":"utf-16le","data":"UwB5AHMAdABlAG0ALgBTAHQAcgBpAG4AZwA="}`, string(data))

		var txt Text
		require.NoError(t, json.Unmarshal(data, &txt))
		assert.Equal(t, "System.String", txt.Value)
	})

	t.Run("narrow marshals as string", func(t *testing.T) {
		data, err := json.Marshal(NewText("App.Dog", UTF8))
		require.NoError(t, err)
		assert.Equal(t, `"App.Dog"`, string(data))
	})

	t.Run("bad encoding name", func(t *testing.T) {
		var txt Text
		err := json.Unmarshal([]byte(`{"encoding":"ebcdic","data":""}`), &txt)
		assert.ErrorIs(t, err, ErrUnknownEncoding)
	})
}
