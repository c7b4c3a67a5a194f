package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Kirdow/Coral/pkg/coral"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Subject      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message with optional suggestions and help commands
//
//	❌ UNRESOLVED TYPE: App.Dgo
//	   The host has no metadata for 'App.Dgo'.
//
//	   Did you mean: App.Dog?
//
//	   → List catalog types: coral-host types
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	symbol, attr := "❌", color.FgRed
	if opts.Level == ErrorLevelWarning {
		symbol, attr = "⚠️", color.FgYellow
	}
	head := paint(opts.NoColor, attr, color.Bold)
	body := paint(opts.NoColor, attr)

	if opts.Context != "" {
		title := strings.ToUpper(opts.Context)
		if opts.Subject != "" {
			title += ": " + opts.Subject
		}
		head.Fprintf(&b, "%s %s\n", symbol, title)
		if opts.Problem != "" {
			body.Fprintf(&b, "   %s\n", opts.Problem)
		}
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		body.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		paint(opts.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := paint(opts.NoColor, color.FgCyan)
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	return paint(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// HostError describes a failed coral operation. Suggestions are only shown for
// unresolved types.
func HostError(err error, suggestions []string, noColor bool) ErrorOptions {
	opts := ErrorOptions{Level: ErrorLevelError, Problem: err.Error(), NoColor: noColor}

	var te *coral.TypeError
	typeName := ""
	if errors.As(err, &te) {
		typeName = te.Type
	}

	switch {
	case coral.IsUnresolvedType(err):
		opts.Context = "unresolved type"
		if typeName != "" {
			opts.Subject = typeName
			opts.Problem = fmt.Sprintf("The host has no metadata for '%s'.", typeName)
		}
		opts.Suggestions = suggestions
		opts.HelpCommands = []string{
			"List catalog types: coral-host types",
			"Use a fully qualified name such as App.Dog",
		}
	case coral.IsHostUnavailable(err):
		opts.Context = "host unavailable"
		opts.Consequence = "Descriptors from this connection can no longer be used."
		opts.HelpCommands = []string{
			"Start a host: coral-host serve",
			"Check host.transport and host.address in coral.yml",
		}
	default:
		opts.Context = "error"
	}
	return opts
}

// ConfigError describes a configuration that failed to load
func ConfigError(err error, noColor bool) ErrorOptions {
	return ErrorOptions{
		Level:   ErrorLevelError,
		Context: "configuration error",
		Problem: err.Error(),
		HelpCommands: []string{
			"View config: cat coral.yml",
			"Get help: coral-host --help",
		},
		NoColor: noColor,
	}
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}
