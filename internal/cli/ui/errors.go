package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/apiextractor/internal/errors"
)

// MessageLevel represents the severity of a message
type MessageLevel int

const (
	LevelError MessageLevel = iota
	LevelWarning
	LevelInfo
)

// MessageOptions configures message formatting
type MessageOptions struct {
	Level        MessageLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatMessage renders a message card:
//
//	x CLASS NOT FOUND: Widgte
//	   No class 'Widgte' in the metamodel.
//
//	   Did you mean: Widget, QWidget?
//
//	   -> List rejections: apiextractor rejections
func FormatMessage(opts MessageOptions) string {
	var b strings.Builder

	headerColor, bodyColor, symbol := levelStyle(opts.Level)
	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
		bodyColor.Fprintf(&b, "   %s\n", opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   -> %s\n", cmd)
		}
	}

	return b.String()
}

func levelStyle(level MessageLevel) (header, body *color.Color, symbol string) {
	switch level {
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "!"
	case LevelInfo:
		return color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "i"
	}
	return color.New(color.FgRed, color.Bold), color.New(color.FgRed), "x"
}

// WriteMessage writes a formatted message to the writer
func WriteMessage(w io.Writer, opts MessageOptions) {
	fmt.Fprint(w, FormatMessage(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ItemNotFound reports a class, function or enum name missing from a build.
func ItemNotFound(item string, suggestions []string, noColor bool) string {
	return FormatMessage(MessageOptions{
		Level:       LevelError,
		Context:     "ITEM NOT FOUND",
		Problem:     fmt.Sprintf("No declaration '%s' in the build.", item),
		Suggestions: suggestions,
		HelpCommands: []string{
			"List all rejections: apiextractor rejections",
			"Get help: apiextractor rejections --help",
		},
		NoColor: noColor,
	})
}

// BuildFailed reports a fatal build error. Diagnostics carry their own
// location and suggestion.
func BuildFailed(err error, noColor bool) string {
	opts := MessageOptions{
		Level:   LevelError,
		Context: "BUILD FAILED",
		Problem: err.Error(),
		HelpCommands: []string{
			"Get help: apiextractor build --help",
		},
		NoColor: noColor,
	}
	var d *errors.Diagnostic
	if stderrors.As(err, &d) {
		opts.Problem = fmt.Sprintf("[%s] %s", d.Code, d.Message)
		if d.Location.File != "" {
			opts.Consequence = "at " + d.Location.String()
		}
		if d.Suggestion != "" {
			opts.Suggestions = []string{d.Suggestion}
		}
	}
	return FormatMessage(opts)
}

// ConfigError reports an unusable configuration.
func ConfigError(message string, suggestions []string, noColor bool) string {
	return FormatMessage(MessageOptions{
		Level:       LevelError,
		Context:     "CONFIGURATION ERROR",
		Problem:     message,
		Suggestions: suggestions,
		HelpCommands: []string{
			"View config: cat apiextractor.yaml",
			"Get help: apiextractor --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatMessage(MessageOptions{
		Level:   LevelWarning,
		Problem: message,
		NoColor: noColor,
	})
}

// DiagnosticLine renders a diagnostic on one line, colored by severity.
func DiagnosticLine(d *errors.Diagnostic, noColor bool) string {
	var c *color.Color
	switch d.Severity {
	case errors.SeverityError:
		c = color.New(color.FgRed)
	case errors.SeverityWarning:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgCyan)
	}
	if noColor {
		c.DisableColor()
	}
	return c.Sprint(errors.FormatCompact(d))
}
