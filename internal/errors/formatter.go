package errors

import (
	"fmt"
	"strings"
)

// FormatDiagnostic returns a human-readable message for terminal output
func FormatDiagnostic(d *Diagnostic) string {
	var b strings.Builder

	icon := severityIcon(d.Severity)
	fmt.Fprintf(&b, "%s %s [%s] at %s\n", icon, categoryDisplayName(d.Category), d.Code, d.Location)

	if d.Item != "" {
		fmt.Fprintf(&b, "  %s: %s\n", d.Item, d.Message)
	} else {
		fmt.Fprintf(&b, "  %s\n", d.Message)
	}

	if d.Expected != "" || d.Actual != "" {
		b.WriteString("\n")
		if d.Expected != "" {
			fmt.Fprintf(&b, "  Expected: %s\n", d.Expected)
		}
		if d.Actual != "" {
			fmt.Fprintf(&b, "  Actual:   %s\n", d.Actual)
		}
	}

	if d.Suggestion != "" {
		fmt.Fprintf(&b, "\n💡 %s\n", d.Suggestion)
	}

	if d.cause != nil {
		fmt.Fprintf(&b, "  Caused by: %v\n", d.cause)
	}

	return b.String()
}

// FormatDiagnosticList returns a formatted string of all diagnostics
func FormatDiagnosticList(list DiagnosticList) string {
	if len(list) == 0 {
		return "no errors"
	}

	var b strings.Builder

	errCount, warnCount, infoCount := list.Count()
	fmt.Fprintf(&b, "Build finished with %d error(s), %d warning(s), %d info\n\n",
		errCount, warnCount, infoCount)

	for i, d := range list {
		if i > 0 {
			b.WriteString("\n" + strings.Repeat("-", 80) + "\n\n")
		}
		b.WriteString(d.Format())
	}

	return b.String()
}

// FormatCompact returns a compact one-line format
func FormatCompact(d *Diagnostic) string {
	file := d.Location.File
	if file == "" {
		file = "<input>"
	}
	msg := d.Message
	if d.Item != "" {
		msg = d.Item + ": " + msg
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s [%s]",
		file, d.Location.Line, d.Location.Column,
		d.Severity, msg, d.Code)
}

func severityIcon(severity ErrorSeverity) string {
	switch severity {
	case SeverityError:
		return "❌"
	case SeverityWarning:
		return "⚠️ "
	case SeverityInfo:
		return "ℹ️ "
	default:
		return "❓"
	}
}

func categoryDisplayName(category ErrorCategory) string {
	switch category {
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryResolution:
		return "Resolution Failure"
	case CategoryConsistency:
		return "Consistency Warning"
	default:
		return "Builder Diagnostic"
	}
}
