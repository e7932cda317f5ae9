// Package errors provides structured diagnostics for the metamodel builder.
// It defines diagnostic codes, categories, and formatting for both
// human-readable terminal output and machine-parseable JSON.
package errors

import (
	"encoding/json"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
)

// ErrorCode represents a unique diagnostic code
type ErrorCode string

// ErrorCategory represents the category of a diagnostic
type ErrorCategory string

const (
	// CategoryConfiguration represents fatal ruleset/input errors (CFG100-199)
	CategoryConfiguration ErrorCategory = "configuration"
	// CategoryResolution represents per-item resolution failures (RES200-299)
	CategoryResolution ErrorCategory = "resolution"
	// CategoryConsistency represents non-fatal ruleset consistency warnings (CON300-399)
	CategoryConsistency ErrorCategory = "consistency"
)

// ErrorSeverity indicates the severity level of a diagnostic
type ErrorSeverity string

const (
	// SeverityError indicates an error that aborts the build
	SeverityError ErrorSeverity = "error"
	// SeverityWarning indicates an item was dropped or a rule looks wrong
	SeverityWarning ErrorSeverity = "warning"
	// SeverityInfo indicates informational messages
	SeverityInfo ErrorSeverity = "info"
)

// Diagnostic represents a structured builder diagnostic
type Diagnostic struct {
	// Code is the unique diagnostic code (e.g., "CFG100", "RES200")
	Code ErrorCode `json:"code"`
	// Type is a machine-readable diagnostic type identifier
	Type string `json:"type"`
	// Category is the diagnostic category
	Category ErrorCategory `json:"category"`
	// Severity is the severity level
	Severity ErrorSeverity `json:"severity"`
	// Message is the primary message
	Message string `json:"message"`
	// Item is the qualified name or signature the diagnostic is about (optional)
	Item string `json:"item,omitempty"`
	// Location is the declaration or ruleset location
	Location codemodel.SourceLocation `json:"location"`
	// Expected describes what was expected (optional)
	Expected string `json:"expected,omitempty"`
	// Actual describes what was actually found (optional)
	Actual string `json:"actual,omitempty"`
	// Suggestion provides a hint for fixing the problem (optional)
	Suggestion string `json:"suggestion,omitempty"`

	cause error
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	return d.Format()
}

// Unwrap returns the underlying error, if any
func (d *Diagnostic) Unwrap() error {
	return d.cause
}

// Format returns a human-readable message for terminal output
func (d *Diagnostic) Format() string {
	return FormatDiagnostic(d)
}

// ToJSON returns the diagnostic as a JSON string
func (d *Diagnostic) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WithItem sets the item the diagnostic refers to
func (d *Diagnostic) WithItem(item string) *Diagnostic {
	d.Item = item
	return d
}

// WithLocation sets the source location
func (d *Diagnostic) WithLocation(loc codemodel.SourceLocation) *Diagnostic {
	d.Location = loc
	return d
}

// WithFile sets the file of the source location
func (d *Diagnostic) WithFile(file string) *Diagnostic {
	d.Location.File = file
	return d
}

// WithExpected sets the expected value
func (d *Diagnostic) WithExpected(expected string) *Diagnostic {
	d.Expected = expected
	return d
}

// WithActual sets the actual value
func (d *Diagnostic) WithActual(actual string) *Diagnostic {
	d.Actual = actual
	return d
}

// WithSuggestion sets a suggestion for fixing the problem
func (d *Diagnostic) WithSuggestion(suggestion string) *Diagnostic {
	d.Suggestion = suggestion
	return d
}

// WithCause records the underlying error
func (d *Diagnostic) WithCause(err error) *Diagnostic {
	d.cause = err
	return d
}

// IsFatal reports whether the diagnostic must abort the build
func (d *Diagnostic) IsFatal() bool {
	return d.Category == CategoryConfiguration && d.Severity == SeverityError
}

// DiagnosticList is a collection of diagnostics
type DiagnosticList []*Diagnostic

// Error implements the error interface
func (dl DiagnosticList) Error() string {
	if len(dl) == 0 {
		return "no errors"
	}
	return FormatDiagnosticList(dl)
}

// HasErrors returns true if the list contains any errors (excludes warnings/info)
func (dl DiagnosticList) HasErrors() bool {
	for _, d := range dl {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings returns true if the list contains any warnings
func (dl DiagnosticList) HasWarnings() bool {
	for _, d := range dl {
		if d.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// ByCode returns the diagnostics carrying the given code
func (dl DiagnosticList) ByCode(code ErrorCode) DiagnosticList {
	var out DiagnosticList
	for _, d := range dl {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// ToJSON returns all diagnostics as a JSON array
func (dl DiagnosticList) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(dl, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Count returns the number of diagnostics by severity
func (dl DiagnosticList) Count() (errors, warnings, info int) {
	for _, d := range dl {
		switch d.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		case SeverityInfo:
			info++
		}
	}
	return
}

func newDiagnostic(
	code ErrorCode,
	typ string,
	category ErrorCategory,
	severity ErrorSeverity,
	message string,
) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Type:     typ,
		Category: category,
		Severity: severity,
		Message:  message,
	}
}
