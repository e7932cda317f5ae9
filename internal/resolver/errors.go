package resolver

import (
	"fmt"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
)

// Reason classifies a resolution failure.
type Reason int

const (
	// NotFound means the base name matched no entry in any enclosing scope
	NotFound Reason = iota
	// UnresolvableTemplateArgument means an instantiation argument failed
	UnresolvableTemplateArgument
	// UnresolvableArraySize means a dimension is neither a literal nor a
	// known enum value
	UnresolvableArraySize
	// APIVersionExcluded means the nearest entry exists for other versions only
	APIVersionExcluded
)

func (r Reason) String() string {
	switch r {
	case UnresolvableTemplateArgument:
		return "unresolvable-template-argument"
	case UnresolvableArraySize:
		return "unresolvable-array-size"
	case APIVersionExcluded:
		return "api-version-excluded"
	}
	return "not-found"
}

// ResolutionError is returned by Resolve. Subject names the part that failed:
// the missing name, the template argument or the array dimension.
type ResolutionError struct {
	Reason   Reason
	Spelling string
	Subject  string
	Detail   string
	Version  string

	cause error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve '%s': %s", e.Spelling, e.Reason)
	if e.Subject != "" && e.Subject != e.Spelling {
		msg += fmt.Sprintf(" '%s'", e.Subject)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.cause
}

// Diagnostic converts the failure to a coded resolution diagnostic.
func (e *ResolutionError) Diagnostic(loc codemodel.SourceLocation) *errors.Diagnostic {
	var d *errors.Diagnostic
	switch e.Reason {
	case UnresolvableTemplateArgument:
		d = errors.NewUnresolvableTemplateArgument(loc, e.Spelling, e.Subject)
	case UnresolvableArraySize:
		d = errors.NewUnresolvableArraySize(loc, e.Spelling, e.Subject)
	case APIVersionExcluded:
		d = errors.NewAPIVersionExcluded(loc, e.Subject, e.Version)
	default:
		d = errors.NewTypeNotFound(loc, e.Spelling)
	}
	if e.cause != nil {
		d = d.WithCause(e.cause)
	}
	return d
}

func notFound(spelling, subject, detail string) *ResolutionError {
	return &ResolutionError{Reason: NotFound, Spelling: spelling, Subject: subject, Detail: detail}
}
