package builder

import (
	"fmt"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
)

// Reason tells why a declaration was left out of the metamodel.
type Reason int

const (
	// NotInTypeSystem means no ruleset entry names the declaration
	NotInTypeSystem Reason = iota
	// GenerationDisabled means the entry has generate="no" or was dropped
	GenerationDisabled
	// RedefinedToNotClass means the ruleset registers the name as another kind
	RedefinedToNotClass
	// APIIncompatible means the entry does not exist in the active API version
	APIIncompatible
	// RejectedByRule means a rejection rule matched
	RejectedByRule
	// UnmatchedArgumentType means an argument type did not resolve
	UnmatchedArgumentType
	// UnmatchedReturnType means the return type did not resolve
	UnmatchedReturnType
	// UnmatchedFieldType means a field type did not resolve
	UnmatchedFieldType
	// UnmatchedOperator means a free operator has no class to attach to
	UnmatchedOperator
)

var reasonNames = map[Reason]string{
	NotInTypeSystem:       "not-in-type-system",
	GenerationDisabled:    "generation-disabled",
	RedefinedToNotClass:   "redefined-to-not-class",
	APIIncompatible:       "api-incompatible",
	RejectedByRule:        "rejected-by-rule",
	UnmatchedArgumentType: "unmatched-argument-type",
	UnmatchedReturnType:   "unmatched-return-type",
	UnmatchedFieldType:    "unmatched-field-type",
	UnmatchedOperator:     "unmatched-operator",
}

var reasonCodes = map[Reason]errors.ErrorCode{
	NotInTypeSystem:       errors.ErrNotInTypeSystem,
	GenerationDisabled:    errors.ErrGenerationDisabled,
	RedefinedToNotClass:   errors.ErrRedefinedToNotClass,
	APIIncompatible:       errors.ErrAPIVersionExcluded,
	RejectedByRule:        errors.ErrRejectedByRule,
	UnmatchedArgumentType: errors.ErrUnmatchedArgumentType,
	UnmatchedReturnType:   errors.ErrUnmatchedReturnType,
	UnmatchedFieldType:    errors.ErrUnmatchedFieldType,
	UnmatchedOperator:     errors.ErrUnmatchedOperator,
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// ReasonNames returns the name of every reason, in declaration order.
func ReasonNames() []string {
	names := make([]string, 0, len(reasonNames))
	for r := NotInTypeSystem; r <= UnmatchedOperator; r++ {
		names = append(names, r.String())
	}
	return names
}

// Code returns the diagnostic code reported for the reason.
func (r Reason) Code() errors.ErrorCode {
	return reasonCodes[r]
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ItemKind is the kind of declaration a rejection is about.
type ItemKind int

const (
	ClassItem ItemKind = iota
	EnumItem
	FunctionItem
	FieldItem
)

func (k ItemKind) String() string {
	switch k {
	case EnumItem:
		return "enum"
	case FunctionItem:
		return "function"
	case FieldItem:
		return "field"
	}
	return "class"
}

// MarshalText encodes the kind by name.
func (k ItemKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Rejection records one declaration left out of the metamodel.
type Rejection struct {
	// Item is the qualified name, or "Class::signature" for functions.
	Item   string
	Kind   ItemKind
	Reason Reason
	Detail string
	Loc    codemodel.SourceLocation
}

// Diagnostic converts the rejection into a resolution warning.
func (r Rejection) Diagnostic() *errors.Diagnostic {
	msg := fmt.Sprintf("%s '%s' rejected: %s", r.Kind, r.Item, r.Reason)
	if r.Detail != "" {
		msg += " (" + r.Detail + ")"
	}
	return errors.NewRejection(r.Reason.Code(), r.Item, msg, r.Loc)
}

// Status is the state of a declaration during a build. Every declaration
// starts Pending and ends either Resolved or Rejected.
type Status int

const (
	Pending Status = iota
	Resolved
	Rejected
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	}
	return "pending"
}

type itemKey struct {
	kind ItemKind
	item string
}
