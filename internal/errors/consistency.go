package errors

import (
	"fmt"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
)

// Consistency warning codes (CON300-399)
const (
	// WarnUnmatchedModification indicates a modify-function matched nothing
	WarnUnmatchedModification ErrorCode = "CON300"
	// WarnUnmatchedArgumentModification indicates a modify-argument index is out of range
	WarnUnmatchedArgumentModification ErrorCode = "CON301"
	// WarnUnmatchedFieldModification indicates a modify-field matched nothing
	WarnUnmatchedFieldModification ErrorCode = "CON302"
	// WarnUnevaluatedEnumValue indicates an enumerator initializer could not be evaluated
	WarnUnevaluatedEnumValue ErrorCode = "CON303"
	// WarnUnknownRejectedEnumValue indicates reject-enum-value named no enumerator
	WarnUnknownRejectedEnumValue ErrorCode = "CON304"
	// WarnUnmatchedDropEntry indicates a dropped entry name matched no entry
	WarnUnmatchedDropEntry ErrorCode = "CON305"
	// WarnDuplicateAddedFunction indicates an added function duplicates a declared one
	WarnDuplicateAddedFunction ErrorCode = "CON306"
	// WarnModificationOfRemoved indicates a modification targets a removed function
	WarnModificationOfRemoved ErrorCode = "CON307"
)

// NewUnmatchedModification creates a CON300 warning
func NewUnmatchedModification(className, signature string) *Diagnostic {
	item := signature
	if className != "" {
		item = className + "::" + signature
	}
	return newDiagnostic(
		WarnUnmatchedModification,
		"unmatched_modification",
		CategoryConsistency,
		SeverityWarning,
		"Function modification matched no declared function",
	).WithItem(item).
		WithSuggestion("Check the signature spelling, including const qualifiers and namespaces")
}

// NewUnmatchedArgumentModification creates a CON301 warning
func NewUnmatchedArgumentModification(function string, index, arity int) *Diagnostic {
	return newDiagnostic(
		WarnUnmatchedArgumentModification,
		"unmatched_argument_modification",
		CategoryConsistency,
		SeverityWarning,
		fmt.Sprintf("Argument index %d is out of range", index),
	).WithItem(function).
		WithExpected(fmt.Sprintf("0 (return) to %d", arity))
}

// NewUnmatchedFieldModification creates a CON302 warning
func NewUnmatchedFieldModification(className, field string) *Diagnostic {
	return newDiagnostic(
		WarnUnmatchedFieldModification,
		"unmatched_field_modification",
		CategoryConsistency,
		SeverityWarning,
		fmt.Sprintf("Field modification '%s' matched no field", field),
	).WithItem(className)
}

// NewUnevaluatedEnumValue creates a CON303 warning
func NewUnevaluatedEnumValue(loc codemodel.SourceLocation, enumerator, expression string, cause error) *Diagnostic {
	return newDiagnostic(
		WarnUnevaluatedEnumValue,
		"unevaluated_enum_value",
		CategoryConsistency,
		SeverityWarning,
		fmt.Sprintf("Cannot evaluate initializer '%s'; using the previous value plus one", expression),
	).WithItem(enumerator).WithLocation(loc).WithCause(cause)
}

// NewUnknownRejectedEnumValue creates a CON304 warning
func NewUnknownRejectedEnumValue(enum, value string) *Diagnostic {
	return newDiagnostic(
		WarnUnknownRejectedEnumValue,
		"unknown_rejected_enum_value",
		CategoryConsistency,
		SeverityWarning,
		fmt.Sprintf("Rejected enum value '%s' is not an enumerator", value),
	).WithItem(enum)
}

// NewUnmatchedDropEntry creates a CON305 warning
func NewUnmatchedDropEntry(name string) *Diagnostic {
	return newDiagnostic(
		WarnUnmatchedDropEntry,
		"unmatched_drop_entry",
		CategoryConsistency,
		SeverityWarning,
		fmt.Sprintf("Dropped type entry '%s' does not exist", name),
	).WithItem(name)
}

// NewDuplicateAddedFunction creates a CON306 warning
func NewDuplicateAddedFunction(className, signature string) *Diagnostic {
	item := signature
	if className != "" {
		item = className + "::" + signature
	}
	return newDiagnostic(
		WarnDuplicateAddedFunction,
		"duplicate_added_function",
		CategoryConsistency,
		SeverityWarning,
		"Added function has the same signature as a declared function",
	).WithItem(item)
}

// NewModificationOfRemoved creates a CON307 warning
func NewModificationOfRemoved(function, signature string) *Diagnostic {
	return newDiagnostic(
		WarnModificationOfRemoved,
		"modification_of_removed",
		CategoryConsistency,
		SeverityWarning,
		fmt.Sprintf("Modification '%s' targets a function that was already removed", signature),
	).WithItem(function)
}
