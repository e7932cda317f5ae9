package errors

import (
	"fmt"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
)

// Resolution error codes (RES200-299). These drop a single item; the build
// continues.
const (
	// ErrTypeNotFound indicates a type spelling names no registered entry
	ErrTypeNotFound ErrorCode = "RES200"
	// ErrUnresolvableTemplateArgument indicates a template argument did not resolve
	ErrUnresolvableTemplateArgument ErrorCode = "RES201"
	// ErrUnresolvableArraySize indicates an array dimension did not resolve
	ErrUnresolvableArraySize ErrorCode = "RES202"
	// ErrAPIVersionExcluded indicates the entry exists only for other API versions
	ErrAPIVersionExcluded ErrorCode = "RES203"
	// ErrNotInTypeSystem indicates a class or enum has no type entry
	ErrNotInTypeSystem ErrorCode = "RES204"
	// ErrGenerationDisabled indicates the entry is dropped or generation is off
	ErrGenerationDisabled ErrorCode = "RES205"
	// ErrRedefinedToNotClass indicates a class is registered as a non-class entry
	ErrRedefinedToNotClass ErrorCode = "RES206"
	// ErrUnmatchedArgumentType indicates an argument type did not resolve
	ErrUnmatchedArgumentType ErrorCode = "RES207"
	// ErrUnmatchedReturnType indicates a return type did not resolve
	ErrUnmatchedReturnType ErrorCode = "RES208"
	// ErrUnmatchedOperator indicates a free operator has no owning class
	ErrUnmatchedOperator ErrorCode = "RES209"
	// ErrRejectedByRule indicates a rejection rule matched
	ErrRejectedByRule ErrorCode = "RES210"
	// ErrUnresolvedBaseClass indicates a base class could not be found
	ErrUnresolvedBaseClass ErrorCode = "RES211"
	// ErrUnmatchedFieldType indicates a field type did not resolve
	ErrUnmatchedFieldType ErrorCode = "RES212"
)

// NewTypeNotFound creates a RES200 warning
func NewTypeNotFound(loc codemodel.SourceLocation, spelling string) *Diagnostic {
	return newDiagnostic(
		ErrTypeNotFound,
		"type_not_found",
		CategoryResolution,
		SeverityWarning,
		fmt.Sprintf("Type '%s' is not registered in the typesystem", spelling),
	).WithLocation(loc).
		WithSuggestion("Add a type entry for it or reject the declarations using it")
}

// NewUnresolvableTemplateArgument creates a RES201 warning
func NewUnresolvableTemplateArgument(loc codemodel.SourceLocation, spelling, argument string) *Diagnostic {
	return newDiagnostic(
		ErrUnresolvableTemplateArgument,
		"unresolvable_template_argument",
		CategoryResolution,
		SeverityWarning,
		fmt.Sprintf("Template argument '%s' of '%s' cannot be resolved", argument, spelling),
	).WithLocation(loc)
}

// NewUnresolvableArraySize creates a RES202 warning
func NewUnresolvableArraySize(loc codemodel.SourceLocation, spelling, size string) *Diagnostic {
	return newDiagnostic(
		ErrUnresolvableArraySize,
		"unresolvable_array_size",
		CategoryResolution,
		SeverityWarning,
		fmt.Sprintf("Array size '%s' of '%s' is neither a literal nor a known enum value", size, spelling),
	).WithLocation(loc)
}

// NewAPIVersionExcluded creates a RES203 warning
func NewAPIVersionExcluded(loc codemodel.SourceLocation, name, version string) *Diagnostic {
	return newDiagnostic(
		ErrAPIVersionExcluded,
		"api_version_excluded",
		CategoryResolution,
		SeverityWarning,
		fmt.Sprintf("'%s' is not available in API version %s", name, version),
	).WithLocation(loc).WithItem(name)
}

// NewRejection creates a resolution warning describing why a declaration was
// left out of the metamodel.
func NewRejection(code ErrorCode, item, reason string, loc codemodel.SourceLocation) *Diagnostic {
	return newDiagnostic(
		code,
		rejectionTypes[code],
		CategoryResolution,
		SeverityWarning,
		reason,
	).WithItem(item).WithLocation(loc)
}

var rejectionTypes = map[ErrorCode]string{
	ErrTypeNotFound:                 "type_not_found",
	ErrUnresolvableTemplateArgument: "unresolvable_template_argument",
	ErrUnresolvableArraySize:        "unresolvable_array_size",
	ErrAPIVersionExcluded:           "api_version_excluded",
	ErrNotInTypeSystem:              "not_in_type_system",
	ErrGenerationDisabled:           "generation_disabled",
	ErrRedefinedToNotClass:          "redefined_to_not_class",
	ErrUnmatchedArgumentType:        "unmatched_argument_type",
	ErrUnmatchedReturnType:          "unmatched_return_type",
	ErrUnmatchedOperator:            "unmatched_operator",
	ErrRejectedByRule:               "rejected_by_rule",
	ErrUnresolvedBaseClass:          "unresolved_base_class",
	ErrUnmatchedFieldType:           "unmatched_field_type",
}
