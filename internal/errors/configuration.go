package errors

import (
	"fmt"
)

// Configuration error codes (CFG100-199). All of them abort the build.
const (
	// ErrMalformedRuleset indicates the typesystem XML could not be parsed
	ErrMalformedRuleset ErrorCode = "CFG100"
	// ErrRulesetNotFound indicates a typesystem file or include was not found
	ErrRulesetNotFound ErrorCode = "CFG101"
	// ErrInvalidVersion indicates a since/until/api version is not a version
	ErrInvalidVersion ErrorCode = "CFG102"
	// ErrInvalidAddedFunction indicates an add-function signature is malformed
	ErrInvalidAddedFunction ErrorCode = "CFG103"
	// ErrDuplicateTypeEntry indicates two entries claim overlapping versions
	ErrDuplicateTypeEntry ErrorCode = "CFG104"
	// ErrInvalidAttribute indicates a missing or invalid ruleset attribute
	ErrInvalidAttribute ErrorCode = "CFG105"
	// ErrInvalidDeclarations indicates the declaration tree could not be read
	ErrInvalidDeclarations ErrorCode = "CFG106"
	// ErrInvalidTypeSpelling indicates a type written in the ruleset does not parse
	ErrInvalidTypeSpelling ErrorCode = "CFG107"
	// ErrInvalidPattern indicates a regular expression in the ruleset does not compile
	ErrInvalidPattern ErrorCode = "CFG108"
	// ErrRegistryFrozen indicates a mutation after the build started
	ErrRegistryFrozen ErrorCode = "CFG109"
)

// NewMalformedRuleset creates a CFG100 error
func NewMalformedRuleset(file string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrMalformedRuleset,
		"malformed_ruleset",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Malformed typesystem: %v", cause),
	).WithFile(file).WithCause(cause)
}

// NewRulesetNotFound creates a CFG101 error
func NewRulesetNotFound(file, name string, searched []string) *Diagnostic {
	d := newDiagnostic(
		ErrRulesetNotFound,
		"ruleset_not_found",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Typesystem '%s' not found", name),
	).WithFile(file)
	if len(searched) > 0 {
		d = d.WithActual(fmt.Sprintf("searched %v", searched))
	}
	return d.WithSuggestion("Add the directory to typesystem_paths")
}

// NewInvalidVersion creates a CFG102 error
func NewInvalidVersion(file, attribute, value string) *Diagnostic {
	return newDiagnostic(
		ErrInvalidVersion,
		"invalid_version",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Invalid version '%s' in attribute '%s'", value, attribute),
	).WithFile(file).
		WithExpected("a dotted version such as 5.15 or 6.2.1")
}

// NewInvalidAddedFunction creates a CFG103 error
func NewInvalidAddedFunction(file, signature string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrInvalidAddedFunction,
		"invalid_added_function",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Cannot parse added function signature '%s'", signature),
	).WithFile(file).WithCause(cause).
		WithExpected("name(type1, type2 name = default)")
}

// NewDuplicateTypeEntry creates a CFG104 error
func NewDuplicateTypeEntry(name, existing, added string) *Diagnostic {
	return newDiagnostic(
		ErrDuplicateTypeEntry,
		"duplicate_type_entry",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Type entry '%s' registered twice for overlapping versions", name),
	).WithItem(name).
		WithExpected(existing).
		WithActual(added).
		WithSuggestion("Use since/until attributes with disjoint ranges")
}

// NewInvalidAttribute creates a CFG105 error
func NewInvalidAttribute(file, element, attribute, problem string) *Diagnostic {
	return newDiagnostic(
		ErrInvalidAttribute,
		"invalid_attribute",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("<%s>: attribute '%s' %s", element, attribute, problem),
	).WithFile(file)
}

// NewInvalidDeclarations creates a CFG106 error
func NewInvalidDeclarations(file string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrInvalidDeclarations,
		"invalid_declarations",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Cannot read declaration tree: %v", cause),
	).WithFile(file).WithCause(cause)
}

// NewInvalidTypeSpelling creates a CFG107 error
func NewInvalidTypeSpelling(file, spelling string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrInvalidTypeSpelling,
		"invalid_type_spelling",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Cannot parse type '%s'", spelling),
	).WithFile(file).WithCause(cause)
}

// NewInvalidPattern creates a CFG108 error
func NewInvalidPattern(file, pattern string, cause error) *Diagnostic {
	return newDiagnostic(
		ErrInvalidPattern,
		"invalid_pattern",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Invalid regular expression '%s'", pattern),
	).WithFile(file).WithCause(cause)
}

// NewRegistryFrozen creates a CFG109 error
func NewRegistryFrozen(operation string) *Diagnostic {
	return newDiagnostic(
		ErrRegistryFrozen,
		"registry_frozen",
		CategoryConfiguration,
		SeverityError,
		fmt.Sprintf("Cannot %s: the type registry is frozen once a build has started", operation),
	)
}
