package typesystem

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
)

// ModificationKind tags one step of the function modification pipeline. The
// constants are declared in application order.
type ModificationKind int

const (
	// ModRemove removes the function; later steps are skipped
	ModRemove ModificationKind = iota
	// ModRename renames the function
	ModRename
	// ModAccess changes the access specifier
	ModAccess
	// ModDeprecate marks the function deprecated
	ModDeprecate
	// ModArguments applies per-argument modifications
	ModArguments
	// ModCodeInjection attaches code snippets
	ModCodeInjection
)

func (k ModificationKind) String() string {
	switch k {
	case ModRemove:
		return "remove"
	case ModRename:
		return "rename"
	case ModAccess:
		return "access"
	case ModDeprecate:
		return "deprecate"
	case ModArguments:
		return "modify-argument"
	case ModCodeInjection:
		return "inject-code"
	}
	return "unknown"
}

// FunctionModification is a modify-function rule.
type FunctionModification struct {
	// Signature is the normalized signature "name(type1,type2)const", or the
	// pattern text when the rule was written as a regular expression.
	Signature string
	Since     Version

	Removed   bool
	RenamedTo string
	// Access is nil when unchanged.
	Access     *codemodel.Access
	Deprecated bool

	ArgumentModifications []*ArgumentModification
	CodeSnips             []CodeSnip

	// File is the ruleset file the rule came from.
	File string

	pattern *regexp.Regexp
}

// NewFunctionModification creates a modification for a signature. A
// signature starting with "^" is compiled as a regular expression matched
// against normalized signatures; anything else is normalized.
func NewFunctionModification(signature string) (*FunctionModification, error) {
	signature = strings.TrimSpace(signature)
	m := &FunctionModification{}
	if strings.HasPrefix(signature, "^") {
		re, err := regexp.Compile(signature)
		if err != nil {
			return nil, err
		}
		m.Signature = signature
		m.pattern = re
		return m, nil
	}
	normalized, err := NormalizeSignature(signature)
	if err != nil {
		return nil, err
	}
	m.Signature = normalized
	return m, nil
}

// IsPattern reports whether the rule matches by regular expression.
func (m *FunctionModification) IsPattern() bool {
	return m.pattern != nil
}

// Matches reports whether the rule applies to a normalized signature.
func (m *FunctionModification) Matches(signature string) bool {
	if m.pattern != nil {
		return m.pattern.MatchString(signature)
	}
	return m.Signature == signature
}

// AppliesTo reports whether the rule is active for an API version.
func (m *FunctionModification) AppliesTo(v Version) bool {
	return v.IsZero() || m.Since.IsZero() || m.Since.Compare(v) <= 0
}

// Kinds returns the pipeline steps this rule carries, in application order.
func (m *FunctionModification) Kinds() []ModificationKind {
	var kinds []ModificationKind
	if m.Removed {
		kinds = append(kinds, ModRemove)
	}
	if m.RenamedTo != "" {
		kinds = append(kinds, ModRename)
	}
	if m.Access != nil {
		kinds = append(kinds, ModAccess)
	}
	if m.Deprecated {
		kinds = append(kinds, ModDeprecate)
	}
	if len(m.ArgumentModifications) > 0 {
		kinds = append(kinds, ModArguments)
	}
	if len(m.CodeSnips) > 0 {
		kinds = append(kinds, ModCodeInjection)
	}
	return kinds
}

// Ownership is the define-ownership directive of an argument.
type Ownership int

const (
	OwnershipUnchanged Ownership = iota
	// OwnershipTarget transfers ownership to the binding side
	OwnershipTarget
	// OwnershipNative transfers ownership to the native side
	OwnershipNative
	// OwnershipDefault restores default ownership handling
	OwnershipDefault
)

var ownershipNames = map[string]Ownership{
	"target":  OwnershipTarget,
	"c++":     OwnershipNative,
	"native":  OwnershipNative,
	"default": OwnershipDefault,
}

func (o Ownership) String() string {
	switch o {
	case OwnershipTarget:
		return "target"
	case OwnershipNative:
		return "native"
	case OwnershipDefault:
		return "default"
	}
	return "unchanged"
}

// ReferenceCountAction is the action of a reference-count directive.
type ReferenceCountAction int

const (
	RefCountAdd ReferenceCountAction = iota
	RefCountAddAll
	RefCountRemove
	RefCountSet
	RefCountIgnore
)

var referenceCountActions = map[string]ReferenceCountAction{
	"add":     RefCountAdd,
	"add-all": RefCountAddAll,
	"remove":  RefCountRemove,
	"set":     RefCountSet,
	"ignore":  RefCountIgnore,
}

func (a ReferenceCountAction) String() string {
	for name, action := range referenceCountActions {
		if action == a {
			return name
		}
	}
	return "unknown"
}

// ReferenceCount keeps a reference to an argument alive on the owner.
type ReferenceCount struct {
	Action       ReferenceCountAction
	VariableName string
}

// ArgumentModification is a modify-argument rule. Index 0 is the return
// value; arguments count from 1.
type ArgumentModification struct {
	Index int

	RenamedTo       string
	ReplacedType    string
	ReplacedDefault string
	RemovedDefault  bool
	Removed         bool

	Ownership          Ownership
	ReferenceCounts    []ReferenceCount
	InvalidateAfterUse bool

	// NoNullPointer rejects null at the binding boundary; NullPointerDefault
	// is substituted instead when set.
	NoNullPointer      bool
	NullPointerDefault string

	ConversionRules []CodeSnip
}

// FieldModification is a modify-field rule.
type FieldModification struct {
	Name      string
	RenamedTo string
	Removed   bool
	Readable  bool
	Writable  bool
}

// NewFieldModification returns a modification that keeps the field readable
// and writable.
func NewFieldModification(name string) *FieldModification {
	return &FieldModification{Name: name, Readable: true, Writable: true}
}

// CodeSnip is injected code, attached to a type, a function or globally.
type CodeSnip struct {
	// Class is the injection target: "native", "target" or "shell".
	Class string
	// Position is "beginning", "end" or "declaration".
	Position string
	Code     string
}

// TargetToNativeConversion converts a binding value of SourceType to the
// native type. Check is an optional type-check expression.
type TargetToNativeConversion struct {
	SourceType string
	Check      string
	Code       string
}

// ConversionRule is a conversion-rule for custom and primitive types.
type ConversionRule struct {
	NativeToTarget string
	// TargetToNative conversions are tried in declaration order.
	TargetToNative []TargetToNativeConversion
	// ReplaceOriginal drops conversions inherited from a previous rule.
	ReplaceOriginal bool
}

// AddedArgument is an argument of an added function.
type AddedArgument struct {
	Name         string
	Type         codemodel.TypeInfo
	DefaultValue string
}

// AddedFunction is an add-function rule: a synthetic function declared in
// the ruleset instead of the headers.
type AddedFunction struct {
	Name       string
	Arguments  []AddedArgument
	ReturnType codemodel.TypeInfo
	Access     codemodel.Access
	Static     bool
	Constant   bool
	Since      Version

	ArgumentModifications []*ArgumentModification
	CodeSnips             []CodeSnip
}

// ParseAddedFunction parses "name(type1 a = default, type2)" plus an
// optional trailing "const" and a return type spelling.
func ParseAddedFunction(signature, returnType string) (*AddedFunction, error) {
	name, args, constant, err := splitSignature(signature)
	if err != nil {
		return nil, err
	}
	f := &AddedFunction{Name: name, Constant: constant}

	for i, arg := range args {
		decl, def := splitDefault(arg)
		info, argName, err := codemodel.ParseDeclarator(decl)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		if info.IsVoid() && len(args) == 1 && argName == "" {
			break
		}
		f.Arguments = append(f.Arguments, AddedArgument{Name: argName, Type: info, DefaultValue: def})
	}

	if rt := strings.TrimSpace(returnType); rt != "" {
		info, err := codemodel.ParseTypeInfo(rt)
		if err != nil {
			return nil, fmt.Errorf("return type: %w", err)
		}
		if !info.IsVoid() {
			f.ReturnType = info
		}
	}
	return f, nil
}

// Signature returns the normalized signature of the added function.
func (f *AddedFunction) Signature() string {
	types := make([]codemodel.TypeInfo, len(f.Arguments))
	for i, a := range f.Arguments {
		types[i] = a.Type
	}
	return FormatSignature(f.Name, types, f.Constant)
}

// AppliesTo reports whether the function exists in an API version.
func (f *AddedFunction) AppliesTo(v Version) bool {
	return v.IsZero() || f.Since.IsZero() || f.Since.Compare(v) <= 0
}

// NormalizeSignature rewrites a written signature into the canonical form
// the builder computes for declared functions: argument names and defaults
// are dropped and every type is spelled canonically.
func NormalizeSignature(signature string) (string, error) {
	name, args, constant, err := splitSignature(signature)
	if err != nil {
		return "", err
	}
	var types []codemodel.TypeInfo
	for i, arg := range args {
		decl, _ := splitDefault(arg)
		info, _, err := codemodel.ParseDeclarator(decl)
		if err != nil {
			return "", fmt.Errorf("argument %d of %q: %w", i+1, signature, err)
		}
		if info.IsVoid() && len(args) == 1 {
			break
		}
		types = append(types, info)
	}
	return FormatSignature(name, types, constant), nil
}

// FormatSignature builds a normalized signature.
func FormatSignature(name string, args []codemodel.TypeInfo, constant bool) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	if constant {
		b.WriteString("const")
	}
	return b.String()
}

// splitSignature splits "name(args) const" into its parts. Commas nested in
// template brackets or parentheses do not split arguments.
func splitSignature(signature string) (string, []string, bool, error) {
	s := strings.TrimSpace(signature)
	open := strings.IndexByte(s, '(')
	// operator() has its own parentheses before the argument list
	if strings.HasSuffix(strings.TrimSpace(s[:max(open, 0)]), "operator") &&
		strings.HasPrefix(s[open:], "()(") {
		open += 2
	}
	if open <= 0 {
		return "", nil, false, fmt.Errorf("signature %q has no argument list", signature)
	}
	name := NormalizeFunctionName(s[:open])
	if name == "" {
		return "", nil, false, fmt.Errorf("signature %q has no function name", signature)
	}

	depth := 0
	closeAt := -1
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeAt = i
			}
		}
		if closeAt >= 0 {
			break
		}
	}
	if closeAt < 0 {
		return "", nil, false, fmt.Errorf("signature %q has an unterminated argument list", signature)
	}

	suffix := strings.TrimSpace(s[closeAt+1:])
	constant := false
	switch suffix {
	case "":
	case "const":
		constant = true
	default:
		return "", nil, false, fmt.Errorf("unexpected %q after argument list of %q", suffix, signature)
	}

	body := strings.TrimSpace(s[open+1 : closeAt])
	if body == "" {
		return name, nil, constant, nil
	}
	return name, splitTopLevel(body, ','), constant, nil
}

// NormalizeFunctionName canonicalizes a function name. Conversion operator
// names get their type spelled canonically ("operator const char*"). It
// returns "" for text that is not a function name.
func NormalizeFunctionName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "operator") {
		rest := strings.TrimSpace(strings.TrimPrefix(name, "operator"))
		if rest != "" && isIdentStart(rest[0]) {
			if info, err := codemodel.ParseTypeInfo(rest); err == nil {
				rest = info.String()
			}
			return "operator " + rest
		}
		return "operator" + strings.ReplaceAll(rest, " ", "")
	}
	for _, r := range name {
		if !(r == '_' || r == ':' || r == '~' || (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ""
		}
	}
	return name
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// splitTopLevel splits on sep outside <>, () and [] nesting.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// splitDefault splits "type name = expr" at the top-level '='.
func splitDefault(arg string) (string, string) {
	parts := splitTopLevel(arg, '=')
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(strings.Join(parts[1:], "="))
}
