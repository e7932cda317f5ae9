// Package codemodel defines the declaration tree handed to the metamodel
// builder by the native header parser. The parser itself lives outside this
// module; its output is read from YAML or JSON.
package codemodel

import (
	"fmt"
	"strings"
)

// SourceLocation tracks where a declaration was written.
type SourceLocation struct {
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	Line   int    `yaml:"line,omitempty" json:"line,omitempty"`
	Column int    `yaml:"column,omitempty" json:"column,omitempty"`
}

func (l SourceLocation) String() string {
	if l.File == "" && l.Line == 0 {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Access is the C++ access specifier of a member.
type Access int

const (
	// Public access (the default for namespace members and structs)
	Public Access = iota
	// Protected access
	Protected
	// Private access
	Private
)

func (a Access) String() string {
	switch a {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// UnmarshalText parses "public", "protected" or "private".
func (a *Access) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "public":
		*a = Public
	case "protected":
		*a = Protected
	case "private":
		*a = Private
	default:
		return fmt.Errorf("unknown access %q", text)
	}
	return nil
}

// ClassKind distinguishes class, struct and union declarations.
type ClassKind int

const (
	// KindClass is a class declaration
	KindClass ClassKind = iota
	// KindStruct is a struct declaration
	KindStruct
	// KindUnion is a union declaration
	KindUnion
)

// UnmarshalText parses "class", "struct" or "union".
func (k *ClassKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "class":
		*k = KindClass
	case "struct":
		*k = KindStruct
	case "union":
		*k = KindUnion
	default:
		return fmt.Errorf("unknown class kind %q", text)
	}
	return nil
}

// FunctionKind is the parser's classification of a function declaration.
type FunctionKind int

const (
	// NormalFunction is any function not listed below
	NormalFunction FunctionKind = iota
	// Constructor is a constructor other than copy/move
	Constructor
	// CopyConstructor is T(const T&)
	CopyConstructor
	// MoveConstructor is T(T&&)
	MoveConstructor
	// Destructor is ~T()
	Destructor
	// ConversionOperator is "operator U()"
	ConversionOperator
	// Signal is a signal declared in a signals section
	Signal
	// Slot is a slot declared in a slots section
	Slot
)

var functionKindNames = map[string]FunctionKind{
	"":                    NormalFunction,
	"normal":              NormalFunction,
	"constructor":         Constructor,
	"copy-constructor":    CopyConstructor,
	"move-constructor":    MoveConstructor,
	"destructor":          Destructor,
	"conversion-operator": ConversionOperator,
	"signal":              Signal,
	"slot":                Slot,
}

// UnmarshalText parses the kebab-case function kind names.
func (k *FunctionKind) UnmarshalText(text []byte) error {
	kind, ok := functionKindNames[string(text)]
	if !ok {
		return fmt.Errorf("unknown function kind %q", text)
	}
	*k = kind
	return nil
}

// Scope holds the declarations nested in a namespace, class or the global
// scope. Members keep their declaration order.
type Scope struct {
	Name       string       `yaml:"name"`
	Namespaces []*Namespace `yaml:"namespaces,omitempty"`
	Classes    []*Class     `yaml:"classes,omitempty"`
	Enums      []*Enum      `yaml:"enums,omitempty"`
	Functions  []*Function  `yaml:"functions,omitempty"`
	Typedefs   []*Typedef   `yaml:"typedefs,omitempty"`

	scope []string
}

// EnclosingScope returns the qualified name parts of the enclosing scope.
func (s *Scope) EnclosingScope() []string {
	return s.scope
}

// QualifiedNameParts returns the enclosing scope plus the scope's own name.
func (s *Scope) QualifiedNameParts() []string {
	if s.Name == "" {
		return append([]string(nil), s.scope...)
	}
	return append(append([]string(nil), s.scope...), s.Name)
}

// QualifiedName returns the "::" separated qualified name.
func (s *Scope) QualifiedName() string {
	return strings.Join(s.QualifiedNameParts(), "::")
}

// Namespace is a namespace declaration. A namespace may be declared several
// times; the parser reports each occurrence separately.
type Namespace struct {
	Scope  `yaml:",inline"`
	Inline bool           `yaml:"inline,omitempty"`
	Loc    SourceLocation `yaml:"location,omitempty"`
}

// BaseSpecifier is one entry of a class base list as written.
type BaseSpecifier struct {
	Name    string `yaml:"name"`
	Access  Access `yaml:"access,omitempty"`
	Virtual bool   `yaml:"virtual,omitempty"`
}

// Class is a class, struct or union declaration.
type Class struct {
	Scope              `yaml:",inline"`
	Kind               ClassKind       `yaml:"kind,omitempty"`
	Access             Access          `yaml:"access,omitempty"`
	Bases              []BaseSpecifier `yaml:"bases,omitempty"`
	TemplateParameters []string        `yaml:"template_parameters,omitempty"`
	Fields             []*Field        `yaml:"fields,omitempty"`
	Final              bool            `yaml:"final,omitempty"`
	Loc                SourceLocation  `yaml:"location,omitempty"`
}

// IsTemplate reports whether the class declares template parameters.
func (c *Class) IsTemplate() bool {
	return len(c.TemplateParameters) > 0
}

// Argument is a function parameter.
type Argument struct {
	Name         string   `yaml:"name,omitempty"`
	Type         TypeInfo `yaml:"type"`
	DefaultValue string   `yaml:"default,omitempty"`
}

// Function is a free function or a member function.
type Function struct {
	Name               string         `yaml:"name"`
	Kind               FunctionKind   `yaml:"kind,omitempty"`
	Access             Access         `yaml:"access,omitempty"`
	Arguments          []*Argument    `yaml:"arguments,omitempty"`
	ReturnType         TypeInfo       `yaml:"return_type,omitempty"`
	Static             bool           `yaml:"static,omitempty"`
	Virtual            bool           `yaml:"virtual,omitempty"`
	PureVirtual        bool           `yaml:"pure_virtual,omitempty"`
	Constant           bool           `yaml:"const,omitempty"`
	Explicit           bool           `yaml:"explicit,omitempty"`
	Deleted            bool           `yaml:"deleted,omitempty"`
	Final              bool           `yaml:"final,omitempty"`
	Override           bool           `yaml:"override,omitempty"`
	Friend             bool           `yaml:"friend,omitempty"`
	Deprecated         bool           `yaml:"deprecated,omitempty"`
	TemplateParameters []string       `yaml:"template_parameters,omitempty"`
	Loc                SourceLocation `yaml:"location,omitempty"`

	scope []string
}

// EnclosingScope returns the qualified name parts of the scope declaring the
// function.
func (f *Function) EnclosingScope() []string {
	return f.scope
}

// QualifiedName returns the function name qualified by its scope.
func (f *Function) QualifiedName() string {
	return strings.Join(append(append([]string(nil), f.scope...), f.Name), "::")
}

// IsOperator reports whether the function is an operator overload.
func (f *Function) IsOperator() bool {
	return strings.HasPrefix(f.Name, "operator") && len(f.Name) > len("operator") &&
		!isIdentRune(rune(f.Name[len("operator")]))
}

// IsConversionOperator reports whether the function is "operator T()".
func (f *Function) IsConversionOperator() bool {
	if f.Kind == ConversionOperator {
		return true
	}
	if !strings.HasPrefix(f.Name, "operator ") {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(f.Name, "operator "))
	return rest != "new" && rest != "delete" && !strings.HasPrefix(rest, "new[") &&
		!strings.HasPrefix(rest, "delete[")
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Field is a data member.
type Field struct {
	Name   string         `yaml:"name"`
	Type   TypeInfo       `yaml:"type"`
	Access Access         `yaml:"access,omitempty"`
	Static bool           `yaml:"static,omitempty"`
	Loc    SourceLocation `yaml:"location,omitempty"`
}

// EnumValue is one enumerator. Expression holds the initializer text as
// written, empty when the value is implicit.
type EnumValue struct {
	Name       string         `yaml:"name"`
	Expression string         `yaml:"value,omitempty"`
	Loc        SourceLocation `yaml:"location,omitempty"`
}

// Enum is an enumeration declaration. Anonymous enums have an empty name.
type Enum struct {
	Name           string         `yaml:"name,omitempty"`
	Access         Access         `yaml:"access,omitempty"`
	Scoped         bool           `yaml:"scoped,omitempty"`
	UnderlyingType string         `yaml:"underlying_type,omitempty"`
	Deprecated     bool           `yaml:"deprecated,omitempty"`
	Values         []*EnumValue   `yaml:"values,omitempty"`
	Loc            SourceLocation `yaml:"location,omitempty"`

	scope []string
}

// IsAnonymous reports whether the enum has no name.
func (e *Enum) IsAnonymous() bool {
	return e.Name == ""
}

// IsSigned reports whether enumerators are signed. Enums without an explicit
// unsigned underlying type are considered signed.
func (e *Enum) IsSigned() bool {
	return !strings.HasPrefix(e.UnderlyingType, "unsigned") && e.UnderlyingType != "bool" &&
		!strings.HasPrefix(e.UnderlyingType, "uint")
}

// EnclosingScope returns the qualified name parts of the scope declaring the
// enum.
func (e *Enum) EnclosingScope() []string {
	return e.scope
}

// QualifiedName returns the qualified enum name.
func (e *Enum) QualifiedName() string {
	return strings.Join(append(append([]string(nil), e.scope...), e.Name), "::")
}

// Typedef is a typedef or alias declaration.
type Typedef struct {
	Name string         `yaml:"name"`
	Type TypeInfo       `yaml:"type"`
	Loc  SourceLocation `yaml:"location,omitempty"`

	scope []string
}

// EnclosingScope returns the qualified name parts of the scope declaring the
// typedef.
func (t *Typedef) EnclosingScope() []string {
	return t.scope
}

// QualifiedName returns the qualified typedef name.
func (t *Typedef) QualifiedName() string {
	return strings.Join(append(append([]string(nil), t.scope...), t.Name), "::")
}

// Model is the root of a declaration tree: the global scope.
type Model struct {
	Scope  `yaml:",inline"`
	Source string `yaml:"source,omitempty"`
}

// Link records the enclosing scope of every declaration. Load calls it; code
// that assembles a Model by hand must call it before handing the model to the
// builder.
func (m *Model) Link() {
	m.Scope.scope = nil
	m.Scope.Name = ""
	linkScope(&m.Scope, nil)
}

func linkScope(s *Scope, parts []string) {
	s.scope = append([]string(nil), parts...)
	own := s.QualifiedNameParts()
	for _, ns := range s.Namespaces {
		linkScope(&ns.Scope, own)
	}
	for _, c := range s.Classes {
		linkScope(&c.Scope, own)
	}
	for _, e := range s.Enums {
		e.scope = own
	}
	for _, f := range s.Functions {
		f.scope = own
	}
	for _, t := range s.Typedefs {
		t.scope = own
	}
}
