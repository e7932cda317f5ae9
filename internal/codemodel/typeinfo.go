package codemodel

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReferenceType is the reference kind written on a declared type.
type ReferenceType int

const (
	// NoReference means the type is used by value or through pointers only
	NoReference ReferenceType = iota
	// LValueReference is T&
	LValueReference
	// RValueReference is T&&
	RValueReference
)

// Indirection is one level of pointer indirection.
type Indirection int

const (
	// Pointer is a plain T*
	Pointer Indirection = iota
	// ConstPointer is T* const
	ConstPointer
)

// TypeInfo is the raw syntactic description of a type as written in a
// declaration. It carries no resolution information.
type TypeInfo struct {
	Name            []string
	Const           bool
	Volatile        bool
	Reference       ReferenceType
	Indirections    []Indirection
	Instantiations  []TypeInfo
	ArrayDimensions []string

	// FunctionPointer marks "R (*)(Args...)"; the remaining fields describe R.
	FunctionPointer bool
	Arguments       []TypeInfo
}

// QualifiedName returns the base name joined with "::".
func (t TypeInfo) QualifiedName() string {
	return strings.Join(t.Name, "::")
}

// BaseName returns the last component of the qualified name.
func (t TypeInfo) BaseName() string {
	if len(t.Name) == 0 {
		return ""
	}
	return t.Name[len(t.Name)-1]
}

// IsVoid reports whether the type is plain void.
func (t TypeInfo) IsVoid() bool {
	return t.QualifiedName() == "void" && len(t.Indirections) == 0 &&
		len(t.ArrayDimensions) == 0 && !t.FunctionPointer
}

// IsVarargs reports whether the type is the "..." ellipsis.
func (t TypeInfo) IsVarargs() bool {
	return t.QualifiedName() == "..."
}

// IsEmpty reports whether no type was written at all.
func (t TypeInfo) IsEmpty() bool {
	return len(t.Name) == 0 && !t.FunctionPointer
}

// IsNumericLiteral reports whether the type is a template argument written as
// an integer literal, for example the 3 in std::array<int, 3>.
func (t TypeInfo) IsNumericLiteral() bool {
	if len(t.Name) != 1 || t.Const || len(t.Indirections) > 0 || t.Reference != NoReference {
		return false
	}
	_, err := ParseIntegerLiteral(t.Name[0])
	return err == nil
}

// StripQualifiers returns a copy without const, volatile, reference and
// indirections.
func (t TypeInfo) StripQualifiers() TypeInfo {
	s := t.Clone()
	s.Const = false
	s.Volatile = false
	s.Reference = NoReference
	s.Indirections = nil
	return s
}

// Clone returns a deep copy.
func (t TypeInfo) Clone() TypeInfo {
	c := t
	c.Name = append([]string(nil), t.Name...)
	c.Indirections = append([]Indirection(nil), t.Indirections...)
	c.ArrayDimensions = append([]string(nil), t.ArrayDimensions...)
	if t.Instantiations != nil {
		c.Instantiations = make([]TypeInfo, len(t.Instantiations))
		for i, inst := range t.Instantiations {
			c.Instantiations[i] = inst.Clone()
		}
	}
	if t.Arguments != nil {
		c.Arguments = make([]TypeInfo, len(t.Arguments))
		for i, arg := range t.Arguments {
			c.Arguments[i] = arg.Clone()
		}
	}
	return c
}

// String returns the canonical spelling used for signatures and cache keys:
// "const NS::Name<A,B>*const*&[3]".
func (t TypeInfo) String() string {
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	if t.Volatile {
		b.WriteString("volatile ")
	}
	b.WriteString(t.QualifiedName())
	if len(t.Instantiations) > 0 {
		b.WriteByte('<')
		for i, inst := range t.Instantiations {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(inst.String())
		}
		b.WriteByte('>')
	}
	if t.FunctionPointer {
		b.WriteString("(*)(")
		for i, arg := range t.Arguments {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(arg.String())
		}
		b.WriteByte(')')
	}
	for _, ind := range t.Indirections {
		if ind == ConstPointer {
			b.WriteString("*const")
		} else {
			b.WriteByte('*')
		}
	}
	switch t.Reference {
	case LValueReference:
		b.WriteByte('&')
	case RValueReference:
		b.WriteString("&&")
	}
	for _, dim := range t.ArrayDimensions {
		fmt.Fprintf(&b, "[%s]", dim)
	}
	return b.String()
}

// UnmarshalYAML accepts either a spelling ("const QList<int> &") or the
// structured form produced by parsers that already split the type.
func (t *TypeInfo) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if strings.TrimSpace(node.Value) == "" {
			*t = TypeInfo{}
			return nil
		}
		parsed, err := ParseTypeInfo(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*t = parsed
		return nil
	}

	var raw struct {
		Name            string     `yaml:"name"`
		Const           bool       `yaml:"const"`
		Volatile        bool       `yaml:"volatile"`
		Reference       string     `yaml:"reference"`
		Indirections    []string   `yaml:"indirections"`
		Instantiations  []TypeInfo `yaml:"instantiations"`
		ArrayDimensions []string   `yaml:"arrays"`
		FunctionPointer bool       `yaml:"function_pointer"`
		Arguments       []TypeInfo `yaml:"arguments"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	info := TypeInfo{
		Const:           raw.Const,
		Volatile:        raw.Volatile,
		Instantiations:  raw.Instantiations,
		ArrayDimensions: raw.ArrayDimensions,
		FunctionPointer: raw.FunctionPointer,
		Arguments:       raw.Arguments,
	}
	if raw.Name != "" {
		info.Name = strings.Split(raw.Name, "::")
	}
	switch raw.Reference {
	case "", "none":
	case "&", "lvalue":
		info.Reference = LValueReference
	case "&&", "rvalue":
		info.Reference = RValueReference
	default:
		return fmt.Errorf("line %d: unknown reference kind %q", node.Line, raw.Reference)
	}
	for _, ind := range raw.Indirections {
		switch strings.ReplaceAll(ind, " ", "") {
		case "*":
			info.Indirections = append(info.Indirections, Pointer)
		case "*const":
			info.Indirections = append(info.Indirections, ConstPointer)
		default:
			return fmt.Errorf("line %d: unknown indirection %q", node.Line, ind)
		}
	}
	*t = info
	return nil
}

// MarshalYAML writes the canonical spelling.
func (t TypeInfo) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}
