// Package metalang defines the resolved metamodel produced by the builder:
// types, classes, functions, arguments, fields and enums.
package metalang

import (
	"strconv"
	"strings"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// UsagePattern classifies how a type is used at a particular site.
type UsagePattern int

const (
	InvalidPattern UsagePattern = iota
	PrimitivePattern
	FlagsPattern
	EnumPattern
	ValuePattern
	ValuePointerPattern
	ObjectPattern
	NativePointerPattern
	ContainerPattern
	SmartPointerPattern
	ArrayPattern
	VarargsPattern
	VoidPattern
	TemplateArgumentPattern
	ConstantPattern
	CustomPattern
)

var patternNames = [...]string{
	InvalidPattern:          "invalid",
	PrimitivePattern:        "primitive",
	FlagsPattern:            "flags",
	EnumPattern:             "enum",
	ValuePattern:            "value",
	ValuePointerPattern:     "value-pointer",
	ObjectPattern:           "object",
	NativePointerPattern:    "native-pointer",
	ContainerPattern:        "container",
	SmartPointerPattern:     "smart-pointer",
	ArrayPattern:            "array",
	VarargsPattern:          "varargs",
	VoidPattern:             "void",
	TemplateArgumentPattern: "template-argument",
	ConstantPattern:         "constant",
	CustomPattern:           "custom",
}

func (p UsagePattern) String() string {
	if int(p) < len(patternNames) {
		return patternNames[p]
	}
	return "invalid"
}

// MarshalText writes the pattern name.
func (p UsagePattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Type is a resolved use of a type. Its usage pattern is derived from the
// fields on every call.
type Type struct {
	Entry        *typesystem.TypeEntry
	Const        bool
	Volatile     bool
	Reference    codemodel.ReferenceType
	Indirections []codemodel.Indirection

	Instantiations []*Type

	// ArrayElement is set for arrays; ArrayCount is -1 when the size is
	// not written.
	ArrayElement *Type
	ArrayCount   int

	// Alias is the typedef name written at the use site when a primitive
	// was reached through typedefs.
	Alias string
}

// Pattern computes the usage pattern from the current fields.
func (t *Type) Pattern() UsagePattern {
	if t.ArrayElement != nil {
		return ArrayPattern
	}
	if t.Entry == nil {
		return InvalidPattern
	}
	ind := len(t.Indirections)
	switch t.Entry.Kind {
	case typesystem.VoidEntry:
		if ind == 0 {
			return VoidPattern
		}
		return NativePointerPattern
	case typesystem.VarargsEntry:
		return VarargsPattern
	case typesystem.TemplateArgumentEntry:
		return TemplateArgumentPattern
	case typesystem.ConstantValueEntry, typesystem.EnumValueEntry:
		return ConstantPattern
	case typesystem.PrimitiveEntry:
		if ind == 0 {
			return PrimitivePattern
		}
		return NativePointerPattern
	case typesystem.EnumEntry:
		if ind == 0 {
			return EnumPattern
		}
		return NativePointerPattern
	case typesystem.FlagsEntry:
		if ind == 0 {
			return FlagsPattern
		}
		return NativePointerPattern
	case typesystem.ContainerEntry:
		if ind <= 1 {
			return ContainerPattern
		}
		return NativePointerPattern
	case typesystem.SmartPointerEntry:
		if ind == 0 {
			return SmartPointerPattern
		}
		return NativePointerPattern
	case typesystem.CustomEntry:
		return CustomPattern
	case typesystem.ObjectEntry, typesystem.InterfaceEntry:
		if ind <= 1 {
			return ObjectPattern
		}
		return NativePointerPattern
	}
	switch ind {
	case 0:
		return ValuePattern
	case 1:
		return ValuePointerPattern
	}
	return NativePointerPattern
}

// IsPrimitive reports the primitive pattern.
func (t *Type) IsPrimitive() bool { return t.Pattern() == PrimitivePattern }

// IsEnum reports the enum pattern.
func (t *Type) IsEnum() bool { return t.Pattern() == EnumPattern }

// IsFlags reports the flags pattern.
func (t *Type) IsFlags() bool { return t.Pattern() == FlagsPattern }

// IsValue reports the value pattern.
func (t *Type) IsValue() bool { return t.Pattern() == ValuePattern }

// IsValuePointer reports a pointer to a value type.
func (t *Type) IsValuePointer() bool { return t.Pattern() == ValuePointerPattern }

// IsObject reports the object pattern.
func (t *Type) IsObject() bool { return t.Pattern() == ObjectPattern }

// IsNativePointer reports pointers the binding layer passes through opaquely,
// including const char*.
func (t *Type) IsNativePointer() bool { return t.Pattern() == NativePointerPattern }

// IsContainer reports the container pattern.
func (t *Type) IsContainer() bool { return t.Pattern() == ContainerPattern }

// IsSmartPointer reports the smart pointer pattern.
func (t *Type) IsSmartPointer() bool { return t.Pattern() == SmartPointerPattern }

// IsArray reports the array pattern.
func (t *Type) IsArray() bool { return t.Pattern() == ArrayPattern }

// IsVarargs reports the "..." pattern.
func (t *Type) IsVarargs() bool { return t.Pattern() == VarargsPattern }

// IsVoid reports plain void.
func (t *Type) IsVoid() bool { return t.Pattern() == VoidPattern }

// IsTemplateArgument reports a template parameter placeholder.
func (t *Type) IsTemplateArgument() bool { return t.Pattern() == TemplateArgumentPattern }

// IsCString reports const char* (and char*).
func (t *Type) IsCString() bool {
	return t.Entry != nil && t.Entry.IsPrimitive() && t.Entry.QualifiedName() == "char" &&
		len(t.Indirections) == 1 && t.ArrayElement == nil
}

// IsPointer reports at least one level of indirection.
func (t *Type) IsPointer() bool {
	return len(t.Indirections) > 0
}

// IsReference reports an lvalue or rvalue reference.
func (t *Type) IsReference() bool {
	return t.Reference != codemodel.NoReference
}

// Name returns the simple name: the alias if one was written, else the entry
// name.
func (t *Type) Name() string {
	if t.ArrayElement != nil {
		return t.ArrayElement.Name()
	}
	if t.Alias != "" {
		if i := strings.LastIndex(t.Alias, "::"); i >= 0 {
			return t.Alias[i+2:]
		}
		return t.Alias
	}
	if t.Entry == nil {
		return ""
	}
	return t.Entry.Name()
}

// QualifiedName returns the alias if one was written, else the entry's
// qualified name.
func (t *Type) QualifiedName() string {
	if t.ArrayElement != nil {
		return t.ArrayElement.QualifiedName()
	}
	if t.Alias != "" {
		return t.Alias
	}
	if t.Entry == nil {
		return ""
	}
	return t.Entry.QualifiedName()
}

// String returns the canonical spelling, in the same form as
// codemodel.TypeInfo.String.
func (t *Type) String() string {
	if t.ArrayElement != nil {
		count := ""
		if t.ArrayCount >= 0 {
			count = strconv.Itoa(t.ArrayCount)
		}
		return t.ArrayElement.String() + "[" + count + "]"
	}
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
	for _, ind := range t.Indirections {
		if ind == codemodel.ConstPointer {
			b.WriteString("*const")
		} else {
			b.WriteByte('*')
		}
	}
	switch t.Reference {
	case codemodel.LValueReference:
		b.WriteByte('&')
	case codemodel.RValueReference:
		b.WriteString("&&")
	}
	return b.String()
}

// Clone returns a deep copy. Entries are shared.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Indirections = append([]codemodel.Indirection(nil), t.Indirections...)
	if t.Instantiations != nil {
		c.Instantiations = make([]*Type, len(t.Instantiations))
		for i, inst := range t.Instantiations {
			c.Instantiations[i] = inst.Clone()
		}
	}
	c.ArrayElement = t.ArrayElement.Clone()
	return &c
}

// StripQualifiers returns a copy without const, volatile, references and
// indirections.
func (t *Type) StripQualifiers() *Type {
	c := t.Clone()
	c.Const = false
	c.Volatile = false
	c.Reference = codemodel.NoReference
	c.Indirections = nil
	return c
}

// Equal compares the spelled types.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.String() == other.String()
}
