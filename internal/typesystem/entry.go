// Package typesystem holds the type registry and the customization rules
// loaded from typesystem XML files.
package typesystem

import (
	"strings"
)

// EntryKind classifies a TypeEntry.
type EntryKind int

const (
	PrimitiveEntry EntryKind = iota
	ValueEntry
	ObjectEntry
	InterfaceEntry
	NamespaceEntry
	EnumEntry
	EnumValueEntry
	FlagsEntry
	ContainerEntry
	SmartPointerEntry
	FunctionEntry
	CustomEntry
	ArrayEntry
	TemplateArgumentEntry
	VarargsEntry
	VoidEntry
	TypedefEntry
	ConstantValueEntry
)

var entryKindNames = [...]string{
	PrimitiveEntry:        "primitive",
	ValueEntry:            "value",
	ObjectEntry:           "object",
	InterfaceEntry:        "interface",
	NamespaceEntry:        "namespace",
	EnumEntry:             "enum",
	EnumValueEntry:        "enum-value",
	FlagsEntry:            "flags",
	ContainerEntry:        "container",
	SmartPointerEntry:     "smart-pointer",
	FunctionEntry:         "function",
	CustomEntry:           "custom",
	ArrayEntry:            "array",
	TemplateArgumentEntry: "template-argument",
	VarargsEntry:          "varargs",
	VoidEntry:             "void",
	TypedefEntry:          "typedef",
	ConstantValueEntry:    "constant-value",
}

func (k EntryKind) String() string {
	if int(k) < len(entryKindNames) {
		return entryKindNames[k]
	}
	return "unknown"
}

// ContainerKind is the container-type "type" attribute.
type ContainerKind int

const (
	ListContainer ContainerKind = iota
	SetContainer
	MapContainer
	MultiMapContainer
	PairContainer
	SpanContainer
)

var containerKinds = map[string]ContainerKind{
	"list":        ListContainer,
	"vector":      ListContainer,
	"stack":       ListContainer,
	"queue":       ListContainer,
	"linked-list": ListContainer,
	"set":         SetContainer,
	"map":         MapContainer,
	"hash":        MapContainer,
	"multi-map":   MultiMapContainer,
	"multi-hash":  MultiMapContainer,
	"pair":        PairContainer,
	"span":        SpanContainer,
}

func (k ContainerKind) String() string {
	switch k {
	case SetContainer:
		return "set"
	case MapContainer:
		return "map"
	case MultiMapContainer:
		return "multi-map"
	case PairContainer:
		return "pair"
	case SpanContainer:
		return "span"
	default:
		return "list"
	}
}

// Copyable records the copyable attribute of value and object types.
type Copyable int

const (
	CopyableUnspecified Copyable = iota
	CopyableSet
	NonCopyableSet
)

// TypeEntry is a registered, versioned identity for a named type.
//
// Identity (name, kind and version range) is fixed at load time. The builder
// only writes discovered facts such as Polymorphic.
type TypeEntry struct {
	Kind     EntryKind
	Versions VersionRange

	name string

	// Parent is the entry of the enclosing namespace or class, if any.
	Parent *TypeEntry

	// TargetName overrides the name used in the generated binding.
	TargetName string
	// Package is the target package or module the type belongs to.
	Package string

	// GenerationDisabled is set by generate="no".
	GenerationDisabled bool
	// ReferenceOnly is set for entries of a load-typesystem generate="no"
	// include: they resolve but are never generated.
	ReferenceOnly bool
	Deprecated    bool

	Copyable           Copyable
	DefaultConstructor string

	// Polymorphic is discovered during the build.
	Polymorphic bool

	// ContainerKind is meaningful for ContainerEntry.
	ContainerKind ContainerKind

	// Smart pointer attributes.
	SmartPointerGetter string
	RefCountMethod     string

	// Target links a flags entry to its enum, an enum to its flags entry, an
	// enum value to its enum and a typedef-type to the aliased template entry.
	Target *TypeEntry
	// Source is the aliased spelling of a typedef-type ("QList<int>").
	Source string
	// Value is the evaluated value of an enum-value or constant-value entry.
	Value string

	// IdentifiedByValue names an enumerator that identifies an anonymous enum.
	IdentifiedByValue string
	// RejectedValues lists enumerators excluded from generation.
	RejectedValues []string
	// FlagsName is the flags attribute of an enum-type.
	FlagsName string

	FunctionModifications []*FunctionModification
	FieldModifications    []*FieldModification
	AddedFunctions        []*AddedFunction
	CodeSnips             []CodeSnip
	ConversionRule        *ConversionRule

	// File is the ruleset file that declared the entry.
	File string

	builtin bool
}

// NewTypeEntry creates an entry of the given kind for a qualified name.
func NewTypeEntry(kind EntryKind, qualifiedName string) *TypeEntry {
	return &TypeEntry{Kind: kind, name: qualifiedName}
}

// QualifiedName returns the "::" separated name.
func (e *TypeEntry) QualifiedName() string {
	return e.name
}

// Name returns the last name component.
func (e *TypeEntry) Name() string {
	if i := strings.LastIndex(e.name, "::"); i >= 0 {
		return e.name[i+2:]
	}
	return e.name
}

// TargetLangName returns the binding name, defaulting to the simple name.
func (e *TypeEntry) TargetLangName() string {
	if e.TargetName != "" {
		return e.TargetName
	}
	return e.Name()
}

// IsPrimitive reports whether the entry is a primitive-type.
func (e *TypeEntry) IsPrimitive() bool { return e.Kind == PrimitiveEntry }

// IsValue reports whether the entry is a value-type.
func (e *TypeEntry) IsValue() bool { return e.Kind == ValueEntry }

// IsObject reports whether the entry is an object-type or interface-type.
func (e *TypeEntry) IsObject() bool { return e.Kind == ObjectEntry || e.Kind == InterfaceEntry }

// IsNamespace reports whether the entry is a namespace-type.
func (e *TypeEntry) IsNamespace() bool { return e.Kind == NamespaceEntry }

// IsEnum reports whether the entry is an enum-type.
func (e *TypeEntry) IsEnum() bool { return e.Kind == EnumEntry }

// IsFlags reports whether the entry is the flags type of an enum.
func (e *TypeEntry) IsFlags() bool { return e.Kind == FlagsEntry }

// IsContainer reports whether the entry is a container-type.
func (e *TypeEntry) IsContainer() bool { return e.Kind == ContainerEntry }

// IsSmartPointer reports whether the entry is a smart-pointer-type.
func (e *TypeEntry) IsSmartPointer() bool { return e.Kind == SmartPointerEntry }

// IsFunction reports whether the entry registers a free function.
func (e *TypeEntry) IsFunction() bool { return e.Kind == FunctionEntry }

// IsTypedef reports whether the entry is a typedef-type.
func (e *TypeEntry) IsTypedef() bool { return e.Kind == TypedefEntry }

// IsVoid reports whether the entry is the builtin void entry.
func (e *TypeEntry) IsVoid() bool { return e.Kind == VoidEntry }

// IsVarargs reports whether the entry is the builtin "..." entry.
func (e *TypeEntry) IsVarargs() bool { return e.Kind == VarargsEntry }

// IsComplex reports whether declarations of this entry become classes.
func (e *TypeEntry) IsComplex() bool {
	switch e.Kind {
	case ValueEntry, ObjectEntry, InterfaceEntry, NamespaceEntry, ContainerEntry,
		SmartPointerEntry, TypedefEntry:
		return true
	}
	return false
}

// IsBuiltin reports whether the entry was pre-registered by the registry.
func (e *TypeEntry) IsBuiltin() bool {
	return e.builtin
}

// IsNonCopyable reports whether copyable="no" was set.
func (e *TypeEntry) IsNonCopyable() bool {
	return e.Copyable == NonCopyableSet
}

// GenerateCode reports whether bindings are generated for the entry. Entries
// nested in a non-generating entry do not generate either.
func (e *TypeEntry) GenerateCode() bool {
	for cur := e; cur != nil; cur = cur.Parent {
		if cur.GenerationDisabled || cur.ReferenceOnly {
			return false
		}
	}
	return true
}

// IsEnumValueRejected reports whether reject-enum-value named the enumerator.
func (e *TypeEntry) IsEnumValueRejected(name string) bool {
	for _, v := range e.RejectedValues {
		if v == name {
			return true
		}
	}
	return false
}

// FindFieldModification returns the modification for a field, if any.
func (e *TypeEntry) FindFieldModification(name string) *FieldModification {
	for _, m := range e.FieldModifications {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (e *TypeEntry) String() string {
	return e.Kind.String() + " " + e.name
}
