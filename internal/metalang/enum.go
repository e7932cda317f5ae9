package metalang

import (
	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// EnumValue is an enumerator with its evaluated value and the expression it
// was written with.
type EnumValue struct {
	Name       string
	Value      int64
	Expression string
	Enum       *Enum
}

// Enum is a resolved enumeration.
type Enum struct {
	Name          string
	QualifiedName string
	Entry         *typesystem.TypeEntry
	// FlagsEntry is the flags type registered for the enum, if any.
	FlagsEntry *typesystem.TypeEntry

	Values []*EnumValue

	Signed     bool
	Scoped     bool
	Anonymous  bool
	Deprecated bool
	Access     codemodel.Access
	Enclosing  *Class
	Loc        codemodel.SourceLocation
}

// FindValue returns the enumerator with the given name, or nil.
func (e *Enum) FindValue(name string) *EnumValue {
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// HasFlags reports whether a flags type wraps the enum.
func (e *Enum) HasFlags() bool {
	return e.FlagsEntry != nil
}
