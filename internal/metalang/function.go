package metalang

import (
	"strings"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// FunctionKind classifies a function.
type FunctionKind int

const (
	NormalFunction FunctionKind = iota
	ConstructorFunction
	CopyConstructorFunction
	MoveConstructorFunction
	DestructorFunction
	ConversionOperatorFunction
	AssignmentOperatorFunction
	OperatorFunction
	SignalFunction
	SlotFunction
)

var functionKindNames = [...]string{
	NormalFunction:             "normal",
	ConstructorFunction:        "constructor",
	CopyConstructorFunction:    "copy-constructor",
	MoveConstructorFunction:    "move-constructor",
	DestructorFunction:         "destructor",
	ConversionOperatorFunction: "conversion-operator",
	AssignmentOperatorFunction: "assignment-operator",
	OperatorFunction:           "operator",
	SignalFunction:             "signal",
	SlotFunction:               "slot",
}

func (k FunctionKind) String() string {
	if int(k) < len(functionKindNames) {
		return functionKindNames[k]
	}
	return "unknown"
}

// MarshalText writes the kind name.
func (k FunctionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AppliedModification records one pipeline step applied to a function.
type AppliedModification struct {
	Kind      typesystem.ModificationKind
	Signature string
}

// Argument is a resolved function argument.
type Argument struct {
	Name         string
	OriginalName string
	Type         *Type
	OriginalType *Type

	// OriginalDefault is the default expression as declared. Default is the
	// expression in effect after modifications.
	OriginalDefault string
	Default         string

	// Index is the zero based position in the declared argument list.
	Index int

	Ownership          typesystem.Ownership
	ReferenceCounts    []typesystem.ReferenceCount
	InvalidateAfterUse bool
	NoNullPointer      bool
	NullPointerDefault string
	ConversionRules    []typesystem.CodeSnip

	// Removed arguments are kept so positions stay stable.
	Removed bool
}

// HasDefault reports whether a default expression is in effect.
func (a *Argument) HasDefault() bool {
	return a.Default != ""
}

// HasOriginalDefault reports whether the declaration had a default.
func (a *Argument) HasOriginalDefault() bool {
	return a.OriginalDefault != ""
}

// DefaultModified reports whether a rule replaced or removed the default.
func (a *Argument) DefaultModified() bool {
	return a.Default != a.OriginalDefault
}

// Clone returns a deep copy.
func (a *Argument) Clone() *Argument {
	c := *a
	c.Type = a.Type.Clone()
	c.OriginalType = a.OriginalType.Clone()
	c.ReferenceCounts = append([]typesystem.ReferenceCount(nil), a.ReferenceCounts...)
	c.ConversionRules = append([]typesystem.CodeSnip(nil), a.ConversionRules...)
	return &c
}

// Function is a resolved free or member function.
type Function struct {
	Name         string
	OriginalName string

	// Owner is the class the function is attached to; DeclaringClass is the
	// class that declared it, which differs for copied and inherited members.
	Owner          *Class
	DeclaringClass *Class

	Arguments  []*Argument
	ReturnType *Type

	Access         codemodel.Access
	OriginalAccess codemodel.Access

	Static     bool
	Virtual    bool
	Abstract   bool
	Constant   bool
	Explicit   bool
	Deleted    bool
	Final      bool
	Deprecated bool
	Kind       FunctionKind

	// ReverseOperator marks a free operator attached to its second operand.
	ReverseOperator bool
	UserAdded       bool
	Synthesized     bool
	// Removed functions stay in the model for overload decisions.
	Removed bool

	ReturnOwnership       typesystem.Ownership
	ReturnReferenceCounts []typesystem.ReferenceCount

	Modifications []AppliedModification
	CodeSnips     []typesystem.CodeSnip

	Loc codemodel.SourceLocation

	declaredSignature string
}

// IsConstructor reports any kind of constructor.
func (f *Function) IsConstructor() bool {
	switch f.Kind {
	case ConstructorFunction, CopyConstructorFunction, MoveConstructorFunction:
		return true
	}
	return false
}

// IsCopyConstructor reports T(const T&).
func (f *Function) IsCopyConstructor() bool { return f.Kind == CopyConstructorFunction }

// IsMoveConstructor reports T(T&&).
func (f *Function) IsMoveConstructor() bool { return f.Kind == MoveConstructorFunction }

// IsDestructor reports ~T().
func (f *Function) IsDestructor() bool { return f.Kind == DestructorFunction }

// IsConversionOperator reports operator T().
func (f *Function) IsConversionOperator() bool { return f.Kind == ConversionOperatorFunction }

// IsOperator reports any operator overload, including conversion and
// assignment operators.
func (f *Function) IsOperator() bool {
	switch f.Kind {
	case OperatorFunction, ConversionOperatorFunction, AssignmentOperatorFunction:
		return true
	}
	return false
}

// IsPrivate reports private access.
func (f *Function) IsPrivate() bool { return f.Access == codemodel.Private }

// IsFree reports a function not attached to a class.
func (f *Function) IsFree() bool { return f.Owner == nil }

// ActualArguments returns the arguments that were not removed.
func (f *Function) ActualArguments() []*Argument {
	var out []*Argument
	for _, a := range f.Arguments {
		if !a.Removed {
			out = append(out, a)
		}
	}
	return out
}

// Argument returns the argument at a declared position, or nil.
func (f *Function) Argument(index int) *Argument {
	if index < 0 || index >= len(f.Arguments) {
		return nil
	}
	return f.Arguments[index]
}

// MinimalSignature returns the normalized signature built from the original
// name and the resolved types: "name(const NS::Url&,int)const".
func (f *Function) MinimalSignature() string {
	var b strings.Builder
	b.WriteString(f.OriginalName)
	b.WriteByte('(')
	for i, a := range f.Arguments {
		if i > 0 {
			b.WriteByte(',')
		}
		t := a.OriginalType
		if t == nil {
			t = a.Type
		}
		b.WriteString(t.String())
	}
	b.WriteByte(')')
	if f.Constant {
		b.WriteString("const")
	}
	return b.String()
}

// SetDeclaredSignature records the signature spelled as in the declaration,
// before type resolution qualified the names.
func (f *Function) SetDeclaredSignature(signature string) {
	f.declaredSignature = signature
}

// Signatures returns the distinct signatures a modification may match: the
// declared spelling and the resolved minimal signature.
func (f *Function) Signatures() []string {
	minimal := f.MinimalSignature()
	if f.declaredSignature == "" || f.declaredSignature == minimal {
		return []string{minimal}
	}
	return []string{f.declaredSignature, minimal}
}

// HasModification reports whether a pipeline step of the kind was applied.
func (f *Function) HasModification(kind typesystem.ModificationKind) bool {
	for _, m := range f.Modifications {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy without an owner.
func (f *Function) Clone() *Function {
	c := *f
	c.Owner = nil
	c.Arguments = make([]*Argument, len(f.Arguments))
	for i, a := range f.Arguments {
		c.Arguments[i] = a.Clone()
	}
	c.ReturnType = f.ReturnType.Clone()
	c.Modifications = append([]AppliedModification(nil), f.Modifications...)
	c.CodeSnips = append([]typesystem.CodeSnip(nil), f.CodeSnips...)
	c.ReturnReferenceCounts = append([]typesystem.ReferenceCount(nil), f.ReturnReferenceCounts...)
	return &c
}

// QualifiedName returns the owner qualified name joined with the function
// name.
func (f *Function) QualifiedName() string {
	if f.Owner == nil {
		return f.Name
	}
	return f.Owner.QualifiedName + "::" + f.Name
}

// Field is a resolved data member.
type Field struct {
	Name         string
	OriginalName string
	Type         *Type
	Access       codemodel.Access
	Static       bool
	Readable     bool
	Writable     bool
	Enclosing    *Class
	Loc          codemodel.SourceLocation
}
