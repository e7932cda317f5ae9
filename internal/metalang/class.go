package metalang

import (
	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

// Class is a resolved class, struct, namespace or template instantiation.
type Class struct {
	Name          string
	QualifiedName string
	Package       string
	Entry         *typesystem.TypeEntry

	// BaseClass is the primary base; Interfaces are the remaining bases of
	// a multiply inherited class.
	BaseClass  *Class
	Interfaces []*Class
	// BaseClassNames are the bases as declared.
	BaseClassNames []string

	Enclosing    *Class
	InnerClasses []*Class
	Enums        []*Enum
	Functions    []*Function
	Fields       []*Field

	IsNamespace bool
	// TypedefInstantiation marks classes created for
	// "typedef Template<Args> Name".
	TypedefInstantiation bool
	TemplateBase         *Class
	TemplateArguments    []*Type
	// TemplateParameters are the placeholder entries of a template class.
	TemplateParameters []*typesystem.TypeEntry

	Abstract             bool
	Final                bool
	Polymorphic          bool
	Deprecated           bool
	HasPrivateDestructor bool
	HasVirtualDestructor bool

	Loc codemodel.SourceLocation

	externalConversions []*Function
}

// IsTemplate reports whether the class declares template parameters.
func (c *Class) IsTemplate() bool {
	return len(c.TemplateParameters) > 0
}

// AddFunction attaches a function. The declaring class defaults to c.
func (c *Class) AddFunction(f *Function) {
	f.Owner = c
	if f.DeclaringClass == nil {
		f.DeclaringClass = c
	}
	c.Functions = append(c.Functions, f)
}

// AddInnerClass attaches a nested class.
func (c *Class) AddInnerClass(inner *Class) {
	inner.Enclosing = c
	c.InnerClasses = append(c.InnerClasses, inner)
}

// AddEnum attaches an enum.
func (c *Class) AddEnum(e *Enum) {
	e.Enclosing = c
	c.Enums = append(c.Enums, e)
}

// AddField attaches a field.
func (c *Class) AddField(f *Field) {
	f.Enclosing = c
	c.Fields = append(c.Fields, f)
}

// AddExternalConversionOperator records a conversion operator declared on
// another class that converts to c.
func (c *Class) AddExternalConversionOperator(op *Function) {
	for _, existing := range c.externalConversions {
		if existing == op {
			return
		}
	}
	c.externalConversions = append(c.externalConversions, op)
}

// ExternalConversionOperators returns the conversion operators of other
// classes that convert to c, excluding removed ones.
func (c *Class) ExternalConversionOperators() []*Function {
	var out []*Function
	for _, op := range c.externalConversions {
		if !op.Removed {
			out = append(out, op)
		}
	}
	return out
}

// ImplicitConversions returns the functions that implicitly convert other
// types to c: non-explicit constructors callable with one argument, other
// than copy and move constructors, plus external conversion operators.
// Removed functions are excluded.
func (c *Class) ImplicitConversions() []*Function {
	var out []*Function
	for _, f := range c.Functions {
		if f.Removed || f.Explicit || f.Kind != ConstructorFunction || f.IsPrivate() {
			continue
		}
		if callableWithOneArgument(f) {
			out = append(out, f)
		}
	}
	return append(out, c.ExternalConversionOperators()...)
}

func callableWithOneArgument(f *Function) bool {
	args := f.ActualArguments()
	if len(args) == 0 {
		return false
	}
	for _, a := range args[1:] {
		if !a.HasDefault() {
			return false
		}
	}
	return true
}

// FindFunctions returns the functions with the given name.
func (c *Class) FindFunctions(name string) []*Function {
	var out []*Function
	for _, f := range c.Functions {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// FindFunction returns the first function with the given name, or nil.
func (c *Class) FindFunction(name string) *Function {
	for _, f := range c.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindFunctionBySignature returns the function whose minimal signature
// matches, or nil.
func (c *Class) FindFunctionBySignature(signature string) *Function {
	for _, f := range c.Functions {
		if f.MinimalSignature() == signature {
			return f
		}
	}
	return nil
}

// Constructors returns every constructor, including synthesized ones.
func (c *Class) Constructors() []*Function {
	var out []*Function
	for _, f := range c.Functions {
		if f.IsConstructor() {
			out = append(out, f)
		}
	}
	return out
}

// HasConstructors reports whether the class has any constructor.
func (c *Class) HasConstructors() bool {
	return len(c.Constructors()) > 0
}

// HasNonPrivateConstructor reports whether some constructor is public or
// protected.
func (c *Class) HasNonPrivateConstructor() bool {
	for _, f := range c.Constructors() {
		if !f.IsPrivate() && !f.Deleted {
			return true
		}
	}
	return false
}

// HasPrivateConstructor reports whether some constructor is private.
func (c *Class) HasPrivateConstructor() bool {
	for _, f := range c.Constructors() {
		if f.IsPrivate() {
			return true
		}
	}
	return false
}

// HasCopyConstructor reports whether a copy constructor is declared or
// synthesized.
func (c *Class) HasCopyConstructor() bool {
	for _, f := range c.Functions {
		if f.IsCopyConstructor() {
			return true
		}
	}
	return false
}

// IsCopyable reports whether the class may be copied by value.
func (c *Class) IsCopyable() bool {
	if c.Entry != nil {
		switch c.Entry.Copyable {
		case typesystem.CopyableSet:
			return true
		case typesystem.NonCopyableSet:
			return false
		}
	}
	for _, f := range c.Functions {
		if f.IsCopyConstructor() {
			return !f.IsPrivate() && !f.Deleted
		}
	}
	return !c.IsNamespace
}

// FindField returns the field with the given name, or nil.
func (c *Class) FindField(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindEnum returns the enum with the given simple name, or nil.
func (c *Class) FindEnum(name string) *Enum {
	for _, e := range c.Enums {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// FindInnerClass returns the nested class with the given simple name.
func (c *Class) FindInnerClass(name string) *Class {
	for _, inner := range c.InnerClasses {
		if inner.Name == name {
			return inner
		}
	}
	return nil
}

// BaseClasses returns the primary base followed by the interfaces.
func (c *Class) BaseClasses() []*Class {
	var out []*Class
	if c.BaseClass != nil {
		out = append(out, c.BaseClass)
	}
	return append(out, c.Interfaces...)
}

// AllBaseClasses returns every ancestor, nearest first, without duplicates.
func (c *Class) AllBaseClasses() []*Class {
	seen := make(map[*Class]bool)
	var out []*Class
	queue := c.BaseClasses()
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
		queue = append(queue, b.BaseClasses()...)
	}
	return out
}

// InheritsFrom reports whether other is an ancestor of c.
func (c *Class) InheritsFrom(other *Class) bool {
	for _, b := range c.AllBaseClasses() {
		if b == other {
			return true
		}
	}
	return false
}

// GenerateCode reports whether bindings are generated for the class.
func (c *Class) GenerateCode() bool {
	return c.Entry != nil && c.Entry.GenerateCode()
}

// ClassList is an ordered list of classes.
type ClassList []*Class

// Find returns the class with a qualified name, or nil.
func (l ClassList) Find(qualifiedName string) *Class {
	for _, c := range l {
		if c.QualifiedName == qualifiedName {
			return c
		}
	}
	return nil
}
