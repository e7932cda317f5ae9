package metalang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

func entry(kind typesystem.EntryKind, name string) *typesystem.TypeEntry {
	return typesystem.NewTypeEntry(kind, name)
}

func TestType_Pattern(t *testing.T) {
	ptr := []codemodel.Indirection{codemodel.Pointer}
	ptr2 := []codemodel.Indirection{codemodel.Pointer, codemodel.Pointer}

	tests := []struct {
		name string
		typ  *Type
		want UsagePattern
	}{
		{"int", &Type{Entry: entry(typesystem.PrimitiveEntry, "int")}, PrimitivePattern},
		{"const int&", &Type{Entry: entry(typesystem.PrimitiveEntry, "int"), Const: true, Reference: codemodel.LValueReference}, PrimitivePattern},
		{"int*", &Type{Entry: entry(typesystem.PrimitiveEntry, "int"), Indirections: ptr}, NativePointerPattern},
		{"const char*", &Type{Entry: entry(typesystem.PrimitiveEntry, "char"), Const: true, Indirections: ptr}, NativePointerPattern},
		{"void", &Type{Entry: entry(typesystem.VoidEntry, "void")}, VoidPattern},
		{"void*", &Type{Entry: entry(typesystem.VoidEntry, "void"), Indirections: ptr}, NativePointerPattern},
		{"enum", &Type{Entry: entry(typesystem.EnumEntry, "A::E")}, EnumPattern},
		{"flags", &Type{Entry: entry(typesystem.FlagsEntry, "A::Es")}, FlagsPattern},
		{"value", &Type{Entry: entry(typesystem.ValueEntry, "Point")}, ValuePattern},
		{"value pointer", &Type{Entry: entry(typesystem.ValueEntry, "Point"), Indirections: ptr}, ValuePointerPattern},
		{"value double pointer", &Type{Entry: entry(typesystem.ValueEntry, "Point"), Indirections: ptr2}, NativePointerPattern},
		{"object", &Type{Entry: entry(typesystem.ObjectEntry, "Widget"), Indirections: ptr}, ObjectPattern},
		{"container", &Type{Entry: entry(typesystem.ContainerEntry, "QList")}, ContainerPattern},
		{"smart pointer", &Type{Entry: entry(typesystem.SmartPointerEntry, "QSharedPointer")}, SmartPointerPattern},
		{"varargs", &Type{Entry: entry(typesystem.VarargsEntry, "...")}, VarargsPattern},
		{"template argument", &Type{Entry: entry(typesystem.TemplateArgumentEntry, "T")}, TemplateArgumentPattern},
		{"constant", &Type{Entry: entry(typesystem.ConstantValueEntry, "3")}, ConstantPattern},
		{"array", &Type{ArrayElement: &Type{Entry: entry(typesystem.PrimitiveEntry, "double")}, ArrayCount: 2}, ArrayPattern},
		{"no entry", &Type{}, InvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.Pattern())
		})
	}
}

func TestType_PatternFollowsMutation(t *testing.T) {
	typ := &Type{Entry: entry(typesystem.ValueEntry, "Point")}
	assert.True(t, typ.IsValue())

	typ.Indirections = append(typ.Indirections, codemodel.Pointer)
	assert.True(t, typ.IsValuePointer(), "pattern is recomputed after the type changes")

	typ.Indirections = nil
	assert.True(t, typ.IsValue())
}

func TestType_NamesAndSpelling(t *testing.T) {
	quint := &Type{Entry: entry(typesystem.PrimitiveEntry, "unsigned int"), Alias: "NS::quint32", Const: true}
	assert.Equal(t, "quint32", quint.Name())
	assert.Equal(t, "NS::quint32", quint.QualifiedName())
	assert.Equal(t, "const NS::quint32", quint.String())

	list := &Type{
		Entry:          entry(typesystem.ContainerEntry, "QList"),
		Instantiations: []*Type{{Entry: entry(typesystem.ValueEntry, "NS::Url")}},
		Reference:      codemodel.LValueReference,
		Const:          true,
	}
	assert.Equal(t, "const QList<NS::Url>&", list.String())

	arr := &Type{ArrayElement: &Type{Entry: entry(typesystem.PrimitiveEntry, "double")}, ArrayCount: 2}
	assert.Equal(t, "double[2]", arr.String())
	assert.Equal(t, "double", arr.Name())
	unsized := &Type{ArrayElement: &Type{Entry: entry(typesystem.PrimitiveEntry, "int")}, ArrayCount: -1}
	assert.Equal(t, "int[]", unsized.String())

	cstr := &Type{Entry: entry(typesystem.PrimitiveEntry, "char"), Const: true,
		Indirections: []codemodel.Indirection{codemodel.ConstPointer}}
	assert.True(t, cstr.IsCString())
	assert.Equal(t, "const char*const", cstr.String())
}

func TestType_CloneIsDeep(t *testing.T) {
	orig := &Type{
		Entry:          entry(typesystem.ContainerEntry, "QList"),
		Instantiations: []*Type{{Entry: entry(typesystem.PrimitiveEntry, "int")}},
	}
	c := orig.Clone()
	c.Instantiations[0].Indirections = []codemodel.Indirection{codemodel.Pointer}
	c.Const = true

	assert.Equal(t, "QList<int>", orig.String())
	assert.Equal(t, "const QList<int*>", c.String())
	assert.Same(t, orig.Entry, c.Entry)
	assert.Nil(t, (*Type)(nil).Clone())

	stripped := (&Type{Entry: orig.Entry, Const: true, Reference: codemodel.LValueReference}).StripQualifiers()
	assert.Equal(t, "QList", stripped.String())
}

func newClass(name string) *Class {
	return &Class{Name: name, QualifiedName: name, Entry: entry(typesystem.ValueEntry, name)}
}

func argument(typ *Type, def string) *Argument {
	return &Argument{Name: "a", OriginalName: "a", Type: typ, OriginalType: typ, Default: def, OriginalDefault: def}
}

func TestClass_ConversionsExcludeRemovedFunctions(t *testing.T) {
	a := newClass("A")
	b := newClass("B")
	intType := &Type{Entry: entry(typesystem.PrimitiveEntry, "int")}

	fromInt := &Function{Name: "A", OriginalName: "A", Kind: ConstructorFunction,
		Arguments: []*Argument{argument(intType, ""), argument(intType, "0")}}
	explicit := &Function{Name: "A", OriginalName: "A", Kind: ConstructorFunction, Explicit: true,
		Arguments: []*Argument{argument(&Type{Entry: entry(typesystem.PrimitiveEntry, "double")}, "")}}
	copyCtor := &Function{Name: "A", OriginalName: "A", Kind: CopyConstructorFunction,
		Arguments: []*Argument{argument(&Type{Entry: a.Entry, Const: true, Reference: codemodel.LValueReference}, "")}}
	a.AddFunction(fromInt)
	a.AddFunction(explicit)
	a.AddFunction(copyCtor)

	op := &Function{Name: "operator A", OriginalName: "operator A", Kind: ConversionOperatorFunction,
		Constant: true, ReturnType: &Type{Entry: a.Entry}}
	b.AddFunction(op)
	a.AddExternalConversionOperator(op)
	a.AddExternalConversionOperator(op)

	require.Equal(t, []*Function{op}, a.ExternalConversionOperators())
	assert.Equal(t, []*Function{fromInt, op}, a.ImplicitConversions())
	assert.Same(t, b, op.Owner)

	op.Removed = true
	fromInt.Removed = true
	assert.Empty(t, a.ExternalConversionOperators())
	assert.Empty(t, a.ImplicitConversions())
}

func TestClass_Constructors(t *testing.T) {
	c := newClass("Singleton")
	assert.False(t, c.HasNonPrivateConstructor())

	c.AddFunction(&Function{Name: "Singleton", Kind: ConstructorFunction, Access: codemodel.Private})
	assert.False(t, c.HasNonPrivateConstructor())
	assert.True(t, c.HasPrivateConstructor())

	c.AddFunction(&Function{Name: "Singleton", Kind: CopyConstructorFunction, Access: codemodel.Protected})
	assert.True(t, c.HasNonPrivateConstructor())
	assert.True(t, c.HasCopyConstructor())
	assert.Len(t, c.Constructors(), 2)
}

func TestClass_IsCopyable(t *testing.T) {
	c := newClass("Handle")
	assert.True(t, c.IsCopyable())

	c.AddFunction(&Function{Name: "Handle", Kind: CopyConstructorFunction, Deleted: true})
	assert.False(t, c.IsCopyable())

	c.Entry.Copyable = typesystem.CopyableSet
	assert.True(t, c.IsCopyable(), "the ruleset overrides the declaration")
}

func TestClass_Hierarchy(t *testing.T) {
	base := newClass("Base")
	iface := newClass("Iface")
	mid := newClass("Mid")
	mid.BaseClass = base
	mid.Interfaces = []*Class{iface}
	leaf := newClass("Leaf")
	leaf.BaseClass = mid

	assert.Equal(t, []*Class{mid, base, iface}, leaf.AllBaseClasses())
	assert.True(t, leaf.InheritsFrom(iface))
	assert.False(t, base.InheritsFrom(leaf))

	list := ClassList{base, mid, leaf}
	assert.Same(t, mid, list.Find("Mid"))
	assert.Nil(t, list.Find("Other"))
}

func TestFunction_SignaturesAndArguments(t *testing.T) {
	url := &Type{Entry: entry(typesystem.ValueEntry, "NS::Url"), Const: true, Reference: codemodel.LValueReference}
	f := &Function{Name: "setUrl", OriginalName: "setUrl", Constant: true,
		Arguments: []*Argument{argument(url, "")}}
	f.SetDeclaredSignature("setUrl(const Url&)const")

	assert.Equal(t, "setUrl(const NS::Url&)const", f.MinimalSignature())
	assert.Equal(t, []string{"setUrl(const Url&)const", "setUrl(const NS::Url&)const"}, f.Signatures())
	assert.Same(t, f.Arguments[0], f.Argument(0))
	assert.Nil(t, f.Argument(1))

	f.Arguments[0].Removed = true
	assert.Empty(t, f.ActualArguments())

	c := f.Clone()
	c.Arguments[0].Name = "changed"
	assert.Equal(t, "a", f.Arguments[0].Name)
	assert.Nil(t, c.Owner)
}

func TestEnum_FindValue(t *testing.T) {
	e := &Enum{Name: "E"}
	e.Values = []*EnumValue{{Name: "V0", Value: 0, Enum: e}, {Name: "N", Value: 2, Expression: "V1 + 1", Enum: e}}

	assert.Equal(t, int64(2), e.FindValue("N").Value)
	assert.Nil(t, e.FindValue("missing"))
	assert.False(t, e.HasFlags())
}
