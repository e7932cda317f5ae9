package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
	"github.com/conduit-lang/apiextractor/internal/metalang"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

func ruleset(body string) string {
	return `<?xml version="1.0"?>
<typesystem package="Test">
` + body + `
</typesystem>
`
}

func newRegistry(t *testing.T, rules string, configure ...func(*typesystem.Registry)) *typesystem.Registry {
	t.Helper()
	reg := typesystem.NewRegistry()
	for _, fn := range configure {
		fn(reg)
	}
	require.NoError(t, typesystem.NewLoader(reg, nil).Load(strings.NewReader(ruleset(rules)), "test.xml"))
	return reg
}

func build(t *testing.T, tree, rules string, configure ...func(*typesystem.Registry)) *Result {
	t.Helper()
	model, err := codemodel.Parse([]byte(tree))
	require.NoError(t, err)
	result, err := New(newRegistry(t, rules, configure...)).Build(model)
	require.NoError(t, err)
	return result
}

func apiVersion(v string) func(*typesystem.Registry) {
	return func(r *typesystem.Registry) {
		_ = r.SetAPIVersion(typesystem.MustParseVersion(v))
	}
}

func findClass(t *testing.T, result *Result, name string) *metalang.Class {
	t.Helper()
	c := result.FindClass(name)
	require.NotNil(t, c, "class %s", name)
	return c
}

func findFunction(t *testing.T, c *metalang.Class, name string) *metalang.Function {
	t.Helper()
	f := c.FindFunction(name)
	require.NotNil(t, f, "%s::%s", c.QualifiedName, name)
	return f
}

func names(classes metalang.ClassList) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.QualifiedName
	}
	return out
}

func TestBuild_NilModel(t *testing.T) {
	_, err := New(typesystem.NewRegistry()).Build(nil)
	require.Error(t, err)
}

func TestBuild_PrimitiveTypedefKeepsAlias(t *testing.T) {
	tree := `
typedefs:
  - name: Real
    type: double
classes:
  - name: Point
    functions:
      - name: setX
        arguments:
          - name: x
            type: Real
      - name: x
        return_type: Real
        const: true
`
	result := build(t, tree, `<value-type name="Point"/>`)
	point := findClass(t, result, "Point")

	arg := findFunction(t, point, "setX").Arguments[0].Type
	assert.True(t, arg.IsPrimitive())
	assert.Equal(t, "double", arg.Entry.QualifiedName())
	assert.Equal(t, "Real", arg.String())

	x := findFunction(t, point, "x")
	require.NotNil(t, x.ReturnType)
	assert.Equal(t, "Real", x.ReturnType.Alias)
	assert.Equal(t, "x()const", x.MinimalSignature())
}

func TestBuild_SynthesizedConstructors(t *testing.T) {
	tree := `
classes:
  - name: Point
  - name: Handle
`
	result := build(t, tree, `
<value-type name="Point"/>
<object-type name="Handle" copyable="no"/>
`)

	point := findClass(t, result, "Point")
	ctors := point.Constructors()
	require.Len(t, ctors, 2)
	for _, ctor := range ctors {
		assert.True(t, ctor.Synthesized)
		assert.Equal(t, codemodel.Public, ctor.Access)
	}
	assert.True(t, point.HasNonPrivateConstructor())
	assert.True(t, point.HasCopyConstructor())
	assert.Equal(t, "Point(const Point&)", ctors[1].MinimalSignature())

	handle := findClass(t, result, "Handle")
	require.Len(t, handle.Constructors(), 1)
	assert.False(t, handle.HasCopyConstructor())
}

func TestBuild_PrivateConstructorOnly(t *testing.T) {
	tree := `
classes:
  - name: Singleton
    functions:
      - name: Singleton
        access: private
      - name: instance
        static: true
        return_type: Singleton*
`
	result := build(t, tree, `<object-type name="Singleton"/>`)
	singleton := findClass(t, result, "Singleton")

	assert.False(t, singleton.HasNonPrivateConstructor())
	assert.True(t, singleton.HasPrivateConstructor())
	require.Len(t, singleton.Constructors(), 1)
	assert.False(t, singleton.Constructors()[0].Synthesized)
	assert.True(t, findFunction(t, singleton, "instance").ReturnType.IsObject())
}

func TestBuild_GlobalAddedFunctionAppearsOnce(t *testing.T) {
	tree := `
classes:
  - name: Point
`
	result := build(t, tree, `
<value-type name="Point"/>
<add-function signature="globalHelper(int value = 3)" return-type="void"/>
<add-function signature="globalHelper(int)" return-type="void"/>
`)

	helpers := result.FindGlobalFunctions("globalHelper")
	require.Len(t, helpers, 1)
	assert.True(t, helpers[0].UserAdded)
	assert.Nil(t, helpers[0].ReturnType)
	assert.Equal(t, "3", helpers[0].Arguments[0].Default)

	assert.Empty(t, findClass(t, result, "Point").FindFunctions("globalHelper"))
	assert.Len(t, result.Diagnostics.ByCode(errors.WarnDuplicateAddedFunction), 1)
}

func TestBuild_AddedMemberFunction(t *testing.T) {
	tree := `
classes:
  - name: Url
    functions:
      - name: isEmpty
        return_type: bool
        const: true
`
	result := build(t, tree, `
<value-type name="Url">
  <add-function signature="isLocal() const" return-type="bool"/>
  <add-function signature="isEmpty() const" return-type="bool"/>
  <add-function signature="Url(int port)"/>
  <add-function signature="later()" since="2.0"/>
</value-type>
`, apiVersion("1.0"))
	url := findClass(t, result, "Url")

	isLocal := findFunction(t, url, "isLocal")
	assert.True(t, isLocal.UserAdded)
	assert.True(t, isLocal.Constant)
	assert.True(t, isLocal.ReturnType.IsPrimitive())

	require.Len(t, url.FindFunctions("isEmpty"), 1)
	assert.False(t, url.FindFunctions("isEmpty")[0].UserAdded)
	assert.Len(t, result.Diagnostics.ByCode(errors.WarnDuplicateAddedFunction), 1)

	ctors := url.Constructors()
	require.Len(t, ctors, 2, "the added constructor plus the implicit copy constructor")
	assert.True(t, ctors[0].UserAdded)
	require.Len(t, url.ImplicitConversions(), 1)

	assert.Empty(t, url.FindFunctions("later"))
}

func TestBuild_ConversionOperators(t *testing.T) {
	tree := `
classes:
  - name: A
  - name: B
    functions:
      - name: operator A
        kind: conversion-operator
        const: true
`
	t.Run("declared", func(t *testing.T) {
		result := build(t, tree, `<value-type name="A"/><value-type name="B"/>`)
		a := findClass(t, result, "A")
		require.Len(t, a.ExternalConversionOperators(), 1)
		op := a.ExternalConversionOperators()[0]
		assert.Same(t, findClass(t, result, "B"), op.Owner)
		assert.Same(t, a.Entry, op.ReturnType.Entry)
		assert.Len(t, a.ImplicitConversions(), 1)
	})

	t.Run("removed", func(t *testing.T) {
		result := build(t, tree, `
<value-type name="A"/>
<value-type name="B">
  <modify-function signature="operator A() const" remove="all"/>
</value-type>
`)
		a := findClass(t, result, "A")
		assert.Empty(t, a.ExternalConversionOperators())
		assert.Empty(t, a.ImplicitConversions())
		assert.True(t, findFunction(t, findClass(t, result, "B"), "operator A").Removed)
		assert.Empty(t, result.Diagnostics.ByCode(errors.WarnUnmatchedModification))
	})
}

func TestBuild_ArgumentRenameKeepsOriginalDefault(t *testing.T) {
	tree := `
classes:
  - name: Url
    functions:
      - name: setPort
        arguments:
          - name: port
            type: int
            default: "80"
`
	result := build(t, tree, `
<value-type name="Url">
  <modify-function signature="setPort(int)">
    <modify-argument index="1">
      <rename to="portNumber"/>
      <replace-default-expression with="443"/>
    </modify-argument>
  </modify-function>
</value-type>
`)
	setPort := findFunction(t, findClass(t, result, "Url"), "setPort")
	arg := setPort.Arguments[0]
	assert.Equal(t, "portNumber", arg.Name)
	assert.Equal(t, "port", arg.OriginalName)
	assert.Equal(t, "443", arg.Default)
	assert.Equal(t, "80", arg.OriginalDefault)
	assert.True(t, arg.DefaultModified())
	assert.True(t, setPort.HasModification(typesystem.ModArguments))
}

func TestBuild_APIVersionExcludesEntries(t *testing.T) {
	tree := `
classes:
  - name: Widget
  - name: Window
    functions:
      - name: setCentral
        arguments:
          - type: Widget*
      - name: show
`
	rules := `
<object-type name="Widget" since="1.1"/>
<object-type name="Window">
  <modify-function signature="show()" rename="display" since="1.1"/>
</object-type>
`
	t.Run("older API", func(t *testing.T) {
		result := build(t, tree, rules, apiVersion("1.0"))

		assert.Nil(t, result.FindClass("Widget"))
		rejections := result.RejectionsOf("Widget")
		require.Len(t, rejections, 1)
		assert.Equal(t, APIIncompatible, rejections[0].Reason)

		window := findClass(t, result, "Window")
		assert.Empty(t, window.FindFunctions("setCentral"))
		rejections = result.RejectionsOf("Window::setCentral(Widget*)")
		require.Len(t, rejections, 1)
		assert.Equal(t, UnmatchedArgumentType, rejections[0].Reason)

		assert.Equal(t, "show", findFunction(t, window, "show").Name)
		assert.Empty(t, result.Diagnostics.ByCode(errors.WarnUnmatchedModification))
	})

	t.Run("current API", func(t *testing.T) {
		result := build(t, tree, rules, apiVersion("1.1"))
		assert.NotNil(t, result.FindClass("Widget"))
		window := findClass(t, result, "Window")
		assert.Len(t, window.FindFunctions("setCentral"), 1)
		assert.Len(t, window.FindFunctions("display"), 1)
	})
}

func TestBuild_ArraySizeFromEnum(t *testing.T) {
	tree := `
enums:
  - values:
      - name: N
        value: "2"
classes:
  - name: Matrix
    fields:
      - name: data
        type: double[N]
      - name: raw
        type: int[]
`
	result := build(t, tree, `<value-type name="Matrix"/>`)
	matrix := findClass(t, result, "Matrix")

	data := matrix.FindField("data")
	require.NotNil(t, data)
	assert.True(t, data.Type.IsArray())
	assert.Equal(t, 2, data.Type.ArrayCount)
	assert.Equal(t, "double", data.Type.ArrayElement.Entry.QualifiedName())

	raw := matrix.FindField("raw")
	require.NotNil(t, raw)
	assert.Equal(t, -1, raw.Type.ArrayCount)

	// the anonymous enum itself has no entry
	require.Len(t, result.RejectionsOf("(anonymous N)"), 1)
}

func TestBuild_SiblingNamespaces(t *testing.T) {
	tree := `
namespaces:
  - name: One
    classes:
      - name: Url
    functions:
      - name: parse
        arguments:
          - type: const Url &
        return_type: bool
  - name: Two
    classes:
      - name: Url
        functions:
          - name: fromOne
            arguments:
              - type: One::Url
          - name: copy
            arguments:
              - type: const Url &
`
	result := build(t, tree, `
<namespace-type name="One"><value-type name="Url"/></namespace-type>
<namespace-type name="Two"><value-type name="Url"/></namespace-type>
`)
	one := findClass(t, result, "One::Url")
	two := findClass(t, result, "Two::Url")
	assert.NotSame(t, one, two)

	parse := findFunction(t, findClass(t, result, "One"), "parse")
	assert.True(t, parse.Static)
	assert.Same(t, one.Entry, parse.Arguments[0].Type.Entry)

	assert.Same(t, one.Entry, findFunction(t, two, "fromOne").Arguments[0].Type.Entry)
	assert.Same(t, two.Entry, findFunction(t, two, "copy").Arguments[0].Type.Entry)
	assert.Same(t, findClass(t, result, "Two"), two.Enclosing)
}

func TestBuild_Rejections(t *testing.T) {
	tree := `
classes:
  - name: Known
    functions:
      - name: use
        arguments:
          - type: Unknown
      - name: make
        return_type: Unknown
    fields:
      - name: broken
        type: Unknown
  - name: NotRegistered
  - name: Internal
  - name: Disabled
  - name: Primitive
  - name: Outer
    classes:
      - name: Inner
functions:
  - name: freeFunction
  - name: compute
    arguments:
      - type: int
`
	result := build(t, tree, `
<value-type name="Known"/>
<rejection class="Internal"/>
<object-type name="Disabled" generate="no"/>
<primitive-type name="Primitive"/>
<value-type name="Outer::Inner"/>
<function signature="compute(int)"/>
`)

	tests := []struct {
		item   string
		reason Reason
	}{
		{"NotRegistered", NotInTypeSystem},
		{"Internal", RejectedByRule},
		{"Disabled", GenerationDisabled},
		{"Primitive", RedefinedToNotClass},
		{"Outer", NotInTypeSystem},
		{"Known::use(Unknown)", UnmatchedArgumentType},
		{"Known::make()", UnmatchedReturnType},
		{"Known::broken", UnmatchedFieldType},
		{"freeFunction()", NotInTypeSystem},
	}
	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			rejections := result.RejectionsOf(tt.item)
			require.Len(t, rejections, 1)
			assert.Equal(t, tt.reason, rejections[0].Reason)
			assert.NotEmpty(t, result.Diagnostics.ByCode(tt.reason.Code()))
		})
	}

	assert.Equal(t, Resolved, result.Status(ClassItem, "Known"))
	assert.Equal(t, Rejected, result.Status(ClassItem, "Internal"))
	assert.Equal(t, Pending, result.Status(ClassItem, "Nowhere"))

	inner := findClass(t, result, "Outer::Inner")
	assert.Nil(t, inner.Enclosing)

	require.Len(t, result.FindGlobalFunctions("compute"), 1)
	assert.Empty(t, result.FindGlobalFunctions("freeFunction"))
}

func TestBuild_DroppedEntries(t *testing.T) {
	tree := `
classes:
  - name: Legacy
  - name: Current
    functions:
      - name: upgrade
        arguments:
          - type: const Legacy &
`
	result := build(t, tree, `<value-type name="Legacy"/><value-type name="Current"/>`,
		func(r *typesystem.Registry) { _ = r.SetDropTypeEntries([]string{"Legacy", "Nothing"}) })

	assert.Nil(t, result.FindClass("Legacy"))
	rejections := result.RejectionsOf("Legacy")
	require.Len(t, rejections, 1)
	assert.Equal(t, GenerationDisabled, rejections[0].Reason)
	assert.Empty(t, findClass(t, result, "Current").FindFunctions("upgrade"))

	dropped := result.Diagnostics.ByCode(errors.WarnUnmatchedDropEntry)
	require.Len(t, dropped, 1)
	assert.Equal(t, "Nothing", dropped[0].Item)
}

func TestBuild_EnumValues(t *testing.T) {
	tree := `
namespaces:
  - name: NS
    enums:
      - name: Early
        values:
          - name: First
            value: "Final + 1"
          - name: Second
      - name: Late
        values:
          - name: Final
            value: "5"
          - name: Hidden
      - values:
          - name: AnonA
            value: "Late::Final * 2"
          - name: AnonB
      - name: Broken
        values:
          - name: Bad
            value: "Missing + 1"
          - name: AfterBad
`
	result := build(t, tree, `
<namespace-type name="NS">
  <enum-type name="Early"/>
  <enum-type name="Late">
    <reject-enum-value name="Hidden"/>
    <reject-enum-value name="Ghost"/>
  </enum-type>
  <enum-type identified-by-value="AnonB"/>
  <enum-type name="Broken"/>
</namespace-type>
`)

	early := result.FindEnum("NS::Early")
	require.NotNil(t, early)
	assert.Equal(t, int64(6), early.FindValue("First").Value)
	assert.Equal(t, int64(7), early.FindValue("Second").Value)

	late := result.FindEnum("NS::Late")
	require.NotNil(t, late)
	require.Len(t, late.Values, 1)
	assert.Nil(t, late.FindValue("Hidden"))
	assert.Len(t, result.Diagnostics.ByCode(errors.WarnUnknownRejectedEnumValue), 1)

	anon := result.FindEnum("NS::AnonB")
	require.NotNil(t, anon)
	assert.True(t, anon.Anonymous)
	assert.Equal(t, int64(10), anon.FindValue("AnonA").Value)
	assert.Equal(t, int64(11), anon.FindValue("AnonB").Value)

	broken := result.FindEnum("NS::Broken")
	require.NotNil(t, broken)
	assert.Equal(t, int64(0), broken.FindValue("Bad").Value)
	assert.Equal(t, int64(1), broken.FindValue("AfterBad").Value)
	assert.Len(t, result.Diagnostics.ByCode(errors.WarnUnevaluatedEnumValue), 1)

	ns := findClass(t, result, "NS")
	assert.Len(t, ns.Enums, 4)
}

func TestBuild_OperatorPlacement(t *testing.T) {
	tree := `
classes:
  - name: Vec
  - name: Stream
functions:
  - name: operator+
    arguments:
      - type: const Vec &
      - type: const Vec &
    return_type: Vec
  - name: operator*
    arguments:
      - type: double
      - type: const Vec &
    return_type: Vec
  - name: operator<<
    arguments:
      - type: Stream &
      - type: const Vec &
    return_type: Stream &
  - name: operator-
    arguments:
      - type: int
      - type: double
    return_type: int
`
	result := build(t, tree, `<value-type name="Vec"/><object-type name="Stream"/>`)
	vec := findClass(t, result, "Vec")
	stream := findClass(t, result, "Stream")

	plus := findFunction(t, vec, "operator+")
	assert.False(t, plus.ReverseOperator)
	assert.True(t, plus.Constant)
	require.Len(t, plus.Arguments, 1)

	times := findFunction(t, vec, "operator*")
	assert.True(t, times.ReverseOperator)
	require.Len(t, times.Arguments, 1)
	assert.True(t, times.Arguments[0].Type.IsPrimitive())

	shift := findFunction(t, vec, "operator<<")
	assert.True(t, shift.ReverseOperator)
	assert.Same(t, stream.Entry, shift.Arguments[0].Type.Entry)
	assert.Empty(t, stream.FindFunctions("operator<<"))

	rejections := result.RejectionsOf("operator-(int,double)")
	require.Len(t, rejections, 1)
	assert.Equal(t, UnmatchedOperator, rejections[0].Reason)
}

func TestBuild_CrossOperatorsFollowOperandOrder(t *testing.T) {
	tree := `
classes:
  - name: A
  - name: B
functions:
  - name: operator*
    arguments:
      - type: const A &
      - type: const B &
    return_type: A
  - name: operator*
    arguments:
      - type: const B &
      - type: const A &
    return_type: B
`
	result := build(t, tree, `<value-type name="A"/><value-type name="B"/>`)
	a := findClass(t, result, "A")
	b := findClass(t, result, "B")

	onA := a.FindFunctions("operator*")
	require.Len(t, onA, 1)
	assert.False(t, onA[0].ReverseOperator)
	require.Len(t, onA[0].Arguments, 1)
	assert.Same(t, b.Entry, onA[0].Arguments[0].Type.Entry)

	onB := b.FindFunctions("operator*")
	require.Len(t, onB, 1)
	assert.False(t, onB[0].ReverseOperator)
	require.Len(t, onB[0].Arguments, 1)
	assert.Same(t, a.Entry, onB[0].Arguments[0].Type.Entry)

	assert.Empty(t, result.FindGlobalFunctions("operator*"))
}

func TestBuild_ModificationPipeline(t *testing.T) {
	tree := `
classes:
  - name: Widget
    functions:
      - name: show
      - name: hide
      - name: resize
        arguments:
          - name: w
            type: int
          - name: h
            type: int
`
	result := build(t, tree, `
<object-type name="Widget">
  <modify-function signature="show()" remove="all"/>
  <modify-function signature="show()" rename="display"/>
  <modify-function signature="hide()" rename="conceal" access="protected"/>
  <modify-function signature="resize(int, int)">
    <modify-argument index="3">
      <rename to="depth"/>
    </modify-argument>
  </modify-function>
  <modify-function signature="missing(int)" rename="gone"/>
</object-type>
`)
	widget := findClass(t, result, "Widget")

	show := findFunction(t, widget, "show")
	assert.True(t, show.Removed)
	assert.Equal(t, "show", show.Name)
	assert.Len(t, result.Diagnostics.ByCode(errors.WarnModificationOfRemoved), 1)

	hide := findFunction(t, widget, "conceal")
	assert.Equal(t, "hide", hide.OriginalName)
	assert.Equal(t, codemodel.Protected, hide.Access)
	assert.Equal(t, codemodel.Public, hide.OriginalAccess)
	assert.True(t, hide.HasModification(typesystem.ModRename))
	assert.True(t, hide.HasModification(typesystem.ModAccess))

	assert.Len(t, result.Diagnostics.ByCode(errors.WarnUnmatchedArgumentModification), 1)

	unmatched := result.Diagnostics.ByCode(errors.WarnUnmatchedModification)
	require.Len(t, unmatched, 1)
	assert.Contains(t, unmatched[0].Item, "missing(int)")
}

func TestBuild_InheritanceAndInterfaceVirtuals(t *testing.T) {
	tree := `
classes:
  - name: Runnable
    functions:
      - name: run
        virtual: true
        pure_virtual: true
  - name: Base
    functions:
      - name: ~Base
        virtual: true
  - name: Task
    bases:
      - name: Base
      - name: Runnable
`
	result := build(t, tree, `
<object-type name="Runnable"/>
<object-type name="Base"/>
<object-type name="Task"/>
`)
	runnable := findClass(t, result, "Runnable")
	base := findClass(t, result, "Base")
	task := findClass(t, result, "Task")

	assert.True(t, runnable.Abstract)
	assert.True(t, base.HasVirtualDestructor)
	assert.Same(t, base, task.BaseClass)
	require.Len(t, task.Interfaces, 1)
	assert.Same(t, runnable, task.Interfaces[0])
	assert.True(t, task.Polymorphic)

	run := findFunction(t, task, "run")
	assert.Same(t, runnable, run.DeclaringClass)
	assert.Same(t, task, run.Owner)
	assert.NotSame(t, findFunction(t, runnable, "run"), run)
}

func TestBuild_InterfaceVirtualTakesClassModifications(t *testing.T) {
	tree := `
classes:
  - name: P
    functions:
      - name: p
        virtual: true
  - name: I
    functions:
      - name: run
        virtual: true
  - name: C
    bases:
      - name: P
      - name: I
`
	result := build(t, tree, `
<object-type name="P"/>
<object-type name="I"/>
<object-type name="C">
  <modify-function signature="run()" rename="execute"/>
</object-type>
`)
	c := findClass(t, result, "C")
	require.Len(t, c.Interfaces, 1)

	execute := findFunction(t, c, "execute")
	assert.Equal(t, "run", execute.OriginalName)
	assert.True(t, execute.HasModification(typesystem.ModRename))
	assert.Nil(t, c.FindFunction("run"))
	assert.Equal(t, "run", findFunction(t, findClass(t, result, "I"), "run").Name)

	assert.Empty(t, result.Diagnostics.ByCode(errors.WarnUnmatchedModification))
}

func TestBuild_TypedefInstantiation(t *testing.T) {
	tree := `
classes:
  - name: QList
    template_parameters: [T]
    functions:
      - name: QList
      - name: append
        arguments:
          - name: value
            type: const T &
      - name: at
        arguments:
          - name: i
            type: int
        return_type: const T &
        const: true
typedefs:
  - name: IntList
    type: QList<int>
`
	result := build(t, tree, `
<container-type name="QList" type="list"/>
<value-type name="IntList">
  <modify-function signature="at(int) const" rename="value"/>
</value-type>
`)
	list := result.Templates.Find("QList")
	require.NotNil(t, list)
	intList := result.Classes.Find("IntList")
	require.NotNil(t, intList)

	assert.True(t, intList.TypedefInstantiation)
	assert.Same(t, list, intList.TemplateBase)
	require.Len(t, intList.TemplateArguments, 1)
	assert.Equal(t, "int", intList.TemplateArguments[0].String())

	appendFn := findFunction(t, intList, "append")
	assert.Same(t, list, appendFn.DeclaringClass)
	assert.Equal(t, "const int&", appendFn.Arguments[0].Type.String())
	assert.Equal(t, "append(const int&)", appendFn.MinimalSignature())

	at := findFunction(t, intList, "value")
	assert.Equal(t, "const int&", at.ReturnType.String())
	assert.Equal(t, "at", findFunction(t, list, "at").Name)

	for _, ctor := range intList.Constructors() {
		assert.True(t, ctor.Synthesized)
	}
	assert.Empty(t, result.Diagnostics.ByCode(errors.WarnUnmatchedModification))
}

func TestBuild_TypedefInstantiationCopiesAddedFunctions(t *testing.T) {
	tree := `
classes:
  - name: Box
    template_parameters: [T]
    functions:
      - name: get
        return_type: T
        const: true
typedefs:
  - name: IntBox
    type: Box<int>
`
	result := build(t, tree, `
<value-type name="Box">
  <add-function signature="isEmpty() const" return-type="bool"/>
</value-type>
<value-type name="IntBox"/>
`)
	box := findClass(t, result, "Box")
	intBox := findClass(t, result, "IntBox")
	require.Same(t, box, intBox.TemplateBase)

	assert.True(t, findFunction(t, box, "isEmpty").UserAdded)
	findFunction(t, intBox, "get")

	require.Len(t, intBox.FindFunctions("isEmpty"), 1)
	isEmpty := intBox.FindFunctions("isEmpty")[0]
	assert.True(t, isEmpty.UserAdded)
	assert.True(t, isEmpty.Constant)
	assert.Same(t, box, isEmpty.DeclaringClass)
	assert.Same(t, intBox, isEmpty.Owner)

	assert.Empty(t, result.Diagnostics.ByCode(errors.WarnDuplicateAddedFunction))
}

func TestBuild_DependencyOrder(t *testing.T) {
	tree := `
classes:
  - name: Derived
    bases:
      - name: Base
  - name: User
    fields:
      - name: d
        type: Derived
  - name: Base
`
	result := build(t, tree, `
<value-type name="Derived"/>
<value-type name="User"/>
<value-type name="Base"/>
`)
	assert.Equal(t, []string{"Base", "Derived", "User"}, names(result.Classes))
	assert.Empty(t, result.BrokenDependencies)
}

func TestBuild_IsDeterministic(t *testing.T) {
	tree := `
namespaces:
  - name: NS
    classes:
      - name: B
        bases:
          - name: A
      - name: A
      - name: C
`
	rules := `
<namespace-type name="NS">
  <value-type name="A"/>
  <value-type name="B"/>
  <value-type name="C"/>
</namespace-type>
`
	first := build(t, tree, rules)
	second := build(t, tree, rules)
	assert.Equal(t, names(first.Classes), names(second.Classes))
	assert.NotEqual(t, first.RunID, second.RunID)
}
