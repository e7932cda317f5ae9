package typesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
)

func TestNormalizeSignature(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"foo(int, const QString & text = QString())", "foo(int,const QString&)"},
		{"bar() const", "bar()const"},
		{"baz(void)", "baz()"},
		{"operator==(const A &, const B&)", "operator==(const A&,const B&)"},
		{"operator()(int)", "operator()(int)"},
		{"operator const char *()", "operator const char*()"},
		{"insert(QMap<int, QString> map, unsigned)", "insert(QMap<int,QString>,unsigned int)"},
		{"  spaced ( int )  ", "spaced(int)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeSignature(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeSignature_Errors(t *testing.T) {
	for _, input := range []string{"noparens", "foo(int", "foo(int) volatile", "(int)", "foo(Bar<)"} {
		_, err := NormalizeSignature(input)
		assert.Error(t, err, input)
	}
}

func TestFunctionModification_Matches(t *testing.T) {
	exact, err := NewFunctionModification("setHost(const QString &)")
	require.NoError(t, err)
	assert.False(t, exact.IsPattern())
	assert.True(t, exact.Matches("setHost(const QString&)"))
	assert.False(t, exact.Matches("setHost(QString)"))

	pattern, err := NewFunctionModification("^set.*")
	require.NoError(t, err)
	assert.True(t, pattern.IsPattern())
	assert.True(t, pattern.Matches("setPort(int)"))
	assert.False(t, pattern.Matches("port()const"))

	_, err = NewFunctionModification("^set(")
	assert.Error(t, err)
}

func TestFunctionModification_AppliesTo(t *testing.T) {
	m, err := NewFunctionModification("f()")
	require.NoError(t, err)
	m.Since = MustParseVersion("1.1")

	assert.False(t, m.AppliesTo(MustParseVersion("1.0")))
	assert.True(t, m.AppliesTo(MustParseVersion("1.1")))
	assert.True(t, m.AppliesTo(Version{}))
}

func TestFunctionModification_KindsInPipelineOrder(t *testing.T) {
	access := codemodel.Private
	m := &FunctionModification{
		CodeSnips:             []CodeSnip{{Code: "x"}},
		ArgumentModifications: []*ArgumentModification{{Index: 1}},
		Access:                &access,
		RenamedTo:             "other",
		Removed:               true,
	}
	assert.Equal(t, []ModificationKind{ModRemove, ModRename, ModAccess, ModArguments, ModCodeInjection}, m.Kinds())
	assert.Equal(t, "modify-argument", ModArguments.String())
}

func TestParseAddedFunction(t *testing.T) {
	f, err := ParseAddedFunction("append(const QString & text, int count = 1)", "bool")
	require.NoError(t, err)

	assert.Equal(t, "append", f.Name)
	require.Len(t, f.Arguments, 2)
	assert.Equal(t, "text", f.Arguments[0].Name)
	assert.Equal(t, "const QString&", f.Arguments[0].Type.String())
	assert.Equal(t, "count", f.Arguments[1].Name)
	assert.Equal(t, "1", f.Arguments[1].DefaultValue)
	assert.Equal(t, "bool", f.ReturnType.String())
	assert.Equal(t, "append(const QString&,int)", f.Signature())

	f, err = ParseAddedFunction("isEmpty() const", "void")
	require.NoError(t, err)
	assert.True(t, f.Constant)
	assert.True(t, f.ReturnType.IsEmpty(), "void return is stored as no return type")
	assert.Equal(t, "isEmpty()const", f.Signature())

	for _, bad := range []string{"foo(", "foo(int,, int)", "", "foo() bar"} {
		_, err := ParseAddedFunction(bad, "")
		assert.Error(t, err, bad)
	}
	_, err = ParseAddedFunction("foo()", "QList<")
	assert.Error(t, err)
}
