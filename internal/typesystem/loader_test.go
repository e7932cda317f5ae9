package typesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/errors"
)

const coreTypesystem = `<?xml version="1.0"?>
<typesystem package="Core">
  <value-type name="QString"/>
</typesystem>
`

const sampleTypesystem = `<?xml version="1.0"?>
<typesystem package="Sample">
  <load-typesystem name="core.xml" generate="no"/>
  <primitive-type name="qreal"/>
  <namespace-type name="NS">
    <value-type name="Url" copyable="yes">
      <enum-type name="Mode" flags="Modes"/>
      <modify-function signature="setHost(const QString &amp;)" rename="setHostName">
        <modify-argument index="1">
          <rename to="hostName"/>
          <replace-default-expression with="QString()"/>
        </modify-argument>
      </modify-function>
      <modify-function signature="setPort(int)" since="2.0">
        <modify-argument index="1" invalidate-after-use="yes">
          <define-ownership owner="target"/>
          <reference-count action="set" variable-name="port"/>
          <no-null-pointer default-value="0"/>
        </modify-argument>
      </modify-function>
      <add-function signature="isLocal() const" return-type="bool"/>
      <modify-field name="port" write="no"/>
    </value-type>
    <function signature="parse(const QString&amp;)"/>
  </namespace-type>
  <object-type name="Widget" since="1.1"/>
  <enum-type identified-by-value="AnonValue">
    <reject-enum-value name="Hidden"/>
  </enum-type>
  <container-type name="QList" type="list"/>
  <smart-pointer-type name="QSharedPointer" getter="data"/>
  <typedef-type name="IntList" source="QList&lt;int&gt;"/>
  <add-function signature="globalHelper(int value = 3)" return-type="void">
    <inject-code class="native" position="end">helper();</inject-code>
  </add-function>
  <modify-function signature="^debug.*" remove="all"/>
  <rejection class="Internal"/>
  <custom-type name="PyObject">
    <conversion-rule>
      <native-to-target>return %in;</native-to-target>
      <target-to-native replace="no">
        <add-conversion type="PyLong" check="PyLong_Check(%in)">%out = PyLong_AsLong(%in);</add-conversion>
      </target-to-native>
    </conversion-rule>
  </custom-type>
</typesystem>
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoadFile_Sample(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"core.xml":   coreTypesystem,
		"sample.xml": sampleTypesystem,
	})
	r := NewRegistry()
	require.NoError(t, LoadFile(r, filepath.Join(dir, "sample.xml"), nil))

	t.Run("reference only include", func(t *testing.T) {
		qstring := r.Find("QString")
		require.NotNil(t, qstring)
		assert.True(t, qstring.ReferenceOnly)
		assert.False(t, qstring.GenerateCode())
		assert.Equal(t, "Core", qstring.Package)
	})

	t.Run("nested complex types", func(t *testing.T) {
		url := r.Find("NS::Url")
		require.NotNil(t, url)
		assert.True(t, url.IsValue())
		assert.Same(t, r.Find("NS"), url.Parent)
		assert.Equal(t, CopyableSet, url.Copyable)
		assert.Equal(t, "Sample", url.Package)
		assert.True(t, url.GenerateCode())
	})

	t.Run("enum flags", func(t *testing.T) {
		mode := r.FindEnum("NS::Url::Mode")
		flags := r.FindFlags("NS::Url::Modes")
		require.NotNil(t, mode)
		require.NotNil(t, flags)
		assert.Same(t, mode, flags.Target)
		assert.Same(t, flags, mode.Target)
	})

	t.Run("function modifications", func(t *testing.T) {
		url := r.Find("NS::Url")
		require.Len(t, url.FunctionModifications, 2)

		setHost := url.FunctionModifications[0]
		assert.Equal(t, "setHost(const QString&)", setHost.Signature)
		assert.Equal(t, "setHostName", setHost.RenamedTo)
		require.Len(t, setHost.ArgumentModifications, 1)
		assert.Equal(t, 1, setHost.ArgumentModifications[0].Index)
		assert.Equal(t, "hostName", setHost.ArgumentModifications[0].RenamedTo)
		assert.Equal(t, "QString()", setHost.ArgumentModifications[0].ReplacedDefault)

		setPort := url.FunctionModifications[1]
		assert.Equal(t, "2.0.0", setPort.Since.String())
		am := setPort.ArgumentModifications[0]
		assert.True(t, am.InvalidateAfterUse)
		assert.Equal(t, OwnershipTarget, am.Ownership)
		assert.Equal(t, []ReferenceCount{{Action: RefCountSet, VariableName: "port"}}, am.ReferenceCounts)
		assert.True(t, am.NoNullPointer)
		assert.Equal(t, "0", am.NullPointerDefault)
	})

	t.Run("added functions and fields", func(t *testing.T) {
		url := r.Find("NS::Url")
		require.Len(t, url.AddedFunctions, 1)
		assert.Equal(t, "isLocal()const", url.AddedFunctions[0].Signature())
		assert.Equal(t, "bool", url.AddedFunctions[0].ReturnType.String())

		port := url.FindFieldModification("port")
		require.NotNil(t, port)
		assert.True(t, port.Readable)
		assert.False(t, port.Writable)
	})

	t.Run("global rules", func(t *testing.T) {
		assert.NotNil(t, r.FindFunction("NS::parse"))

		globals := r.GlobalAddedFunctions()
		require.Len(t, globals, 1)
		assert.Equal(t, "globalHelper", globals[0].Name)
		assert.Equal(t, "3", globals[0].Arguments[0].DefaultValue)
		require.Len(t, globals[0].CodeSnips, 1)
		assert.Equal(t, CodeSnip{Class: "native", Position: "end", Code: "helper();"}, globals[0].CodeSnips[0])

		mods := r.GlobalModifications()
		require.Len(t, mods, 1)
		assert.True(t, mods[0].IsPattern())
		assert.True(t, mods[0].Removed)

		assert.True(t, r.IsClassRejected("Internal"))
	})

	t.Run("other kinds", func(t *testing.T) {
		anon := r.FindEnumByValue("", "AnonValue")
		require.NotNil(t, anon)
		assert.True(t, anon.IsEnumValueRejected("Hidden"))

		assert.Equal(t, ListContainer, r.FindContainer("QList").ContainerKind)
		assert.Equal(t, "data", r.FindSmartPointer("QSharedPointer").SmartPointerGetter)
		assert.Equal(t, "QList<int>", r.Find("IntList").Source)
		assert.NotNil(t, r.FindPrimitive("qreal"))

		rule := r.Find("PyObject").ConversionRule
		require.NotNil(t, rule)
		assert.Equal(t, "return %in;", rule.NativeToTarget)
		assert.False(t, rule.ReplaceOriginal)
		require.Len(t, rule.TargetToNative, 1)
		assert.Equal(t, "PyLong", rule.TargetToNative[0].SourceType)
		assert.Equal(t, "PyLong_Check(%in)", rule.TargetToNative[0].Check)
	})

	t.Run("since attribute", func(t *testing.T) {
		require.NoError(t, r.SetAPIVersion(MustParseVersion("1.0")))
		_, status := r.Lookup("Widget")
		assert.Equal(t, VersionExcluded, status)
		require.NoError(t, r.SetAPIVersion(Version{}))
	})
}

func TestLoadFile_IncludeCycle(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.xml": `<typesystem><load-typesystem name="b.xml"/><value-type name="A"/></typesystem>`,
		"b.xml": `<typesystem><load-typesystem name="a.xml"/><value-type name="B"/></typesystem>`,
	})
	r := NewRegistry()
	loader := NewLoader(r, nil)
	require.NoError(t, loader.LoadFile(filepath.Join(dir, "a.xml")))
	assert.NotNil(t, r.Find("A"))
	assert.NotNil(t, r.Find("B"))

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(abs, "a.xml"), filepath.Join(abs, "b.xml")}, loader.LoadedFiles())
}

func TestLoadFile_SearchPathsAndSnippetFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main/main.xml": `<typesystem>
  <load-typesystem name="shared.xml"/>
  <custom-type name="Handle"><conversion-rule file="handle.snip"/></custom-type>
</typesystem>`,
		"main/handle.snip":  "\nreturn wrap(%in);\n",
		"shared/shared.xml": `<typesystem><value-type name="Shared"/></typesystem>`,
	})
	r := NewRegistry()
	err := LoadFile(r, filepath.Join(dir, "main", "main.xml"), nil, filepath.Join(dir, "shared"))
	require.NoError(t, err)

	assert.NotNil(t, r.Find("Shared"))
	assert.Equal(t, "return wrap(%in);", r.Find("Handle").ConversionRule.NativeToTarget)
}

func TestLoad_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		code errors.ErrorCode
	}{
		{"malformed xml", `<typesystem><value-type name="A"></typesystem>`, errors.ErrMalformedRuleset},
		{"wrong root", `<rules/>`, errors.ErrMalformedRuleset},
		{"unknown element", `<typesystem><bogus-type name="A"/></typesystem>`, errors.ErrMalformedRuleset},
		{"bad since", `<typesystem><value-type name="A" since="one"/></typesystem>`, errors.ErrInvalidVersion},
		{"bad added function", `<typesystem><add-function signature="broken(" /></typesystem>`, errors.ErrInvalidAddedFunction},
		{"missing include", `<typesystem><load-typesystem name="nowhere.xml"/></typesystem>`, errors.ErrRulesetNotFound},
		{"missing name", `<typesystem><object-type/></typesystem>`, errors.ErrInvalidAttribute},
		{"bad bool", `<typesystem><value-type name="A" copyable="maybe"/></typesystem>`, errors.ErrInvalidAttribute},
		{"bad regex", `<typesystem><modify-function signature="^set(" /></typesystem>`, errors.ErrInvalidPattern},
		{"bad argument index", `<typesystem><modify-function signature="f(int)"><modify-argument index="x"/></modify-function></typesystem>`, errors.ErrInvalidAttribute},
		{"duplicate entry", `<typesystem><value-type name="A"/><object-type name="A"/></typesystem>`, errors.ErrDuplicateTypeEntry},
		{"bad typedef source", `<typesystem><typedef-type name="T" source="QList&lt;"/></typesystem>`, errors.ErrInvalidTypeSpelling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := NewLoader(r, nil).Load(strings.NewReader(tt.xml), filepath.Join(t.TempDir(), "ts.xml"))
			require.Error(t, err)
			assert.Equal(t, tt.code, diagnosticCode(t, err))
		})
	}
}

func TestLoad_ErrorLines(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		line int
	}{
		{"top level entry", "<typesystem>\n  <value-type name=\"A\"/>\n  <object-type/>\n</typesystem>", 3},
		{"entry child", "<typesystem>\n  <object-type name=\"A\">\n\n    <modify-function/>\n  </object-type>\n</typesystem>", 4},
		{"duplicate entry", "<typesystem>\n  <value-type name=\"A\"/>\n  <value-type name=\"A\"/>\n</typesystem>", 3},
		{"syntax error", "<typesystem>\n  <value-type name=\"A\">\n</typesystem>", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "ts.xml")
			err := NewLoader(NewRegistry(), nil).Load(strings.NewReader(tt.xml), file)
			require.Error(t, err)

			var d *errors.Diagnostic
			require.ErrorAs(t, err, &d)
			assert.Equal(t, file, d.Location.File)
			assert.Equal(t, tt.line, d.Location.Line)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	err := LoadFile(NewRegistry(), filepath.Join(t.TempDir(), "absent.xml"), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrRulesetNotFound, diagnosticCode(t, err))
}
