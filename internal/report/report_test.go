package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/typesystem"
)

const tree = `
enums:
  - name: Color
    values:
      - name: Red
      - name: Green
classes:
  - name: Base
    functions:
      - name: area
        return_type: double
        virtual: true
        const: true
  - name: Shape
    bases:
      - name: Base
    functions:
      - name: setColor
        arguments:
          - name: c
            type: Color
      - name: scaled
        return_type: Shape
        arguments:
          - name: factor
            type: double
            default: "1.0"
  - name: Hidden
`

const rules = `<?xml version="1.0"?>
<typesystem package="Shapes">
  <enum-type name="Color"/>
  <object-type name="Base"/>
  <value-type name="Shape">
    <modify-function signature="setColor(Color)" rename="paint"/>
  </value-type>
</typesystem>
`

func buildResult(t *testing.T) *builder.Result {
	t.Helper()
	model, err := codemodel.Parse([]byte(tree))
	require.NoError(t, err)
	reg := typesystem.NewRegistry()
	require.NoError(t, typesystem.NewLoader(reg, nil).Load(strings.NewReader(rules), "shapes.xml"))
	result, err := builder.New(reg).Build(model)
	require.NoError(t, err)
	return result
}

func findClass(m *Metamodel, name string) *ClassReport {
	for i := range m.Classes {
		if m.Classes[i].QualifiedName == name {
			return &m.Classes[i]
		}
	}
	return nil
}

func findFunction(c *ClassReport, name string) *FunctionReport {
	for i := range c.Functions {
		if c.Functions[i].Name == name {
			return &c.Functions[i]
		}
	}
	return nil
}

func TestFromResult_Nil(t *testing.T) {
	assert.Nil(t, FromResult(nil))
}

func TestFromResult(t *testing.T) {
	result := buildResult(t)
	m := FromResult(result)
	require.NotNil(t, m)

	assert.Equal(t, result.RunID, m.RunID)
	assert.Len(t, m.Classes, len(result.Classes))

	shape := findClass(m, "Shape")
	require.NotNil(t, shape)
	assert.Equal(t, "Shapes", shape.Package)
	assert.Equal(t, "Base", shape.BaseClass)
	assert.True(t, shape.Copyable)
	assert.True(t, shape.Polymorphic)

	paint := findFunction(shape, "paint")
	require.NotNil(t, paint)
	assert.Equal(t, "setColor", paint.OriginalName)
	require.Len(t, paint.Arguments, 1)
	assert.Equal(t, "Color", paint.Arguments[0].Type)
	assert.NotEmpty(t, paint.Modifications)

	scaled := findFunction(shape, "scaled")
	require.NotNil(t, scaled)
	assert.Equal(t, "Shape", scaled.ReturnType)
	require.Len(t, scaled.Arguments, 1)
	assert.Equal(t, "1.0", scaled.Arguments[0].Default)

	require.Len(t, m.GlobalEnums, 1)
	assert.Equal(t, "Color", m.GlobalEnums[0].QualifiedName)
	require.Len(t, m.GlobalEnums[0].Values, 2)
	assert.Equal(t, EnumValueReport{Name: "Green", Value: 1}, m.GlobalEnums[0].Values[1])

	var hidden *RejectionReport
	for i := range m.Rejections {
		if m.Rejections[i].Item == "Hidden" {
			hidden = &m.Rejections[i]
		}
	}
	require.NotNil(t, hidden)
	assert.Equal(t, builder.NotInTypeSystem.String(), hidden.Reason)
	assert.Equal(t, string(builder.NotInTypeSystem.Code()), hidden.Code)
}

func TestSerialize_UsesSnakeCaseKeys(t *testing.T) {
	data, err := Serialize(FromResult(buildResult(t)))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "run_id")
	assert.Contains(t, raw, "classes")
	assert.Contains(t, raw, "global_enums")
	assert.Contains(t, string(data), `"qualified_name": "Shape"`)
	assert.Contains(t, string(data), `"original_name": "setColor"`)
}

func TestSerialize_IsDeterministic(t *testing.T) {
	m := FromResult(buildResult(t))
	first, err := Serialize(m)
	require.NoError(t, err)
	second, err := Serialize(m)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSerialize_Nil(t *testing.T) {
	_, err := Serialize(nil)
	assert.Error(t, err)

	_, err = Deserialize(nil)
	assert.Error(t, err)
}

func TestCompressDecompress(t *testing.T) {
	data, err := Serialize(FromResult(buildResult(t)))
	require.NoError(t, err)

	compressed, err := Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)

	empty, err := Compress([]byte{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Compress(nil)
	assert.Error(t, err)
	_, err = Decompress([]byte("not gzip"))
	assert.Error(t, err)
}

func TestWriteAndReadFile(t *testing.T) {
	m := FromResult(buildResult(t))
	dir := t.TempDir()

	tests := []struct {
		name  string
		path  string
		write func(*Metamodel, string) error
	}{
		{"plain", filepath.Join(dir, "out", "metamodel.json"), WriteToFile},
		{"compressed", filepath.Join(dir, "out", "metamodel.json.gz"), WriteCompressedToFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.write(m, tt.path))
			_, err := os.Stat(tt.path)
			require.NoError(t, err)

			read, err := ReadFile(tt.path)
			require.NoError(t, err)
			assert.Equal(t, m.RunID, read.RunID)
			assert.Len(t, read.Classes, len(m.Classes))
			assert.Equal(t, m.GlobalEnums, read.GlobalEnums)
		})
	}

	assert.Error(t, WriteToFile(nil, filepath.Join(dir, "nil.json")))
	assert.Error(t, WriteToFile(m, ""))
	_, err := ReadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
