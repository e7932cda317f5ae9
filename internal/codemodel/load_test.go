package codemodel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTree = `
source: sample.h
namespaces:
  - name: NS
    classes:
      - name: Url
        kind: struct
        functions:
          - name: setHost
            arguments:
              - name: host
                type: const QString &
                default: QString()
            return_type: void
        enums:
          - name: Mode
            values:
              - name: Strict
              - name: Tolerant
                value: "Strict + 1"
    typedefs:
      - name: UrlList
        type:
          name: QList
          instantiations: ["NS::Url"]
functions:
  - name: parse
    arguments:
      - type:
          name: NS::Url
          const: true
          reference: "&"
    return_type: bool
`

func TestParse_LinksScopes(t *testing.T) {
	model, err := Parse([]byte(sampleTree))
	require.NoError(t, err)

	require.Len(t, model.Namespaces, 1)
	ns := model.Namespaces[0]
	assert.Equal(t, "NS", ns.QualifiedName())

	require.Len(t, ns.Classes, 1)
	url := ns.Classes[0]
	assert.Equal(t, "NS::Url", url.QualifiedName())
	assert.Equal(t, KindStruct, url.Kind)

	require.Len(t, url.Functions, 1)
	setHost := url.Functions[0]
	assert.Equal(t, "NS::Url::setHost", setHost.QualifiedName())
	assert.Equal(t, "const QString&", setHost.Arguments[0].Type.String())
	assert.Equal(t, "QString()", setHost.Arguments[0].DefaultValue)

	require.Len(t, url.Enums, 1)
	assert.Equal(t, "NS::Url::Mode", url.Enums[0].QualifiedName())
	assert.Equal(t, "Strict + 1", url.Enums[0].Values[1].Expression)

	require.Len(t, ns.Typedefs, 1)
	assert.Equal(t, "NS::UrlList", ns.Typedefs[0].QualifiedName())
	assert.Equal(t, "QList<NS::Url>", ns.Typedefs[0].Type.String())

	require.Len(t, model.Functions, 1)
	assert.Equal(t, "parse", model.Functions[0].QualifiedName())
	assert.Equal(t, "const NS::Url&", model.Functions[0].Arguments[0].Type.String())
}

func TestParse_UnknownFieldIsRejected(t *testing.T) {
	_, err := Parse([]byte("classes:\n  - name: A\n    bogus: 1\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classes:\n  - name: A\n"), 0o644))

	model, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, model.Source)
	assert.Equal(t, "A", model.Classes[0].QualifiedName())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFunction_OperatorClassification(t *testing.T) {
	assert.True(t, (&Function{Name: "operator=="}).IsOperator())
	assert.False(t, (&Function{Name: "operatorName"}).IsOperator())
	assert.True(t, (&Function{Name: "operator QString"}).IsConversionOperator())
	assert.False(t, (&Function{Name: "operator new"}).IsConversionOperator())
	assert.False(t, (&Function{Name: "operator+"}).IsConversionOperator())
}
