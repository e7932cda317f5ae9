package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/report"
)

const testDeclarations = `
classes:
  - name: Known
    functions:
      - name: use
        arguments:
          - type: Unknown
      - name: size
        return_type: int
        const: true
  - name: Hidden
`

const testTypesystem = `<?xml version="1.0"?>
<typesystem package="Test">
  <value-type name="Known">
    <modify-function signature="missing()" remove="all"/>
  </value-type>
</typesystem>
`

// setupProject writes a ruleset, a declaration tree and a config file
// naming both, and returns the config path.
func setupProject(t *testing.T, extraConfig string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"typesystem.xml":    testTypesystem,
		"declarations.yaml": testDeclarations,
		"apiextractor.yaml": "typesystem: typesystem.xml\ndeclarations: declarations.yaml\nlog:\n  level: error\n" + extraConfig,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return filepath.Join(dir, "apiextractor.yaml")
}

func execute(args ...string) (string, string, error) {
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "apiextractor", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"version", "build", "rejections", "watch", "serve", "history", "init"})

	for _, flag := range []string{"config", "log-level", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute("version")
	require.NoError(t, err)
	assert.Contains(t, out, "apiextractor version: "+Version)
	assert.Contains(t, out, "Go version: ")
}

func TestBuild_Summary(t *testing.T) {
	cfg := setupProject(t, "")

	out, _, err := execute("build", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Metamodel")
	assert.Contains(t, out, "Classes:")
	assert.Contains(t, out, "Rejections:")
	assert.Contains(t, out, "rerun with --verbose")
	assert.Contains(t, out, "✓ Metamodel built")

	out, _, err = execute("build", "--config", cfg, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Hidden")
	assert.Contains(t, out, "missing()")
}

func TestBuild_WritesMetamodel(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"plain", nil},
		{"compressed", []string{"--compress"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := setupProject(t, "")
			path := filepath.Join(t.TempDir(), "out", "metamodel.json")

			args := append([]string{"build", "--config", cfg, "-o", path}, tt.args...)
			_, _, err := execute(args...)
			require.NoError(t, err)

			m, err := report.ReadFile(path)
			require.NoError(t, err)
			require.Len(t, m.Classes, 1)
			assert.Equal(t, "Known", m.Classes[0].QualifiedName)
			assert.NotEmpty(t, m.Rejections)
		})
	}
}

func TestBuild_OutputFromConfig(t *testing.T) {
	cfg := setupProject(t, "output:\n  path: build/metamodel.json\n")

	_, _, err := execute("build", "--config", cfg)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(filepath.Dir(cfg), "build", "metamodel.json"))
	assert.NoError(t, err)
}

func TestBuild_JSON(t *testing.T) {
	cfg := setupProject(t, "")

	out, _, err := execute("build", "--config", cfg, "--json")
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	assert.NotEmpty(t, raw["run_id"])
	assert.NotEmpty(t, raw["classes"])
}

func TestBuild_Strict(t *testing.T) {
	cfg := setupProject(t, "")

	_, _, err := execute("build", "--config", cfg, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consistency warnings")
}

func TestBuild_Errors(t *testing.T) {
	cfg := setupProject(t, "")
	dir := filepath.Dir(cfg)
	empty := filepath.Join(t.TempDir(), "apiextractor.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("log:\n  level: error\n"), 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no typesystem", []string{"build", "--config", empty}, "no typesystem"},
		{"missing declarations", []string{"build", "--config", cfg, "-d", filepath.Join(dir, "nope.yaml")}, "BUILD FAILED"},
		{"bad api version", []string{"build", "--config", cfg, "--api-version", "x.y"}, "BUILD FAILED"},
		{"bad log level", []string{"build", "--config", cfg, "--log-level", "loud"}, "CONFIGURATION ERROR"},
		{"missing config", []string{"build", "--config", filepath.Join(dir, "missing.yaml")}, "CONFIGURATION ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := execute(tt.args...)
			require.Error(t, err)
			assert.Contains(t, stderr+err.Error(), tt.want)
		})
	}
}

func TestRejections(t *testing.T) {
	cfg := setupProject(t, "")

	out, _, err := execute("rejections", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Rejections (2)")
	assert.Contains(t, out, "Hidden")
	assert.Contains(t, out, "Known::use(Unknown)")
	assert.Contains(t, out, "not-in-type-system:")
	assert.Contains(t, out, "unmatched-argument-type:")

	out, _, err = execute("rejections", "--config", cfg, "--reason", "unmatched-argument-type")
	require.NoError(t, err)
	assert.Contains(t, out, "Rejections (1)")
	assert.NotContains(t, out, "Hidden")

	out, _, err = execute("rejections", "--config", cfg, "--kind", "class")
	require.NoError(t, err)
	assert.Contains(t, out, "Hidden")
	assert.NotContains(t, out, "use(Unknown)")

	out, _, err = execute("rejections", "--config", cfg, "Known")
	require.NoError(t, err)
	assert.Contains(t, out, "Known::use(Unknown)")
	assert.NotContains(t, out, "Hidden ")

	out, _, err = execute("rejections", "--config", cfg, "--kind", "enum")
	require.NoError(t, err)
	assert.Contains(t, out, "No rejections")
}

func TestRejections_UnknownItem(t *testing.T) {
	cfg := setupProject(t, "")

	_, stderr, err := execute("rejections", "--config", cfg, "Hiden")
	require.Error(t, err)
	assert.Contains(t, stderr, "ITEM NOT FOUND")
	assert.Contains(t, stderr, "Did you mean: Hidden")
	assert.EqualError(t, err, "no declaration named Hiden (closest: Hidden)")

	_, _, err = execute("rejections", "--config", cfg, "Zzzzzzzz")
	require.Error(t, err)
	assert.EqualError(t, err, "no declaration named Zzzzzzzz")
}

func TestRejections_JSON(t *testing.T) {
	cfg := setupProject(t, "")

	out, _, err := execute("rejections", "--config", cfg, "--json", "--reason", "not-in-type-system")
	require.NoError(t, err)

	var rejections []report.RejectionReport
	require.NoError(t, json.Unmarshal([]byte(out), &rejections))
	require.Len(t, rejections, 1)
	assert.Equal(t, "Hidden", rejections[0].Item)
	assert.Equal(t, "class", rejections[0].Kind)
	assert.NotEmpty(t, rejections[0].Code)

	out, _, err = execute("rejections", "--config", cfg, "--json", "--reason", "api-incompatible")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}
