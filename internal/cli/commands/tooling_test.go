package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/cli/config"
	"github.com/conduit-lang/apiextractor/internal/history"
)

func executeContext(ctx context.Context, args ...string) (string, string, error) {
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestBuild_Publish(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := setupProject(t, "publish:\n  redis_url: redis://"+mr.Addr()+"/0\n  ttl: 1h\n")
	_, _, err = execute("build", "--config", cfg, "--publish")
	require.NoError(t, err)

	latest, err := mr.Get("apiextractor:metamodel:Test:latest")
	require.NoError(t, err)
	assert.NotEmpty(t, latest)
	assert.True(t, mr.Exists("apiextractor:metamodel:Test:"+latest))
	assert.Equal(t, time.Hour, mr.TTL("apiextractor:metamodel:Test:"+latest))
}

func TestBuild_PublishWithoutRedis(t *testing.T) {
	cfg := setupProject(t, "")
	_, _, err := execute("build", "--config", cfg, "--publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish.redis_url")
}

func TestBuild_RecordWithoutHistory(t *testing.T) {
	cfg := setupProject(t, "")
	_, _, err := execute("build", "--config", cfg, "--record")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.dsn")
}

func TestHistory_ListAndDiff(t *testing.T) {
	cfg := setupProject(t, "history:\n  dsn: builds.db\n")
	dir := filepath.Dir(cfg)

	out, _, err := execute("history", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded builds")

	_, _, err = execute("build", "--config", cfg, "--record")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "builds.db"))
	require.NoError(t, err)

	// Registering Hidden removes its rejection in the second run.
	second := filepath.Join(dir, "typesystem2.xml")
	rules := strings.Replace(testTypesystem, "</typesystem>", "  <object-type name=\"Hidden\"/>\n</typesystem>", 1)
	require.NoError(t, os.WriteFile(second, []byte(rules), 0o644))
	_, _, err = execute("build", "--config", cfg, "--record", "-t", second)
	require.NoError(t, err)

	out, _, err = execute("history", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Builds (2)")
	assert.Contains(t, out, "Rejections")

	out, _, err = execute("history", "list", "--config", cfg, "--json")
	require.NoError(t, err)
	var runs []history.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	// Both builds may share a millisecond, so tell them apart by content.
	oldest, newest := runs[0], runs[1]
	if newest.Rejections == 2 {
		oldest, newest = newest, oldest
	}
	assert.Equal(t, 2, oldest.Rejections)
	assert.Equal(t, 1, newest.Rejections)

	out, _, err = execute("history", "diff", oldest.ID, newest.ID, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "- Hidden (class): not-in-type-system")
	assert.Contains(t, out, "0 newly rejected, 1 no longer rejected, 0 with a new reason")

	out, _, err = execute("history", "diff", newest.ID, newest.ID, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No rejection changes")

	_, _, err = execute("history", "diff", oldest.ID, "missing", "--config", cfg)
	assert.Error(t, err)
}

func TestHistory_DSNFlag(t *testing.T) {
	cfg := setupProject(t, "")
	dsn := filepath.Join(t.TempDir(), "other.db")

	_, _, err := execute("history", "list", "--config", cfg)
	require.Error(t, err)

	out, _, err := execute("history", "list", "--config", cfg, "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded builds")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute("init", dir, "--yes", "--typesystem", "core.xml", "--api-version", "6.2")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	cfg, err := config.LoadFile(filepath.Join(dir, "apiextractor.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "core.xml", cfg.Typesystem)
	assert.Equal(t, "declarations.yaml", cfg.Declarations)
	assert.Equal(t, "6.2", cfg.APIVersion)
	assert.Equal(t, "build/metamodel.json", cfg.Output.Path)

	_, _, err = execute("init", dir, "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute("init", dir, "--yes", "--force", "--typesystem", "other.xml")
	require.NoError(t, err)
	cfg, err = config.LoadFile(filepath.Join(dir, "apiextractor.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "other.xml", cfg.Typesystem)
	assert.Empty(t, cfg.APIVersion)
}

func TestInit_InvalidVersion(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute("init", dir, "--yes", "--api-version", "six")
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "apiextractor.yaml"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWatch_StopsWithContext(t *testing.T) {
	cfg := setupProject(t, "")

	out, _, err := executeContext(canceledContext(), "watch", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Metamodel built")
	assert.Contains(t, out, "Watching for changes")
}

func TestWatch_NoInputs(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "apiextractor.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("log:\n  level: error\n"), 0o644))

	_, _, err := executeContext(canceledContext(), "watch", "--config", empty)
	require.Error(t, err)
}

func TestServe_StopsWithContext(t *testing.T) {
	cfg := setupProject(t, "")

	out, _, err := executeContext(canceledContext(), "serve", "--config", cfg, "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Serving metamodel at http://127.0.0.1:")
}

func TestRebuilder(t *testing.T) {
	path := setupProject(t, "")
	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	_, inputs, err := runPipelineInputs(cfg, newLogger(cfg))
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	var (
		mu      sync.Mutex
		started [][]string
		results []*builder.Result
		errs    []error
	)
	r, err := startRebuilder(cfg, newLogger(cfg), inputs, rebuildHooks{
		onStart: func(changed []string) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, changed)
		},
		onBuilt: func(result *builder.Result, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, result)
		},
		onError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		},
	})
	require.NoError(t, err)
	defer r.stop()

	time.Sleep(50 * time.Millisecond)
	typesystemPath := filepath.Join(filepath.Dir(path), "typesystem.xml")
	rules := strings.Replace(testTypesystem, "</typesystem>", "  <object-type name=\"Hidden\"/>\n</typesystem>", 1)
	require.NoError(t, os.WriteFile(typesystemPath, []byte(rules), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, errs)
	require.NotEmpty(t, started)
	assert.Equal(t, []string{absPath(typesystemPath)}, started[0])
	last := results[len(results)-1]
	assert.NotNil(t, last.FindClass("Hidden"))
}
