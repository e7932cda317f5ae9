package commands

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/builder"
	"github.com/conduit-lang/apiextractor/internal/cli/config"
	"github.com/conduit-lang/apiextractor/internal/watch"
)

// rebuildHooks receive the progress of a rebuild. Nil hooks are skipped.
type rebuildHooks struct {
	onStart func(changed []string)
	onBuilt func(result *builder.Result, elapsed time.Duration)
	onError func(err error)
}

// rebuilder reruns the pipeline whenever one of its inputs changes. The
// watched set follows the includes of the last load.
type rebuilder struct {
	cfg     *config.Config
	logger  *zap.Logger
	hooks   rebuildHooks
	watcher *watch.FileWatcher
	mu      sync.Mutex
}

func startRebuilder(cfg *config.Config, logger *zap.Logger, inputs []string, hooks rebuildHooks) (*rebuilder, error) {
	r := &rebuilder{cfg: cfg, logger: logger, hooks: hooks}
	w, err := watch.NewFileWatcher(inputs, r.rebuild, logger)
	if err != nil {
		return nil, err
	}
	r.watcher = w
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return nil, err
	}
	logger.Info("watching inputs", zap.Strings("files", inputs))
	return r, nil
}

func (r *rebuilder) rebuild(changed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hooks.onStart != nil {
		r.hooks.onStart(changed)
	}
	start := time.Now()
	result, inputs, err := runPipelineInputs(r.cfg, r.logger)
	if len(inputs) > 0 {
		if werr := r.watcher.SetFiles(inputs); werr != nil {
			r.logger.Warn("failed to update watched files", zap.Error(werr))
		}
	}
	if err != nil {
		if r.hooks.onError != nil {
			r.hooks.onError(err)
		}
		return err
	}
	if r.hooks.onBuilt != nil {
		r.hooks.onBuilt(result, time.Since(start))
	}
	return nil
}

func (r *rebuilder) stop() error {
	return r.watcher.Stop()
}

// joinBase lists file names without their directories.
func joinBase(files []string) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	return strings.Join(names, ", ")
}
