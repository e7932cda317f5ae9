// Package watch rebuilds the metamodel when its inputs change and tells
// connected clients about it.
package watch

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for more changes before
// reporting a batch.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher monitors a fixed set of files and triggers a callback when any
// of them changes. Directories are watched rather than files so that editors
// which save by renaming a temporary file are still noticed.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    *zap.Logger
	onChange  func([]string) error

	mu    sync.RWMutex
	files map[string]struct{}
	dirs  map[string]struct{}

	started  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFileWatcher creates a watcher over files. onChange receives the sorted
// absolute paths that changed since the last call.
func NewFileWatcher(files []string, onChange func([]string) error, logger *zap.Logger) (*FileWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(DefaultDebounce),
		logger:    logger,
		onChange:  onChange,
		files:     make(map[string]struct{}),
		dirs:      make(map[string]struct{}),
		stopChan:  make(chan struct{}),
	}
	fw.debouncer.SetCallback(func(changed []string) {
		if err := fw.onChange(changed); err != nil {
			fw.logger.Warn("rebuild failed", zap.Error(err))
		}
	})

	if err := fw.SetFiles(files); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return fw, nil
}

// SetFiles replaces the watched file set. It is used after a rebuild, when
// include directives may have added or removed rulesets.
func (fw *FileWatcher) SetFiles(files []string) error {
	next := make(map[string]struct{}, len(files))
	nextDirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		next[abs] = struct{}{}
		nextDirs[filepath.Dir(abs)] = struct{}{}
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	for dir := range nextDirs {
		if _, ok := fw.dirs[dir]; ok {
			continue
		}
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.logger.Debug("watching directory", zap.String("dir", dir))
	}
	for dir := range fw.dirs {
		if _, ok := nextDirs[dir]; !ok {
			_ = fw.watcher.Remove(dir)
		}
	}
	fw.files = next
	fw.dirs = nextDirs
	return nil
}

// Files returns the watched files, sorted.
func (fw *FileWatcher) Files() []string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	out := make([]string, 0, len(fw.files))
	for f := range fw.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Start begins watching in the background.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.started {
		return fmt.Errorf("watcher already started")
	}
	fw.started = true

	fw.wg.Add(1)
	go fw.watch()
	return nil
}

// Stop stops the file watcher. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stopChan)
		fw.wg.Wait()
		fw.debouncer.Stop()
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event.Op) || !fw.watched(event.Name) {
				continue
			}
			fw.logger.Debug("file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			fw.debouncer.Add(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("watch error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}

func (fw *FileWatcher) watched(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	_, ok := fw.files[abs]
	return ok
}

// Debouncer collects file changes and triggers callbacks after a quiet period
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a new debouncer instance
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

// Add records a change and restarts the quiet period.
func (d *Debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}

	d.files[file] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush hands the accumulated files to the callback. The callback runs
// without the lock held so changes during a slow rebuild are still recorded.
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.files) == 0 || d.stopped {
		d.mutex.Unlock()
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	d.files = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	sort.Strings(files)
	if callback != nil {
		callback(files)
	}
}

// SetCallback sets the callback function
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop discards pending changes; later Adds are ignored.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
	d.files = make(map[string]struct{})
}
