// Package watch picks up backup files dropped into an import directory.
//
// The watcher reports a file once it has stopped changing for the debounce
// interval, so a file still being written is not imported half-way.
package watch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Format is the encoding of an import file, derived from its extension.
type Format int

const (
	// FormatJSON is a .json file.
	FormatJSON Format = iota
	// FormatYAML is a .yaml or .yml file.
	FormatYAML
)

// String returns a human-readable representation of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf maps a file name to its import format.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return 0, false
}

// FileEvent is a settled import file.
type FileEvent struct {
	// Path is the absolute path to the file.
	Path string
	// Format is the file's encoding.
	Format Format
}

// Config holds watcher configuration.
type Config struct {
	// DebounceInterval is how long a file must stay unchanged before it is
	// reported (default: 250ms)
	DebounceInterval time.Duration

	// Logger for watcher activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// FileWatcher watches one directory for import files.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	config  *Config
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool
	dir     string

	changeQueue   map[string]time.Time // path -> last change
	changeQueueMu sync.Mutex
}

// NewFileWatcher creates a new FileWatcher instance. A nil config uses
// DefaultConfig. The watcher must be started with Start() before it will
// emit events.
func NewFileWatcher(config *Config) (*FileWatcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:     watcher,
		config:      config,
		events:      make(chan FileEvent, 100),
		errors:      make(chan error, 10),
		done:        make(chan struct{}),
		changeQueue: make(map[string]time.Time),
	}, nil
}

// Start begins watching dir, creating it if needed.
func (fw *FileWatcher) Start(dir string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}
	if fw.stopped {
		return fmt.Errorf("watcher stopped")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve import directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("failed to create import directory %s: %w", abs, err)
	}
	if err := fw.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch import directory %s: %w", abs, err)
	}
	fw.dir = abs

	fw.running = true
	fw.wg.Add(2)
	go fw.processEvents()
	go fw.processChangeQueue()

	fw.config.Logger.Printf("Watching %s for imports", abs)
	return nil
}

// Stop stops watching and releases resources. It blocks until the event
// goroutines have exited, then closes the Events and Errors channels.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	wasRunning := fw.running
	fw.running = false
	fw.stopped = true
	fw.mu.Unlock()

	close(fw.done)

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	if wasRunning {
		fw.wg.Wait()
	}

	close(fw.events)
	close(fw.errors)
	return nil
}

// Events returns the channel of settled import files.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel that emits watcher errors.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// processEvents queues relevant fsnotify events.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.relevant(event) {
				fw.queueChange(event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// relevant reports whether event concerns an import file being written.
// Removals and renames away are ignored.
func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if _, ok := FormatOf(event.Name); !ok {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return filepath.Dir(event.Name) == fw.dir
}

// queueChange records the latest change time for path.
func (fw *FileWatcher) queueChange(path string) {
	fw.changeQueueMu.Lock()
	defer fw.changeQueueMu.Unlock()

	fw.changeQueue[path] = time.Now()
}

// processChangeQueue emits files that have been quiet for the debounce
// interval.
func (fw *FileWatcher) processChangeQueue() {
	defer fw.wg.Done()

	ticker := time.NewTicker(fw.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-fw.done:
			return
		case <-ticker.C:
			for _, ev := range fw.settled(time.Now()) {
				select {
				case fw.events <- ev:
				case <-fw.done:
					return
				}
			}
		}
	}
}

// settled removes and returns the queued files untouched since now minus the
// debounce interval.
func (fw *FileWatcher) settled(now time.Time) []FileEvent {
	fw.changeQueueMu.Lock()
	defer fw.changeQueueMu.Unlock()

	var out []FileEvent
	for path, queuedAt := range fw.changeQueue {
		if now.Sub(queuedAt) < fw.config.DebounceInterval {
			continue
		}
		delete(fw.changeQueue, path)

		if _, err := os.Stat(path); err != nil {
			continue
		}
		format, _ := FormatOf(path)
		out = append(out, FileEvent{Path: path, Format: format})
	}
	return out
}

// Dir returns the watched directory.
func (fw *FileWatcher) Dir() string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.dir
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}
