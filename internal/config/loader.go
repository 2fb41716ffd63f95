package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange registers a callback invoked after each successful reload
// triggered by a file change. The callback receives the full Config,
// every field re-parsed from the file.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) { l.onChange = fn }
}

// Loader reads the YAML config file at path, expands environment
// references, and optionally watches the file's directory and re-reads
// the whole file when it changes.
type Loader struct {
	path     string
	onChange func(*Config)

	mu      sync.Mutex
	current *Config

	watcher *fsnotify.Watcher
	closed  bool
}

// NewLoader constructs a Loader for the config file at path.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{path: path}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the config file, merging it over Default().
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", l.path, err)
	}

	cfg, err := l.parseBytes(raw)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()

	return cfg, nil
}

func (l *Loader) parseBytes(raw []byte) (*Config, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", l.path, err)
	}
	expanded := ExpandEnvVarsInData(doc)

	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: re-encode %s: %w", l.path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(reencoded, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", l.path, err)
	}
	return cfg, nil
}

// Watch starts watching the config file's directory for changes and
// invokes the registered OnChange callback with a freshly reloaded Config
// each time the file is written, for as long as ctx remains live. It
// watches the containing directory (not the file itself) so editors that
// replace-via-rename still trigger a reload, debounces rapid writes, and
// re-arms the watch if the file is removed and recreated.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.watchLoop(ctx, watcher)
	return nil
}

func (l *Loader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounce *time.Timer
	target := filepath.Clean(l.path)

	reload := func() {
		cfg, err := l.Load(ctx)
		if err != nil {
			return
		}
		if l.onChange != nil {
			l.onChange(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			watcher.Close()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, reload)
			case event.Op&fsnotify.Remove != 0:
				go l.tryRewatch(ctx, watcher)
			}
		case <-watcher.Errors:
			// Errors are non-fatal; the next event or poll retries.
		}
	}
}

// tryRewatch polls for the config file's reappearance after a Remove
// event (common with editors that write via rename-over), re-adding the
// directory watch and reloading once it's back.
func (l *Loader) tryRewatch(ctx context.Context, watcher *fsnotify.Watcher) {
	deadline := time.Now().Add(5 * time.Second)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(l.path); err == nil {
				_ = watcher.Add(filepath.Dir(l.path))
				if cfg, err := l.Load(ctx); err == nil && l.onChange != nil {
					l.onChange(cfg)
				}
				return
			}
		}
	}
}

// Close stops the directory watch, if one was started.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.watcher == nil {
		return nil
	}
	l.closed = true
	return l.watcher.Close()
}

// LoadConfig is a convenience wrapper for callers that only need a single
// one-shot load without hot-reload (e.g. `dccp validate`).
func LoadConfig(path string) (*Config, error) {
	return NewLoader(path).Load(context.Background())
}
