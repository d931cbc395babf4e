package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ErrWorkflowNotFound is returned when a workflow id is not in the library.
var ErrWorkflowNotFound = errors.New("workflow not found")

// Library holds the workflow documents of one directory and watches it for
// changes.
type Library struct {
	dir      string
	mu       sync.RWMutex
	current  map[string]*Workflow
	onChange []func(map[string]*Workflow)
}

// NewLibrary creates a Library and performs the initial load.
func NewLibrary(dir string) (*Library, error) {
	l := &Library{dir: dir}
	docs, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = docs
	return l, nil
}

// NewLibraryFrom builds an in-memory library, mostly for tests.
func NewLibraryFrom(docs ...*Workflow) *Library {
	l := &Library{current: make(map[string]*Workflow, len(docs))}
	for _, d := range docs {
		l.current[d.ID] = d
	}
	return l
}

// Workflow returns the document with the given id.
func (l *Library) Workflow(id string) (*Workflow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.current[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrWorkflowNotFound, id)
	}
	return w, nil
}

// IDs returns the sorted ids of all loaded workflows.
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.current))
	for id := range l.current {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OnChange registers a callback invoked whenever the library reloads.
func (l *Library) OnChange(fn func(map[string]*Workflow)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the library when a
// workflow file is written, created, renamed or removed.
// Call the returned stop function to clean up.
func (l *Library) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("workflow watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("workflow watcher add %s: %w", l.dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isWorkflowFile(ev.Name) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
					ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("workflow reload failed, keeping previous library", "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("workflow watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the workflows directory.
func (l *Library) Reload() (map[string]*Workflow, error) {
	docs, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = docs
	callbacks := make([]func(map[string]*Workflow), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(docs)
	}
	return docs, nil
}

func (l *Library) load() (map[string]*Workflow, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read workflows dir %s: %w", l.dir, err)
	}
	docs := make(map[string]*Workflow)
	for _, e := range entries {
		if e.IsDir() || !isWorkflowFile(e.Name()) {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		w, err := ParseWorkflowFile(path)
		if err != nil {
			return nil, err
		}
		if err := ValidateWorkflow(w); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := docs[w.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate workflow id %q", path, w.ID)
		}
		docs[w.ID] = w
	}
	return docs, nil
}

// ParseWorkflowFile reads one workflow document. The id defaults to the
// file name without extension.
func ParseWorkflowFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}
	w, err := ParseWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if w.ID == "" {
		w.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return w, nil
}

// ParseWorkflow decodes a workflow document.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	return &w, nil
}

func isWorkflowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
