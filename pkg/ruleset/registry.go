package ruleset

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/safetylex/pkg/logger"
)

//go:embed defaults/*.yaml
var defaultFiles embed.FS

// Registry holds the current rules per jurisdiction. The built-in defaults
// are always present; files in the override directory replace the default
// of the jurisdiction they declare.
type Registry struct {
	mu        sync.RWMutex
	defaults  map[string]*Rules
	overrides map[string]*Rules
	dir       string
	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	onChange  func(event string, path string, err error)
	logger    *logger.Logger
}

// NewRegistry creates a registry loaded with the built-in defaults.
func NewRegistry(log *logger.Logger) (*Registry, error) {
	registry := &Registry{
		defaults:  make(map[string]*Rules),
		overrides: make(map[string]*Rules),
		logger:    logger.OrNop(log),
	}

	entries, err := defaultFiles.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("reading embedded rules: %w", err)
	}
	for _, entry := range entries {
		name := path.Join("defaults", entry.Name())
		data, err := defaultFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded %s: %w", name, err)
		}
		rules, err := compileData(data, "builtin:"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("embedded %s: %w", name, err)
		}
		registry.defaults[rules.Jurisdiction] = rules
	}

	return registry, nil
}

// NewRegistryWithDirectory creates a registry and applies overrides from dir.
// An empty dir means defaults only.
func NewRegistryWithDirectory(dir string, log *logger.Logger) (*Registry, error) {
	registry, err := NewRegistry(log)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return registry, nil
	}
	if err := registry.LoadDirectory(dir); err != nil {
		return nil, err
	}
	return registry, nil
}

// Snapshot returns the rules as they are now. Later reloads do not affect it.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Rules
	for _, rules := range r.defaults {
		all = append(all, rules)
	}
	for _, rules := range r.overrides {
		all = append(all, rules)
	}
	return NewSnapshot(all...)
}

// LoadDirectory loads every YAML file in dir as an override. A missing
// directory is not an error. All files are compiled before any is applied,
// so a broken file leaves the registry unchanged.
func (r *Registry) LoadDirectory(dir string) error {
	r.mu.Lock()
	r.dir = dir
	r.mu.Unlock()

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}

	loaded := make(map[string]*Rules)
	var loadErrors []string
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		filePath := filepath.Join(dir, entry.Name())
		rules, err := compileFile(filePath)
		if err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		if previous, ok := loaded[rules.Jurisdiction]; ok {
			loadErrors = append(loadErrors, fmt.Sprintf("%s: jurisdiction %s already defined by %s", entry.Name(), rules.Jurisdiction, previous.Source))
			continue
		}
		loaded[rules.Jurisdiction] = rules
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("errors loading rules: %s", strings.Join(loadErrors, "; "))
	}

	r.mu.Lock()
	r.overrides = loaded
	r.mu.Unlock()

	for jurisdiction, rules := range loaded {
		r.logger.Info("rules override loaded", "jurisdiction", jurisdiction, "file", rules.Source)
	}
	return nil
}

// LoadFile compiles one rule file and installs it as the override of its jurisdiction.
func (r *Registry) LoadFile(filePath string) error {
	rules, err := compileFile(filePath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.overrides[rules.Jurisdiction] = rules
	r.mu.Unlock()
	return nil
}

// Reload re-reads the configured override directory.
func (r *Registry) Reload() error {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()

	if dir == "" {
		return fmt.Errorf("no directory configured for reload")
	}
	return r.LoadDirectory(dir)
}

// Sources lists where each jurisdiction's active rules come from.
func (r *Registry) Sources() map[string]string {
	snapshot := r.Snapshot()
	sources := make(map[string]string)
	for _, jurisdiction := range snapshot.Jurisdictions() {
		rules, _ := snapshot.Rules(jurisdiction)
		sources[jurisdiction] = rules.Source
	}
	return sources
}

// SetOnChange sets a callback invoked after every reload triggered by Watch.
// err is the reload error, if any; the previous rules stay active on error.
func (r *Registry) SetOnChange(fn func(event string, path string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Watch starts watching the override directory for changes.
func (r *Registry) Watch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dir == "" {
		return fmt.Errorf("no directory configured for watching")
	}
	if r.watcher != nil {
		return fmt.Errorf("already watching %s", r.dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", r.dir, err)
	}

	r.watcher = watcher
	r.stopChan = make(chan struct{})
	go r.watchLoop(watcher, r.stopChan)

	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isYAML(event.Name) {
				continue
			}

			var eventType string
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				eventType = "create"
			case event.Op&fsnotify.Write == fsnotify.Write:
				eventType = "modify"
			case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
				eventType = "remove"
			default:
				continue
			}
			r.handleChange(eventType, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("rules watcher error", "error", err)
		}
	}
}

// handleChange reloads the whole directory; a file may have changed jurisdiction.
func (r *Registry) handleChange(eventType string, filePath string) {
	err := r.Reload()
	if err != nil {
		r.logger.Error("rules reload failed, keeping previous rules", "event", eventType, "file", filePath, "error", err)
	} else {
		r.logger.Info("rules reloaded", "event", eventType, "file", filePath)
	}

	r.mu.RLock()
	onChange := r.onChange
	r.mu.RUnlock()
	if onChange != nil {
		onChange(eventType, filePath, err)
	}
}

// StopWatch stops watching the override directory.
func (r *Registry) StopWatch() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}

// DefaultJurisdictions lists the jurisdictions with built-in rules.
func (r *Registry) DefaultJurisdictions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jurisdictions := make([]string, 0, len(r.defaults))
	for jurisdiction := range r.defaults {
		jurisdictions = append(jurisdictions, jurisdiction)
	}
	sort.Strings(jurisdictions)
	return jurisdictions
}

// ValidateFile compiles a rule file without installing it.
func ValidateFile(filePath string) (*Rules, error) {
	return compileFile(filePath)
}

func compileFile(filePath string) (*Rules, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return compileData(data, filePath)
}

func compileData(data []byte, source string) (*Rules, error) {
	file, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Compile(file, source)
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
