package hooks

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrHookNotFound is returned when a requested hook cannot be found.
var ErrHookNotFound = errors.New("hook not found")

// ManifestFile is the manifest name looked for in each hook directory.
const ManifestFile = "hook.json"

// Manager manages hook discovery and access.
type Manager struct {
	dir   string
	hooks map[string]*Hook
	mu    sync.RWMutex
}

// NewManager creates a new hook Manager for dir.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:   dir,
		hooks: make(map[string]*Hook),
	}
}

// Discover scans dir for hook.json files and loads them. Each
// subdirectory is expected to be a hook with a manifest.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = make(map[string]*Hook)

	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(hookPath, ManifestFile))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.Printf("Skipping hook %s: invalid manifest: %v", entry.Name(), err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			log.Printf("Skipping hook %s: manifest needs name and executable", entry.Name())
			continue
		}

		m.hooks[manifest.Name] = &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		}
	}

	return nil
}

// Get returns a hook by name.
func (m *Manager) Get(name string) (*Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return h, nil
}

// List returns all discovered hooks sorted by name.
func (m *Manager) List() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]*Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool {
		return hooks[i].Manifest.Name < hooks[j].Manifest.Name
	})
	return hooks
}

// ForEvent returns the hooks subscribed to event, sorted by name.
func (m *Manager) ForEvent(event string) []*Hook {
	var hooks []*Hook
	for _, h := range m.List() {
		if h.Manifest.Handles(event) {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

// Dir returns the hook directory path.
func (m *Manager) Dir() string {
	return m.dir
}
