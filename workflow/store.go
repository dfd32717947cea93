package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/qbitorbit/atlas/logging"
)

// Store holds named workflow definitions, typically loaded from a directory
// of YAML files. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*Definition
	logger    logging.Logger
}

// StoreOptions configure a Store.
type StoreOptions struct {
	Logger logging.Logger
}

// NewStore creates an empty workflow store.
func NewStore(optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Store{
		workflows: make(map[string]*Definition),
		logger:    opts.Logger,
	}
}

// Add registers a definition under its name, replacing any previous one.
func (s *Store) Add(def *Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[def.Name] = def
}

// Get returns the definition registered under name.
func (s *Store) Get(name string) (*Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.workflows[name]
	return def, ok
}

// Names returns the registered workflow names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.workflows))
	for name := range s.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir loads every .yaml/.yml file in dir as a workflow definition. Files
// that fail to parse or validate abort the load; workflows registered before
// the failing file remain in the store.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read workflow dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		def, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		s.Add(def)
		s.logger.Debug("workflow loaded", "workflow", def.Name, "file", entry.Name())
	}

	return nil
}
