package core

import (
	"errors"
	"sort"
	"sync"

	"github.com/qbitorbit/atlas/internal/template"
)

// Context is the run-scoped key/value environment shared across the steps of
// a single task or workflow run. It holds caller-supplied variables and the
// intermediate results steps store for their successors. It is safe for
// concurrent access so parallel loop iterations can read it freely.
//
// Contract:
//   - Keys are unique within a run; Set overwrites (last write wins)
//   - Values written by one step are readable by every later step
//   - A Context is created fresh per run and discarded with it; nothing is
//     persisted across runs
//   - Fork creates a child view for loop bodies: reads fall through to the
//     parent, writes stay local
type Context struct {
	mu     sync.RWMutex
	parent *Context
	keys   []string // insertion order of locally set keys
	values map[string]any
}

// NewContext creates an empty run-scoped context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// NewSeededContext creates a context pre-populated with caller-supplied
// variables. Seed keys are applied in sorted order so two runs seeded with
// the same map observe the same key ordering.
func NewSeededContext(seed map[string]any) *Context {
	c := NewContext()
	names := make([]string, 0, len(seed))
	for name := range seed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.Set(name, seed[name])
	}
	return c
}

// Get returns the value for key, consulting the parent chain for forked
// contexts. The second return reports whether the key exists.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	value, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return value, true
	}
	if c.parent != nil {
		return c.parent.Get(key)
	}
	return nil, false
}

// Set stores a value under key with overwrite semantics. Writes always land
// in the receiver, never in a parent, so loop-body writes stay scoped to the
// fork they were made in.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// Has reports whether key is visible from this context.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the visible keys in order: parent keys first, then locally set
// keys in insertion order. Shadowed parent keys appear once.
func (c *Context) Keys() []string {
	var inherited []string
	if c.parent != nil {
		inherited = c.parent.Keys()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(inherited)+len(c.keys))
	for _, k := range inherited {
		if _, shadowed := c.values[k]; !shadowed {
			keys = append(keys, k)
		}
	}
	keys = append(keys, c.keys...)
	return keys
}

// Snapshot returns a flattened copy of all visible key/value pairs. The map
// is safe for caller mutation; values are shared, not deep-copied.
func (c *Context) Snapshot() map[string]any {
	snapshot := make(map[string]any)
	for _, key := range c.Keys() {
		if value, ok := c.Get(key); ok {
			snapshot[key] = value
		}
	}
	return snapshot
}

// Fork creates a child context for a loop body or a single step dispatch.
// The child sees every parent value; its own writes are invisible to the
// parent and to sibling steps, and are discarded when the fork goes out of
// scope unless explicitly promoted via an output binding. Nested forks give
// strict lexical scoping: an inner loop variable shadows an outer one only
// within its own body.
func (c *Context) Fork() *Context {
	return &Context{parent: c, values: make(map[string]any)}
}

// Lookup resolves a dot-path reference ("dev", "result.battery.level")
// against the context: the first segment is a context key, remaining
// segments traverse nested maps.
func (c *Context) Lookup(path string) (any, bool) {
	key, rest := splitPath(path)
	value, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	for _, segment := range rest {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		if value, ok = m[segment]; !ok {
			return nil, false
		}
	}
	return value, true
}

// Resolve substitutes {{ placeholder }} references in a template value with
// context values, recursing into maps and slices so only leaf strings are
// touched. A reference to a missing key fails with *UnresolvedVariableError
// rather than substituting an empty string.
func (c *Context) Resolve(value any) (any, error) {
	resolved, err := template.Resolve(value, c.Lookup)
	if err != nil {
		var unresolved *template.UnresolvedError
		if errors.As(err, &unresolved) {
			return nil, &UnresolvedVariableError{Refs: unresolved.Refs}
		}
		return nil, err
	}
	return resolved, nil
}

// ResolveString is a convenience wrapper for templates that must render to a
// string, such as task descriptions.
func (c *Context) ResolveString(s string) (string, error) {
	resolved, err := c.Resolve(s)
	if err != nil {
		return "", err
	}
	return template.Stringify(resolved), nil
}

func splitPath(path string) (string, []string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], splitSegments(path[i+1:])
		}
	}
	return path, nil
}

func splitSegments(rest string) []string {
	var segments []string
	start := 0
	for i := 0; i <= len(rest); i++ {
		if i == len(rest) || rest[i] == '.' {
			segments = append(segments, rest[start:i])
			start = i + 1
		}
	}
	return segments
}
