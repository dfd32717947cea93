// Package docs provides the document store used by documentation agents to
// create, read, update and search notes produced during orchestrated runs.
package docs

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a titled text note with creation and modification timestamps.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the document storage contract. Implementations must be safe
// for concurrent use.
type Store interface {
	// Create stores a new document and returns it with id and timestamps set.
	Create(title, content string, tags []string) (*Document, error)

	// Get returns the document with the given id or ErrNotFound.
	Get(id string) (*Document, error)

	// Update replaces the content (and optionally tags) of an existing
	// document or returns ErrNotFound.
	Update(id, content string, tags []string) (*Document, error)

	// Delete removes the document if present or returns ErrNotFound.
	Delete(id string) error

	// List returns all documents ordered by creation time.
	List() ([]*Document, error)

	// Search returns documents whose title, content or tags contain the
	// query, case-insensitive, ordered by creation time.
	Search(query string) ([]*Document, error)
}

// InMemoryStore is a trivial in-process Store implementation useful for
// tests, examples and single-process prototypes. It keeps all documents in a
// map guarded by an RWMutex. Documents are copied on retrieval to avoid
// accidental external mutation of internal state.
//
// This implementation is intentionally minimal; it does not enforce retention
// limits, size quotas, or eviction. For production, prefer a durable
// implementation that can survive process restarts.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewInMemoryStore returns an empty in-memory document store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{documents: make(map[string]*Document)}
}

// Create stores a new document and returns a copy with id and timestamps set.
func (s *InMemoryStore) Create(title, content string, tags []string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	doc := &Document{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		Tags:      append([]string(nil), tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.documents[doc.ID] = doc
	return copyDocument(doc), nil
}

// Get returns a copy of the stored document or ErrNotFound.
func (s *InMemoryStore) Get(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

// Update replaces the content of an existing document. A nil tags slice
// leaves the existing tags untouched.
func (s *InMemoryStore) Update(id, content string, tags []string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc.Content = content
	if tags != nil {
		doc.Tags = append([]string(nil), tags...)
	}
	doc.UpdatedAt = time.Now()
	return copyDocument(doc), nil
}

// Delete removes the document if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return ErrNotFound
	}
	delete(s.documents, id)
	return nil
}

// List returns copies of all documents ordered by creation time.
func (s *InMemoryStore) List() ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, copyDocument(doc))
	}
	sortByCreation(docs)
	return docs, nil
}

// Search returns documents matching the query in title, content or tags,
// case-insensitive.
func (s *InMemoryStore) Search(query string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var docs []*Document
	for _, doc := range s.documents {
		if matches(doc, needle) {
			docs = append(docs, copyDocument(doc))
		}
	}
	sortByCreation(docs)
	return docs, nil
}

func matches(doc *Document, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Content), needle) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func sortByCreation(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}

func copyDocument(doc *Document) *Document {
	cp := *doc
	cp.Tags = append([]string(nil), doc.Tags...)
	return &cp
}
