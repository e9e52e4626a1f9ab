// Package registry holds the fixed, ordered set of editor documents and
// tracks which one is active.
package registry

import (
	"fmt"
	"sync"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/models"
)

// Registry is an ordered, fixed-size collection of documents with a single
// active position. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	docs   []models.Document
	byURI  map[string]int
	active int
}

// New builds a registry from docs. The active index starts at 0.
// Two documents sharing a URI, or an empty list, are construction errors.
func New(docs []models.Document) (*Registry, error) {
	if len(docs) == 0 {
		return nil, apperr.ErrEmptyRegistry
	}
	byURI := make(map[string]int, len(docs))
	for i, d := range docs {
		if d.URI == "" {
			return nil, fmt.Errorf("registry: document %d has empty uri", i)
		}
		if _, dup := byURI[d.URI]; dup {
			return nil, fmt.Errorf("registry: %w: %s", apperr.ErrDuplicateIdentity, d.URI)
		}
		byURI[d.URI] = i
	}
	out := make([]models.Document, len(docs))
	copy(out, docs)
	return &Registry{docs: out, byURI: byURI}, nil
}

// Len returns the number of documents.
func (r *Registry) Len() int {
	return len(r.docs)
}

// Active returns the document at the active index.
func (r *Registry) Active() models.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.docs[r.active]
}

// ActiveIndex returns the current active position.
func (r *Registry) ActiveIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Toggle advances the active index to the next document, wrapping at the
// end, and returns the newly active document. With two documents this
// alternates 0, 1, 0, ...
func (r *Registry) Toggle() models.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = (r.active + 1) % len(r.docs)
	return r.docs[r.active]
}

// Activate makes the document with the given URI active.
func (r *Registry) Activate(uri string) (models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byURI[uri]
	if !ok {
		return models.Document{}, fmt.Errorf("registry: %s: %w", uri, apperr.ErrNotFound)
	}
	r.active = i
	return r.docs[i], nil
}

// Get looks up a document by URI.
func (r *Registry) Get(uri string) (models.Document, bool) {
	i, ok := r.byURI[uri]
	if !ok {
		return models.Document{}, false
	}
	return r.docs[i], true
}

// Documents returns a copy of all documents in registry order.
func (r *Registry) Documents() []models.Document {
	out := make([]models.Document, len(r.docs))
	copy(out, r.docs)
	return out
}

// AllMetadata returns every document's identity and metadata in registry
// order, regardless of which document is active.
func (r *Registry) AllMetadata() []models.MetadataEntry {
	out := make([]models.MetadataEntry, len(r.docs))
	for i, d := range r.docs {
		out[i] = models.MetadataEntry{URI: d.URI, Metadata: d.Metadata}
	}
	return out
}
