// Package editor binds the document registry to a display surface so that
// every change of the active document is reflected in the view.
package editor

import (
	"sync"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/registry"
)

// Surface is the view that renders the active document.
type Surface interface {
	SetDocument(doc models.Document)
}

// Editor owns the active-document transitions.
//
// The lock keeps a registry change and the matching SetDocument call
// together, so the surface observes transitions in the same order the
// registry applied them.
type Editor struct {
	mu      sync.Mutex
	reg     *registry.Registry
	surface Surface
}

// New creates the display for reg and shows its initial active document.
func New(reg *registry.Registry, surface Surface) *Editor {
	e := &Editor{reg: reg, surface: surface}
	surface.SetDocument(reg.Active())
	return e
}

// Toggle switches to the next document and displays it.
func (e *Editor) Toggle() models.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc := e.reg.Toggle()
	e.surface.SetDocument(doc)
	return doc
}

// Activate displays the document with the given URI.
func (e *Editor) Activate(uri string) (models.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, err := e.reg.Activate(uri)
	if err != nil {
		return models.Document{}, err
	}
	e.surface.SetDocument(doc)
	return doc, nil
}

// Active returns the displayed document.
func (e *Editor) Active() models.Document {
	return e.reg.Active()
}

// ActiveIndex returns the registry position of the displayed document.
func (e *Editor) ActiveIndex() int {
	return e.reg.ActiveIndex()
}

// Documents returns all documents in registry order.
func (e *Editor) Documents() []models.Document {
	return e.reg.Documents()
}
