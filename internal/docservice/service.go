// Package docservice is the read/toggle surface over the document editor and
// the language server session, shared by the REST API and the MCP server.
package docservice

import (
	"context"
	"slices"

	"github.com/starford/raido/internal/editor"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/session"
)

// DocumentDetail is the full representation of a document. The authoring
// key is never part of it.
type DocumentDetail struct {
	URI     string `json:"uri"`
	Kind    string `json:"kind"`
	Index   int    `json:"index"`
	Active  bool   `json:"active"`
	Version string `json:"version"`
	Content string `json:"content"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	URI     string `json:"uri"`
	Kind    string `json:"kind"`
	Index   int    `json:"index"`
	Active  bool   `json:"active"`
	Version string `json:"version"`
}

// Sessions reports on the language server session.
type Sessions interface {
	Status() session.Status
	History(ctx context.Context, limit int) ([]journal.SessionRow, error)
}

// Service coordinates the editor and the session runner.
type Service struct {
	editor   *editor.Editor
	sessions Sessions
}

// NewService creates a new document service. sessions may be nil when no
// language server is configured.
func NewService(ed *editor.Editor, sessions Sessions) *Service {
	return &Service{editor: ed, sessions: sessions}
}

// ListDocuments returns every document in registry order.
func (s *Service) ListDocuments(_ context.Context) []DocumentListItem {
	active := s.editor.ActiveIndex()
	docs := s.editor.Documents()
	items := make([]DocumentListItem, len(docs))
	for i, d := range docs {
		items[i] = DocumentListItem{
			URI:     d.URI,
			Kind:    d.Kind,
			Index:   i,
			Active:  i == active,
			Version: d.Version,
		}
	}
	return items
}

// GetActive returns the document currently shown.
func (s *Service) GetActive(_ context.Context) DocumentDetail {
	return s.detail(s.editor.Active())
}

// ToggleActive advances the view to the next document.
func (s *Service) ToggleActive(_ context.Context) DocumentDetail {
	return s.detail(s.editor.Toggle())
}

// Activate shows the document with the given URI. It returns
// apperr.ErrNotFound for unknown URIs.
func (s *Service) Activate(_ context.Context, uri string) (DocumentDetail, error) {
	doc, err := s.editor.Activate(uri)
	if err != nil {
		return DocumentDetail{}, err
	}
	return s.detail(doc), nil
}

// SessionStatus returns the current session state.
func (s *Service) SessionStatus(_ context.Context) session.Status {
	if s.sessions == nil {
		return session.Status{State: "disabled"}
	}
	return s.sessions.Status()
}

// SessionHistory returns recent sessions, newest first.
func (s *Service) SessionHistory(ctx context.Context, limit int) ([]journal.SessionRow, error) {
	if s.sessions == nil {
		return []journal.SessionRow{}, nil
	}
	rows, err := s.sessions.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []journal.SessionRow{}
	}
	return rows, nil
}

// detail locates doc by URI rather than reading the active index again, so a
// concurrent toggle cannot pair a document with another one's position.
func (s *Service) detail(doc models.Document) DocumentDetail {
	index := slices.IndexFunc(s.editor.Documents(), func(d models.Document) bool {
		return d.URI == doc.URI
	})
	return DocumentDetail{
		URI:     doc.URI,
		Kind:    doc.Kind,
		Index:   index,
		Active:  true,
		Version: doc.Version,
		Content: doc.Content,
	}
}
