package api

import (
	"github.com/starford/raido/internal/docservice"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/session"
)

// SetActiveRequest is the request body for selecting the active document.
type SetActiveRequest struct {
	URI string `json:"uri" example:"inmemory://model2.json" validate:"required"`
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = docservice.DocumentListItem

// DocumentListResponse wraps the document listing.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Active    int                `json:"active" example:"0"`
}

// SessionStatus is the current language server session.
type SessionStatus = session.Status

// SessionListResponse wraps the session history.
type SessionListResponse struct {
	Sessions []journal.SessionRow `json:"sessions" validate:"required"`
}
