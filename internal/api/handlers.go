package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/docservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents in registry order
//	@Tags			documents
//	@Produce		json
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	items := h.svc.ListDocuments(r.Context())
	active := 0
	for _, it := range items {
		if it.Active {
			active = it.Index
		}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Active: active})
}

// GetActive handles GET /api/documents/active.
//
//	@Summary		Get the document shown in the editor
//	@Tags			documents
//	@Produce		json
//	@Success		200		{object}	DocumentDetail
//	@Security		BearerAuth
//	@Router			/documents/active [get]
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetActive(r.Context()))
}

// ToggleActive handles POST /api/documents/active/toggle.
//
//	@Summary		Switch the editor to the next document
//	@Tags			documents
//	@Produce		json
//	@Success		200		{object}	DocumentDetail
//	@Security		BearerAuth
//	@Router			/documents/active/toggle [post]
func (h *Handler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ToggleActive(r.Context()))
}

// SetActive handles PUT /api/documents/active.
//
//	@Summary		Show a document by URI
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetActiveRequest	true	"Document to show"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/active [put]
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.URI == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("uri is required"))
		return
	}
	doc, err := h.svc.Activate(r.Context(), req.URI)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("activate document failed", slog.String("uri", req.URI), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SessionStatus handles GET /api/session.
//
//	@Summary		Current language server session
//	@Tags			session
//	@Produce		json
//	@Success		200		{object}	SessionStatus
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SessionStatus(r.Context()))
}

// SessionHistory handles GET /api/sessions.
//
//	@Summary		Recent language server sessions, newest first
//	@Tags			session
//	@Produce		json
//	@Param			limit	query		int		false	"Max sessions"
//	@Success		200		{object}	SessionListResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.svc.SessionHistory(r.Context(), limit)
	if err != nil {
		slog.Error("session history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: rows})
}
