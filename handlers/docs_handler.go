package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/upb/devportal/services/docstore"
	"github.com/upb/devportal/utils"
	"go.uber.org/zap"
)

// DocsService fetches documentation objects
type DocsService interface {
	Fetch(ctx context.Context, key string) (*docstore.Document, error)
}

// DocsHandler handles GET /api/docs and GET /api/docs/*
type DocsHandler struct {
	service DocsService
	logger  *zap.Logger
}

// NewDocsHandler creates a new DocsHandler
func NewDocsHandler(service DocsService, logger *zap.Logger) *DocsHandler {
	return &DocsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleDocs returns the object named by the rest of the path. An empty key
// selects the configured default document.
func (h *DocsHandler) HandleDocs(w http.ResponseWriter, r *http.Request) {
	key, err := documentKey(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	doc, err := h.service.Fetch(r.Context(), key)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, doc)
}

// documentKey returns the decoded wildcard. chi matches on RawPath when the
// request carries one, so the wildcard is still escaped in that case.
func documentKey(r *http.Request) (string, error) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return key, nil
	}
	decoded, err := url.PathUnescape(key)
	if err != nil {
		return "", utils.NewFieldError("key", "invalid escape in document key")
	}
	return decoded, nil
}
