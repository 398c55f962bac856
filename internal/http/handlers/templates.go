package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/charter-notify/internal/messaging/templates"
	"github.com/wolfman30/charter-notify/pkg/logging"
)

// TemplateStore reads and replaces per-site template overrides.
type TemplateStore interface {
	Get(ctx context.Context, siteID string) (templates.Set, error)
	Overrides(ctx context.Context, siteID string) (templates.Set, error)
	Put(ctx context.Context, siteID string, set templates.Set) error
}

type TemplatesHandler struct {
	store  TemplateStore
	logger *logging.Logger
}

func NewTemplatesHandler(store TemplateStore, logger *logging.Logger) *TemplatesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TemplatesHandler{store: store, logger: logger}
}

type templatesResponse struct {
	Effective templates.Set `json:"effective"`
	Overrides templates.Set `json:"overrides"`
}

// Get handles GET /v1/sites/{siteID}/templates.
func (h *TemplatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	site := siteID(r)
	overrides, err := h.store.Overrides(r.Context(), site)
	if err != nil {
		h.logger.Error("load template overrides failed", "site_id", site, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load templates")
		return
	}
	writeJSON(w, http.StatusOK, templatesResponse{
		Effective: templates.DefaultSet().Merge(overrides),
		Overrides: overrides,
	})
}

// Put handles PUT /v1/sites/{siteID}/templates. The body replaces every override.
func (h *TemplatesHandler) Put(w http.ResponseWriter, r *http.Request) {
	var set templates.Set
	if err := decodeJSON(w, r, &set); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	for kind := range set {
		if _, err := templates.ParseKind(string(kind)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	site := siteID(r)
	if err := h.store.Put(r.Context(), site, set); err != nil {
		h.logger.Error("save template overrides failed", "site_id", site, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save templates")
		return
	}
	effective, err := h.store.Get(r.Context(), site)
	if err != nil {
		effective = templates.DefaultSet().Merge(set)
	}
	writeJSON(w, http.StatusOK, templatesResponse{Effective: effective, Overrides: set})
}
