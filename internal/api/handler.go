// Package api provides the ops HTTP surface: health checks and a
// read-only listing of mirrored tool records.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pintegram/toolbot/internal/store"
)

// Handler serves the ops endpoints backed by the local record mirror.
type Handler struct {
	mirror store.Repository
}

// NewHandler creates a new Handler.
func NewHandler(mirror store.Repository) *Handler {
	return &Handler{mirror: mirror}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes registers the ops routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/tools", h.ListTools)
}

// RegisterHealth registers the health endpoint.
func (h *Handler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.Health)
}

// Health reports mirror database connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.mirror.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type toolResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Types       []string `json:"types"`
	State       string   `json:"state"`
	APITier     string   `json:"api_tier"`
	Payment     []string `json:"payment"`
}

// ListTools returns mirrored records sorted by URL ascending, optionally
// filtered by a single type via ?type=.
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	records, err := h.mirror.ListRecords(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	out := make([]toolResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toolResponse{
			ID:          rec.ID,
			Name:        rec.Name,
			URL:         rec.URL,
			Description: rec.Description,
			Types:       rec.Types,
			State:       rec.State,
			APITier:     rec.APITier,
			Payment:     rec.Payment,
		})
	}
	JSON(w, http.StatusOK, map[string]interface{}{"tools": out})
}
