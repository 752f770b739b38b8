package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/propaths/propaths/internal/discovery"
	"github.com/propaths/propaths/internal/graph"
	"github.com/propaths/propaths/internal/storage"
	propsync "github.com/propaths/propaths/internal/sync"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIHandlers bundles the HTTP handlers with their collaborators.
type APIHandlers struct {
	composer *graph.Composer
	store    storage.InteractionStore
	engine   *propsync.Engine
}

// NewAPIHandlers creates the handler set. engine may be nil when the server
// runs read-only (sync submission then returns 503).
func NewAPIHandlers(store storage.InteractionStore, engine *propsync.Engine) *APIHandlers {
	return &APIHandlers{
		composer: graph.NewComposer(store),
		store:    store,
		engine:   engine,
	}
}

// GetInteractions handles GET /api/proteins/{symbol}/interactions.
// Every edge is returned from the queried protein's point of view.
func (h *APIHandlers) GetInteractions(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "protein symbol is required", nil)
		return
	}

	interactions, err := h.composer.Interactions(r.Context(), symbol)
	if err != nil {
		respondStoreError(w, symbol, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"protein":      symbol,
		"interactions": interactions,
	})
}

// GetFullView handles GET /api/proteins/{symbol}/view.
func (h *APIHandlers) GetFullView(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "protein symbol is required", nil)
		return
	}

	view, err := h.composer.FullView(r.Context(), symbol)
	if err != nil {
		respondStoreError(w, symbol, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GetExpansionView handles GET /api/proteins/{symbol}/expansion?visible=A,B.
func (h *APIHandlers) GetExpansionView(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "protein symbol is required", nil)
		return
	}

	var visible []string
	if raw := r.URL.Query().Get("visible"); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				visible = append(visible, v)
			}
		}
	}

	view, err := h.composer.ExpansionView(r.Context(), symbol, visible)
	if err != nil {
		respondStoreError(w, symbol, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GetInteractionCount handles GET /api/proteins/{symbol}/count.
func (h *APIHandlers) GetInteractionCount(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "protein symbol is required", nil)
		return
	}

	count, err := h.composer.InteractionCount(r.Context(), symbol)
	if err != nil {
		respondStoreError(w, symbol, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"protein":           symbol,
		"interaction_count": count,
	})
}

// SubmitSync handles POST /api/sync: enqueue one batch of discovery
// findings. Responds 202 with the run id; progress goes out on the
// websocket hub.
func (h *APIHandlers) SubmitSync(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, http.StatusServiceUnavailable, "sync is not enabled on this server", nil)
		return
	}

	var req struct {
		Source string                            `json:"source"`
		Items  []discovery.DiscoveredInteraction `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items must not be empty", nil)
		return
	}

	if req.Source == "" {
		req.Source = "api"
	}
	job := &propsync.BatchJob{Source: req.Source, Items: req.Items}

	if err := h.engine.Submit(job); err != nil {
		if errors.Is(err, propsync.ErrQueueFull) {
			respondError(w, http.StatusTooManyRequests, "sync queue is full", nil)
			return
		}
		respondError(w, http.StatusServiceUnavailable, "sync unavailable", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": job.RunID,
		"queued": len(job.Items),
	})
}

// Recount handles POST /api/admin/recount: repair interaction counters.
func (h *APIHandlers) Recount(w http.ResponseWriter, r *http.Request) {
	changed, err := h.store.RecountInteractions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "recount failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"proteins_repaired": changed})
}

// Deduplicate handles POST /api/admin/deduplicate: collapse legacy
// dual-written rows.
func (h *APIHandlers) Deduplicate(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.DeduplicateInteractions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "deduplication failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rows_removed": removed})
}

func respondStoreError(w http.ResponseWriter, symbol string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, fmt.Sprintf("protein %q not found", symbol), nil)
		return
	}
	if errors.Is(err, storage.ErrInvalidInput) {
		respondError(w, http.StatusBadRequest, "invalid request", err)
		return
	}
	respondError(w, http.StatusInternalServerError, "internal error", err)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing to do but note it.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{"error": err.Error()}
	}
	respondJSON(w, statusCode, errResp)
}
