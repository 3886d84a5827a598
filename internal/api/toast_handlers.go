package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/kindyguard/internal/coordinator"
)

type ToastHandler struct {
	Coord *coordinator.Coordinator
}

type AddToastRequest struct {
	Type       coordinator.ToastType `json:"type"`
	Message    string                `json:"message"`
	DurationMS int                   `json:"duration_ms"`
}

func (h *ToastHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddToastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: "validation_error"})
		return
	}

	switch req.Type {
	case coordinator.ToastSuccess, coordinator.ToastError, coordinator.ToastWarning, coordinator.ToastInfo:
	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "unknown toast type", Code: "validation_error"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "message required", Code: "validation_error"})
		return
	}

	toast := h.Coord.AddToast(coordinator.Toast{
		Type:       req.Type,
		Message:    req.Message,
		DurationMS: req.DurationMS,
	})
	writeJSON(w, http.StatusCreated, toast)
}

// Remove is idempotent; an unknown id still returns 204.
func (h *ToastHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.Coord.RemoveToast(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
