package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/eventlog"
)

type OverrideHandler struct {
	Coord *coordinator.Coordinator
	Log   *eventlog.Service
}

type ActivateOverrideRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Activate opens a suppression window. Validation failures already produced
// their warning toast inside the coordinator; the status code tells the
// frontend whether the form needs attention.
func (h *OverrideHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: "validation_error"})
		return
	}

	actor := actorName(r)
	err := h.Coord.ActivateOverride(req.DurationMinutes, req.Reason, actor)
	switch {
	case errors.Is(err, coordinator.ErrEmptyReason), errors.Is(err, coordinator.ErrBadDuration):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error(), Code: "validation_error"})
		return
	case errors.Is(err, coordinator.ErrOverrideActive):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error(), Code: "state_conflict"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "activate failed", Code: "internal"})
		return
	}

	if h.Log != nil {
		if err := h.Log.RecordOverride(r.Context(), "activated", req.Reason, actor, req.DurationMinutes); err != nil {
			log.Printf("[OVERRIDE] Event log write failed: %v", err)
		}
	}

	writeJSON(w, http.StatusCreated, h.Coord.Snapshot().SystemStatus.OverrideMode)
}

// End closes the window immediately. The frontend shows its confirm dialog
// before calling; ending an already-closed window is treated as success.
func (h *OverrideHandler) End(w http.ResponseWriter, r *http.Request) {
	actor := actorName(r)
	err := h.Coord.EndOverride(actor)
	if err != nil && !errors.Is(err, coordinator.ErrOverrideInactive) {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "end failed", Code: "internal"})
		return
	}

	if err == nil && h.Log != nil {
		if logErr := h.Log.RecordOverride(r.Context(), "ended", "", actor, 0); logErr != nil {
			log.Printf("[OVERRIDE] Event log write failed: %v", logErr)
		}
	}

	writeJSON(w, http.StatusOK, h.Coord.Snapshot().SystemStatus.OverrideMode)
}
