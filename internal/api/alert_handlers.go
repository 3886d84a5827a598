package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/eventlog"
)

type AlertHandler struct {
	Coord *coordinator.Coordinator
	Log   *eventlog.Service
}

// Dismiss clears the active slot when the id matches. A stale id (already
// dismissed or superseded) is a benign no-op, so both paths return 204 and
// the UI never shows an error for a double click.
func (h *AlertHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid alert id", http.StatusBadRequest)
		return
	}

	dismissed, err := h.Coord.DismissAlert(id, actorName(r))
	if err != nil {
		if errors.Is(err, coordinator.ErrAlertNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "dismiss failed", http.StatusInternalServerError)
		return
	}

	if h.Log != nil {
		if err := h.Log.RecordDismissal(r.Context(), dismissed, actorName(r)); err != nil {
			log.Printf("[ALERTS] Event log write failed for dismissal of %d: %v", id, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
