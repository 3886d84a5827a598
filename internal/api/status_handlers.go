package api

import (
	"encoding/json"
	"net/http"

	"github.com/technosupport/kindyguard/internal/coordinator"
)

type StatusHandler struct {
	Coord *coordinator.Coordinator
}

// Patch shallow-merges link health reported by the camera/NAS collaborators.
// Absent fields keep their current values.
func (h *StatusHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var patch coordinator.StatusPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: "validation_error"})
		return
	}
	if patch.NAS != nil && *patch.NAS != coordinator.LinkOnline && *patch.NAS != coordinator.LinkOffline {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "nas must be online or offline", Code: "validation_error"})
		return
	}

	h.Coord.SetSystemStatus(patch)
	writeJSON(w, http.StatusOK, h.Coord.Snapshot().SystemStatus)
}

func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
