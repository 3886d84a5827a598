package api

import (
	"net/http"
	"strconv"

	"github.com/technosupport/kindyguard/internal/data"
	"github.com/technosupport/kindyguard/internal/eventlog"
)

type EventLogHandler struct {
	Log *eventlog.Service
}

type eventLogResponse struct {
	Entries    []logEntryView `json:"entries"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type logEntryView struct {
	ID            int64    `json:"id"`
	OccurredAt    string   `json:"occurred_at"`
	CameraID      string   `json:"camera_id"`
	CameraName    string   `json:"camera_name,omitempty"`
	EventType     string   `json:"event_type"`
	Outcome       string   `json:"outcome"`
	ChildID       *int64   `json:"child_id,omitempty"`
	ChildName     string   `json:"child_name,omitempty"`
	ClassName     string   `json:"class_name,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	AlertID       *int64   `json:"alert_id,omitempty"`
	Actor         string   `json:"actor,omitempty"`
	ScreenshotURL string   `json:"screenshot_url,omitempty"`
}

// List serves the event log with id-cursor pagination, newest first.
func (h *EventLogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := data.LogFilter{
		EventType: q.Get("event_type"),
		CameraID:  q.Get("camera_id"),
		Outcome:   q.Get("outcome"),
	}
	if c := q.Get("cursor"); c != "" {
		cursor, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid cursor", Code: "validation_error"})
			return
		}
		filter.Cursor = cursor
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid limit", Code: "validation_error"})
			return
		}
		filter.Limit = limit
	}

	entries, lastID, err := h.Log.Query(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "query failed", Code: "internal"})
		return
	}

	resp := eventLogResponse{Entries: make([]logEntryView, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, logEntryView{
			ID:            e.ID,
			OccurredAt:    e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
			CameraID:      e.CameraID,
			CameraName:    e.CameraName,
			EventType:     e.EventType,
			Outcome:       e.Outcome,
			ChildID:       e.ChildID,
			ChildName:     e.ChildName,
			ClassName:     e.ClassName,
			Confidence:    e.Confidence,
			AlertID:       e.AlertID,
			Actor:         e.Actor,
			ScreenshotURL: e.ScreenshotURL,
		})
	}
	if len(entries) > 0 {
		resp.NextCursor = strconv.FormatInt(lastID, 10)
	}

	writeJSON(w, http.StatusOK, resp)
}
