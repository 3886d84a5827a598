package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventEntry   EventType = "entry"
	EventExit    EventType = "exit"
	EventWarning EventType = "warning"
	EventAlert   EventType = "alert"
)

// Event is the normalized detection envelope published by the recognition
// pipeline. Immutable once produced.
type Event struct {
	EventID    uuid.UUID `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`

	CameraID   string `json:"camera_id"`
	CameraName string `json:"camera_name,omitempty"`

	EventType EventType `json:"event_type"`

	ChildID   *int64 `json:"child_id,omitempty"`
	ChildName string `json:"child_name,omitempty"`
	ClassName string `json:"class_name,omitempty"`

	Confidence    *float64 `json:"confidence,omitempty"`
	ScreenshotURL string   `json:"screenshot_url,omitempty"`
}

var ErrInvalidEvent = errors.New("invalid detection event")

// Validate enforces the inbound contract. The feed collaborator is trusted to
// send validated data, but a malformed payload must never reach the
// coordinator.
func Validate(e *Event) error {
	switch e.EventType {
	case EventEntry, EventExit, EventWarning, EventAlert:
	default:
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidEvent, e.EventType)
	}
	if e.CameraID == "" {
		return fmt.Errorf("%w: missing camera_id", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return fmt.Errorf("%w: confidence out of range: %f", ErrInvalidEvent, *e.Confidence)
	}
	return nil
}
