package coordinator

import (
	"sync/atomic"
	"time"

	"github.com/technosupport/kindyguard/internal/feed"
)

// Classifier maps a detection event to at most one alert. Pure apart from the
// id counter: same event in, same alert out (modulo id).
type Classifier struct {
	nextID atomic.Int64
}

// NewClassifier starts ids at start+1. Ids are unique and strictly increasing
// in creation order so dismiss targeting is idempotent.
func NewClassifier(start int64) *Classifier {
	c := &Classifier{}
	c.nextID.Store(start)
	return c
}

// Classify returns nil for entry/exit events; those feed attendance and the
// event log only.
func (c *Classifier) Classify(e *feed.Event) *Alert {
	var level AlertLevel
	var alertType, message string

	switch e.EventType {
	case feed.EventAlert:
		level = AlertHigh
		alertType = "perimeter_breach"
		message = "偵測到週界入侵"
	case feed.EventWarning:
		level = AlertLow
		alertType = "unknown_person"
		message = "偵測到未知人員"
	default:
		return nil
	}

	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return &Alert{
		ID:         c.nextID.Add(1),
		Level:      level,
		Type:       alertType,
		Message:    message,
		Timestamp:  ts,
		CameraID:   e.CameraID,
		CameraName: e.CameraName,
		ChildID:    e.ChildID,
		ChildName:  e.ChildName,
		Status:     AlertActive,
	}
}
