package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one row of the append-only event log: a detection event plus
// the outcome the coordinator assigned to it, or an alert/override lifecycle
// record written by the API layer.
type LogEntry struct {
	ID         int64
	EventID    uuid.UUID
	OccurredAt time.Time
	RecordedAt time.Time

	CameraID   string
	CameraName string
	EventType  string
	Outcome    string

	ChildID    *int64
	ChildName  string
	ClassName  string
	Confidence *float64

	AlertID *int64
	Actor   string

	ScreenshotURL string
}

type LogFilter struct {
	EventType string
	CameraID  string
	Outcome   string
	Cursor    int64 // exclusive upper bound on id; 0 means newest
	Limit     int
}

type EventLogModel struct {
	DB DBTX
}

// Insert is idempotent on event_id so a replayed feed message never produces
// a second row.
func (m EventLogModel) Insert(ctx context.Context, e *LogEntry) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO event_log (
			event_id, occurred_at, recorded_at, camera_id, camera_name,
			event_type, outcome, child_id, child_name, class_name,
			confidence, alert_id, actor, screenshot_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := m.DB.ExecContext(ctx, query,
		e.EventID, e.OccurredAt, e.RecordedAt, e.CameraID, e.CameraName,
		e.EventType, e.Outcome, e.ChildID, e.ChildName, e.ClassName,
		e.Confidence, e.AlertID, e.Actor, e.ScreenshotURL,
	)
	return err
}

// List returns entries newest-first with id-based cursor scrolling.
func (m EventLogModel) List(ctx context.Context, f LogFilter) ([]LogEntry, int64, error) {
	q := `
		SELECT id, event_id, occurred_at, recorded_at, camera_id, camera_name,
		       event_type, outcome, child_id, child_name, class_name,
		       confidence, alert_id, actor, screenshot_url
		FROM event_log
		WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.EventType != "" {
		q += fmt.Sprintf(" AND event_type = $%d", idx)
		args = append(args, f.EventType)
		idx++
	}
	if f.CameraID != "" {
		q += fmt.Sprintf(" AND camera_id = $%d", idx)
		args = append(args, f.CameraID)
		idx++
	}
	if f.Outcome != "" {
		q += fmt.Sprintf(" AND outcome = $%d", idx)
		args = append(args, f.Outcome)
		idx++
	}
	if f.Cursor > 0 {
		q += fmt.Sprintf(" AND id < $%d", idx)
		args = append(args, f.Cursor)
		idx++
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := m.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []LogEntry
	var lastID int64

	for rows.Next() {
		var e LogEntry
		var childName, className, actor, screenshot sql.NullString
		var cameraName sql.NullString
		if err := rows.Scan(
			&e.ID, &e.EventID, &e.OccurredAt, &e.RecordedAt, &e.CameraID, &cameraName,
			&e.EventType, &e.Outcome, &e.ChildID, &childName, &className,
			&e.Confidence, &e.AlertID, &actor, &screenshot,
		); err != nil {
			return nil, 0, err
		}
		e.CameraName = cameraName.String
		e.ChildName = childName.String
		e.ClassName = className.String
		e.Actor = actor.String
		e.ScreenshotURL = screenshot.String
		entries = append(entries, e)
		lastID = e.ID
	}
	return entries, lastID, rows.Err()
}

// DeleteBefore prunes entries older than the cutoff. Returns rows removed.
func (m EventLogModel) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.DB.ExecContext(ctx, `DELETE FROM event_log WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
