package eventlog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/technosupport/kindyguard/internal/coordinator"
	"github.com/technosupport/kindyguard/internal/data"
	"github.com/technosupport/kindyguard/internal/feed"
)

// Repository is the slice of data.EventLogModel the service needs.
type Repository interface {
	Insert(ctx context.Context, e *data.LogEntry) error
	List(ctx context.Context, f data.LogFilter) ([]data.LogEntry, int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service is the passive, append-only record of everything the feed produced
// and what the coordinator did with it. Suppressed high alerts land here and
// nowhere else.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordDetection writes a feed event with its coordinator outcome.
func (s *Service) RecordDetection(ctx context.Context, e *feed.Event, outcome coordinator.Outcome, alert *coordinator.Alert) error {
	entry := &data.LogEntry{
		EventID:       e.EventID,
		OccurredAt:    e.OccurredAt,
		CameraID:      e.CameraID,
		CameraName:    e.CameraName,
		EventType:     string(e.EventType),
		Outcome:       string(outcome),
		ChildID:       e.ChildID,
		ChildName:     e.ChildName,
		ClassName:     e.ClassName,
		Confidence:    e.Confidence,
		ScreenshotURL: e.ScreenshotURL,
	}
	if alert != nil {
		id := alert.ID
		entry.AlertID = &id
	}
	return s.repo.Insert(ctx, entry)
}

// RecordDismissal appends an alert-dismissed lifecycle record.
func (s *Service) RecordDismissal(ctx context.Context, alert *coordinator.Alert, actor string) error {
	id := alert.ID
	return s.repo.Insert(ctx, &data.LogEntry{
		OccurredAt: time.Now().UTC(),
		CameraID:   alert.CameraID,
		CameraName: alert.CameraName,
		EventType:  "alert_dismissed",
		Outcome:    "dismissed",
		ChildID:    alert.ChildID,
		ChildName:  alert.ChildName,
		AlertID:    &id,
		Actor:      actor,
	})
}

// RecordOverride appends an override lifecycle record (activated/ended/expired).
func (s *Service) RecordOverride(ctx context.Context, action, reason, actor string, minutes int) error {
	return s.repo.Insert(ctx, &data.LogEntry{
		OccurredAt: time.Now().UTC(),
		CameraID:   "-",
		EventType:  "override_" + action,
		Outcome:    fmt.Sprintf("%dm", minutes),
		ClassName:  reason,
		Actor:      actor,
	})
}

func (s *Service) Query(ctx context.Context, f data.LogFilter) ([]data.LogEntry, int64, error) {
	return s.repo.List(ctx, f)
}

// StartRetention prunes entries older than retentionDays once a day.
func (s *Service) StartRetention(ctx context.Context, retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retentionDays)
				n, err := s.repo.DeleteBefore(ctx, cutoff)
				if err != nil {
					log.Printf("[EVENTLOG] Retention prune failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[EVENTLOG] Pruned %d entries older than %s", n, cutoff.Format("2006-01-02"))
				}
			}
		}
	}()
}
