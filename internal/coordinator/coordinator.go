package coordinator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/technosupport/kindyguard/internal/feed"
)

// Recorder receives state-machine observations. Implemented by
// metrics.Collector; a no-op stands in when metrics are disabled.
type Recorder interface {
	AlertRaised(level AlertLevel)
	AlertSuppressed()
	AlertDismissed()
	OverrideState(active bool, remainingMinutes int)
	FeedOutcome(eventType feed.EventType)
	ToastCount(n int)
	SubscriberCount(n int)
}

type nopRecorder struct{}

func (nopRecorder) AlertRaised(AlertLevel)     {}
func (nopRecorder) AlertSuppressed()           {}
func (nopRecorder) AlertDismissed()            {}
func (nopRecorder) OverrideState(bool, int)    {}
func (nopRecorder) FeedOutcome(feed.EventType) {}
func (nopRecorder) ToastCount(int)             {}
func (nopRecorder) SubscriberCount(int)        {}

// Outcome of applying a detection event.
type Outcome string

const (
	// OutcomeIgnored: entry/exit, routed to attendance and the event log only.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeRaised: the alert now occupies the active slot.
	OutcomeRaised Outcome = "raised"
	// OutcomeSuppressed: high alert downgraded to log-only by the override
	// window.
	OutcomeSuppressed Outcome = "suppressed"
)

// AllowedOverrideDurations enumerates the minutes an override window may run.
var AllowedOverrideDurations = map[int]bool{15: true, 30: true, 60: true, 120: true}

type Config struct {
	// TickInterval is the override countdown cadence. Default 1 minute.
	TickInterval time.Duration
	// AlertIDStart seeds the classifier's monotonic id counter.
	AlertIDStart int64
	// ToastID generates toast ids. Default uuid. Injectable so tests are
	// deterministic.
	ToastID func() string
	// Now is the clock. Default time.Now.
	Now func() time.Time
	// SubscriberBuffer sizes snapshot channels. Default 8.
	SubscriberBuffer int
}

// Coordinator owns the session flag, system status, the single active alert
// slot and the toast queue. Every mutation is serialized under one mutex and
// publishes a snapshot, so two overlapping detection events can never
// interleave partial writes.
type Coordinator struct {
	cfg        Config
	classifier *Classifier
	metrics    Recorder

	mu            sync.Mutex
	user          *User
	authenticated bool
	status        SystemStatus
	activeAlert   *Alert
	toasts        []Toast
	toastTimers   map[string]*time.Timer

	subs    map[int]chan Snapshot
	nextSub int

	overrideStop chan struct{}
	overrideGen  int

	wg     sync.WaitGroup
	closed bool
}

func New(cfg Config, metrics Recorder) *Coordinator {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.ToastID == nil {
		cfg.ToastID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SubscriberBuffer == 0 {
		cfg.SubscriberBuffer = 8
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Coordinator{
		cfg:        cfg,
		classifier: NewClassifier(cfg.AlertIDStart),
		metrics:    metrics,
		status: SystemStatus{
			NAS:          LinkOnline,
			OverrideMode: OverrideWindow{Active: false},
		},
		toastTimers: make(map[string]*time.Timer),
		subs:        make(map[int]chan Snapshot),
	}
}

// Login records the authenticated user. Credential checks happen in the auth
// collaborator; the coordinator trusts the User it is handed.
func (c *Coordinator) Login(u User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := u
	c.user = &cp
	c.authenticated = true
	c.publishLocked()
}

// Logout is safe to call when already logged out.
func (c *Coordinator) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil && !c.authenticated {
		return
	}
	c.user = nil
	c.authenticated = false
	c.publishLocked()
}

// SetSystemStatus shallow-merges the patch. Absent fields, including the
// nested cameras block and the override window, keep their current values.
func (c *Coordinator) SetSystemStatus(p StatusPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.NAS != nil {
		c.status.NAS = *p.NAS
	}
	if p.Cameras != nil {
		c.status.Cameras = *p.Cameras
	}
	c.publishLocked()
}

// OnDetectionEvent classifies the event and applies the transition rule:
// nil classification leaves the slot alone, a suppressed high alert never
// enters the slot, everything else overwrites it last-write-wins.
func (c *Coordinator) OnDetectionEvent(e *feed.Event) (Outcome, *Alert) {
	c.metrics.FeedOutcome(e.EventType)

	alert := c.classifier.Classify(e)
	if alert == nil {
		return OutcomeIgnored, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if alert.Level == AlertHigh && c.status.OverrideMode.Active {
		c.metrics.AlertSuppressed()
		return OutcomeSuppressed, alert
	}

	// Overwrite, never queue. The discarded alert survives in the event log.
	c.activeAlert = alert
	c.metrics.AlertRaised(alert.Level)
	c.publishLocked()
	return OutcomeRaised, alert
}

// DismissAlert clears the slot iff the id matches the occupant. This is the
// only path by which an alert leaves the slot; there is no timeout.
func (c *Coordinator) DismissAlert(id int64, dismissedBy string) (*Alert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeAlert == nil || c.activeAlert.ID != id {
		return nil, ErrAlertNotFound
	}

	dismissed := *c.activeAlert
	now := c.cfg.Now()
	dismissed.Status = AlertDismissed
	dismissed.DismissedBy = dismissedBy
	dismissed.DismissedAt = &now

	c.activeAlert = nil
	c.metrics.AlertDismissed()
	c.publishLocked()
	return &dismissed, nil
}

// ActivateOverride opens a suppression window. A blank reason is rejected
// with exactly one warning toast and no status change; an open window must be
// ended before a new one starts.
func (c *Coordinator) ActivateOverride(durationMinutes int, reason, actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(reason) == "" {
		c.addToastLocked(Toast{Type: ToastWarning, Message: "請輸入啟用原因"})
		c.publishLocked()
		return ErrEmptyReason
	}
	if !AllowedOverrideDurations[durationMinutes] {
		c.addToastLocked(Toast{Type: ToastWarning, Message: "Override 時長僅允許 15/30/60/120 分鐘"})
		c.publishLocked()
		return ErrBadDuration
	}
	if c.status.OverrideMode.Active {
		return ErrOverrideActive
	}

	now := c.cfg.Now()
	c.status.OverrideMode = OverrideWindow{
		Active:           true,
		Reason:           reason,
		RemainingMinutes: durationMinutes,
		ActivatedBy:      actor,
		ActivatedAt:      &now,
	}
	c.metrics.OverrideState(true, durationMinutes)

	c.overrideGen++
	stop := make(chan struct{})
	c.overrideStop = stop
	c.wg.Add(1)
	go c.runCountdown(c.overrideGen, stop)

	c.addToastLocked(Toast{Type: ToastInfo, Message: overrideActivatedMessage(durationMinutes)})
	c.publishLocked()
	return nil
}

// EndOverride closes the window immediately regardless of remaining time.
// The UI enforces its confirm step before calling this.
func (c *Coordinator) EndOverride(actor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.status.OverrideMode.Active {
		return ErrOverrideInactive
	}

	c.closeOverrideLocked()
	c.addToastLocked(Toast{Type: ToastSuccess, Message: "Override 模式已結束"})
	c.publishLocked()
	return nil
}

// closeOverrideLocked resets the window and cancels the pending countdown so
// a stale tick cannot re-fire after the window is closed.
func (c *Coordinator) closeOverrideLocked() {
	c.status.OverrideMode = OverrideWindow{Active: false}
	c.metrics.OverrideState(false, 0)
	if c.overrideStop != nil {
		close(c.overrideStop)
		c.overrideStop = nil
	}
}

func (c *Coordinator) runCountdown(gen int, stop chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick decrements the countdown. Returns false once this goroutine's window
// is gone; the generation check guards against a tick racing a close followed
// by a fresh activation.
func (c *Coordinator) tick(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.overrideGen || !c.status.OverrideMode.Active {
		return false
	}

	c.status.OverrideMode.RemainingMinutes--
	if c.status.OverrideMode.RemainingMinutes <= 0 {
		c.status.OverrideMode = OverrideWindow{Active: false}
		c.overrideStop = nil
		c.metrics.OverrideState(false, 0)
		c.addToastLocked(Toast{Type: ToastInfo, Message: "Override 模式已到期，警戒已恢復"})
		c.publishLocked()
		return false
	}

	c.metrics.OverrideState(true, c.status.OverrideMode.RemainingMinutes)
	c.publishLocked()
	return true
}

// AddToast appends a toast with a fresh id and schedules its self-removal.
func (c *Coordinator) AddToast(t Toast) Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := c.addToastLocked(t)
	c.publishLocked()
	return added
}

func (c *Coordinator) addToastLocked(t Toast) Toast {
	t.ID = c.cfg.ToastID()
	if t.DurationMS <= 0 {
		t.DurationMS = DefaultToastDurationMS
	}
	c.toasts = append(c.toasts, t)
	c.metrics.ToastCount(len(c.toasts))

	if !c.closed {
		id := t.ID
		c.toastTimers[id] = time.AfterFunc(time.Duration(t.DurationMS)*time.Millisecond, func() {
			c.RemoveToast(id)
		})
	}
	return t
}

// RemoveToast is idempotent; removing an absent id is a no-op.
func (c *Coordinator) RemoveToast(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.toastTimers[id]; ok {
		timer.Stop()
		delete(c.toastTimers, id)
	}

	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			c.metrics.ToastCount(len(c.toasts))
			c.publishLocked()
			return
		}
	}
}

// Subscribe registers a snapshot channel. Slow consumers miss intermediate
// snapshots rather than blocking mutations; they always receive a later one.
func (c *Coordinator) Subscribe() (int, <-chan Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSub++
	id := c.nextSub
	ch := make(chan Snapshot, c.cfg.SubscriberBuffer)
	c.subs[id] = ch
	c.metrics.SubscriberCount(len(c.subs))

	// Seed with the current state so new subscribers need no extra fetch.
	ch <- c.snapshotLocked()
	return id, ch
}

func (c *Coordinator) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
		c.metrics.SubscriberCount(len(c.subs))
	}
}

// Snapshot returns a read-only copy of the full coordinator state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	snap := Snapshot{
		IsAuthenticated: c.authenticated,
		SystemStatus:    c.status,
		Toasts:          make([]Toast, len(c.toasts)),
	}
	copy(snap.Toasts, c.toasts)

	if c.user != nil {
		u := *c.user
		snap.User = &u
	}
	if c.activeAlert != nil {
		a := *c.activeAlert
		snap.ActiveAlert = &a
	}
	return snap
}

func (c *Coordinator) publishLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Buffer full; the subscriber gets the next snapshot instead.
		}
	}
}

// Close cancels the countdown and all toast timers and closes subscriber
// channels. The coordinator must not be used afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	if c.overrideStop != nil {
		close(c.overrideStop)
		c.overrideStop = nil
	}
	for id, timer := range c.toastTimers {
		timer.Stop()
		delete(c.toastTimers, id)
	}
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
}

func overrideActivatedMessage(minutes int) string {
	return fmt.Sprintf("Override 模式已啟用 %d 分鐘", minutes)
}
