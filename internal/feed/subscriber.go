package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const MaxPayloadSize = 8 * 1024 // 8KB

// Handler receives every valid, non-duplicate detection event. Wiring decides
// what happens next (coordinator apply + event log write).
type Handler func(ctx context.Context, e *Event)

type SubscriberConfig struct {
	Subject     string
	DedupMax    int
	DedupTTL    time.Duration
	QueueGroup  string
	HandleSlowW time.Duration // warn threshold for slow handlers
}

// Subscriber consumes the recognition pipeline's detection subject and
// serializes events into the handler.
type Subscriber struct {
	conn     *nats.Conn
	cfg      SubscriberConfig
	dedup    *Dedup
	handle   Handler
	onReject func(reason string)

	sub *nats.Subscription
}

func NewSubscriber(conn *nats.Conn, cfg SubscriberConfig, handle Handler, onReject func(reason string)) *Subscriber {
	if cfg.Subject == "" {
		cfg.Subject = "kindyguard.detections"
	}
	if cfg.HandleSlowW == 0 {
		cfg.HandleSlowW = 500 * time.Millisecond
	}
	if onReject == nil {
		onReject = func(string) {}
	}
	return &Subscriber{
		conn:     conn,
		cfg:      cfg,
		dedup:    NewDedup(cfg.DedupMax, cfg.DedupTTL),
		handle:   handle,
		onReject: onReject,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	cb := func(msg *nats.Msg) {
		s.onMessage(ctx, msg)
	}

	var sub *nats.Subscription
	var err error
	if s.cfg.QueueGroup != "" {
		sub, err = s.conn.QueueSubscribe(s.cfg.Subject, s.cfg.QueueGroup, cb)
	} else {
		sub, err = s.conn.Subscribe(s.cfg.Subject, cb)
	}
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("[FEED] Subscribed to %s", s.cfg.Subject)
	return nil
}

func (s *Subscriber) Stop() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}
}

func (s *Subscriber) onMessage(ctx context.Context, msg *nats.Msg) {
	if len(msg.Data) > MaxPayloadSize {
		log.Printf("[FEED] Dropping oversized payload: %d bytes", len(msg.Data))
		s.onReject("oversized")
		return
	}

	var evt Event
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		log.Printf("[FEED] Dropping unparseable payload: %v", err)
		s.onReject("unparseable")
		return
	}

	if err := Validate(&evt); err != nil {
		log.Printf("[FEED] Dropping invalid event: %v", err)
		s.onReject("invalid")
		return
	}

	if s.dedup.IsDuplicate(DedupKey(&evt)) {
		s.onReject("duplicate")
		return
	}

	start := time.Now()
	s.handle(ctx, &evt)
	if d := time.Since(start); d > s.cfg.HandleSlowW {
		log.Printf("[FEED] Slow handler: %v for event %s", d, evt.EventID)
	}
}
