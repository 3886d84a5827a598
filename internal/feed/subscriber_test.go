package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The message path is tested without a broker by feeding nats.Msg values
// straight into onMessage.
func newTestSubscriber(handle Handler, onReject func(string)) *Subscriber {
	return NewSubscriber(nil, SubscriberConfig{DedupTTL: time.Minute}, handle, onReject)
}

func msgFor(t *testing.T, e *Event) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return &nats.Msg{Subject: "kindyguard.detections", Data: data}
}

func TestOnMessage_DeliversValidEvent(t *testing.T) {
	var got *Event
	s := newTestSubscriber(func(ctx context.Context, e *Event) { got = e }, nil)

	e := validEvent()
	s.onMessage(context.Background(), msgFor(t, e))

	require.NotNil(t, got)
	assert.Equal(t, e.CameraID, got.CameraID)
	assert.Equal(t, e.EventType, got.EventType)
}

func TestOnMessage_RejectsOversized(t *testing.T) {
	var reason string
	s := newTestSubscriber(func(context.Context, *Event) {
		t.Fatal("handler must not run")
	}, func(r string) { reason = r })

	s.onMessage(context.Background(), &nats.Msg{Data: bytes.Repeat([]byte("x"), MaxPayloadSize+1)})
	assert.Equal(t, "oversized", reason)
}

func TestOnMessage_RejectsUnparseable(t *testing.T) {
	var reason string
	s := newTestSubscriber(func(context.Context, *Event) {
		t.Fatal("handler must not run")
	}, func(r string) { reason = r })

	s.onMessage(context.Background(), &nats.Msg{Data: []byte("{not json")})
	assert.Equal(t, "unparseable", reason)
}

func TestOnMessage_RejectsInvalid(t *testing.T) {
	var reason string
	s := newTestSubscriber(func(context.Context, *Event) {
		t.Fatal("handler must not run")
	}, func(r string) { reason = r })

	e := validEvent()
	e.CameraID = ""
	s.onMessage(context.Background(), msgFor(t, e))
	assert.Equal(t, "invalid", reason)
}

func TestOnMessage_RejectsDuplicate(t *testing.T) {
	var handled int
	var reasons []string
	s := newTestSubscriber(
		func(context.Context, *Event) { handled++ },
		func(r string) { reasons = append(reasons, r) },
	)

	e := validEvent()
	m := msgFor(t, e)
	s.onMessage(context.Background(), m)
	s.onMessage(context.Background(), m)

	assert.Equal(t, 1, handled)
	assert.Equal(t, []string{"duplicate"}, reasons)
}
