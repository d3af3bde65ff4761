package queue

import (
	"errors"
	"testing"

	"ticket-storefront/realtime"
	"ticket-storefront/shared"
)

var _ Subscriber = (*realtime.Conn)(nil)

// fakeSubscriber records subscription traffic and lets tests inject
// frames into registered handlers.
type fakeSubscriber struct {
	connected    bool
	handlers     map[string]func([]byte)
	unsubscribed []string
	disconnects  int
	onError      func(error)
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]func([]byte))}
}

func (f *fakeSubscriber) Connect(onConnected func(), onError func(error)) {
	f.connected = true
	f.onError = onError
	onConnected()
}

func (f *fakeSubscriber) Subscribe(destination string, handler func(body []byte)) {
	f.handlers[destination] = handler
}

func (f *fakeSubscriber) Unsubscribe(destination string) {
	delete(f.handlers, destination)
	f.unsubscribed = append(f.unsubscribed, destination)
}

func (f *fakeSubscriber) IsConnected() bool { return f.connected }

func (f *fakeSubscriber) deliver(destination string, body string) bool {
	h, ok := f.handlers[destination]
	if !ok {
		return false
	}
	h([]byte(body))
	return true
}

func TestCoordinatorSubscribesBothTopics(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()

	for _, dest := range []string{
		shared.PersonalQueueTopic("u-42"),
		shared.EventQueueTopic("concert-1"),
	} {
		if _, ok := sub.handlers[dest]; !ok {
			t.Errorf("no subscription for %s", dest)
		}
	}
	if !c.Connected() {
		t.Error("Connected = false after connect")
	}
}

func TestCoordinatorKeepsOnlyOwnBroadcastEntry(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()

	payload := `{
		"u-41": {"position": 1, "estimatedWaitMinutes": 0, "progressPercent": 99.0},
		"u-42": {"position": 7, "estimatedWaitMinutes": 3, "progressPercent": 65.5}
	}`
	if !sub.deliver(shared.EventQueueTopic("concert-1"), payload) {
		t.Fatal("broadcast not delivered")
	}

	if pos, ok := c.Position(); !ok || pos != 7 {
		t.Errorf("Position = %d, %v, want 7, true", pos, ok)
	}
	if wait, ok := c.EstimatedWait(); !ok || wait != 3 {
		t.Errorf("EstimatedWait = %d, %v, want 3, true", wait, ok)
	}
	if prog, ok := c.Progress(); !ok || prog != 65.5 {
		t.Errorf("Progress = %v, %v, want 65.5, true", prog, ok)
	}
}

func TestCoordinatorIgnoresBroadcastWithoutOwnEntry(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()

	sub.deliver(shared.EventQueueTopic("concert-1"),
		`{"u-99": {"position": 1, "estimatedWaitMinutes": 0, "progressPercent": 10}}`)

	if _, ok := c.Position(); ok {
		t.Error("Position set from a broadcast without our entry")
	}
}

func TestCoordinatorPersonalEventLastWriteWins(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()

	personal := shared.PersonalQueueTopic("u-42")
	sub.deliver(personal, `{"enteredAt":"2026-03-01T20:00:00Z","message":"in"}`)
	sub.deliver(personal, `{"expiredAt":"2026-03-01T20:15:00Z","message":"out"}`)

	ev := c.PersonalEvent()
	if ev == nil {
		t.Fatal("PersonalEvent = nil")
	}
	if ev.Kind != shared.PersonalExpired {
		t.Errorf("Kind = %s, want %s", ev.Kind, shared.PersonalExpired)
	}

	c.ClearPersonalEvent()
	if c.PersonalEvent() != nil {
		t.Error("PersonalEvent not cleared")
	}
}

func TestCoordinatorDropsMalformedPayloads(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()

	sub.deliver(shared.PersonalQueueTopic("u-42"), `{"message":"no timestamp"}`)
	sub.deliver(shared.EventQueueTopic("concert-1"), `not json`)

	if c.PersonalEvent() != nil {
		t.Error("malformed personal event was stored")
	}
	if _, ok := c.Position(); ok {
		t.Error("malformed broadcast set a position")
	}
}

func TestCoordinatorTransportErrorsAreSwallowed(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()

	sub.connected = false
	sub.onError(errors.New("connection reset"))

	if c.Connected() {
		t.Error("Connected = true after transport error")
	}
	// position data survives the outage for REST-based recovery
	c.ApplySnapshot(&shared.QueueStatus{Rank: 12})
	if pos, ok := c.Position(); !ok || pos != 12 {
		t.Errorf("Position = %d, %v after error, want 12, true", pos, ok)
	}
}

func TestCoordinatorStopUnsubscribesOnly(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()
	c.Stop()

	if len(sub.unsubscribed) != 2 {
		t.Errorf("unsubscribed %d destinations, want 2", len(sub.unsubscribed))
	}
	if sub.disconnects != 0 {
		t.Errorf("Stop tore down the shared connection %d times, want 0", sub.disconnects)
	}
}

func TestCoordinatorUpdatesCoalesce(t *testing.T) {
	sub := newFakeSubscriber()
	c := NewCoordinator(sub, "concert-1", "u-42")
	c.Start()

	c.ApplySnapshot(&shared.QueueStatus{Rank: 5})
	c.ApplySnapshot(&shared.QueueStatus{Rank: 4})

	select {
	case <-c.Updates():
	default:
		t.Fatal("no update signal pending")
	}
	select {
	case <-c.Updates():
		t.Error("updates were not coalesced")
	default:
	}
}
