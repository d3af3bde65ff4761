// Package queue holds the client side of the virtual waiting line: a
// coordinator merging REST snapshots with live broadcasts, the purchase
// flow state machine and its countdown.
package queue

import (
	"encoding/json"
	"log"
	"sync"

	"ticket-storefront/shared"
)

// Subscriber is the slice of the realtime connection the coordinator
// needs. *realtime.Conn satisfies it.
type Subscriber interface {
	Connect(onConnected func(), onError func(error))
	Subscribe(destination string, handler func(body []byte))
	Unsubscribe(destination string)
	IsConnected() bool
}

// Coordinator reconciles the caller's queue position for one event. It
// subscribes to the personal event topic and the per-event broadcast
// topic on the shared connection; broadcast entries for other users are
// discarded. Transport errors are logged and swallowed, since queue
// position is recoverable from REST polling. The seat client handles
// them differently, see seat.Coordinator.
type Coordinator struct {
	conn    Subscriber
	eventID string
	userID  string

	mu            sync.RWMutex
	started       bool
	connected     bool
	position      *int
	estimatedWait *int
	progress      *float64
	personal      *shared.PersonalQueueEvent

	notify chan struct{}
}

// NewCoordinator creates a coordinator for (user, event) over the shared
// connection.
func NewCoordinator(conn Subscriber, eventID, userID string) *Coordinator {
	return &Coordinator{
		conn:    conn,
		eventID: eventID,
		userID:  userID,
		notify:  make(chan struct{}, 1),
	}
}

// Start connects and subscribes both destinations. Calling Start twice
// is a no-op.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.conn.Connect(func() {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.conn.Subscribe(shared.PersonalQueueTopic(c.userID), c.handlePersonal)
		c.conn.Subscribe(shared.EventQueueTopic(c.eventID), c.handleBroadcast)
		c.wake()
	}, func(err error) {
		log.Printf("[QUEUE] realtime connection error: %v", err)
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.wake()
	})
}

// Stop unsubscribes this coordinator's destinations. It must not tear
// down the shared connection; other consumers may still need it.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.connected = false
	c.mu.Unlock()

	c.conn.Unsubscribe(shared.PersonalQueueTopic(c.userID))
	c.conn.Unsubscribe(shared.EventQueueTopic(c.eventID))
}

func (c *Coordinator) handlePersonal(body []byte) {
	var ev shared.PersonalQueueEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Printf("[QUEUE] dropping malformed personal event: %v", err)
		return
	}
	c.mu.Lock()
	// last write wins: these are consumed promptly and the lifecycle is
	// monotonic, so only the newest transition matters
	c.personal = &ev
	c.mu.Unlock()
	c.wake()
}

func (c *Coordinator) handleBroadcast(body []byte) {
	var roster map[string]shared.WaitingQueueBroadcast
	if err := json.Unmarshal(body, &roster); err != nil {
		log.Printf("[QUEUE] dropping malformed queue broadcast: %v", err)
		return
	}
	entry, ok := roster[c.userID]
	if !ok {
		return
	}
	c.mu.Lock()
	pos, wait, prog := entry.Position, entry.EstimatedWaitMinutes, entry.ProgressPercent
	c.position = &pos
	c.estimatedWait = &wait
	c.progress = &prog
	c.mu.Unlock()
	c.wake()
}

// ApplySnapshot overlays a REST queue snapshot. Later broadcasts override
// it field by field.
func (c *Coordinator) ApplySnapshot(status *shared.QueueStatus) {
	if status == nil {
		return
	}
	c.mu.Lock()
	rank, wait, prog := status.Rank, status.EstimatedWaitMinutes, status.ProgressPercent
	c.position = &rank
	c.estimatedWait = &wait
	c.progress = &prog
	c.mu.Unlock()
	c.wake()
}

// Position returns the current queue rank; ok is false until a snapshot
// or broadcast has arrived.
func (c *Coordinator) Position() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.position == nil {
		return 0, false
	}
	return *c.position, true
}

// EstimatedWait returns the estimated wait in minutes.
func (c *Coordinator) EstimatedWait() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.estimatedWait == nil {
		return 0, false
	}
	return *c.estimatedWait, true
}

// Progress returns the queue progress percentage.
func (c *Coordinator) Progress() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.progress == nil {
		return 0, false
	}
	return *c.progress, true
}

// PersonalEvent returns the pending one-shot lifecycle event, or nil.
func (c *Coordinator) PersonalEvent() *shared.PersonalQueueEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.personal == nil {
		return nil
	}
	ev := *c.personal
	return &ev
}

// ClearPersonalEvent marks the pending event consumed.
func (c *Coordinator) ClearPersonalEvent() {
	c.mu.Lock()
	c.personal = nil
	c.mu.Unlock()
}

// Connected reports whether the realtime feed is up.
func (c *Coordinator) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn.IsConnected()
}

// Updates returns a coalesced wake channel: it receives after any state
// change, dropping signals while the consumer is busy.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.notify
}

func (c *Coordinator) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
