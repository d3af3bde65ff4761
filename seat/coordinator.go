// Package seat holds the client side of live seat availability: a
// coordinator keeping a bounded log of status-change broadcasts and a
// pure reconciliation fold applying that log to a REST seat snapshot.
package seat

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

// Coordinator follows the per-event seat broadcast topic. Unlike the
// queue coordinator it treats transport errors as fatal for the feature:
// stale seat data can sell a user a seat that is already gone, so the
// owner is told instead of the error being logged away.
type Coordinator struct {
	conn    Subscriber
	eventID string
	onError func(error)

	changes *shared.Ring[shared.SeatStatusChangeEvent]

	mu        sync.Mutex
	started   bool
	connected bool

	notify chan struct{}
}

// NewCoordinator creates a seat coordinator for an event. onError
// receives fatal transport errors; it may be nil.
func NewCoordinator(conn Subscriber, eventID string, onError func(error)) *Coordinator {
	return &Coordinator{
		conn:    conn,
		eventID: eventID,
		onError: onError,
		changes: shared.NewRing[shared.SeatStatusChangeEvent](shared.SeatChangeLogCap),
		notify:  make(chan struct{}, 1),
	}
}

// Start connects and subscribes the seat broadcast destination. Calling
// Start twice is a no-op.
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
		c.conn.Subscribe(shared.EventSeatTopic(c.eventID), c.handleFrame)
		c.wake()
	}, func(err error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.wake()
		if c.onError != nil {
			c.onError(err)
		}
	})
}

// Stop unsubscribes the destination, leaving the shared connection up.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.connected = false
	c.mu.Unlock()

	c.conn.Unsubscribe(shared.EventSeatTopic(c.eventID))
}

func (c *Coordinator) handleFrame(body []byte) {
	var ev shared.SeatStatusChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Printf("[SEAT] dropping malformed seat event: %v", err)
		return
	}
	if ev.SeatID == 0 || ev.CurrentStatus == "" {
		log.Printf("[SEAT] dropping seat event with missing fields: %+v", ev)
		return
	}
	c.changes.Push(ev)
	c.wake()
}

// Changes returns the change log, most recent first, capped at
// shared.SeatChangeLogCap entries.
func (c *Coordinator) Changes() []shared.SeatStatusChangeEvent {
	return c.changes.Items()
}

// Connected reports whether the realtime feed is up.
func (c *Coordinator) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn.IsConnected()
}

// Updates returns a coalesced wake channel signalled on every accepted
// change event.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.notify
}

func (c *Coordinator) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
