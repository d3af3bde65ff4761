package shared

import (
	"encoding/json"
	"fmt"
	"time"
)

// LifecycleState is the server's authoritative view of a user's queue
// progress for an event.
type LifecycleState string

const (
	LifecycleWaiting   LifecycleState = "WAITING"
	LifecycleEntered   LifecycleState = "ENTERED"
	LifecycleExpired   LifecycleState = "EXPIRED"
	LifecycleCompleted LifecycleState = "COMPLETED"
)

// SeatStatus values
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatSold      SeatStatus = "SOLD"
	SeatReserved  SeatStatus = "RESERVED"
)

// QueueStatus is the REST snapshot of a user's position in an event queue.
// Broadcast frames override these values in memory as they arrive.
type QueueStatus struct {
	Rank                 int            `json:"rank"`
	WaitingAhead         int            `json:"waitingAhead"`
	EstimatedWaitMinutes int            `json:"estimatedWaitMinutes"`
	ProgressPercent      float64        `json:"progressPercent"`
	LifecycleState       LifecycleState `json:"lifecycleState"`
}

// WaitingQueueBroadcast is one user's entry in the per-event queue broadcast.
// The broadcast payload is a map of user ID to this snapshot; clients keep
// only their own entry.
type WaitingQueueBroadcast struct {
	Position             int     `json:"position"`
	EstimatedWaitMinutes int     `json:"estimatedWaitMinutes"`
	ProgressPercent      float64 `json:"progressPercent"`
}

// PersonalEventKind discriminates the personal queue event union.
type PersonalEventKind string

const (
	PersonalEntered   PersonalEventKind = "entered"
	PersonalExpired   PersonalEventKind = "expired"
	PersonalCompleted PersonalEventKind = "completed"
)

// PersonalQueueEvent is a one-shot lifecycle signal delivered on the
// per-user topic. On the wire it carries exactly one of enteredAt,
// expiredAt or completedAt; Kind is assigned while decoding so consumers
// dispatch on an explicit tag instead of sniffing keys.
type PersonalQueueEvent struct {
	Kind       PersonalEventKind
	OccurredAt time.Time
	Message    string
}

type personalQueueEventWire struct {
	EnteredAt   *time.Time `json:"enteredAt,omitempty"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Message     string     `json:"message"`
}

// UnmarshalJSON decodes the tagged union, rejecting payloads that carry
// none or more than one of the timestamp keys.
func (e *PersonalQueueEvent) UnmarshalJSON(data []byte) error {
	var wire personalQueueEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var kind PersonalEventKind
	var at *time.Time
	count := 0
	if wire.EnteredAt != nil {
		kind, at = PersonalEntered, wire.EnteredAt
		count++
	}
	if wire.ExpiredAt != nil {
		kind, at = PersonalExpired, wire.ExpiredAt
		count++
	}
	if wire.CompletedAt != nil {
		kind, at = PersonalCompleted, wire.CompletedAt
		count++
	}
	if count != 1 {
		return fmt.Errorf("personal queue event: expected exactly one lifecycle timestamp, got %d", count)
	}

	e.Kind = kind
	e.OccurredAt = *at
	e.Message = wire.Message
	return nil
}

// MarshalJSON produces the wire form with the timestamp key matching Kind.
func (e PersonalQueueEvent) MarshalJSON() ([]byte, error) {
	wire := personalQueueEventWire{Message: e.Message}
	at := e.OccurredAt
	switch e.Kind {
	case PersonalEntered:
		wire.EnteredAt = &at
	case PersonalExpired:
		wire.ExpiredAt = &at
	case PersonalCompleted:
		wire.CompletedAt = &at
	default:
		return nil, fmt.Errorf("personal queue event: unknown kind %q", e.Kind)
	}
	return json.Marshal(wire)
}

// SeatStatusChangeEvent is delivered on the per-event seat broadcast topic
// whenever a seat changes status.
type SeatStatusChangeEvent struct {
	EventID       string     `json:"eventId"`
	SeatID        int64      `json:"seatId"`
	SeatCode      string     `json:"seatCode"`
	CurrentStatus SeatStatus `json:"currentStatus"`
	Price         int64      `json:"price"`
	Grade         string     `json:"grade"`
}

// Seat is one entry in the REST seat list for an event.
type Seat struct {
	ID     int64      `json:"id"`
	Code   string     `json:"code"`
	Status SeatStatus `json:"status"`
	Price  int64      `json:"price"`
	Grade  string     `json:"grade"`
}

// RequeueResult reports the rank change after a move-to-back call.
type RequeueResult struct {
	PreviousRank int `json:"previousRank"`
	NewRank      int `json:"newRank"`
}
