package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ticket-storefront/shared"
)

const (
	venueRows = 10
	venueCols = 10

	seatHoldDuration  = 2 * time.Minute
	holdSweepInterval = 2 * time.Second
)

var (
	errNotInQueue    = errors.New("you are not in the queue for this event")
	errNotAdmitted   = errors.New("you have not been admitted yet")
	errSeatNotFound  = errors.New("seat not found")
	errSeatTaken     = errors.New("seat is already taken")
	errSeatNotHeld   = errors.New("you do not hold this seat")
	errAlreadyBooked = errors.New("seat is already sold")
)

type stubSeat struct {
	shared.Seat
	heldBy    string
	expiresAt time.Time
}

// EventState is the in-memory world for one event: the waiting line, the
// admitted set and the seat table. Mutations publish the same frames the
// real backend would.
type EventState struct {
	eventID string
	hub     *Hub

	mu        sync.Mutex
	queue     []string // user ids, front first
	lifecycle map[string]shared.LifecycleState
	joined    int
	seats     map[int64]*stubSeat
}

// NewEventState seeds an event with a 10x10 venue.
func NewEventState(eventID string, hub *Hub) *EventState {
	st := &EventState{
		eventID:   eventID,
		hub:       hub,
		lifecycle: make(map[string]shared.LifecycleState),
		seats:     make(map[int64]*stubSeat),
	}
	grades := map[int]struct {
		name  string
		price int64
	}{
		0: {"VIP", 150000},
		1: {"VIP", 150000},
		2: {"R", 110000},
		3: {"R", 110000},
		4: {"R", 110000},
	}
	for row := 0; row < venueRows; row++ {
		grade, price := "S", int64(80000)
		if g, ok := grades[row]; ok {
			grade, price = g.name, g.price
		}
		for col := 0; col < venueCols; col++ {
			id := int64(row*venueCols + col + 1)
			st.seats[id] = &stubSeat{Seat: shared.Seat{
				ID:     id,
				Code:   seatCode(row, col),
				Status: shared.SeatAvailable,
				Price:  price,
				Grade:  grade,
			}}
		}
	}
	return st
}

// seatCode renders a row/column pair as a code like "A1".
func seatCode(row, col int) string {
	return fmt.Sprintf("%c%d", rune('A'+row), col+1)
}

// StartSweep launches the hold-expiry sweeper.
func (st *EventState) StartSweep() {
	ticker := time.NewTicker(holdSweepInterval)
	go func() {
		for range ticker.C {
			st.releaseExpiredHolds()
		}
	}()
}

// Status returns the user's queue snapshot, joining the line on first
// contact.
func (st *EventState) Status(userID string) *shared.QueueStatus {
	st.mu.Lock()
	state, known := st.lifecycle[userID]
	if !known {
		st.queue = append(st.queue, userID)
		st.lifecycle[userID] = shared.LifecycleWaiting
		st.joined++
		state = shared.LifecycleWaiting
	}
	status := st.statusLocked(userID, state)
	st.mu.Unlock()

	if !known {
		st.broadcastQueue()
	}
	return status
}

func (st *EventState) statusLocked(userID string, state shared.LifecycleState) *shared.QueueStatus {
	rank := st.rankLocked(userID)
	ahead := 0
	if rank > 0 {
		ahead = rank - 1
	}
	return &shared.QueueStatus{
		Rank:                 rank,
		WaitingAhead:         ahead,
		EstimatedWaitMinutes: ahead * 2, // crude per-person estimate
		ProgressPercent:      st.progressLocked(rank),
		LifecycleState:       state,
	}
}

func (st *EventState) rankLocked(userID string) int {
	for i, id := range st.queue {
		if id == userID {
			return i + 1
		}
	}
	return 0
}

func (st *EventState) progressLocked(rank int) float64 {
	if st.joined == 0 || rank == 0 {
		return 100
	}
	return float64(st.joined-rank+1) / float64(st.joined) * 100
}

// MoveToBack sends a user to the end of the line, demoting an admitted
// user back to waiting and releasing any seats they hold.
func (st *EventState) MoveToBack(userID string) (*shared.RequeueResult, error) {
	st.mu.Lock()
	state, known := st.lifecycle[userID]
	if !known || state == shared.LifecycleExpired || state == shared.LifecycleCompleted {
		st.mu.Unlock()
		return nil, errNotInQueue
	}
	prev := st.rankLocked(userID)
	for i, id := range st.queue {
		if id == userID {
			st.queue = append(st.queue[:i], st.queue[i+1:]...)
			break
		}
	}
	st.queue = append(st.queue, userID)
	st.lifecycle[userID] = shared.LifecycleWaiting
	next := len(st.queue)
	released := st.releaseHoldsLocked(userID)
	st.mu.Unlock()

	for _, ev := range released {
		st.hub.Publish(shared.EventSeatTopic(st.eventID), ev)
	}
	st.broadcastQueue()
	return &shared.RequeueResult{PreviousRank: prev, NewRank: next}, nil
}

// ProcessUntilMe admits everyone up to and including the caller, firing
// a personal entered event for each.
func (st *EventState) ProcessUntilMe(userID string) error {
	st.mu.Lock()
	idx := -1
	for i, id := range st.queue {
		if id == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		st.mu.Unlock()
		return errNotInQueue
	}
	admitted := make([]string, idx+1)
	copy(admitted, st.queue[:idx+1])
	st.queue = st.queue[idx+1:]
	for _, id := range admitted {
		st.lifecycle[id] = shared.LifecycleEntered
	}
	st.mu.Unlock()

	now := time.Now()
	for _, id := range admitted {
		st.hub.Publish(shared.PersonalQueueTopic(id), shared.PersonalQueueEvent{
			Kind:       shared.PersonalEntered,
			OccurredAt: now,
			Message:    "It's your turn! You can now select seats.",
		})
	}
	st.broadcastQueue()
	return nil
}

// Seats returns the seat list snapshot.
func (st *EventState) Seats() []shared.Seat {
	st.mu.Lock()
	defer st.mu.Unlock()
	seats := make([]shared.Seat, 0, len(st.seats))
	for _, s := range st.seats {
		seats = append(seats, s.Seat)
	}
	return seats
}

// Select places a hold on a seat for an admitted user.
func (st *EventState) Select(userID string, seatID int64) error {
	st.mu.Lock()
	if st.lifecycle[userID] != shared.LifecycleEntered {
		st.mu.Unlock()
		return errNotAdmitted
	}
	seat, ok := st.seats[seatID]
	if !ok {
		st.mu.Unlock()
		return errSeatNotFound
	}
	switch {
	case seat.Status == shared.SeatSold:
		st.mu.Unlock()
		return errAlreadyBooked
	case seat.Status == shared.SeatReserved && seat.heldBy != userID:
		st.mu.Unlock()
		return errSeatTaken
	}
	seat.Status = shared.SeatReserved
	seat.heldBy = userID
	seat.expiresAt = time.Now().Add(seatHoldDuration)
	ev := st.changeEventLocked(seat)
	st.mu.Unlock()

	st.hub.Publish(shared.EventSeatTopic(st.eventID), ev)
	return nil
}

// Deselect releases a hold the user placed.
func (st *EventState) Deselect(userID string, seatID int64) error {
	st.mu.Lock()
	seat, ok := st.seats[seatID]
	if !ok {
		st.mu.Unlock()
		return errSeatNotFound
	}
	if seat.Status != shared.SeatReserved || seat.heldBy != userID {
		st.mu.Unlock()
		return errSeatNotHeld
	}
	seat.Status = shared.SeatAvailable
	seat.heldBy = ""
	seat.expiresAt = time.Time{}
	ev := st.changeEventLocked(seat)
	st.mu.Unlock()

	st.hub.Publish(shared.EventSeatTopic(st.eventID), ev)
	return nil
}

// releaseExpiredHolds frees held seats whose window lapsed.
func (st *EventState) releaseExpiredHolds() {
	now := time.Now()
	var events []shared.SeatStatusChangeEvent

	st.mu.Lock()
	for _, seat := range st.seats {
		if seat.Status == shared.SeatReserved && !seat.expiresAt.IsZero() && seat.expiresAt.Before(now) {
			seat.Status = shared.SeatAvailable
			seat.heldBy = ""
			seat.expiresAt = time.Time{}
			events = append(events, st.changeEventLocked(seat))
		}
	}
	st.mu.Unlock()

	for _, ev := range events {
		st.hub.Publish(shared.EventSeatTopic(st.eventID), ev)
	}
}

// releaseHoldsLocked frees every seat held by a user; caller holds st.mu.
func (st *EventState) releaseHoldsLocked(userID string) []shared.SeatStatusChangeEvent {
	var events []shared.SeatStatusChangeEvent
	for _, seat := range st.seats {
		if seat.Status == shared.SeatReserved && seat.heldBy == userID {
			seat.Status = shared.SeatAvailable
			seat.heldBy = ""
			seat.expiresAt = time.Time{}
			events = append(events, st.changeEventLocked(seat))
		}
	}
	return events
}

func (st *EventState) changeEventLocked(seat *stubSeat) shared.SeatStatusChangeEvent {
	return shared.SeatStatusChangeEvent{
		EventID:       st.eventID,
		SeatID:        seat.ID,
		SeatCode:      seat.Code,
		CurrentStatus: seat.Status,
		Price:         seat.Price,
		Grade:         seat.Grade,
	}
}

// broadcastQueue publishes the full waiting roster keyed by user id.
func (st *EventState) broadcastQueue() {
	st.mu.Lock()
	roster := make(map[string]shared.WaitingQueueBroadcast, len(st.queue))
	for i, id := range st.queue {
		roster[id] = shared.WaitingQueueBroadcast{
			Position:             i + 1,
			EstimatedWaitMinutes: i * 2,
			ProgressPercent:      st.progressLocked(i + 1),
		}
	}
	st.mu.Unlock()

	if len(roster) > 0 {
		st.hub.Publish(shared.EventQueueTopic(st.eventID), roster)
	}
}
