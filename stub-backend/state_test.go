package main

import (
	"encoding/json"
	"testing"

	"ticket-storefront/shared"
)

func newTestState(t *testing.T) (*EventState, *Hub) {
	t.Helper()
	hub := newHub()
	return NewEventState("concert-1", hub), hub
}

// drainPublished decodes every queued delivery for a destination.
func drainPublished(t *testing.T, hub *Hub, destination string) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		select {
		case d := <-hub.deliveries:
			if d.destination == destination {
				out = append(out, d.payload)
			}
		default:
			return out
		}
	}
}

func TestStatusJoinsQueueOnFirstContact(t *testing.T) {
	st, _ := newTestState(t)

	first := st.Status("u-1")
	if first.Rank != 1 || first.WaitingAhead != 0 {
		t.Errorf("first user status = %+v, want rank 1", first)
	}
	if first.LifecycleState != shared.LifecycleWaiting {
		t.Errorf("LifecycleState = %s, want %s", first.LifecycleState, shared.LifecycleWaiting)
	}

	second := st.Status("u-2")
	if second.Rank != 2 || second.WaitingAhead != 1 {
		t.Errorf("second user status = %+v, want rank 2 with 1 ahead", second)
	}

	// repeat contact does not re-join
	again := st.Status("u-1")
	if again.Rank != 1 {
		t.Errorf("repeat status rank = %d, want 1", again.Rank)
	}
}

func TestProcessUntilMeAdmitsPrefix(t *testing.T) {
	st, hub := newTestState(t)
	for _, u := range []string{"u-1", "u-2", "u-3"} {
		st.Status(u)
	}

	if err := st.ProcessUntilMe("u-2"); err != nil {
		t.Fatalf("ProcessUntilMe: %v", err)
	}

	for _, u := range []string{"u-1", "u-2"} {
		if got := st.Status(u).LifecycleState; got != shared.LifecycleEntered {
			t.Errorf("%s lifecycle = %s, want %s", u, got, shared.LifecycleEntered)
		}
	}
	if got := st.Status("u-3").LifecycleState; got != shared.LifecycleWaiting {
		t.Errorf("u-3 lifecycle = %s, want %s", got, shared.LifecycleWaiting)
	}

	payloads := drainPublished(t, hub, shared.PersonalQueueTopic("u-2"))
	if len(payloads) != 1 {
		t.Fatalf("published %d personal events for u-2, want 1", len(payloads))
	}
	var ev shared.PersonalQueueEvent
	if err := json.Unmarshal(payloads[0], &ev); err != nil {
		t.Fatalf("decode personal event: %v", err)
	}
	if ev.Kind != shared.PersonalEntered {
		t.Errorf("personal event kind = %s, want %s", ev.Kind, shared.PersonalEntered)
	}
}

func TestProcessUntilMeUnknownUser(t *testing.T) {
	st, _ := newTestState(t)
	if err := st.ProcessUntilMe("ghost"); err != errNotInQueue {
		t.Errorf("ProcessUntilMe(ghost) = %v, want errNotInQueue", err)
	}
}

func TestMoveToBackDemotesAndReleasesHolds(t *testing.T) {
	st, hub := newTestState(t)
	st.Status("u-1")
	st.Status("u-2")
	if err := st.ProcessUntilMe("u-1"); err != nil {
		t.Fatalf("ProcessUntilMe: %v", err)
	}
	if err := st.Select("u-1", 1); err != nil {
		t.Fatalf("Select: %v", err)
	}
	drainPublished(t, hub, shared.EventSeatTopic("concert-1"))

	result, err := st.MoveToBack("u-1")
	if err != nil {
		t.Fatalf("MoveToBack: %v", err)
	}
	if result.NewRank != 2 {
		t.Errorf("NewRank = %d, want 2", result.NewRank)
	}
	if got := st.Status("u-1").LifecycleState; got != shared.LifecycleWaiting {
		t.Errorf("lifecycle after move-to-back = %s, want %s", got, shared.LifecycleWaiting)
	}

	released := drainPublished(t, hub, shared.EventSeatTopic("concert-1"))
	if len(released) != 1 {
		t.Fatalf("published %d seat events on requeue, want 1", len(released))
	}
	var ev shared.SeatStatusChangeEvent
	if err := json.Unmarshal(released[0], &ev); err != nil {
		t.Fatalf("decode seat event: %v", err)
	}
	if ev.SeatID != 1 || ev.CurrentStatus != shared.SeatAvailable {
		t.Errorf("released seat event = %+v, want seat 1 AVAILABLE", ev)
	}
}

func TestMoveToBackUnknownUser(t *testing.T) {
	st, _ := newTestState(t)
	if _, err := st.MoveToBack("ghost"); err != errNotInQueue {
		t.Errorf("MoveToBack(ghost) = %v, want errNotInQueue", err)
	}
}

func TestSelectRequiresAdmission(t *testing.T) {
	st, _ := newTestState(t)
	st.Status("u-1")

	if err := st.Select("u-1", 1); err != errNotAdmitted {
		t.Errorf("Select while waiting = %v, want errNotAdmitted", err)
	}
}

func TestSelectConflicts(t *testing.T) {
	st, hub := newTestState(t)
	st.Status("u-1")
	st.Status("u-2")
	if err := st.ProcessUntilMe("u-2"); err != nil {
		t.Fatalf("ProcessUntilMe: %v", err)
	}

	if err := st.Select("u-1", 5); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := st.Select("u-2", 5); err != errSeatTaken {
		t.Errorf("Select of a held seat = %v, want errSeatTaken", err)
	}
	// re-selecting one's own hold refreshes it
	if err := st.Select("u-1", 5); err != nil {
		t.Errorf("re-Select of own hold = %v, want nil", err)
	}
	if err := st.Select("u-1", 9999); err != errSeatNotFound {
		t.Errorf("Select of unknown seat = %v, want errSeatNotFound", err)
	}

	events := drainPublished(t, hub, shared.EventSeatTopic("concert-1"))
	if len(events) == 0 {
		t.Error("no seat change events published for the hold")
	}
}

func TestDeselectRequiresOwnHold(t *testing.T) {
	st, _ := newTestState(t)
	st.Status("u-1")
	st.Status("u-2")
	if err := st.ProcessUntilMe("u-2"); err != nil {
		t.Fatalf("ProcessUntilMe: %v", err)
	}
	if err := st.Select("u-1", 3); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if err := st.Deselect("u-2", 3); err != errSeatNotHeld {
		t.Errorf("Deselect of another user's hold = %v, want errSeatNotHeld", err)
	}
	if err := st.Deselect("u-1", 3); err != nil {
		t.Fatalf("Deselect: %v", err)
	}
	if err := st.Deselect("u-1", 3); err != errSeatNotHeld {
		t.Errorf("second Deselect = %v, want errSeatNotHeld", err)
	}
}

func TestVenueSeeding(t *testing.T) {
	st, _ := newTestState(t)
	seats := st.Seats()
	if len(seats) != venueRows*venueCols {
		t.Fatalf("len(seats) = %d, want %d", len(seats), venueRows*venueCols)
	}
	byID := make(map[int64]shared.Seat, len(seats))
	for _, s := range seats {
		byID[s.ID] = s
	}
	if s := byID[1]; s.Code != "A1" || s.Grade != "VIP" {
		t.Errorf("seat 1 = %+v, want code A1 grade VIP", s)
	}
	if s := byID[100]; s.Code != "J10" || s.Grade != "S" {
		t.Errorf("seat 100 = %+v, want code J10 grade S", s)
	}
}
