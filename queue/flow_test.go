package queue

import (
	"testing"

	"ticket-storefront/shared"
)

// capture collects redirect and state-change callbacks for assertions.
type capture struct {
	redirects []RedirectTarget
	states    []FlowState
}

func newTestMachine() (*Machine, *capture) {
	cap := &capture{}
	m := NewMachine(func(target RedirectTarget) {
		cap.redirects = append(cap.redirects, target)
	}, func(state FlowState) {
		cap.states = append(cap.states, state)
	})
	return m, cap
}

func TestInitEnteredSkipsWaiting(t *testing.T) {
	m, _ := newTestMachine()
	defer m.Stop()

	m.Init(&shared.QueueStatus{LifecycleState: shared.LifecycleEntered})

	if got := m.State(); got != StateReady {
		t.Errorf("State = %s, want %s", got, StateReady)
	}
	if !m.Countdown().Running() {
		t.Error("countdown not running after entering ready")
	}
	if got := m.Countdown().Remaining(); got != shared.PurchaseWindowSeconds {
		t.Errorf("Remaining = %d, want %d", got, shared.PurchaseWindowSeconds)
	}
}

func TestInitExpiredRedirectsToEvents(t *testing.T) {
	m, cap := newTestMachine()
	defer m.Stop()

	m.Init(&shared.QueueStatus{LifecycleState: shared.LifecycleExpired})

	if !m.Redirected() {
		t.Fatal("machine not redirected")
	}
	if len(cap.redirects) != 1 || cap.redirects[0] != RedirectEvents {
		t.Errorf("redirects = %v, want [%s]", cap.redirects, RedirectEvents)
	}
}

func TestInitCompletedRedirectsToMyTickets(t *testing.T) {
	m, cap := newTestMachine()
	defer m.Stop()

	m.Init(&shared.QueueStatus{LifecycleState: shared.LifecycleCompleted})

	if len(cap.redirects) != 1 || cap.redirects[0] != RedirectMyTickets {
		t.Errorf("redirects = %v, want [%s]", cap.redirects, RedirectMyTickets)
	}
}

func TestEnteredEventIsIdempotent(t *testing.T) {
	m, cap := newTestMachine()
	defer m.Stop()

	entered := shared.PersonalQueueEvent{Kind: shared.PersonalEntered}
	m.HandlePersonalEvent(entered)
	m.HandlePersonalEvent(entered)

	if got := m.State(); got != StateReady {
		t.Errorf("State = %s, want %s", got, StateReady)
	}
	ready := 0
	for _, s := range cap.states {
		if s == StateReady {
			ready++
		}
	}
	if ready != 1 {
		t.Errorf("onChange(ready) fired %d times, want 1", ready)
	}
}

func TestStaleEnteredDoesNotLeavePurchase(t *testing.T) {
	m, _ := newTestMachine()
	defer m.Stop()

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})
	if err := m.SelectSeats(); err != nil {
		t.Fatalf("SelectSeats: %v", err)
	}

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})
	if got := m.State(); got != StatePurchase {
		t.Errorf("State = %s after stale entered event, want %s", got, StatePurchase)
	}
}

func TestExpiredFromReadyRedirectsNeverPurchase(t *testing.T) {
	m, cap := newTestMachine()
	defer m.Stop()

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})
	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalExpired})

	if len(cap.redirects) != 1 || cap.redirects[0] != RedirectEvents {
		t.Fatalf("redirects = %v, want [%s]", cap.redirects, RedirectEvents)
	}
	if m.Countdown().Running() {
		t.Error("countdown still running after redirect")
	}
	if err := m.SelectSeats(); err != ErrInvalidTransition {
		t.Errorf("SelectSeats after redirect = %v, want ErrInvalidTransition", err)
	}
}

func TestCompletedRedirectsToMyTickets(t *testing.T) {
	m, cap := newTestMachine()
	defer m.Stop()

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})
	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalCompleted})

	if len(cap.redirects) != 1 || cap.redirects[0] != RedirectMyTickets {
		t.Errorf("redirects = %v, want [%s]", cap.redirects, RedirectMyTickets)
	}
}

func TestRedirectFiresOnce(t *testing.T) {
	m, cap := newTestMachine()
	defer m.Stop()

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalExpired})
	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalCompleted})

	if len(cap.redirects) != 1 {
		t.Errorf("redirects fired %d times, want 1", len(cap.redirects))
	}
}

func TestPollResyncsReadyBackToWaiting(t *testing.T) {
	m, _ := newTestMachine()
	defer m.Stop()

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})
	m.HandleStatusPoll(&shared.QueueStatus{LifecycleState: shared.LifecycleWaiting})

	if got := m.State(); got != StateWaiting {
		t.Errorf("State = %s, want %s", got, StateWaiting)
	}
	if m.Countdown().Running() {
		t.Error("countdown still running after resync to waiting")
	}
}

func TestPollDoesNotResyncPurchase(t *testing.T) {
	m, _ := newTestMachine()
	defer m.Stop()

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})
	if err := m.SelectSeats(); err != nil {
		t.Fatalf("SelectSeats: %v", err)
	}

	m.HandleStatusPoll(&shared.QueueStatus{LifecycleState: shared.LifecycleWaiting})
	if got := m.State(); got != StatePurchase {
		t.Errorf("State = %s, want %s", got, StatePurchase)
	}
}

func TestPollPromotesWaitingToReady(t *testing.T) {
	m, _ := newTestMachine()
	defer m.Stop()

	m.HandleStatusPoll(&shared.QueueStatus{LifecycleState: shared.LifecycleEntered})
	if got := m.State(); got != StateReady {
		t.Errorf("State = %s, want %s", got, StateReady)
	}
}

func TestSelectSeatsRequiresReady(t *testing.T) {
	m, _ := newTestMachine()
	defer m.Stop()

	if err := m.SelectSeats(); err != ErrInvalidTransition {
		t.Errorf("SelectSeats from waiting = %v, want ErrInvalidTransition", err)
	}
}

func TestProceedToPaymentGuards(t *testing.T) {
	m, _ := newTestMachine()
	defer m.Stop()

	if err := m.ProceedToPayment(1); err != ErrInvalidTransition {
		t.Errorf("ProceedToPayment from waiting = %v, want ErrInvalidTransition", err)
	}

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})
	if err := m.SelectSeats(); err != nil {
		t.Fatalf("SelectSeats: %v", err)
	}

	if err := m.ProceedToPayment(0); err != ErrNoSeatsHeld {
		t.Errorf("ProceedToPayment(0) = %v, want ErrNoSeatsHeld", err)
	}
	if err := m.ProceedToPayment(2); err != nil {
		t.Errorf("ProceedToPayment(2) = %v, want nil", err)
	}
	if got := m.State(); got != StatePayment {
		t.Errorf("State = %s, want %s", got, StatePayment)
	}
}

func TestCountdownExpiryRedirectsToEvents(t *testing.T) {
	m, cap := newTestMachine()
	defer m.Stop()

	m.HandlePersonalEvent(shared.PersonalQueueEvent{Kind: shared.PersonalEntered})

	c := m.Countdown()
	c.mu.Lock()
	c.remaining = 1
	stop := c.stop
	c.mu.Unlock()
	c.tick(stop)

	if len(cap.redirects) != 1 || cap.redirects[0] != RedirectEvents {
		t.Errorf("redirects = %v, want [%s]", cap.redirects, RedirectEvents)
	}
}
