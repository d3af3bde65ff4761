package queue

import (
	"errors"
	"log"
	"sync"

	"ticket-storefront/shared"
)

// FlowState is the local stage of the purchase flow.
type FlowState string

const (
	StateWaiting  FlowState = "waiting"
	StateReady    FlowState = "ready"
	StatePurchase FlowState = "purchase"
	StatePayment  FlowState = "payment"
)

// RedirectTarget names where a terminal transition sends the user.
type RedirectTarget string

const (
	RedirectEvents    RedirectTarget = "events"
	RedirectMyTickets RedirectTarget = "my-tickets"
)

var (
	// ErrInvalidTransition is returned for user actions that are not
	// legal from the current state.
	ErrInvalidTransition = errors.New("queue: invalid flow transition")

	// ErrNoSeatsHeld is returned when payment is requested without a
	// held seat.
	ErrNoSeatsHeld = errors.New("queue: no seats held")
)

// Machine drives waiting → ready → purchase → payment. Server-pushed
// personal events and REST polling feed it alongside user actions; entry
// into ready is idempotent because a personal "entered" event and the
// matching broadcast can arrive in either order. Once a redirect fires
// the machine is terminal and ignores everything else.
type Machine struct {
	onRedirect func(RedirectTarget)
	onChange   func(FlowState)

	mu         sync.Mutex
	state      FlowState
	redirected bool
	countdown  *Countdown
}

// NewMachine creates a machine in waiting. onRedirect receives terminal
// navigation decisions; onChange (optional) observes state changes.
func NewMachine(onRedirect func(RedirectTarget), onChange func(FlowState)) *Machine {
	m := &Machine{
		onRedirect: onRedirect,
		onChange:   onChange,
		state:      StateWaiting,
	}
	m.countdown = NewCountdown(func() {
		log.Printf("[FLOW] purchase window expired")
		m.redirect(RedirectEvents)
	})
	return m
}

// Init derives the starting state from the REST snapshot at mount.
// EXPIRED and COMPLETED redirect immediately without entering the flow.
func (m *Machine) Init(status *shared.QueueStatus) {
	if status == nil {
		return
	}
	switch status.LifecycleState {
	case shared.LifecycleEntered:
		m.enterReady()
	case shared.LifecycleExpired:
		m.redirect(RedirectEvents)
	case shared.LifecycleCompleted:
		m.redirect(RedirectMyTickets)
	}
}

// HandlePersonalEvent applies a server-pushed lifecycle event.
func (m *Machine) HandlePersonalEvent(ev shared.PersonalQueueEvent) {
	switch ev.Kind {
	case shared.PersonalEntered:
		m.enterReady()
	case shared.PersonalExpired:
		m.redirect(RedirectEvents)
	case shared.PersonalCompleted:
		m.redirect(RedirectMyTickets)
	default:
		log.Printf("[FLOW] ignoring personal event of unknown kind %q", ev.Kind)
	}
}

// HandleStatusPoll reconciles a polled REST snapshot against local state.
// ENTERED while still waiting promotes to ready. WAITING while locally
// ready forces back to waiting; purchase and payment are left alone.
func (m *Machine) HandleStatusPoll(status *shared.QueueStatus) {
	if status == nil {
		return
	}
	switch status.LifecycleState {
	case shared.LifecycleEntered:
		m.mu.Lock()
		fromWaiting := !m.redirected && m.state == StateWaiting
		m.mu.Unlock()
		if fromWaiting {
			m.enterReady()
		}
	case shared.LifecycleWaiting:
		m.mu.Lock()
		resync := !m.redirected && m.state == StateReady
		if resync {
			m.state = StateWaiting
		}
		m.mu.Unlock()
		if resync {
			log.Printf("[FLOW] server says WAITING, resyncing from ready")
			m.countdown.Stop()
			m.notifyChange(StateWaiting)
		}
	case shared.LifecycleExpired:
		m.redirect(RedirectEvents)
	case shared.LifecycleCompleted:
		m.redirect(RedirectMyTickets)
	}
}

// ProcessedUntilMe promotes to ready after an explicit process-until-me
// call succeeds.
func (m *Machine) ProcessedUntilMe() {
	m.enterReady()
}

// SelectSeats is the user action moving ready → purchase. No server
// round-trip gates it.
func (m *Machine) SelectSeats() error {
	m.mu.Lock()
	if m.redirected || m.state != StateReady {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.state = StatePurchase
	m.mu.Unlock()
	m.notifyChange(StatePurchase)
	return nil
}

// ProceedToPayment is the user action moving purchase → payment once at
// least one seat is held.
func (m *Machine) ProceedToPayment(heldSeats int) error {
	m.mu.Lock()
	if m.redirected || m.state != StatePurchase {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	if heldSeats < 1 {
		m.mu.Unlock()
		return ErrNoSeatsHeld
	}
	m.state = StatePayment
	m.mu.Unlock()
	m.notifyChange(StatePayment)
	return nil
}

// State returns the current flow state.
func (m *Machine) State() FlowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Redirected reports whether a terminal redirect has fired.
func (m *Machine) Redirected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redirected
}

// Countdown exposes the purchase window timer.
func (m *Machine) Countdown() *Countdown {
	return m.countdown
}

// Stop halts the countdown without a redirect, for unmount/teardown.
func (m *Machine) Stop() {
	m.countdown.Stop()
}

func (m *Machine) enterReady() {
	m.mu.Lock()
	if m.redirected || m.state == StateReady {
		m.mu.Unlock()
		return
	}
	// only waiting promotes; a stale "entered" must not drag the user
	// back out of purchase or payment
	if m.state != StateWaiting {
		m.mu.Unlock()
		return
	}
	m.state = StateReady
	m.mu.Unlock()

	m.countdown.Start(shared.PurchaseWindowSeconds)
	m.notifyChange(StateReady)
}

func (m *Machine) redirect(target RedirectTarget) {
	m.mu.Lock()
	if m.redirected {
		m.mu.Unlock()
		return
	}
	m.redirected = true
	m.mu.Unlock()

	m.countdown.Stop()
	if m.onRedirect != nil {
		m.onRedirect(target)
	}
}

func (m *Machine) notifyChange(state FlowState) {
	if m.onChange != nil {
		m.onChange(state)
	}
}
