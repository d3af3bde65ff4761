// Package guard intercepts attempts to leave the purchase flow while a
// queue slot is held, so the slot is released back to the end of the line
// instead of silently expiring. While a payment is in flight nothing is
// intercepted; leaving for the payment provider is a normal part of the
// flow.
package guard

import (
	"context"
	"log"
	"sync"

	"ticket-storefront/shared"
)

// Requeuer issues the move-to-back call. *api.Client satisfies it.
type Requeuer interface {
	MoveToBack(ctx context.Context, eventID string) (*shared.RequeueResult, error)
}

// Hooks are the caller-supplied reactions to guard decisions. Any field
// may be nil.
type Hooks struct {
	// OnExitAttempt runs when an exit intent was intercepted; the caller
	// shows a confirmation and eventually calls ConfirmExit or drops it.
	OnExitAttempt func()

	// OnRequeued reports the rank change after a confirmed exit.
	OnRequeued func(previous, next int)

	// Navigate performs the deferred navigation to a recorded path.
	Navigate func(path string)

	// NavigateBack performs the deferred back navigation.
	NavigateBack func()

	// RestoreHistory re-establishes the current history entry after an
	// intercepted back navigation.
	RestoreHistory func()
}

// Guard is the exit interceptor for one event's purchase flow.
type Guard struct {
	requeue Requeuer
	eventID string
	hooks   Hooks

	mu          sync.Mutex
	active      bool
	payment     bool
	navigating  bool
	pendingPath string
	pendingBack bool
}

// New creates an inactive guard.
func New(requeue Requeuer, eventID string, hooks Hooks) *Guard {
	return &Guard{requeue: requeue, eventID: eventID, hooks: hooks}
}

// Activate starts intercepting. Activating twice is a no-op.
func (g *Guard) Activate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = true
}

// Deactivate stops intercepting and forgets any deferred destination.
func (g *Guard) Deactivate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
	g.navigating = false
	g.pendingPath = ""
	g.pendingBack = false
}

// SetPaymentInProgress toggles the payment bypass. While set, nothing is
// intercepted and no requeue call is made.
func (g *Guard) SetPaymentInProgress(inProgress bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payment = inProgress
}

// PaymentInProgress reports the payment bypass flag.
func (g *Guard) PaymentInProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payment
}

// InterceptNavigation handles an outgoing navigation intent to a
// different path. It reports true when the navigation was intercepted:
// the destination is recorded and the exit-attempt hook fired. False
// means the caller should navigate normally.
func (g *Guard) InterceptNavigation(path string) bool {
	g.mu.Lock()
	if !g.active || g.payment || g.navigating {
		g.mu.Unlock()
		return false
	}
	g.pendingPath = path
	g.pendingBack = false
	g.mu.Unlock()

	if g.hooks.OnExitAttempt != nil {
		g.hooks.OnExitAttempt()
	}
	return true
}

// InterceptBack handles a back-navigation intent. When intercepted, the
// current history entry is restored and the exit-attempt hook fired.
func (g *Guard) InterceptBack() bool {
	g.mu.Lock()
	if !g.active || g.payment || g.navigating {
		g.mu.Unlock()
		return false
	}
	g.pendingPath = ""
	g.pendingBack = true
	g.mu.Unlock()

	if g.hooks.RestoreHistory != nil {
		g.hooks.RestoreHistory()
	}
	if g.hooks.OnExitAttempt != nil {
		g.hooks.OnExitAttempt()
	}
	return true
}

// HandleUnload handles an abrupt teardown (tab close, process exit). It
// fires one best-effort move-to-back call on a short deadline detached
// from the caller's context, so the request survives the teardown that
// triggered it. Skipped entirely while payment is in flight.
func (g *Guard) HandleUnload() {
	g.mu.Lock()
	skip := !g.active || g.payment
	g.mu.Unlock()
	if skip {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shared.UnloadRequeueTimeout)
	defer cancel()
	if _, err := g.requeue.MoveToBack(ctx, g.eventID); err != nil {
		// best effort only; the slot will expire server-side regardless
		log.Printf("[GUARD] move-to-back on unload failed: %v", err)
	}
}

// ConfirmExit completes an intercepted exit: it performs the awaited
// move-to-back call, surfaces the rank change, then carries out the
// deferred navigation. Re-entrant calls while one is running are no-ops.
func (g *Guard) ConfirmExit(ctx context.Context) error {
	g.mu.Lock()
	if !g.active || g.navigating {
		g.mu.Unlock()
		return nil
	}
	g.navigating = true
	path := g.pendingPath
	back := g.pendingBack
	g.mu.Unlock()

	result, err := g.requeue.MoveToBack(ctx, g.eventID)
	if err != nil {
		g.mu.Lock()
		g.navigating = false
		g.mu.Unlock()
		return err
	}
	if g.hooks.OnRequeued != nil {
		g.hooks.OnRequeued(result.PreviousRank, result.NewRank)
	}

	g.mu.Lock()
	g.active = false
	g.navigating = false
	g.pendingPath = ""
	g.pendingBack = false
	g.mu.Unlock()

	switch {
	case back:
		if g.hooks.NavigateBack != nil {
			g.hooks.NavigateBack()
		}
	case path != "":
		if g.hooks.Navigate != nil {
			g.hooks.Navigate(path)
		}
	}
	return nil
}
