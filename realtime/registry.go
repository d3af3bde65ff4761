package realtime

import (
	"log"
	"sync"
)

// Handler receives the body of each MESSAGE frame for a destination.
type Handler func(body []byte)

type subscription struct {
	id          string
	destination string
	handler     Handler
}

// registry tracks active subscriptions by destination. At most one
// subscription exists per destination; duplicate adds are rejected.
type registry struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]*subscription)}
}

// add registers a subscription unless the destination is already taken.
func (r *registry) add(destination, id string, handler Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subs[destination]; exists {
		return false
	}
	r.subs[destination] = &subscription{id: id, destination: destination, handler: handler}
	return true
}

// remove deletes and returns the subscription for a destination, or nil.
func (r *registry) remove(destination string) *subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.subs[destination]
	delete(r.subs, destination)
	return sub
}

func (r *registry) has(destination string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[destination]
	return ok
}

// all returns a snapshot of every active subscription.
func (r *registry) all() []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[string]*subscription)
}

// dispatch routes a frame body to the destination's handler. A panicking
// handler must not take down the read loop.
func (r *registry) dispatch(destination string, body []byte) {
	r.mu.RLock()
	sub := r.subs[destination]
	r.mu.RUnlock()
	if sub == nil {
		log.Printf("[WS] no subscription for destination %s, dropping frame", destination)
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[WS] handler for %s panicked: %v", destination, rec)
		}
	}()
	sub.handler(body)
}
