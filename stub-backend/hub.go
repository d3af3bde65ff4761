package main

import (
	"encoding/json"
	"log"
	"sync"

	"ticket-storefront/realtime"
)

// Hub maintains the set of active sessions and delivers published frames
// to the sessions subscribed to each destination.
type Hub struct {
	// Register requests from new sessions
	register chan *Session

	// Unregister requests from closing sessions
	unregister chan *Session

	// Outbound deliveries keyed by destination
	deliveries chan delivery

	mu       sync.RWMutex
	sessions map[*Session]bool
}

type delivery struct {
	destination string
	payload     []byte
}

func newHub() *Hub {
	return &Hub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		deliveries: make(chan delivery, 256),
		sessions:   make(map[*Session]bool),
	}
}

func (h *Hub) run() {
	for {
		select {
		case session := <-h.register:
			h.mu.Lock()
			h.sessions[session] = true
			total := len(h.sessions)
			h.mu.Unlock()
			log.Printf("[HUB] session registered: %s (total: %d)", session.id, total)

		case session := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[session]; ok {
				delete(h.sessions, session)
				close(session.send)
			}
			total := len(h.sessions)
			h.mu.Unlock()
			log.Printf("[HUB] session unregistered: %s (total: %d)", session.id, total)

		case d := <-h.deliveries:
			h.deliver(d)
		}
	}
}

// Publish marshals v and queues it for every subscriber of destination.
func (h *Hub) Publish(destination string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[HUB] failed to marshal payload for %s: %v", destination, err)
		return
	}
	select {
	case h.deliveries <- delivery{destination: destination, payload: payload}:
	default:
		log.Printf("[HUB] delivery channel full, dropping frame for %s", destination)
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for session := range h.sessions {
		subID, ok := session.subscriptionID(d.destination)
		if !ok {
			continue
		}
		frame := realtime.NewFrame(realtime.FrameMessage, map[string]string{
			realtime.HeaderDestination:  d.destination,
			realtime.HeaderSubscription: subID,
			realtime.HeaderMessageID:    session.nextMessageID(),
			"content-type":              "application/json",
		})
		frame.Body = d.payload
		select {
		case session.send <- realtime.MarshalFrame(frame):
			sent++
		default:
			log.Printf("[HUB] session %s send buffer full, disconnecting", session.id)
			go func(s *Session) { h.unregister <- s }(session)
		}
	}
	if sent > 0 {
		log.Printf("[HUB] delivered %s to %d sessions", d.destination, sent)
	}
}
