package main

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"ticket-storefront/realtime"
	"ticket-storefront/shared"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Read deadline; refreshed by any inbound frame or heartbeat
	readWait = 3 * shared.HeartbeatInterval

	// Maximum frame size allowed from peer
	maxFrameSize = 64 * 1024
)

// Session is one STOMP-over-WebSocket client connected to the stub. The
// bearer token presented at CONNECT doubles as the user id, which keeps
// local development free of a real auth service.
type Session struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound raw frames
	send chan []byte

	id     string
	userID string

	mu     sync.Mutex
	subs   map[string]string // destination -> subscription id
	seqNum int
}

func newSession(hub *Hub, conn *websocket.Conn) *Session {
	return &Session{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 64),
		id:   uuid.NewString(),
		subs: make(map[string]string),
	}
}

// subscriptionID returns the client's subscription id for a destination.
func (s *Session) subscriptionID(destination string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.subs[destination]
	return id, ok
}

func (s *Session) nextMessageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqNum++
	return fmt.Sprintf("%s-%d", s.id, s.seqNum)
}

// readPump consumes frames from the socket until the peer goes away.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
		log.Printf("[WS] session %s disconnected", s.id)
	}()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(readWait))

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] session %s read error: %v", s.id, err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readWait))

		if realtime.IsHeartbeat(raw) {
			continue
		}
		frame, err := realtime.ParseFrame(raw)
		if err != nil {
			log.Printf("[WS] session %s sent malformed frame: %v", s.id, err)
			s.sendError("malformed frame")
			continue
		}
		if done := s.handleFrame(frame); done {
			return
		}
	}
}

// writePump pushes queued frames and heartbeats to the socket.
func (s *Session) writePump() {
	ticker := time.NewTicker(shared.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, realtime.HeartbeatPayload); err != nil {
				return
			}
		}
	}
}

// handleFrame processes one client frame; it reports true when the
// session should close.
func (s *Session) handleFrame(frame *realtime.Frame) bool {
	switch frame.Command {
	case realtime.FrameConnect:
		s.handleConnect(frame)
	case realtime.FrameSubscribe:
		s.handleSubscribe(frame)
	case realtime.FrameUnsubscribe:
		s.handleUnsubscribe(frame)
	case realtime.FrameDisconnect:
		return true
	default:
		s.sendError("unsupported command " + frame.Command)
	}
	return false
}

func (s *Session) handleConnect(frame *realtime.Frame) {
	auth := frame.Headers[realtime.HeaderAuthorization]
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		s.sendError("missing bearer token")
		return
	}
	s.userID = token
	log.Printf("[WS] session %s connected as user %s", s.id, s.userID)

	reply := realtime.NewFrame(realtime.FrameConnected, map[string]string{
		realtime.HeaderVersion:   "1.2",
		realtime.HeaderHeartBeat: frame.Headers[realtime.HeaderHeartBeat],
	})
	s.enqueue(realtime.MarshalFrame(reply))
}

func (s *Session) handleSubscribe(frame *realtime.Frame) {
	id := frame.Headers[realtime.HeaderID]
	destination := frame.Headers[realtime.HeaderDestination]
	if id == "" || destination == "" {
		s.sendError("SUBSCRIBE requires id and destination")
		return
	}
	s.mu.Lock()
	s.subs[destination] = id
	s.mu.Unlock()
	log.Printf("[WS] session %s subscribed to %s", s.id, destination)
}

func (s *Session) handleUnsubscribe(frame *realtime.Frame) {
	id := frame.Headers[realtime.HeaderID]
	s.mu.Lock()
	for destination, subID := range s.subs {
		if subID == id {
			delete(s.subs, destination)
			log.Printf("[WS] session %s unsubscribed from %s", s.id, destination)
			break
		}
	}
	s.mu.Unlock()
}

func (s *Session) sendError(message string) {
	frame := realtime.NewFrame(realtime.FrameError, map[string]string{
		realtime.HeaderMessage: message,
	})
	s.enqueue(realtime.MarshalFrame(frame))
}

func (s *Session) enqueue(raw []byte) {
	select {
	case s.send <- raw:
	default:
		log.Printf("[WS] session %s send buffer full, dropping frame", s.id)
	}
}
