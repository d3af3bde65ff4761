package realtime

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ticket-storefront/shared"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Time allowed for the STOMP handshake after the transport dial
	handshakeWait = 10 * time.Second
)

var (
	// ErrNoAuthToken is reported when no bearer token is available at
	// connect time. No connection attempt is made and nothing retries.
	ErrNoAuthToken = errors.New("realtime: no auth token available")

	// ErrReconnectFailed is reported once after the reconnect attempt
	// budget is exhausted. The caller must call Connect again to resume.
	ErrReconnectFailed = errors.New("realtime: failed to reconnect")
)

// TokenFunc supplies the current bearer token. It is re-queried on every
// dial because tokens rotate.
type TokenFunc func() string

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateBackoff
	stateConnected
)

// Conn is a STOMP-over-WebSocket connection multiplexing topic
// subscriptions for every coordination client in the process.
// Reconnection is handled here with linear backoff.
type Conn struct {
	url           string
	token         TokenFunc
	dialer        *websocket.Dialer
	heartbeat     time.Duration
	reconnectBase time.Duration
	maxAttempts   int

	mu          sync.Mutex
	state       connState
	gen         int // bumped by Disconnect; orphans in-flight dials and timers
	attempts    int // failed dials in the current streak
	ws          *websocket.Conn
	done        chan struct{}
	onConnected []func()
	onError     []func(error)

	writeMu sync.Mutex
	subs    *registry
}

// NewConn returns an unconnected Conn for url. The token accessor is
// invoked on each dial.
func NewConn(url string, token TokenFunc) *Conn {
	return &Conn{
		url:           url,
		token:         token,
		dialer:        websocket.DefaultDialer,
		heartbeat:     shared.HeartbeatInterval,
		reconnectBase: shared.ReconnectBaseDelay,
		maxAttempts:   shared.MaxReconnectAttempts,
		subs:          newRegistry(),
	}
}

// Connect establishes the connection if needed. When already connected,
// onConnected fires synchronously before Connect returns. While an attempt
// is in flight (or backing off) the callbacks are queued against it; no
// second handshake is started. A missing token fails synchronously through
// onError with no attempt made.
func (c *Conn) Connect(onConnected func(), onError func(error)) {
	c.mu.Lock()
	switch c.state {
	case stateConnected:
		c.mu.Unlock()
		if onConnected != nil {
			onConnected()
		}
		return
	case stateConnecting, stateBackoff:
		c.queueCallbacks(onConnected, onError)
		c.mu.Unlock()
		return
	}

	var token string
	if c.token != nil {
		token = c.token()
	}
	if token == "" {
		c.mu.Unlock()
		if onError != nil {
			onError(ErrNoAuthToken)
		}
		return
	}

	c.queueCallbacks(onConnected, onError)
	c.state = stateConnecting
	gen := c.gen
	c.mu.Unlock()

	go c.dial(token, gen)
}

// queueCallbacks appends pending callbacks; caller holds c.mu.
func (c *Conn) queueCallbacks(onConnected func(), onError func(error)) {
	if onConnected != nil {
		c.onConnected = append(c.onConnected, onConnected)
	}
	if onError != nil {
		c.onError = append(c.onError, onError)
	}
}

// Subscribe registers a handler for a destination. It requires a live
// connection; when disconnected the call is logged and dropped, not
// queued. Subscribing twice to the same destination is a no-op.
func (c *Conn) Subscribe(destination string, handler func(body []byte)) {
	c.mu.Lock()
	if c.state != stateConnected {
		c.mu.Unlock()
		log.Printf("[WS] subscribe to %s skipped: not connected", destination)
		return
	}
	ws := c.ws
	c.mu.Unlock()

	id := uuid.NewString()
	if !c.subs.add(destination, id, handler) {
		return
	}
	frame := NewFrame(FrameSubscribe, map[string]string{
		HeaderID:          id,
		HeaderDestination: destination,
	})
	if err := c.writeFrame(ws, frame); err != nil {
		// registry entry stays; the frame is replayed after reconnect
		log.Printf("[WS] subscribe to %s failed: %v", destination, err)
	}
}

// Unsubscribe cancels the subscription for a destination, if any.
func (c *Conn) Unsubscribe(destination string) {
	sub := c.subs.remove(destination)
	if sub == nil {
		return
	}
	c.mu.Lock()
	ws := c.ws
	connected := c.state == stateConnected
	c.mu.Unlock()
	if !connected {
		return
	}
	frame := NewFrame(FrameUnsubscribe, map[string]string{HeaderID: sub.id})
	if err := c.writeFrame(ws, frame); err != nil {
		log.Printf("[WS] unsubscribe from %s failed: %v", destination, err)
	}
}

// Disconnect cancels all subscriptions, clears pending callbacks, stops
// any scheduled reconnect and tears down the transport. Afterwards the
// Conn behaves as freshly constructed.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.state = stateIdle
	c.attempts = 0
	c.onConnected = nil
	c.onError = nil
	ws := c.ws
	c.ws = nil
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.mu.Unlock()

	c.subs.clear()
	if ws != nil {
		c.writeFrame(ws, NewFrame(FrameDisconnect, nil))
		ws.Close()
		log.Printf("[WS] disconnected from %s", c.url)
	}
}

// IsConnected reports whether the STOMP session is established.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

func (c *Conn) dial(token string, gen int) {
	ws, resp, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		c.transportFailure(gen, fmt.Errorf("dial %s: %w", c.url, err))
		return
	}

	if err := c.handshake(ws, token); err != nil {
		ws.Close()
		c.transportFailure(gen, err)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect won the race; discard the fresh transport
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.state = stateConnected
	c.attempts = 0
	c.ws = ws
	c.done = make(chan struct{})
	done := c.done
	connected := c.onConnected
	c.onConnected = nil
	c.onError = nil
	subs := c.subs.all()
	c.mu.Unlock()

	log.Printf("[WS] connected to %s", c.url)

	// replay subscriptions that survived a reconnect
	for _, sub := range subs {
		frame := NewFrame(FrameSubscribe, map[string]string{
			HeaderID:          sub.id,
			HeaderDestination: sub.destination,
		})
		if err := c.writeFrame(ws, frame); err != nil {
			log.Printf("[WS] resubscribe to %s failed: %v", sub.destination, err)
		}
	}

	go c.readLoop(ws, gen)
	go c.heartbeatLoop(ws, done)

	for _, cb := range connected {
		cb()
	}
}

// handshake performs the STOMP CONNECT exchange over a fresh transport.
func (c *Conn) handshake(ws *websocket.Conn, token string) error {
	hb := fmt.Sprintf("%d,%d", c.heartbeat.Milliseconds(), c.heartbeat.Milliseconds())
	connect := NewFrame(FrameConnect, map[string]string{
		HeaderAcceptVersion: "1.2",
		HeaderHeartBeat:     hb,
		HeaderAuthorization: "Bearer " + token,
	})
	if err := c.writeFrame(ws, connect); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(handshakeWait))
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("await CONNECTED: %w", err)
		}
		if IsHeartbeat(raw) {
			continue
		}
		frame, err := ParseFrame(raw)
		if err != nil {
			return fmt.Errorf("handshake reply: %w", err)
		}
		switch frame.Command {
		case FrameConnected:
			return nil
		case FrameError:
			return fmt.Errorf("handshake rejected: %s", frame.Headers[HeaderMessage])
		default:
			return fmt.Errorf("unexpected %s frame during handshake", frame.Command)
		}
	}
}

func (c *Conn) readLoop(ws *websocket.Conn, gen int) {
	for {
		// a silent peer past two heartbeat intervals is considered gone
		ws.SetReadDeadline(time.Now().Add(2*c.heartbeat + time.Second))
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.transportFailure(gen, fmt.Errorf("read: %w", err))
			return
		}
		if IsHeartbeat(raw) {
			continue
		}
		frame, err := ParseFrame(raw)
		if err != nil {
			log.Printf("[WS] dropping malformed frame: %v", err)
			continue
		}
		switch frame.Command {
		case FrameMessage:
			c.subs.dispatch(frame.Headers[HeaderDestination], frame.Body)
		case FrameError:
			ws.Close()
			c.transportFailure(gen, fmt.Errorf("server error: %s", frame.Headers[HeaderMessage]))
			return
		default:
			log.Printf("[WS] ignoring unexpected %s frame", frame.Command)
		}
	}
}

func (c *Conn) heartbeatLoop(ws *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := ws.WriteMessage(websocket.TextMessage, HeartbeatPayload)
			c.writeMu.Unlock()
			if err != nil {
				// unblock the read loop; it owns failure handling
				ws.Close()
				return
			}
		}
	}
}

// transportFailure records a failed dial or a dropped session and either
// schedules the next attempt or, once the streak budget is spent, fires
// the pending error callbacks exactly once and stops.
func (c *Conn) transportFailure(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen || (c.state != stateConnected && c.state != stateConnecting) {
		// torn down, or the other pump already reported this session
		c.mu.Unlock()
		return
	}
	c.ws = nil
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.attempts++
	if c.attempts >= c.maxAttempts {
		c.state = stateIdle
		c.attempts = 0
		errCbs := c.onError
		c.onError = nil
		c.onConnected = nil
		c.mu.Unlock()
		log.Printf("[WS] giving up after %d attempts: %v", c.maxAttempts, err)
		terminal := fmt.Errorf("%w: %v", ErrReconnectFailed, err)
		for _, cb := range errCbs {
			cb(terminal)
		}
		return
	}
	c.state = stateBackoff
	delay := c.reconnectBase * time.Duration(c.attempts)
	attempt := c.attempts
	c.mu.Unlock()

	log.Printf("[WS] connection lost: %v, retry %d/%d in %s", err, attempt+1, c.maxAttempts, delay)
	time.AfterFunc(delay, func() { c.retry(gen) })
}

func (c *Conn) retry(gen int) {
	c.mu.Lock()
	if c.gen != gen || c.state != stateBackoff {
		c.mu.Unlock()
		return
	}
	var token string
	if c.token != nil {
		token = c.token()
	}
	if token == "" {
		c.state = stateIdle
		c.attempts = 0
		errCbs := c.onError
		c.onError = nil
		c.onConnected = nil
		c.mu.Unlock()
		for _, cb := range errCbs {
			cb(ErrNoAuthToken)
		}
		return
	}
	c.state = stateConnecting
	c.mu.Unlock()
	c.dial(token, gen)
}

func (c *Conn) writeFrame(ws *websocket.Conn, f *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, MarshalFrame(f))
}
