package main

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// envelope mirrors the real backend's uniform response wrapper.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, code int, message string, data any) {
	c.JSON(code, envelope{
		Status:  statusString(code),
		Message: message,
		Data:    data,
	})
}

// statusString renders "404 NOT_FOUND"-style status text.
func statusString(code int) string {
	text := strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
	return strconv.Itoa(code) + " " + text
}

// Server holds per-event state, created lazily per event id.
type Server struct {
	hub *Hub

	mu     sync.Mutex
	events map[string]*EventState
}

func newServer(hub *Hub) *Server {
	return &Server{hub: hub, events: make(map[string]*EventState)}
}

func (s *Server) event(eventID string) *EventState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.events[eventID]
	if !ok {
		st = NewEventState(eventID, s.hub)
		st.StartSweep()
		s.events[eventID] = st
	}
	return st
}

// bearerAuth resolves the caller's user id from the bearer token. The
// stub treats the token itself as the user id.
func bearerAuth(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		respond(c, http.StatusUnauthorized, "missing bearer token", nil)
		c.Abort()
		return
	}
	c.Set("userID", token)
	c.Next()
}

func userID(c *gin.Context) string {
	return c.GetString("userID")
}

func (s *Server) handleQueueStatus(c *gin.Context) {
	st := s.event(c.Param("eventId"))
	respond(c, http.StatusOK, "queue status", st.Status(userID(c)))
}

func (s *Server) handleMoveToBack(c *gin.Context) {
	st := s.event(c.Param("eventId"))
	result, err := st.MoveToBack(userID(c))
	if err != nil {
		respond(c, http.StatusConflict, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, "moved to back of queue", result)
}

func (s *Server) handleProcessUntilMe(c *gin.Context) {
	st := s.event(c.Param("eventId"))
	if err := st.ProcessUntilMe(userID(c)); err != nil {
		respond(c, http.StatusConflict, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, "queue processed", nil)
}

func (s *Server) handleSeats(c *gin.Context) {
	st := s.event(c.Param("eventId"))
	respond(c, http.StatusOK, "seat list", st.Seats())
}

func (s *Server) handleSelectSeat(c *gin.Context) {
	s.seatAction(c, func(st *EventState, user string, seatID int64) error {
		return st.Select(user, seatID)
	}, "seat selected")
}

func (s *Server) handleDeselectSeat(c *gin.Context) {
	s.seatAction(c, func(st *EventState, user string, seatID int64) error {
		return st.Deselect(user, seatID)
	}, "seat released")
}

func (s *Server) seatAction(c *gin.Context, action func(*EventState, string, int64) error, okMessage string) {
	seatID, err := strconv.ParseInt(c.Param("seatId"), 10, 64)
	if err != nil {
		respond(c, http.StatusBadRequest, "invalid seat id", nil)
		return
	}
	st := s.event(c.Param("eventId"))
	if err := action(st, userID(c), seatID); err != nil {
		code := http.StatusConflict
		if err == errSeatNotFound {
			code = http.StatusNotFound
		}
		respond(c, code, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, okMessage, nil)
}
