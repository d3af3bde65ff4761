package realtime

import "sync"

// Service owns the single process-wide connection. It is constructed once
// at login and injected into every consumer; Teardown at logout destroys
// the connection so a user switch never reuses a stale token binding.
type Service struct {
	mu    sync.Mutex
	url   string
	token TokenFunc
	conn  *Conn
}

// NewService returns a Service that will connect to url with tokens from
// the given accessor.
func NewService(url string, token TokenFunc) *Service {
	return &Service{url: url, token: token}
}

// Conn returns the shared connection, constructing it on first use.
func (s *Service) Conn() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		s.conn = NewConn(s.url, s.token)
	}
	return s.conn
}

// Teardown disconnects and drops the shared connection. The next call to
// Conn builds a fresh instance.
func (s *Service) Teardown() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Disconnect()
	}
}
