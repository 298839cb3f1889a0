package rosterclient

import (
	"sync"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Active reports whether the session is still trying to serve its scope.
func (s State) Active() bool {
	return s == StateConnecting || s == StateConnected || s == StateReconnecting
}

// EventHandler receives events pushed to a session. Handlers run on the
// session's read goroutine.
type EventHandler func(attendance.ChangeEvent)

// Session is a logical push session tagged with the community it serves. It
// survives transport reconnects; only the Supervisor replaces it.
type Session struct {
	communityID int

	mu       sync.Mutex
	state    State
	conn     Conn
	stopped  bool
	handlers map[uint64]EventHandler
	nextID   uint64
}

func newSession(communityID int) *Session {
	return &Session{communityID: communityID, state: StateConnecting, handlers: make(map[uint64]EventHandler)}
}

func (s *Session) CommunityID() int { return s.communityID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// On registers h and returns a func that removes it.
func (s *Session) On(h EventHandler) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

// OffAll removes every handler.
func (s *Session) OffAll() {
	s.mu.Lock()
	s.handlers = make(map[uint64]EventHandler)
	s.mu.Unlock()
}

// Stop closes the transport and marks the session disconnected. Calling it
// again is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.state = StateDisconnected
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) dispatch(evt attendance.ChangeEvent) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	handlers := make([]EventHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

// attach installs conn as the live transport. It fails when the session was
// stopped while dialing.
func (s *Session) attach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conn = conn
	s.state = StateConnected
	return true
}

// detach drops conn after it failed. It reports false when conn is no longer
// the live transport or the session was stopped.
func (s *Session) detach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.conn != conn {
		return false
	}
	s.conn = nil
	s.state = StateReconnecting
	return true
}

func (s *Session) setState(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.state = state
	return true
}

func (s *Session) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
