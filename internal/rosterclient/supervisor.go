package rosterclient

import (
	"context"
	"sync"
	"time"

	waLog "go.mau.fi/whatsmeow/util/log"
)

const defaultDialTimeout = 10 * time.Second

// Supervisor owns at most one push Session, tagged with the community being
// viewed, and reconnects it with exponential backoff. One Supervisor serves
// one viewer; nothing here is process-global.
type Supervisor struct {
	dialer      Dialer
	clock       Clock
	log         waLog.Logger
	dialTimeout time.Duration

	mu       sync.Mutex
	session  *Session
	failures int // consecutive failures since the last successful dial
	timer    Timer
}

type SupervisorOption func(*Supervisor)

func WithClock(c Clock) SupervisorOption {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(log waLog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if log != nil {
			s.log = log
		}
	}
}

func WithDialTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d > 0 {
			s.dialTimeout = d
		}
	}
}

func NewSupervisor(dialer Dialer, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{dialer: dialer, clock: RealClock(), log: waLog.Noop, dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect returns the session serving communityID. A session that is still
// active for the same community is reused; anything else is torn down and a
// new session is started. Dialing happens in the background.
func (s *Supervisor) Connect(communityID int) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.State().Active() && s.session.CommunityID() == communityID {
		s.log.Debugf("reusing session for community %d", communityID)
		return s.session
	}
	return s.startLocked(communityID)
}

// EnsureConnected connects only when there is no active session. An active
// session for another community is left alone.
func (s *Supervisor) EnsureConnected(communityID int) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.State().Active() {
		return s.session
	}
	return s.startLocked(communityID)
}

// Disconnect stops the current session and cancels any pending reconnect.
// It is safe to call with no session.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// Session returns the current session, or nil.
func (s *Supervisor) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Failures returns the consecutive failure count of the current session.
func (s *Supervisor) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Supervisor) startLocked(communityID int) *Session {
	s.teardownLocked()
	s.failures = 0
	sess := newSession(communityID)
	s.session = sess
	s.log.Infof("connecting push session for community %d", communityID)
	go s.dial(sess)
	return sess
}

func (s *Supervisor) teardownLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.session == nil {
		return
	}
	old := s.session
	s.session = nil
	old.OffAll()
	if err := old.Stop(); err != nil {
		s.log.Debugf("ignoring error while stopping session for community %d: %v", old.CommunityID(), err)
	}
}

func (s *Supervisor) dial(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout)
	conn, err := s.dialer.Dial(ctx, sess.CommunityID())
	cancel()

	s.mu.Lock()
	if s.session != sess || sess.isStopped() {
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		s.failLocked(sess, err)
		s.mu.Unlock()
		return
	}
	if !sess.attach(conn) {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.failures = 0
	s.mu.Unlock()

	s.log.Infof("push session connected for community %d", sess.CommunityID())
	go s.read(sess, conn)
}

func (s *Supervisor) read(sess *Session, conn Conn) {
	for {
		evt, err := conn.Receive()
		if err != nil {
			s.mu.Lock()
			if s.session == sess && sess.detach(conn) {
				s.failLocked(sess, err)
			}
			s.mu.Unlock()
			return
		}
		sess.dispatch(evt)
	}
}

// failLocked records a failure and either schedules the next dial or
// abandons the session once MaxReconnectAttempts consecutive failures are
// reached.
func (s *Supervisor) failLocked(sess *Session, cause error) {
	s.failures++
	if s.failures >= MaxReconnectAttempts {
		sess.setState(StateDisconnected)
		s.log.Warnf("giving up on community %d after %d failures: %v", sess.CommunityID(), s.failures, cause)
		return
	}
	delay := Backoff(s.failures - 1)
	sess.setState(StateReconnecting)
	s.log.Warnf("push session for community %d failed (%v); retrying in %s", sess.CommunityID(), cause, delay)
	s.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		current := s.session == sess && !sess.isStopped()
		s.mu.Unlock()
		if current {
			s.dial(sess)
		}
	})
}
