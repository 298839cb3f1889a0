package rosterclient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	delay   time.Duration
	f       func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Pending returns the delays of timers that have neither fired nor stopped.
func (c *fakeClock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			out = append(out, t.delay)
		}
	}
	return out
}

// Advance moves time forward and runs due timers on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type fakeConn struct {
	events    chan attendance.ChangeEvent
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan attendance.ChangeEvent, 8), closed: make(chan struct{})}
}

func (c *fakeConn) Receive() (attendance.ChangeEvent, error) {
	select {
	case evt := <-c.events:
		return evt, nil
	case <-c.closed:
		return attendance.ChangeEvent{}, ErrTransportClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu        sync.Mutex
	err       error
	failFirst int
	scopes    []int
	conns     []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, communityID int) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scopes = append(d.scopes, communityID)
	if d.err != nil {
		return nil, d.err
	}
	if d.failFirst > 0 {
		d.failFirst--
		return nil, ErrTransportClosed
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.scopes)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func seedRoster(communityID int) []attendance.Person {
	in := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)
	return []attendance.Person{
		{ID: 7, FirstName: "Ada", LastName: "Lovelace", CommunityID: communityID},
		{ID: 8, FirstName: "Grace", LastName: "Hopper", CommunityID: communityID, CheckInDate: &in},
		{ID: 9, FirstName: "Alan", LastName: "Turing", CommunityID: communityID},
		{ID: 10, FirstName: "Edsger", LastName: "Dijkstra", CommunityID: communityID, CheckInDate: &in, CheckOutDate: &out},
	}
}
