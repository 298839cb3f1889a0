package rosterclient

import (
	"errors"
	"testing"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func TestSupervisorAbandonsAfterMaxFailures(t *testing.T) {
	clock := newFakeClock()
	dialer := &fakeDialer{err: errors.New("connection refused")}
	sup := NewSupervisor(dialer, WithClock(clock))

	sess := sup.Connect(3)
	require.Eventually(t, func() bool { return len(clock.Pending()) == 1 }, waitFor, tick)

	var delays []time.Duration
	for {
		pending := clock.Pending()
		if len(pending) == 0 {
			break
		}
		require.Len(t, pending, 1)
		delays = append(delays, pending[0])
		clock.Advance(pending[0])
	}

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		30 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	require.Equal(t, want, delays)
	require.Equal(t, MaxReconnectAttempts, dialer.count())
	require.Equal(t, StateDisconnected, sess.State())

	clock.Advance(time.Hour)
	require.Equal(t, MaxReconnectAttempts, dialer.count(), "no attempt after abandoning")
}

func TestSupervisorSuccessResetsCounter(t *testing.T) {
	clock := newFakeClock()
	dialer := &fakeDialer{failFirst: 2}
	sup := NewSupervisor(dialer, WithClock(clock))

	sess := sup.Connect(3)
	require.Eventually(t, func() bool { return len(clock.Pending()) == 1 }, waitFor, tick)
	require.Equal(t, StateReconnecting, sess.State())

	clock.Advance(time.Second)
	require.Equal(t, []time.Duration{2 * time.Second}, clock.Pending())
	clock.Advance(2 * time.Second)

	require.Equal(t, StateConnected, sess.State())
	require.Equal(t, 0, sup.Failures())

	// unexpected closure starts again from the base delay
	dialer.conn(0).Close()
	require.Eventually(t, func() bool { return len(clock.Pending()) == 1 }, waitFor, tick)
	require.Equal(t, []time.Duration{time.Second}, clock.Pending())
	require.Equal(t, StateReconnecting, sess.State())

	clock.Advance(time.Second)
	require.Equal(t, StateConnected, sess.State())
	require.Equal(t, 4, dialer.count())
	require.Same(t, sess, sup.Session())
}

func TestSupervisorReusesSessionForSameScope(t *testing.T) {
	dialer := &fakeDialer{}
	sup := NewSupervisor(dialer, WithClock(newFakeClock()))

	first := sup.Connect(3)
	require.Eventually(t, func() bool { return first.State() == StateConnected }, waitFor, tick)

	again := sup.Connect(3)
	require.Same(t, first, again)
	require.Equal(t, 1, dialer.count())

	other := sup.Connect(4)
	require.NotSame(t, first, other)
	require.Equal(t, 4, other.CommunityID())
	require.Eventually(t, func() bool { return dialer.count() == 2 }, waitFor, tick)
	require.Equal(t, StateDisconnected, first.State())
	require.True(t, dialer.conn(0).isClosed())
}

func TestSupervisorReplacesAbandonedSession(t *testing.T) {
	clock := newFakeClock()
	dialer := &fakeDialer{err: errors.New("down")}
	sup := NewSupervisor(dialer, WithClock(clock))

	first := sup.Connect(3)
	require.Eventually(t, func() bool { return len(clock.Pending()) == 1 }, waitFor, tick)
	for len(clock.Pending()) > 0 {
		clock.Advance(time.Minute)
	}
	require.False(t, first.State().Active())

	dialer.mu.Lock()
	dialer.err = nil
	dialer.mu.Unlock()

	second := sup.Connect(3)
	require.NotSame(t, first, second)
	require.Eventually(t, func() bool { return second.State() == StateConnected }, waitFor, tick)
	require.Equal(t, 0, sup.Failures())
}

func TestSupervisorEnsureConnectedRecoversAbandonedSession(t *testing.T) {
	clock := newFakeClock()
	dialer := &fakeDialer{err: errors.New("down")}
	sup := NewSupervisor(dialer, WithClock(clock))

	first := sup.Connect(3)
	require.Eventually(t, func() bool { return len(clock.Pending()) == 1 }, waitFor, tick)
	for {
		pending := clock.Pending()
		if len(pending) == 0 {
			break
		}
		clock.Advance(pending[0])
	}
	require.Equal(t, StateDisconnected, first.State())

	dialer.mu.Lock()
	dialer.err = nil
	dialer.mu.Unlock()

	second := sup.EnsureConnected(3)
	require.NotSame(t, first, second)
	require.Eventually(t, func() bool { return second.State() == StateConnected }, waitFor, tick)
	require.Same(t, second, sup.EnsureConnected(3))
}

func TestSupervisorDisconnectCancelsPendingReconnect(t *testing.T) {
	clock := newFakeClock()
	dialer := &fakeDialer{err: errors.New("down")}
	sup := NewSupervisor(dialer, WithClock(clock))

	sess := sup.Connect(3)
	require.Eventually(t, func() bool { return len(clock.Pending()) == 1 }, waitFor, tick)

	sup.Disconnect()
	require.Empty(t, clock.Pending())
	require.Nil(t, sup.Session())
	require.Equal(t, StateDisconnected, sess.State())

	clock.Advance(time.Hour)
	require.Equal(t, 1, dialer.count())

	require.NotPanics(t, sup.Disconnect)
	require.NotPanics(t, NewSupervisor(dialer).Disconnect)
}

func TestSupervisorEnsureConnected(t *testing.T) {
	dialer := &fakeDialer{}
	sup := NewSupervisor(dialer, WithClock(newFakeClock()))

	sess := sup.EnsureConnected(3)
	require.NotNil(t, sess)
	require.Eventually(t, func() bool { return sess.State() == StateConnected }, waitFor, tick)

	require.Same(t, sess, sup.EnsureConnected(3))
	require.Same(t, sess, sup.EnsureConnected(4), "an active session is kept even for another scope")
	require.Equal(t, 1, dialer.count())

	sup.Disconnect()
	next := sup.EnsureConnected(4)
	require.NotSame(t, sess, next)
	require.Equal(t, 4, next.CommunityID())
}

func TestSessionDispatchesToHandlers(t *testing.T) {
	dialer := &fakeDialer{}
	sup := NewSupervisor(dialer, WithClock(newFakeClock()))

	sess := sup.Connect(3)
	got := make(chan attendance.ChangeEvent, 4)
	unsubscribe := sess.On(func(evt attendance.ChangeEvent) { got <- evt })
	require.Eventually(t, func() bool { return sess.State() == StateConnected }, waitFor, tick)

	evt := attendance.ChangeEvent{Kind: attendance.KindCheckIn, CommunityID: 3, PersonID: 7}
	dialer.conn(0).events <- evt
	select {
	case received := <-got:
		require.Equal(t, evt, received)
	case <-time.After(waitFor):
		t.Fatal("event not dispatched")
	}

	unsubscribe()
	unsubscribe()
	dialer.conn(0).events <- evt
	select {
	case <-got:
		t.Fatal("handler called after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupervisorTeardownRemovesHandlers(t *testing.T) {
	dialer := &fakeDialer{}
	sup := NewSupervisor(dialer, WithClock(newFakeClock()))

	first := sup.Connect(3)
	first.On(func(attendance.ChangeEvent) {})
	first.On(func(attendance.ChangeEvent) {})

	sup.Connect(4)
	first.mu.Lock()
	defer first.mu.Unlock()
	require.Empty(t, first.handlers)
}
