package rosterclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	waLog "go.mau.fi/whatsmeow/util/log"
)

var ErrMutationFailed = errors.New("mutation failed")

// MutationError is returned after a remote check-in/check-out failed and the
// cache was rolled back.
type MutationError struct {
	Kind     attendance.EventKind
	PersonID int
	Err      error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s person %d: %v", e.Kind, e.PersonID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

func (e *MutationError) Is(target error) bool { return target == ErrMutationFailed }

// Remote performs the server-side transitions.
type Remote interface {
	CheckIn(ctx context.Context, personID int) (*attendance.Person, error)
	CheckOut(ctx context.Context, personID int) (*attendance.Person, error)
}

// ownEchoTTL bounds how long a sent transition waits for its push echo.
const ownEchoTTL = 30 * time.Second

type echoKey struct {
	kind        attendance.EventKind
	communityID int
	personID    int
}

// Coordinator applies transitions to the cache before the server confirms
// them and rolls back on failure. Calls for the same person are not
// serialized.
type Coordinator struct {
	cache  *Cache
	remote Remote
	now    func() time.Time
	log    waLog.Logger

	mu      sync.Mutex
	pending map[echoKey][]time.Time // sent transitions whose echo has not arrived
}

func NewCoordinator(cache *Cache, remote Remote, log waLog.Logger) *Coordinator {
	if log == nil {
		log = waLog.Noop
	}
	return &Coordinator{cache: cache, remote: remote, now: time.Now, log: log, pending: make(map[echoKey][]time.Time)}
}

// ConsumeEcho reports whether evt is the push echo of a transition this
// coordinator sent and did not roll back. Each sent transition matches at
// most one event.
func (c *Coordinator) ConsumeEcho(evt attendance.ChangeEvent) bool {
	key := echoKey{kind: evt.Kind, communityID: evt.CommunityID, personID: evt.PersonID}
	cutoff := c.now().Add(-ownEchoTTL)

	c.mu.Lock()
	defer c.mu.Unlock()
	sent := c.pending[key]
	for len(sent) > 0 && sent[0].Before(cutoff) {
		sent = sent[1:]
	}
	if len(sent) == 0 {
		delete(c.pending, key)
		return false
	}
	if sent = sent[1:]; len(sent) == 0 {
		delete(c.pending, key)
	} else {
		c.pending[key] = sent
	}
	return true
}

func (c *Coordinator) track(key echoKey, at time.Time) {
	c.mu.Lock()
	c.pending[key] = append(c.pending[key], at)
	c.mu.Unlock()
}

func (c *Coordinator) untrack(key echoKey, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sent := c.pending[key]
	for i := range sent {
		if sent[i].Equal(at) {
			sent = append(sent[:i], sent[i+1:]...)
			break
		}
	}
	if len(sent) == 0 {
		delete(c.pending, key)
		return
	}
	c.pending[key] = sent
}

func (c *Coordinator) CheckIn(ctx context.Context, communityID, personID int) (*attendance.Person, error) {
	return c.mutate(ctx, attendance.KindCheckIn, communityID, personID)
}

func (c *Coordinator) CheckOut(ctx context.Context, communityID, personID int) (*attendance.Person, error) {
	return c.mutate(ctx, attendance.KindCheckOut, communityID, personID)
}

func (c *Coordinator) mutate(ctx context.Context, kind attendance.EventKind, communityID, personID int) (*attendance.Person, error) {
	peopleKey, summaryKey := PeopleKey(communityID), SummaryKey(communityID)

	c.cache.CancelRefresh(peopleKey)
	peopleSnap := c.cache.Snapshot(peopleKey)
	summarySnap := c.cache.Snapshot(summaryKey)

	now := c.now().UTC()
	c.cache.Update(peopleKey, func(v any) any {
		return applyToPerson(v, kind, personID, now)
	})
	// The echo can arrive before the response, so it is tracked up front.
	echo := echoKey{kind: kind, communityID: communityID, personID: personID}
	c.track(echo, now)

	var (
		person *attendance.Person
		err    error
	)
	switch kind {
	case attendance.KindCheckIn:
		person, err = c.remote.CheckIn(ctx, personID)
	default:
		person, err = c.remote.CheckOut(ctx, personID)
	}
	if err != nil {
		c.untrack(echo, now)
		c.cache.Restore(peopleSnap)
		c.cache.Restore(summarySnap)
		c.log.Warnf("%s for person %d failed, rolled back: %v", kind, personID, err)
		return nil, &MutationError{Kind: kind, PersonID: personID, Err: err}
	}
	return person, nil
}

// applyToPerson returns a new roster with kind applied to personID. Values
// that are not rosters are returned unchanged.
func applyToPerson(v any, kind attendance.EventKind, personID int, now time.Time) any {
	people, ok := v.([]attendance.Person)
	if !ok {
		return v
	}
	out := make([]attendance.Person, len(people))
	for i, p := range people {
		if p.ID == personID {
			out[i] = attendance.Apply(kind, p, now)
			continue
		}
		out[i] = p
	}
	return out
}
