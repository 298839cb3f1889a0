package rosterclient

import (
	"context"
	"sync"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const defaultReloadTimeout = 15 * time.Second

// EchoFilter recognizes events that echo a transition already applied locally.
type EchoFilter interface {
	ConsumeEcho(evt attendance.ChangeEvent) bool
}

// Reconciler folds change events into the cache for the active community.
type Reconciler struct {
	cache *Cache
	log   waLog.Logger
	now   func() time.Time

	mu          sync.RWMutex
	communityID int
	onChange    func(communityID int)
	echoes      EchoFilter
}

func NewReconciler(cache *Cache, log waLog.Logger) *Reconciler {
	if log == nil {
		log = waLog.Noop
	}
	return &Reconciler{cache: cache, log: log, now: time.Now}
}

// SetScope switches the community whose events are applied.
func (r *Reconciler) SetScope(communityID int) {
	r.mu.Lock()
	r.communityID = communityID
	r.mu.Unlock()
}

func (r *Reconciler) Scope() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.communityID
}

// OnChange registers a callback invoked after the cache was updated.
func (r *Reconciler) OnChange(fn func(communityID int)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// SkipEchoes makes the reconciler leave the people entry alone for events f
// recognizes; the summary is still recomputed.
func (r *Reconciler) SkipEchoes(f EchoFilter) {
	r.mu.Lock()
	r.echoes = f
	r.mu.Unlock()
}

// Handle applies evt. It has the EventHandler signature so it can be passed
// straight to Session.On.
func (r *Reconciler) Handle(evt attendance.ChangeEvent) {
	r.mu.RLock()
	scope, onChange, echoes := r.communityID, r.onChange, r.echoes
	r.mu.RUnlock()
	if evt.CommunityID != scope {
		return
	}

	switch evt.Kind {
	case attendance.KindCheckIn, attendance.KindCheckOut:
		own := echoes != nil && echoes.ConsumeEcho(evt)
		if !r.applyIncremental(evt, own) {
			return
		}
	case attendance.KindPoll:
		r.reload(evt.CommunityID)
	default:
		r.log.Debugf("ignoring event kind %q", evt.Kind)
		return
	}
	if onChange != nil {
		onChange(evt.CommunityID)
	}
}

func (r *Reconciler) applyIncremental(evt attendance.ChangeEvent, own bool) bool {
	if own {
		if _, ok := r.cache.Get(PeopleKey(evt.CommunityID)); !ok {
			return false
		}
	} else {
		now := r.now().UTC()
		updated := r.cache.Update(PeopleKey(evt.CommunityID), func(v any) any {
			return applyToPerson(v, evt.Kind, evt.PersonID, now)
		})
		if !updated {
			return false
		}
	}
	people, ok := r.cache.People(evt.CommunityID)
	if !ok {
		return true
	}
	r.cache.Update(SummaryKey(evt.CommunityID), func(v any) any {
		prev, ok := v.(attendance.EventSummary)
		if !ok {
			return v
		}
		return attendance.Summarize(attendance.Community{ID: evt.CommunityID, Name: prev.CommunityName}, people)
	})
	return true
}

func (r *Reconciler) reload(communityID int) {
	r.cache.Invalidate(PeopleKey(communityID))
	r.cache.Invalidate(SummaryKey(communityID))

	ctx, cancel := context.WithTimeout(context.Background(), defaultReloadTimeout)
	defer cancel()
	for _, key := range []CacheKey{PeopleKey(communityID), SummaryKey(communityID)} {
		if _, err := r.cache.Load(ctx, key); err != nil {
			r.log.Warnf("reload %s failed: %v", key, err)
		}
	}
}
