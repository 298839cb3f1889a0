package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
)

var (
	ErrPersonNotFound    = errors.New("person not found")
	ErrCommunityNotFound = errors.New("community not found")
)

// AttendanceRepository persists communities and their registered people. The
// only mutation after seeding is the pair of attendance timestamps.
type AttendanceRepository interface {
	ListCommunities(ctx context.Context) ([]attendance.Community, error)
	GetCommunity(ctx context.Context, id int) (*attendance.Community, error)
	ListPeopleByCommunity(ctx context.Context, communityID int) ([]attendance.Person, error)
	GetPerson(ctx context.Context, id int) (*attendance.Person, error)
	// UpdateAttendance writes CheckInDate and CheckOutDate of p. Other fields
	// are ignored.
	UpdateAttendance(ctx context.Context, p *attendance.Person) error
	// Seed inserts communities and people. Existing ids are overwritten.
	Seed(ctx context.Context, communities []attendance.Community, people []attendance.Person) error
	CountCommunities(ctx context.Context) (int, error)
}

type inMemoryAttendanceRepo struct {
	mu          sync.RWMutex
	communities map[int]attendance.Community
	people      map[int]attendance.Person
}

// NewInMemoryAttendanceRepo returns a process-local repository used by default
// and in tests.
func NewInMemoryAttendanceRepo() AttendanceRepository {
	return &inMemoryAttendanceRepo{
		communities: make(map[int]attendance.Community),
		people:      make(map[int]attendance.Person),
	}
}

func (r *inMemoryAttendanceRepo) ListCommunities(ctx context.Context) ([]attendance.Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]attendance.Community, 0, len(r.communities))
	for _, c := range r.communities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inMemoryAttendanceRepo) GetCommunity(ctx context.Context, id int) (*attendance.Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.communities[id]
	if !ok {
		return nil, ErrCommunityNotFound
	}
	return &c, nil
}

func (r *inMemoryAttendanceRepo) ListPeopleByCommunity(ctx context.Context, communityID int) ([]attendance.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]attendance.Person, 0)
	for _, p := range r.people {
		if p.CommunityID == communityID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inMemoryAttendanceRepo) GetPerson(ctx context.Context, id int) (*attendance.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.people[id]
	if !ok {
		return nil, ErrPersonNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (r *inMemoryAttendanceRepo) UpdateAttendance(ctx context.Context, p *attendance.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.people[p.ID]
	if !ok {
		return ErrPersonNotFound
	}
	updated := p.Clone()
	current.CheckInDate = updated.CheckInDate
	current.CheckOutDate = updated.CheckOutDate
	r.people[p.ID] = current
	return nil
}

func (r *inMemoryAttendanceRepo) Seed(ctx context.Context, communities []attendance.Community, people []attendance.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range communities {
		r.communities[c.ID] = c
	}
	for _, p := range people {
		r.people[p.ID] = p.Clone()
	}
	return nil
}

func (r *inMemoryAttendanceRepo) CountCommunities(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.communities), nil
}
