package services

import (
	"context"
	"fmt"
	"time"

	"github.com/faeln1/go-checkin-api/internal/app/repositories"
	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// AttendanceService runs the check-in state machine against the repository
// and publishes every committed transition.
type AttendanceService interface {
	ListCommunities(ctx context.Context) ([]attendance.Community, error)
	ListPeople(ctx context.Context, communityID int) ([]attendance.Person, error)
	Summary(ctx context.Context, communityID int) (*attendance.EventSummary, error)
	CheckIn(ctx context.Context, personID int) (*attendance.Person, error)
	CheckOut(ctx context.Context, personID int) (*attendance.Person, error)
}

type attendanceService struct {
	repo        repositories.AttendanceRepository
	broadcaster EventBroadcaster
	now         func() time.Time
	log         waLog.Logger
}

// AttendanceOption customizes the service; used by tests to pin the clock.
type AttendanceOption func(*attendanceService)

func WithClock(now func() time.Time) AttendanceOption {
	return func(s *attendanceService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAttendanceService(repo repositories.AttendanceRepository, broadcaster EventBroadcaster, log waLog.Logger, opts ...AttendanceOption) AttendanceService {
	s := &attendanceService{
		repo:        repo,
		broadcaster: broadcaster,
		now:         time.Now,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *attendanceService) ListCommunities(ctx context.Context) ([]attendance.Community, error) {
	return s.repo.ListCommunities(ctx)
}

func (s *attendanceService) ListPeople(ctx context.Context, communityID int) ([]attendance.Person, error) {
	return s.repo.ListPeopleByCommunity(ctx, communityID)
}

func (s *attendanceService) Summary(ctx context.Context, communityID int) (*attendance.EventSummary, error) {
	community, err := s.repo.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	people, err := s.repo.ListPeopleByCommunity(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("list people for summary: %w", err)
	}
	summary := attendance.Summarize(*community, people)
	return &summary, nil
}

func (s *attendanceService) CheckIn(ctx context.Context, personID int) (*attendance.Person, error) {
	return s.transition(ctx, attendance.KindCheckIn, personID)
}

func (s *attendanceService) CheckOut(ctx context.Context, personID int) (*attendance.Person, error) {
	return s.transition(ctx, attendance.KindCheckOut, personID)
}

// transition is a plain read-modify-write. Concurrent calls for the same
// person are last-write-wins.
func (s *attendanceService) transition(ctx context.Context, kind attendance.EventKind, personID int) (*attendance.Person, error) {
	current, err := s.repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	updated := attendance.Apply(kind, *current, s.now())
	if err := s.repo.UpdateAttendance(ctx, &updated); err != nil {
		return nil, fmt.Errorf("persist %s: %w", kind, err)
	}
	if s.log != nil {
		s.log.Infof("%s person=%d community=%d", kind, updated.ID, updated.CommunityID)
	}
	s.publish(ctx, attendance.ChangeEvent{Kind: kind, CommunityID: updated.CommunityID, PersonID: updated.ID})
	return &updated, nil
}

func (s *attendanceService) publish(ctx context.Context, evt attendance.ChangeEvent) {
	if s.broadcaster == nil {
		return
	}
	// The write is committed; the broadcaster must not fail the request.
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Errorf("broadcast panic for %s person=%d: %v", evt.Kind, evt.PersonID, r)
		}
	}()
	s.broadcaster.Broadcast(ctx, evt)
}
