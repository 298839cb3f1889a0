package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/faeln1/go-checkin-api/internal/app/repositories"
	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	storagepkg "github.com/faeln1/go-checkin-api/pkg/storage"
	"github.com/google/uuid"
	waLog "go.mau.fi/whatsmeow/util/log"
)

var ErrStorageDisabled = errors.New("object storage not configured")

// RosterReport is the archived view of a community at a point in time.
type RosterReport struct {
	GeneratedAt      time.Time                 `json:"generatedAt"`
	Community        attendance.Community      `json:"community"`
	Summary          attendance.EventSummary   `json:"summary"`
	NotCheckedIn     int                       `json:"notCheckedIn"`
	CompanyBreakdown []attendance.CompanyCount `json:"companyBreakdown"`
	People           []attendance.Person       `json:"people"`
}

// ReportResult tells the caller where the report was stored.
type ReportResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ReportService interface {
	Archive(ctx context.Context, communityID int) (*ReportResult, error)
	List(ctx context.Context, communityID int) ([]storagepkg.Object, error)
}

type reportService struct {
	repo    repositories.AttendanceRepository
	storage storagepkg.Service
	now     func() time.Time
	log     waLog.Logger
}

// NewReportService returns a service that uploads roster reports. storage may
// be nil, in which case Archive fails with ErrStorageDisabled.
func NewReportService(repo repositories.AttendanceRepository, storage storagepkg.Service, log waLog.Logger) ReportService {
	return &reportService{repo: repo, storage: storage, now: time.Now, log: log}
}

func (s *reportService) Archive(ctx context.Context, communityID int) (*ReportResult, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	report, err := s.build(ctx, communityID)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	key := fmt.Sprintf("%s%s-%s.json", reportPrefix(communityID), report.GeneratedAt.Format("20060102T150405Z"), uuid.NewString())
	url, err := s.storage.PutObject(ctx, storagepkg.UploadInput{
		Key:         key,
		ContentType: "application/json",
		Body:        bytes.NewReader(body),
		Size:        int64(len(body)),
	})
	if err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}
	if s.log != nil {
		s.log.Infof("roster report for community=%d stored at %s", communityID, key)
	}
	return &ReportResult{Key: key, URL: url}, nil
}

func (s *reportService) build(ctx context.Context, communityID int) (*RosterReport, error) {
	community, err := s.repo.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	people, err := s.repo.ListPeopleByCommunity(ctx, communityID)
	if err != nil {
		return nil, fmt.Errorf("list people for report: %w", err)
	}
	summary := attendance.Summarize(*community, people)
	return &RosterReport{
		GeneratedAt:      s.now().UTC(),
		Community:        *community,
		Summary:          summary,
		NotCheckedIn:     summary.NotCheckedIn(),
		CompanyBreakdown: attendance.CompanyBreakdown(people),
		People:           people,
	}, nil
}

func (s *reportService) List(ctx context.Context, communityID int) ([]storagepkg.Object, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if _, err := s.repo.GetCommunity(ctx, communityID); err != nil {
		return nil, err
	}
	return s.storage.ListObjects(ctx, reportPrefix(communityID))
}

func reportPrefix(communityID int) string {
	return fmt.Sprintf("reports/%d/", communityID)
}
