package services

import (
	"context"
	"fmt"

	"github.com/faeln1/go-checkin-api/internal/app/repositories"
	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	qrcode "github.com/skip2/go-qrcode"
)

const defaultBadgeSize = 256

// BadgeService renders QR badges for registered people.
type BadgeService interface {
	PNG(ctx context.Context, personID int, size int) ([]byte, error)
}

type badgeService struct {
	repo repositories.AttendanceRepository
}

func NewBadgeService(repo repositories.AttendanceRepository) BadgeService {
	return &badgeService{repo: repo}
}

func (s *badgeService) PNG(ctx context.Context, personID int, size int) ([]byte, error) {
	if _, err := s.repo.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	if size <= 0 || size > 1024 {
		size = defaultBadgeSize
	}
	png, err := qrcode.Encode(attendance.BadgePayload(personID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode badge qr: %w", err)
	}
	return png, nil
}
