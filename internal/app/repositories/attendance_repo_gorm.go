package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type communityRecord struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (communityRecord) TableName() string { return "communities" }

type personRecord struct {
	ID           int    `gorm:"primaryKey;autoIncrement:false"`
	FirstName    string `gorm:"not null;default:''"`
	LastName     string `gorm:"not null;default:''"`
	CompanyName  string `gorm:"not null;default:''"`
	Title        string `gorm:"not null;default:''"`
	CommunityID  int    `gorm:"not null;index:idx_people_community"`
	CheckInDate  *time.Time
	CheckOutDate *time.Time
}

func (personRecord) TableName() string { return "people" }

func (r personRecord) toDomain() attendance.Person {
	return attendance.Person{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		CompanyName:  r.CompanyName,
		Title:        r.Title,
		CommunityID:  r.CommunityID,
		CheckInDate:  r.CheckInDate,
		CheckOutDate: r.CheckOutDate,
	}
}

type gormAttendanceRepo struct {
	db *gorm.DB
}

// NewGormAttendanceRepo migrates the communities/people tables and returns a
// repository backed by GORM (Postgres in production).
func NewGormAttendanceRepo(db *gorm.DB) (AttendanceRepository, error) {
	if err := db.AutoMigrate(&communityRecord{}, &personRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &gormAttendanceRepo{db: db}, nil
}

func (r *gormAttendanceRepo) ListCommunities(ctx context.Context) ([]attendance.Community, error) {
	var records []communityRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]attendance.Community, 0, len(records))
	for _, rec := range records {
		out = append(out, attendance.Community{ID: rec.ID, Name: rec.Name, CreatedAt: rec.CreatedAt})
	}
	return out, nil
}

func (r *gormAttendanceRepo) GetCommunity(ctx context.Context, id int) (*attendance.Community, error) {
	var rec communityRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommunityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attendance.Community{ID: rec.ID, Name: rec.Name, CreatedAt: rec.CreatedAt}, nil
}

func (r *gormAttendanceRepo) ListPeopleByCommunity(ctx context.Context, communityID int) ([]attendance.Person, error) {
	var records []personRecord
	if err := r.db.WithContext(ctx).Where("community_id = ?", communityID).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]attendance.Person, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *gormAttendanceRepo) GetPerson(ctx context.Context, id int) (*attendance.Person, error) {
	var rec personRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		return nil, err
	}
	p := rec.toDomain()
	return &p, nil
}

func (r *gormAttendanceRepo) UpdateAttendance(ctx context.Context, p *attendance.Person) error {
	res := r.db.WithContext(ctx).Model(&personRecord{}).Where("id = ?", p.ID).Updates(map[string]any{
		"check_in_date":  p.CheckInDate,
		"check_out_date": p.CheckOutDate,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func (r *gormAttendanceRepo) Seed(ctx context.Context, communities []attendance.Community, people []attendance.Person) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{UpdateAll: true}
		for _, c := range communities {
			created := c.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			rec := communityRecord{ID: c.ID, Name: c.Name, CreatedAt: created}
			if err := tx.Clauses(upsert).Create(&rec).Error; err != nil {
				return fmt.Errorf("seed community %d: %w", c.ID, err)
			}
		}
		for _, p := range people {
			rec := personRecord{
				ID:           p.ID,
				FirstName:    p.FirstName,
				LastName:     p.LastName,
				CompanyName:  p.CompanyName,
				Title:        p.Title,
				CommunityID:  p.CommunityID,
				CheckInDate:  p.CheckInDate,
				CheckOutDate: p.CheckOutDate,
			}
			if err := tx.Clauses(upsert).Create(&rec).Error; err != nil {
				return fmt.Errorf("seed person %d: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (r *gormAttendanceRepo) CountCommunities(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&communityRecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}
