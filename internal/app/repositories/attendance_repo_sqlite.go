package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
)

type sqliteAttendanceRepo struct {
	db *sql.DB
}

// NewSQLiteAttendanceRepo builds the repository on a database/sql handle opened
// with the modernc sqlite driver and creates the schema if needed.
func NewSQLiteAttendanceRepo(db *sql.DB) (AttendanceRepository, error) {
	repo := &sqliteAttendanceRepo{db: db}
	if err := repo.ensureSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *sqliteAttendanceRepo) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS communities (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            created_at TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS people (
            id INTEGER PRIMARY KEY,
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            company_name TEXT NOT NULL DEFAULT '',
            title TEXT NOT NULL DEFAULT '',
            community_id INTEGER NOT NULL REFERENCES communities(id),
            check_in_date TEXT,
            check_out_date TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_people_community ON people (community_id)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

func (r *sqliteAttendanceRepo) ListCommunities(ctx context.Context) ([]attendance.Community, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM communities ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]attendance.Community, 0)
	for rows.Next() {
		var (
			c       attendance.Community
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *sqliteAttendanceRepo) GetCommunity(ctx context.Context, id int) (*attendance.Community, error) {
	var (
		c       attendance.Community
		created string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM communities WHERE id = ?`, id).Scan(&c.ID, &c.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommunityNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &c, nil
}

const personColumns = `id, first_name, last_name, company_name, title, community_id, check_in_date, check_out_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (attendance.Person, error) {
	var (
		p        attendance.Person
		checkIn  sql.NullString
		checkOut sql.NullString
	)
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.CompanyName, &p.Title, &p.CommunityID, &checkIn, &checkOut); err != nil {
		return p, err
	}
	p.CheckInDate = parseNullTime(checkIn)
	p.CheckOutDate = parseNullTime(checkOut)
	return p, nil
}

func (r *sqliteAttendanceRepo) ListPeopleByCommunity(ctx context.Context, communityID int) ([]attendance.Person, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+personColumns+` FROM people WHERE community_id = ? ORDER BY id ASC`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]attendance.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *sqliteAttendanceRepo) GetPerson(ctx context.Context, id int) (*attendance.Person, error) {
	p, err := scanPerson(r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqliteAttendanceRepo) UpdateAttendance(ctx context.Context, p *attendance.Person) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE people SET check_in_date = ?, check_out_date = ? WHERE id = ?`,
		formatNullTime(p.CheckInDate), formatNullTime(p.CheckOutDate), p.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrPersonNotFound
	}
	return err
}

func (r *sqliteAttendanceRepo) Seed(ctx context.Context, communities []attendance.Community, people []attendance.Person) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range communities {
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO communities (id, name, created_at) VALUES (?, ?, ?)`,
			c.ID, c.Name, created.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("seed community %d: %w", c.ID, err)
		}
	}
	for _, p := range people {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO people (`+personColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.FirstName, p.LastName, p.CompanyName, p.Title, p.CommunityID,
			formatNullTime(p.CheckInDate), formatNullTime(p.CheckOutDate)); err != nil {
			return fmt.Errorf("seed person %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (r *sqliteAttendanceRepo) CountCommunities(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM communities`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}
