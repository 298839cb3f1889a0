package repositories

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	waLog "go.mau.fi/whatsmeow/util/log"
	yaml "gopkg.in/yaml.v3"
)

// SeedFile mirrors the YAML layout of a seed document.
type SeedFile struct {
	Communities []SeedCommunity `yaml:"communities"`
}

type SeedCommunity struct {
	ID        int          `yaml:"id"`
	Name      string       `yaml:"name"`
	CreatedAt time.Time    `yaml:"createdAt"`
	People    []SeedPerson `yaml:"people"`
}

type SeedPerson struct {
	ID          int    `yaml:"id"`
	FirstName   string `yaml:"firstName"`
	LastName    string `yaml:"lastName"`
	CompanyName string `yaml:"companyName"`
	Title       string `yaml:"title"`
}

// LoadSeedFile parses the YAML seed document at path.
func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(raw []byte) (*SeedFile, error) {
	var doc SeedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode seed yaml: %w", err)
	}
	seenPeople := make(map[int]bool)
	for _, c := range doc.Communities {
		if c.ID <= 0 {
			return nil, fmt.Errorf("community %q: id must be positive", c.Name)
		}
		for _, p := range c.People {
			if p.ID <= 0 {
				return nil, fmt.Errorf("community %d: person id must be positive", c.ID)
			}
			if seenPeople[p.ID] {
				return nil, fmt.Errorf("person id %d declared twice", p.ID)
			}
			seenPeople[p.ID] = true
		}
	}
	return &doc, nil
}

// Flatten splits the document into the records the repository stores.
func (f *SeedFile) Flatten() ([]attendance.Community, []attendance.Person) {
	var (
		communities []attendance.Community
		people      []attendance.Person
	)
	for _, c := range f.Communities {
		communities = append(communities, attendance.Community{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt})
		for _, p := range c.People {
			people = append(people, attendance.Person{
				ID:          p.ID,
				FirstName:   p.FirstName,
				LastName:    p.LastName,
				CompanyName: p.CompanyName,
				Title:       p.Title,
				CommunityID: c.ID,
			})
		}
	}
	return communities, people
}

// SeedIfEmpty loads doc into repo unless communities already exist.
func SeedIfEmpty(ctx context.Context, repo AttendanceRepository, doc *SeedFile, log waLog.Logger) (bool, error) {
	if doc == nil {
		return false, nil
	}
	n, err := repo.CountCommunities(ctx)
	if err != nil {
		return false, fmt.Errorf("count communities: %w", err)
	}
	if n > 0 {
		if log != nil {
			log.Infof("seed skipped: %d community(ies) already stored", n)
		}
		return false, nil
	}
	communities, people := doc.Flatten()
	if err := repo.Seed(ctx, communities, people); err != nil {
		return false, err
	}
	if log != nil {
		log.Infof("seeded %d community(ies) and %d person(s)", len(communities), len(people))
	}
	return true, nil
}
