package attendance

import (
	"sort"
	"strings"
	"time"
)

// State is the position of a person in the check-in lifecycle.
type State int

const (
	NotCheckedIn State = iota
	CheckedIn
	CheckedOut
)

func (s State) String() string {
	switch s {
	case CheckedIn:
		return "checked-in"
	case CheckedOut:
		return "checked-out"
	default:
		return "not-checked-in"
	}
}

// StateOf derives the lifecycle state from the two timestamps. A check-out
// without a check-in still counts as not checked in for the summary.
func StateOf(p Person) State {
	switch {
	case p.CheckInDate == nil:
		return NotCheckedIn
	case p.CheckOutDate == nil:
		return CheckedIn
	default:
		return CheckedOut
	}
}

// ApplyCheckIn sets the check-in timestamp and clears any check-out, so a
// checked-out person can re-enter.
func ApplyCheckIn(p Person, now time.Time) Person {
	out := p.Clone()
	at := now.UTC()
	out.CheckInDate = &at
	out.CheckOutDate = nil
	return out
}

// ApplyCheckOut sets the check-out timestamp. There is deliberately no guard
// on a prior check-in.
func ApplyCheckOut(p Person, now time.Time) Person {
	out := p.Clone()
	at := now.UTC()
	out.CheckOutDate = &at
	return out
}

// Apply dispatches on kind. Poll and unknown kinds return p unchanged.
func Apply(kind EventKind, p Person, now time.Time) Person {
	switch kind {
	case KindCheckIn:
		return ApplyCheckIn(p, now)
	case KindCheckOut:
		return ApplyCheckOut(p, now)
	default:
		return p
	}
}

// Summarize scans people once. Only people of the community are counted.
func Summarize(c Community, people []Person) EventSummary {
	summary := EventSummary{CommunityName: c.Name}
	for _, p := range people {
		if p.CommunityID != c.ID {
			continue
		}
		summary.TotalPeople++
		switch StateOf(p) {
		case CheckedIn:
			summary.CheckedInCount++
		case CheckedOut:
			summary.CheckedOutCount++
		}
	}
	return summary
}

const unknownCompany = "Not filled"

// CompanyCount is one row of the company breakdown.
type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

// CompanyBreakdown counts people currently checked in, grouped by company,
// largest group first.
func CompanyBreakdown(people []Person) []CompanyCount {
	counts := make(map[string]int)
	for _, p := range people {
		if StateOf(p) != CheckedIn {
			continue
		}
		company := strings.TrimSpace(p.CompanyName)
		if company == "" {
			company = unknownCompany
		}
		counts[company]++
	}
	out := make([]CompanyCount, 0, len(counts))
	for company, n := range counts {
		out = append(out, CompanyCount{Company: company, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Company < out[j].Company
	})
	return out
}

// FilterPeople keeps people whose full name contains term (case-insensitive).
// With onlyWithoutCheckIn it also drops anyone who has a check-in timestamp.
func FilterPeople(people []Person, term string, onlyWithoutCheckIn bool) []Person {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]Person, 0, len(people))
	for _, p := range people {
		if needle != "" && !strings.Contains(strings.ToLower(p.FullName()), needle) {
			continue
		}
		if onlyWithoutCheckIn && p.CheckInDate != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}
