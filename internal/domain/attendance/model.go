package attendance

import "time"

// Community is the event whose roster is being tracked.
type Community struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Person is a registered attendee of a community.
type Person struct {
	ID           int        `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	CompanyName  string     `json:"companyName,omitempty"`
	Title        string     `json:"title,omitempty"`
	CommunityID  int        `json:"communityId"`
	CheckInDate  *time.Time `json:"checkInDate"`
	CheckOutDate *time.Time `json:"checkOutDate"`
}

// FullName joins first and last name the way the roster displays it.
func (p Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Clone returns a copy that shares no timestamp pointers with p.
func (p Person) Clone() Person {
	out := p
	if p.CheckInDate != nil {
		in := *p.CheckInDate
		out.CheckInDate = &in
	}
	if p.CheckOutDate != nil {
		outAt := *p.CheckOutDate
		out.CheckOutDate = &outAt
	}
	return out
}

// EventSummary aggregates the attendance of a community. It is derived on
// every request and never stored.
type EventSummary struct {
	CommunityName   string `json:"communityName"`
	TotalPeople     int    `json:"totalPeople"`
	CheckedInCount  int    `json:"checkedInCount"`
	CheckedOutCount int    `json:"checkedOutCount"`
}

// NotCheckedIn returns how many people have no check-in at all.
func (s EventSummary) NotCheckedIn() int {
	return s.TotalPeople - s.CheckedInCount - s.CheckedOutCount
}
