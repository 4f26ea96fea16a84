package event

import (
	"time"

	"github.com/trezcool/kanisa/core/member"
)

// Event statuses.
const (
	StatusUpcoming = "upcoming"
	StatusPast     = "past"
)

type (
	// Event is a single attendance-bearing occurrence. Type groups comparable
	// events for trend analysis. Past events are immutable.
	Event struct {
		ID     string    `json:"id"`
		Name   string    `json:"name"`
		Type   string    `json:"type"`
		Date   time.Time `json:"date"` // UTC
		Status string    `json:"status"`
	}

	// Attendance links a member or a guest to an event. Member attributes are
	// denormalized at read time for aggregation; the record itself is a
	// read-only projection, never mutated by reporting.
	Attendance struct {
		ID           string    `json:"id"`
		EventID      string    `json:"event_id"`
		MemberID     string    `json:"member_id,omitempty"` // empty for guests
		GuestName    string    `json:"guest_name,omitempty"`
		IsGuest      bool      `json:"is_guest"`
		GuestPurpose string    `json:"guest_purpose,omitempty"`
		FirstTimer   bool      `json:"first_timer"`
		DecisionType string    `json:"decision_type,omitempty"` // spiritual decision, if any
		Gender       string    `json:"gender,omitempty"`
		RegionID     string    `json:"region_id,omitempty"`
		RegionName   string    `json:"region_name,omitempty"`
		College      string    `json:"college,omitempty"`
		Course       string    `json:"course,omitempty"`
		YearOfStudy  int       `json:"year_of_study,omitempty"`
		FamilyIDs    []string  `json:"family_ids,omitempty"` // active memberships only
		FamilyNames  []string  `json:"family_names,omitempty"`
		TeamIDs      []string  `json:"team_ids,omitempty"`
		TeamNames    []string  `json:"team_names,omitempty"`
		Tags         []string  `json:"tags,omitempty"`
		CreatedAt    time.Time `json:"created_at"` // UTC
	}

	// QueryFilter narrows event queries. Zero fields are ignored.
	QueryFilter struct {
		Type string
		From time.Time
		To   time.Time
	}

	// AttendanceFilter selects attendance records for aggregation. Exactly one
	// of EventID/EventIDs is set; Members is the scope-derived population
	// restriction and must always be applied.
	AttendanceFilter struct {
		EventID  string
		EventIDs []string
		Members  member.Filter
	}
)

func (e Event) IsPast(now time.Time) bool {
	return e.Date.Before(now)
}
