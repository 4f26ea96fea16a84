package report

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kanisa/core"
)

// Breakdown keys in Result.
const (
	NoFamilyBucket = "No Family"
	NoTeamBucket   = "No Team"

	MemberTypeStudent = "Makerere Student"
	MemberTypeAlumni  = "Alumni"
	MemberTypeOther   = "Other"
)

type (
	// Breakdown is a frequency map from a categorical dimension's values to
	// attendee counts. An empty breakdown is a valid result, not an error.
	Breakdown map[string]int

	Breakdowns struct {
		Gender     Breakdown `json:"gender"`
		Region     Breakdown `json:"region"`
		College    Breakdown `json:"college"`
		Course     Breakdown `json:"course"`
		Year       Breakdown `json:"year"`
		Family     Breakdown `json:"family"`
		Team       Breakdown `json:"team"`
		Tag        Breakdown `json:"tag"`
		Decision   Breakdown `json:"decision"`
		MemberType Breakdown `json:"member_type"`
	}

	// Result is a computed attendance report, restricted to the requesting
	// scope's population.
	Result struct {
		EventID   string    `json:"event_id,omitempty"`
		EventName string    `json:"event_name,omitempty"`
		EventType string    `json:"event_type,omitempty"`
		EventDate time.Time `json:"event_date,omitempty"`

		Scope       string `json:"scope"`       // scope display label
		Fingerprint string `json:"fingerprint"` // stable cache key for (request, scope)

		TotalAttendance int `json:"total_attendance"`
		MemberCount     int `json:"member_count"`
		GuestCount      int `json:"guest_count"`
		FirstTimerCount int `json:"first_timer_count"`

		Breakdowns

		Trend *Trend `json:"trend,omitempty"` // single-event reports only
	}

	// TrendPoint is one comparable event in a trend series.
	TrendPoint struct {
		EventID    string    `json:"event_id"`
		Label      string    `json:"label"`
		Date       time.Time `json:"date"`
		Attendance int       `json:"attendance"`
	}

	// Trend compares an event against the chronologically previous event of
	// the same type. PercentChange is null when the previous event had no
	// attendance; Difference is always set.
	Trend struct {
		PreviousEventID    string       `json:"previous_event_id,omitempty"`
		PreviousEventName  string       `json:"previous_event_name,omitempty"`
		PreviousAttendance int          `json:"previous_attendance"`
		Difference         int          `json:"difference"`
		PercentChange      null.Int     `json:"percent_change"`
		Series             []TrendPoint `json:"series"` // oldest first
	}

	// RangeResult aggregates attendance over every event in a date range.
	RangeResult struct {
		Result

		TotalEvents       int `json:"total_events"`
		AverageAttendance int `json:"average_attendance"`
		DistinctMembers   int `json:"distinct_members"`
	}

	// RangeQuery requests a range report.
	RangeQuery struct {
		From     time.Time `json:"from" query:"from" validate:"required"`
		To       time.Time `json:"to" query:"to" validate:"required"`
		Type     string    `json:"type,omitempty" query:"type"`
		RegionID string    `json:"region_id,omitempty" query:"region_id"`
	}

	// Publication gates a report's visibility to non-owning leadership roles.
	// At most one per event; created lazily on first publish, retained on
	// unpublish as an audit of the most recent action.
	Publication struct {
		EventID     string      `json:"event_id"`
		IsPublished bool        `json:"is_published"`
		PublishedAt null.Time   `json:"published_at"`
		PublisherID null.String `json:"publisher_id"`
		Publisher   string      `json:"publisher,omitempty"` // resolved at read time
	}
)

var (
	errEndBeforeStart = core.FieldError{Field: "to", Error: "end date must not precede start date"}
	errFutureRange    = core.FieldError{Field: "from", Error: "range must not start in the future"}
	errUpcomingEvent  = core.FieldError{Field: "event", Error: "cannot publish a report for an upcoming event"}
)

func (q *RangeQuery) Validate() error {
	q.Type = core.CleanString(q.Type)
	if err := core.Validate.Struct(q); err != nil {
		return err
	}
	if q.To.Before(q.From) {
		return core.NewValidationError(nil, errEndBeforeStart)
	}
	if q.From.After(time.Now()) {
		return core.NewValidationError(nil, errFutureRange)
	}
	return nil
}

func (b Breakdown) add(key string) {
	b[key]++
}

func newBreakdowns() Breakdowns {
	return Breakdowns{
		Gender:     make(Breakdown),
		Region:     make(Breakdown),
		College:    make(Breakdown),
		Course:     make(Breakdown),
		Year:       make(Breakdown),
		Family:     make(Breakdown),
		Team:       make(Breakdown),
		Tag:        make(Breakdown),
		Decision:   make(Breakdown),
		MemberType: make(Breakdown),
	}
}

// fingerprint identifies a (request, scope) pair; identical inputs always
// produce identical reports, so callers may cache by it.
func fingerprint(requestKey string, scope Scope) string {
	sum := sha1.Sum([]byte(requestKey + "|" + scope.descriptor()))
	return fmt.Sprintf("%x", sum)
}

func joinSorted(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
