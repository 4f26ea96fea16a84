package event

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/kanisa/core/member"
)

var (
	// errors
	ErrNotFound = errors.New("event not found")
)

type Repository interface {
	GetEvent(ctx context.Context, id string) (Event, error)
	// QueryEvents returns events matching the filter, ordered by date ascending.
	QueryEvents(ctx context.Context, filter QueryFilter) ([]Event, error)
	// PreviousEvents returns up to limit events of the given type strictly
	// before the given date, most recent first.
	PreviousEvents(ctx context.Context, eventType string, before time.Time, limit int) ([]Event, error)
	// QueryAttendance returns the attendance records matching the filter with
	// member attributes resolved, restricted to the filter's member population.
	QueryAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error)
	// CountAttendance returns per-event attendance totals for the given events
	// under the same population restriction.
	CountAttendance(ctx context.Context, eventIDs []string, members member.Filter) (map[string]int, error)
}
