package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
)

const attendanceSelect = `
SELECT a.id, a.event_id, COALESCE(a.member_id, '') AS member_id,
       COALESCE(a.guest_name, '') AS guest_name, a.is_guest,
       COALESCE(a.guest_purpose, '') AS guest_purpose,
       a.first_timer, COALESCE(a.decision_type, '') AS decision_type,
       COALESCE(m.gender, '') AS gender,
       COALESCE(m.region_id, '') AS region_id, COALESCE(r.name, '') AS region_name,
       COALESCE(m.college, '') AS college, COALESCE(m.course, '') AS course,
       COALESCE(m.year_of_study, 0) AS year_of_study,
       COALESCE((SELECT array_agg(f.id ORDER BY f.name) FROM family_membership fm JOIN family f ON f.id = fm.family_id AND f.is_active WHERE fm.member_id = m.id AND fm.is_active), '{}') AS family_ids,
       COALESCE((SELECT array_agg(f.name ORDER BY f.name) FROM family_membership fm JOIN family f ON f.id = fm.family_id AND f.is_active WHERE fm.member_id = m.id AND fm.is_active), '{}') AS family_names,
       COALESCE((SELECT array_agg(t.id ORDER BY t.name) FROM team_membership tm JOIN team t ON t.id = tm.team_id WHERE tm.member_id = m.id AND tm.is_active), '{}') AS team_ids,
       COALESCE((SELECT array_agg(t.name ORDER BY t.name) FROM team_membership tm JOIN team t ON t.id = tm.team_id WHERE tm.member_id = m.id AND tm.is_active), '{}') AS team_names,
       COALESCE((SELECT array_agg(mt.tag ORDER BY mt.tag) FROM member_tag mt WHERE mt.member_id = m.id), '{}') AS tags,
       a.created_at
FROM attendance a
LEFT JOIN member m ON m.id = a.member_id
LEFT JOIN region r ON r.id = m.region_id`

type attendanceRow struct {
	ID           string         `db:"id"`
	EventID      string         `db:"event_id"`
	MemberID     string         `db:"member_id"`
	GuestName    string         `db:"guest_name"`
	IsGuest      bool           `db:"is_guest"`
	GuestPurpose string         `db:"guest_purpose"`
	FirstTimer   bool           `db:"first_timer"`
	DecisionType string         `db:"decision_type"`
	Gender       string         `db:"gender"`
	RegionID     string         `db:"region_id"`
	RegionName   string         `db:"region_name"`
	College      string         `db:"college"`
	Course       string         `db:"course"`
	YearOfStudy  int            `db:"year_of_study"`
	FamilyIDs    pq.StringArray `db:"family_ids"`
	FamilyNames  pq.StringArray `db:"family_names"`
	TeamIDs      pq.StringArray `db:"team_ids"`
	TeamNames    pq.StringArray `db:"team_names"`
	Tags         pq.StringArray `db:"tags"`
	CreatedAt    null.Time      `db:"created_at"`
}

func (row attendanceRow) toAttendance() event.Attendance {
	return event.Attendance{
		ID:           row.ID,
		EventID:      row.EventID,
		MemberID:     row.MemberID,
		GuestName:    row.GuestName,
		IsGuest:      row.IsGuest,
		GuestPurpose: row.GuestPurpose,
		FirstTimer:   row.FirstTimer,
		DecisionType: row.DecisionType,
		Gender:       row.Gender,
		RegionID:     row.RegionID,
		RegionName:   row.RegionName,
		College:      row.College,
		Course:       row.Course,
		YearOfStudy:  row.YearOfStudy,
		FamilyIDs:    row.FamilyIDs,
		FamilyNames:  row.FamilyNames,
		TeamIDs:      row.TeamIDs,
		TeamNames:    row.TeamNames,
		Tags:         row.Tags,
		CreatedAt:    row.CreatedAt.Time,
	}
}

type eventRepository struct {
	db *sqlx.DB
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{db: db}
}

func (repo eventRepository) GetEvent(ctx context.Context, id string) (event.Event, error) {
	var evt event.Event
	err := repo.db.GetContext(ctx, &evt,
		`SELECT id, name, type, date, status FROM event WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return evt, event.ErrNotFound
		}
		return evt, errors.Wrap(err, "finding event")
	}
	return evt, nil
}

func (repo eventRepository) QueryEvents(ctx context.Context, filter event.QueryFilter) ([]event.Event, error) {
	query := `SELECT id, name, type, date, status FROM event WHERE true`
	var args []interface{}

	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	query += " ORDER BY date ASC"

	var events []event.Event
	if err := repo.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	return events, nil
}

func (repo eventRepository) PreviousEvents(ctx context.Context, eventType string, before time.Time, limit int) ([]event.Event, error) {
	var events []event.Event
	err := repo.db.SelectContext(ctx, &events,
		`SELECT id, name, type, date, status FROM event WHERE type = $1 AND date < $2 ORDER BY date DESC LIMIT $3`,
		eventType, before.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying previous events")
	}
	return events, nil
}

// memberFilterClause renders the population restriction as SQL over the joined
// member row. Only active memberships in active structures count towards a
// scoped filter. Guests carry no member attributes and only survive an
// unrestricted filter. The zero filter matches nobody.
func memberFilterClause(flt member.Filter, args *[]interface{}) string {
	switch {
	case flt.All:
		return " AND true"
	case flt.RegionID != "":
		*args = append(*args, flt.RegionID)
		return fmt.Sprintf(" AND m.region_id = $%d", len(*args))
	case len(flt.FamilyIDs) > 0:
		*args = append(*args, pq.Array(flt.FamilyIDs))
		return fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM family_membership fm JOIN family f ON f.id = fm.family_id AND f.is_active WHERE fm.member_id = m.id AND fm.is_active AND fm.family_id = ANY($%d))",
			len(*args))
	case len(flt.TeamIDs) > 0:
		*args = append(*args, pq.Array(flt.TeamIDs))
		return fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM team_membership tm WHERE tm.member_id = m.id AND tm.is_active AND tm.team_id = ANY($%d))",
			len(*args))
	default:
		return " AND false"
	}
}

func (repo eventRepository) QueryAttendance(ctx context.Context, filter event.AttendanceFilter) ([]event.Attendance, error) {
	query := attendanceSelect + " WHERE true"
	var args []interface{}

	switch {
	case filter.EventID != "":
		args = append(args, filter.EventID)
		query += fmt.Sprintf(" AND a.event_id = $%d", len(args))
	case len(filter.EventIDs) > 0:
		args = append(args, pq.Array(filter.EventIDs))
		query += fmt.Sprintf(" AND a.event_id = ANY($%d)", len(args))
	default:
		return nil, nil
	}
	query += memberFilterClause(filter.Members, &args)
	query += " ORDER BY a.created_at ASC"

	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	atts := make([]event.Attendance, 0, len(rows))
	for _, row := range rows {
		atts = append(atts, row.toAttendance())
	}
	return atts, nil
}

func (repo eventRepository) CountAttendance(ctx context.Context, eventIDs []string, members member.Filter) (map[string]int, error) {
	counts := make(map[string]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}

	args := []interface{}{pq.Array(eventIDs)}
	query := `
SELECT a.event_id, COUNT(*) AS total
FROM attendance a
LEFT JOIN member m ON m.id = a.member_id
WHERE a.event_id = ANY($1)` + memberFilterClause(members, &args) + `
GROUP BY a.event_id`

	rows, err := repo.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "counting attendance")
	}
	defer rows.Close()

	for rows.Next() {
		var eventID string
		var total int
		if err = rows.Scan(&eventID, &total); err != nil {
			return nil, errors.Wrap(err, "scanning attendance count")
		}
		counts[eventID] = total
	}
	return counts, errors.Wrap(rows.Err(), "counting attendance")
}
