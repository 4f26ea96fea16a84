package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
)

type eventRepository struct {
	db        *eventTable
	structure *structureTable
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{db: db.event, structure: db.structure}
}

func (repo *eventRepository) query() []event.Event {
	events := make([]event.Event, 0, len(repo.db.table))
	for _, evt := range repo.db.table {
		events = append(events, *evt)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events
}

func (repo *eventRepository) GetEvent(ctx context.Context, id string) (event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if evt, ok := repo.db.table[id]; ok {
		return *evt, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter event.QueryFilter) ([]event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var events []event.Event
	for _, evt := range repo.query() {
		if filter.Type != "" && evt.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && evt.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && evt.Date.After(filter.To) {
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

func (repo *eventRepository) PreviousEvents(ctx context.Context, eventType string, before time.Time, limit int) ([]event.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var events []event.Event
	for _, evt := range repo.query() {
		if evt.Type == eventType && evt.Date.Before(before) {
			events = append(events, evt)
		}
	}
	// most recent first
	sort.Slice(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (repo *eventRepository) QueryAttendance(ctx context.Context, filter event.AttendanceFilter) ([]event.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]struct{}, len(filter.EventIDs)+1)
	if filter.EventID != "" {
		wanted[filter.EventID] = struct{}{}
	}
	for _, id := range filter.EventIDs {
		wanted[id] = struct{}{}
	}

	var atts []event.Attendance
	for _, at := range repo.db.attendance {
		if _, ok := wanted[at.EventID]; !ok {
			continue
		}
		resolved := repo.resolve(*at)
		if !filter.Members.Match(resolved.RegionID, resolved.FamilyIDs, resolved.TeamIDs) {
			continue
		}
		atts = append(atts, resolved)
	}
	return atts, nil
}

// resolve derives a member's family and team attributes from the membership
// tables: only active memberships count, and families must themselves be
// active. Guests have no memberships to resolve.
func (repo *eventRepository) resolve(at event.Attendance) event.Attendance {
	if at.IsGuest || at.MemberID == "" {
		return at
	}
	repo.structure.RLock()
	defer repo.structure.RUnlock()

	at.FamilyIDs, at.FamilyNames = nil, nil
	for _, ms := range repo.structure.familyMembers[at.MemberID] {
		fam, ok := repo.structure.families[ms.structID]
		if !ok || !ms.isActive || !fam.IsActive {
			continue
		}
		at.FamilyIDs = append(at.FamilyIDs, fam.ID)
		at.FamilyNames = append(at.FamilyNames, fam.Name)
	}
	sortByName(at.FamilyNames, at.FamilyIDs)

	at.TeamIDs, at.TeamNames = nil, nil
	for _, ms := range repo.structure.teamMembers[at.MemberID] {
		team, ok := repo.structure.teams[ms.structID]
		if !ok || !ms.isActive {
			continue
		}
		at.TeamIDs = append(at.TeamIDs, team.ID)
		at.TeamNames = append(at.TeamNames, team.Name)
	}
	sortByName(at.TeamNames, at.TeamIDs)

	return at
}

// sortByName orders ids by their parallel names slice.
func sortByName(names, ids []string) {
	sort.Sort(&byName{names: names, ids: ids})
}

type byName struct {
	names, ids []string
}

func (s *byName) Len() int           { return len(s.names) }
func (s *byName) Less(i, j int) bool { return s.names[i] < s.names[j] }
func (s *byName) Swap(i, j int) {
	s.names[i], s.names[j] = s.names[j], s.names[i]
	s.ids[i], s.ids[j] = s.ids[j], s.ids[i]
}

func (repo *eventRepository) CountAttendance(ctx context.Context, eventIDs []string, members member.Filter) (map[string]int, error) {
	atts, err := repo.QueryAttendance(ctx, event.AttendanceFilter{EventIDs: eventIDs, Members: members})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(eventIDs))
	for _, at := range atts {
		counts[at.EventID]++
	}
	return counts, nil
}
