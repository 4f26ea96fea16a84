package dummydb

import (
	"sync"

	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
	"github.com/trezcool/kanisa/core/report"
)

type (
	DB struct {
		member      *memberTable
		structure   *structureTable
		event       *eventTable
		publication *publicationTable
	}

	memberTable struct {
		sync.RWMutex
		table map[string]*member.Member
	}

	// membership ties a member to a family or team; deactivated rows are
	// retained but never count towards scope or aggregation.
	membership struct {
		structID string
		isActive bool
	}

	// structureTable holds the fellowship structure: regions, families, teams
	// and their memberships (member id -> memberships).
	structureTable struct {
		sync.RWMutex
		regions       map[string]*member.Region
		families      map[string]*member.Family
		teams         map[string]*member.Team
		familyMembers map[string][]membership
		teamMembers   map[string][]membership
	}

	eventTable struct {
		sync.RWMutex
		table      map[string]*event.Event
		attendance []*event.Attendance
	}

	publicationTable struct {
		sync.RWMutex
		table map[string]*report.Publication
	}
)

func Open() (*DB, error) {
	db := &DB{
		member: &memberTable{table: make(map[string]*member.Member)},
		structure: &structureTable{
			regions:       make(map[string]*member.Region),
			families:      make(map[string]*member.Family),
			teams:         make(map[string]*member.Team),
			familyMembers: make(map[string][]membership),
			teamMembers:   make(map[string][]membership),
		},
		event:       &eventTable{table: make(map[string]*event.Event)},
		publication: &publicationTable{table: make(map[string]*report.Publication)},
	}
	return db, nil
}

// seed helpers for tests

func (db *DB) AddRegion(reg member.Region) {
	db.structure.Lock()
	defer db.structure.Unlock()
	db.structure.regions[reg.ID] = &reg
}

func (db *DB) AddFamily(fam member.Family) {
	db.structure.Lock()
	defer db.structure.Unlock()
	db.structure.families[fam.ID] = &fam
}

func (db *DB) AddTeam(team member.Team) {
	db.structure.Lock()
	defer db.structure.Unlock()
	db.structure.teams[team.ID] = &team
}

func (db *DB) AddFamilyMembership(memberID, familyID string, isActive bool) {
	db.structure.Lock()
	defer db.structure.Unlock()
	db.structure.familyMembers[memberID] = append(db.structure.familyMembers[memberID], membership{structID: familyID, isActive: isActive})
}

func (db *DB) AddTeamMembership(memberID, teamID string, isActive bool) {
	db.structure.Lock()
	defer db.structure.Unlock()
	db.structure.teamMembers[memberID] = append(db.structure.teamMembers[memberID], membership{structID: teamID, isActive: isActive})
}

func (db *DB) AddEvent(evt event.Event) {
	db.event.Lock()
	defer db.event.Unlock()
	db.event.table[evt.ID] = &evt
}

// AddAttendance stores an attendance record. Family and team attributes are
// derived from the membership tables at query time, never from the record.
func (db *DB) AddAttendance(at event.Attendance) {
	db.event.Lock()
	defer db.event.Unlock()
	db.event.attendance = append(db.event.attendance, &at)
}
