package report

import (
	"fmt"

	"github.com/trezcool/kanisa/core"
	"github.com/trezcool/kanisa/core/member"
)

// Leadership roles, in decreasing breadth of visibility. A scope carries
// exactly one of these, or the member's base role when no headship applies.
const (
	RoleFellowshipManager = "FELLOWSHIP_MANAGER"
	RoleRegionalHead      = "REGIONAL_HEAD"
	RoleFamilyHead        = "FAMILY_HEAD"
	RoleTeamLeader        = "TEAM_LEADER"
)

var (
	// errors
	ErrNoReportScope     = core.NewPermissionError("insufficient permissions to view reports")
	ErrReportUnavailable = core.NewPermissionError("report not yet available")
	ErrManagerOnly       = core.NewPermissionError("permission denied")
)

// Scope is the data-visibility boundary computed for a viewer. It is derived
// from the viewer's headship relations on every request and never persisted.
type Scope struct {
	Role        string   `json:"role"`
	RegionID    string   `json:"region_id,omitempty"`
	RegionName  string   `json:"region_name,omitempty"`
	FamilyIDs   []string `json:"family_ids,omitempty"`
	FamilyNames []string `json:"family_names,omitempty"`
	TeamIDs     []string `json:"team_ids,omitempty"`
	TeamNames   []string `json:"team_names,omitempty"`
}

// resolveScope derives the viewer's scope from their member record and
// headship relations. Precedence is fixed: fellowship manager, then regional
// head, then family head (active families only), then team leader. A tier
// with nothing left to own falls through to the next one; a member with no
// applicable tier gets their base role and no scope.
func resolveScope(mbr member.Member, hs member.Headships) Scope {
	if mbr.IsManager() {
		return Scope{Role: RoleFellowshipManager}
	}

	if hs.Region != nil {
		return Scope{
			Role:       RoleRegionalHead,
			RegionID:   hs.Region.ID,
			RegionName: hs.Region.Name,
		}
	}

	var famIDs, famNames []string
	for _, fam := range hs.Families {
		if !fam.IsActive {
			continue // inactive headships are excluded entirely
		}
		famIDs = append(famIDs, fam.ID)
		famNames = append(famNames, fam.Name)
	}
	if len(famIDs) > 0 {
		return Scope{Role: RoleFamilyHead, FamilyIDs: famIDs, FamilyNames: famNames}
	}

	if len(hs.Teams) > 0 {
		teamIDs := make([]string, 0, len(hs.Teams))
		teamNames := make([]string, 0, len(hs.Teams))
		for _, tm := range hs.Teams {
			teamIDs = append(teamIDs, tm.ID)
			teamNames = append(teamNames, tm.Name)
		}
		return Scope{Role: RoleTeamLeader, TeamIDs: teamIDs, TeamNames: teamNames}
	}

	return Scope{Role: mbr.Role}
}

// BuildMemberFilter translates a scope into the query predicate restricting
// every member-centric report query. It is the single authorization choke
// point: call it exactly once per report request and apply its result as the
// sole access filter. Non-leading scopes are refused.
func BuildMemberFilter(scope Scope) (member.Filter, error) {
	switch scope.Role {
	case RoleFellowshipManager:
		return member.Filter{All: true}, nil
	case RoleRegionalHead:
		return member.Filter{RegionID: scope.RegionID}, nil
	case RoleFamilyHead:
		return member.Filter{FamilyIDs: scope.FamilyIDs}, nil
	case RoleTeamLeader:
		return member.Filter{TeamIDs: scope.TeamIDs}, nil
	}
	return member.Filter{}, ErrNoReportScope
}

// IsLeader reports whether the scope authorizes viewing any reports.
func IsLeader(scope Scope) bool {
	switch scope.Role {
	case RoleFellowshipManager, RoleRegionalHead, RoleFamilyHead, RoleTeamLeader:
		return true
	}
	return false
}

// DescribeScope renders a short scope label for UI display.
func DescribeScope(scope Scope) string {
	switch scope.Role {
	case RoleFellowshipManager:
		return "Entire Fellowship"
	case RoleRegionalHead:
		return scope.RegionName
	case RoleFamilyHead:
		if len(scope.FamilyNames) == 1 {
			return scope.FamilyNames[0]
		}
		return fmt.Sprintf("%d Families", len(scope.FamilyNames))
	case RoleTeamLeader:
		if len(scope.TeamNames) == 1 {
			return scope.TeamNames[0]
		}
		return fmt.Sprintf("%d Teams", len(scope.TeamNames))
	}
	return "No Scope"
}

// descriptor is a compact canonical form of the scope, used in report
// fingerprints.
func (s Scope) descriptor() string {
	switch s.Role {
	case RoleFellowshipManager:
		return "all"
	case RoleRegionalHead:
		return "region:" + s.RegionID
	case RoleFamilyHead:
		return "families:" + joinSorted(s.FamilyIDs)
	case RoleTeamLeader:
		return "teams:" + joinSorted(s.TeamIDs)
	}
	return "none"
}
