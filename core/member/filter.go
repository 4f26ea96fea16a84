package member

// Filter restricts a member-centric query to the population a leadership
// scope is entitled to see. The zero value matches nobody; a query filter is
// only ever produced from an authorized scope.
type Filter struct {
	// All matches the entire member population (fellowship manager).
	All bool
	// RegionID matches members of a single region (regional head).
	RegionID string
	// FamilyIDs matches members with an active membership in any of these
	// families (family head).
	FamilyIDs []string
	// TeamIDs matches members with an active membership in any of these
	// teams (team leader).
	TeamIDs []string
}

// Match reports whether a member with the given attributes falls inside the
// filter. familyIDs and teamIDs are the member's active memberships.
func (f Filter) Match(regionID string, familyIDs, teamIDs []string) bool {
	switch {
	case f.All:
		return true
	case f.RegionID != "":
		return regionID == f.RegionID
	case len(f.FamilyIDs) > 0:
		return intersects(f.FamilyIDs, familyIDs)
	case len(f.TeamIDs) > 0:
		return intersects(f.TeamIDs, teamIDs)
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
