package report

import (
	"fmt"
	"strings"

	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
)

// tally computes the base counts and every categorical breakdown over the
// given (already scope-restricted) attendance records.
//
// Dimensions with no value for an attendee leave that attendee out of the
// breakdown rather than counting them under a synthetic key; family and team
// are the exception, where members with no active membership land in an
// explicit "No Family"/"No Team" bucket. Family, team and member-type cover
// members only since guests carry no memberships.
func tally(atts []event.Attendance) Result {
	res := Result{Breakdowns: newBreakdowns()}

	for _, at := range atts {
		res.TotalAttendance++
		if at.IsGuest {
			res.GuestCount++
		} else {
			res.MemberCount++
		}
		if at.FirstTimer {
			res.FirstTimerCount++
		}

		if at.Gender != "" {
			res.Gender.add(at.Gender)
		}
		if at.RegionName != "" {
			res.Region.add(at.RegionName)
		}
		if at.College != "" {
			res.College.add(at.College)
		}
		if at.Course != "" {
			res.Course.add(at.Course)
		}
		if at.YearOfStudy > 0 {
			res.Year.add(fmt.Sprintf("Year %d", at.YearOfStudy))
		}
		for _, tag := range at.Tags {
			res.Tag.add(tag)
		}
		if at.DecisionType != "" {
			res.Decision.add(at.DecisionType)
		}

		if at.IsGuest {
			continue
		}

		if len(at.FamilyNames) == 0 {
			res.Family.add(NoFamilyBucket)
		} else {
			for _, name := range at.FamilyNames {
				res.Family.add(name)
			}
		}
		if len(at.TeamNames) == 0 {
			res.Team.add(NoTeamBucket)
		} else {
			for _, name := range at.TeamNames {
				res.Team.add(name)
			}
		}
		res.MemberType.add(memberType(at))
	}

	return res
}

// memberType derives the "Makerere Student / Alumni / Other" classification
// from a member's course association and tags.
func memberType(at event.Attendance) string {
	if at.Course != "" {
		return MemberTypeStudent
	}
	for _, tag := range at.Tags {
		if strings.EqualFold(tag, member.TagAlumni) {
			return MemberTypeAlumni
		}
	}
	return MemberTypeOther
}

// distinctMembers counts members appearing at least once, deduplicated by
// member identity. Guests are not members and never counted here.
func distinctMembers(atts []event.Attendance) int {
	seen := make(map[string]struct{})
	for _, at := range atts {
		if at.MemberID == "" {
			continue
		}
		seen[at.MemberID] = struct{}{}
	}
	return len(seen)
}
