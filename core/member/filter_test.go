package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Match(t *testing.T) {
	tests := []struct {
		name      string
		filter    Filter
		regionID  string
		familyIDs []string
		teamIDs   []string
		want      bool
	}{
		{name: "zero filter matches nobody", regionID: "reg1", familyIDs: []string{"fam1"}, teamIDs: []string{"t1"}},
		{name: "all matches members", filter: Filter{All: true}, regionID: "reg1", want: true},
		{name: "all matches guests", filter: Filter{All: true}, want: true},
		{name: "region match", filter: Filter{RegionID: "reg1"}, regionID: "reg1", want: true},
		{name: "region mismatch", filter: Filter{RegionID: "reg1"}, regionID: "reg2"},
		{name: "region filter excludes guests", filter: Filter{RegionID: "reg1"}},
		{name: "family match", filter: Filter{FamilyIDs: []string{"fam1", "fam2"}}, familyIDs: []string{"fam2"}, want: true},
		{name: "family mismatch", filter: Filter{FamilyIDs: []string{"fam1"}}, familyIDs: []string{"fam3"}},
		{name: "family filter excludes members with no membership", filter: Filter{FamilyIDs: []string{"fam1"}}},
		{name: "team match", filter: Filter{TeamIDs: []string{"t1", "t2"}}, teamIDs: []string{"t2", "t3"}, want: true},
		{name: "team mismatch", filter: Filter{TeamIDs: []string{"t1"}}, teamIDs: []string{"t9"}},
		{name: "team filter excludes guests", filter: Filter{TeamIDs: []string{"t1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Match(tt.regionID, tt.familyIDs, tt.teamIDs)
			assert.Equal(t, tt.want, got)
		})
	}
}
