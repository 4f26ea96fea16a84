package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kanisa/core"
	"github.com/trezcool/kanisa/core/member"
)

type memberRepository struct {
	db *DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *DB) member.Repository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) query() []member.Member {
	members := make([]member.Member, 0, len(repo.db.member.table))
	for _, m := range repo.db.member.table {
		members = append(members, *m)
	}
	return members
}

func (repo *memberRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedMembers ...member.Member) error {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	excluded := make(map[string]struct{}, len(excludedMembers))
	for _, m := range excludedMembers {
		excluded[m.ID] = struct{}{}
	}

	for _, mbr := range repo.query() {
		if _, ok := excluded[mbr.ID]; ok {
			continue
		}
		if (username != "" && mbr.Username == username) || (email != "" && mbr.Email == email) {
			return member.ErrMemberExists
		}
	}
	return nil
}

func (repo *memberRepository) CreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	if mbr.ID == "" {
		mbr.ID = uuid.New().String()
	}
	repo.db.member.table[mbr.ID] = &mbr
	return repo.resolve(mbr), nil
}

func (repo *memberRepository) GetMember(ctx context.Context, filter member.GetFilter) (member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	if filter.ID != "" {
		if mbr, ok := repo.db.member.table[filter.ID]; ok {
			return repo.resolve(*mbr), nil
		}
		return member.Member{}, member.ErrNotFound
	}

	for _, mbr := range repo.query() {
		switch {
		case filter.Username != "":
			if mbr.Username == filter.Username {
				return repo.resolve(mbr), nil
			}
		case filter.Email != "":
			if mbr.Email == filter.Email {
				return repo.resolve(mbr), nil
			}
		case filter.UsernameOrEmail != nil:
			for _, uname := range filter.UsernameOrEmail {
				if uname != "" && (mbr.Username == uname || mbr.Email == uname) {
					return repo.resolve(mbr), nil
				}
			}
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) QueryMembers(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering) ([]member.Member, error) {
	repo.db.member.RLock()
	defer repo.db.member.RUnlock()

	members := repo.query()

	if filter != nil {
		if filter.Search != "" {
			var filtered []member.Member
			search := strings.ToLower(filter.Search)
			for _, m := range members {
				if strings.Contains(strings.ToLower(m.Name), search) ||
					strings.Contains(strings.ToLower(m.Username), search) ||
					strings.Contains(strings.ToLower(m.Email), search) {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if members != nil && filter.RegionID != "" {
			var filtered []member.Member
			for _, m := range members {
				if m.RegionID == filter.RegionID {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
		if members != nil && filter.IsActive != nil {
			var filtered []member.Member
			for _, m := range members {
				if m.IsActive != nil && *m.IsActive == *filter.IsActive {
					filtered = append(filtered, m)
				}
			}
			members = filtered
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	for i := range members {
		members[i] = repo.resolve(members[i])
	}
	return members, nil
}

func (repo *memberRepository) UpdateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	repo.db.member.Lock()
	defer repo.db.member.Unlock()

	orig, ok := repo.db.member.table[mbr.ID]
	if !ok {
		return member.Member{}, member.ErrNotFound
	}
	// only save set fields
	if mbr.PasswordHash != nil {
		orig.PasswordHash = mbr.PasswordHash
	}
	if mbr.IsActive != nil {
		orig.IsActive = mbr.IsActive
	}
	if mbr.Role != "" {
		orig.Role = mbr.Role
	}
	orig.Name = mbr.Name
	orig.Username = mbr.Username
	orig.Email = mbr.Email
	orig.RegionID = mbr.RegionID
	orig.UpdatedAt = mbr.UpdatedAt
	if !mbr.LastLogin.IsZero() {
		orig.LastLogin = mbr.LastLogin
	}

	repo.db.member.table[mbr.ID] = orig
	return repo.resolve(*orig), nil
}

func (repo *memberRepository) UpdateOrCreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	if mbr.ID == "" {
		return repo.CreateMember(ctx, mbr)
	}
	if _, err := repo.GetMember(ctx, member.GetFilter{ID: mbr.ID}); err == member.ErrNotFound {
		return repo.CreateMember(ctx, mbr)
	}
	return repo.UpdateMember(ctx, mbr)
}

func (repo *memberRepository) GetHeadships(ctx context.Context, memberID string) (member.Headships, error) {
	repo.db.structure.RLock()
	defer repo.db.structure.RUnlock()

	var hs member.Headships
	for _, reg := range repo.db.structure.regions {
		if reg.HeadID == memberID {
			r := *reg
			hs.Region = &r
			break
		}
	}
	for _, fam := range repo.db.structure.families {
		if fam.HeadID == memberID {
			hs.Families = append(hs.Families, *fam)
		}
	}
	for _, team := range repo.db.structure.teams {
		if team.LeaderID == memberID {
			hs.Teams = append(hs.Teams, *team)
		}
	}
	sort.Slice(hs.Families, func(i, j int) bool { return hs.Families[i].Name < hs.Families[j].Name })
	sort.Slice(hs.Teams, func(i, j int) bool { return hs.Teams[i].Name < hs.Teams[j].Name })
	return hs, nil
}

// resolve fills the denormalized region name from the structure tables.
func (repo *memberRepository) resolve(mbr member.Member) member.Member {
	if mbr.RegionID != "" {
		if reg, ok := repo.db.structure.regions[mbr.RegionID]; ok {
			mbr.RegionName = reg.Name
		}
	}
	return mbr
}
