package member

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/kanisa/core"
)

// Base roles. Leadership (fellowship manager, regional head, family head,
// team leader) is derived from headship relations, not stored on the member.
const (
	RoleManager = "manager"
	RoleMember  = "member"
)

// Well-known tags.
const (
	TagAlumni = "alumni"
)

type (
	Member struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		IsActive     *bool     `json:"is_active"`
		Role         string    `json:"role"`
		Gender       string    `json:"gender,omitempty"`
		RegionID     string    `json:"region_id,omitempty"`
		RegionName   string    `json:"region_name,omitempty"`
		College      string    `json:"college,omitempty"`
		Course       string    `json:"course,omitempty"`
		YearOfStudy  int       `json:"year_of_study,omitempty"`
		Tags         []string  `json:"tags,omitempty"`
		FirstTimer   bool      `json:"first_timer"` // pending first attendance
		PasswordHash []byte    `json:"-"`
		CreatedAt    time.Time `json:"created_at"` // UTC
		UpdatedAt    time.Time `json:"updated_at"` // UTC
		LastLogin    time.Time `json:"last_login"` // UTC
	}

	Region struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		HeadID string `json:"head_id,omitempty"`
	}

	Family struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		HeadID   string `json:"head_id,omitempty"`
		IsActive bool   `json:"is_active"`
	}

	Team struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		LeaderID string `json:"leader_id,omitempty"`
	}

	// Headships are all the headship relations a member structurally holds.
	// A member could hold several at once; scope resolution applies a fixed
	// precedence instead of assuming exclusivity.
	Headships struct {
		Region   *Region
		Families []Family // owned families, inactive ones included
		Teams    []Team
	}
)

func (m *Member) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return nil
}

func (m *Member) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(pwd))
}

func (m *Member) SetActive(active bool) { m.IsActive = &active }

func (m *Member) IsManager() bool { return m.Role == RoleManager }

func (m *Member) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// NewMember contains information needed to create a new Member.
type NewMember struct {
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=4,alphanum"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,baserole"`
	Gender          string `json:"gender" validate:"omitempty,oneof=F M"`
	RegionID        string `json:"region_id"`
}

func (nm *NewMember) Validate(ctx context.Context, svc Service) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Username = core.CleanString(nm.Username, true /* lower */)
	nm.Email = core.CleanString(nm.Email, true /* lower */)

	if err := core.Validate.Struct(nm); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nm.Username, nm.Email)
}

// QueryFilter narrows member list queries. Fields are ANDed;
// Search does a case-insensitive match on Name, Username or Email.
type QueryFilter struct {
	Search   string `query:"search"`
	RegionID string `query:"region_id"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.RegionID == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single member. The first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string
}
