package member

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/kanisa/core"
)

var (
	// errors
	ErrNotFound     = errors.New("member not found")
	ErrMemberExists = errors.New("a member with this username or email already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedMembers ...Member) error
		CreateMember(ctx context.Context, mbr Member) (Member, error)
		GetMember(ctx context.Context, filter GetFilter) (Member, error)
		// QueryMembers applies AND operation on available QueryFilter fields.
		QueryMembers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error)
		UpdateMember(ctx context.Context, mbr Member) (Member, error)
		UpdateOrCreateMember(ctx context.Context, mbr Member) (Member, error)
		// GetHeadships returns every headship relation the member holds,
		// inactive family headships included.
		GetHeadships(ctx context.Context, memberID string) (Headships, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return Service{repo: repo}
}

func (svc Service) CheckUniqueness(ctx context.Context, uname, email string, exclMembers ...Member) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclMembers...); err != nil {
		if err == ErrMemberExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc Service) Create(ctx context.Context, nm NewMember) (Member, error) {
	now := time.Now().UTC()
	mbr := Member{
		Name:      nm.Name,
		Username:  nm.Username,
		Email:     nm.Email,
		Role:      nm.Role,
		Gender:    nm.Gender,
		RegionID:  nm.RegionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mbr.Role == "" {
		mbr.Role = RoleMember
	}
	mbr.SetActive(true)
	if err := mbr.SetPassword(nm.Password); err != nil {
		return Member{}, err
	}
	return svc.repo.CreateMember(ctx, mbr)
}

func (svc Service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{ID: id})
}

func (svc Service) GetByUsernameOrEmail(ctx context.Context, uname string) (Member, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetMember(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

func (svc Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]Member, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryMembers(ctx, filter, ordering)
}

func (svc Service) SetLastLogin(ctx context.Context, mbr Member) (Member, error) {
	mbr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateMember(ctx, mbr)
}
