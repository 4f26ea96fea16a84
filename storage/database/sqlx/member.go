package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kanisa/core"
	"github.com/trezcool/kanisa/core/member"
)

const memberSelect = `
SELECT m.id, m.name, m.username, m.email, m.is_active, m.role, m.gender,
       m.region_id, COALESCE(r.name, '') AS region_name,
       m.college, m.course, m.year_of_study, m.first_timer, m.password_hash,
       m.created_at, m.updated_at, m.last_login,
       COALESCE((SELECT array_agg(mt.tag ORDER BY mt.tag) FROM member_tag mt WHERE mt.member_id = m.id), '{}') AS tags
FROM member m
LEFT JOIN region r ON r.id = m.region_id`

type memberRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Role         string         `db:"role"`
	Gender       null.String    `db:"gender"`
	RegionID     null.String    `db:"region_id"`
	RegionName   string         `db:"region_name"`
	College      null.String    `db:"college"`
	Course       null.String    `db:"course"`
	YearOfStudy  null.Int       `db:"year_of_study"`
	FirstTimer   bool           `db:"first_timer"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
	Tags         pq.StringArray `db:"tags"`
}

func (row memberRow) toMember() member.Member {
	return member.Member{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive.Ptr(),
		Role:         row.Role,
		Gender:       row.Gender.String,
		RegionID:     row.RegionID.String,
		RegionName:   row.RegionName,
		College:      row.College.String,
		Course:       row.Course.String,
		YearOfStudy:  int(row.YearOfStudy.Int),
		Tags:         row.Tags,
		FirstTimer:   row.FirstTimer,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to member.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return member.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo memberRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedMembers ...member.Member) error {
	query := `SELECT EXISTS (SELECT 1 FROM member WHERE (username = $1 OR email = $2)`
	args := []interface{}{username, email}
	if len(excludedMembers) > 0 {
		ids := make([]string, 0, len(excludedMembers))
		for _, m := range excludedMembers {
			ids = append(ids, m.ID)
		}
		args = append(args, pq.Array(ids))
		query += fmt.Sprintf(" AND NOT (id = ANY($%d))", len(args))
	}
	query += ")"

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, query, args...); err != nil {
		return errors.Wrap(err, "checking member uniqueness")
	}
	if exists {
		return member.ErrMemberExists
	}
	return nil
}

func (repo memberRepository) CreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	mbr.ID = uuid.New().String()

	query := `
INSERT INTO member (id, name, username, email, is_active, role, gender, region_id,
                    college, course, year_of_study, first_timer, password_hash,
                    created_at, updated_at, last_login)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := repo.db.ExecContext(ctx, query,
		mbr.ID,
		null.NewString(mbr.Name, mbr.Name != ""),
		null.NewString(mbr.Username, mbr.Username != ""),
		null.NewString(mbr.Email, mbr.Email != ""),
		null.BoolFromPtr(mbr.IsActive),
		mbr.Role,
		null.NewString(mbr.Gender, mbr.Gender != ""),
		null.NewString(mbr.RegionID, mbr.RegionID != ""),
		null.NewString(mbr.College, mbr.College != ""),
		null.NewString(mbr.Course, mbr.Course != ""),
		null.NewInt(int(mbr.YearOfStudy), mbr.YearOfStudy > 0),
		mbr.FirstTimer,
		null.BytesFrom(mbr.PasswordHash),
		null.NewTime(mbr.CreatedAt.UTC(), !mbr.CreatedAt.IsZero()),
		null.NewTime(mbr.UpdatedAt.UTC(), !mbr.UpdatedAt.IsZero()),
		null.NewTime(mbr.LastLogin.UTC(), !mbr.LastLogin.IsZero()),
	)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "inserting member")
	}
	return repo.GetMember(ctx, member.GetFilter{ID: mbr.ID})
}

func (repo memberRepository) GetMember(ctx context.Context, filter member.GetFilter) (member.Member, error) {
	var row memberRow
	var err error

	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &row, memberSelect+" WHERE m.id = $1", filter.ID)
	case filter.Username != "":
		err = repo.db.GetContext(ctx, &row, memberSelect+" WHERE m.username = $1", filter.Username)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, memberSelect+" WHERE m.email = $1", filter.Email)
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		err = repo.db.GetContext(ctx, &row, memberSelect+" WHERE m.username = $1 OR m.email = $2", uname, email)
	default:
		return member.Member{}, member.ErrNotFound
	}

	if err != nil {
		return member.Member{}, trapNoRowsErr(err, "finding member")
	}
	return row.toMember(), nil
}

func (repo memberRepository) QueryMembers(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering) ([]member.Member, error) {
	query := memberSelect
	var args []interface{}
	where := " WHERE true"

	if filter != nil {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			n := len(args)
			where += fmt.Sprintf(" AND (m.name ILIKE $%d OR m.username ILIKE $%d OR m.email ILIKE $%d)", n, n, n)
		}
		if filter.RegionID != "" {
			args = append(args, filter.RegionID)
			where += fmt.Sprintf(" AND m.region_id = $%d", len(args))
		}
		if filter.IsActive != nil {
			args = append(args, *filter.IsActive)
			where += fmt.Sprintf(" AND m.is_active = $%d", len(args))
		}
	}
	query += where

	if len(ordering) > 0 {
		query += " ORDER BY "
		for i, ord := range ordering {
			if i > 0 {
				query += ", "
			}
			query += "m." + ord.String()
		}
	} else {
		query += " ORDER BY m.name ASC"
	}

	var rows []memberRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}

func (repo memberRepository) UpdateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	query := `
UPDATE member
SET name = $2, username = $3, email = $4, is_active = $5, role = $6, gender = $7,
    region_id = $8, college = $9, course = $10, year_of_study = $11, first_timer = $12,
    password_hash = $13, updated_at = $14, last_login = $15
WHERE id = $1`
	_, err := repo.db.ExecContext(ctx, query,
		mbr.ID,
		null.NewString(mbr.Name, mbr.Name != ""),
		null.NewString(mbr.Username, mbr.Username != ""),
		null.NewString(mbr.Email, mbr.Email != ""),
		null.BoolFromPtr(mbr.IsActive),
		mbr.Role,
		null.NewString(mbr.Gender, mbr.Gender != ""),
		null.NewString(mbr.RegionID, mbr.RegionID != ""),
		null.NewString(mbr.College, mbr.College != ""),
		null.NewString(mbr.Course, mbr.Course != ""),
		null.NewInt(int(mbr.YearOfStudy), mbr.YearOfStudy > 0),
		mbr.FirstTimer,
		null.BytesFrom(mbr.PasswordHash),
		null.TimeFrom(mbr.UpdatedAt.UTC()),
		null.NewTime(mbr.LastLogin.UTC(), !mbr.LastLogin.IsZero()),
	)
	if err != nil {
		return member.Member{}, errors.Wrap(err, "updating member")
	}
	return repo.GetMember(ctx, member.GetFilter{ID: mbr.ID})
}

func (repo memberRepository) UpdateOrCreateMember(ctx context.Context, mbr member.Member) (member.Member, error) {
	if mbr.ID == "" {
		return repo.CreateMember(ctx, mbr)
	}
	return repo.UpdateMember(ctx, mbr)
}

func (repo memberRepository) GetHeadships(ctx context.Context, memberID string) (member.Headships, error) {
	var hs member.Headships

	// models carry no db tags; alias columns to sqlx's lowercased field names
	var regions []member.Region
	err := repo.db.SelectContext(ctx, &regions,
		`SELECT id, name, COALESCE(head_id, '') AS headid FROM region WHERE head_id = $1`, memberID)
	if err != nil {
		return hs, errors.Wrap(err, "querying headed region")
	}
	if len(regions) > 0 {
		hs.Region = &regions[0]
	}

	err = repo.db.SelectContext(ctx, &hs.Families,
		`SELECT id, name, COALESCE(head_id, '') AS headid, is_active AS isactive FROM family WHERE head_id = $1 ORDER BY name`, memberID)
	if err != nil {
		return hs, errors.Wrap(err, "querying headed families")
	}

	err = repo.db.SelectContext(ctx, &hs.Teams,
		`SELECT id, name, COALESCE(leader_id, '') AS leaderid FROM team WHERE leader_id = $1 ORDER BY name`, memberID)
	if err != nil {
		return hs, errors.Wrap(err, "querying led teams")
	}

	return hs, nil
}
