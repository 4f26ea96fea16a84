package main

import (
	"context"

	"github.com/trezcool/kanisa/core"
	"github.com/trezcool/kanisa/core/member"
)

// addMember updates or creates a member.Member
func (cli *commandLine) addMember(uname, email, pwd string, isManager bool) error {
	var mbr member.Member
	var err error
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	if mbr, err = cli.mbrRepo.GetMember(ctx, member.GetFilter{UsernameOrEmail: []string{uname, email}}); err != nil {
		if err != member.ErrNotFound {
			return err
		}
		mbr = member.Member{
			Username: uname,
			Email:    email,
			Role:     member.RoleMember,
		}
	}
	if isManager {
		mbr.Role = member.RoleManager
	}
	mbr.SetActive(true)
	if err := mbr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.mbrRepo.UpdateOrCreateMember(ctx, mbr); err != nil {
		return err
	}
	return nil
}
