package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kimaro/shulebook/core"
	"github.com/kimaro/shulebook/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if usr, err = cli.usrRepo.GetUserByUsernameOrEmail(ctx, email); err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return err
			}
			usr = user.User{
				ID:       uuid.New().String(),
				Username: uname,
				Email:    email,
				Role:     user.RoleParent,
			}
			if err = cli.applyUser(&usr, pwd, isAdmin); err != nil {
				return err
			}
			_, err = cli.usrRepo.CreateUser(ctx, usr)
			return err
		}
	}

	if err = cli.applyUser(&usr, pwd, isAdmin); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, usr.IsActive)
	return err
}

func (cli *commandLine) applyUser(usr *user.User, pwd string, isAdmin bool) error {
	if isAdmin {
		usr.Role = user.RoleSuperAdmin
	}
	usr.SetActive(true)
	return usr.SetPassword(pwd)
}
