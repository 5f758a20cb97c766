package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongminglow/loandesk/internal/format"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/models"
)

func (a *App) signUp(ctx context.Context, args []string) error {
	fs := a.flags("signup")
	email := fs.String("email", "", "email address")
	name := fs.String("name", "", "full name")
	if _, err := a.parse(fs, args); err != nil {
		return err
	}

	addr, err := a.value(*email, "Email: ")
	if err != nil {
		return err
	}
	fullName, err := a.value(*name, "Full name: ")
	if err != nil {
		return err
	}
	pw, err := a.password("Password: ")
	if err != nil {
		return err
	}

	if err := a.sessions.SignUp(ctx, addr, pw, fullName); err != nil {
		return err
	}
	if st := a.sessions.State(); st.User != nil {
		fmt.Fprintf(a.out, "Signed up and signed in as %s\n", st.User.Email)
	}
	return nil
}

func (a *App) signIn(ctx context.Context, args []string) error {
	fs := a.flags("signin")
	email := fs.String("email", "", "email address")
	if _, err := a.parse(fs, args); err != nil {
		return err
	}

	addr, err := a.value(*email, "Email: ")
	if err != nil {
		return err
	}
	pw, err := a.password("Password: ")
	if err != nil {
		return err
	}
	if err := a.sessions.SignIn(ctx, addr, pw); err != nil {
		return err
	}

	st := a.sessions.State()
	fmt.Fprintf(a.out, "Signed in as %s\n", st.User.Email)
	if st.IsAdmin {
		fmt.Fprintln(a.out, "Administrator access enabled.")
	}
	return nil
}

func (a *App) signOut(ctx context.Context, _ []string) error {
	if a.sessions.State().User == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	err := a.sessions.SignOut(ctx)
	fmt.Fprintln(a.out, "Signed out.")
	return err
}

func (a *App) whoAmI(ctx context.Context, _ []string) error {
	p := a.sessions.Principal()
	if !p.Authenticated() {
		fmt.Fprintln(a.out, "Not signed in.")
		return loans.ErrAuthRequired
	}

	fmt.Fprintf(a.out, "User:  %s\n", p.Email)
	fmt.Fprintf(a.out, "ID:    %s\n", p.UserID)
	role := "customer"
	if p.IsAdmin {
		role = models.RoleAdmin
	}
	fmt.Fprintf(a.out, "Role:  %s\n", role)

	profile, err := a.loans.Profile(ctx, p)
	if err != nil {
		return err
	}
	if profile != nil && profile.FullName != "" {
		fmt.Fprintf(a.out, "Name:  %s\n", profile.FullName)
	}
	if st := a.sessions.State(); st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "Until: %s\n", format.DateTime(st.Session.ExpiresAt, a.loc))
	}
	return nil
}

func (a *App) promote(ctx context.Context, args []string) error {
	fs := a.flags("promote")
	revoke := fs.Bool("revoke", false, "remove the admin role instead")
	rest, err := a.parse(fs, args)
	if err != nil {
		return err
	}
	id, err := a.oneArg("promote", rest)
	if err != nil {
		return err
	}
	if a.roles == nil {
		return errors.New("roles are managed in the hosted backend dashboard")
	}

	role := models.RoleAdmin
	if *revoke {
		role = ""
	}
	if err := a.roles.SetRole(ctx, id, role); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if *revoke {
		fmt.Fprintf(a.out, "Removed admin role from %s\n", id)
	} else {
		fmt.Fprintf(a.out, "Granted admin role to %s\n", id)
	}
	return nil
}
