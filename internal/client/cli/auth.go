package cli

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/spf13/cobra"
)

// credentials takes the username from args or prompts for it, then prompts
// for the password.
func (a *App) credentials(args []string) (string, []byte, error) {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		u, err := GetSimpleText(a.reader, "Username", a.out)
		if err != nil {
			return "", nil, err
		}
		username = u
	}
	if username == "" {
		return "", nil, fmt.Errorf("%w: username is required", common.ErrorValidation)
	}

	password, err := GetPassword(a.reader, "Password", a.out)
	if err != nil {
		return "", nil, err
	}
	return username, password, nil
}

func (a *App) registerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account and log in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := a.credentials(args)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			s, err := a.client.Register(cmd.Context(), username, string(password))
			if err != nil {
				return err
			}
			if err := a.remember(username, s); err != nil {
				return err
			}
			success(a.out, "Registered and logged in as %s", username)
			return nil
		},
	}
}

func (a *App) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in, prompting for a one-time code when required",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := a.credentials(args)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			res, err := a.client.Login(cmd.Context(), username, string(password))
			if err != nil {
				return err
			}

			s := res.Session
			if s == nil {
				code, err := GetSimpleText(a.reader, "One-time code", a.out)
				if err != nil {
					return err
				}
				if s, err = a.client.VerifySecondFactor(cmd.Context(), res.PendingPrincipalID, code); err != nil {
					return err
				}
			}

			if err := a.remember(username, s); err != nil {
				return err
			}
			success(a.out, "Logged in as %s", username)
			return nil
		},
	}
}

func (a *App) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.isLoggedIn() {
				hint(a.out, "Not logged in")
				return nil
			}
			// the local session goes even when the server is unreachable
			logoutErr := a.client.Logout(cmd.Context())
			if err := a.forget(); err != nil {
				return errors.Join(logoutErr, err)
			}
			if logoutErr != nil {
				hint(a.out, "Server logout failed: %v", logoutErr)
			}
			success(a.out, "Logged out")
			return nil
		},
	}
}

func (a *App) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.isLoggedIn() {
				fmt.Fprintln(a.out, a.describeSession())
				return nil
			}
			v, err := a.client.Verify(cmd.Context())
			if err != nil {
				return err
			}
			a.state.ExpiresAt = v.ExpiresAt
			fmt.Fprintln(a.out, a.describeSession())
			return nil
		},
	}
}
