package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

const userFields = `id email pseudo firstName lastName dateJoined isActive isStaff isSuperuser`

// errInvalidCredentials is returned when loginUser answers {user: null}
var errInvalidCredentials = errors.New("invalid email or password")

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account and session commands",
	}

	cmd.AddCommand(newUserRegisterCmd())
	cmd.AddCommand(newUserLoginCmd())
	cmd.AddCommand(newUserLogoutCmd())
	cmd.AddCommand(newUserWhoamiCmd())
	cmd.AddCommand(newUserMeCmd())

	return cmd
}

// saveSession stores the token from the session cookie of the last response
func saveSession() error {
	ck := client.SessionCookie()
	if ck == nil || ck.Value == "" {
		return errors.New("server did not issue a session cookie")
	}
	if err := cfg.SaveToken(ck.Value); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func newUserRegisterCmd() *cobra.Command {
	var email, pseudo, pass string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || pseudo == "" || pass == "" {
				return fmt.Errorf("--email, --pseudo, and --pass are required")
			}

			var result struct {
				CreateUser *struct {
					User *User `json:"user"`
				} `json:"createUser"`
			}
			query := `mutation Register($email: String!, $pseudo: String!, $password: String!) {
				createUser(email: $email, pseudo: $pseudo, password: $password) { user { ` + userFields + ` } }
			}`
			vars := map[string]any{"email": email, "pseudo": pseudo, "password": pass}

			if err := client.Exec(PublicPath, query, vars, &result); err != nil {
				return err
			}
			if result.CreateUser == nil || result.CreateUser.User == nil {
				return errors.New("registration returned no user")
			}

			if err := saveSession(); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(*result.CreateUser.User)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email (required)")
	cmd.Flags().StringVar(&pseudo, "pseudo", "", "Pseudo (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("pseudo")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserLoginCmd() *cobra.Command {
	var email, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || pass == "" {
				return fmt.Errorf("--email and --pass are required")
			}

			var result struct {
				LoginUser *struct {
					User *User `json:"user"`
				} `json:"loginUser"`
			}
			query := `mutation Login($email: String!, $password: String!) {
				loginUser(email: $email, password: $password) { user { ` + userFields + ` } }
			}`
			vars := map[string]any{"email": email, "password": pass}

			if err := client.Exec(PublicPath, query, vars, &result); err != nil {
				return err
			}
			if result.LoginUser == nil || result.LoginUser.User == nil {
				return errInvalidCredentials
			}

			if err := saveSession(); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(*result.LoginUser.User)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Exec(PrivatePath, `mutation { logoutUser { user { id } } }`, nil, nil); err != nil {
				return err
			}

			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage("Logged out")
			return nil
		},
	}
}

func newUserWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who the server thinks you are",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Whoami string `json:"whoami"`
			}

			if err := client.Exec(PrivatePath, `{ whoami }`, nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage(result.Whoami)
			return nil
		},
	}
}

func newUserMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show current user info",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Me User `json:"me"`
			}

			if err := client.Exec(PrivatePath, `{ me { `+userFields+` } }`, nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result.Me)
			return nil
		},
	}
}
