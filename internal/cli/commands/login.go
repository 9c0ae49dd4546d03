package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tripsplit/tripsplit/internal/cli/auth"
	"github.com/tripsplit/tripsplit/internal/cli/client"
	"github.com/tripsplit/tripsplit/internal/cli/userconfig"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a tripsplit server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set TRIPSPLIT_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set TRIPSPLIT_PASSWORD, will prompt if not provided)")

	return cmd
}

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.Context(), email, password, name)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set TRIPSPLIT_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set TRIPSPLIT_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&name, "name", "", "Display name shown to other group members")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context())
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context())
		},
	}
}

func credentials(email, password string) (string, string, error) {
	// Environment variables are useful for CI/CD
	if email == "" {
		email = os.Getenv("TRIPSPLIT_EMAIL")
	}
	if password == "" {
		password = os.Getenv("TRIPSPLIT_PASSWORD")
	}

	if email == "" {
		return "", "", fmt.Errorf("email is required (use --email flag or TRIPSPLIT_EMAIL env var)")
	}

	if password == "" {
		var err error
		password, err = readPassword("Password: ")
		if err != nil {
			return "", "", err
		}
	}
	return strings.TrimSpace(email), password, nil
}

func runLogin(ctx context.Context, email, password string, opts ...Option) error {
	email, password, err := credentials(email, password)
	if err != nil {
		return err
	}

	o, err := newOptions(opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(o.out, "Logging in to %s...\n", o.serverURL)

	loginResp, err := o.newClient().Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	return saveSession(o, loginResp, "Login successful!")
}

func runRegister(ctx context.Context, email, password, name string, opts ...Option) error {
	email, password, err := credentials(email, password)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required (use --name flag)")
	}

	o, err := newOptions(opts)
	if err != nil {
		return err
	}

	resp, err := o.newClient().Register(ctx, email, password, name)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	return saveSession(o, resp, "Account created!")
}

func saveSession(o *options, resp *client.LoginResponse, headline string) error {
	if err := o.store.SaveToken(o.serverURL, resp.Token); err != nil {
		return fmt.Errorf("failed to save authentication token: %w", err)
	}
	if err := userconfig.SetServerURL(o.serverURL); err != nil {
		// Don't fail if we can't save, just continue
		fmt.Fprintf(o.out, "Warning: failed to save server: %v\n", err)
	}

	fmt.Fprintf(o.out, "✓ %s\n", headline)
	fmt.Fprintf(o.out, "  User: %s (%s)\n", resp.User.Name, resp.User.Email)
	if !resp.ExpiresAt.IsZero() {
		fmt.Fprintf(o.out, "  Session expires: %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runLogout(ctx context.Context, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}

	token, err := o.store.LoadToken(o.serverURL)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		fmt.Fprintln(o.out, "Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}

	api := o.newClient()
	api.SetToken(token)
	if err := api.Logout(ctx); err != nil && !client.IsUnauthorized(err) {
		// Still drop the local token; the server copy expires on its own
		fmt.Fprintf(o.out, "Warning: failed to revoke token on server: %v\n", err)
	}

	if err := o.store.DeleteToken(o.serverURL); err != nil {
		return err
	}
	fmt.Fprintf(o.out, "✓ Logged out of %s\n", o.serverURL)
	return nil
}

func runWhoami(ctx context.Context, opts ...Option) error {
	o, err := newOptions(opts)
	if err != nil {
		return err
	}

	_, user, err := requireSession(ctx, o)
	if err != nil {
		return err
	}

	fmt.Fprintf(o.out, "%s (%s)\n", user.Name, user.Email)
	fmt.Fprintf(o.out, "  ID:     %s\n", user.ID)
	fmt.Fprintf(o.out, "  Server: %s\n", o.serverURL)
	return nil
}
