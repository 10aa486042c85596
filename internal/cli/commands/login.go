package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ailawyer-pro/ailawyer/internal/cli/client"
	"github.com/ailawyer-pro/ailawyer/internal/cli/userconfig"
	"github.com/ailawyer-pro/ailawyer/internal/models"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to an AI Lawyer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set AILAWYER_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set AILAWYER_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, email, password string) error {
	out := cmd.OutOrStdout()

	server, err := resolveServer(cmd)
	if err != nil {
		return err
	}

	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("AILAWYER_EMAIL")
	}
	if password == "" {
		password = os.Getenv("AILAWYER_PASSWORD")
	}
	if email == "" {
		if cfg, err := userconfig.Load(); err == nil {
			email = cfg.Email
		}
	}

	// Validate email
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or AILAWYER_EMAIL env var)")
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or AILAWYER_PASSWORD env var)")
		}
		fmt.Fprint(out, "Password: ")
		bytePassword, err := term.ReadPassword(fd)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(bytePassword)
		fmt.Fprintln(out) // New line after password input
	}

	fmt.Fprintf(out, "Signing in to %s...\n", server)

	loginResp, err := client.New(server).Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}

	if err := tokenStore.SaveToken(server, loginResp.Token); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	if err := userconfig.SetServer(server, email); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to remember server: %v\n", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (%s)\n", loginResp.User.Name, loginResp.User.Email)
	if loginResp.User.Role == models.RoleAdmin {
		fmt.Fprintln(out, "  Role: Admin")
	}

	return nil
}
