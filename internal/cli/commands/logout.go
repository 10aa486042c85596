package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ailawyer-pro/ailawyer/internal/cli/auth"
	"github.com/ailawyer-pro/ailawyer/internal/cli/client"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd)
		},
	}
}

func runLogout(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	server, err := resolveServer(cmd)
	if err != nil {
		return err
	}

	apiClient, err := authenticatedClient(server, true)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		fmt.Fprintf(out, "Not logged in to %s\n", server)
		return nil
	}
	if err != nil {
		return err
	}

	// The local token goes even if the server is unreachable
	if err := apiClient.SignOut(cmd.Context()); err != nil && !errors.Is(err, client.ErrUnauthorized) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: server sign-out failed: %v\n", err)
	}
	if err := tokenStore.DeleteToken(server); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Logged out of %s\n", server)
	return nil
}
