package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := resolveServer(cmd)
			if err != nil {
				return err
			}

			apiClient, err := authenticatedClient(server, true)
			if err != nil {
				return err
			}

			user, err := apiClient.Me(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", user.Name, user.Email)
			fmt.Fprintf(out, "  ID:     %s\n", user.ID)
			fmt.Fprintf(out, "  Role:   %s\n", user.Role)
			fmt.Fprintf(out, "  Server: %s\n", server)
			return nil
		},
	}
}
