package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ailawyer-pro/ailawyer/internal/cli/commands"
)

var version = "dev" // Will be set during build

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ailawyer",
		Short: "AI Lawyer - account and session tooling",
		Long: `AI Lawyer CLI - sign in to an AI Lawyer server and inspect your session.

The session token is kept in the OS keychain, one entry per server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	commands.AddServerFlag(rootCmd)

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ailawyer version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewGuardCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
