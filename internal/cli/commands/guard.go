package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ailawyer-pro/ailawyer/internal/mirror"
)

// NewGuardCmd creates the guard command
func NewGuardCmd() *cobra.Command {
	var admin bool
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "guard <path>",
		Short: "Show how the web app would guard a page for the current session",
		Long: `Run the client-side auth check for a page and print its decision.

Prints "render <path>" when the page would be shown, or
"redirect <to> (from <path>)" when the visitor would be sent elsewhere.

Examples:
  $ ailawyer guard /dashboard
  $ ailawyer guard /admin --admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := mirror.RequireAuth
			if admin {
				policy = mirror.RequireAdmin
			}
			return runGuard(cmd, args[0], policy, interval, timeout)
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "Page is admin-only")
	cmd.Flags().DurationVar(&interval, "retry-interval", 300*time.Millisecond, "Delay between session checks")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")

	return cmd
}

func runGuard(cmd *cobra.Command, path string, policy mirror.Policy, interval, timeout time.Duration) error {
	server, err := resolveServer(cmd)
	if err != nil {
		return err
	}

	apiClient, err := authenticatedClient(server, false)
	if err != nil {
		return err
	}

	m := mirror.New(apiClient, mirror.Config{
		Policy:        policy,
		RetryInterval: interval,
	})
	defer m.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := m.Navigate(path); err != nil {
		return err
	}
	outcome, err := m.Wait(ctx)
	if err != nil {
		return fmt.Errorf("session check did not settle: %w", err)
	}

	out := cmd.OutOrStdout()
	switch outcome.State {
	case mirror.Rendered:
		fmt.Fprintf(out, "render %s\n", outcome.Path)
	default:
		fmt.Fprintf(out, "redirect %s (from %s)\n", outcome.RedirectTo, outcome.From)
	}
	return nil
}
