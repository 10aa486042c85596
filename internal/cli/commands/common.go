package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ailawyer-pro/ailawyer/internal/cli/auth"
	"github.com/ailawyer-pro/ailawyer/internal/cli/client"
	"github.com/ailawyer-pro/ailawyer/internal/cli/userconfig"
)

const (
	// DefaultServer is used when no server is configured anywhere
	DefaultServer = "http://localhost:8080"

	serverFlagName = "server"
	serverEnvVar   = "AILAWYER_SERVER"
)

// tokenStore is swapped for an in-memory store in tests
var tokenStore auth.TokenStore = auth.Default

// AddServerFlag registers the persistent --server flag on the root command
func AddServerFlag(root *cobra.Command) {
	root.PersistentFlags().String(serverFlagName, "", fmt.Sprintf("Server URL (or set %s, default %s)", serverEnvVar, DefaultServer))
}

// resolveServer determines which server to use based on the following priority:
// 1. --server flag
// 2. AILAWYER_SERVER env var
// 3. server of the last successful login
// 4. DefaultServer
func resolveServer(cmd *cobra.Command) (string, error) {
	if f := cmd.Flag(serverFlagName); f != nil && f.Value.String() != "" {
		return normalizeServer(f.Value.String())
	}
	if env := os.Getenv(serverEnvVar); env != "" {
		return normalizeServer(env)
	}

	cfg, err := userconfig.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load user config: %w", err)
	}
	if cfg.Server != "" {
		return normalizeServer(cfg.Server)
	}
	return DefaultServer, nil
}

func normalizeServer(server string) (string, error) {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		return "", fmt.Errorf("server must be an http:// or https:// URL, got %q", server)
	}
	return server, nil
}

// authenticatedClient returns a client carrying the stored token for server.
// With required=false a missing token yields an anonymous client.
func authenticatedClient(server string, required bool) (*client.Client, error) {
	apiClient := client.New(server)

	token, err := tokenStore.LoadToken(server)
	switch {
	case err == nil:
		apiClient.SetToken(token)
	case errors.Is(err, auth.ErrNotAuthenticated) && !required:
	default:
		return nil, err
	}
	return apiClient, nil
}
