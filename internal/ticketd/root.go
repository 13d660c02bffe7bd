// Package ticketd implements the reference host binary. It owns everything
// the core deliberately does not: the Postgres pool, the project-to-schema
// mapping, migration execution, the HTTP listener, and the RPC dispatcher.
package ticketd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogenes-ai-code/ticketcore/internal/config"
)

// Version information (set at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global flags
var (
	configPath  string
	listenAddr  string
	databaseURL string
)

var rootCmd = &cobra.Command{
	Use:   "ticketd",
	Short: "Multi-tenant ticketing server",
	Long: `Ticketd hosts the embeddable ticketing core behind an HTTP API and
an RPC tool endpoint. Projects map to Postgres schemas; use "ticketd migrate"
to provision a project before serving requests for it.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.ticketd/config.toml)")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "HTTP listen address")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")

	rootCmd.SetVersionTemplate(fmt.Sprintf("ticketd %s (%s, %s)\n", Version, shortCommit(), shortDate()))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig resolves the effective configuration: file, environment, then
// command-line flags.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	return cfg, nil
}

func shortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

func shortDate() string {
	if len(BuildDate) >= 10 {
		return BuildDate[:10]
	}
	return BuildDate
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
