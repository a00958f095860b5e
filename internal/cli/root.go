// Package cli implements memberctl, the operator command line for the
// membership data core.
package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/membership/internal/ids"
	"github.com/roach88/membership/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	DBPath  string
	SeedDir string
	Memory  bool

	// Overridden by tests.
	now    func() time.Time
	ids    ids.Generator
	logger *logger.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the memberctl root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memberctl",
		Short: "Membership data core operator tool",
		Long: `memberctl seeds and inspects the membership store: the community
leaderboard, achievement progress, product events and allowlist
entitlements.

Settings come from --config (YAML), a .env file, then MEMBERSHIP_* and
ALLOWLIST_* environment variables. --db, --seed-dir and --memory override
them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.SeedDir, "seed-dir", "", "seed data directory (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.Memory, "memory", false, "use the in-memory backend")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewLeaderboardCommand(opts))
	cmd.AddCommand(NewUnlockCommand(opts))
	cmd.AddCommand(NewEventCommand(opts))
	cmd.AddCommand(NewEntitlementCommand(opts))

	return cmd
}
