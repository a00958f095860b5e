package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/membership/internal/seed"
	"github.com/roach88/membership/internal/storage"
)

// InitResult is the output of the init command.
type InitResult struct {
	Backend storage.Backend     `json:"backend"`
	Domains []seed.DomainReport `json:"domains"`
}

func (r InitResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Backend: %s\n", r.Backend)
	for _, d := range r.Domains {
		switch {
		case d.Skipped:
			fmt.Fprintf(w, "  %-20s skipped (%s)\n", d.Domain, d.Reason)
		default:
			fmt.Fprintf(w, "  %-20s inserted %d\n", d.Domain, d.Inserted)
		}
	}
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Open the store and load seed data",
		Long: `Open the configured store, apply the schema and seed every empty
domain from the seed directory. Domains that already hold rows are left
alone, so running init twice is harmless.

Examples:
  memberctl init --db ./data/membership.db --seed-dir ./data/seed
  memberctl init --memory --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportError(rootOpts, cmd, runInit(rootOpts, cmd))
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := newApp(opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}
	report, err := a.seeds.Seed(ctx, eng)
	if err != nil {
		return WrapExitError(ExitFailure, "seeding failed", err)
	}
	return formatter(opts, cmd.OutOrStdout()).Success(InitResult{
		Backend: eng.Backend(),
		Domains: report.Domains,
	})
}
