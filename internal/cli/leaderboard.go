package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/membership/internal/achievement"
)

// LeaderboardOptions holds flags for the leaderboard command.
type LeaderboardOptions struct {
	*RootOptions
	Limit    int
	MemberID string
}

// MemberStanding is the leaderboard output for a single member.
type MemberStanding struct {
	MemberID string                        `json:"member_id"`
	Rank     int64                         `json:"rank"`
	Entry    *achievement.LeaderboardEntry `json:"entry"`
}

type leaderboardTable []achievement.LeaderboardEntry

func (t leaderboardTable) renderText(w io.Writer) {
	if len(t) == 0 {
		fmt.Fprintln(w, "Leaderboard is empty")
		return
	}
	fmt.Fprintf(w, "%-4s %-24s %7s %5s  %s\n", "RANK", "MEMBER", "POINTS", "LEVEL", "BADGES")
	for _, e := range t {
		name := e.MemberID
		if e.MemberName != "" {
			name = e.MemberName
		}
		fmt.Fprintf(w, "%-4d %-24s %7d %5d  %s\n", e.Rank, name, e.Points, e.Level, strings.Join(e.Badges, ","))
	}
}

func (s MemberStanding) renderText(w io.Writer) {
	if s.Entry == nil {
		fmt.Fprintf(w, "%s is not on the leaderboard\n", s.MemberID)
		return
	}
	fmt.Fprintf(w, "%s: rank %d, %d points, level %d\n", s.MemberID, s.Rank, s.Entry.Points, s.Entry.Level)
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LeaderboardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the community leaderboard",
		Long: `Show the top of the community leaderboard in rank order, or one
member's standing with --member.

Examples:
  memberctl leaderboard --limit 10
  memberctl leaderboard --member 0190c6c4-... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportError(opts.RootOptions, cmd, runLeaderboard(opts, cmd))
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "number of entries to show")
	cmd.Flags().StringVar(&opts.MemberID, "member", "", "show a single member's standing")

	return cmd
}

func runLeaderboard(opts *LeaderboardOptions, cmd *cobra.Command) error {
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "--limit must be positive")
	}
	ctx := cmd.Context()
	a, err := newApp(opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := a.achievements(ctx)
	if err != nil {
		return err
	}
	out := formatter(opts.RootOptions, cmd.OutOrStdout())

	if opts.MemberID != "" {
		entry, err := engine.GetLeaderboardEntry(ctx, opts.MemberID)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read leaderboard", err)
		}
		standing := MemberStanding{MemberID: opts.MemberID, Entry: entry}
		if entry != nil {
			standing.Rank = entry.Rank
		}
		return out.Success(standing)
	}

	entries, err := engine.GetCommunityLeaderboard(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read leaderboard", err)
	}
	return out.Success(leaderboardTable(entries))
}
