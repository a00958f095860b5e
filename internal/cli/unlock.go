package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/membership/internal/achievement"
)

// UnlockOptions holds flags for the unlock command.
type UnlockOptions struct {
	*RootOptions
	MemberID      string
	AchievementID string
	Progress      int64
	MaxProgress   int64
	Points        int64
}

type unlockResult achievement.MemberAchievement

func (u unlockResult) renderText(w io.Writer) {
	state := "in progress"
	if achievement.MemberAchievement(u).Completed() {
		state = "completed"
	}
	fmt.Fprintf(w, "%s %s: %d/%d (%s), %d points\n",
		u.MemberID, u.AchievementID, u.Progress, u.MaxProgress, state, u.PointsEarned)
}

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnlockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Write a member's achievement progress",
		Long: `Write progress for one member and achievement. The row is replaced
wholesale, so a smaller progress value overwrites a larger one. The
leaderboard is not touched; use "event" for scored updates.

Examples:
  memberctl unlock --member m1 --achievement first-post --progress 1 --max 1 --points 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportError(opts.RootOptions, cmd, runUnlock(opts, cmd))
		},
	}

	cmd.Flags().StringVar(&opts.MemberID, "member", "", "member ID (required)")
	_ = cmd.MarkFlagRequired("member")
	cmd.Flags().StringVar(&opts.AchievementID, "achievement", "", "achievement ID (required)")
	_ = cmd.MarkFlagRequired("achievement")
	cmd.Flags().Int64Var(&opts.Progress, "progress", 0, "current progress")
	cmd.Flags().Int64Var(&opts.MaxProgress, "max", 1, "progress needed to complete")
	cmd.Flags().Int64Var(&opts.Points, "points", 0, "points earned")

	return cmd
}

func runUnlock(opts *UnlockOptions, cmd *cobra.Command) error {
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
	got, err := engine.UnlockAchievement(ctx, opts.MemberID, opts.AchievementID, opts.Progress, opts.MaxProgress, opts.Points)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to record achievement", err)
	}
	return formatter(opts.RootOptions, cmd.OutOrStdout()).Success(unlockResult(got))
}
