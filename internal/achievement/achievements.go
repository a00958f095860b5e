package achievement

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/membership/internal/storage"
)

// Requirement is the machine-readable unlock condition of a definition:
// the named counter must reach Target.
type Requirement struct {
	Metric string `json:"metric,omitempty"`
	Target int64  `json:"target,omitempty"`
}

// Definition is a seeded achievement.
type Definition struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Rarity      string      `json:"rarity"`
	Points      int64       `json:"points"`
	Requirement Requirement `json:"requirement"`
	Active      bool        `json:"is_active"`
}

// MemberAchievement is a member's progress on one achievement.
type MemberAchievement struct {
	MemberID      string      `json:"member_id"`
	AchievementID string      `json:"achievement_id"`
	Progress      int64       `json:"progress"`
	MaxProgress   int64       `json:"max_progress"`
	PointsEarned  int64       `json:"points_earned"`
	UnlockedAt    time.Time   `json:"unlocked_at"`
	Definition    *Definition `json:"definition,omitempty"`
}

// Completed reports whether progress has reached max progress.
func (m MemberAchievement) Completed() bool {
	return m.Progress >= m.MaxProgress
}

// GetAchievementDefinitions returns the active definitions.
func (e *Engine) GetAchievementDefinitions(ctx context.Context) ([]Definition, error) {
	rows, err := e.activeDefinitions.All(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("get achievement definitions: %w", err)
	}
	return definitionsFromRows(rows)
}

// UnlockAchievement writes the member's row for achievementID, replacing
// any previous one. The last call wins: a smaller progress than before is
// stored as given.
func (e *Engine) UnlockAchievement(ctx context.Context, memberID, achievementID string, progress, maxProgress, pointsEarned int64) (MemberAchievement, error) {
	ma := MemberAchievement{
		MemberID:      memberID,
		AchievementID: achievementID,
		Progress:      progress,
		MaxProgress:   maxProgress,
		PointsEarned:  pointsEarned,
		UnlockedAt:    e.stamp(),
	}
	_, err := e.unlock.Run(ctx, ma.MemberID, ma.AchievementID, ma.Progress, ma.MaxProgress, ma.PointsEarned, ma.UnlockedAt)
	if err != nil {
		return MemberAchievement{}, fmt.Errorf("unlock achievement %s: %w", achievementID, err)
	}
	e.log.Debug("achievement progress stored",
		"member_id", memberID, "achievement_id", achievementID,
		"progress", progress, "max_progress", maxProgress)
	return ma, nil
}

// GetMemberAchievements returns the member's achievements, most recently
// written first, each joined with its definition when one exists.
func (e *Engine) GetMemberAchievements(ctx context.Context, memberID string) ([]MemberAchievement, error) {
	rows, err := e.memberUnlocks.All(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get member achievements: %w", err)
	}
	if len(rows) == 0 {
		return []MemberAchievement{}, nil
	}

	defRows, err := e.allDefinitions.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("get member achievements: %w", err)
	}
	defs, err := definitionsFromRows(defRows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Definition, len(defs))
	for i := range defs {
		byID[defs[i].ID] = &defs[i]
	}

	out := make([]MemberAchievement, 0, len(rows))
	for _, row := range rows {
		ma := memberAchievementFromRow(row)
		ma.Definition = byID[ma.AchievementID]
		out = append(out, ma)
	}
	return out, nil
}

func (e *Engine) getMemberAchievement(ctx context.Context, memberID, achievementID string) (*MemberAchievement, error) {
	row, err := e.memberUnlock.Get(ctx, memberID, achievementID)
	if err != nil || row == nil {
		return nil, err
	}
	ma := memberAchievementFromRow(row)
	return &ma, nil
}

func memberAchievementFromRow(row storage.Row) MemberAchievement {
	return MemberAchievement{
		MemberID:      row.String("member_id"),
		AchievementID: row.String("achievement_id"),
		Progress:      row.Int("progress"),
		MaxProgress:   row.Int("max_progress"),
		PointsEarned:  row.Int("points_earned"),
		UnlockedAt:    millis(row, "unlocked_at"),
	}
}

func definitionsFromRows(rows []storage.Row) ([]Definition, error) {
	out := make([]Definition, 0, len(rows))
	for _, row := range rows {
		d := Definition{
			ID:          row.String("id"),
			Title:       row.String("title"),
			Description: row.String("description"),
			Category:    row.String("category"),
			Rarity:      row.String("rarity"),
			Points:      row.Int("points"),
			Active:      row.Bool("is_active"),
		}
		if err := storage.DecodeJSON(row["requirement"], &d.Requirement); err != nil {
			return nil, fmt.Errorf("achievement %s requirement: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, nil
}
