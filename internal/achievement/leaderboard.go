package achievement

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/membership/internal/storage"
)

// LeaderboardUpdate carries the new values for a member's leaderboard row.
// A nil Badges keeps the stored badges.
type LeaderboardUpdate struct {
	MemberID          string
	Points            int64
	Level             int64
	AchievementsCount int64
	RecipesViewed     int64
	ForumPosts        int64
	HasCollectible    bool
	Badges            []string
}

// LeaderboardEntry is one ranked member.
type LeaderboardEntry struct {
	MemberID          string    `json:"member_id"`
	MemberName        string    `json:"member_name,omitempty"`
	Rank              int64     `json:"rank"`
	Points            int64     `json:"points"`
	Level             int64     `json:"level"`
	AchievementsCount int64     `json:"achievements_count"`
	RecipesViewed     int64     `json:"recipes_viewed"`
	ForumPosts        int64     `json:"forum_posts"`
	HasCollectible    bool      `json:"has_nft"`
	Badges            []string  `json:"badges"`
	LastUpdated       time.Time `json:"last_updated"`
}

// UpdateLeaderboard upserts the member's row and re-ranks every entry by
// points descending, ties broken by member ID. Ranks are rewritten as 1..N.
func (e *Engine) UpdateLeaderboard(ctx context.Context, u LeaderboardUpdate) (LeaderboardEntry, error) {
	e.leaderboardMu.Lock()
	defer e.leaderboardMu.Unlock()

	existing, err := e.entryByMember.Get(ctx, u.MemberID)
	if err != nil {
		return LeaderboardEntry{}, fmt.Errorf("update leaderboard: %w", err)
	}

	badges := u.Badges
	if badges == nil {
		badges = []string{}
		if existing != nil {
			if err := storage.DecodeJSON(existing["badges"], &badges); err != nil {
				return LeaderboardEntry{}, fmt.Errorf("update leaderboard: badges: %w", err)
			}
		}
	}
	badgesJSON, err := storage.EncodeJSON(badges)
	if err != nil {
		return LeaderboardEntry{}, fmt.Errorf("update leaderboard: %w", err)
	}

	now := e.stamp()
	if existing == nil {
		_, err = e.insertEntry.Run(ctx, u.MemberID, u.Points, u.Level, 0, u.AchievementsCount,
			u.RecipesViewed, u.ForumPosts, u.HasCollectible, badgesJSON, now)
	} else {
		_, err = e.updateEntry.Run(ctx, u.Points, u.Level, u.AchievementsCount,
			u.RecipesViewed, u.ForumPosts, u.HasCollectible, badgesJSON, now, u.MemberID)
	}
	if err != nil {
		return LeaderboardEntry{}, fmt.Errorf("update leaderboard: %w", err)
	}

	rank, err := e.rerank(ctx, u.MemberID)
	if err != nil {
		return LeaderboardEntry{}, fmt.Errorf("update leaderboard: %w", err)
	}

	return LeaderboardEntry{
		MemberID:          u.MemberID,
		Rank:              rank,
		Points:            u.Points,
		Level:             u.Level,
		AchievementsCount: u.AchievementsCount,
		RecipesViewed:     u.RecipesViewed,
		ForumPosts:        u.ForumPosts,
		HasCollectible:    u.HasCollectible,
		Badges:            badges,
		LastUpdated:       now,
	}, nil
}

// rerank rewrites every rank and returns memberID's. Callers hold
// leaderboardMu.
func (e *Engine) rerank(ctx context.Context, memberID string) (int64, error) {
	rows, err := e.entriesByRank.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("rerank: %w", err)
	}
	var mine int64
	for i, row := range rows {
		rank := int64(i + 1)
		id := row.String("member_id")
		if _, err := e.setRank.Run(ctx, rank, id); err != nil {
			return 0, fmt.Errorf("rerank %s: %w", id, err)
		}
		if id == memberID {
			mine = rank
		}
	}
	e.log.Debug("leaderboard reranked", "entries", len(rows))
	return mine, nil
}

// GetCommunityLeaderboard returns the top limit entries in rank order,
// joined with member names.
func (e *Engine) GetCommunityLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := e.topEntries.All(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get community leaderboard: %w", err)
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := entryFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("get community leaderboard: %w", err)
		}
		member, err := e.memberByID.Get(ctx, entry.MemberID)
		if err != nil {
			return nil, fmt.Errorf("get community leaderboard: %w", err)
		}
		if member != nil {
			entry.MemberName = member.String("full_name")
		}
		out = append(out, entry)
	}
	return out, nil
}

// GetMemberRank returns the member's rank, or 0 when the member has no
// leaderboard entry.
func (e *Engine) GetMemberRank(ctx context.Context, memberID string) (int64, error) {
	row, err := e.entryByMember.Get(ctx, memberID)
	if err != nil {
		return 0, fmt.Errorf("get member rank: %w", err)
	}
	if row == nil {
		return 0, nil
	}
	return row.Int("rank"), nil
}

// GetLeaderboardEntry returns the member's entry, or nil when absent.
func (e *Engine) GetLeaderboardEntry(ctx context.Context, memberID string) (*LeaderboardEntry, error) {
	row, err := e.entryByMember.Get(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard entry: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	entry, err := entryFromRow(row)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func entryFromRow(row storage.Row) (LeaderboardEntry, error) {
	entry := LeaderboardEntry{
		MemberID:          row.String("member_id"),
		Rank:              row.Int("rank"),
		Points:            row.Int("points"),
		Level:             row.Int("level"),
		AchievementsCount: row.Int("achievements_count"),
		RecipesViewed:     row.Int("recipes_viewed"),
		ForumPosts:        row.Int("forum_posts"),
		HasCollectible:    row.Bool("has_nft"),
		Badges:            []string{},
		LastUpdated:       millis(row, "last_updated"),
	}
	if err := storage.DecodeJSON(row["badges"], &entry.Badges); err != nil {
		return LeaderboardEntry{}, fmt.Errorf("entry %s badges: %w", entry.MemberID, err)
	}
	return entry, nil
}
