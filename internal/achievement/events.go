package achievement

import (
	"context"
	"fmt"
	"sort"
)

// EventType names a product event.
type EventType string

const (
	EventRecipeViewed        EventType = "recipe_viewed"
	EventForumPost           EventType = "forum_post"
	EventCollectibleVerified EventType = "collectible_verified"
)

// Counter names used by achievement requirements.
const (
	MetricRecipesViewed        = "recipes_viewed"
	MetricForumPosts           = "forum_posts"
	MetricCollectiblesVerified = "collectibles_verified"
)

// PointsPerLevel is the number of points between levels.
const PointsPerLevel = 100

// Event is a product event for one member. Types other than the constants
// above are recorded as activity without touching counters.
type Event struct {
	MemberID string
	Type     EventType
	Payload  map[string]any
	Metadata map[string]any
}

// EventOutcome reports what ProcessEvent changed.
type EventOutcome struct {
	Activity Activity         `json:"activity"`
	Unlocked []string         `json:"unlocked"`
	Entry    LeaderboardEntry `json:"entry"`
}

// ProcessEvent records the event as activity, bumps the matching counter,
// advances every active achievement whose requirement names a counter, and
// rewrites the member's leaderboard row from the resulting achievements.
// Points are the sum of points earned, level is points/PointsPerLevel + 1
// and badges are the IDs of completed achievements.
func (e *Engine) ProcessEvent(ctx context.Context, ev Event) (EventOutcome, error) {
	e.eventMu.Lock()
	defer e.eventMu.Unlock()

	var out EventOutcome
	activity, err := e.RecordActivity(ctx, ev.MemberID, string(ev.Type), ev.Payload, ev.Metadata)
	if err != nil {
		return out, fmt.Errorf("process event: %w", err)
	}
	out.Activity = activity

	current, err := e.GetLeaderboardEntry(ctx, ev.MemberID)
	if err != nil {
		return out, fmt.Errorf("process event: %w", err)
	}
	counters := LeaderboardEntry{MemberID: ev.MemberID}
	if current != nil {
		counters = *current
	}
	switch ev.Type {
	case EventRecipeViewed:
		counters.RecipesViewed++
	case EventForumPost:
		counters.ForumPosts++
	case EventCollectibleVerified:
		counters.HasCollectible = true
	}

	unlocked, err := e.advance(ctx, ev.MemberID, metricValues(counters))
	if err != nil {
		return out, fmt.Errorf("process event: %w", err)
	}
	out.Unlocked = unlocked

	achievements, err := e.GetMemberAchievements(ctx, ev.MemberID)
	if err != nil {
		return out, fmt.Errorf("process event: %w", err)
	}
	update := LeaderboardUpdate{
		MemberID:       ev.MemberID,
		RecipesViewed:  counters.RecipesViewed,
		ForumPosts:     counters.ForumPosts,
		HasCollectible: counters.HasCollectible,
		Badges:         []string{},
	}
	for _, a := range achievements {
		update.Points += a.PointsEarned
		if a.Completed() {
			update.AchievementsCount++
			update.Badges = append(update.Badges, a.AchievementID)
		}
	}
	sort.Strings(update.Badges)
	update.Level = update.Points/PointsPerLevel + 1

	entry, err := e.UpdateLeaderboard(ctx, update)
	if err != nil {
		return out, fmt.Errorf("process event: %w", err)
	}
	out.Entry = entry

	if len(unlocked) > 0 {
		e.log.Info("achievements unlocked", "member_id", ev.MemberID, "achievements", unlocked)
	}
	return out, nil
}

// advance writes progress for each active definition with a counter
// requirement and returns the IDs completed by this call. Rows whose
// progress would not change are left alone.
func (e *Engine) advance(ctx context.Context, memberID string, values map[string]int64) ([]string, error) {
	defs, err := e.GetAchievementDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	unlocked := []string{}
	for _, d := range defs {
		value, ok := values[d.Requirement.Metric]
		if !ok || d.Requirement.Target <= 0 {
			continue
		}
		progress := min(value, d.Requirement.Target)

		prev, err := e.getMemberAchievement(ctx, memberID, d.ID)
		if err != nil {
			return nil, err
		}
		if prev == nil && progress == 0 {
			continue
		}
		if prev != nil && prev.Progress == progress {
			continue
		}

		var points int64
		done := progress >= d.Requirement.Target
		if done {
			points = d.Points
		}
		if _, err := e.UnlockAchievement(ctx, memberID, d.ID, progress, d.Requirement.Target, points); err != nil {
			return nil, err
		}
		if done && (prev == nil || !prev.Completed()) {
			unlocked = append(unlocked, d.ID)
		}
	}
	return unlocked, nil
}

func metricValues(c LeaderboardEntry) map[string]int64 {
	var verified int64
	if c.HasCollectible {
		verified = 1
	}
	return map[string]int64{
		MetricRecipesViewed:        c.RecipesViewed,
		MetricForumPosts:           c.ForumPosts,
		MetricCollectiblesVerified: verified,
	}
}
