package achievement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membership/internal/logger"
	"github.com/roach88/membership/internal/seed"
	"github.com/roach88/membership/internal/storage"
	"github.com/roach88/membership/internal/testutil"
)

func newEngine(t *testing.T, eng storage.Engine) *Engine {
	t.Helper()
	e, err := New(eng, Options{
		IDs: testutil.NewSequentialGenerator("row"),
		Now: testutil.NewStepClock().Now,
	})
	require.NoError(t, err)
	return e
}

// seeded loads the embedded achievement definitions into eng.
func seeded(t *testing.T, eng storage.Engine) {
	t.Helper()
	_, err := seed.NewManager("", logger.Nop()).Seed(context.Background(), eng)
	require.NoError(t, err)
}

func TestUnlockAchievement_LastWriteWins(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		e := newEngine(t, eng)

		_, err := e.UnlockAchievement(ctx, "m1", "recipe-explorer", 5, 10, 0)
		require.NoError(t, err)
		last, err := e.UnlockAchievement(ctx, "m1", "recipe-explorer", 10, 10, 25)
		require.NoError(t, err)

		assert.Equal(t, int64(1), testutil.Count(t, eng, "member_achievements"))
		got, err := e.GetMemberAchievements(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(10), got[0].Progress)
		assert.Equal(t, int64(25), got[0].PointsEarned)
		assert.Equal(t, last.UnlockedAt, got[0].UnlockedAt)
		assert.True(t, got[0].Completed())
	})
}

// Progress is not monotonic: a later, smaller value overwrites a larger one.
func TestUnlockAchievement_ProgressCanRegress(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		e := newEngine(t, eng)

		_, err := e.UnlockAchievement(ctx, "m1", "recipe-explorer", 10, 10, 25)
		require.NoError(t, err)
		_, err = e.UnlockAchievement(ctx, "m1", "recipe-explorer", 3, 10, 0)
		require.NoError(t, err)

		got, err := e.GetMemberAchievements(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(3), got[0].Progress)
		assert.Equal(t, int64(0), got[0].PointsEarned)
	})
}

func TestUnlockAchievement_PairsAreIndependent(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		e := newEngine(t, eng)

		for _, pair := range [][2]string{{"m1", "a"}, {"m1", "b"}, {"m2", "a"}, {"m1", "a"}} {
			_, err := e.UnlockAchievement(ctx, pair[0], pair[1], 1, 1, 5)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(3), testutil.Count(t, eng, "member_achievements"))
	})
}

func TestGetMemberAchievements_JoinsDefinitions(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		seeded(t, eng)
		e := newEngine(t, eng)

		_, err := e.UnlockAchievement(ctx, "m1", "first-post", 1, 1, 10)
		require.NoError(t, err)
		_, err = e.UnlockAchievement(ctx, "m1", "retired", 1, 1, 0)
		require.NoError(t, err)

		got, err := e.GetMemberAchievements(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		// Newest first.
		assert.Equal(t, "retired", got[0].AchievementID)
		assert.Nil(t, got[0].Definition)
		require.NotNil(t, got[1].Definition)
		assert.Equal(t, "First Words", got[1].Definition.Title)
		assert.Equal(t, Requirement{Metric: MetricForumPosts, Target: 1}, got[1].Definition.Requirement)

		none, err := e.GetMemberAchievements(ctx, "m2")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestGetAchievementDefinitions_ActiveOnly(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		seeded(t, eng)
		stmt, err := eng.Prepare("UPDATE achievements SET is_active = ? WHERE id = ?")
		require.NoError(t, err)
		_, err = stmt.Run(ctx, false, "recipe-master")
		require.NoError(t, err)

		defs, err := newEngine(t, eng).GetAchievementDefinitions(ctx)
		require.NoError(t, err)
		assert.Len(t, defs, 4)
		for _, d := range defs {
			assert.True(t, d.Active)
			assert.NotEqual(t, "recipe-master", d.ID)
		}
	})
}

func TestRecordActivity_NewestFirst(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		e := newEngine(t, eng)

		for _, kind := range []string{"login", "recipe_viewed", "forum_post"} {
			_, err := e.RecordActivity(ctx, "m1", kind, map[string]any{"kind": kind}, nil)
			require.NoError(t, err)
		}
		_, err := e.RecordActivity(ctx, "m2", "login", nil, nil)
		require.NoError(t, err)

		got, err := e.GetMemberActivity(ctx, "m1", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "forum_post", got[0].Type)
		assert.Equal(t, "recipe_viewed", got[1].Type)
		assert.Equal(t, map[string]any{"kind": "recipe_viewed"}, got[1].Payload)
		assert.Equal(t, map[string]any{}, got[1].Metadata)
		assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	})
}

func TestRecordAnalyticsMetric_AppendOnly(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		e := newEngine(t, eng)

		for i := 0; i < 3; i++ {
			_, err := e.RecordAnalyticsMetric(ctx, "m1", "session_minutes", 12.5, map[string]any{"i": i})
			require.NoError(t, err)
		}

		assert.Equal(t, int64(3), testutil.Count(t, eng, "analytics_metrics"))
		got, err := e.GetMemberMetrics(ctx, "m1", 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 12.5, got[0].Value)
		assert.Equal(t, map[string]any{"i": float64(2)}, got[0].Metadata)
	})
}

func TestEngine_StorageErrorsPropagate(t *testing.T) {
	eng, err := storage.NewMemoryEngine(storage.Schema)
	require.NoError(t, err)
	e := newEngine(t, eng)
	require.NoError(t, eng.Close())

	ctx := context.Background()
	_, err = e.RecordActivity(ctx, "m1", "login", nil, nil)
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = e.UnlockAchievement(ctx, "m1", "a", 1, 1, 1)
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = e.UpdateLeaderboard(ctx, LeaderboardUpdate{MemberID: "m1"})
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestNew_ClosedEngine(t *testing.T) {
	eng, err := storage.NewMemoryEngine(storage.Schema)
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	_, err = New(eng, Options{})
	assert.ErrorIs(t, err, storage.ErrClosed)
}
