// Package achievement records member activity, unlocks achievements and
// maintains the ranked community leaderboard.
//
// Every write goes through the storage engine handle passed to New. The
// leaderboard re-rank is a read-sort-write sequence over the whole table;
// the Engine serialises it with a mutex so ranks stay a contiguous 1..N
// permutation under concurrent writers. Inputs are not validated and
// storage errors are returned wrapped, without retries.
package achievement

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/membership/internal/ids"
	"github.com/roach88/membership/internal/logger"
	"github.com/roach88/membership/internal/storage"
)

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	IDs    ids.Generator
	Now    func() time.Time
	Logger *logger.Logger
}

// Engine is the achievement and leaderboard engine.
type Engine struct {
	ids ids.Generator
	now func() time.Time
	log *logger.Logger

	// leaderboardMu guards the upsert and re-rank pass.
	leaderboardMu sync.Mutex

	// eventMu guards ProcessEvent's counter read-modify-write.
	eventMu sync.Mutex

	insertMetric   *storage.Statement
	listMetrics    *storage.Statement
	insertActivity *storage.Statement
	listActivity   *storage.Statement

	activeDefinitions *storage.Statement
	allDefinitions    *storage.Statement
	unlock            *storage.Statement
	memberUnlocks     *storage.Statement
	memberUnlock      *storage.Statement

	entryByMember *storage.Statement
	insertEntry   *storage.Statement
	updateEntry   *storage.Statement
	entriesByRank *storage.Statement
	setRank       *storage.Statement
	topEntries    *storage.Statement
	memberByID    *storage.Statement
}

// New prepares the engine's statements against eng.
func New(eng storage.Engine, opts Options) (*Engine, error) {
	e := &Engine{ids: opts.IDs, now: opts.Now, log: opts.Logger}
	if e.ids == nil {
		e.ids = ids.UUIDv7Generator{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.With("component", "achievement")

	stmts := []struct {
		dst  **storage.Statement
		text string
	}{
		{&e.insertMetric, "INSERT INTO analytics_metrics (id, member_id, metric_name, metric_value, metadata, recorded_at) VALUES (?, ?, ?, ?, ?, ?)"},
		{&e.listMetrics, "SELECT * FROM analytics_metrics WHERE member_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?"},
		{&e.insertActivity, "INSERT INTO member_activity (id, member_id, activity_type, activity_data, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)"},
		{&e.listActivity, "SELECT * FROM member_activity WHERE member_id = ? ORDER BY created_at DESC, id DESC LIMIT ?"},

		{&e.activeDefinitions, "SELECT * FROM achievements WHERE is_active = ? ORDER BY category, points, id"},
		{&e.allDefinitions, "SELECT * FROM achievements ORDER BY id"},
		{&e.unlock, "INSERT OR REPLACE INTO member_achievements (member_id, achievement_id, progress, max_progress, points_earned, unlocked_at) VALUES (?, ?, ?, ?, ?, ?)"},
		{&e.memberUnlocks, "SELECT * FROM member_achievements WHERE member_id = ? ORDER BY unlocked_at DESC, achievement_id"},
		{&e.memberUnlock, "SELECT * FROM member_achievements WHERE member_id = ? AND achievement_id = ?"},

		{&e.entryByMember, "SELECT * FROM community_leaderboard WHERE member_id = ?"},
		{&e.insertEntry, "INSERT INTO community_leaderboard (member_id, points, level, rank, achievements_count, recipes_viewed, forum_posts, has_nft, badges, last_updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"},
		{&e.updateEntry, "UPDATE community_leaderboard SET points = ?, level = ?, achievements_count = ?, recipes_viewed = ?, forum_posts = ?, has_nft = ?, badges = ?, last_updated = ? WHERE member_id = ?"},
		{&e.entriesByRank, "SELECT * FROM community_leaderboard ORDER BY points DESC, member_id ASC"},
		{&e.setRank, "UPDATE community_leaderboard SET rank = ? WHERE member_id = ?"},
		{&e.topEntries, "SELECT * FROM community_leaderboard ORDER BY rank ASC LIMIT ?"},
		{&e.memberByID, "SELECT * FROM members WHERE id = ?"},
	}
	for _, st := range stmts {
		prepared, err := eng.Prepare(st.text)
		if err != nil {
			return nil, fmt.Errorf("prepare achievement engine: %w", err)
		}
		*st.dst = prepared
	}
	return e, nil
}

// stamp returns the current time at storage precision.
func (e *Engine) stamp() time.Time {
	return time.UnixMilli(e.now().UnixMilli()).UTC()
}

func millis(row storage.Row, col string) time.Time {
	return time.UnixMilli(row.Int(col)).UTC()
}

func encodeObject(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	return storage.EncodeJSON(m)
}

func decodeObject(row storage.Row, col string) (map[string]any, error) {
	out := map[string]any{}
	if err := storage.DecodeJSON(row[col], &out); err != nil {
		return nil, fmt.Errorf("%s: %w", col, err)
	}
	return out, nil
}
