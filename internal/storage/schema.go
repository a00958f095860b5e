package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the declared SQLite type of a column. It also drives type
// affinity in the memory backend.
type ColumnType string

const (
	Text    ColumnType = "TEXT"
	Integer ColumnType = "INTEGER"
	Real    ColumnType = "REAL"
)

// Column describes one table column.
type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
	Unique  bool
	// Default is used when an INSERT omits the column. nil means NULL.
	Default any
	// References is rendered as a REFERENCES clause. Foreign keys are not
	// enforced on either backend.
	References string
}

// Index is a secondary index.
type Index struct {
	Name    string
	Columns []string
}

// Table is the declarative definition shared by both backends.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Indexes    []Index
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// DDL renders CREATE TABLE / CREATE INDEX statements. Every statement uses
// IF NOT EXISTS so applying it twice is a no-op.
func (t Table) DDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	for i, c := range t.Columns {
		fmt.Fprintf(&b, "    %s %s", c.Name, c.Type)
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.Unique {
			b.WriteString(" UNIQUE")
		}
		if c.Default != nil {
			fmt.Fprintf(&b, " DEFAULT %s", sqlLiteral(c.Default))
		}
		if c.References != "" {
			fmt.Fprintf(&b, " REFERENCES %s", c.References)
		}
		if i < len(t.Columns)-1 || len(t.PrimaryKey) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(t.PrimaryKey) > 0 {
		fmt.Fprintf(&b, "    PRIMARY KEY (%s)\n", strings.Join(t.PrimaryKey, ", "))
	}
	b.WriteString(");\n")
	for _, idx := range t.Indexes {
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s(%s);\n",
			idx.Name, t.Name, strings.Join(idx.Columns, ", "))
	}
	return b.String()
}

func (t Table) validate() error {
	if t.Name == "" {
		return fmt.Errorf("table without name")
	}
	if len(t.PrimaryKey) == 0 {
		return fmt.Errorf("table %s: no primary key", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
		}
		seen[c.Name] = true
	}
	for _, pk := range t.PrimaryKey {
		if !seen[pk] {
			return fmt.Errorf("table %s: primary key column %s not declared", t.Name, pk)
		}
	}
	for _, idx := range t.Indexes {
		for _, col := range idx.Columns {
			if !seen[col] {
				return fmt.Errorf("index %s: unknown column %s", idx.Name, col)
			}
		}
	}
	return nil
}

func sqlLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("'%v'", x)
	}
}

// Schema is the full table set. Timestamps are unix milliseconds.
var Schema = []Table{
	{
		Name: "members",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "email", Type: Text, NotNull: true, Unique: true},
			{Name: "full_name", Type: Text, NotNull: true, Default: ""},
			{Name: "password_hash", Type: Text, NotNull: true, Default: ""},
			{Name: "wallet_address", Type: Text},
			{Name: "roles", Type: Text, NotNull: true, Default: "[]"},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_members_wallet", Columns: []string{"wallet_address"}}},
	},
	{
		Name: "achievements",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "title", Type: Text, NotNull: true},
			{Name: "description", Type: Text, NotNull: true, Default: ""},
			{Name: "category", Type: Text, NotNull: true, Default: "general"},
			{Name: "rarity", Type: Text, NotNull: true, Default: "common"},
			{Name: "points", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "requirement", Type: Text, NotNull: true, Default: "{}"},
			{Name: "is_active", Type: Integer, NotNull: true, Default: int64(1)},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_achievements_category", Columns: []string{"category"}}},
	},
	{
		Name: "member_achievements",
		Columns: []Column{
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "achievement_id", Type: Text, NotNull: true},
			{Name: "progress", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "max_progress", Type: Integer, NotNull: true, Default: int64(1)},
			{Name: "points_earned", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "unlocked_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"member_id", "achievement_id"},
		Indexes:    []Index{{Name: "idx_member_achievements_member", Columns: []string{"member_id"}}},
	},
	{
		Name: "member_activity",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "activity_type", Type: Text, NotNull: true},
			{Name: "activity_data", Type: Text, NotNull: true, Default: "{}"},
			{Name: "metadata", Type: Text, NotNull: true, Default: "{}"},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes: []Index{
			{Name: "idx_member_activity_member", Columns: []string{"member_id"}},
			{Name: "idx_member_activity_created", Columns: []string{"created_at"}},
		},
	},
	{
		Name: "analytics_metrics",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "metric_name", Type: Text, NotNull: true},
			{Name: "metric_value", Type: Real, NotNull: true, Default: float64(0)},
			{Name: "metadata", Type: Text, NotNull: true, Default: "{}"},
			{Name: "recorded_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_analytics_metrics_member", Columns: []string{"member_id", "metric_name"}}},
	},
	{
		Name: "community_leaderboard",
		Columns: []Column{
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "points", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "level", Type: Integer, NotNull: true, Default: int64(1)},
			{Name: "rank", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "achievements_count", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "recipes_viewed", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "forum_posts", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "has_nft", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "badges", Type: Text, NotNull: true, Default: "[]"},
			{Name: "last_updated", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"member_id"},
		Indexes:    []Index{{Name: "idx_leaderboard_points", Columns: []string{"points"}}},
	},
	{
		Name: "content_interactions",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "content_type", Type: Text, NotNull: true},
			{Name: "content_id", Type: Text, NotNull: true},
			{Name: "interaction_type", Type: Text, NotNull: true},
			{Name: "metadata", Type: Text, NotNull: true, Default: "{}"},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_content_interactions_member", Columns: []string{"member_id"}}},
	},
	{
		Name: "web3_verifications",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "wallet_address", Type: Text, NotNull: true},
			{Name: "verification_type", Type: Text, NotNull: true},
			{Name: "contract_address", Type: Text},
			{Name: "token_id", Type: Text},
			{Name: "verified", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "verified_at", Type: Integer, NotNull: true},
			{Name: "metadata", Type: Text, NotNull: true, Default: "{}"},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_web3_verifications_member", Columns: []string{"member_id"}}},
	},
	{
		Name: "member_preferences",
		Columns: []Column{
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "preference_key", Type: Text, NotNull: true},
			{Name: "preference_value", Type: Text, NotNull: true, Default: "null"},
			{Name: "updated_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"member_id", "preference_key"},
		Indexes:    []Index{{Name: "idx_member_preferences_key", Columns: []string{"preference_key"}}},
	},
	{
		Name: "concierge_briefs",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "request_type", Type: Text, NotNull: true},
			{Name: "details", Type: Text, NotNull: true, Default: ""},
			{Name: "status", Type: Text, NotNull: true, Default: "pending"},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_concierge_briefs_member", Columns: []string{"member_id"}}},
	},
	{
		Name: "member_sessions",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "member_id", Type: Text, NotNull: true, References: "members(id)"},
			{Name: "token_hash", Type: Text, NotNull: true, Unique: true},
			{Name: "expires_at", Type: Integer, NotNull: true},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_member_sessions_member", Columns: []string{"member_id"}}},
	},
	{
		Name: "collectibles",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "name", Type: Text, NotNull: true},
			{Name: "description", Type: Text, NotNull: true, Default: ""},
			{Name: "tier_level", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "max_supply", Type: Integer},
			{Name: "perks", Type: Text, NotNull: true, Default: "[]"},
			{Name: "image_url", Type: Text},
			{Name: "contract_address", Type: Text},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
	},
	{
		Name: "collectible_holders",
		Columns: []Column{
			{Name: "address", Type: Text, NotNull: true},
			{Name: "collectible_id", Type: Text, NotNull: true},
			{Name: "added_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"address", "collectible_id"},
		Indexes:    []Index{{Name: "idx_collectible_holders_collectible", Columns: []string{"collectible_id"}}},
	},
	{
		Name: "recipes",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "slug", Type: Text, NotNull: true, Unique: true},
			{Name: "title", Type: Text, NotNull: true},
			{Name: "description", Type: Text, NotNull: true, Default: ""},
			{Name: "category", Type: Text, NotNull: true, Default: ""},
			{Name: "difficulty", Type: Text, NotNull: true, Default: ""},
			{Name: "prep_minutes", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "tags", Type: Text, NotNull: true, Default: "[]"},
			{Name: "members_only", Type: Integer, NotNull: true, Default: int64(0)},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_recipes_category", Columns: []string{"category"}}},
	},
	{
		Name: "forum_posts",
		Columns: []Column{
			{Name: "id", Type: Text, NotNull: true},
			{Name: "member_id", Type: Text},
			{Name: "author_name", Type: Text, NotNull: true, Default: ""},
			{Name: "title", Type: Text, NotNull: true},
			{Name: "body", Type: Text, NotNull: true, Default: ""},
			{Name: "category", Type: Text, NotNull: true, Default: "general"},
			{Name: "tags", Type: Text, NotNull: true, Default: "[]"},
			{Name: "created_at", Type: Integer, NotNull: true},
		},
		PrimaryKey: []string{"id"},
		Indexes:    []Index{{Name: "idx_forum_posts_created", Columns: []string{"created_at"}}},
	},
}

// SchemaSQL renders the DDL for every table in tables.
func SchemaSQL(tables []Table) string {
	var b strings.Builder
	for _, t := range tables {
		b.WriteString(t.DDL())
		b.WriteString("\n")
	}
	return b.String()
}

func validateSchema(tables []Table) error {
	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if err := t.validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate table %s", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
