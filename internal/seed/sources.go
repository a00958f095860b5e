package seed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

//go:embed defaults/achievements.json
var defaultAchievements []byte

//go:embed defaults/forum_posts.json
var defaultForumPosts []byte

// domain binds a table to its source file and row decoder. The domain name
// is also the table name.
type domain struct {
	name     string
	file     string
	fallback []byte
	insert   string
	decode   func(doc gjson.Result, now int64) ([][]any, error)
}

var domains = []domain{
	{
		name:   DomainCollectibles,
		file:   "tiers.json",
		insert: "INSERT OR IGNORE INTO collectibles (id, name, description, tier_level, max_supply, perks, image_url, contract_address, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		decode: decodeTiers,
	},
	{
		name:   DomainHolders,
		file:   "holders.json",
		insert: "INSERT OR IGNORE INTO collectible_holders (address, collectible_id, added_at) VALUES (?, ?, ?)",
		decode: decodeHolders,
	},
	{
		name:   DomainRecipes,
		file:   "recipes.json",
		insert: "INSERT OR IGNORE INTO recipes (id, slug, title, description, category, difficulty, prep_minutes, tags, members_only, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		decode: decodeRecipes,
	},
	{
		name:     DomainAchievements,
		file:     "achievements.json",
		fallback: defaultAchievements,
		insert:   "INSERT OR IGNORE INTO achievements (id, title, description, category, rarity, points, requirement, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		decode:   decodeAchievements,
	},
	{
		name:     DomainForumPosts,
		file:     "forum_posts.json",
		fallback: defaultForumPosts,
		insert:   "INSERT OR IGNORE INTO forum_posts (id, member_id, author_name, title, body, category, tags, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		decode:   decodeForumPosts,
	},
}

func decodeTiers(doc gjson.Result, now int64) ([][]any, error) {
	items, err := records(doc, "tiers")
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(items))
	for i, t := range items {
		if err := requireStrings(i, t, "id", "name"); err != nil {
			return nil, err
		}
		level := int64(i + 1)
		if v := t.Get("tier_level"); v.Exists() {
			level = v.Int()
		}
		rows = append(rows, []any{
			t.Get("id").String(),
			t.Get("name").String(),
			t.Get("description").String(),
			level,
			nullableInt(t.Get("max_supply")),
			stringArray(t.Get("perks")),
			nullableString(t.Get("image_url")),
			nullableString(t.Get("contract_address")),
			now,
		})
	}
	return rows, nil
}

// decodeHolders accepts [{"address","collectible_id"}] or
// {"<collectible id>": ["0x..", ...]}. Addresses are lower-cased.
func decodeHolders(doc gjson.Result, now int64) ([][]any, error) {
	var rows [][]any
	switch {
	case doc.IsArray():
		for i, h := range doc.Array() {
			if err := requireStrings(i, h, "address", "collectible_id"); err != nil {
				return nil, err
			}
			rows = append(rows, []any{strings.ToLower(h.Get("address").String()), h.Get("collectible_id").String(), now})
		}
	case doc.IsObject():
		var bad error
		doc.ForEach(func(key, value gjson.Result) bool {
			if !value.IsArray() {
				bad = fmt.Errorf("%w: holders for %q must be an array", ErrMalformedSource, key.String())
				return false
			}
			for _, addr := range value.Array() {
				if addr.Type != gjson.String {
					bad = fmt.Errorf("%w: holder address for %q must be a string", ErrMalformedSource, key.String())
					return false
				}
				rows = append(rows, []any{strings.ToLower(addr.String()), key.String(), now})
			}
			return true
		})
		if bad != nil {
			return nil, bad
		}
	default:
		return nil, fmt.Errorf("%w: holders must be an array or an object", ErrMalformedSource)
	}
	return rows, nil
}

func decodeRecipes(doc gjson.Result, now int64) ([][]any, error) {
	items, err := records(doc, "recipes")
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(items))
	for i, r := range items {
		if err := requireStrings(i, r, "id", "title"); err != nil {
			return nil, err
		}
		slug := r.Get("slug").String()
		if slug == "" {
			slug = r.Get("id").String()
		}
		rows = append(rows, []any{
			r.Get("id").String(),
			slug,
			r.Get("title").String(),
			r.Get("description").String(),
			r.Get("category").String(),
			r.Get("difficulty").String(),
			r.Get("prep_minutes").Int(),
			stringArray(r.Get("tags")),
			r.Get("members_only").Bool(),
			now,
		})
	}
	return rows, nil
}

func decodeAchievements(doc gjson.Result, now int64) ([][]any, error) {
	items, err := records(doc, "achievements")
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(items))
	for i, a := range items {
		if err := requireStrings(i, a, "id", "title"); err != nil {
			return nil, err
		}
		requirement := "{}"
		if req := a.Get("requirement"); req.Exists() {
			if !req.IsObject() {
				return nil, fmt.Errorf("%w: record %d: requirement must be an object", ErrMalformedSource, i)
			}
			requirement = compact(req.Raw)
		}
		active := true
		if v := a.Get("is_active"); v.Exists() {
			active = v.Bool()
		}
		rows = append(rows, []any{
			a.Get("id").String(),
			a.Get("title").String(),
			a.Get("description").String(),
			withDefault(a.Get("category"), "general"),
			withDefault(a.Get("rarity"), "common"),
			a.Get("points").Int(),
			requirement,
			active,
			now,
		})
	}
	return rows, nil
}

func decodeForumPosts(doc gjson.Result, now int64) ([][]any, error) {
	items, err := records(doc, "posts")
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, len(items))
	for i, p := range items {
		if err := requireStrings(i, p, "id", "title"); err != nil {
			return nil, err
		}
		created := now
		if v := p.Get("created_at"); v.Type == gjson.Number {
			created = v.Int()
		}
		rows = append(rows, []any{
			p.Get("id").String(),
			nullableString(p.Get("member_id")),
			p.Get("author_name").String(),
			p.Get("title").String(),
			p.Get("body").String(),
			withDefault(p.Get("category"), "general"),
			stringArray(p.Get("tags")),
			created,
		})
	}
	return rows, nil
}

// records returns the top-level array, or the array under key when the
// document is an object.
func records(doc gjson.Result, key string) ([]gjson.Result, error) {
	if doc.IsArray() {
		return doc.Array(), nil
	}
	if doc.IsObject() {
		if v := doc.Get(key); v.IsArray() {
			return v.Array(), nil
		}
	}
	return nil, fmt.Errorf("%w: expected an array of %s", ErrMalformedSource, key)
}

func requireStrings(i int, rec gjson.Result, fields ...string) error {
	if !rec.IsObject() {
		return fmt.Errorf("%w: record %d is not an object", ErrMalformedSource, i)
	}
	for _, f := range fields {
		v := rec.Get(f)
		if v.Type != gjson.String || v.String() == "" {
			return fmt.Errorf("%w: record %d: %s must be a non-empty string", ErrMalformedSource, i, f)
		}
	}
	return nil
}

func stringArray(v gjson.Result) string {
	out := []string{}
	if v.IsArray() {
		for _, item := range v.Array() {
			out = append(out, item.String())
		}
	}
	data, _ := json.Marshal(out)
	return string(data)
}

func compact(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}

func nullableString(v gjson.Result) any {
	if v.Type != gjson.String {
		return nil
	}
	return v.String()
}

func nullableInt(v gjson.Result) any {
	if v.Type != gjson.Number {
		return nil
	}
	return v.Int()
}

func withDefault(v gjson.Result, def string) string {
	if s := v.String(); s != "" {
		return s
	}
	return def
}
