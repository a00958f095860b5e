package entitlement

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Source is where an allowlist record came from.
type Source string

const (
	SourceEnv  Source = "env"
	SourceSeed Source = "seed"
)

// DefaultTier is assigned to records with a blank tier.
const DefaultTier = "Allowlisted"

// Record is one allowlist entry for a wallet address or an email.
type Record struct {
	Identifier string `json:"identifier"`
	Tier       string `json:"tier"`
	Note       string `json:"note,omitempty"`
	Source     Source `json:"-"`
}

// SeedAllowlist is the static allowlist shipped with the deployment.
type SeedAllowlist struct {
	Wallets []Record `json:"wallets"`
	Emails  []Record `json:"emails"`
}

//go:embed allowlist.json
var defaultSeedAllowlist []byte

// ParseAllowlist parses records separated by newlines or commas, each of
// the form "identifier|tier|note". Tier and note are optional. Blank
// records and records without an identifier are dropped.
func ParseAllowlist(raw string, source Source) []Record {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	var out []Record
	for _, f := range fields {
		parts := strings.SplitN(f, "|", 3)
		id := normalize(parts[0])
		if id == "" {
			continue
		}
		rec := Record{Identifier: id, Tier: DefaultTier, Source: source}
		if len(parts) > 1 {
			if tier := strings.TrimSpace(parts[1]); tier != "" {
				rec.Tier = tier
			}
		}
		if len(parts) > 2 {
			rec.Note = strings.TrimSpace(parts[2])
		}
		out = append(out, rec)
	}
	return out
}

// LoadSeedAllowlist decodes a seed allowlist document. Identifiers are
// normalised and every record is tagged with SourceSeed.
func LoadSeedAllowlist(data []byte) (SeedAllowlist, error) {
	var list SeedAllowlist
	if err := json.Unmarshal(data, &list); err != nil {
		return SeedAllowlist{}, fmt.Errorf("decode seed allowlist: %w", err)
	}
	list.Wallets = tagSeed(list.Wallets)
	list.Emails = tagSeed(list.Emails)
	return list, nil
}

// DefaultSeedAllowlist returns the embedded seed allowlist.
func DefaultSeedAllowlist() SeedAllowlist {
	list, err := LoadSeedAllowlist(defaultSeedAllowlist)
	if err != nil {
		panic(err)
	}
	return list
}

func tagSeed(recs []Record) []Record {
	out := recs[:0]
	for _, r := range recs {
		r.Identifier = normalize(r.Identifier)
		if r.Identifier == "" {
			continue
		}
		if strings.TrimSpace(r.Tier) == "" {
			r.Tier = DefaultTier
		}
		r.Source = SourceSeed
		out = append(out, r)
	}
	return out
}

// normalize case-folds an identifier. A Caser is stateful, so one is built
// per call.
func normalize(id string) string {
	return cases.Fold().String(strings.TrimSpace(id))
}
