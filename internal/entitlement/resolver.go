// Package entitlement resolves access status for wallets and emails.
//
// Allowlist records come from two static sources: operator-supplied
// environment strings and the seed allowlist. Environment records are loaded
// first and a seed record is only added for identifiers not already present,
// so the environment always wins. The resolver never touches storage.
package entitlement

import "strings"

// Status is the merged access verdict for one identifier.
type Status string

const (
	StatusVIP         Status = "vip"
	StatusAllowlisted Status = "allowlisted"
	StatusWaitlist    Status = "waitlist"
	StatusNotListed   Status = "not_listed"
)

// rank orders statuses from weakest to strongest.
func (s Status) rank() int {
	switch s {
	case StatusVIP:
		return 3
	case StatusAllowlisted:
		return 2
	case StatusWaitlist:
		return 1
	default:
		return 0
	}
}

// DeriveStatus maps a tier label to a status. The match is lexical and
// case-insensitive: "vip" or "concierge" is vip, "wait" is waitlist, any
// other non-empty label is allowlisted.
func DeriveStatus(tier string) Status {
	t := strings.ToLower(strings.TrimSpace(tier))
	switch {
	case t == "":
		return StatusNotListed
	case strings.Contains(t, "vip"), strings.Contains(t, "concierge"):
		return StatusVIP
	case strings.Contains(t, "wait"):
		return StatusWaitlist
	default:
		return StatusAllowlisted
	}
}

// Query names the identifiers to resolve. Either may be empty.
type Query struct {
	WalletAddress string `json:"wallet_address,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Entitlement is the resolution for one identifier. Tier, Note and Source
// are nil for identifiers on neither allowlist.
type Entitlement struct {
	Status Status  `json:"status"`
	Tier   *string `json:"tier"`
	Note   *string `json:"note"`
	Source *Source `json:"source"`
}

// Result holds one Entitlement per queried identifier. Overall is the
// strongest of the two.
type Result struct {
	Wallet  *Entitlement `json:"wallet,omitempty"`
	Email   *Entitlement `json:"email,omitempty"`
	Overall Status       `json:"overall"`
}

// Resolver answers Lookup from merged allowlists. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	wallets map[string]Record
	emails  map[string]Record
}

// NewResolver parses the environment strings and merges seed records under
// them.
func NewResolver(envWallets, envEmails string, seed SeedAllowlist) *Resolver {
	return &Resolver{
		wallets: merge(ParseAllowlist(envWallets, SourceEnv), seed.Wallets),
		emails:  merge(ParseAllowlist(envEmails, SourceEnv), seed.Emails),
	}
}

// merge inserts env records then seed records, keeping the first record
// seen for each identifier.
func merge(env, seed []Record) map[string]Record {
	out := make(map[string]Record, len(env)+len(seed))
	for _, group := range [][]Record{env, seed} {
		for _, r := range group {
			id := normalize(r.Identifier)
			if _, ok := out[id]; ok {
				continue
			}
			r.Identifier = id
			out[id] = r
		}
	}
	return out
}

// Lookup resolves the queried identifiers. Unknown identifiers resolve to
// not_listed; it never fails.
func (r *Resolver) Lookup(q Query) Result {
	res := Result{Overall: StatusNotListed}
	if strings.TrimSpace(q.WalletAddress) != "" {
		e := resolve(r.wallets, q.WalletAddress)
		res.Wallet = &e
	}
	if strings.TrimSpace(q.Email) != "" {
		e := resolve(r.emails, q.Email)
		res.Email = &e
	}
	for _, e := range []*Entitlement{res.Wallet, res.Email} {
		if e != nil && e.Status.rank() > res.Overall.rank() {
			res.Overall = e.Status
		}
	}
	return res
}

// Size reports how many wallet and email records are loaded.
func (r *Resolver) Size() (wallets, emails int) {
	return len(r.wallets), len(r.emails)
}

func resolve(records map[string]Record, identifier string) Entitlement {
	rec, ok := records[normalize(identifier)]
	if !ok {
		return Entitlement{Status: StatusNotListed}
	}
	e := Entitlement{
		Status: DeriveStatus(rec.Tier),
		Tier:   &rec.Tier,
		Source: &rec.Source,
	}
	if rec.Note != "" {
		e.Note = &rec.Note
	}
	return e
}
