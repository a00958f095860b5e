package entitlement

import (
	"strings"
	"time"
)

// AccessKey is a protocol-issued membership key fetched by the caller.
type AccessKey struct {
	KeyID     string    `json:"key_id"`
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttendanceProof is an event-attendance credential for a wallet.
type AttendanceProof struct {
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	Wallet     string    `json:"wallet"`
	AttendedAt time.Time `json:"attended_at"`
}

// KeyView summarises an access key.
type KeyView struct {
	KeyID     string     `json:"key_id"`
	Valid     bool       `json:"valid"`
	Expired   bool       `json:"expired"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// AccessView is the read-only credential summary for one wallet.
type AccessView struct {
	Wallet           string            `json:"wallet"`
	HoldsCollectible bool              `json:"holds_collectible"`
	AccessKey        *KeyView          `json:"access_key"`
	Attendance       []AttendanceProof `json:"attendance"`
	HasAccess        bool              `json:"has_access"`
}

// BuildAccessView combines collectible holding, access-key status and the
// wallet's attendance proofs. Address matching is case-insensitive. A zero
// ExpiresAt means the key does not expire. key may be nil.
func BuildAccessView(wallet string, holders []string, key *AccessKey, proofs []AttendanceProof, now time.Time) AccessView {
	view := AccessView{Wallet: strings.ToLower(strings.TrimSpace(wallet)), Attendance: []AttendanceProof{}}

	for _, h := range holders {
		if strings.EqualFold(strings.TrimSpace(h), view.Wallet) {
			view.HoldsCollectible = true
			break
		}
	}

	if key != nil {
		kv := &KeyView{KeyID: key.KeyID}
		if !key.ExpiresAt.IsZero() {
			exp := key.ExpiresAt
			kv.ExpiresAt = &exp
			kv.Expired = !now.Before(exp)
		}
		kv.Valid = key.Valid && !kv.Expired
		view.AccessKey = kv
	}

	for _, p := range proofs {
		if p.Wallet == "" || strings.EqualFold(p.Wallet, view.Wallet) {
			view.Attendance = append(view.Attendance, p)
		}
	}

	view.HasAccess = view.HoldsCollectible ||
		(view.AccessKey != nil && view.AccessKey.Valid) ||
		len(view.Attendance) > 0
	return view
}
