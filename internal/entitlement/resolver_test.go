package entitlement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0xAbC0000000000000000000000000000000000001"

func seedWith(wallets, emails []Record) SeedAllowlist {
	for i := range wallets {
		wallets[i].Source = SourceSeed
	}
	for i := range emails {
		emails[i].Source = SourceSeed
	}
	return SeedAllowlist{Wallets: wallets, Emails: emails}
}

func TestLookup_EnvBeatsSeed(t *testing.T) {
	seed := seedWith([]Record{{Identifier: wallet, Tier: "Allowlisted"}}, nil)
	r := NewResolver(wallet+"|VIP Concierge|promoted by ops", "", seed)

	res := r.Lookup(Query{WalletAddress: wallet})
	require.NotNil(t, res.Wallet)
	assert.Equal(t, StatusVIP, res.Wallet.Status)
	require.NotNil(t, res.Wallet.Source)
	assert.Equal(t, SourceEnv, *res.Wallet.Source)
	assert.Equal(t, "VIP Concierge", *res.Wallet.Tier)
	assert.Equal(t, "promoted by ops", *res.Wallet.Note)
	assert.Equal(t, StatusVIP, res.Overall)
}

func TestLookup_UnknownIdentifier(t *testing.T) {
	r := NewResolver("", "", DefaultSeedAllowlist())

	res := r.Lookup(Query{WalletAddress: "0xnobody", Email: "nobody@example.com"})
	for _, e := range []*Entitlement{res.Wallet, res.Email} {
		require.NotNil(t, e)
		assert.Equal(t, StatusNotListed, e.Status)
		assert.Nil(t, e.Tier)
		assert.Nil(t, e.Source)
	}
	assert.Equal(t, StatusNotListed, res.Overall)

	data, err := json.Marshal(res.Wallet)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"not_listed","tier":null,"note":null,"source":null}`, string(data))
}

func TestLookup_CaseInsensitive(t *testing.T) {
	r := NewResolver("", "Ada@Example.COM|Waitlist", SeedAllowlist{})

	res := r.Lookup(Query{Email: "  ada@example.com "})
	require.NotNil(t, res.Email)
	assert.Equal(t, StatusWaitlist, res.Email.Status)
	assert.Nil(t, res.Wallet)
}

func TestLookup_SeedUsedWhenEnvAbsent(t *testing.T) {
	seed := seedWith(nil, []Record{{Identifier: "guest@example.com", Tier: "Allowlisted"}})
	r := NewResolver("0x1|VIP", "", seed)

	res := r.Lookup(Query{Email: "guest@example.com"})
	require.NotNil(t, res.Email)
	assert.Equal(t, StatusAllowlisted, res.Email.Status)
	assert.Equal(t, SourceSeed, *res.Email.Source)
}

func TestLookup_OverallIsStrongest(t *testing.T) {
	r := NewResolver("0x1|Waitlist", "vip@example.com|VIP", SeedAllowlist{})
	res := r.Lookup(Query{WalletAddress: "0x1", Email: "vip@example.com"})
	assert.Equal(t, StatusWaitlist, res.Wallet.Status)
	assert.Equal(t, StatusVIP, res.Overall)

	res = r.Lookup(Query{WalletAddress: "0x1", Email: "other@example.com"})
	assert.Equal(t, StatusWaitlist, res.Overall)
}

func TestLookup_EmptyQuery(t *testing.T) {
	res := NewResolver("", "", SeedAllowlist{}).Lookup(Query{})
	assert.Nil(t, res.Wallet)
	assert.Nil(t, res.Email)
	assert.Equal(t, StatusNotListed, res.Overall)
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		tier string
		want Status
	}{
		{"VIP Concierge", StatusVIP},
		{"vip", StatusVIP},
		{"Concierge Circle", StatusVIP},
		{"Waitlist", StatusWaitlist},
		{"waiting room", StatusWaitlist},
		{"Allowlisted", StatusAllowlisted},
		{"Founding Member", StatusAllowlisted},
		{"", StatusNotListed},
		{"   ", StatusNotListed},
	}
	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.tier))
		})
	}
}

func TestResolver_Size(t *testing.T) {
	seed := DefaultSeedAllowlist()
	r := NewResolver("0x71C7656EC7ab88b098defB751B7401B5f6d8976F|VIP,0xnew", "", seed)
	wallets, emails := r.Size()
	// One env wallet shadows a seed wallet.
	assert.Equal(t, len(seed.Wallets)+1, wallets)
	assert.Equal(t, len(seed.Emails), emails)
}
