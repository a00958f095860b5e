package member

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/membership/internal/storage"
	"github.com/roach88/membership/internal/testutil"
)

func newStore(t *testing.T, eng storage.Engine) *Store {
	t.Helper()
	s, err := New(eng, Options{
		IDs:        testutil.NewSequentialGenerator("row"),
		Now:        testutil.NewStepClock().Now,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	return s
}

func TestRegister_AndGet(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)

		m, err := s.Register(ctx, Registration{
			Email:         "  Ada@Example.com ",
			FullName:      "Ada Lovelace",
			Password:      "analytical",
			WalletAddress: "0xABCDEF",
		})
		require.NoError(t, err)
		assert.Equal(t, "row-1", m.ID)
		assert.Equal(t, "ada@example.com", m.Email)
		assert.Equal(t, []string{"member"}, m.Roles)
		require.NotNil(t, m.WalletAddress)
		assert.Equal(t, "0xabcdef", *m.WalletAddress)
		assert.Equal(t, testutil.Epoch, m.CreatedAt)

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m, got)

		byEmail, err := s.GetByEmail(ctx, "ADA@example.COM")
		require.NoError(t, err)
		assert.Equal(t, m.ID, byEmail.ID)
	})
}

func TestRegister_EmailTaken(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)

		_, err := s.Register(ctx, Registration{Email: "ada@example.com", Password: "pw"})
		require.NoError(t, err)
		_, err = s.Register(ctx, Registration{Email: "ADA@example.com", Password: "pw"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestRegister_RequiresEmail(t *testing.T) {
	s := newStore(t, testutil.NewMemory(t))
	_, err := s.Register(context.Background(), Registration{Email: "  "})
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		s := newStore(t, eng)
		_, err := s.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, testutil.NewMemory(t))
	reg, err := s.Register(ctx, Registration{Email: "ada@example.com", Password: "analytical"})
	require.NoError(t, err)

	m, err := s.Authenticate(ctx, "Ada@example.com", "analytical")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, m.ID)

	_, err = s.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate(ctx, "nobody@example.com", "analytical")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateRoles(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)
		m, err := s.Register(ctx, Registration{Email: "ada@example.com", Password: "pw"})
		require.NoError(t, err)

		require.NoError(t, s.UpdateRoles(ctx, m.ID, []string{"member", "vip"}))
		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"member", "vip"}, got.Roles)

		assert.ErrorIs(t, s.UpdateRoles(ctx, "missing", nil), ErrNotFound)
	})
}

func TestPreferences_Replace(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)

		require.NoError(t, s.SetPreference(ctx, "m1", "theme", "dark"))
		require.NoError(t, s.SetPreference(ctx, "m1", "digest", map[string]any{"weekly": true}))
		require.NoError(t, s.SetPreference(ctx, "m1", "theme", "light"))

		prefs, err := s.GetPreferences(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"theme":  "light",
			"digest": map[string]any{"weekly": true},
		}, prefs)
		assert.Equal(t, int64(2), testutil.Count(t, eng, "member_preferences"))
	})
}

func TestContentInteractions_NewestFirst(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)

		for _, id := range []string{"r1", "r2", "r3"} {
			_, err := s.RecordContentInteraction(ctx, ContentInteraction{
				MemberID:        "m1",
				ContentType:     "recipe",
				ContentID:       id,
				InteractionType: "view",
			})
			require.NoError(t, err)
		}

		got, err := s.ListContentInteractions(ctx, "m1", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "r3", got[0].ContentID)
		assert.Equal(t, "r2", got[1].ContentID)
		assert.Equal(t, map[string]any{}, got[0].Metadata)
	})
}

func TestWeb3Verifications(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)
		contract := "0xC0FFEE"

		rec, err := s.RecordWeb3Verification(ctx, Web3Verification{
			MemberID:         "m1",
			WalletAddress:    "0xAbC",
			VerificationType: "collectible",
			ContractAddress:  &contract,
			Verified:         true,
			Metadata:         map[string]any{"chain": "neo"},
		})
		require.NoError(t, err)
		assert.Equal(t, "0xabc", rec.WalletAddress)

		list, err := s.ListWeb3Verifications(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, rec, list[0])
		assert.Nil(t, list[0].TokenID)
	})
}

func TestSessions_Lifecycle(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)

		short, tok1, err := s.CreateSession(ctx, "m1", 3*time.Second)
		require.NoError(t, err)
		assert.Len(t, tok1, 64)
		_, tok2, err := s.CreateSession(ctx, "m2", time.Hour)
		require.NoError(t, err)
		assert.NotEqual(t, tok1, tok2)

		got, err := s.GetSession(ctx, tok1)
		require.NoError(t, err)
		assert.Equal(t, short, got)

		_, err = s.GetSession(ctx, tok1)
		assert.ErrorIs(t, err, ErrSessionExpired)

		_, err = s.GetSession(ctx, "bogus")
		assert.ErrorIs(t, err, ErrNotFound)

		n, err := s.DeleteExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = s.GetSession(ctx, tok1)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetSession(ctx, tok2)
		assert.NoError(t, err)
	})
}

func TestSessions_TokenNotStored(t *testing.T) {
	eng := testutil.NewMemory(t)
	s := newStore(t, eng)
	_, token, err := s.CreateSession(context.Background(), "m1", time.Hour)
	require.NoError(t, err)

	stmt, err := eng.Prepare("SELECT * FROM member_sessions WHERE token_hash = ?")
	require.NoError(t, err)
	row, err := stmt.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestConciergeBriefs(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		s := newStore(t, eng)

		_, err := s.SubmitConciergeBrief(ctx, "m1", "dinner", "Table for four")
		require.NoError(t, err)
		second, err := s.SubmitConciergeBrief(ctx, "m1", "travel", "Lisbon in May")
		require.NoError(t, err)

		briefs, err := s.ListConciergeBriefs(ctx, "m1")
		require.NoError(t, err)
		require.Len(t, briefs, 2)
		assert.Equal(t, second, briefs[0])
		assert.Equal(t, BriefPending, briefs[1].Status)
	})
}

func TestCollectiblesAndHolders(t *testing.T) {
	testutil.EachBackend(t, func(t *testing.T, eng storage.Engine) {
		ctx := context.Background()
		tiers, err := eng.Prepare("INSERT INTO collectibles (id, name, tier_level, max_supply, perks, created_at) VALUES (?, ?, ?, ?, ?, ?)")
		require.NoError(t, err)
		_, err = tiers.Run(ctx, "gold", "Gold Key", 3, nil, `["concierge"]`, 1)
		require.NoError(t, err)
		_, err = tiers.Run(ctx, "bronze", "Bronze Key", 1, 1000, `[]`, 1)
		require.NoError(t, err)

		holders, err := eng.Prepare("INSERT INTO collectible_holders (address, collectible_id, added_at) VALUES (?, ?, ?)")
		require.NoError(t, err)
		for _, h := range [][2]string{{"0xbbb", "gold"}, {"0xaaa", "gold"}, {"0xaaa", "bronze"}} {
			_, err := holders.Run(ctx, h[0], h[1], 1)
			require.NoError(t, err)
		}

		s := newStore(t, eng)
		list, err := s.ListCollectibles(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "bronze", list[0].ID)
		require.NotNil(t, list[0].MaxSupply)
		assert.Equal(t, int64(1000), *list[0].MaxSupply)
		assert.Nil(t, list[1].MaxSupply)
		assert.Equal(t, []string{"concierge"}, list[1].Perks)

		gold, err := s.HolderAddresses(ctx, "gold")
		require.NoError(t, err)
		assert.Equal(t, []string{"0xaaa", "0xbbb"}, gold)

		all, err := s.HolderAddresses(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"0xaaa", "0xbbb"}, all)
	})
}
