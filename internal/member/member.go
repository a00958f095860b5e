// Package member stores member accounts and their auxiliary records.
package member

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/membership/internal/ids"
	"github.com/roach88/membership/internal/storage"
)

var (
	ErrNotFound           = errors.New("member: not found")
	ErrEmailTaken         = errors.New("member: email already registered")
	ErrInvalidCredentials = errors.New("member: invalid credentials")
	ErrSessionExpired     = errors.New("member: session expired")
)

// Member is a registered account. The credential hash never leaves the
// package.
type Member struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	WalletAddress *string   `json:"wallet_address"`
	Roles         []string  `json:"roles"`
	CreatedAt     time.Time `json:"created_at"`

	passwordHash string
}

// Registration is the input to Register.
type Registration struct {
	Email         string
	FullName      string
	Password      string
	WalletAddress string
	Roles         []string
}

// Options configures a Store. Zero values select production defaults.
type Options struct {
	IDs ids.Generator
	Now func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Store reads and writes member records through a storage engine.
type Store struct {
	ids  ids.Generator
	now  func() time.Time
	cost int

	insertMember  *storage.Statement
	memberByID    *storage.Statement
	memberByEmail *storage.Statement
	updateRoles   *storage.Statement

	setPreference *storage.Statement
	preferences   *storage.Statement
	insertContent *storage.Statement
	listContent   *storage.Statement
	insertWeb3    *storage.Statement
	listWeb3      *storage.Statement
	insertSession *storage.Statement
	sessionByHash *storage.Statement
	deleteExpired *storage.Statement
	insertBrief   *storage.Statement
	listBriefs    *storage.Statement
	collectibles  *storage.Statement
	holdersByID   *storage.Statement
	allHolders    *storage.Statement
}

// New prepares every statement the store uses.
func New(eng storage.Engine, opts Options) (*Store, error) {
	s := &Store{ids: opts.IDs, now: opts.Now, cost: opts.BcryptCost}
	if s.ids == nil {
		s.ids = ids.UUIDv7Generator{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}

	stmts := []struct {
		dst  **storage.Statement
		text string
	}{
		{&s.insertMember, "INSERT INTO members (id, email, full_name, password_hash, wallet_address, roles, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"},
		{&s.memberByID, "SELECT * FROM members WHERE id = ?"},
		{&s.memberByEmail, "SELECT * FROM members WHERE email = ?"},
		{&s.updateRoles, "UPDATE members SET roles = ? WHERE id = ?"},
		{&s.setPreference, "INSERT OR REPLACE INTO member_preferences (member_id, preference_key, preference_value, updated_at) VALUES (?, ?, ?, ?)"},
		{&s.preferences, "SELECT * FROM member_preferences WHERE member_id = ? ORDER BY preference_key"},
		{&s.insertContent, "INSERT INTO content_interactions (id, member_id, content_type, content_id, interaction_type, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"},
		{&s.listContent, "SELECT * FROM content_interactions WHERE member_id = ? ORDER BY created_at DESC LIMIT ?"},
		{&s.insertWeb3, "INSERT INTO web3_verifications (id, member_id, wallet_address, verification_type, contract_address, token_id, verified, verified_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"},
		{&s.listWeb3, "SELECT * FROM web3_verifications WHERE member_id = ? ORDER BY verified_at DESC"},
		{&s.insertSession, "INSERT INTO member_sessions (id, member_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)"},
		{&s.sessionByHash, "SELECT * FROM member_sessions WHERE token_hash = ?"},
		{&s.deleteExpired, "DELETE FROM member_sessions WHERE expires_at <= ?"},
		{&s.insertBrief, "INSERT INTO concierge_briefs (id, member_id, request_type, details, status, created_at) VALUES (?, ?, ?, ?, ?, ?)"},
		{&s.listBriefs, "SELECT * FROM concierge_briefs WHERE member_id = ? ORDER BY created_at DESC"},
		{&s.collectibles, "SELECT * FROM collectibles ORDER BY tier_level, id"},
		{&s.holdersByID, "SELECT * FROM collectible_holders WHERE collectible_id = ? ORDER BY address"},
		{&s.allHolders, "SELECT * FROM collectible_holders ORDER BY address"},
	}
	for _, st := range stmts {
		prepared, err := eng.Prepare(st.text)
		if err != nil {
			return nil, fmt.Errorf("prepare member store: %w", err)
		}
		*st.dst = prepared
	}
	return s, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeAddress lower-cases a hex wallet address.
func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Register creates a member. The email is lower-cased and must be unique.
func (s *Store) Register(ctx context.Context, reg Registration) (Member, error) {
	email := normalizeEmail(reg.Email)
	if email == "" {
		return Member{}, fmt.Errorf("register: email is required")
	}
	if existing, err := s.memberByEmail.Get(ctx, email); err != nil {
		return Member{}, fmt.Errorf("register: %w", err)
	} else if existing != nil {
		return Member{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return Member{}, fmt.Errorf("register: hash password: %w", err)
	}
	roles := reg.Roles
	if roles == nil {
		roles = []string{"member"}
	}
	rolesJSON, err := storage.EncodeJSON(roles)
	if err != nil {
		return Member{}, fmt.Errorf("register: %w", err)
	}

	m := Member{
		ID:        s.ids.Generate(),
		Email:     email,
		FullName:  strings.TrimSpace(reg.FullName),
		Roles:     roles,
		CreatedAt: truncate(s.now()),

		passwordHash: string(hash),
	}
	if w := normalizeAddress(reg.WalletAddress); w != "" {
		m.WalletAddress = &w
	}

	_, err = s.insertMember.Run(ctx, m.ID, m.Email, m.FullName, m.passwordHash, m.WalletAddress, rolesJSON, m.CreatedAt)
	if errors.Is(err, storage.ErrConstraint) {
		return Member{}, ErrEmailTaken
	}
	if err != nil {
		return Member{}, fmt.Errorf("register: %w", err)
	}
	return m, nil
}

// Get returns the member with id.
func (s *Store) Get(ctx context.Context, id string) (Member, error) {
	return s.one(ctx, s.memberByID, id)
}

// GetByEmail looks a member up by email, case-insensitively.
func (s *Store) GetByEmail(ctx context.Context, email string) (Member, error) {
	return s.one(ctx, s.memberByEmail, normalizeEmail(email))
}

// Authenticate checks a password against the stored hash. Unknown emails
// and wrong passwords both return ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (Member, error) {
	m, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Member{}, ErrInvalidCredentials
	}
	if err != nil {
		return Member{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(password)); err != nil {
		return Member{}, ErrInvalidCredentials
	}
	return m, nil
}

// UpdateRoles replaces the member's role set.
func (s *Store) UpdateRoles(ctx context.Context, id string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	rolesJSON, err := storage.EncodeJSON(roles)
	if err != nil {
		return fmt.Errorf("update roles: %w", err)
	}
	res, err := s.updateRoles.Run(ctx, rolesJSON, id)
	if err != nil {
		return fmt.Errorf("update roles: %w", err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) one(ctx context.Context, stmt *storage.Statement, arg string) (Member, error) {
	row, err := stmt.Get(ctx, arg)
	if err != nil {
		return Member{}, fmt.Errorf("get member: %w", err)
	}
	if row == nil {
		return Member{}, ErrNotFound
	}
	return memberFromRow(row)
}

func memberFromRow(row storage.Row) (Member, error) {
	m := Member{
		ID:            row.String("id"),
		Email:         row.String("email"),
		FullName:      row.String("full_name"),
		WalletAddress: row.NullString("wallet_address"),
		Roles:         []string{},
		CreatedAt:     millis(row, "created_at"),

		passwordHash: row.String("password_hash"),
	}
	if err := storage.DecodeJSON(row["roles"], &m.Roles); err != nil {
		return Member{}, fmt.Errorf("member %s roles: %w", m.ID, err)
	}
	return m, nil
}

func millis(row storage.Row, col string) time.Time {
	return time.UnixMilli(row.Int(col)).UTC()
}
