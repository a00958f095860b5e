package member

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Session is a login session. Only a hash of the bearer token is stored.
type Session struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession issues a bearer token valid for ttl. The token is returned
// once and cannot be recovered from storage.
func (s *Store) CreateSession(ctx context.Context, memberID string, ttl time.Duration) (Session, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, "", fmt.Errorf("create session: %w", err)
	}
	token := hex.EncodeToString(buf)

	now := truncate(s.now())
	sess := Session{
		ID:        s.ids.Generate(),
		MemberID:  memberID,
		ExpiresAt: truncate(now.Add(ttl)),
		CreatedAt: now,
	}
	if _, err := s.insertSession.Run(ctx, sess.ID, sess.MemberID, hashToken(token), sess.ExpiresAt, sess.CreatedAt); err != nil {
		return Session{}, "", fmt.Errorf("create session: %w", err)
	}
	return sess, token, nil
}

// GetSession resolves a bearer token. Unknown tokens return ErrNotFound,
// expired ones ErrSessionExpired.
func (s *Store) GetSession(ctx context.Context, token string) (Session, error) {
	row, err := s.sessionByHash.Get(ctx, hashToken(token))
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if row == nil {
		return Session{}, ErrNotFound
	}
	sess := Session{
		ID:        row.String("id"),
		MemberID:  row.String("member_id"),
		ExpiresAt: millis(row, "expires_at"),
		CreatedAt: millis(row, "created_at"),
	}
	if !s.now().Before(sess.ExpiresAt) {
		return sess, ErrSessionExpired
	}
	return sess, nil
}

// DeleteExpiredSessions removes sessions expired at or before now and
// reports how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.deleteExpired.Run(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected, nil
}

func hashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
