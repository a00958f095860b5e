package member

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/membership/internal/storage"
)

// SetPreference stores value under key, replacing any previous value.
func (s *Store) SetPreference(ctx context.Context, memberID, key string, value any) error {
	raw, err := storage.EncodeJSON(value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	if _, err := s.setPreference.Run(ctx, memberID, key, raw, s.now()); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// GetPreferences returns every stored preference for the member.
func (s *Store) GetPreferences(ctx context.Context, memberID string) (map[string]any, error) {
	rows, err := s.preferences.All(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	out := make(map[string]any, len(rows))
	for _, row := range rows {
		var v any
		if err := storage.DecodeJSON(row["preference_value"], &v); err != nil {
			return nil, fmt.Errorf("preference %s: %w", row.String("preference_key"), err)
		}
		out[row.String("preference_key")] = v
	}
	return out, nil
}

// ContentInteraction records a member touching a piece of content.
type ContentInteraction struct {
	ID              string         `json:"id"`
	MemberID        string         `json:"member_id"`
	ContentType     string         `json:"content_type"`
	ContentID       string         `json:"content_id"`
	InteractionType string         `json:"interaction_type"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
}

// RecordContentInteraction appends an interaction.
func (s *Store) RecordContentInteraction(ctx context.Context, in ContentInteraction) (ContentInteraction, error) {
	if in.Metadata == nil {
		in.Metadata = map[string]any{}
	}
	meta, err := storage.EncodeJSON(in.Metadata)
	if err != nil {
		return ContentInteraction{}, fmt.Errorf("record content interaction: %w", err)
	}
	in.ID = s.ids.Generate()
	in.CreatedAt = truncate(s.now())
	if _, err := s.insertContent.Run(ctx, in.ID, in.MemberID, in.ContentType, in.ContentID, in.InteractionType, meta, in.CreatedAt); err != nil {
		return ContentInteraction{}, fmt.Errorf("record content interaction: %w", err)
	}
	return in, nil
}

// ListContentInteractions returns the member's most recent interactions.
func (s *Store) ListContentInteractions(ctx context.Context, memberID string, limit int) ([]ContentInteraction, error) {
	rows, err := s.listContent.All(ctx, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("list content interactions: %w", err)
	}
	out := make([]ContentInteraction, 0, len(rows))
	for _, row := range rows {
		ci := ContentInteraction{
			ID:              row.String("id"),
			MemberID:        row.String("member_id"),
			ContentType:     row.String("content_type"),
			ContentID:       row.String("content_id"),
			InteractionType: row.String("interaction_type"),
			Metadata:        map[string]any{},
			CreatedAt:       millis(row, "created_at"),
		}
		if err := storage.DecodeJSON(row["metadata"], &ci.Metadata); err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, nil
}

// Web3Verification records the outcome of an on-chain ownership check.
type Web3Verification struct {
	ID               string         `json:"id"`
	MemberID         string         `json:"member_id"`
	WalletAddress    string         `json:"wallet_address"`
	VerificationType string         `json:"verification_type"`
	ContractAddress  *string        `json:"contract_address"`
	TokenID          *string        `json:"token_id"`
	Verified         bool           `json:"verified"`
	VerifiedAt       time.Time      `json:"verified_at"`
	Metadata         map[string]any `json:"metadata"`
}

// RecordWeb3Verification appends a verification.
func (s *Store) RecordWeb3Verification(ctx context.Context, v Web3Verification) (Web3Verification, error) {
	if v.Metadata == nil {
		v.Metadata = map[string]any{}
	}
	meta, err := storage.EncodeJSON(v.Metadata)
	if err != nil {
		return Web3Verification{}, fmt.Errorf("record web3 verification: %w", err)
	}
	v.ID = s.ids.Generate()
	v.VerifiedAt = truncate(s.now())
	_, err = s.insertWeb3.Run(ctx, v.ID, v.MemberID, normalizeAddress(v.WalletAddress), v.VerificationType,
		v.ContractAddress, v.TokenID, v.Verified, v.VerifiedAt, meta)
	if err != nil {
		return Web3Verification{}, fmt.Errorf("record web3 verification: %w", err)
	}
	v.WalletAddress = normalizeAddress(v.WalletAddress)
	return v, nil
}

// ListWeb3Verifications returns the member's verifications, newest first.
func (s *Store) ListWeb3Verifications(ctx context.Context, memberID string) ([]Web3Verification, error) {
	rows, err := s.listWeb3.All(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list web3 verifications: %w", err)
	}
	out := make([]Web3Verification, 0, len(rows))
	for _, row := range rows {
		v := Web3Verification{
			ID:               row.String("id"),
			MemberID:         row.String("member_id"),
			WalletAddress:    row.String("wallet_address"),
			VerificationType: row.String("verification_type"),
			ContractAddress:  row.NullString("contract_address"),
			TokenID:          row.NullString("token_id"),
			Verified:         row.Bool("verified"),
			VerifiedAt:       millis(row, "verified_at"),
			Metadata:         map[string]any{},
		}
		if err := storage.DecodeJSON(row["metadata"], &v.Metadata); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Concierge brief statuses.
const (
	BriefPending = "pending"
)

// ConciergeBrief is a member's request to the concierge team.
type ConciergeBrief struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"member_id"`
	RequestType string    `json:"request_type"`
	Details     string    `json:"details"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubmitConciergeBrief stores a new brief in the pending state.
func (s *Store) SubmitConciergeBrief(ctx context.Context, memberID, requestType, details string) (ConciergeBrief, error) {
	b := ConciergeBrief{
		ID:          s.ids.Generate(),
		MemberID:    memberID,
		RequestType: requestType,
		Details:     details,
		Status:      BriefPending,
		CreatedAt:   truncate(s.now()),
	}
	if _, err := s.insertBrief.Run(ctx, b.ID, b.MemberID, b.RequestType, b.Details, b.Status, b.CreatedAt); err != nil {
		return ConciergeBrief{}, fmt.Errorf("submit concierge brief: %w", err)
	}
	return b, nil
}

// ListConciergeBriefs returns the member's briefs, newest first.
func (s *Store) ListConciergeBriefs(ctx context.Context, memberID string) ([]ConciergeBrief, error) {
	rows, err := s.listBriefs.All(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list concierge briefs: %w", err)
	}
	out := make([]ConciergeBrief, 0, len(rows))
	for _, row := range rows {
		out = append(out, ConciergeBrief{
			ID:          row.String("id"),
			MemberID:    row.String("member_id"),
			RequestType: row.String("request_type"),
			Details:     row.String("details"),
			Status:      row.String("status"),
			CreatedAt:   millis(row, "created_at"),
		})
	}
	return out, nil
}

// truncate drops sub-millisecond precision so returned records equal what
// a later read produces.
func truncate(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
