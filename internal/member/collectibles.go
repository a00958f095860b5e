package member

import (
	"context"
	"fmt"

	"github.com/roach88/membership/internal/storage"
)

// Collectible is a seeded membership collectible tier.
type Collectible struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	TierLevel       int64    `json:"tier_level"`
	MaxSupply       *int64   `json:"max_supply"`
	Perks           []string `json:"perks"`
	ImageURL        *string  `json:"image_url"`
	ContractAddress *string  `json:"contract_address"`
}

// ListCollectibles returns every tier in ascending tier order.
func (s *Store) ListCollectibles(ctx context.Context) ([]Collectible, error) {
	rows, err := s.collectibles.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collectibles: %w", err)
	}
	out := make([]Collectible, 0, len(rows))
	for _, row := range rows {
		c, err := collectibleFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// HolderAddresses returns the lower-cased holder addresses of one
// collectible, or of all collectibles when collectibleID is empty. The
// result feeds entitlement.BuildAccessView.
func (s *Store) HolderAddresses(ctx context.Context, collectibleID string) ([]string, error) {
	var (
		rows []storage.Row
		err  error
	)
	if collectibleID == "" {
		rows, err = s.allHolders.All(ctx)
	} else {
		rows, err = s.holdersByID.All(ctx, collectibleID)
	}
	if err != nil {
		return nil, fmt.Errorf("holder addresses: %w", err)
	}
	seen := make(map[string]bool, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		addr := row.String("address")
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out, nil
}

func collectibleFromRow(row storage.Row) (Collectible, error) {
	c := Collectible{
		ID:              row.String("id"),
		Name:            row.String("name"),
		Description:     row.String("description"),
		TierLevel:       row.Int("tier_level"),
		Perks:           []string{},
		ImageURL:        row.NullString("image_url"),
		ContractAddress: row.NullString("contract_address"),
	}
	if row["max_supply"] != nil {
		n := row.Int("max_supply")
		c.MaxSupply = &n
	}
	if err := storage.DecodeJSON(row["perks"], &c.Perks); err != nil {
		return Collectible{}, fmt.Errorf("collectible %s perks: %w", c.ID, err)
	}
	return c, nil
}
