package storage

import (
	"context"
	"fmt"

	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
)

// GetOrCreateUser returns the user row, provisioning it with the default
// free allocation on first contact.
func (s *Store) GetOrCreateUser(ctx context.Context, userID int64) (models.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, tier, free_pack_uses, paid_pack_uses)
		VALUES ($1, 'free', $2, 0)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, s.defaultFreeUses,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("provision user: %w", err)
	}
	return s.GetUserByTelegramID(ctx, userID)
}

// GetUserByTelegramID fetches an existing user row.
func (s *Store) GetUserByTelegramID(ctx context.Context, userID int64) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT user_id, tier, free_pack_uses, paid_pack_uses, adaptive_pack_id, created_at
		FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return models.User{}, notFoundOr(err, "get user")
	}
	return u, nil
}

// SetTier updates the entitlement level.
func (s *Store) SetTier(ctx context.Context, userID int64, tier models.Tier) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET tier = $2 WHERE user_id = $1`, userID, tier)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GrantUses adds pack-creation allowances, typically after a payment.
func (s *Store) GrantUses(ctx context.Context, userID int64, freeDelta, paidDelta int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET free_pack_uses = free_pack_uses + $2,
		    paid_pack_uses = paid_pack_uses + $3
		WHERE user_id = $1`,
		userID, freeDelta, paidDelta)
	if err != nil {
		return fmt.Errorf("grant uses: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetAdaptivePack binds the user's single adaptive pack. Passing zero clears it.
func (s *Store) SetAdaptivePack(ctx context.Context, userID, packID int64) error {
	var err error
	if packID == 0 {
		_, err = s.db.ExecContext(ctx, `UPDATE users SET adaptive_pack_id = NULL WHERE user_id = $1`, userID)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE users SET adaptive_pack_id = $2 WHERE user_id = $1`, userID, packID)
	}
	if err != nil {
		return fmt.Errorf("set adaptive pack: %w", err)
	}
	return nil
}

// ListUserIDs returns every known user for broadcast fan-out.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}
