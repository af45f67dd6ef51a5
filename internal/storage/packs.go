package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/packbot/core/logger"
	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/platform"
	"github.com/m3rciful/packbot/internal/policy"
)

// ItemParams describes one item to push.
type ItemParams struct {
	ContentRef string
	Emoji      string
	Format     string
	Animated   bool
}

// CreatePackParams describes a pack creation request at commit time.
type CreatePackParams struct {
	OwnerID int64
	// Name is the user-typed name; the slug is derived here so naming rules
	// apply in exactly one place.
	Name  string
	Title string
	Kind  models.PackKind
	Paid  bool
	// Settled marks a creation already paid for through a settled invoice.
	// The entitlement and quota checks are skipped and no slot is consumed;
	// the payment itself is the authorization.
	Settled bool
	First   ItemParams
}

func packLockKey(packID int64) string { return "pack:" + strconv.FormatInt(packID, 10) }

// CreatePack creates the pack remotely and records it locally. Quota and
// naming rules are re-checked inside the transaction, after any pre-flight
// checks a flow did earlier.
func (s *Store) CreatePack(ctx context.Context, p CreatePackParams) (models.Pack, error) {
	slug := platform.NormalizeSlug(p.Name)
	if slug == "" {
		return models.Pack{}, domain.ErrNameLengthInvalid
	}
	if !p.Paid {
		slug = platform.FreeSlug(slug, s.api.BotUsername())
	}

	unlock := s.locks.Lock("slug:" + slug)
	defer unlock()

	start := time.Now()
	var created models.Pack
	platformDone := false

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var u models.User
		if err := tx.GetContext(ctx, &u, `
			SELECT user_id, tier, free_pack_uses, paid_pack_uses, adaptive_pack_id, created_at
			FROM users WHERE user_id = $1 FOR UPDATE`, p.OwnerID); err != nil {
			return notFoundOr(err, "lock user")
		}

		if d := s.limits.ValidateName(p.Name, p.Paid); !d.Allowed {
			return domain.ErrNameLengthInvalid
		}
		if !p.Settled {
			if d := s.limits.Evaluate(policy.Request{User: u, Action: policy.ActionCreatePack, Paid: p.Paid}); !d.Allowed {
				return denialError(d)
			}
		}

		var clash int
		if err := tx.GetContext(ctx, &clash, `SELECT count(*) FROM packs WHERE name = $1`, slug); err != nil {
			return fmt.Errorf("name check: %w", err)
		}
		if clash > 0 {
			return domain.ErrDuplicateName
		}

		if err := s.api.CreatePack(ctx, p.OwnerID, slug, p.Title, p.Kind, platform.Item{
			FileRef: p.First.ContentRef,
			Emoji:   p.First.Emoji,
			Format:  p.First.Format,
		}); err != nil {
			return err
		}
		platformDone = true

		link := platform.BuildPackLink(slug, p.Kind == models.PackKindSticker)
		if err := tx.GetContext(ctx, &created, `
			INSERT INTO packs (owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count)
			VALUES ($1, $2, $3, $4, $5, $6, 1)
			RETURNING pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at`,
			p.OwnerID, slug, p.Title, p.Kind, p.Paid, link); err != nil {
			return fmt.Errorf("insert pack: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pack_items (pack_id, content_ref, emoji, kind, animated)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
			created.PackID, p.First.ContentRef, p.First.Emoji, p.Kind, p.First.Animated); err != nil {
			return fmt.Errorf("insert first item: %w", err)
		}

		if !p.Settled {
			column := "free_pack_uses"
			if p.Paid {
				column = "paid_pack_uses"
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET `+column+` = GREATEST(`+column+` - 1, 0) WHERE user_id = $1`,
				p.OwnerID); err != nil {
				return fmt.Errorf("consume use: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if platformDone {
			return models.Pack{}, logInconsistent(ctx, "create_pack", slug, err)
		}
		return models.Pack{}, err
	}

	logger.SVCPacks.LogAttrs(ctx, slog.LevelInfo, "pack.created",
		slog.String("event", "pack.created"),
		slog.Int64("pack_id", created.PackID),
		slog.Int64("user_id", p.OwnerID),
		slog.String("slug", slug),
		slog.String("kind", string(p.Kind)),
		slog.Duration("duration", logger.Took(start)),
	)
	return created, nil
}

// AddItem pushes one item to the platform and records it, keeping item_count
// in step within the same transaction.
func (s *Store) AddItem(ctx context.Context, packID, userID int64, item ItemParams) (models.PackItem, error) {
	unlock := s.locks.Lock(packLockKey(packID))
	defer unlock()

	var added models.PackItem
	var slug string
	platformDone := false

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		pack, u, err := s.lockPackAndOwner(ctx, tx, packID, userID)
		if err != nil {
			return err
		}
		slug = pack.Name

		if d := s.limits.Evaluate(policy.Request{User: u, Action: policy.ActionAddItem, Pack: &pack}); !d.Allowed {
			return denialError(d)
		}

		if err := s.api.AddItem(ctx, pack.OwnerUserID, pack.Name, platform.Item{
			FileRef: item.ContentRef,
			Emoji:   item.Emoji,
			Format:  item.Format,
		}); err != nil {
			return err
		}
		platformDone = true

		if err := tx.GetContext(ctx, &added, `
			INSERT INTO pack_items (pack_id, content_ref, emoji, kind, animated)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5)
			RETURNING item_id, pack_id, content_ref, emoji, kind, animated, added_at`,
			packID, item.ContentRef, item.Emoji, pack.Kind, item.Animated); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE packs SET item_count = item_count + 1 WHERE pack_id = $1`, packID); err != nil {
			return fmt.Errorf("bump item_count: %w", err)
		}
		return nil
	})
	if err != nil {
		if platformDone {
			return models.PackItem{}, logInconsistent(ctx, "add_item", slug, err)
		}
		return models.PackItem{}, err
	}

	logger.SVCPacks.LogAttrs(ctx, slog.LevelInfo, "pack.item_added",
		slog.String("event", "pack.item_added"),
		slog.Int64("pack_id", packID),
		slog.Int64("item_id", added.ItemID),
		slog.Int64("user_id", userID),
	)
	return added, nil
}

// RemoveItem deletes one item from the platform set and the local rows.
func (s *Store) RemoveItem(ctx context.Context, packID, userID, itemID int64) error {
	unlock := s.locks.Lock(packLockKey(packID))
	defer unlock()

	var slug string
	platformDone := false

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		pack, _, err := s.lockPackAndOwner(ctx, tx, packID, userID)
		if err != nil {
			return err
		}
		slug = pack.Name

		var item models.PackItem
		if err := tx.GetContext(ctx, &item, `
			SELECT item_id, pack_id, content_ref, emoji, kind, animated, added_at
			FROM pack_items WHERE item_id = $1 AND pack_id = $2`, itemID, packID); err != nil {
			return notFoundOr(err, "find item")
		}

		if err := s.api.RemoveItem(ctx, item.ContentRef); err != nil {
			return err
		}
		platformDone = true

		if _, err := tx.ExecContext(ctx, `DELETE FROM pack_items WHERE item_id = $1`, itemID); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE packs SET item_count = item_count - 1 WHERE pack_id = $1`, packID); err != nil {
			return fmt.Errorf("drop item_count: %w", err)
		}
		return nil
	})
	if err != nil {
		if platformDone {
			return logInconsistent(ctx, "remove_item", slug, err)
		}
		return err
	}

	logger.SVCPacks.LogAttrs(ctx, slog.LevelInfo, "pack.item_removed",
		slog.String("event", "pack.item_removed"),
		slog.Int64("pack_id", packID),
		slog.Int64("item_id", itemID),
		slog.Int64("user_id", userID),
	)
	return nil
}

// DeletePack removes the platform set and all local rows of the pack.
func (s *Store) DeletePack(ctx context.Context, packID, userID int64) error {
	unlock := s.locks.Lock(packLockKey(packID))
	defer unlock()

	var slug string
	platformDone := false

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		pack, _, err := s.lockPackAndOwner(ctx, tx, packID, userID)
		if err != nil {
			return err
		}
		slug = pack.Name

		if err := s.api.DeletePack(ctx, pack.Name); err != nil {
			return err
		}
		platformDone = true

		if _, err := tx.ExecContext(ctx, `DELETE FROM pack_items WHERE pack_id = $1`, packID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM packs WHERE pack_id = $1`, packID); err != nil {
			return fmt.Errorf("delete pack: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET adaptive_pack_id = NULL WHERE user_id = $1 AND adaptive_pack_id = $2`,
			userID, packID); err != nil {
			return fmt.Errorf("clear adaptive binding: %w", err)
		}
		return nil
	})
	if err != nil {
		if platformDone {
			return logInconsistent(ctx, "delete_pack", slug, err)
		}
		return err
	}

	logger.SVCPacks.LogAttrs(ctx, slog.LevelInfo, "pack.deleted",
		slog.String("event", "pack.deleted"),
		slog.Int64("pack_id", packID),
		slog.Int64("user_id", userID),
		slog.String("slug", slug),
	)
	return nil
}

// lockPackAndOwner loads the pack FOR UPDATE and verifies ownership.
func (s *Store) lockPackAndOwner(ctx context.Context, tx *sqlx.Tx, packID, userID int64) (models.Pack, models.User, error) {
	var pack models.Pack
	if err := tx.GetContext(ctx, &pack, `
		SELECT pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at
		FROM packs WHERE pack_id = $1 FOR UPDATE`, packID); err != nil {
		return models.Pack{}, models.User{}, notFoundOr(err, "lock pack")
	}
	if pack.OwnerUserID != userID {
		return models.Pack{}, models.User{}, domain.ErrNotAuthorized
	}
	var u models.User
	if err := tx.GetContext(ctx, &u, `
		SELECT user_id, tier, free_pack_uses, paid_pack_uses, adaptive_pack_id, created_at
		FROM users WHERE user_id = $1`, userID); err != nil {
		return models.Pack{}, models.User{}, notFoundOr(err, "load owner")
	}
	return pack, u, nil
}

// denialError maps a policy denial to its sentinel.
func denialError(d policy.Decision) error {
	switch d.Reason {
	case policy.ReasonQuotaExceeded:
		return domain.ErrQuotaExceeded
	case policy.ReasonCapacityExceeded:
		return domain.ErrCapacityExceeded
	case policy.ReasonNameLengthInvalid:
		return domain.ErrNameLengthInvalid
	case policy.ReasonNotEntitled:
		return domain.ErrNotEntitled
	case policy.ReasonOwnerOnly:
		return domain.ErrOwnerOnly
	}
	return domain.ErrValidation
}

// GetPack loads one pack by id.
func (s *Store) GetPack(ctx context.Context, packID int64) (models.Pack, error) {
	var pack models.Pack
	err := s.db.GetContext(ctx, &pack, `
		SELECT pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at
		FROM packs WHERE pack_id = $1`, packID)
	if err != nil {
		return models.Pack{}, notFoundOr(err, "get pack")
	}
	return pack, nil
}

// GetPackBySlug loads one pack by its platform slug.
func (s *Store) GetPackBySlug(ctx context.Context, slug string) (models.Pack, error) {
	var pack models.Pack
	err := s.db.GetContext(ctx, &pack, `
		SELECT pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at
		FROM packs WHERE name = $1`, slug)
	if err != nil {
		return models.Pack{}, notFoundOr(err, "get pack by slug")
	}
	return pack, nil
}

// ListPacks returns the user's packs, optionally filtered by kind.
func (s *Store) ListPacks(ctx context.Context, ownerID int64, kind models.PackKind) ([]models.Pack, error) {
	query := `
		SELECT pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at
		FROM packs WHERE owner_user_id = $1`
	args := []any{ownerID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at`

	var packs []models.Pack
	if err := s.db.SelectContext(ctx, &packs, query, args...); err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	return packs, nil
}

// ListItems returns a pack's items in insertion order.
func (s *Store) ListItems(ctx context.Context, packID int64) ([]models.PackItem, error) {
	var items []models.PackItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT item_id, pack_id, content_ref, emoji, kind, animated, added_at
		FROM pack_items WHERE pack_id = $1 ORDER BY added_at, item_id`, packID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// FindItemByRef locates an item in a pack by its platform file reference.
func (s *Store) FindItemByRef(ctx context.Context, packID int64, contentRef string) (models.PackItem, error) {
	var item models.PackItem
	err := s.db.GetContext(ctx, &item, `
		SELECT item_id, pack_id, content_ref, emoji, kind, animated, added_at
		FROM pack_items WHERE pack_id = $1 AND content_ref = $2`, packID, contentRef)
	if err != nil {
		return models.PackItem{}, notFoundOr(err, "find item")
	}
	return item, nil
}
