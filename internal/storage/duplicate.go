package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/packbot/core/logger"
	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/platform"
)

// DuplicatePack clones an existing pack under a new paid slug. The source is
// read under its lock first so the copy sees a consistent item list; the new
// set is then built remotely item by item before any local rows appear. A
// failure partway through tears the remote set back down.
func (s *Store) DuplicatePack(ctx context.Context, srcPackID, userID int64, newName, newTitle string) (models.Pack, error) {
	src, items, err := s.snapshotPack(ctx, srcPackID, userID)
	if err != nil {
		return models.Pack{}, err
	}
	if len(items) == 0 {
		return models.Pack{}, domain.ErrNotFound
	}
	// The copy always lands in a paid pack; same guard as CopyRemotePack.
	if len(items) > s.limits.Capacity(true, src.Kind) {
		return models.Pack{}, domain.ErrCapacityExceeded
	}

	slug := platform.NormalizeSlug(newName)
	if slug == "" {
		return models.Pack{}, domain.ErrNameLengthInvalid
	}

	unlock := s.locks.Lock("slug:" + slug)
	defer unlock()

	if _, err := s.GetPackBySlug(ctx, slug); err == nil {
		return models.Pack{}, domain.ErrDuplicateName
	}

	toItem := func(it models.PackItem) platform.Item {
		format := "static"
		if it.Animated {
			format = "animated"
		}
		return platform.Item{FileRef: it.ContentRef, Emoji: it.Emoji.String, Format: format}
	}

	if err := s.api.CreatePack(ctx, userID, slug, newTitle, src.Kind, toItem(items[0])); err != nil {
		return models.Pack{}, err
	}
	for _, it := range items[1:] {
		if err := s.api.AddItem(ctx, userID, slug, toItem(it)); err != nil {
			if delErr := s.api.DeletePack(ctx, slug); delErr != nil {
				return models.Pack{}, logInconsistent(ctx, "duplicate_pack", slug, delErr)
			}
			return models.Pack{}, err
		}
	}

	var created models.Pack
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		link := platform.BuildPackLink(slug, src.Kind == models.PackKindSticker)
		if err := tx.GetContext(ctx, &created, `
			INSERT INTO packs (owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count)
			VALUES ($1, $2, $3, $4, TRUE, $5, $6)
			RETURNING pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at`,
			userID, slug, newTitle, src.Kind, link, len(items)); err != nil {
			return fmt.Errorf("insert pack copy: %w", err)
		}
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pack_items (pack_id, content_ref, emoji, kind, animated)
				VALUES ($1, $2, $3, $4, $5)`,
				created.PackID, it.ContentRef, it.Emoji, it.Kind, it.Animated); err != nil {
				return fmt.Errorf("insert item copy: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Pack{}, logInconsistent(ctx, "duplicate_pack", slug, err)
	}

	logger.SVCPacks.LogAttrs(ctx, slog.LevelInfo, "pack.duplicated",
		slog.String("event", "pack.duplicated"),
		slog.Int64("pack_id", created.PackID),
		slog.Int64("user_id", userID),
		slog.String("slug", slug),
		slog.Int("items", len(items)),
	)
	return created, nil
}

// CopyRemotePack rebuilds a platform set the bot does not own locally into a
// new paid pack for the user. The capacity check happens before any platform
// mutation so an oversized source never leaves a partial pack behind.
func (s *Store) CopyRemotePack(ctx context.Context, userID int64, src platform.SetInfo, newName, newTitle string, paidTarget bool) (models.Pack, error) {
	if len(src.ItemRefs) == 0 {
		return models.Pack{}, domain.ErrNotFound
	}
	if len(src.ItemRefs) > s.limits.Capacity(paidTarget, src.Kind) {
		return models.Pack{}, domain.ErrCapacityExceeded
	}

	slug := platform.NormalizeSlug(newName)
	if slug == "" {
		return models.Pack{}, domain.ErrNameLengthInvalid
	}

	unlock := s.locks.Lock("slug:" + slug)
	defer unlock()

	if _, err := s.GetPackBySlug(ctx, slug); err == nil {
		return models.Pack{}, domain.ErrDuplicateName
	}

	first := platform.Item{FileRef: src.ItemRefs[0]}
	if err := s.api.CreatePack(ctx, userID, slug, newTitle, src.Kind, first); err != nil {
		return models.Pack{}, err
	}
	for _, ref := range src.ItemRefs[1:] {
		if err := s.api.AddItem(ctx, userID, slug, platform.Item{FileRef: ref}); err != nil {
			if delErr := s.api.DeletePack(ctx, slug); delErr != nil {
				return models.Pack{}, logInconsistent(ctx, "copy_remote", slug, delErr)
			}
			return models.Pack{}, err
		}
	}

	var created models.Pack
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		link := platform.BuildPackLink(slug, src.Kind == models.PackKindSticker)
		if err := tx.GetContext(ctx, &created, `
			INSERT INTO packs (owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count)
			VALUES ($1, $2, $3, $4, TRUE, $5, $6)
			RETURNING pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at`,
			userID, slug, newTitle, src.Kind, link, len(src.ItemRefs)); err != nil {
			return fmt.Errorf("insert pack copy: %w", err)
		}
		for _, ref := range src.ItemRefs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pack_items (pack_id, content_ref, kind, animated)
				VALUES ($1, $2, $3, FALSE)`,
				created.PackID, ref, src.Kind); err != nil {
				return fmt.Errorf("insert item copy: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Pack{}, logInconsistent(ctx, "copy_remote", slug, err)
	}

	logger.SVCPacks.LogAttrs(ctx, slog.LevelInfo, "pack.duplicated",
		slog.String("event", "pack.duplicated"),
		slog.Int64("pack_id", created.PackID),
		slog.Int64("user_id", userID),
		slog.String("slug", slug),
		slog.Int("items", len(src.ItemRefs)),
	)
	return created, nil
}

// snapshotPack reads a pack and its items under the pack lock.
func (s *Store) snapshotPack(ctx context.Context, packID, userID int64) (models.Pack, []models.PackItem, error) {
	unlock := s.locks.Lock(packLockKey(packID))
	defer unlock()

	pack, err := s.GetPack(ctx, packID)
	if err != nil {
		return models.Pack{}, nil, err
	}
	if pack.OwnerUserID != userID {
		return models.Pack{}, nil, domain.ErrNotAuthorized
	}
	items, err := s.ListItems(ctx, packID)
	if err != nil {
		return models.Pack{}, nil, err
	}
	return pack, items, nil
}
