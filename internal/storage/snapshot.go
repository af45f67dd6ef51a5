package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
)

// Snapshot is the portable dump format for operator export/import.
type Snapshot struct {
	ExportedAt time.Time         `json:"exported_at"`
	Users      []SnapshotUser    `json:"users"`
	Packs      []SnapshotPack    `json:"packs"`
	Items      []SnapshotItem    `json:"items"`
	Settings   []SnapshotSetting `json:"settings"`
}

type SnapshotUser struct {
	UserID         int64  `json:"user_id"`
	Tier           string `json:"tier"`
	FreePackUses   int    `json:"free_pack_uses"`
	PaidPackUses   int    `json:"paid_pack_uses"`
	AdaptivePackID int64  `json:"adaptive_pack_id,omitempty"`
}

type SnapshotPack struct {
	PackID      int64  `json:"pack_id"`
	OwnerUserID int64  `json:"owner_user_id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	IsPaidPack  bool   `json:"is_paid_pack"`
	PackLink    string `json:"pack_link"`
	ItemCount   int    `json:"item_count"`
}

type SnapshotItem struct {
	PackID     int64  `json:"pack_id"`
	ContentRef string `json:"content_ref"`
	Emoji      string `json:"emoji,omitempty"`
	Kind       string `json:"kind"`
	Animated   bool   `json:"animated"`
}

type SnapshotSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Export dumps all state into a snapshot.
func (s *Store) Export(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{ExportedAt: time.Now().UTC()}

	var users []models.User
	if err := s.db.SelectContext(ctx, &users, `
		SELECT user_id, tier, free_pack_uses, paid_pack_uses, adaptive_pack_id, created_at
		FROM users ORDER BY user_id`); err != nil {
		return Snapshot{}, fmt.Errorf("export users: %w", err)
	}
	for _, u := range users {
		su := SnapshotUser{
			UserID:       u.UserID,
			Tier:         string(u.Tier),
			FreePackUses: u.FreePackUses,
			PaidPackUses: u.PaidPackUses,
		}
		if u.AdaptivePackID.Valid {
			su.AdaptivePackID = u.AdaptivePackID.Int64
		}
		snap.Users = append(snap.Users, su)
	}

	var packs []models.Pack
	if err := s.db.SelectContext(ctx, &packs, `
		SELECT pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count, created_at
		FROM packs ORDER BY pack_id`); err != nil {
		return Snapshot{}, fmt.Errorf("export packs: %w", err)
	}
	for _, p := range packs {
		snap.Packs = append(snap.Packs, SnapshotPack{
			PackID:      p.PackID,
			OwnerUserID: p.OwnerUserID,
			Name:        p.Name,
			Title:       p.Title,
			Kind:        string(p.Kind),
			IsPaidPack:  p.IsPaidPack,
			PackLink:    p.PackLink,
			ItemCount:   p.ItemCount,
		})
	}

	var items []models.PackItem
	if err := s.db.SelectContext(ctx, &items, `
		SELECT item_id, pack_id, content_ref, emoji, kind, animated, added_at
		FROM pack_items ORDER BY item_id`); err != nil {
		return Snapshot{}, fmt.Errorf("export items: %w", err)
	}
	for _, it := range items {
		snap.Items = append(snap.Items, SnapshotItem{
			PackID:     it.PackID,
			ContentRef: it.ContentRef,
			Emoji:      it.Emoji.String,
			Kind:       string(it.Kind),
			Animated:   it.Animated,
		})
	}

	settings, err := s.ListSettings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, st := range settings {
		snap.Settings = append(snap.Settings, SnapshotSetting{Key: st.Key, Value: st.Value})
	}
	return snap, nil
}

// ValidateSnapshot rejects dumps whose items reference unknown packs or whose
// packs reference unknown owners, before any row is written.
func ValidateSnapshot(snap Snapshot) error {
	users := make(map[int64]bool, len(snap.Users))
	for _, u := range snap.Users {
		if !models.Tier(u.Tier).Valid() {
			return domain.Wrap(domain.ErrValidation, fmt.Errorf("user %d: unknown tier %q", u.UserID, u.Tier))
		}
		users[u.UserID] = true
	}
	packs := make(map[int64]bool, len(snap.Packs))
	for _, p := range snap.Packs {
		if !models.PackKind(p.Kind).Valid() {
			return domain.Wrap(domain.ErrValidation, fmt.Errorf("pack %d: unknown kind %q", p.PackID, p.Kind))
		}
		if !users[p.OwnerUserID] {
			return domain.Wrap(domain.ErrValidation, fmt.Errorf("pack %d: unknown owner %d", p.PackID, p.OwnerUserID))
		}
		packs[p.PackID] = true
	}
	for i, it := range snap.Items {
		if !packs[it.PackID] {
			return domain.Wrap(domain.ErrValidation, fmt.Errorf("item %d: orphan pack %d", i, it.PackID))
		}
	}
	counts := make(map[int64]int, len(snap.Packs))
	for _, it := range snap.Items {
		counts[it.PackID]++
	}
	for _, p := range snap.Packs {
		if counts[p.PackID] != p.ItemCount {
			return domain.Wrap(domain.ErrValidation,
				fmt.Errorf("pack %d: item_count %d but %d items", p.PackID, p.ItemCount, counts[p.PackID]))
		}
	}
	return nil
}

// Import replaces all local state with the snapshot in one transaction.
// Platform sets are not touched: the dump is assumed to mirror sets that
// already exist remotely.
func (s *Store) Import(ctx context.Context, snap Snapshot) error {
	if err := ValidateSnapshot(snap); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"pack_items", "packs", "users", "settings"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		// Adaptive bindings reference packs, so they land in a second pass
		// after the packs exist.
		for _, u := range snap.Users {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO users (user_id, tier, free_pack_uses, paid_pack_uses)
				VALUES ($1, $2, $3, $4)`,
				u.UserID, u.Tier, u.FreePackUses, u.PaidPackUses); err != nil {
				return fmt.Errorf("import user %d: %w", u.UserID, err)
			}
		}
		for _, p := range snap.Packs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO packs (pack_id, owner_user_id, name, title, kind, is_paid_pack, pack_link, item_count)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				p.PackID, p.OwnerUserID, p.Name, p.Title, p.Kind, p.IsPaidPack, p.PackLink, p.ItemCount); err != nil {
				return fmt.Errorf("import pack %d: %w", p.PackID, err)
			}
		}
		if len(snap.Packs) > 0 {
			if _, err := tx.ExecContext(ctx, `
				SELECT setval(pg_get_serial_sequence('packs', 'pack_id'), (SELECT max(pack_id) FROM packs))`); err != nil {
				return fmt.Errorf("reset pack sequence: %w", err)
			}
		}
		for _, u := range snap.Users {
			if u.AdaptivePackID == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET adaptive_pack_id = $2 WHERE user_id = $1`,
				u.UserID, u.AdaptivePackID); err != nil {
				return fmt.Errorf("import user %d adaptive binding: %w", u.UserID, err)
			}
		}
		for i, it := range snap.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pack_items (pack_id, content_ref, emoji, kind, animated)
				VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
				it.PackID, it.ContentRef, it.Emoji, it.Kind, it.Animated); err != nil {
				return fmt.Errorf("import item %d: %w", i, err)
			}
		}
		for _, st := range snap.Settings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO settings (key, value) VALUES ($1, $2)`, st.Key, st.Value); err != nil {
				return fmt.Errorf("import setting %s: %w", st.Key, err)
			}
		}
		return nil
	})
}
