// Package models holds the persisted row types for users, packs, and items.
package models

import (
	"database/sql"
	"time"
)

// PackKind distinguishes what a pack holds.
type PackKind string

const (
	// PackKindEmoji is a custom emoji pack.
	PackKindEmoji PackKind = "emoji"
	// PackKindSticker is a regular sticker pack.
	PackKindSticker PackKind = "sticker"
	// PackKindAdaptive is an emoji pack whose items are rendered on demand.
	PackKindAdaptive PackKind = "adaptive_emoji"
)

// Valid reports whether k is a known pack kind.
func (k PackKind) Valid() bool {
	switch k {
	case PackKindEmoji, PackKindSticker, PackKindAdaptive:
		return true
	}
	return false
}

// Tier is the user's entitlement level. Transitions only move free -> paid
// (payment) or to admin_exempt (owner action); never regress automatically.
type Tier string

const (
	TierFree        Tier = "free"
	TierPaid        Tier = "paid"
	TierAdminExempt Tier = "admin_exempt"
)

// Paid reports whether the tier unlocks paid features.
func (t Tier) Paid() bool { return t == TierPaid || t == TierAdminExempt }

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPaid, TierAdminExempt:
		return true
	}
	return false
}

// User is one Telegram account known to the bot.
type User struct {
	UserID         int64         `db:"user_id"`
	Tier           Tier          `db:"tier"`
	FreePackUses   int           `db:"free_pack_uses"`
	PaidPackUses   int           `db:"paid_pack_uses"`
	AdaptivePackID sql.NullInt64 `db:"adaptive_pack_id"`
	CreatedAt      time.Time     `db:"created_at"`
}

// Pack is a named collection of items mirrored on the platform.
// ItemCount is maintained in the same transaction as item mutations and must
// always equal the number of live item rows.
type Pack struct {
	PackID      int64     `db:"pack_id"`
	OwnerUserID int64     `db:"owner_user_id"`
	Name        string    `db:"name"` // platform slug, immutable after creation
	Title       string    `db:"title"`
	Kind        PackKind  `db:"kind"`
	IsPaidPack  bool      `db:"is_paid_pack"`
	PackLink    string    `db:"pack_link"` // assigned once on creation
	ItemCount   int       `db:"item_count"`
	CreatedAt   time.Time `db:"created_at"`
}

// PackItem is a single emoji/sticker/asset belonging to exactly one pack.
type PackItem struct {
	ItemID     int64          `db:"item_id"`
	PackID     int64          `db:"pack_id"`
	ContentRef string         `db:"content_ref"` // platform file id or rendered asset ref
	Emoji      sql.NullString `db:"emoji"`
	Kind       PackKind       `db:"kind"`
	Animated   bool           `db:"animated"`
	AddedAt    time.Time      `db:"added_at"`
}

// Setting is a key/value row for operator toggles.
type Setting struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}
