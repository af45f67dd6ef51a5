// Package platform wraps the messaging platform's sticker-set API behind a
// small interface so the store and flows never touch transport details.
package platform

import (
	"context"

	"github.com/m3rciful/packbot/internal/models"
)

// Item is one asset pushed to or read from a platform set.
type Item struct {
	// FileRef is the platform file identifier of the uploaded asset.
	FileRef string
	// Emoji is the association list entry shown by clients.
	Emoji string
	// Format is "static", "animated", or "video".
	Format string
}

// SetInfo is the platform's view of an existing set.
type SetInfo struct {
	Name      string
	Title     string
	Kind      models.PackKind
	ItemCount int
	ItemRefs  []string
}

// API is the platform surface the bot mutates packs through. Every call is a
// remote side effect; callers sequence them before local writes so a platform
// failure leaves the database untouched.
type API interface {
	// CreatePack creates a new set under the given owner with one first item.
	CreatePack(ctx context.Context, ownerID int64, slug, title string, kind models.PackKind, first Item) error
	// AddItem appends an item to an existing set.
	AddItem(ctx context.Context, ownerID int64, slug string, item Item) error
	// RemoveItem deletes a single item from its set by file reference.
	RemoveItem(ctx context.Context, fileRef string) error
	// DeletePack removes the whole set.
	DeletePack(ctx context.Context, slug string) error
	// GetPack fetches the current remote state of a set.
	GetPack(ctx context.Context, slug string) (SetInfo, error)
	// BotUsername returns the bot's account name used for free slug suffixes.
	BotUsername() string
}
