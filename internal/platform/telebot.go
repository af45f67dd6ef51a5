package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/packbot/core/logger"
	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/models"
)

// TelebotAPI implements API over the Bot API raw endpoint. Sticker-set
// methods are called by name since the high-level client does not cover
// custom emoji sets.
type TelebotAPI struct {
	bot *tele.Bot
}

// NewTelebotAPI wraps an initialized bot.
func NewTelebotAPI(bot *tele.Bot) *TelebotAPI {
	return &TelebotAPI{bot: bot}
}

// Bind attaches the live bot. The adapter may be constructed before the bot
// exists; no call happens until the bot starts receiving updates.
func (a *TelebotAPI) Bind(bot *tele.Bot) {
	a.bot = bot
}

// BotUsername returns the authenticated bot's username.
func (a *TelebotAPI) BotUsername() string {
	if a.bot == nil || a.bot.Me == nil {
		return ""
	}
	return a.bot.Me.Username
}

// inputSticker mirrors the Bot API InputSticker object.
type inputSticker struct {
	Sticker   string   `json:"sticker"`
	Format    string   `json:"format"`
	EmojiList []string `json:"emoji_list"`
}

func toInputSticker(item Item) inputSticker {
	format := item.Format
	if format == "" {
		format = "static"
	}
	emoji := item.Emoji
	if emoji == "" {
		emoji = "⭐" // the API requires at least one association
	}
	return inputSticker{Sticker: item.FileRef, Format: format, EmojiList: []string{emoji}}
}

func stickerType(kind models.PackKind) string {
	if kind == models.PackKindSticker {
		return "regular"
	}
	return "custom_emoji"
}

// CreatePack creates the remote set with its first item.
func (a *TelebotAPI) CreatePack(ctx context.Context, ownerID int64, slug, title string, kind models.PackKind, first Item) error {
	stickers, err := json.Marshal([]inputSticker{toInputSticker(first)})
	if err != nil {
		return domain.Wrap(domain.ErrPlatformFailure, err)
	}
	params := map[string]string{
		"user_id":      strconv.FormatInt(ownerID, 10),
		"name":         slug,
		"title":        title,
		"stickers":     string(stickers),
		"sticker_type": stickerType(kind),
	}
	return a.call(ctx, "createNewStickerSet", params, slug)
}

// AddItem appends one item to the remote set.
func (a *TelebotAPI) AddItem(ctx context.Context, ownerID int64, slug string, item Item) error {
	sticker, err := json.Marshal(toInputSticker(item))
	if err != nil {
		return domain.Wrap(domain.ErrPlatformFailure, err)
	}
	params := map[string]string{
		"user_id": strconv.FormatInt(ownerID, 10),
		"name":    slug,
		"sticker": string(sticker),
	}
	return a.call(ctx, "addStickerToSet", params, slug)
}

// RemoveItem deletes one item from its remote set.
func (a *TelebotAPI) RemoveItem(ctx context.Context, fileRef string) error {
	return a.call(ctx, "deleteStickerFromSet", map[string]string{"sticker": fileRef}, "")
}

// DeletePack removes the whole remote set.
func (a *TelebotAPI) DeletePack(ctx context.Context, slug string) error {
	return a.call(ctx, "deleteStickerSet", map[string]string{"name": slug}, slug)
}

// GetPack fetches the remote set state.
func (a *TelebotAPI) GetPack(ctx context.Context, slug string) (SetInfo, error) {
	data, err := a.bot.Raw("getStickerSet", map[string]string{"name": slug})
	if err != nil {
		return SetInfo{}, mapAPIError("getStickerSet", slug, err)
	}

	var resp struct {
		Result struct {
			Name        string `json:"name"`
			Title       string `json:"title"`
			StickerType string `json:"sticker_type"`
			Stickers    []struct {
				FileID string `json:"file_id"`
			} `json:"stickers"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return SetInfo{}, domain.Wrap(domain.ErrPlatformFailure, err)
	}

	kind := models.PackKindEmoji
	if resp.Result.StickerType == "regular" {
		kind = models.PackKindSticker
	}
	info := SetInfo{
		Name:      resp.Result.Name,
		Title:     resp.Result.Title,
		Kind:      kind,
		ItemCount: len(resp.Result.Stickers),
	}
	for _, s := range resp.Result.Stickers {
		info.ItemRefs = append(info.ItemRefs, s.FileID)
	}
	return info, nil
}

func (a *TelebotAPI) call(ctx context.Context, method string, params map[string]string, slug string) error {
	start := time.Now()
	_, err := a.bot.Raw(method, params)

	logger.TWire.LogAttrs(ctx, slog.LevelDebug, "platform.call",
		slog.String("event", "platform.call"),
		slog.String("method", method),
		slog.String("slug", slug),
		slog.Bool("ok", err == nil),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		return mapAPIError(method, slug, err)
	}
	return nil
}

// mapAPIError translates Bot API failures into domain errors. A missing set
// is a normal outcome during link imports and deletion races.
func mapAPIError(method, slug string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "STICKERSET_INVALID") || strings.Contains(msg, "not found") {
		return domain.Wrap(domain.ErrNotFound, fmt.Errorf("%s %s: %w", method, slug, err))
	}
	return domain.Wrap(domain.ErrPlatformFailure, fmt.Errorf("%s: %w", method, err))
}
