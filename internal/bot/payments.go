package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/packbot/core/logger"
	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/platform"
	"github.com/m3rciful/packbot/internal/render"
	"github.com/m3rciful/packbot/internal/session"
	"github.com/m3rciful/packbot/internal/storage"
)

// Purchase purposes carried in invoice payloads as "<purpose>:<extra>:<nonce>".
const (
	purposeBuyPack   = "bpack"
	purposeAdaptive  = "apack"
	purposeDuplicate = "duplicate"
)

func invoicePayload(purpose, extra string) string {
	return strings.Join([]string{purpose, extra, uuid.NewString()}, ":")
}

func parsePayload(raw string) (purpose, extra string, ok bool) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// BuyPackCmd sends a Stars invoice unlocking a paid pack slot.
func (h *Handlers) BuyPackCmd(c tele.Context) error {
	kind := commandArg(c)
	var price int
	switch kind {
	case "emoji":
		price = h.prices.BuyEmojiPack
	case "sticker":
		price = h.prices.BuyStickerPack
	default:
		return tghelpers.SendMD(c, "Usage: /bpack emoji or /bpack sticker")
	}

	inv := &tele.Invoice{
		Title:       fmt.Sprintf("Paid %s pack", kind),
		Description: "Unlocks a paid pack slot with a custom name and 120 item capacity.",
		Payload:     invoicePayload(purposeBuyPack, kind),
		Currency:    "XTR",
		Prices:      []tele.Price{{Label: "Paid pack", Amount: price}},
	}
	return c.Send(inv)
}

// BuyAdaptiveCmd sends a Stars invoice for the adaptive pack.
func (h *Handlers) BuyAdaptiveCmd(c tele.Context) error {
	if !h.auth.IsAuthorized(c.Sender().ID, CapAdaptive) {
		return tghelpers.SendMD(c, userMessage(errOwnerOnly))
	}

	ctx := tghelpers.BuildContext(c)
	user, err := h.store.GetOrCreateUser(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	if user.AdaptivePackID.Valid {
		return tghelpers.SendMD(c, "You already have an adaptive pack. Use /acr to fill it.")
	}

	inv := &tele.Invoice{
		Title:       "Adaptive pack",
		Description: "A personal emoji pack whose items are rendered from your text and photos.",
		Payload:     invoicePayload(purposeAdaptive, "-"),
		Currency:    "XTR",
		Prices:      []tele.Price{{Label: "Adaptive pack", Amount: h.prices.AdaptivePack}},
	}
	return c.Send(inv)
}

// DuplicateCmd checks the source set and sends the duplication invoice. The
// capacity check happens here, before any money or platform mutation.
func (h *Handlers) DuplicateCmd(c tele.Context) error {
	if !h.auth.IsAuthorized(c.Sender().ID, CapDuplicate) {
		return tghelpers.SendMD(c, userMessage(errOwnerOnly))
	}

	slug, _, ok := platform.ParsePackLink(commandTail(c))
	if !ok {
		return tghelpers.SendMD(c, "Usage: /duplicate https://t.me/addstickers/... or .../addemoji/...")
	}

	ctx := tghelpers.BuildContext(c)
	user, err := h.store.GetOrCreateUser(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	src, err := h.store.API().GetPack(ctx, slug)
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}
	if len(src.ItemRefs) > h.store.Limits().Capacity(user.Tier.Paid(), src.Kind) {
		return tghelpers.SendMD(c, userMessage(errCapacity))
	}

	inv := &tele.Invoice{
		Title:       "Duplicate pack",
		Description: fmt.Sprintf("A full copy of %s (%d items) under your account.", src.Title, len(src.ItemRefs)),
		Payload:     invoicePayload(purposeDuplicate, slug),
		Currency:    "XTR",
		Prices:      []tele.Price{{Label: "Duplicate", Amount: h.prices.Duplicate}},
	}
	return c.Send(inv)
}

// Checkout approves pre-checkout queries whose payload carries a known
// purpose; everything else is rejected before money moves.
func (h *Handlers) Checkout(c tele.Context) error {
	q := c.PreCheckoutQuery()
	if q == nil {
		return nil
	}
	purpose, _, ok := parsePayload(q.Payload)
	if !ok {
		return c.Accept("Unknown purchase. You were not charged.")
	}
	switch purpose {
	case purposeBuyPack, purposeAdaptive, purposeDuplicate:
		return c.Accept()
	}
	return c.Accept("Unknown purchase. You were not charged.")
}

// PaymentSuccess routes a settled payment by its purpose.
func (h *Handlers) PaymentSuccess(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Payment == nil {
		return nil
	}
	purpose, extra, ok := parsePayload(msg.Payment.Payload)
	if !ok {
		return nil
	}

	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	logger.SVCBilling.LogAttrs(ctx, slog.LevelInfo, "payment.settled",
		slog.String("event", "payment.settled"),
		slog.Int64("user_id", userID),
		slog.String("purpose", purpose),
		slog.Int("price_xtr", msg.Payment.Total),
	)

	switch purpose {
	case purposeBuyPack:
		return h.settleBuyPack(c, userID, extra)
	case purposeAdaptive:
		return h.settleAdaptive(c, userID)
	case purposeDuplicate:
		return h.settleDuplicate(c, userID, extra)
	}
	return nil
}

func (h *Handlers) settleBuyPack(c tele.Context, userID int64, kind string) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.store.SetTier(ctx, userID, models.TierPaid); err != nil {
		return err
	}
	if err := h.store.GrantUses(ctx, userID, 0, 1); err != nil {
		return err
	}

	// An already-open creation flow keeps its free terms unless the
	// operator opted into upgrades.
	if h.upgradeOpenFlows {
		if sess, ok := h.sessions.Active(userID); ok && sess.Category == session.FlowCreate {
			if data := session.Create(sess); data != nil {
				data.Paid = true
			}
		}
	}

	return tghelpers.SendMD(c,
		fmt.Sprintf("Paid! You can now /create a paid %s pack with a custom name.", kind))
}

// settleAdaptive provisions the adaptive pack: a starter item is rendered so
// the platform set can be created, then the pack is bound to the user.
func (h *Handlers) settleAdaptive(c tele.Context, userID int64) error {
	ctx := tghelpers.BuildContext(c)

	asset, err := h.pipeline.Render(ctx,
		render.Input{Kind: render.InputText, Text: "★"},
		render.Options{TargetKind: models.PackKindAdaptive, Background: render.BackgroundNone},
	)
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}

	// The settled invoice is the entitlement; the owner's tier may still be
	// free and no /bpack slot should be burned here.
	pack, err := h.store.CreatePack(ctx, storage.CreatePackParams{
		OwnerID: userID,
		Name:    fmt.Sprintf("adaptive_%d", userID),
		Title:   "Adaptive emoji",
		Kind:    models.PackKindAdaptive,
		Paid:    true,
		Settled: true,
		First:   storage.ItemParams{ContentRef: asset.Ref, Format: asset.Format},
	})
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}
	if err := h.store.SetAdaptivePack(ctx, userID, pack.PackID); err != nil {
		return err
	}
	return tghelpers.SendMD(c,
		fmt.Sprintf("Your adaptive pack is ready:\n%s\nRender into it with /acr.", pack.PackLink))
}

func (h *Handlers) settleDuplicate(c tele.Context, userID int64, slug string) error {
	ctx := tghelpers.BuildContext(c)
	user, err := h.store.GetOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}

	copyName := fmt.Sprintf("%s_copy_%d", slug, userID)

	// A set the bot manages itself is cloned from local rows, which keeps the
	// emoji associations. Foreign sets are rebuilt from the remote item list.
	if local, lerr := h.store.GetPackBySlug(ctx, slug); lerr == nil && local.OwnerUserID == userID {
		pack, err := h.store.DuplicatePack(ctx, local.PackID, userID, copyName, local.Title+" (copy)")
		if err != nil {
			return tghelpers.SendMD(c, userMessage(err))
		}
		return tghelpers.SendMD(c, fmt.Sprintf("Copied! Your new pack:\n%s", pack.PackLink))
	}

	src, err := h.store.API().GetPack(ctx, slug)
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}
	pack, err := h.store.CopyRemotePack(ctx, userID, src, copyName, src.Title+" (copy)", user.Tier.Paid())
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Copied! Your new pack:\n%s", pack.PackLink))
}
