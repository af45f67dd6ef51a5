package bot

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/keyboard"
	"github.com/m3rciful/packbot/core/telegram/state"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/render"
	"github.com/m3rciful/packbot/internal/session"
	"github.com/m3rciful/packbot/internal/storage"
)

// CreateCmd starts the creation flow. The kind may come as an argument
// (/create emoji) or from an inline chooser.
func (h *Handlers) CreateCmd(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user, err := h.store.GetOrCreateUser(ctx, c.Sender().ID)
	if err != nil {
		return err
	}

	paid := user.Tier.Paid() && user.PaidPackUses > 0
	data := &session.CreateData{Paid: paid}

	switch commandArg(c) {
	case "emoji":
		data.Kind = models.PackKindEmoji
	case "sticker":
		data.Kind = models.PackKindSticker
	}

	if data.Kind == "" {
		if _, err := h.sessions.Begin(c.Sender().ID, session.FlowCreate, session.StateCreateAwaitingName, data); err != nil {
			return h.rejectOpenFlow(c, err)
		}
		markup := keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{
				{Text: "😀 Emoji pack", Unique: cbCreateKind, Data: "emoji"},
				{Text: "🧩 Sticker pack", Unique: cbCreateKind, Data: "sticker"},
			},
			[]keyboard.InlineBtn{{Text: "❌ Cancel", Unique: cbFlowCancel, Data: "cancel"}},
		)
		return tghelpers.SendMD(c, "What kind of pack do you want?", markup)
	}

	if _, err := h.sessions.Begin(c.Sender().ID, session.FlowCreate, session.StateCreateAwaitingName, data); err != nil {
		return h.rejectOpenFlow(c, err)
	}
	return h.promptName(c, data)
}

// cbCreateKind resolves the kind chooser.
func (h *Handlers) cbCreateKind(c tele.Context) error {
	sess, ok := h.sessions.Active(c.Sender().ID)
	data := session.Create(sess)
	if !ok || data == nil {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /create.")
	}

	switch payload(c) {
	case "sticker":
		data.Kind = models.PackKindSticker
	default:
		data.Kind = models.PackKindEmoji
	}
	return h.promptName(c, data)
}

func (h *Handlers) promptName(c tele.Context, data *session.CreateData) error {
	limits := h.store.Limits()
	min, max := limits.FreeNameMin, limits.FreeNameMax
	if data.Paid {
		min, max = limits.PaidNameMin, limits.PaidNameMax
	}
	msg := fmt.Sprintf("Send a name for your %s pack (%d-%d characters).", data.Kind, min, max)
	return tghelpers.EditOrSendMD(c, msg, keyboard.SingleCancelMarkup(cbFlowCancel))
}

// fsmCreateName consumes the pack name. Invalid length reprompts in place.
func (h *Handlers) fsmCreateName(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Create(sess)
	if data == nil || data.Kind == "" {
		return tghelpers.SendMD(c, "Pick a pack kind first.")
	}

	name := c.Text()
	if d := h.store.Limits().ValidateName(name, data.Paid); !d.Allowed {
		return tghelpers.SendMD(c, userMessage(errNameLength))
	}

	data.Name = name
	data.Title = name
	h.sessions.Advance(c.Sender().ID, session.StateCreateAwaitingFirst)
	return tghelpers.SendMD(c,
		"Now send the first item: a sticker, a photo, or a single emoji.",
		keyboard.SingleCancelMarkup(cbFlowCancel))
}

// fsmCreateFirstItem consumes the first item and commits the creation.
func (h *Handlers) fsmCreateFirstItem(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Create(sess)
	if data == nil || data.Name == "" {
		return tghelpers.SendMD(c, "Send the pack name first.")
	}

	item, err := h.itemFromMessage(c, data.Kind)
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}

	ctx := tghelpers.BuildContext(c)
	pack, err := h.store.CreatePack(ctx, storage.CreatePackParams{
		OwnerID: c.Sender().ID,
		Name:    data.Name,
		Title:   data.Title,
		Kind:    data.Kind,
		Paid:    data.Paid,
		First:   item,
	})
	if err != nil {
		h.sessions.Finish(c.Sender().ID)
		return tghelpers.SendMD(c, userMessage(err))
	}

	h.sessions.Finish(c.Sender().ID)
	return tghelpers.SendMD(c, fmt.Sprintf("Done! Your pack is live:\n%s", pack.PackLink))
}

// itemFromMessage extracts an addable item from the current update. Photos
// go through the render pipeline to fit the target geometry.
func (h *Handlers) itemFromMessage(c tele.Context, kind models.PackKind) (storage.ItemParams, error) {
	msg := c.Message()
	if msg == nil {
		return storage.ItemParams{}, errBadItem
	}

	switch {
	case msg.Sticker != nil:
		format := "static"
		if msg.Sticker.Animated {
			format = "animated"
		} else if msg.Sticker.Video {
			format = "video"
		}
		return storage.ItemParams{
			ContentRef: msg.Sticker.FileID,
			Emoji:      msg.Sticker.Emoji,
			Format:     format,
			Animated:   msg.Sticker.Animated || msg.Sticker.Video,
		}, nil

	case msg.Photo != nil:
		ctx := tghelpers.BuildContext(c)
		asset, err := h.pipeline.Render(ctx,
			render.Input{Kind: render.InputPhoto, ContentRef: msg.Photo.FileID},
			render.Options{TargetKind: kind},
		)
		if err != nil {
			return storage.ItemParams{}, err
		}
		return storage.ItemParams{
			ContentRef: asset.Ref,
			Format:     asset.Format,
			Animated:   asset.Animated,
		}, nil

	case msg.Text != "" && isSingleEmoji(msg.Text):
		ctx := tghelpers.BuildContext(c)
		asset, err := h.pipeline.Render(ctx,
			render.Input{Kind: render.InputEmoji, Text: msg.Text},
			render.Options{TargetKind: kind},
		)
		if err != nil {
			return storage.ItemParams{}, err
		}
		return storage.ItemParams{
			ContentRef: asset.Ref,
			Emoji:      msg.Text,
			Format:     asset.Format,
			Animated:   asset.Animated,
		}, nil
	}
	return storage.ItemParams{}, errBadItem
}

// rejectOpenFlow reports a conflicting flow-start without touching the open
// session.
func (h *Handlers) rejectOpenFlow(c tele.Context, err error) error {
	if errors.Is(err, state.ErrFlowInProgress) {
		return tghelpers.SendMD(c, "You already have a flow in progress. Finish it or /cancel first.")
	}
	return err
}
