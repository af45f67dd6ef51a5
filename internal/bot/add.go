package bot

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/keyboard"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/session"
	"github.com/m3rciful/packbot/internal/storage"
)

// startBareAdd begins the add-to-pack flow from a bare sticker or photo
// message sent outside any flow.
func (h *Handlers) startBareAdd(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if _, err := h.store.GetOrCreateUser(ctx, c.Sender().ID); err != nil {
		return err
	}

	kind := models.PackKindSticker
	if msg := c.Message(); msg != nil && msg.Sticker != nil && msg.Sticker.CustomEmojiID != "" {
		kind = models.PackKindEmoji
	}
	item, err := h.itemFromMessage(c, kind)
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}

	packs, err := h.store.ListPacks(ctx, c.Sender().ID, "")
	if err != nil {
		return err
	}
	targets := packs[:0:0]
	for _, p := range packs {
		if p.Kind != models.PackKindAdaptive {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return tghelpers.SendMD(c, "You have no packs to add this to. Start with /create.")
	}

	data := &session.AddData{
		PendingRef:   item.ContentRef,
		PendingEmoji: item.Emoji,
		Animated:     item.Animated,
	}
	if _, err := h.sessions.Begin(c.Sender().ID, session.FlowAdd, session.StateAddAwaitingPack, data); err != nil {
		return h.rejectOpenFlow(c, err)
	}

	buttons := make([]keyboard.InlineBtn, 0, len(targets)+1)
	for _, p := range targets {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s %s (%d)", kindBadge(p.Kind), p.Title, p.ItemCount),
			Unique: cbAddPack,
			Data:   strconv.FormatInt(p.PackID, 10),
		})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: "❌ Cancel", Unique: cbFlowCancel, Data: "cancel"})
	return tghelpers.SendMD(c, "Add it to which pack?", keyboard.InlineButtons(buttons))
}

// cbAddPack commits the pending item into the chosen pack.
func (h *Handlers) cbAddPack(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Add(sess)
	if data == nil || data.PendingRef == "" {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Send the item again.")
	}
	packID, err := callbackID(c)
	if err != nil {
		return tghelpers.EditOrSendMD(c, "This pack is gone.")
	}

	ctx := tghelpers.BuildContext(c)
	if _, ferr := h.store.FindItemByRef(ctx, packID, data.PendingRef); ferr == nil {
		h.sessions.Finish(c.Sender().ID)
		return tghelpers.EditOrSendMD(c, "That item is already in this pack.")
	}

	format := "static"
	if data.Animated {
		format = "animated"
	}
	_, err = h.store.AddItem(ctx, packID, c.Sender().ID, storage.ItemParams{
		ContentRef: data.PendingRef,
		Emoji:      data.PendingEmoji,
		Format:     format,
		Animated:   data.Animated,
	})
	h.sessions.Finish(c.Sender().ID)
	if err != nil {
		return tghelpers.EditOrSendMD(c, userMessage(err))
	}

	pack, perr := h.store.GetPack(ctx, packID)
	if perr != nil {
		return tghelpers.EditOrSendMD(c, "Added.")
	}
	return tghelpers.EditOrSendMD(c,
		fmt.Sprintf("Added. *%s* now has %d items.\n%s", mdEscape(pack.Title), pack.ItemCount, pack.PackLink))
}

// fsmAddItem consumes a follow-up item while the add flow waits for one.
// Reaching here means the user answered the pack chooser with a new asset
// instead of a button press; the new asset replaces the pending one.
func (h *Handlers) fsmAddItem(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Add(sess)
	if data == nil {
		return nil
	}
	item, err := h.itemFromMessage(c, models.PackKindSticker)
	if err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}
	data.PendingRef = item.ContentRef
	data.PendingEmoji = item.Emoji
	data.Animated = item.Animated
	return tghelpers.SendMD(c, "Got it. Now pick the pack from the buttons above.")
}
