package bot

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/keyboard"
	"github.com/m3rciful/packbot/internal/session"
)

// RemoveCmd starts the item-removal flow with a pack chooser.
func (h *Handlers) RemoveCmd(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	packs, err := h.store.ListPacks(ctx, c.Sender().ID, "")
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		return tghelpers.SendMD(c, "You have no packs.")
	}

	if _, err := h.sessions.Begin(c.Sender().ID, session.FlowRemove, session.StateRemoveAwaitingPack, &session.RemoveData{}); err != nil {
		return h.rejectOpenFlow(c, err)
	}

	buttons := make([]keyboard.InlineBtn, 0, len(packs)+1)
	for _, p := range packs {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s %s (%d)", kindBadge(p.Kind), p.Title, p.ItemCount),
			Unique: cbRemovePack,
			Data:   strconv.FormatInt(p.PackID, 10),
		})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: "❌ Cancel", Unique: cbFlowCancel, Data: "cancel"})
	return tghelpers.SendMD(c, "Remove an item from which pack?", keyboard.InlineButtons(buttons))
}

// cbRemovePack shows the item chooser for the selected pack.
func (h *Handlers) cbRemovePack(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Remove(sess)
	if data == nil {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /rem.")
	}
	packID, err := callbackID(c)
	if err != nil {
		return tghelpers.EditOrSendMD(c, "This pack is gone.")
	}

	ctx := tghelpers.BuildContext(c)
	pack, err := h.store.GetPack(ctx, packID)
	if err != nil || pack.OwnerUserID != c.Sender().ID {
		return tghelpers.EditOrSendMD(c, "This pack is gone.")
	}
	items, err := h.store.ListItems(ctx, packID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		h.sessions.Finish(c.Sender().ID)
		return tghelpers.EditOrSendMD(c, "This pack has no items.")
	}

	data.PackID = packID
	h.sessions.Advance(c.Sender().ID, session.StateRemoveAwaitingTarget)

	buttons := make([]keyboard.InlineBtn, 0, len(items)+1)
	for i, it := range items {
		label := it.Emoji.String
		if label == "" {
			label = fmt.Sprintf("item %d", i+1)
		}
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   label,
			Unique: cbRemoveItem,
			Data:   strconv.FormatInt(it.ItemID, 10),
		})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: "❌ Cancel", Unique: cbFlowCancel, Data: "cancel"})
	return tghelpers.EditOrSendMD(c,
		fmt.Sprintf("Which item of *%s* should go?", mdEscape(pack.Title)),
		keyboard.InlineButtonsNPerRow(buttons, 4))
}

// cbRemoveItem asks for confirmation before touching anything.
func (h *Handlers) cbRemoveItem(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Remove(sess)
	if data == nil || data.PackID == 0 {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /rem.")
	}
	itemID, err := callbackID(c)
	if err != nil {
		return tghelpers.EditOrSendMD(c, "That item is gone.")
	}

	data.ItemID = itemID
	h.sessions.Advance(c.Sender().ID, session.StateRemoveAwaitingConfirm)

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Remove", Unique: cbRemoveConfirm, Data: "yes"},
		{Text: "❌ Keep it", Unique: cbFlowCancel, Data: "cancel"},
	})
	return tghelpers.EditOrSendMD(c, "Remove this item? This also removes it from Telegram.", markup)
}

// cbRemoveConfirm commits the removal. A repeat tap after the item vanished
// reports not found instead of failing silently.
func (h *Handlers) cbRemoveConfirm(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Remove(sess)
	if data == nil || data.PackID == 0 || data.ItemID == 0 {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /rem.")
	}

	ctx := tghelpers.BuildContext(c)
	err := h.store.RemoveItem(ctx, data.PackID, c.Sender().ID, data.ItemID)
	h.sessions.Finish(c.Sender().ID)
	if err != nil {
		return tghelpers.EditOrSendMD(c, userMessage(err))
	}
	return tghelpers.EditOrSendMD(c, "Removed.")
}
