package bot

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/keyboard"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/session"
)

// DeleteCmd starts the pack-deletion flow, optionally pre-filtered by kind
// (/delete emoji, /delete sticker).
func (h *Handlers) DeleteCmd(c tele.Context) error {
	var kind models.PackKind
	switch commandArg(c) {
	case "emoji":
		kind = models.PackKindEmoji
	case "sticker":
		kind = models.PackKindSticker
	}

	ctx := tghelpers.BuildContext(c)
	packs, err := h.store.ListPacks(ctx, c.Sender().ID, kind)
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		return tghelpers.SendMD(c, "You have no matching packs.")
	}

	if _, err := h.sessions.Begin(c.Sender().ID, session.FlowDelete, session.StateDeleteAwaitingPack, &session.DeleteData{}); err != nil {
		return h.rejectOpenFlow(c, err)
	}

	buttons := make([]keyboard.InlineBtn, 0, len(packs)+1)
	for _, p := range packs {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s %s (%d)", kindBadge(p.Kind), p.Title, p.ItemCount),
			Unique: cbDeletePack,
			Data:   strconv.FormatInt(p.PackID, 10),
		})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: "❌ Cancel", Unique: cbFlowCancel, Data: "cancel"})
	return tghelpers.SendMD(c, "Delete which pack?", keyboard.InlineButtons(buttons))
}

// cbDeletePack asks for explicit confirmation. The default action is safe:
// anything but the confirm button keeps the pack.
func (h *Handlers) cbDeletePack(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Delete(sess)
	if data == nil {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /delete.")
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

	data.PackID = packID
	data.Slug = pack.Name
	h.sessions.Advance(c.Sender().ID, session.StateDeleteAwaitingConfirm)

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "🗑 Delete forever", Unique: cbDeleteConfirm, Data: "yes"},
		{Text: "❌ Keep it", Unique: cbFlowCancel, Data: "cancel"},
	})
	return tghelpers.EditOrSendMD(c,
		fmt.Sprintf("Delete *%s* with all %d items? This removes it from Telegram and cannot be undone.",
			mdEscape(pack.Title), pack.ItemCount),
		markup)
}

// cbDeleteConfirm commits the deletion.
func (h *Handlers) cbDeleteConfirm(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Delete(sess)
	if data == nil || data.PackID == 0 {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /delete.")
	}

	ctx := tghelpers.BuildContext(c)
	err := h.store.DeletePack(ctx, data.PackID, c.Sender().ID)
	h.sessions.Finish(c.Sender().ID)
	if err != nil {
		return tghelpers.EditOrSendMD(c, userMessage(err))
	}
	return tghelpers.EditOrSendMD(c, "The pack is gone.")
}
