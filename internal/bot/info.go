package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/keyboard"
	"github.com/m3rciful/packbot/internal/models"
)

// Start registers the user and shows the greeting.
func (h *Handlers) Start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user, err := h.store.GetOrCreateUser(ctx, c.Sender().ID)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf(
		"Hi! I build and manage emoji and sticker packs for you.\n\n"+
			"Free pack slots left: *%d*\nSend /help to see what I can do.",
		user.FreePackUses,
	)
	return tghelpers.SendMD(c, msg)
}

// Help lists the available actions.
func (h *Handlers) Help(c tele.Context) error {
	msg := strings.Join([]string{
		"*Packs*",
		"/create — create an emoji or sticker pack",
		"/mypack — list your packs",
		"/rem — remove an item from a pack",
		"/delete — delete a whole pack",
		"/duplicate <link> — copy an existing pack (paid)",
		"",
		"*Adaptive emoji*",
		"/apack — buy an adaptive pack",
		"/acr — render an adaptive emoji from text, photo, or emoji",
		"",
		"*Payments*",
		"/bpack <emoji|sticker> — buy a paid pack slot",
		"",
		"Send a sticker or photo at any time to add it to one of your packs.",
		"/cancel stops the current flow at any step.",
	}, "\n")
	return tghelpers.SendMD(c, msg)
}

// Cancel discards the open flow, if any. Cancelling is always side-effect
// free: nothing was pushed to the platform before the committing step.
func (h *Handlers) Cancel(c tele.Context) error {
	if h.sessions.Cancel(c.Sender().ID) {
		return tghelpers.SendMD(c, "Cancelled. Nothing was changed.")
	}
	return tghelpers.SendMD(c, "Nothing to cancel.")
}

// cbFlowCancel is the inline-button twin of /cancel.
func (h *Handlers) cbFlowCancel(c tele.Context) error {
	h.sessions.Cancel(c.Sender().ID)
	return tghelpers.EditOrSendMD(c, "Cancelled. Nothing was changed.")
}

// MyPacks lists the user's packs with inline detail buttons.
func (h *Handlers) MyPacks(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	packs, err := h.store.ListPacks(ctx, c.Sender().ID, "")
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		return tghelpers.SendMD(c, "You have no packs yet. Start with /create.")
	}

	buttons := make([]keyboard.InlineBtn, 0, len(packs))
	for _, p := range packs {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s %s (%d)", kindBadge(p.Kind), p.Title, p.ItemCount),
			Unique: cbPackInfo,
			Data:   strconv.FormatInt(p.PackID, 10),
		})
	}
	return tghelpers.SendMD(c, "Your packs:", keyboard.InlineButtons(buttons))
}

// cbPackInfo shows the detail view for one pack.
func (h *Handlers) cbPackInfo(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	packID, err := callbackID(c)
	if err != nil {
		return tghelpers.EditOrSendMD(c, "This pack is gone.")
	}
	pack, err := h.store.GetPack(ctx, packID)
	if err != nil {
		return tghelpers.EditOrSendMD(c, "This pack is gone.")
	}
	if pack.OwnerUserID != c.Sender().ID {
		return tghelpers.EditOrSendMD(c, "This pack is not yours.")
	}

	tier := "free"
	if pack.IsPaidPack {
		tier = "paid"
	}
	capacity := h.store.Limits().Capacity(pack.IsPaidPack, pack.Kind)
	msg := fmt.Sprintf(
		"*%s*\nKind: %s (%s)\nItems: %d / %d\n%s",
		mdEscape(pack.Title), pack.Kind, tier, pack.ItemCount, capacity, pack.PackLink,
	)
	return tghelpers.EditOrSendMD(c, msg)
}

func kindBadge(kind models.PackKind) string {
	switch kind {
	case models.PackKindSticker:
		return "🧩"
	case models.PackKindAdaptive:
		return "✨"
	}
	return "😀"
}
