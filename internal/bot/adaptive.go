package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/keyboard"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/render"
	"github.com/m3rciful/packbot/internal/session"
	"github.com/m3rciful/packbot/internal/storage"
)

// AdaptiveCmd starts the adaptive-emoji render flow.
func (h *Handlers) AdaptiveCmd(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user, err := tghelpers.CurrentUser[models.User](ctx, h.store, c.Sender().ID)
	if err != nil || !user.AdaptivePackID.Valid {
		return tghelpers.SendMD(c, "You need an adaptive pack first. Get one with /apack.")
	}

	data := &session.AdaptiveData{PackID: user.AdaptivePackID.Int64}
	if _, err := h.sessions.Begin(c.Sender().ID, session.FlowAdaptive, session.StateAdaptiveAwaitingInput, data); err != nil {
		return h.rejectOpenFlow(c, err)
	}
	return tghelpers.SendMD(c,
		"Send text (each message is one line), a photo, a sticker, or an emoji.",
		keyboard.SingleCancelMarkup(cbFlowCancel))
}

// fsmAdaptiveInput collects input. Text accumulates line by line until the
// user submits; any media input skips straight to committing.
func (h *Handlers) fsmAdaptiveInput(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Adaptive(sess)
	if data == nil {
		return tghelpers.SendMD(c, "This flow has expired. Start over with /acr.")
	}

	msg := c.Message()
	switch {
	case msg != nil && msg.Sticker != nil:
		data.InputKind = render.InputSticker
		data.ContentRef = msg.Sticker.FileID
		data.Animated = msg.Sticker.Animated || msg.Sticker.Video
		return h.commitAdaptive(c, data)

	case msg != nil && msg.Photo != nil:
		data.InputKind = render.InputPhoto
		data.ContentRef = msg.Photo.FileID
		return h.commitAdaptive(c, data)

	case msg != nil && isSingleEmoji(msg.Text):
		data.InputKind = render.InputEmoji
		data.ContentRef = msg.Text
		return h.commitAdaptive(c, data)

	case msg != nil && msg.Text != "":
		data.InputKind = render.InputText
		data.Lines = append(data.Lines, msg.Text)
		if err := render.ValidateText(data.Lines); err != nil {
			data.Lines = data.Lines[:len(data.Lines)-1]
			return tghelpers.SendMD(c, "That makes the text too long. Submit what you have or shorten it.")
		}
		markup := keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{{Text: "➡️ Choose font", Unique: cbTextDone, Data: "go"}},
			[]keyboard.InlineBtn{{Text: "❌ Cancel", Unique: cbFlowCancel, Data: "cancel"}},
		)
		preview := strings.Join(data.Lines, "\n")
		return tghelpers.SendMD(c,
			fmt.Sprintf("Current text:\n```\n%s\n```\nSend another message to add a line, or continue.", preview),
			markup)
	}
	return tghelpers.SendMD(c, "Send text, a photo, a sticker, or an emoji.")
}

// cbTextDone closes line collection and shows the font chooser.
func (h *Handlers) cbTextDone(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Adaptive(sess)
	if data == nil || len(data.Lines) == 0 {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /acr.")
	}

	h.sessions.Advance(c.Sender().ID, session.StateAdaptiveAwaitingFont)
	fonts := render.Fonts()
	buttons := make([]keyboard.InlineBtn, 0, len(fonts))
	for i, f := range fonts {
		buttons = append(buttons, keyboard.InlineBtn{Text: f.Name, Unique: cbFont, Data: fmt.Sprint(i)})
	}
	return tghelpers.EditOrSendMD(c, "Pick a font:", keyboard.InlineButtonsNPerRow(buttons, 3))
}

// cbFont records the font and shows the background chooser.
func (h *Handlers) cbFont(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Adaptive(sess)
	if data == nil {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /acr.")
	}
	idx, err := callbackID(c)
	if err != nil {
		return tghelpers.EditOrSendMD(c, "Pick a font from the buttons.")
	}
	if _, ok := render.FontByIndex(int(idx)); !ok {
		return tghelpers.EditOrSendMD(c, "Pick a font from the buttons.")
	}

	data.FontIndex = int(idx)
	h.sessions.Advance(c.Sender().ID, session.StateAdaptiveAwaitingBackground)
	return h.promptBackground(c)
}

func (h *Handlers) promptBackground(c tele.Context) error {
	labels := map[render.BackgroundMode]string{
		render.BackgroundNone:            "None",
		render.BackgroundHalfTransparent: "Half transparent",
		render.BackgroundFillOnly:        "Fill only",
	}
	buttons := make([]keyboard.InlineBtn, 0, 3)
	for _, mode := range render.BackgroundModes() {
		buttons = append(buttons, keyboard.InlineBtn{Text: labels[mode], Unique: cbBackground, Data: string(mode)})
	}
	return tghelpers.EditOrSendMD(c, "Pick a background:", keyboard.InlineButtons(buttons))
}

// cbBackground validates feasibility and commits. An infeasible background
// reprompts the selection rather than cancelling the whole flow.
func (h *Handlers) cbBackground(c tele.Context) error {
	sess, _ := h.sessions.Active(c.Sender().ID)
	data := session.Adaptive(sess)
	if data == nil || len(data.Lines) == 0 {
		return tghelpers.EditOrSendMD(c, "This flow has expired. Start over with /acr.")
	}
	mode, ok := render.ParseBackground(payload(c))
	if !ok {
		return tghelpers.EditOrSendMD(c, "Pick a background from the buttons.")
	}

	ctx := tghelpers.BuildContext(c)
	if err := h.pipeline.ValidateBackground(ctx, mode); err != nil {
		if sendErr := tghelpers.SendMD(c, userMessage(err)); sendErr != nil {
			return sendErr
		}
		return h.promptBackground(c)
	}

	data.Background = mode
	return h.commitAdaptive(c, data)
}

// commitAdaptive renders the asset and adds it to the adaptive pack.
func (h *Handlers) commitAdaptive(c tele.Context, data *session.AdaptiveData) error {
	ctx := tghelpers.BuildContext(c)

	in := render.Input{
		Kind:       data.InputKind,
		ContentRef: data.ContentRef,
		Animated:   data.Animated,
	}
	opts := render.Options{
		Background: data.Background,
		TargetKind: models.PackKindAdaptive,
	}
	switch data.InputKind {
	case render.InputText:
		in.Text = strings.Join(data.Lines, "\n")
		font, ok := render.FontByIndex(data.FontIndex)
		if !ok {
			font, _ = render.FontByIndex(0)
		}
		opts.Font = font
	case render.InputEmoji:
		// The emoji character itself is the input, not a file reference.
		in.Text = data.ContentRef
		in.ContentRef = ""
	}

	asset, err := h.pipeline.Render(ctx, in, opts)
	if err != nil {
		h.sessions.Finish(c.Sender().ID)
		return tghelpers.EditOrSendMD(c, userMessage(err))
	}

	_, err = h.store.AddItem(ctx, data.PackID, c.Sender().ID, storage.ItemParams{
		ContentRef: asset.Ref,
		Format:     asset.Format,
		Animated:   asset.Animated,
	})
	h.sessions.Finish(c.Sender().ID)
	if err != nil {
		return tghelpers.EditOrSendMD(c, userMessage(err))
	}
	return tghelpers.EditOrSendMD(c, "Rendered and added to your adaptive pack. ✨")
}
