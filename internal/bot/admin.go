package bot

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/packbot/core/logger"
	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/internal/models"
	"github.com/m3rciful/packbot/internal/storage"
)

// settingItemsForSale is the operator toggle behind /set.
const settingItemsForSale = "owner_items_for_sale"

// AdminCmd grants admin exemption to a user id. Owner only; the AdminOnly
// route middleware is the first gate, the Authorizer the second.
func (h *Handlers) AdminCmd(c tele.Context) error {
	if !h.auth.IsAuthorized(c.Sender().ID, CapAdmin) {
		return tghelpers.SendMD(c, userMessage(errNotAuthorized))
	}
	targetID, err := strconv.ParseInt(commandArg(c), 10, 64)
	if err != nil {
		return tghelpers.SendMD(c, "Usage: /admin <user_id>")
	}

	ctx := tghelpers.BuildContext(c)
	if _, err := h.store.GetOrCreateUser(ctx, targetID); err != nil {
		return err
	}
	if err := h.store.SetTier(ctx, targetID, models.TierAdminExempt); err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}
	return tghelpers.SendMD(c, fmt.Sprintf("User `%d` is now exempt from limits.", targetID))
}

// BroadcastCmd sends the argument text, or the replied-to message, to every
// known user. Per-recipient failures are skipped and counted.
func (h *Handlers) BroadcastCmd(c tele.Context) error {
	if !h.auth.IsAuthorized(c.Sender().ID, CapBroadcast) {
		return tghelpers.SendMD(c, userMessage(errNotAuthorized))
	}

	text := commandTail(c)
	var source *tele.Message
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil {
		source = msg.ReplyTo
	}
	if text == "" && source == nil {
		return tghelpers.SendMD(c, "Usage: /broadcast <message>, or reply to a message with /broadcast.")
	}

	ctx := tghelpers.BuildContext(c)
	ids, err := h.store.ListUserIDs(ctx)
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, id := range ids {
		recipient := &tele.User{ID: id}
		var sendErr error
		if source != nil {
			_, sendErr = c.Bot().Copy(recipient, source)
		} else {
			_, sendErr = c.Bot().Send(recipient, text)
		}
		if sendErr != nil {
			failed++
			continue
		}
		sent++
	}

	logger.SVCUsers.LogAttrs(ctx, slog.LevelInfo, "broadcast.done",
		slog.String("event", "broadcast.done"),
		slog.Int("recipients", len(ids)),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
	)
	return tghelpers.SendMD(c, fmt.Sprintf("Broadcast done: %d sent, %d failed.", sent, failed))
}

// SettingCmd toggles the items-for-sale setting.
func (h *Handlers) SettingCmd(c tele.Context) error {
	if !h.auth.IsAuthorized(c.Sender().ID, CapSettings) {
		return tghelpers.SendMD(c, userMessage(errNotAuthorized))
	}

	ctx := tghelpers.BuildContext(c)
	switch commandArg(c) {
	case "on":
		if err := h.store.SetSetting(ctx, settingItemsForSale, "true"); err != nil {
			return err
		}
		return tghelpers.SendMD(c, "Items for sale: *on*")
	case "off":
		if err := h.store.SetSetting(ctx, settingItemsForSale, "false"); err != nil {
			return err
		}
		return tghelpers.SendMD(c, "Items for sale: *off*")
	}

	current, err := h.store.GetBoolSetting(ctx, settingItemsForSale, false)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("Items for sale is *%v*. Usage: /set on|off", current))
}

// ExportCmd dumps the full state snapshot to the backup dir and sends it back.
func (h *Handlers) ExportCmd(c tele.Context) error {
	if !h.auth.IsAuthorized(c.Sender().ID, CapAdmin) {
		return tghelpers.SendMD(c, userMessage(errNotAuthorized))
	}

	ctx := tghelpers.BuildContext(c)
	snap, err := h.store.Export(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := h.backupDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("backup dir: %w", err)
	}
	name := fmt.Sprintf("packbot_%s_%s.json",
		time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	doc := &tele.Document{File: tele.FromDisk(path), FileName: name}
	return c.Send(doc)
}

// DocumentHandler routes documents that arrive outside any flow. A document
// captioned /import runs the import; anything else is ignored.
func (h *Handlers) DocumentHandler(c tele.Context) error {
	msg := c.Message()
	if msg == nil || !strings.HasPrefix(strings.ToLower(msg.Caption), "/import") {
		return nil
	}
	return h.ImportCmd(c)
}

// ImportCmd restores the state from an attached snapshot, all or nothing.
func (h *Handlers) ImportCmd(c tele.Context) error {
	if !h.auth.IsAuthorized(c.Sender().ID, CapAdmin) {
		return tghelpers.SendMD(c, userMessage(errNotAuthorized))
	}

	msg := c.Message()
	var doc *tele.Document
	if msg != nil {
		doc = msg.Document
		if doc == nil && msg.ReplyTo != nil {
			doc = msg.ReplyTo.Document
		}
	}
	if doc == nil {
		return tghelpers.SendMD(c, "Attach a snapshot file to /import, or reply to one.")
	}

	rc, err := c.Bot().File(&doc.File)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 32<<20))
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var parsed storage.Snapshot
	if err := json.Unmarshal(data, &parsed); err != nil {
		return tghelpers.SendMD(c, "That file is not a valid snapshot.")
	}

	ctx := tghelpers.BuildContext(c)
	if err := h.store.Import(ctx, parsed); err != nil {
		return tghelpers.SendMD(c, userMessage(err))
	}
	return tghelpers.SendMD(c,
		fmt.Sprintf("Imported: %d users, %d packs, %d items.",
			len(parsed.Users), len(parsed.Packs), len(parsed.Items)))
}
