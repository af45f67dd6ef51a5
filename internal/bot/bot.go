// Package bot is the flow controller: it binds commands, callbacks, and FSM
// states to the pack store, the session manager, and the render pipeline.
package bot

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/packbot/core/telegram"
	"github.com/m3rciful/packbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/state"
	"github.com/m3rciful/packbot/internal/render"
	"github.com/m3rciful/packbot/internal/session"
	"github.com/m3rciful/packbot/internal/storage"
)

// Authorizer gates owner-only capabilities.
type Authorizer interface {
	IsAuthorized(userID int64, capability string) bool
}

// Capabilities checked through the Authorizer.
const (
	CapAdmin     = "admin"
	CapBroadcast = "broadcast"
	CapSettings  = "settings"
	CapAdaptive  = "adaptive"
	CapDuplicate = "duplicate"
)

// OwnerAuthorizer authorizes a single configured account for everything.
type OwnerAuthorizer struct {
	OwnerID int64
}

// IsAuthorized reports whether the user holds the capability.
func (a OwnerAuthorizer) IsAuthorized(userID int64, _ string) bool {
	return a.OwnerID != 0 && userID == a.OwnerID
}

// Prices are the Stars (XTR) amounts charged per purchase purpose.
type Prices struct {
	BuyEmojiPack   int
	BuyStickerPack int
	AdaptivePack   int
	Duplicate      int
}

// Options wires the flow controller.
type Options struct {
	Store    *storage.Store
	Sessions state.Manager
	Pipeline *render.Pipeline
	Auth     Authorizer
	Prices   Prices

	// UpgradeOpenFlows controls whether a /bpack purchase upgrades a
	// creation flow that is already open. Off by default: the purchase
	// applies to flows started afterwards.
	UpgradeOpenFlows bool
	// BackupDir is where /export drops snapshot files before sending them.
	BackupDir string
}

// Handlers owns every user-facing handler of the bot.
type Handlers struct {
	store    *storage.Store
	sessions state.Manager
	pipeline *render.Pipeline
	auth     Authorizer
	prices   Prices

	upgradeOpenFlows bool
	backupDir        string
}

// New builds the flow controller.
func New(opts Options) *Handlers {
	return &Handlers{
		store:            opts.Store,
		sessions:         opts.Sessions,
		pipeline:         opts.Pipeline,
		auth:             opts.Auth,
		prices:           opts.Prices,
		upgradeOpenFlows: opts.UpgradeOpenFlows,
		backupDir:        opts.BackupDir,
	}
}

// Register binds all commands and callbacks into the registry and all FSM
// states into the state dispatcher.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{Handler: h.Start, Description: "Start and register"})
	reg.RegisterCommand("/help", commands.Command{Handler: h.Help, Description: "Show available actions"})
	reg.RegisterCommand("/create", commands.Command{Handler: h.CreateCmd, Description: "Create a new emoji or sticker pack"})
	reg.RegisterCommand("/mypack", commands.Command{Handler: h.MyPacks, Description: "List your packs"})
	reg.RegisterCommand("/rem", commands.Command{Handler: h.RemoveCmd, Description: "Remove an item from a pack"})
	reg.RegisterCommand("/delete", commands.Command{Handler: h.DeleteCmd, Description: "Delete a whole pack"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: h.Cancel, Description: "Cancel the current flow"})
	reg.RegisterCommand("/acr", commands.Command{Handler: h.AdaptiveCmd, Description: "Render an adaptive emoji"})
	reg.RegisterCommand("/apack", commands.Command{Handler: h.BuyAdaptiveCmd, Description: "Buy an adaptive pack"})
	reg.RegisterCommand("/bpack", commands.Command{Handler: h.BuyPackCmd, Description: "Buy a paid pack slot"})
	reg.RegisterCommand("/duplicate", commands.Command{Handler: h.DuplicateCmd, Description: "Duplicate a pack by link"})

	reg.RegisterCommand("/admin", commands.Command{Handler: h.AdminCmd, Description: "Grant admin exemption", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("/broadcast", commands.Command{Handler: h.BroadcastCmd, Description: "Broadcast a message", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("/set", commands.Command{Handler: h.SettingCmd, Description: "Toggle operator settings", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("/export", commands.Command{Handler: h.ExportCmd, Description: "Export a state snapshot", AdminOnly: true, Hidden: true})
	reg.RegisterCommand("/import", commands.Command{Handler: h.ImportCmd, Description: "Import a state snapshot", AdminOnly: true, Hidden: true})

	_ = reg.RegisterCallback(cbCreateKind, h.cbCreateKind)
	_ = reg.RegisterCallback(cbAddPack, h.cbAddPack)
	_ = reg.RegisterCallback(cbRemovePack, h.cbRemovePack)
	_ = reg.RegisterCallback(cbRemoveItem, h.cbRemoveItem)
	_ = reg.RegisterCallback(cbRemoveConfirm, h.cbRemoveConfirm)
	_ = reg.RegisterCallback(cbDeletePack, h.cbDeletePack)
	_ = reg.RegisterCallback(cbDeleteConfirm, h.cbDeleteConfirm)
	_ = reg.RegisterCallback(cbTextDone, h.cbTextDone)
	_ = reg.RegisterCallback(cbFont, h.cbFont)
	_ = reg.RegisterCallback(cbBackground, h.cbBackground)
	_ = reg.RegisterCallback(cbPackInfo, h.cbPackInfo)
	_ = reg.RegisterCallback(cbFlowCancel, h.cbFlowCancel)

	state.RegisterHandler(session.StateCreateAwaitingName, h.fsmCreateName)
	state.RegisterHandler(session.StateCreateAwaitingFirst, h.fsmCreateFirstItem)
	state.RegisterHandler(session.StateAddAwaitingPack, h.fsmAddItem)
	state.RegisterHandler(session.StateAdaptiveAwaitingInput, h.fsmAdaptiveInput)

	// States that wait on an inline keyboard choice still answer stray
	// messages instead of dropping them.
	for _, st := range []state.State{
		session.StateRemoveAwaitingPack,
		session.StateRemoveAwaitingTarget,
		session.StateRemoveAwaitingConfirm,
		session.StateDeleteAwaitingPack,
		session.StateDeleteAwaitingConfirm,
		session.StateAdaptiveAwaitingFont,
		session.StateAdaptiveAwaitingBackground,
	} {
		state.RegisterHandler(st, h.fsmButtonsReprompt)
	}
}

// fsmButtonsReprompt points the user back at the pending keyboard.
func (h *Handlers) fsmButtonsReprompt(c tele.Context) error {
	return tghelpers.SendMD(c, "Use the buttons above to continue, or /cancel to stop.")
}

// Callback keys. Payload follows after '|' in telebot's encoding.
const (
	cbCreateKind    = "create_kind"
	cbAddPack       = "addto"
	cbRemovePack    = "rempack"
	cbRemoveItem    = "remitem"
	cbRemoveConfirm = "remconfirm"
	cbDeletePack    = "delpack"
	cbDeleteConfirm = "delconfirm"
	cbTextDone      = "acr_text_done"
	cbFont          = "acr_font"
	cbBackground    = "acr_bg"
	cbPackInfo      = "packinfo"
	cbFlowCancel    = "flow_cancel"
)

// MediaHandler routes sticker and photo updates: an open flow consumes them
// through the FSM, a bare asset starts the add-to-pack flow.
func (h *Handlers) MediaHandler(c tele.Context) error {
	if h.sessions.InProgress(c.Sender().ID) {
		return h.sessions.ManagerHandler(c)
	}
	return h.startBareAdd(c)
}

// TextFallback handles free text outside any flow: a single emoji starts the
// add-to-pack flow, anything else gets the hint.
func (h *Handlers) TextFallback(hint tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if isSingleEmoji(c.Text()) {
			return h.startBareAdd(c)
		}
		if hint != nil {
			return hint(c)
		}
		return nil
	}
}
