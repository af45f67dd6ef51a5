// Package app assembles the bot: configuration, database, store, sessions,
// render pipeline, and the Telegram run options.
package app

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/packbot/core/bootstrap"
	coretelegram "github.com/m3rciful/packbot/core/telegram"
	tghelpers "github.com/m3rciful/packbot/core/telegram/helpers"
	"github.com/m3rciful/packbot/core/telegram/middleware"
	"github.com/m3rciful/packbot/core/telegram/router"
	"github.com/m3rciful/packbot/core/telegram/state"
	"github.com/m3rciful/packbot/core/telegram/ui"
	"github.com/m3rciful/packbot/internal/bot"
	"github.com/m3rciful/packbot/internal/platform"
	"github.com/m3rciful/packbot/internal/render"
	"github.com/m3rciful/packbot/internal/storage"
)

// App holds the assembled components of a running bot.
type App struct {
	cfg      *Config
	sessions state.Manager
	api      *platform.TelebotAPI
	store    *storage.Store
	handlers *bot.Handlers
}

// Bootstrap initializes infrastructure and builds the domain components.
func Bootstrap(cfg *Config) (*App, error) {
	result, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	// The adapter binds to the live bot in OnStart; handlers only run after
	// that point.
	api := &platform.TelebotAPI{}
	store := storage.NewStore(result.DB, api, cfg.Limits(), cfg.App.FreePackUses)
	sessions := state.NewMemoryManager(time.Duration(cfg.App.FlowTTLMinutes) * time.Minute)
	pipeline := render.NewPipeline(render.NewHTTPCodec(cfg.App.RendererURL, nil))

	handlers := bot.New(bot.Options{
		Store:    store,
		Sessions: sessions,
		Pipeline: pipeline,
		Auth:     bot.OwnerAuthorizer{OwnerID: cfg.App.OwnerID},
		Prices: bot.Prices{
			BuyEmojiPack:   cfg.App.Prices.BuyEmojiPack,
			BuyStickerPack: cfg.App.Prices.BuyStickerPack,
			AdaptivePack:   cfg.App.Prices.AdaptivePack,
			Duplicate:      cfg.App.Prices.Duplicate,
		},
		UpgradeOpenFlows: cfg.App.UpgradeOpenFlows,
		BackupDir:        cfg.App.BackupDir,
	})

	return &App{
		cfg:      cfg,
		sessions: sessions,
		api:      api,
		store:    store,
		handlers: handlers,
	}, nil
}

// TelegramRunOptions builds the routes and middlewares for the core runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a == nil || a.cfg == nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: not bootstrapped")
	}

	reg := coretelegram.NewRegistry()
	a.handlers.Register(reg)

	fallbacks := ui.StaticFallbacks{
		TextReply:     "I did not get that. Send /help to see what I can do.",
		CallbackReply: "This button is no longer active.",
	}
	reg.SetTextFallback(a.handlers.TextFallback(fallbacks.UnknownText()))
	reg.SetCallbackNotFound(fallbacks.UnknownCallback())

	mws := coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil)
	if a.cfg.App.OnlyPrivateChats {
		mws = append(mws, coretelegram.Middleware{Name: "private_only", Use: privateOnly})
	}
	mws = append(mws, coretelegram.Middleware{Name: "session", Use: state.WithSession(a.sessions)})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.App.OwnerID,
	})
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{
		UnknownDocument: a.handlers.DocumentHandler,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	routes = append(routes,
		coretelegram.Route{Endpoint: tele.OnSticker, Handler: wrap(a.handlers.MediaHandler)},
		coretelegram.Route{Endpoint: tele.OnPhoto, Handler: wrap(a.handlers.MediaHandler)},
		coretelegram.Route{Endpoint: tele.OnCheckout, Handler: wrap(a.handlers.Checkout)},
		coretelegram.Route{Endpoint: tele.OnPayment, Handler: wrap(a.handlers.PaymentSuccess)},
	)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: mws,
		Routes:      routes,
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			a.api.Bind(rt.Bot)
			return nil
		},
	}, nil
}

// privateOnly drops updates that did not originate from a private chat.
func privateOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat != nil && chat.Type != tele.ChatPrivate {
			_ = tghelpers.SendText(c, "I only work in private chats.")
			return nil
		}
		return next(c)
	}
}
