// Package guide wires the menu machine into the Telegram runtime.
package guide

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/guidebot/core/config"
	"github.com/m3rciful/guidebot/core/index"
	"github.com/m3rciful/guidebot/core/knowledge"
	"github.com/m3rciful/guidebot/core/menu"
	coretelegram "github.com/m3rciful/guidebot/core/telegram"
	"github.com/m3rciful/guidebot/core/telegram/router"
)

// Command names.
const (
	CmdStart = "/start"
	CmdMenu  = "/menu"
	CmdIndex = "/index"
)

// Callback keys as produced by callbacks.ParseData for menu payloads.
const (
	KeyTopic    = "theme"
	KeySubtopic = "sub"
	KeyBack     = menu.PayloadBack
)

// App is the guide bot: knowledge, index and the machine rendering them.
type App struct {
	cfg     *coreconfig.Config
	store   *knowledge.Store
	idx     *index.Index
	origin  index.Origin
	machine *menu.Machine
	pause   time.Duration
}

// New builds the bot over a loaded store and index.
func New(cfg *coreconfig.Config, store *knowledge.Store, idx *index.Index, origin index.Origin) (*App, error) {
	if cfg == nil || store == nil || idx == nil {
		return nil, fmt.Errorf("guide: config, store and index are required")
	}
	m := menu.New(store, idx,
		menu.WithTexts(menu.Texts(cfg.Menu.Texts)),
		menu.WithChunkSize(cfg.Menu.ChunkSize),
	)
	return &App{
		cfg:     cfg,
		store:   store,
		idx:     idx,
		origin:  origin,
		machine: m,
		pause:   time.Duration(cfg.Menu.ChunkPauseMS) * time.Millisecond,
	}, nil
}

// Machine exposes the menu machine.
func (a *App) Machine() *menu.Machine { return a.machine }

// Registry returns a registry with every guide command and callback.
func (a *App) Registry() (*coretelegram.Registry, error) {
	reg := coretelegram.NewRegistry()
	if err := reg.RegisterCommand(CmdStart, coretelegram.Command{
		Handler:     a.handleStart,
		Description: "Open the menu",
		Aliases:     []string{CmdMenu},
	}); err != nil {
		return nil, err
	}
	if err := reg.RegisterCommand(CmdIndex, coretelegram.Command{
		Handler:     a.handleIndexReport,
		Description: "Index report",
		AdminOnly:   true,
		Hidden:      true,
	}); err != nil {
		return nil, err
	}
	for _, key := range []string{KeyTopic, KeySubtopic, KeyBack} {
		if err := reg.RegisterCallback(key, a.handleCallback); err != nil {
			return nil, err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error { return c.Respond() })
	return reg, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg, err := a.Registry()
	if err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("guide: registry: %w", err)
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{UnknownText: a.handleUnknownText})...)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, onLimited),
		Routes:      routes,
	}, nil
}

// onLimited clears the spinner of a throttled button press.
func onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond()
	}
	return nil
}
