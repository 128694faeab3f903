package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/guidebot/core/logger"
)

var (
	// ErrDuplicate is returned when a command, alias or callback key is taken.
	ErrDuplicate = errors.New("telegram: already registered")
	// ErrInvalidRegistration is returned for empty names or missing handlers.
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
)

// Command is a bot command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are guarded and never published in the command menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Registry maps slash commands and callback keys to handlers. It is safe
// for concurrent reads once wiring is done.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]Command
	aliases   map[string]string // "/alias" -> "/command"
	callbacks map[string]tele.HandlerFunc

	notFound     tele.HandlerFunc
	textFallback tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler just
// answers the callback.
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]Command{},
		aliases:   map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
		notFound:  func(c tele.Context) error { return c.Respond() },
	}
}

func slashed(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Aliases may be given with or without the slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	if cmd.Handler == nil || cmd.Description == "" || !strings.HasPrefix(name, "/") || len(name) < 2 {
		return fmt.Errorf("command %q: %w", name, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := func(n string) bool {
		_, isCmd := r.commands[n]
		_, isAlias := r.aliases[n]
		return isCmd || isAlias
	}
	if taken(name) {
		r.warnDuplicate("register.command.duplicate", name)
		return fmt.Errorf("command %s: %w", name, ErrDuplicate)
	}
	for _, a := range cmd.Aliases {
		if a = slashed(a); a == name || taken(a) {
			r.warnDuplicate("register.command.duplicate", a)
			return fmt.Errorf("alias %s of %s: %w", a, name, ErrDuplicate)
		}
	}

	r.commands[name] = cmd
	for _, a := range cmd.Aliases {
		r.aliases[slashed(a)] = name
	}
	return nil
}

// ListCommands returns commands ordered by name. With visibleOnly, hidden
// and admin-only commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return cmp.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves name or an alias, with or without the slash, to
// the canonical command.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	name = slashed(name)
	if name == "" {
		return "", Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", Command{}, false
	}
	return name, cmd, true
}

// Commands returns a snapshot of the registered commands.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return fmt.Errorf("callback %q: %w", key, ErrInvalidRegistration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.callbacks[key]; ok {
		r.warnDuplicate("register.callback.duplicate", key)
		return fmt.Errorf("callback %s: %w", key, ErrDuplicate)
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unregistered callback keys.
// A nil h is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.notFound = h
	}
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc { return r.notFound }

// SetTextFallback sets the handler for text that is not a known command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) { r.textFallback = h }

func (r *Registry) TextFallback() tele.HandlerFunc { return r.textFallback }

func (r *Registry) warnDuplicate(event, name string) {
	logger.Warn(context.Background(), logger.CompTWire, event, slog.String("op", name))
}

// SetupCommands publishes the visible commands to the Telegram command menu.
func SetupCommands(bot *tele.Bot, reg *Registry) {
	cmds := reg.ListCommands(true)
	if len(cmds) == 0 {
		return
	}
	ctx := context.Background()
	if err := bot.SetCommands(cmds); err != nil {
		logger.Error(ctx, logger.CompTWire, "register.commands",
			slog.String("status", "fail"),
			slog.String("err", logger.Sanitize(err.Error())),
		)
		return
	}
	logger.Info(ctx, logger.CompTWire, "register.commands",
		slog.String("status", "ok"),
		slog.Int("count", len(cmds)),
	)
}
