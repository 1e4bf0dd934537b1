// Package hotkey owns the global toggle shortcut: one trigger callback and
// an optional binder that installs the shortcut with the compositor.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/dictum/internal/config"
	"github.com/rbright/dictum/internal/hypr"
)

// Binder installs and removes a shortcut outside the process.
type Binder interface {
	Bind(ctx context.Context, hk config.HotkeyConfig) error
	Unbind(ctx context.Context, hk config.HotkeyConfig) error
}

// Service dispatches triggers to a single handler. Register and Unregister
// are idempotent.
type Service struct {
	binder Binder
	logger *slog.Logger

	mu         sync.Mutex
	handler    func() string
	registered *config.HotkeyConfig
}

// NewService builds a service. binder may be nil, in which case the shortcut
// is expected to be bound by the user and only Fire delivers triggers.
func NewService(binder Binder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{binder: binder, logger: logger}
}

// OnTrigger replaces the trigger handler. The handler's return value is
// handed back by Fire, e.g. whether recording started or stopped.
func (s *Service) OnTrigger(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Fire delivers one trigger. It reports false when no handler is set.
func (s *Service) Fire() (string, bool) {
	s.mu.Lock()
	fn := s.handler
	s.mu.Unlock()
	if fn == nil {
		return "", false
	}
	return fn(), true
}

// Register installs hk, replacing any previously registered shortcut.
// Registering the same shortcut twice is a no-op.
func (s *Service) Register(ctx context.Context, hk config.HotkeyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered != nil && sameShortcut(*s.registered, hk) {
		return nil
	}
	if s.registered != nil {
		if err := s.unbindLocked(ctx); err != nil {
			return err
		}
	}
	if s.binder != nil {
		if err := s.binder.Bind(ctx, hk); err != nil {
			return fmt.Errorf("register hotkey %s: %w", Describe(hk), err)
		}
	}
	s.registered = &hk
	s.logger.Info("hotkey registered", "shortcut", Describe(hk))
	return nil
}

// Unregister removes the current shortcut, if any.
func (s *Service) Unregister(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered == nil {
		return nil
	}
	return s.unbindLocked(ctx)
}

func (s *Service) current() (config.HotkeyConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered == nil {
		return config.HotkeyConfig{}, false
	}
	return *s.registered, true
}

func (s *Service) unbindLocked(ctx context.Context) error {
	old := *s.registered
	if s.binder != nil {
		if err := s.binder.Unbind(ctx, old); err != nil {
			return fmt.Errorf("unregister hotkey %s: %w", Describe(old), err)
		}
	}
	s.registered = nil
	s.logger.Info("hotkey unregistered", "shortcut", Describe(old))
	return nil
}

func sameShortcut(a, b config.HotkeyConfig) bool {
	return a.KeyCode == b.KeyCode && a.Modifiers == b.Modifiers
}

// Describe renders hk for logs, preferring its display name.
func Describe(hk config.HotkeyConfig) string {
	if hk.DisplayName != "" {
		return hk.DisplayName
	}
	if mods := hk.Modifiers.String(); mods != "" {
		return fmt.Sprintf("%s code:%d", mods, hk.KeyCode)
	}
	return fmt.Sprintf("code:%d", hk.KeyCode)
}

// HyprBinder installs the shortcut as a Hyprland keybind that runs Command.
type HyprBinder struct {
	Command string
}

func (b HyprBinder) Bind(ctx context.Context, hk config.HotkeyConfig) error {
	return hypr.Bind(ctx, keybind(hk), b.Command)
}

func (b HyprBinder) Unbind(ctx context.Context, hk config.HotkeyConfig) error {
	return hypr.Unbind(ctx, keybind(hk))
}

func keybind(hk config.HotkeyConfig) hypr.Keybind {
	return hypr.Keybind{Mods: hk.Modifiers.String(), KeyCode: hk.KeyCode}
}
