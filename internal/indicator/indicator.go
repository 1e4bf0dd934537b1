// Package indicator renders session views as compositor or desktop
// notifications and plays the audible cues.
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/dictum/internal/config"
	"github.com/rbright/dictum/internal/fsm"
	"github.com/rbright/dictum/internal/hypr"
	"github.com/rbright/dictum/internal/session"
)

// Settings hands out fresh settings snapshots.
type Settings interface {
	Snapshot() config.Snapshot
}

const (
	colorRecording  = "rgb(89b4fa)"
	colorProcessing = "rgb(cba6f7)"
	colorResult     = "rgb(a6e3a1)"
	colorError      = "rgb(f38ba8)"

	stickyTimeoutMS = 300000
	resultTimeoutMS = 4000
	previewRunes    = 120
)

// Notifier turns session views into notifications. It owns no session
// state; it only remembers what it last drew.
type Notifier struct {
	settings Settings
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	lastKey               string
	desktopNotificationID uint32
}

// NewNotifier creates a notifier.
func NewNotifier(settings Settings, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		settings: settings,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// Run renders views until ctx ends or the channel closes.
func (n *Notifier) Run(ctx context.Context, views <-chan session.View) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			n.Render(ctx, v)
		}
	}
}

// Render draws one view. Repeated identical views are drawn once.
func (n *Notifier) Render(ctx context.Context, v session.View) {
	cfg := n.settings.Snapshot().Indicator
	if !cfg.Enable {
		return
	}

	key := string(v.State) + "\x00" + v.Status + "\x00" + v.ActiveText()
	n.mu.Lock()
	if key == n.lastKey {
		n.mu.Unlock()
		return
	}
	n.lastKey = key
	n.mu.Unlock()

	switch v.State {
	case fsm.StateRecording:
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, cfg, hypr.IconInfo, stickyTimeoutMS, colorRecording, n.messages.recording)
		})
	case fsm.StateProcessing:
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, cfg, hypr.IconInfo, stickyTimeoutMS, colorProcessing, n.messages.processing)
		})
	case fsm.StateShowingResult:
		text := v.Status
		if v.ResultVisible {
			text = resultText(v)
		}
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, cfg, hypr.IconOK, resultTimeoutMS, colorResult, text)
		})
	case fsm.StateError:
		text := v.Status
		if text == "" {
			text = n.messages.errorText
		}
		timeout := cfg.ErrorTimeoutMS
		if timeout <= 0 {
			timeout = 1200
		}
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, cfg, hypr.IconError, timeout, colorError, text)
		})
	default:
		n.run(ctx, func(ctx context.Context) error {
			return n.dismiss(ctx, cfg)
		})
	}
}

// resultText is the status line followed by a preview of the active text.
func resultText(v session.View) string {
	preview := []rune(strings.TrimSpace(v.ActiveText()))
	if len(preview) == 0 {
		return v.Status
	}
	if len(preview) > previewRunes {
		preview = append(preview[:previewRunes], '…')
	}
	return fmt.Sprintf("%s: %s", v.Status, string(preview))
}

// notify dispatches indicator output through the configured backend.
func (n *Notifier) notify(ctx context.Context, cfg config.IndicatorConfig, icon hypr.Icon, timeoutMS int, color string, text string) error {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return n.notifyDesktop(ctx, cfg, timeoutMS, text)
	}
	return hypr.Notify(ctx, hypr.Notification{
		Icon:    icon,
		Timeout: time.Duration(timeoutMS) * time.Millisecond,
		Color:   color,
		Text:    text,
	})
}

// dismiss removes indicator output from the configured backend.
func (n *Notifier) dismiss(ctx context.Context, cfg config.IndicatorConfig) error {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotifications(ctx)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, cfg config.IndicatorConfig, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(cfg.DesktopAppName)
	if appName == "" {
		appName = "dictum-indicator"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}
