package output

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/hypr"
)

// errNoInjector means neither paste_cmd nor hyprctl is available.
var errNoInjector = errors.New("no paste_cmd configured and hyprctl not found")

// Inserter pastes text into the focused field: it sets the clipboard, then
// sends the paste keystroke through delivery.paste_cmd or Hyprland.
type Inserter struct {
	settings  Settings
	clipboard *Clipboard
	logger    *slog.Logger
	lookPath  func(string) (string, error)
}

// NewInserter constructs a focused-field target sharing clip.
func NewInserter(settings Settings, clip *Clipboard, logger *slog.Logger) *Inserter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inserter{settings: settings, clipboard: clip, logger: logger, lookPath: exec.LookPath}
}

// Paste delivers text at the cursor. The clipboard keeps text even when the
// keystroke fails.
func (i *Inserter) Paste(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := i.clipboard.Copy(ctx, text); err != nil {
		return err
	}

	delivery := i.settings.Snapshot().Delivery
	if len(delivery.PasteCmd.Argv) > 0 {
		pasteCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := runCommandWithInput(pasteCtx, delivery.PasteCmd.Argv, ""); err != nil {
			i.logPasteFailure(err)
			return apperr.New(apperr.KindAccessibilityPermissionDenied, "", err)
		}
		return nil
	}

	if _, err := i.lookPath("hyprctl"); err != nil {
		return apperr.New(apperr.KindAccessibilityPermissionDenied, "", errNoInjector)
	}

	pasteCtx, cancel := context.WithTimeout(ctx, 1200*time.Millisecond)
	defer cancel()
	if err := defaultPaste(pasteCtx, delivery.PasteShortcut); err != nil {
		i.logPasteFailure(err)
		return apperr.New(apperr.KindAccessibilityPermissionDenied, "", err)
	}
	return nil
}

func (i *Inserter) logPasteFailure(err error) {
	i.logger.Error("paste dispatch failed; clipboard remains set", "error", err.Error())
}

func defaultPaste(ctx context.Context, shortcut string) error {
	window, err := hypr.FocusedWindow(ctx)
	if err != nil {
		return err
	}
	return hypr.Paste(ctx, shortcut, window)
}
