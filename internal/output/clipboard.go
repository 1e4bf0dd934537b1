// Package output delivers text to the clipboard or the focused text field.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/atotto/clipboard"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/config"
)

// Settings hands out fresh settings snapshots.
type Settings interface {
	Snapshot() config.Snapshot
}

// Clipboard writes text to the system clipboard. delivery.clipboard_cmd
// wins when set; otherwise the platform clipboard tools are used.
type Clipboard struct {
	settings Settings
	logger   *slog.Logger
	write    func(string) error
}

// NewClipboard constructs a clipboard target.
func NewClipboard(settings Settings, logger *slog.Logger) *Clipboard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Clipboard{settings: settings, logger: logger, write: clipboard.WriteAll}
}

// Copy sets the clipboard to text.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	argv := c.settings.Snapshot().Delivery.ClipboardCmd.Argv
	if len(argv) > 0 {
		clipboardCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := runCommandWithInput(clipboardCtx, argv, text); err != nil {
			return apperr.New(apperr.KindAccessibilityPermissionDenied, "set clipboard", err)
		}
		return nil
	}

	if err := c.write(text); err != nil {
		return apperr.New(apperr.KindAccessibilityPermissionDenied, fmt.Sprintf("set clipboard: %v", err), err)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
