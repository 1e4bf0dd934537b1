package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	focusAttempts   = 5
	focusRetryDelay = 10 * time.Millisecond
)

// Window is the focused client a paste keystroke is aimed at.
type Window struct {
	Address string `json:"address"`
	Class   string `json:"class"`
	Title   string `json:"title"`
}

// FocusedWindow returns the focused client. Focus can be briefly empty
// right after a keybind fires, so the query is retried a few times.
func FocusedWindow(ctx context.Context) (Window, error) {
	return focusedWindow(ctx, focusAttempts, focusRetryDelay)
}

func focusedWindow(ctx context.Context, attempts int, delay time.Duration) (Window, error) {
	var lastErr error
	for i := range max(attempts, 1) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Window{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		w, err := queryFocused(ctx)
		if err == nil {
			return w, nil
		}
		if ctx.Err() != nil {
			return Window{}, ctx.Err()
		}
		lastErr = err
	}
	return Window{}, fmt.Errorf("resolve focused window: %w", lastErr)
}

func queryFocused(ctx context.Context) (Window, error) {
	out, err := runHyprctlOutput(ctx, "-j", "activewindow")
	if err != nil {
		return Window{}, err
	}
	var w Window
	if err := json.Unmarshal(out, &w); err != nil {
		return Window{}, fmt.Errorf("decode hyprctl activewindow json: %w", err)
	}
	w.Address = strings.TrimSpace(w.Address)
	w.Class = strings.TrimSpace(w.Class)
	w.Title = strings.TrimSpace(w.Title)
	if w.Address == "" {
		return Window{}, errors.New("hyprctl activewindow returned empty address")
	}
	return w, nil
}

// Paste sends chord (for example "CTRL,V") to w without moving focus.
func Paste(ctx context.Context, chord string, w Window) error {
	chord = strings.TrimSpace(chord)
	if chord == "" {
		return errors.New("paste shortcut cannot be empty")
	}
	address := strings.TrimSpace(w.Address)
	if address == "" {
		return errors.New("paste target has no window address")
	}
	return runHyprctl(ctx, "--quiet", "dispatch", "sendshortcut", chord+",address:"+address)
}
