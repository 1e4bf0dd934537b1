// Package hypr wraps the hyprctl commands dictum relies on.
package hypr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Keybind is one Hyprland key binding. Mods is space separated
// (e.g. "SUPER SHIFT"); KeyCode is an xkb keycode.
type Keybind struct {
	Mods    string
	KeyCode int
}

func (k Keybind) target() (string, error) {
	if k.KeyCode <= 0 {
		return "", errors.New("keybind requires a key code")
	}
	return fmt.Sprintf("%s, code:%d", strings.TrimSpace(k.Mods), k.KeyCode), nil
}

// Bind installs k so that it runs command.
func Bind(ctx context.Context, k Keybind, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return errors.New("keybind command must not be empty")
	}
	target, err := k.target()
	if err != nil {
		return err
	}
	return runHyprctl(ctx, "keyword", "bind", target+", exec, "+command)
}

// Unbind removes k.
func Unbind(ctx context.Context, k Keybind) error {
	target, err := k.target()
	if err != nil {
		return err
	}
	return runHyprctl(ctx, "keyword", "unbind", target)
}

// Available reports whether hyprctl is on PATH.
func Available() bool {
	_, err := exec.LookPath("hyprctl")
	return err == nil
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
