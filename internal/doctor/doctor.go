// Package doctor runs runtime readiness diagnostics for config, credentials,
// tools, models, audio and cloud reachability.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/config"
	"github.com/rbright/dictum/internal/hypr"
	"github.com/rbright/dictum/internal/models"
	"github.com/rbright/dictum/internal/network"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// Credentials reports where the API key comes from.
type Credentials interface {
	HasAPIKey() bool
	Source() string
}

// ModelStatus reports offline model files on disk.
type ModelStatus interface {
	Status(v models.Variant) (models.Status, error)
}

// Deps are the live collaborators some checks need. Nil fields skip the
// matching check with a failure explaining why.
type Deps struct {
	Credentials Credentials
	Models      ModelStatus
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, deps Deps) Report {
	cfg := loaded.Config
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))

	checks = append(checks, checkCredentials(cfg, deps.Credentials))

	if len(cfg.Delivery.ClipboardCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Delivery.ClipboardCmd.Argv, "clipboard_cmd"))
	} else {
		checks = append(checks, checkAnyBinary("clipboard", []string{"wl-copy", "xclip", "xsel"}))
	}

	if cfg.Delivery.AutoPaste {
		if len(cfg.Delivery.PasteCmd.Argv) > 0 {
			checks = append(checks, checkCommand(cfg.Delivery.PasteCmd.Argv, "paste_cmd"))
		} else {
			checks = append(checks, checkHyprctl())
		}
	}

	checks = append(checks, checkWhisperBinary(cfg.Offline.Binary))
	checks = append(checks, checkModel(cfg.Offline.Model, deps.Models))
	checks = append(checks, checkAudioSelection(ctx, cfg))
	if cfg.Cloud.Enabled {
		checks = append(checks, checkCloudReachable(ctx, cfg))
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkHyprctl covers the default paste path, which sends a key chord
// through hyprctl.
func checkHyprctl() Check {
	if !hypr.Available() {
		return Check{Name: "hyprctl", Pass: false, Message: "binary not found in PATH: hyprctl; set delivery.paste_cmd"}
	}
	return Check{Name: "hyprctl", Pass: true, Message: "available for the default paste path"}
}

// checkAnyBinary passes when at least one candidate is on PATH.
func checkAnyBinary(name string, candidates []string) Check {
	for _, bin := range candidates {
		if path, err := exec.LookPath(bin); err == nil {
			return Check{Name: name, Pass: true, Message: fmt.Sprintf("using %s", path)}
		}
	}
	return Check{
		Name:    name,
		Pass:    false,
		Message: fmt.Sprintf("none of %s found in PATH; set delivery.clipboard_cmd", strings.Join(candidates, ", ")),
	}
}

func checkCredentials(cfg config.Config, creds Credentials) Check {
	if creds == nil {
		return Check{Name: "api_key", Pass: !cfg.Cloud.Enabled, Message: "keyring unavailable"}
	}
	if creds.HasAPIKey() {
		return Check{Name: "api_key", Pass: true, Message: "found in " + creds.Source()}
	}
	if !cfg.Cloud.Enabled {
		return Check{Name: "api_key", Pass: true, Message: "not set; cloud transcription and refinement disabled"}
	}
	return Check{Name: "api_key", Pass: false, Message: "cloud.enabled is true but no API key is set (run `dictum key set`)"}
}

func checkWhisperBinary(binary string) Check {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Check{Name: "offline.binary", Pass: false, Message: "offline.binary is not configured"}
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return Check{Name: "offline.binary", Pass: false, Message: fmt.Sprintf("whisper binary %q not found", binary)}
	}
	return Check{Name: "offline.binary", Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

func checkModel(raw string, status ModelStatus) Check {
	name := "offline.model"
	variant, err := models.ParseVariant(raw)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if status == nil {
		return Check{Name: name, Pass: false, Message: "model directory unavailable"}
	}
	st, err := status.Status(variant)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if !st.Present {
		return Check{
			Name:    name,
			Pass:    false,
			Message: fmt.Sprintf("%s missing at %s (run `dictum model download %s`)", variant, st.Path, variant),
		}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s present (%d bytes)", variant, st.Size)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkCloudReachable dials the configured cloud endpoint.
func checkCloudReachable(ctx context.Context, cfg config.Config) Check {
	base := strings.TrimSpace(cfg.Cloud.BaseURL)
	if base == "" {
		return Check{Name: "cloud.base_url", Pass: false, Message: "cloud.base_url is empty"}
	}
	if !network.DialProbe(base, probeTimeout)(ctx) {
		return Check{Name: "cloud.base_url", Pass: false, Message: fmt.Sprintf("%s is unreachable", base)}
	}
	return Check{Name: "cloud.base_url", Pass: true, Message: fmt.Sprintf("reachable at %s", base)}
}
