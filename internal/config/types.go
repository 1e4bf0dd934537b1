// Package config resolves, parses, validates, and persists dictum settings.
package config

import "strings"

// Config is the fully materialized settings document.
//
// The `key` tags name each field the way it appears in the JSONC file and in
// `dictum config set`; validation errors are reported with the same names.
type Config struct {
	Hotkey       HotkeyConfig    `key:"hotkey"`
	Cloud        CloudConfig     `key:"cloud"`
	LanguageHint string          `key:"language_hint"`
	Offline      OfflineConfig   `key:"offline"`
	Refine       RefineConfig    `key:"refine"`
	Delivery     DeliveryConfig  `key:"delivery"`
	Audio        AudioConfig     `key:"audio"`
	Indicator    IndicatorConfig `key:"indicator"`
	Debug        DebugConfig     `key:"debug"`
}

// HotkeyConfig defines the global toggle shortcut.
type HotkeyConfig struct {
	KeyCode     int       `key:"key_code" validate:"gte=0,lte=255"`
	Modifiers   Modifiers `key:"modifiers" validate:"lte=15"`
	DisplayName string    `key:"display_name"`
	// Bind asks the daemon to install the shortcut as a Hyprland keybind.
	Bind bool `key:"bind"`
}

// Modifiers is a bitmask of hotkey modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

var modifierNames = []struct {
	bit  Modifiers
	name string
}{
	{ModSuper, "SUPER"},
	{ModCtrl, "CTRL"},
	{ModAlt, "ALT"},
	{ModShift, "SHIFT"},
}

// String renders the mask in Hyprland's modifier syntax, e.g. "CTRL ALT".
func (m Modifiers) String() string {
	parts := make([]string, 0, len(modifierNames))
	for _, mod := range modifierNames {
		if m&mod.bit != 0 {
			parts = append(parts, mod.name)
		}
	}
	return strings.Join(parts, " ")
}

// CloudConfig controls the hosted transcription backend.
type CloudConfig struct {
	Enabled         bool   `key:"enabled"`
	OfflineFallback bool   `key:"offline_fallback"`
	BaseURL         string `key:"base_url" validate:"required,url"`
	Model           string `key:"model" validate:"required"`
	Language        string `key:"language"`
	TimeoutMS       int    `key:"timeout_ms" validate:"gte=0"`
}

// OfflineConfig controls the local whisper.cpp backend.
type OfflineConfig struct {
	Model     string `key:"model" validate:"oneof=base small"`
	Binary    string `key:"binary"`
	TimeoutMS int    `key:"timeout_ms" validate:"gte=0"`
}

// RefineConfig controls LLM post-processing.
type RefineConfig struct {
	Model        string  `key:"model" validate:"required"`
	Temperature  float64 `key:"temperature" validate:"gte=0,lte=2"`
	CustomPrompt string  `key:"custom_prompt"`
}

// Auto-paste content choices.
const (
	ContentRaw         = "raw"
	ContentSpellingFix = "spelling-fix"
)

// DeliveryConfig controls what happens after a transcription completes.
type DeliveryConfig struct {
	QuickMode        bool          `key:"quick_mode"`
	AutoPaste        bool          `key:"auto_paste"`
	AutoPasteContent string        `key:"auto_paste_content" validate:"oneof=raw spelling-fix"`
	PasteShortcut    string        `key:"paste_shortcut"`
	PasteCmd         CommandConfig `key:"paste_cmd"`
	ClipboardCmd     CommandConfig `key:"clipboard_cmd"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `key:"input"`
	Fallback string `key:"fallback"`
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool   `key:"enable"`
	Backend           string `key:"backend" validate:"oneof=hypr desktop"`
	DesktopAppName    string `key:"desktop_app_name"`
	SoundEnable       bool   `key:"sound_enable"`
	SoundStartFile    string `key:"sound_start_file"`
	SoundStopFile     string `key:"sound_stop_file"`
	SoundCompleteFile string `key:"sound_complete_file"`
	ErrorTimeoutMS    int    `key:"error_timeout_ms" validate:"gte=0"`
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact retention.
type DebugConfig struct {
	KeepAudio bool `key:"keep_audio"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Clone returns a deep copy; argv slices are not shared with cfg.
func (cfg Config) Clone() Config {
	out := cfg
	out.Delivery.PasteCmd.Argv = cloneStrings(cfg.Delivery.PasteCmd.Argv)
	out.Delivery.ClipboardCmd.Argv = cloneStrings(cfg.Delivery.ClipboardCmd.Argv)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
