package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyParsesLiteralsAndStrings(t *testing.T) {
	cfg, _, err := Apply(Default(), "cloud.enabled", "false")
	require.NoError(t, err)
	require.False(t, cfg.Cloud.Enabled)

	cfg, _, err = Apply(cfg, "hotkey.display_name", "Alt+Space")
	require.NoError(t, err)
	require.Equal(t, "Alt+Space", cfg.Hotkey.DisplayName)

	cfg, _, err = Apply(cfg, "hotkey.display_name", "123")
	require.NoError(t, err)
	require.Equal(t, "123", cfg.Hotkey.DisplayName)

	cfg, _, err = Apply(cfg, "refine.custom_prompt", "Names: Zoë, Łukasz")
	require.NoError(t, err)
	require.Equal(t, "Names: Zoë, Łukasz", cfg.Refine.CustomPrompt)

	cfg, _, err = Apply(cfg, "delivery.clipboard_cmd", "wl-copy --trim-newline")
	require.NoError(t, err)
	require.Equal(t, []string{"wl-copy", "--trim-newline"}, cfg.Delivery.ClipboardCmd.Argv)
}

func TestApplyRejectsUnknownKeysAndInvalidValues(t *testing.T) {
	_, _, err := Apply(Default(), "cloud.api_key", "sk-secret")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")

	_, _, err = Apply(Default(), "offline.model", "large")
	require.Error(t, err)
	require.Contains(t, err.Error(), "offline.model")

	_, _, err = Apply(Default(), "cloud..enabled", "true")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid settings key")
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.jsonc")
	cfg := Default()
	cfg.Hotkey.Modifiers = ModCtrl | ModAlt
	cfg.Delivery.PasteCmd = CommandConfig{Raw: "wtype -M ctrl v", Argv: []string{"wtype", "-M", "ctrl", "v"}}
	cfg.Debug.KeepAudio = true

	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "// dictum settings")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded.Config)
}
