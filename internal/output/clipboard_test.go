package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/config"
)

type staticSettings struct {
	cfg config.Config
}

func (s *staticSettings) Snapshot() config.Snapshot {
	return config.Snapshot{Config: s.cfg}
}

func TestRunCommandWithInputWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, "hello from dictum")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "hello from dictum", string(data))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestClipboardCopyUsesConfiguredCommand(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	settings := &staticSettings{cfg: config.Default()}
	settings.cfg.Delivery.ClipboardCmd = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}

	clip := NewClipboard(settings, nil)
	clip.write = func(string) error { return errors.New("system clipboard must not be used") }
	require.NoError(t, clip.Copy(context.Background(), "你好 world"))

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "你好 world", string(data))
}

func TestClipboardCopyFallsBackToSystemClipboard(t *testing.T) {
	var got string
	clip := NewClipboard(&staticSettings{cfg: config.Default()}, nil)
	clip.write = func(text string) error {
		got = text
		return nil
	}

	require.NoError(t, clip.Copy(context.Background(), "captured"))
	require.Equal(t, "captured", got)
}

func TestClipboardCopySkipsEmptyText(t *testing.T) {
	clip := NewClipboard(&staticSettings{cfg: config.Default()}, nil)
	clip.write = func(string) error { return errors.New("unexpected write") }
	require.NoError(t, clip.Copy(context.Background(), ""))
}

func TestClipboardCopyFailuresAreClassified(t *testing.T) {
	settings := &staticSettings{cfg: config.Default()}
	settings.cfg.Delivery.ClipboardCmd = config.CommandConfig{Argv: []string{writeFailScript(t, "clipboard failed")}}

	err := NewClipboard(settings, nil).Copy(context.Background(), "text")
	require.ErrorIs(t, err, apperr.AccessibilityPermissionDenied)
	require.Contains(t, err.Error(), "set clipboard")

	clip := NewClipboard(&staticSettings{cfg: config.Default()}, nil)
	clip.write = func(string) error { return errors.New("no clipboard utilities available") }
	err = clip.Copy(context.Background(), "text")
	require.ErrorIs(t, err, apperr.AccessibilityPermissionDenied)
	require.Contains(t, err.Error(), "no clipboard utilities available")
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho " + "\"" + message + "\"" + " >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
