package hypr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFocusedWindowTrimsFields(t *testing.T) {
	installHyprctlStub(t, `
if [[ "${1:-}" == "-j" && "${2:-}" == "activewindow" ]]; then
  echo '{"address":" 0xabc ","class":" brave-browser ","title":" Inbox "}'
  exit 0
fi
exit 1
`)

	w, err := FocusedWindow(context.Background())
	require.NoError(t, err)
	require.Equal(t, Window{Address: "0xabc", Class: "brave-browser", Title: "Inbox"}, w)
}

func TestFocusedWindowRetriesUntilFocusSettles(t *testing.T) {
	counter := filepath.Join(t.TempDir(), "calls")
	t.Setenv("HYPR_CALLS_FILE", counter)
	installHyprctlStub(t, `
echo x >> "${HYPR_CALLS_FILE}"
if [[ $(wc -l < "${HYPR_CALLS_FILE}") -lt 3 ]]; then
  echo '{"address":""}'
  exit 0
fi
echo '{"address":"0xdef","class":"ghostty"}'
`)

	w, err := focusedWindow(context.Background(), 5, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, "0xdef", w.Address)

	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	require.Equal(t, 3, strings.Count(string(data), "x"))
}

func TestFocusedWindowReportsLastError(t *testing.T) {
	installHyprctlStub(t, `
echo '{"address":"","class":"brave"}'
`)

	_, err := focusedWindow(context.Background(), 2, time.Millisecond)
	require.ErrorContains(t, err, "resolve focused window")
	require.ErrorContains(t, err, "empty address")
}

func TestFocusedWindowHonorsCancel(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := focusedWindow(ctx, 3, 10*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPasteTargetsWindowAddress(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	require.NoError(t, Paste(context.Background(), " SUPER,V ", Window{Address: "0xabc"}))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, "--quiet dispatch sendshortcut SUPER,V,address:0xabc", strings.TrimSpace(string(data)))
}

func TestPasteRejectsIncompleteTarget(t *testing.T) {
	require.ErrorContains(t, Paste(context.Background(), " ", Window{Address: "0xabc"}), "shortcut cannot be empty")
	require.ErrorContains(t, Paste(context.Background(), "CTRL,V", Window{}), "no window address")
}

func TestPasteReturnsCombinedOutputOnFailure(t *testing.T) {
	installHyprctlStub(t, `
echo 'boom from hyprctl' >&2
exit 1
`)

	err := Paste(context.Background(), "CTRL,V", Window{Address: "0xabc"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom from hyprctl")
}

func TestNotifyAndDismissUseHyprctlDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	err := Notify(context.Background(), Notification{Icon: IconError, Timeout: 1200 * time.Millisecond, Text: "Speech recognition error"})
	require.NoError(t, err)
	require.NoError(t, DismissNotifications(context.Background()))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"--quiet dispatch notify 3 1200 rgb(89b4fa) Speech recognition error",
		"--quiet dispatch dismissnotify",
	}, lines)
}

func TestBindAndUnbindUseKeyword(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	k := Keybind{Mods: "SUPER SHIFT", KeyCode: 65}
	require.NoError(t, Bind(context.Background(), k, "dictum toggle"))
	require.NoError(t, Unbind(context.Background(), k))

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"keyword bind SUPER SHIFT, code:65, exec, dictum toggle",
		"keyword unbind SUPER SHIFT, code:65",
	}, lines)
}

func TestBindRejectsIncompleteKeybind(t *testing.T) {
	err := Bind(context.Background(), Keybind{Mods: "ALT"}, "dictum toggle")
	require.ErrorContains(t, err, "key code")

	err = Bind(context.Background(), Keybind{KeyCode: 65}, " ")
	require.ErrorContains(t, err, "command must not be empty")
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
