package hypr

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Icon is a Hyprland notification icon.
type Icon int

const (
	IconWarning Icon = iota
	IconInfo
	IconHint
	IconError
	IconConfused
	IconOK
)

const defaultNotifyColor = "rgb(89b4fa)"

// Notification is one compositor notification.
type Notification struct {
	Icon    Icon
	Timeout time.Duration
	Color   string
	Text    string
}

// Notify shows n. An empty color falls back to the recording blue.
func Notify(ctx context.Context, n Notification) error {
	color := strings.TrimSpace(n.Color)
	if color == "" {
		color = defaultNotifyColor
	}
	return runHyprctl(ctx, "--quiet", "dispatch", "notify",
		strconv.Itoa(int(n.Icon)),
		strconv.FormatInt(n.Timeout.Milliseconds(), 10),
		color,
		n.Text,
	)
}

// DismissNotifications clears every visible notification.
func DismissNotifications(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}
