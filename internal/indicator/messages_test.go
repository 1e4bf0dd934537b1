package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, localeChinese, resolveLocale("zh_TW.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
}

func TestIndicatorMessages(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Equal(t, "Recording…", msg.recording)
	require.Equal(t, "Transcribing…", msg.processing)
	require.Equal(t, "Speech recognition error", msg.errorText)

	require.Equal(t, "轉寫中…", indicatorMessages(localeChinese).processing)
}

func TestIndicatorMessagesFromEnvPrefersLCMessages(t *testing.T) {
	t.Setenv("LANG", "en_US.UTF-8")
	t.Setenv("LC_MESSAGES", "zh_TW.UTF-8")
	require.Equal(t, "錄音中…", indicatorMessagesFromEnv().recording)
}
