package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeChinese locale = "zh"
)

type messages struct {
	recording  string
	processing string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	lang := os.Getenv("LC_MESSAGES")
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	return indicatorMessages(resolveLocale(lang))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "zh") {
		return localeChinese
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeChinese:
		return messages{
			recording:  "錄音中…",
			processing: "轉寫中…",
			errorText:  "語音辨識錯誤",
		}
	default:
		return messages{
			recording:  "Recording…",
			processing: "Transcribing…",
			errorText:  "Speech recognition error",
		}
	}
}
