package config

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Hotkey: HotkeyConfig{
			KeyCode:     65,
			Modifiers:   ModAlt,
			DisplayName: "Alt+Space",
		},
		Cloud: CloudConfig{
			Enabled:         true,
			OfflineFallback: true,
			BaseURL:         "https://api.openai.com/v1",
			Model:           "whisper-1",
			Language:        "zh",
			TimeoutMS:       30000,
		},
		LanguageHint: "zh-Hant,en",
		Offline: OfflineConfig{
			Model:     "small",
			Binary:    "whisper-cli",
			TimeoutMS: 120000,
		},
		Refine: RefineConfig{
			Model:       "gpt-4.1-mini",
			Temperature: 0.2,
		},
		Delivery: DeliveryConfig{
			AutoPasteContent: ContentSpellingFix,
			PasteShortcut:    "CTRL,V",
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "dictum-indicator",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
	}
}
