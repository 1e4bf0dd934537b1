package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Hotkey       *jsoncHotkey    `json:"hotkey,omitempty"`
	Cloud        *jsoncCloud     `json:"cloud,omitempty"`
	LanguageHint *string         `json:"language_hint,omitempty"`
	Offline      *jsoncOffline   `json:"offline,omitempty"`
	Refine       *jsoncRefine    `json:"refine,omitempty"`
	Delivery     *jsoncDelivery  `json:"delivery,omitempty"`
	Audio        *jsoncAudio     `json:"audio,omitempty"`
	Indicator    *jsoncIndicator `json:"indicator,omitempty"`
	Debug        *jsoncDebug     `json:"debug,omitempty"`
}

type jsoncHotkey struct {
	KeyCode     *int    `json:"key_code,omitempty"`
	Modifiers   *uint8  `json:"modifiers,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Bind        *bool   `json:"bind,omitempty"`
}

type jsoncCloud struct {
	Enabled         *bool   `json:"enabled,omitempty"`
	OfflineFallback *bool   `json:"offline_fallback,omitempty"`
	BaseURL         *string `json:"base_url,omitempty"`
	Model           *string `json:"model,omitempty"`
	Language        *string `json:"language,omitempty"`
	TimeoutMS       *int    `json:"timeout_ms,omitempty"`
}

type jsoncOffline struct {
	Model     *string `json:"model,omitempty"`
	Binary    *string `json:"binary,omitempty"`
	TimeoutMS *int    `json:"timeout_ms,omitempty"`
}

type jsoncRefine struct {
	Model        *string  `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	CustomPrompt *string  `json:"custom_prompt,omitempty"`
}

type jsoncDelivery struct {
	QuickMode        *bool   `json:"quick_mode,omitempty"`
	AutoPaste        *bool   `json:"auto_paste,omitempty"`
	AutoPasteContent *string `json:"auto_paste_content,omitempty"`
	PasteShortcut    *string `json:"paste_shortcut,omitempty"`
	PasteCmd         *string `json:"paste_cmd,omitempty"`
	ClipboardCmd     *string `json:"clipboard_cmd,omitempty"`
}

type jsoncAudio struct {
	Input    *string `json:"input,omitempty"`
	Fallback *string `json:"fallback,omitempty"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable,omitempty"`
	Backend           *string `json:"backend,omitempty"`
	DesktopAppName    *string `json:"desktop_app_name,omitempty"`
	SoundEnable       *bool   `json:"sound_enable,omitempty"`
	SoundStartFile    *string `json:"sound_start_file,omitempty"`
	SoundStopFile     *string `json:"sound_stop_file,omitempty"`
	SoundCompleteFile *string `json:"sound_complete_file,omitempty"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms,omitempty"`
}

type jsoncDebug struct {
	KeepAudio *bool `json:"keep_audio,omitempty"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base.Clone()
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if h := payload.Hotkey; h != nil {
		assign(&cfg.Hotkey.KeyCode, h.KeyCode)
		if h.Modifiers != nil {
			cfg.Hotkey.Modifiers = Modifiers(*h.Modifiers)
		}
		assignTrimmed(&cfg.Hotkey.DisplayName, h.DisplayName)
		assign(&cfg.Hotkey.Bind, h.Bind)
	}

	if c := payload.Cloud; c != nil {
		assign(&cfg.Cloud.Enabled, c.Enabled)
		assign(&cfg.Cloud.OfflineFallback, c.OfflineFallback)
		assignTrimmed(&cfg.Cloud.BaseURL, c.BaseURL)
		assignTrimmed(&cfg.Cloud.Model, c.Model)
		assignTrimmed(&cfg.Cloud.Language, c.Language)
		assign(&cfg.Cloud.TimeoutMS, c.TimeoutMS)
	}

	assignTrimmed(&cfg.LanguageHint, payload.LanguageHint)

	if o := payload.Offline; o != nil {
		assignTrimmed(&cfg.Offline.Model, o.Model)
		assignTrimmed(&cfg.Offline.Binary, o.Binary)
		assign(&cfg.Offline.TimeoutMS, o.TimeoutMS)
	}

	if r := payload.Refine; r != nil {
		assignTrimmed(&cfg.Refine.Model, r.Model)
		assign(&cfg.Refine.Temperature, r.Temperature)
		assign(&cfg.Refine.CustomPrompt, r.CustomPrompt)
	}

	if d := payload.Delivery; d != nil {
		assign(&cfg.Delivery.QuickMode, d.QuickMode)
		assign(&cfg.Delivery.AutoPaste, d.AutoPaste)
		assignTrimmed(&cfg.Delivery.AutoPasteContent, d.AutoPasteContent)
		assignTrimmed(&cfg.Delivery.PasteShortcut, d.PasteShortcut)
		if err := assignCommand(&cfg.Delivery.PasteCmd, d.PasteCmd, "delivery.paste_cmd"); err != nil {
			return err
		}
		if err := assignCommand(&cfg.Delivery.ClipboardCmd, d.ClipboardCmd, "delivery.clipboard_cmd"); err != nil {
			return err
		}
	}

	if a := payload.Audio; a != nil {
		assign(&cfg.Audio.Input, a.Input)
		assign(&cfg.Audio.Fallback, a.Fallback)
	}

	if i := payload.Indicator; i != nil {
		assign(&cfg.Indicator.Enable, i.Enable)
		assignTrimmed(&cfg.Indicator.Backend, i.Backend)
		assignTrimmed(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		assign(&cfg.Indicator.SoundEnable, i.SoundEnable)
		assignTrimmed(&cfg.Indicator.SoundStartFile, i.SoundStartFile)
		assignTrimmed(&cfg.Indicator.SoundStopFile, i.SoundStopFile)
		assignTrimmed(&cfg.Indicator.SoundCompleteFile, i.SoundCompleteFile)
		assign(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if payload.Debug != nil {
		assign(&cfg.Debug.KeepAudio, payload.Debug.KeepAudio)
	}

	return nil
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func assignTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func assignCommand(dst *CommandConfig, raw *string, key string) error {
	if raw == nil {
		return nil
	}
	argv, err := splitCommand(*raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = CommandConfig{Raw: *raw, Argv: argv}
	return nil
}

// document is the inverse of applyTo: every field set, ready to marshal.
func document(cfg Config) jsoncConfig {
	mods := uint8(cfg.Hotkey.Modifiers)
	return jsoncConfig{
		Hotkey: &jsoncHotkey{
			KeyCode:     &cfg.Hotkey.KeyCode,
			Modifiers:   &mods,
			DisplayName: &cfg.Hotkey.DisplayName,
			Bind:        &cfg.Hotkey.Bind,
		},
		Cloud: &jsoncCloud{
			Enabled:         &cfg.Cloud.Enabled,
			OfflineFallback: &cfg.Cloud.OfflineFallback,
			BaseURL:         &cfg.Cloud.BaseURL,
			Model:           &cfg.Cloud.Model,
			Language:        &cfg.Cloud.Language,
			TimeoutMS:       &cfg.Cloud.TimeoutMS,
		},
		LanguageHint: &cfg.LanguageHint,
		Offline: &jsoncOffline{
			Model:     &cfg.Offline.Model,
			Binary:    &cfg.Offline.Binary,
			TimeoutMS: &cfg.Offline.TimeoutMS,
		},
		Refine: &jsoncRefine{
			Model:        &cfg.Refine.Model,
			Temperature:  &cfg.Refine.Temperature,
			CustomPrompt: &cfg.Refine.CustomPrompt,
		},
		Delivery: &jsoncDelivery{
			QuickMode:        &cfg.Delivery.QuickMode,
			AutoPaste:        &cfg.Delivery.AutoPaste,
			AutoPasteContent: &cfg.Delivery.AutoPasteContent,
			PasteShortcut:    &cfg.Delivery.PasteShortcut,
			PasteCmd:         &cfg.Delivery.PasteCmd.Raw,
			ClipboardCmd:     &cfg.Delivery.ClipboardCmd.Raw,
		},
		Audio: &jsoncAudio{
			Input:    &cfg.Audio.Input,
			Fallback: &cfg.Audio.Fallback,
		},
		Indicator: &jsoncIndicator{
			Enable:            &cfg.Indicator.Enable,
			Backend:           &cfg.Indicator.Backend,
			DesktopAppName:    &cfg.Indicator.DesktopAppName,
			SoundEnable:       &cfg.Indicator.SoundEnable,
			SoundStartFile:    &cfg.Indicator.SoundStartFile,
			SoundStopFile:     &cfg.Indicator.SoundStopFile,
			SoundCompleteFile: &cfg.Indicator.SoundCompleteFile,
			ErrorTimeoutMS:    &cfg.Indicator.ErrorTimeoutMS,
		},
		Debug: &jsoncDebug{KeepAudio: &cfg.Debug.KeepAudio},
	}
}

// normalizeJSONC blanks comments and drops trailing commas so the result
// decodes with encoding/json. Comment bytes become spaces, which keeps
// line numbers in decode errors pointing at the original file.
func normalizeJSONC(content string) (string, error) {
	blanked, err := blankJSONCComments(content)
	if err != nil {
		return "", err
	}
	return dropJSONCTrailingCommas(blanked), nil
}

// jsonString tracks whether a scanner is inside a string literal.
type jsonString struct {
	in     bool
	escape bool
}

// step consumes ch and reports whether it belongs to a string literal.
func (s *jsonString) step(ch byte) bool {
	switch {
	case s.escape:
		s.escape = false
		return true
	case s.in:
		if ch == '\\' {
			s.escape = true
		} else if ch == '"' {
			s.in = false
		}
		return true
	case ch == '"':
		s.in = true
		return true
	}
	return false
}

func blankJSONCComments(content string) (string, error) {
	out := []byte(content)
	var str jsonString

	for i := 0; i < len(out); i++ {
		if str.step(out[i]) || out[i] != '/' || i+1 >= len(out) {
			continue
		}

		switch out[i+1] {
		case '/':
			for i < len(out) && out[i] != '\n' && out[i] != '\r' {
				out[i] = ' '
				i++
			}
		case '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				if out[i] != '\n' && out[i] != '\r' && out[i] != '\t' {
					out[i] = ' '
				}
			}
			i--
		}
	}

	return string(out), nil
}

func dropJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))
	var str jsonString

	for i := 0; i < len(content); i++ {
		ch := content[i]
		if !str.step(ch) && ch == ',' && closesAfterWhitespace(content[i+1:]) {
			continue
		}
		out.WriteByte(ch)
	}

	return out.String()
}

func closesAfterWhitespace(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	return rest != "" && (rest[0] == '}' || rest[0] == ']')
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := min(int(offset), len(content))

	before := content[:max(limit-1, 0)]
	line := strings.Count(before, "\n") + 1
	col := len(before) - strings.LastIndexByte(before, '\n')
	return line, col
}
