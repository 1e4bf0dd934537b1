package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("key"); name != "" {
				return name
			}
			return fld.Name
		})
	})
	return structValidator
}

// Validate enforces settings invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	if err := validateStruct(cfg); err != nil {
		return nil, err
	}

	warnings := make([]Warning, 0)

	if u, err := url.Parse(cfg.Cloud.BaseURL); err == nil && u.Scheme != "https" && !isLoopbackHost(u.Hostname()) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("cloud.base_url %q is not https; the API key is sent in clear text", cfg.Cloud.BaseURL)})
	}
	if strings.TrimSpace(cfg.Offline.Binary) == "" {
		warnings = append(warnings, Warning{Message: "offline.binary is empty; local transcription is unavailable"})
	}
	if cfg.Indicator.Backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, errors.New("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Delivery.PasteCmd.Raw != "" && len(cfg.Delivery.PasteCmd.Argv) == 0 {
		return nil, errors.New("delivery.paste_cmd is configured but empty")
	}
	if cfg.Delivery.ClipboardCmd.Raw != "" && len(cfg.Delivery.ClipboardCmd.Argv) == 0 {
		return nil, errors.New("delivery.clipboard_cmd is configured but empty")
	}
	if cfg.Delivery.AutoPaste && len(cfg.Delivery.PasteCmd.Argv) == 0 && strings.TrimSpace(cfg.Delivery.PasteShortcut) == "" {
		return nil, errors.New("delivery.paste_shortcut must not be empty when delivery.auto_paste=true and delivery.paste_cmd is unset")
	}
	if cfg.Delivery.QuickMode && cfg.Delivery.AutoPaste && cfg.Delivery.AutoPasteContent == ContentRaw {
		warnings = append(warnings, Warning{Message: "delivery.quick_mode always refines; delivery.auto_paste_content=raw is ignored"})
	}

	return warnings, nil
}

func validateStruct(cfg Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldKey(fe)+" "+describeRule(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

// fieldKey turns "Config.cloud.base_url" into "cloud.base_url".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
