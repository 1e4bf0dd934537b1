package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const savedHeader = "// dictum settings. Comments are not preserved by `dictum config set`.\n"

// Apply sets one dotted key (e.g. "cloud.enabled") on cfg and validates the
// result. Values are read as JSON literals first and as plain strings
// otherwise, so `false`, `3000` and `Alt+Space` all work unquoted.
func Apply(cfg Config, key, value string) (Config, []Warning, error) {
	path := strings.Split(strings.TrimSpace(key), ".")
	for _, part := range path {
		if strings.TrimSpace(part) == "" {
			return Config{}, nil, fmt.Errorf("invalid settings key %q", key)
		}
	}

	var literal any
	if err := json.Unmarshal([]byte(value), &literal); err == nil {
		next, warnings, err := parseJSONC(nestedPatch(path, literal), cfg)
		if err == nil {
			return next, warnings, nil
		}
		if !isTypeMismatch(err) {
			return Config{}, nil, fmt.Errorf("set %s: %w", key, err)
		}
	}

	next, warnings, err := parseJSONC(nestedPatch(path, value), cfg)
	if err != nil {
		return Config{}, nil, fmt.Errorf("set %s: %w", key, err)
	}
	return next, warnings, nil
}

func nestedPatch(path []string, value any) string {
	var patch any = value
	for i := len(path) - 1; i >= 0; i-- {
		patch = map[string]any{path[i]: patch}
	}
	encoded, _ := json.Marshal(patch)
	return string(encoded)
}

func isTypeMismatch(err error) bool {
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr)
}

// Encode renders cfg as a complete settings document.
func Encode(cfg Config) ([]byte, error) {
	body, err := json.MarshalIndent(document(cfg), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(savedHeader)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Save atomically replaces the settings file at path.
func Save(path string, cfg Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}
