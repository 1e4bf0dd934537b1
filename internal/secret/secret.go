// Package secret keeps the OpenAI API key out of the settings file.
package secret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

const (
	ServiceName = "dictum"
	apiKeyName  = "openai-api-key"

	// EnvAPIKey overrides the keyring for headless sessions.
	EnvAPIKey = "DICTUM_OPENAI_API_KEY"
	// EnvFilePassword unlocks the encrypted-file fallback backend.
	EnvFilePassword = "DICTUM_KEYRING_PASSWORD"
)

// ErrNoAPIKey is returned when neither the environment nor the keyring
// holds a key.
var ErrNoAPIKey = errors.New("no OpenAI API key configured")

// Store reads and writes the API key.
type Store struct {
	ring   keyring.Keyring
	getenv func(string) string
}

// Open connects to the first available system keyring. The encrypted file
// backend under dataDir is the last resort.
func Open(dataDir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		LibSecretCollectionName: "login",
		KWalletAppID:            ServiceName,
		KWalletFolder:           ServiceName,
		PassPrefix:              ServiceName,
		FileDir:                 filepath.Join(dataDir, "keyring"),
		FilePasswordFunc:        keyring.FixedStringPrompt(os.Getenv(EnvFilePassword)),
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring, getenv: os.Getenv}
}

// APIKey returns the key, preferring the environment override.
func (s *Store) APIKey() (string, error) {
	if key := strings.TrimSpace(s.getenv(EnvAPIKey)); key != "" {
		return key, nil
	}
	if s.ring == nil {
		return "", ErrNoAPIKey
	}

	item, err := s.ring.Get(apiKeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("read API key: %w", err)
	}
	key := strings.TrimSpace(string(item.Data))
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// HasAPIKey reports whether APIKey would succeed.
func (s *Store) HasAPIKey() bool {
	_, err := s.APIKey()
	return err == nil
}

// SetAPIKey stores key in the keyring.
func (s *Store) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key must not be empty")
	}
	if s.ring == nil {
		return errors.New("no keyring backend available")
	}
	err := s.ring.Set(keyring.Item{
		Key:         apiKeyName,
		Data:        []byte(key),
		Label:       "dictum OpenAI API key",
		Description: "Used for cloud transcription and refinement",
	})
	if err != nil {
		return fmt.Errorf("store API key: %w", err)
	}
	return nil
}

// ClearAPIKey removes the stored key. Removing a missing key is not an error.
func (s *Store) ClearAPIKey() error {
	if s.ring == nil {
		return nil
	}
	if err := s.ring.Remove(apiKeyName); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("remove API key: %w", err)
	}
	return nil
}

// Source describes where the active key comes from, for diagnostics.
func (s *Store) Source() string {
	if strings.TrimSpace(s.getenv(EnvAPIKey)) != "" {
		return "environment (" + EnvAPIKey + ")"
	}
	if s.HasAPIKey() {
		return "keyring"
	}
	return "none"
}
