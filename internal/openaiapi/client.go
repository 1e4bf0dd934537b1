// Package openaiapi builds go-openai clients and flattens their errors into
// status-line text.
package openaiapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// KeySource yields the API key at call time.
type KeySource interface {
	APIKey() (string, error)
}

// NewClient builds a client for baseURL. httpClient may be nil.
func NewClient(baseURL, key string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(key)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// ErrorDetail prefers the server's error.message and falls back to the
// HTTP status code.
func ErrorDetail(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return msg
		}
		if apiErr.HTTPStatusCode != 0 {
			return fmt.Sprintf("HTTP %d", apiErr.HTTPStatusCode)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return fmt.Sprintf("HTTP %d", reqErr.HTTPStatusCode)
	}

	return err.Error()
}

// IsNetworkError reports transport failures that never reached the server.
func IsNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
