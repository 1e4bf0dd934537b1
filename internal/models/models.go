// Package models owns the on-disk whisper.cpp model files.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/version"
)

// DefaultBaseURL hosts the ggml conversions published with whisper.cpp.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Variant is an offline model size.
type Variant string

const (
	Base  Variant = "base"
	Small Variant = "small"
)

// Variants lists every supported variant.
func Variants() []Variant {
	return []Variant{Base, Small}
}

// ParseVariant validates a variant name.
func ParseVariant(raw string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Variants() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown model variant %q (want base or small)", raw)
}

// FileName is the artifact name, e.g. ggml-small.bin.
func (v Variant) FileName() string {
	return "ggml-" + string(v) + ".bin"
}

// Status describes one variant on disk.
type Status struct {
	Variant Variant
	Path    string
	Present bool
	Size    int64
}

// Options configure a Manager. Zero values pick defaults.
type Options struct {
	Dir     string
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// Manager serializes every mutation of the model directory. Downloads of
// the same variant are coalesced; files appear under their final name only
// once complete.
type Manager struct {
	dir     string
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	mu    sync.Mutex
	group singleflight.Group
}

// NewManager builds a manager rooted at opts.Dir (DefaultDir when empty).
func NewManager(opts Options) (*Manager, error) {
	dir := opts.Dir
	if dir == "" {
		resolved, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = resolved
	}
	m := &Manager{
		dir:     dir,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  opts.Client,
		logger:  opts.Logger,
	}
	if m.baseURL == "" {
		m.baseURL = DefaultBaseURL
	}
	if m.client == nil {
		m.client = http.DefaultClient
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m, nil
}

// DefaultDir resolves $XDG_DATA_HOME/dictum/models with a ~/.local/share fallback.
func DefaultDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "dictum", "models"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for model directory")
	}
	return filepath.Join(home, ".local", "share", "dictum", "models"), nil
}

// Path is where v lives once downloaded.
func (m *Manager) Path(v Variant) string {
	return filepath.Join(m.dir, v.FileName())
}

// URL is where v is fetched from.
func (m *Manager) URL(v Variant) string {
	return m.baseURL + "/" + v.FileName()
}

// Status reports whether v is installed.
func (m *Manager) Status(v Variant) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked(v)
}

func (m *Manager) statusLocked(v Variant) (Status, error) {
	path := m.Path(v)
	st := Status{Variant: v, Path: path}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		st.Present = info.Mode().IsRegular() && info.Size() > 0
		st.Size = info.Size()
		return st, nil
	case errors.Is(err, os.ErrNotExist):
		return st, nil
	default:
		return st, fmt.Errorf("stat model %s: %w", path, err)
	}
}

// Ensure returns the model path, or an offline-model-missing error. It
// never downloads.
func (m *Manager) Ensure(v Variant) (string, error) {
	st, err := m.Status(v)
	if err != nil {
		return "", apperr.New(apperr.KindOfflineModelMissing, "", err)
	}
	if !st.Present {
		return "", apperr.New(apperr.KindOfflineModelMissing, "", nil)
	}
	return st.Path, nil
}

// Download fetches v and installs it atomically. Concurrent calls for the
// same variant share one transfer, which outlives any single caller giving
// up on it.
func (m *Manager) Download(ctx context.Context, v Variant) (string, error) {
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(string(v), func() (any, error) {
		return m.download(shared, v)
	})

	select {
	case <-ctx.Done():
		return "", apperr.New(apperr.KindOfflineModelDownloadFailed, "", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", apperr.Wrap(apperr.KindOfflineModelDownloadFailed, res.Err)
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) download(ctx context.Context, v Variant) (string, error) {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	url := m.URL(v)
	m.logger.Info("model download started", "variant", string(v), "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.dir, "."+v.FileName()+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return "", fmt.Errorf("write model: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close model: %w", closeErr)
	}
	if written == 0 {
		return "", errors.New("empty model response")
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return "", fmt.Errorf("short download: got %d of %d bytes", written, resp.ContentLength)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.Path(v)
	if err := atomic.ReplaceFile(tmpPath, path); err != nil {
		return "", fmt.Errorf("install model: %w", err)
	}
	m.logger.Info("model download finished", "variant", string(v), "path", path, "bytes", written)
	return path, nil
}

// Delete removes v. Deleting a missing model is not an error.
func (m *Manager) Delete(v Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.Path(v)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete model %s: %w", v, err)
	}
	m.logger.Info("model deleted", "variant", string(v))
	return nil
}
