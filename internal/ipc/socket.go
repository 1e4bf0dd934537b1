package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const socketName = "dictum.sock"

// ErrAlreadyRunning means a live dictum process answered on the socket.
var ErrAlreadyRunning = errors.New("another dictum process owns the socket")

// RuntimeSocketPath is $XDG_RUNTIME_DIR/dictum.sock. There is no fallback:
// the socket must live in a per-user directory.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set; cannot place the dictum socket")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// Acquire claims path for this process. A socket file nobody answers on is
// left over from a crashed daemon and is replaced; a socket that answers
// yields ErrAlreadyRunning. A probe that neither answers nor refuses leaves
// the file alone.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration, retries int, logger *slog.Logger) (net.Listener, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	for attempt := range retries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(acquireBackoff(attempt)):
			}
		}

		listener, err := net.Listen("unix", path)
		if err == nil {
			if err := os.Chmod(path, 0o600); err != nil {
				_ = listener.Close()
				return nil, fmt.Errorf("restrict socket %s: %w", path, err)
			}
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, probeTimeout)
		switch {
		case alive:
			return nil, ErrAlreadyRunning
		case probeErr != nil:
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}
		logger.Warn("removed stale dictum socket", "path", path, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("socket %s still busy after %d attempts", path, retries+1)
}

func acquireBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 25 * time.Millisecond
}
