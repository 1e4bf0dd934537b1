// Package network tracks whether the cloud endpoint is reachable.
package network

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"
)

const (
	DefaultInterval = 5 * time.Second
	defaultTimeout  = 2 * time.Second
)

// ProbeFunc reports whether the network path to the cloud is usable.
type ProbeFunc func(ctx context.Context) bool

// Monitor holds the last observed reachability. It starts optimistic so the
// first transcription after launch does not wait on a probe.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
}

// NewMonitor builds a monitor around probe. interval <= 0 selects DefaultInterval.
func NewMonitor(probe ProbeFunc, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{probe: probe, interval: interval, logger: logger, online: true}
}

// Online reports the last observed status.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a new status and logs transitions.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed {
		m.logger.Info("network reachability changed", "online", online)
	}
}

// Check runs the probe once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.probe == nil {
		return m.Online()
	}
	online := m.probe(ctx)
	m.Set(online)
	return online
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// DialProbe returns a probe that opens a TCP connection to the host of
// baseURL. A URL without a port uses 443 for https and 80 otherwise.
func DialProbe(baseURL string, timeout time.Duration) ProbeFunc {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	address := dialAddress(baseURL)

	return func(ctx context.Context) bool {
		if address == "" {
			return false
		}
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

func dialAddress(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
