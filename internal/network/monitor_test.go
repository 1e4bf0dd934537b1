package network

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitorStartsOnline(t *testing.T) {
	m := NewMonitor(nil, 0, nil)
	require.True(t, m.Online())
	require.True(t, m.Check(context.Background()))
}

func TestMonitorCheckRecordsProbeResult(t *testing.T) {
	var reachable atomic.Bool
	m := NewMonitor(func(context.Context) bool { return reachable.Load() }, time.Hour, nil)

	require.False(t, m.Check(context.Background()))
	require.False(t, m.Online())

	reachable.Store(true)
	require.True(t, m.Check(context.Background()))
	require.True(t, m.Online())
}

func TestMonitorRunProbesUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(func(context.Context) bool {
		calls.Add(1)
		return false
	}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.False(t, m.Online())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMonitorConcurrentReadsAndWrites(t *testing.T) {
	m := NewMonitor(nil, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Set(v)
			}
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Online()
			}
		}()
	}
	wg.Wait()
}

func TestDialProbe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	probe := DialProbe("http://"+listener.Addr().String()+"/v1", 500*time.Millisecond)
	require.True(t, probe(context.Background()))

	require.NoError(t, listener.Close())
	require.False(t, probe(context.Background()))

	require.False(t, DialProbe("::not a url", 0)(context.Background()))
}

func TestDialAddressDefaultsPortFromScheme(t *testing.T) {
	require.Equal(t, "api.openai.com:443", dialAddress("https://api.openai.com/v1"))
	require.Equal(t, "example.test:80", dialAddress("http://example.test"))
	require.Equal(t, "127.0.0.1:8080", dialAddress("http://127.0.0.1:8080/v1"))
	require.Empty(t, dialAddress(""))
}
