package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serveForTest(t *testing.T, handler Handler) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "dictum.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return socketPath
}

func rawRoundTrip(t *testing.T, socketPath, payload string) Response {
	t.Helper()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(time.Second)))

	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func TestServeRejectsMalformedRequests(t *testing.T) {
	calls := 0
	socketPath := serveForTest(t, HandlerFunc(func(context.Context, Request) Response {
		calls++
		return Response{OK: true}
	}))

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "empty command", payload: `{"command":"  "}` + "\n", want: "request has no command"},
		{name: "missing command", payload: `{"args":["x"]}` + "\n", want: "request has no command"},
		{name: "oversized", payload: `{"command":"` + strings.Repeat("a", maxRequestBytes) + `"}` + "\n", want: "request exceeds"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := rawRoundTrip(t, socketPath, tc.payload)
			require.False(t, resp.OK)
			require.Contains(t, resp.Error, tc.want)
		})
	}
	require.Zero(t, calls)
}

func TestServeTrimsCommandBeforeDispatch(t *testing.T) {
	socketPath := serveForTest(t, HandlerFunc(func(_ context.Context, req Request) Response {
		return Response{OK: true, Message: req.Command}
	}))

	resp := rawRoundTrip(t, socketPath, `{"command":" status "}`+"\n")
	require.True(t, resp.OK)
	require.Equal(t, "status", resp.Message)
}

func TestServeReportsHandlerPanic(t *testing.T) {
	socketPath := serveForTest(t, HandlerFunc(func(_ context.Context, req Request) Response {
		if req.Command == CommandCopy {
			panic("clipboard exploded")
		}
		return Response{OK: true, State: "idle"}
	}))

	_, err := Call(context.Background(), socketPath, Request{Command: CommandCopy}, time.Second)
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, "copy failed: clipboard exploded", err.Error())

	resp, err := Call(context.Background(), socketPath, Request{Command: CommandStatus}, time.Second)
	require.NoError(t, err)
	require.Equal(t, "idle", resp.State)
}
