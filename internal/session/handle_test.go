package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/dictum/internal/fsm"
	"github.com/rbright/dictum/internal/ipc"
)

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	h := newHarness(t)

	status := h.ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateIdle), status.State)

	unknown := h.ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleManualCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	empty := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandCopy})
	require.True(t, empty.OK)
	require.Equal(t, ErrNoTranscription.Error(), empty.Message)

	h.dictate(t)

	result := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandResult})
	require.True(t, result.OK)
	require.Equal(t, "hello world", result.Text)
	require.Equal(t, "openai-whisper", result.Provider)

	refined := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandRefine, Args: []string{"Formal Tone"}})
	require.True(t, refined.OK)
	require.Equal(t, "formal-tone", refined.ActiveMode)
	require.Equal(t, map[string]string{"formal-tone": "formal-tone: hello world"}, refined.Refinements)

	copied := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandCopyRefined, Args: []string{"formal-tone"}})
	require.True(t, copied.OK)
	require.Equal(t, "Copied Formal Tone", copied.Message)

	missing := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandCopyRefined, Args: []string{"concise-rewrite"}})
	require.False(t, missing.OK)
	require.Contains(t, missing.Error, "Concise Rewrite has not been run")

	bad := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandRefine, Args: []string{"pirate"}})
	require.False(t, bad.OK)
	require.Contains(t, bad.Error, "unknown refinement mode")

	require.Equal(t, []string{"formal-tone: hello world"}, h.clipboard.delivered())
}
