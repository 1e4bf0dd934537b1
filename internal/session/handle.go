package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/dictum/internal/ipc"
	"github.com/rbright/dictum/internal/refine"
)

// Handle serves the session's IPC commands.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		v := c.View()
		return ipc.Response{OK: true, State: string(v.State), Message: v.Status}
	case ipc.CommandResult:
		return c.resultResponse(c.View())
	case ipc.CommandCopy:
		return c.respond(c.CopyRaw(ctx))
	case ipc.CommandRefine:
		mode, err := refine.ParseMode(req.Arg(0))
		if err != nil {
			return ipc.Failure(string(c.State()), err)
		}
		_, err = c.Refine(ctx, mode)
		return c.respond(err)
	case ipc.CommandCopyRefined:
		mode, err := refine.ParseMode(req.Arg(0))
		if err != nil {
			return ipc.Failure(string(c.State()), err)
		}
		return c.respond(c.CopyRefined(ctx, mode))
	default:
		return ipc.Failure(string(c.State()), fmt.Errorf("unknown command: %s", req.Command))
	}
}

// respond reports the post-action view; a missing transcription is a
// no-op rather than a failure.
func (c *Controller) respond(err error) ipc.Response {
	v := c.View()
	if errors.Is(err, ErrNoTranscription) {
		resp := c.resultResponse(v)
		resp.Message = err.Error()
		return resp
	}
	if err != nil {
		return ipc.Failure(string(v.State), err)
	}
	return c.resultResponse(v)
}

func (c *Controller) resultResponse(v View) ipc.Response {
	resp := ipc.Response{
		OK:         true,
		State:      string(v.State),
		Message:    v.Status,
		ActiveMode: string(v.ActiveMode),
	}
	if v.Transcription != nil {
		resp.Text = v.Transcription.Text
		resp.Provider = string(v.Transcription.Provider)
	}
	if len(v.Refinements) > 0 {
		resp.Refinements = make(map[string]string, len(v.Refinements))
		for mode, r := range v.Refinements {
			resp.Refinements[string(mode)] = r.Text
		}
	}
	if v.Err != nil {
		resp.Error = v.Err.Description()
	}
	return resp
}
