package ipc

// Command names understood by the daemon.
const (
	CommandStatus        = "status"
	CommandToggle        = "toggle"
	CommandResult        = "result"
	CommandCopy          = "copy"
	CommandRefine        = "refine"
	CommandCopyRefined   = "copy-refined"
	CommandModelStatus   = "model-status"
	CommandModelDownload = "model-download"
	CommandModelDelete   = "model-delete"
)

type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Arg returns the i-th argument or "".
func (r Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

type Response struct {
	OK          bool              `json:"ok"`
	State       string            `json:"state,omitempty"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`
	Text        string            `json:"text,omitempty"`
	Provider    string            `json:"provider,omitempty"`
	ActiveMode  string            `json:"active_mode,omitempty"`
	Refinements map[string]string `json:"refinements,omitempty"`
}

// Failure builds an error response that still reports the current state.
func Failure(state string, err error) Response {
	return Response{OK: false, State: state, Error: err.Error()}
}
