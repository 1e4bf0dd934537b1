package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/cli"
	"github.com/rbright/dictum/internal/config"
	"github.com/rbright/dictum/internal/doctor"
	"github.com/rbright/dictum/internal/ipc"
	"github.com/rbright/dictum/internal/logging"
	"github.com/rbright/dictum/internal/models"
	"github.com/rbright/dictum/internal/secret"
	"github.com/rbright/dictum/internal/version"
)

const (
	quickTimeout    = 220 * time.Millisecond
	actionTimeout   = 2 * time.Minute
	downloadTimeout = 30 * time.Minute
)

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("dictum"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("dictum"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(logging.Options{Level: slog.LevelInfo})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	r.printWarnings(logger, cfgLoaded.Warnings)

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandServe:
		return r.commandServe(ctx, cfgLoaded, logger)
	case cli.CommandToggle:
		return r.commandToggle(ctx, cfgLoaded, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandResult:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandResult}, quickTimeout*4, r.printResult)
	case cli.CommandCopy:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandCopy}, actionTimeout, r.printMessage)
	case cli.CommandRefine:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandRefine, Args: parsed.Args}, actionTimeout, r.printResult)
	case cli.CommandCopyRefined:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandCopyRefined, Args: parsed.Args}, actionTimeout, r.printMessage)
	case cli.CommandModel:
		return r.commandModel(ctx, cfgLoaded.Config, parsed, logger)
	case cli.CommandKey:
		return r.commandKey(parsed.Sub(), logger)
	case cli.CommandConfig:
		return r.commandConfig(cfgLoaded, parsed, logger)
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded, logger)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) printWarnings(logger *slog.Logger, warnings []config.Warning) {
	for _, w := range warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandDoctor(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	deps := doctor.Deps{}
	if keys, err := openKeys(); err == nil {
		deps.Credentials = keys
	} else {
		logger.Warn("keyring unavailable", "error", err.Error())
	}
	if manager, err := models.NewManager(models.Options{Logger: logger}); err == nil {
		deps.Models = manager
	}

	report := doctor.Run(ctx, loaded, deps)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus}, quickTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request, timeout time.Duration, render func(ipc.Response)) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no running dictum daemon\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	render(resp)
	return 0
}

func (r Runner) printMessage(resp ipc.Response) {
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
}

func (r Runner) printResult(resp ipc.Response) {
	fmt.Fprintf(r.Stdout, "state: %s\n", resp.State)
	if resp.Message != "" {
		fmt.Fprintf(r.Stdout, "status: %s\n", resp.Message)
	}
	if resp.Error != "" {
		fmt.Fprintf(r.Stdout, "error: %s\n", resp.Error)
	}
	if resp.Text == "" {
		return
	}
	fmt.Fprintf(r.Stdout, "provider: %s\n", resp.Provider)
	fmt.Fprintf(r.Stdout, "raw: %s\n", resp.Text)

	modes := make([]string, 0, len(resp.Refinements))
	for mode := range resp.Refinements {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		marker := ""
		if mode == resp.ActiveMode {
			marker = " (active)"
		}
		fmt.Fprintf(r.Stdout, "%s%s: %s\n", mode, marker, resp.Refinements[mode])
	}
}

// commandModel prefers the running daemon so downloads share its lock;
// without one the model directory is managed in-process.
func (r Runner) commandModel(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	command := "model-" + parsed.Sub()
	args := parsed.Args[1:]

	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: command, Args: args}, downloadTimeout)
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			r.printMessage(resp)
			return 0
		}
	}

	manager, err := models.NewManager(models.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	resp := modelCommand(ctx, manager, command, firstArg(args), cfg.Offline.Model)
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	r.printMessage(resp)
	return 0
}

func (r Runner) commandKey(sub string, logger *slog.Logger) int {
	keys, err := openKeys()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	switch sub {
	case "set":
		key, err := readLine(r.Stdin)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: read API key: %v\n", err)
			return 1
		}
		if err := keys.SetAPIKey(key); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		logger.Info("API key stored")
		fmt.Fprintln(r.Stdout, "API key stored")
	case "clear":
		if err := keys.ClearAPIKey(); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		logger.Info("API key cleared")
		fmt.Fprintln(r.Stdout, "API key cleared")
	case "status":
		if keys.HasAPIKey() {
			fmt.Fprintf(r.Stdout, "API key present (%s)\n", keys.Source())
			return 0
		}
		fmt.Fprintln(r.Stdout, "API key not set")
	default:
		fmt.Fprintf(r.Stderr, "error: unknown key subcommand: %s\n", sub)
		return 2
	}
	return 0
}

func (r Runner) commandConfig(loaded config.Loaded, parsed cli.Parsed, logger *slog.Logger) int {
	switch parsed.Sub() {
	case "path":
		fmt.Fprintln(r.Stdout, loaded.Path)
		return 0
	case "set":
		key, value := parsed.Args[1], parsed.Args[2]
		store := config.NewStore(loaded, nil, logger)
		_, warnings, err := store.Set(key, value)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		r.printWarnings(logger, warnings)
		fmt.Fprintf(r.Stdout, "updated %s in %s\n", key, store.Path())
		return 0
	default:
		fmt.Fprintf(r.Stderr, "error: unknown config subcommand: %s\n", parsed.Sub())
		return 2
	}
}

// tryForward reports handled=false only when no daemon is listening.
func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Call(ctx, socketPath, req, timeout)
	if err == nil {
		return resp, true, nil
	}

	var respErr *ipc.ResponseError
	if errors.As(err, &respErr) {
		return resp, true, respErr
	}
	if ipc.Unreachable(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func openKeys() (*secret.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return secret.Open(dir)
}

func readLine(in io.Reader) (string, error) {
	if in == nil {
		return "", errors.New("no input")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
