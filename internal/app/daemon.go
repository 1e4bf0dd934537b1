package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/dictum/internal/asr"
	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/cloud"
	"github.com/rbright/dictum/internal/config"
	"github.com/rbright/dictum/internal/fsm"
	"github.com/rbright/dictum/internal/hotkey"
	"github.com/rbright/dictum/internal/indicator"
	"github.com/rbright/dictum/internal/ipc"
	"github.com/rbright/dictum/internal/models"
	"github.com/rbright/dictum/internal/network"
	"github.com/rbright/dictum/internal/output"
	"github.com/rbright/dictum/internal/refine"
	"github.com/rbright/dictum/internal/secret"
	"github.com/rbright/dictum/internal/session"
	"github.com/rbright/dictum/internal/whisper"
)

const (
	acquireProbeTimeout = 180 * time.Millisecond
	acquireRetries      = 8
	unbindTimeout       = 2 * time.Second
)

// daemon is one process owning the socket, the hotkey and the session.
type daemon struct {
	store      *config.Store
	network    *network.Monitor
	models     *models.Manager
	controller *session.Controller
	hotkeys    *hotkey.Service
	notifier   *indicator.Notifier
	logger     *slog.Logger
}

func newDaemon(loaded config.Loaded, logger *slog.Logger) (*daemon, error) {
	keys, err := openKeys()
	if err != nil {
		logger.Warn("keyring unavailable; using environment only", "error", err.Error())
		keys = secret.New(nil)
	}
	store := config.NewStore(loaded, keys.HasAPIKey, logger)

	modelManager, err := models.NewManager(models.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	}
	recordingsDir, err := audio.DefaultDir()
	if err != nil {
		return nil, err
	}

	monitor := network.NewMonitor(func(ctx context.Context) bool {
		return network.DialProbe(store.Snapshot().Cloud.BaseURL, 0)(ctx)
	}, network.DefaultInterval, logger)

	httpClient := &http.Client{}
	transcriber := asr.NewOrchestrator(
		store,
		monitor,
		cloud.NewTranscriber(store, keys, httpClient, logger),
		whisper.NewTranscriber(store, modelManager, logger),
		logger,
	)
	recorder := audio.NewRecorder(recordingsDir, func() (string, string) {
		prefs := store.Snapshot().Audio
		return prefs.Input, prefs.Fallback
	}, logger)

	clip := output.NewClipboard(store, logger)
	controller := session.NewController(session.Deps{
		Settings:    store,
		Recorder:    recorder,
		Transcriber: transcriber,
		Refiner:     refine.NewRefiner(store, keys, httpClient, logger),
		Clipboard:   clip,
		Inserter:    output.NewInserter(store, clip, logger),
		Cues:        indicator.NewPlayer(store, logger),
		Logger:      logger,
	})

	hotkeys := hotkey.NewService(hotkey.HyprBinder{Command: toggleCommand(loaded.Path)}, logger)
	hotkeys.OnTrigger(func() string {
		return string(controller.Trigger(context.Background()))
	})

	return &daemon{
		store:      store,
		network:    monitor,
		models:     modelManager,
		controller: controller,
		hotkeys:    hotkeys,
		notifier:   indicator.NewNotifier(store, logger),
		logger:     logger,
	}, nil
}

// run serves until ctx ends, then waits for in-flight flows.
func (d *daemon) run(ctx context.Context, listener net.Listener) error {
	d.syncHotkey(ctx, d.store.Snapshot().Config)

	views, cancelViews := d.controller.Subscribe()
	defer cancelViews()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.network.Run(gctx)
		return nil
	})
	g.Go(func() error {
		d.notifier.Run(gctx, views)
		return nil
	})
	g.Go(func() error {
		err := d.store.Watch(gctx, func(cfg config.Config) { d.syncHotkey(gctx, cfg) })
		if err != nil {
			d.logger.Warn("settings watch stopped", "error", err.Error())
		}
		return nil
	})
	g.Go(func() error {
		return ipc.Serve(gctx, listener, d)
	})

	err := g.Wait()
	d.controller.Wait()

	unbindCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unbindTimeout)
	defer cancel()
	if unbindErr := d.hotkeys.Unregister(unbindCtx); unbindErr != nil {
		d.logger.Warn("unregister hotkey failed", "error", unbindErr.Error())
	}
	return err
}

// syncHotkey applies hotkey settings. Failures are logged; the toggle
// command keeps working without a compositor binding.
func (d *daemon) syncHotkey(ctx context.Context, cfg config.Config) {
	var err error
	if cfg.Hotkey.Bind {
		err = d.hotkeys.Register(ctx, cfg.Hotkey)
	} else {
		err = d.hotkeys.Unregister(ctx)
	}
	if err != nil {
		d.logger.Error("hotkey update failed", "error", err.Error())
	}
}

// Handle routes IPC commands: toggle goes through the hotkey service, model
// commands to the model manager, everything else to the session.
func (d *daemon) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandToggle:
		return d.toggle()
	case ipc.CommandModelStatus, ipc.CommandModelDownload, ipc.CommandModelDelete:
		return modelCommand(ctx, d.models, req.Command, req.Arg(0), d.store.Snapshot().Offline.Model)
	default:
		return d.controller.Handle(ctx, req)
	}
}

func (d *daemon) toggle() ipc.Response {
	notice, ok := d.hotkeys.Fire()
	if !ok {
		return ipc.Failure(string(d.controller.State()), errors.New("no trigger handler"))
	}
	return ipc.Response{OK: true, State: string(d.controller.State()), Message: noticeMessage(session.Notice(notice))}
}

func noticeMessage(n session.Notice) string {
	switch n {
	case session.NoticeStart:
		return "recording started"
	case session.NoticeStop:
		return "recording stopped"
	default:
		return "busy; try again when processing finishes"
	}
}

func (r Runner) commandServe(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	d, err := newDaemon(loaded, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logger.Info("daemon started", "socket", socketPath)
	if err := d.run(ctx, listener); err != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

// commandToggle forwards to a running daemon. Without one, this process
// becomes a one-shot owner: it starts recording, accepts the stopping
// toggle over the socket and exits once the transcription settles.
func (r Runner) commandToggle(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if code, handled := r.forwardToggle(ctx, socketPath); handled {
		return code
	}

	listener, err := ipc.Acquire(ctx, socketPath, acquireProbeTimeout, acquireRetries, logger)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			if code, handled := r.forwardToggle(ctx, socketPath); handled {
				return code
			}
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	d, err := newDaemon(loaded, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	views, cancelViews := d.controller.Subscribe()
	defer cancelViews()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runErr := make(chan error, 1)
	go func() {
		runErr <- d.run(runCtx, listener)
	}()

	d.toggle()
	settled := waitForOutcome(ctx, views)
	d.controller.Wait()
	cancelRun()
	if err := <-runErr; err != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		return 1
	}

	if !settled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}

	final := d.controller.View()
	logger.Info("one-shot session finished", "state", string(final.State), "status", final.Status)
	if final.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", final.Err.Description())
		return 1
	}
	if text := strings.TrimSpace(final.ActiveText()); text != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	return 0
}

func (r Runner) forwardToggle(ctx context.Context, socketPath string) (int, bool) {
	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandToggle}, quickTimeout)
	if !handled {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	r.printMessage(resp)
	return 0, true
}

// waitForOutcome blocks until the session shows a result or an error. It
// reports false when ctx ends first.
func waitForOutcome(ctx context.Context, views <-chan session.View) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case v, ok := <-views:
			if !ok {
				return false
			}
			if v.State == fsm.StateShowingResult || v.State == fsm.StateError {
				return true
			}
		}
	}
}

// modelCommand serves model-status, model-download and model-delete. An
// empty variant means offline.model.
func modelCommand(ctx context.Context, manager *models.Manager, command, rawVariant, configured string) ipc.Response {
	if strings.TrimSpace(rawVariant) == "" {
		rawVariant = configured
	}
	variant, err := models.ParseVariant(rawVariant)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}

	switch command {
	case ipc.CommandModelStatus:
		st, err := manager.Status(variant)
		if err != nil {
			return ipc.Response{OK: false, Error: err.Error()}
		}
		if !st.Present {
			return ipc.Response{OK: true, Message: fmt.Sprintf("%s: missing (%s)", variant, st.Path)}
		}
		return ipc.Response{OK: true, Message: fmt.Sprintf("%s: present at %s (%d bytes)", variant, st.Path, st.Size)}
	case ipc.CommandModelDownload:
		path, err := manager.Download(ctx, variant)
		if err != nil {
			return ipc.Response{OK: false, Error: err.Error()}
		}
		return ipc.Response{OK: true, Message: fmt.Sprintf("downloaded %s to %s", variant, path)}
	case ipc.CommandModelDelete:
		if err := manager.Delete(variant); err != nil {
			return ipc.Response{OK: false, Error: err.Error()}
		}
		return ipc.Response{OK: true, Message: fmt.Sprintf("deleted %s", variant)}
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command: %s", command)}
	}
}

// toggleCommand is what the compositor runs when the hotkey fires.
func toggleCommand(configPath string) string {
	exe, err := os.Executable()
	if err != nil {
		exe = "dictum"
	}
	return toggleCommandFor(exe, configPath)
}

func toggleCommandFor(exe, configPath string) string {
	if configPath == "" {
		return config.ShellQuote(exe, "toggle")
	}
	return config.ShellQuote(exe, "--config", configPath, "toggle")
}

// dataDir is $XDG_DATA_HOME/dictum, next to the models directory.
func dataDir() (string, error) {
	modelsDir, err := models.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Dir(modelsDir), nil
}
