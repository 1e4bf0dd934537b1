package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/dictum/internal/apperr"
)

// Recording is a finished audio artifact on disk.
type Recording struct {
	Path     string
	Duration time.Duration
	Device   Device
}

// Preferences returns the current audio.input and audio.fallback settings.
type Preferences func() (input, fallback string)

type pcmStream interface {
	Stop() error
	PCM() []byte
	Truncated() bool
}

// Recorder turns start/stop requests into WAV files under dir. At most one
// capture is active at a time.
type Recorder struct {
	dir    string
	prefs  Preferences
	logger *slog.Logger

	selectDevice func(ctx context.Context, input, fallback string) (Selection, error)
	open         func(ctx context.Context, device Device) (pcmStream, error)

	mu     sync.Mutex
	active pcmStream
	device Device
}

// NewRecorder builds a Pulse-backed recorder writing into dir.
func NewRecorder(dir string, prefs Preferences, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if prefs == nil {
		prefs = func() (string, string) { return "default", "default" }
	}
	return &Recorder{
		dir:          dir,
		prefs:        prefs,
		logger:       logger,
		selectDevice: SelectDevice,
		open: func(ctx context.Context, device Device) (pcmStream, error) {
			return StartCapture(ctx, device)
		},
	}
}

// DefaultDir resolves $XDG_CACHE_HOME/dictum/recordings with a ~/.cache fallback.
func DefaultDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME")); xdg != "" {
		return filepath.Join(xdg, "dictum", "recordings"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for recordings directory")
	}
	return filepath.Join(home, ".cache", "dictum", "recordings"), nil
}

// Start selects an input device and begins capturing.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return apperr.New(apperr.KindRecordingStartFailed, "recording already in progress", nil)
	}

	input, fallback := r.prefs()
	selection, err := r.selectDevice(ctx, input, fallback)
	if err != nil {
		return classifyStartError(err)
	}
	if selection.Warning != "" {
		r.logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	stream, err := r.open(ctx, selection.Device)
	if err != nil {
		return classifyStartError(err)
	}

	r.active = stream
	r.device = selection.Device
	r.logger.Info("recording started", "device", selection.Device.ID)
	return nil
}

// Stop ends the capture and writes it to a new WAV file.
func (r *Recorder) Stop(_ context.Context) (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return Recording{}, errors.New("no recording in progress")
	}
	stream, device := r.active, r.device
	r.active = nil
	r.device = Device{}

	if err := stream.Stop(); err != nil {
		r.logger.Warn("stop capture failed", "error", err.Error())
	}
	pcm := stream.PCM()
	if stream.Truncated() {
		r.logger.Warn("recording hit the capture limit; audio truncated", "bytes", len(pcm))
	}

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return Recording{}, fmt.Errorf("create recordings dir: %w", err)
	}
	path := filepath.Join(r.dir, "recording-"+uuid.NewString()+".wav")
	if err := WriteWAV(path, pcm); err != nil {
		return Recording{}, err
	}

	rec := Recording{Path: path, Duration: PCMDuration(pcm), Device: device}
	r.logger.Info("recording stopped", "path", path, "duration_ms", rec.Duration.Milliseconds())
	return rec, nil
}

func classifyStartError(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return apperr.New(apperr.KindRecordingPermissionDenied, "", err)
	}
	return apperr.Wrap(apperr.KindRecordingStartFailed, err)
}

func (r *Recorder) capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}
