// Package whisper runs a local whisper.cpp binary against a recording.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/asr"
	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/models"
	"github.com/rbright/dictum/internal/transcript"
)

// ModelSource resolves an installed model file.
type ModelSource interface {
	Ensure(v models.Variant) (string, error)
}

// Transcriber implements asr.Backend by shelling out to whisper-cli.
type Transcriber struct {
	settings asr.Settings
	models   ModelSource
	logger   *slog.Logger
	now      func() time.Time
}

// NewTranscriber builds a local backend.
func NewTranscriber(settings asr.Settings, source ModelSource, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transcriber{settings: settings, models: source, logger: logger, now: time.Now}
}

// Transcribe runs the configured binary with the configured model. A
// missing model is reported as such and is never fetched here.
func (t *Transcriber) Transcribe(ctx context.Context, rec audio.Recording, _ asr.Options) (asr.Result, error) {
	cfg := t.settings.Snapshot().Offline

	variant, err := models.ParseVariant(cfg.Model)
	if err != nil {
		return asr.Result{}, apperr.New(apperr.KindLocalTranscriptionFailed, "", err)
	}
	modelPath, err := t.models.Ensure(variant)
	if err != nil {
		return asr.Result{}, err
	}

	binary, err := resolveBinary(cfg.Binary)
	if err != nil {
		return asr.Result{}, apperr.New(apperr.KindLocalTranscriptionFailed, "", err)
	}

	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	base := strings.TrimSuffix(rec.Path, filepath.Ext(rec.Path))
	outputPath := base + ".txt"
	defer func() { _ = os.Remove(outputPath) }()

	started := t.now()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, Args(modelPath, rec.Path, base)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	latency := t.now().Sub(started)

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return asr.Result{}, apperr.New(apperr.KindLocalTranscriptionFailed, fmt.Sprintf("timed out after %s", timeout), runErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = runErr.Error()
		}
		return asr.Result{}, apperr.New(apperr.KindLocalTranscriptionFailed, lastLine(detail), runErr)
	}

	data, err := os.ReadFile(outputPath)
	text := transcript.Join(transcript.Lines(string(data)))
	if err != nil || text == "" {
		return asr.Result{}, apperr.New(apperr.KindLocalTranscriptionFailed, "no transcription output produced", nil)
	}

	t.logger.Debug("local transcription output", "model", string(variant), "latency_ms", latency.Milliseconds())
	return asr.Result{Text: text, Provider: asr.ProviderLocal, Latency: latency}, nil
}

// Args is the whisper-cli argument list for one run. Output lands in
// outputBase + ".txt".
func Args(modelPath, audioPath, outputBase string) []string {
	return []string{"-m", modelPath, "-f", audioPath, "-l", "auto", "-otxt", "-of", outputBase}
}

func resolveBinary(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("offline.binary is not configured")
	}
	path, err := exec.LookPath(raw)
	if err != nil {
		return "", fmt.Errorf("whisper binary %q not found", raw)
	}
	return path, nil
}

// lastLine keeps the tail of noisy whisper.cpp stderr.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
