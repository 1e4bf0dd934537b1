package asr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/config"
)

// Settings hands out fresh settings snapshots.
type Settings interface {
	Snapshot() config.Snapshot
}

// Reachability reports the last observed network status.
type Reachability interface {
	Online() bool
}

// Orchestrator picks a backend per call. The cloud is tried only when the
// caller prefers it, it is enabled, a key exists and the network is up. A
// failed cloud call falls back to the local backend at most once.
type Orchestrator struct {
	settings Settings
	network  Reachability
	cloud    Backend
	local    Backend
	logger   *slog.Logger
}

// NewOrchestrator wires the routing policy. cloud may be nil, which makes
// every call local.
func NewOrchestrator(settings Settings, network Reachability, cloud Backend, local Backend, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		settings: settings,
		network:  network,
		cloud:    cloud,
		local:    local,
		logger:   logger,
	}
}

// Transcribe runs rec through the chosen backend.
func (o *Orchestrator) Transcribe(ctx context.Context, rec audio.Recording, opts Options) (Result, error) {
	snapshot := o.settings.Snapshot()

	if blockers := o.cloudBlockers(snapshot, opts); len(blockers) > 0 {
		o.logger.Info("transcribing locally", "reasons", strings.Join(blockers, ","))
		return o.transcribeLocal(ctx, rec, opts)
	}

	result, err := o.cloud.Transcribe(ctx, rec, opts)
	if err == nil {
		o.logger.Info("cloud transcription finished", "latency_ms", result.LatencyMS(), "language", result.Language)
		return result, nil
	}

	cloudErr := apperr.Wrap(apperr.KindCloudTranscriptionFailed, err)
	if !opts.OfflineFallback {
		o.logger.Error("cloud transcription failed; fallback disabled", "error", cloudErr.Error())
		return Result{}, cloudErr
	}

	o.logger.Warn("cloud transcription failed; falling back to local", "error", cloudErr.Error())
	return o.transcribeLocal(ctx, rec, opts)
}

// cloudBlockers lists every reason the cloud path is not eligible.
func (o *Orchestrator) cloudBlockers(snapshot config.Snapshot, opts Options) []string {
	var reasons []string
	if !opts.PreferCloud {
		reasons = append(reasons, "cloud-not-preferred")
	}
	if !snapshot.Cloud.Enabled {
		reasons = append(reasons, "cloud-disabled")
	}
	if !snapshot.APIKeyPresent {
		reasons = append(reasons, "no-api-key")
	}
	if o.network != nil && !o.network.Online() {
		reasons = append(reasons, "offline")
	}
	if o.cloud == nil {
		reasons = append(reasons, "no-cloud-backend")
	}
	return reasons
}

func (o *Orchestrator) transcribeLocal(ctx context.Context, rec audio.Recording, opts Options) (Result, error) {
	if o.local == nil {
		return Result{}, apperr.New(apperr.KindLocalTranscriptionFailed, "no local backend configured", nil)
	}
	result, err := o.local.Transcribe(ctx, rec, opts)
	if err != nil {
		localErr := apperr.Wrap(apperr.KindLocalTranscriptionFailed, err)
		o.logger.Error("local transcription failed", "error", localErr.Error())
		return Result{}, localErr
	}
	o.logger.Info("local transcription finished", "latency_ms", result.LatencyMS())
	return result, nil
}
