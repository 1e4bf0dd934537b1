// Package cloud transcribes recordings with the OpenAI audio API.
package cloud

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/asr"
	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/openaiapi"
	"github.com/rbright/dictum/internal/transcript"
)

// Transcriber implements asr.Backend against an OpenAI-compatible endpoint.
// Endpoint, model, language and timeout are read from settings on every call.
type Transcriber struct {
	settings   asr.Settings
	keys       openaiapi.KeySource
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewTranscriber builds a cloud backend. httpClient may be nil.
func NewTranscriber(settings asr.Settings, keys openaiapi.KeySource, httpClient *http.Client, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transcriber{
		settings:   settings,
		keys:       keys,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Transcribe uploads rec and returns the trimmed transcript. A missing key
// fails before any network traffic.
func (t *Transcriber) Transcribe(ctx context.Context, rec audio.Recording, _ asr.Options) (asr.Result, error) {
	key, err := t.keys.APIKey()
	if err != nil || strings.TrimSpace(key) == "" {
		return asr.Result{}, apperr.New(apperr.KindCloudTranscriptionFailed, "missing API key", nil)
	}

	cfg := t.settings.Snapshot().Cloud
	if cfg.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	client := openaiapi.NewClient(cfg.BaseURL, key, t.httpClient)
	started := t.now()
	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    cfg.Model,
		FilePath: rec.Path,
		Language: cfg.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return asr.Result{}, apperr.New(apperr.KindCloudTranscriptionFailed, "request timed out", err)
		}
		return asr.Result{}, apperr.New(apperr.KindCloudTranscriptionFailed, openaiapi.ErrorDetail(err), err)
	}

	latency := t.now().Sub(started)
	t.logger.Debug("cloud transcription response", "model", cfg.Model, "latency_ms", latency.Milliseconds())

	language := resp.Language
	if language == "" {
		language = cfg.Language
	}
	return asr.Result{
		Text:     transcript.Normalize(resp.Text),
		Provider: asr.ProviderCloud,
		Latency:  latency,
		Language: language,
	}, nil
}
