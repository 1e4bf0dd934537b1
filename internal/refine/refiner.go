package refine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/config"
	"github.com/rbright/dictum/internal/openaiapi"
)

// Result is one refined variant of a transcript.
type Result struct {
	Mode Mode
	Text string
}

// Settings hands out fresh settings snapshots.
type Settings interface {
	Snapshot() config.Snapshot
}

// Refiner rewrites text through the chat completions endpoint.
type Refiner struct {
	settings   Settings
	keys       openaiapi.KeySource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRefiner builds a refiner. httpClient may be nil.
func NewRefiner(settings Settings, keys openaiapi.KeySource, httpClient *http.Client, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Refiner{settings: settings, keys: keys, httpClient: httpClient, logger: logger}
}

// Refine runs one mode over text.
func (r *Refiner) Refine(ctx context.Context, text string, mode Mode) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, apperr.New(apperr.KindRefinementFailed, "nothing to refine", nil)
	}

	key, err := r.keys.APIKey()
	if err != nil || strings.TrimSpace(key) == "" {
		return Result{}, apperr.New(apperr.KindRefinementFailed, "missing API key", nil)
	}

	snapshot := r.settings.Snapshot()
	if snapshot.Cloud.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(snapshot.Cloud.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	client := openaiapi.NewClient(snapshot.Cloud.BaseURL, key, r.httpClient)
	started := time.Now()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       snapshot.Refine.Model,
		Temperature: float32(snapshot.Refine.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(mode, snapshot.LanguageHint, snapshot.Refine.CustomPrompt)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		switch {
		case openaiapi.IsNetworkError(err):
			return Result{}, apperr.New(apperr.KindNetworkUnavailable, "", err)
		case errors.Is(err, context.DeadlineExceeded):
			return Result{}, apperr.New(apperr.KindRefinementFailed, "request timed out", err)
		default:
			return Result{}, apperr.New(apperr.KindRefinementFailed, openaiapi.ErrorDetail(err), err)
		}
	}

	var out string
	if len(resp.Choices) > 0 {
		out = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if out == "" {
		return Result{}, apperr.New(apperr.KindRefinementFailed, "empty model output", nil)
	}

	r.logger.Info("refinement finished", "mode", string(mode), "latency_ms", time.Since(started).Milliseconds())
	return Result{Mode: mode, Text: out}, nil
}
