// Package asr routes one recording to the cloud or local speech backend.
package asr

import (
	"context"
	"time"

	"github.com/rbright/dictum/internal/audio"
)

// Provider identifies the backend that produced a transcription.
type Provider string

const (
	ProviderCloud Provider = "openai-whisper"
	ProviderLocal Provider = "local-whisper"
)

// Result is one finished transcription. It is never modified after it is
// returned.
type Result struct {
	Text     string
	Provider Provider
	Latency  time.Duration
	// Language is the detected language code; empty when the backend does
	// not report one.
	Language string
}

// LatencyMS reports Latency in whole milliseconds.
func (r Result) LatencyMS() int64 {
	return r.Latency.Milliseconds()
}

// Options are per-call routing hints.
type Options struct {
	LanguageHint    string
	PreferCloud     bool
	OfflineFallback bool
}

// Backend transcribes one recording.
type Backend interface {
	Transcribe(ctx context.Context, rec audio.Recording, opts Options) (Result, error)
}
