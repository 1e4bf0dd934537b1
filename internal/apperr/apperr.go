// Package apperr defines the closed set of failures a dictation flow can end in.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one failure class. The set is closed.
type Kind string

const (
	KindRecordingPermissionDenied     Kind = "recording-permission-denied"
	KindRecordingStartFailed          Kind = "recording-start-failed"
	KindEmptyAudio                    Kind = "empty-audio"
	KindNetworkUnavailable            Kind = "network-unavailable"
	KindCloudTranscriptionFailed      Kind = "cloud-transcription-failed"
	KindOfflineModelMissing           Kind = "offline-model-missing"
	KindOfflineModelDownloadFailed    Kind = "offline-model-download-failed"
	KindLocalTranscriptionFailed      Kind = "local-transcription-failed"
	KindRefinementFailed              Kind = "refinement-failed"
	KindAccessibilityPermissionDenied Kind = "accessibility-permission-denied"
	KindBusy                          Kind = "busy"
)

var kinds = []Kind{
	KindRecordingPermissionDenied,
	KindRecordingStartFailed,
	KindEmptyAudio,
	KindNetworkUnavailable,
	KindCloudTranscriptionFailed,
	KindOfflineModelMissing,
	KindOfflineModelDownloadFailed,
	KindLocalTranscriptionFailed,
	KindRefinementFailed,
	KindAccessibilityPermissionDenied,
	KindBusy,
}

// Sentinels for errors.Is checks. They match any *Error of the same kind
// regardless of detail.
var (
	RecordingPermissionDenied     = &Error{Kind: KindRecordingPermissionDenied}
	RecordingStartFailed          = &Error{Kind: KindRecordingStartFailed}
	EmptyAudio                    = &Error{Kind: KindEmptyAudio}
	NetworkUnavailable            = &Error{Kind: KindNetworkUnavailable}
	CloudTranscriptionFailed      = &Error{Kind: KindCloudTranscriptionFailed}
	OfflineModelMissing           = &Error{Kind: KindOfflineModelMissing}
	OfflineModelDownloadFailed    = &Error{Kind: KindOfflineModelDownloadFailed}
	LocalTranscriptionFailed      = &Error{Kind: KindLocalTranscriptionFailed}
	RefinementFailed              = &Error{Kind: KindRefinementFailed}
	AccessibilityPermissionDenied = &Error{Kind: KindAccessibilityPermissionDenied}
	Busy                          = &Error{Kind: KindBusy}
)

// Error is a classified failure with an optional human-readable detail and
// the transport error it was built from.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// New builds a classified error. Detail is trimmed; an empty detail falls
// back to the cause's message when one is given.
func New(kind Kind, detail string, cause error) *Error {
	detail = strings.TrimSpace(detail)
	if detail == "" && cause != nil {
		detail = strings.TrimSpace(cause.Error())
	}
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// Wrap classifies err under kind, keeping err as the cause. An err that is
// already an *Error is returned unchanged.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return New(kind, "", err)
}

// As extracts the classified error from err, if any.
func As(err error) (*Error, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

func (e *Error) Error() string {
	return e.Description()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by kind so sentinels compare equal to detailed errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Description is the status-line text for the error.
func (e *Error) Description() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindRecordingPermissionDenied:
		return "Microphone permission denied."
	case KindRecordingStartFailed:
		return withDetail("Unable to start recording", e.Detail)
	case KindEmptyAudio:
		return "No audio captured."
	case KindNetworkUnavailable:
		return "Network unavailable."
	case KindCloudTranscriptionFailed:
		return withDetail("Cloud transcription failed", e.Detail)
	case KindOfflineModelMissing:
		return "Offline model is missing. Download it first."
	case KindOfflineModelDownloadFailed:
		return withDetail("Offline model download failed", e.Detail)
	case KindLocalTranscriptionFailed:
		return withDetail("Local transcription failed", e.Detail)
	case KindRefinementFailed:
		return withDetail("Refinement failed", e.Detail)
	case KindAccessibilityPermissionDenied:
		if e.Detail != "" {
			return withDetail("Paste into focused field is unavailable", e.Detail)
		}
		return "Paste into focused field is unavailable."
	case KindBusy:
		return "Still processing the previous recording."
	default:
		return withDetail(fmt.Sprintf("unknown failure %q", string(e.Kind)), e.Detail)
	}
}

func withDetail(prefix, detail string) string {
	if detail == "" {
		return prefix + "."
	}
	return prefix + ": " + detail
}
