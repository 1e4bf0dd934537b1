// Package session owns the dictation state machine: one hotkey toggles
// recording, the finished audio is transcribed, and the result is either
// delivered automatically or held for manual copy and refinement.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/asr"
	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/config"
	"github.com/rbright/dictum/internal/fsm"
	"github.com/rbright/dictum/internal/refine"
)

// MinRecording is the shortest capture treated as speech.
const MinRecording = 150 * time.Millisecond

// ErrNoTranscription is returned by manual actions when there is nothing to
// act on. The session is left untouched.
var ErrNoTranscription = errors.New("no transcription available")

// Settings hands out fresh settings snapshots.
type Settings interface {
	Snapshot() config.Snapshot
}

// Recorder captures microphone audio.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (audio.Recording, error)
}

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, rec audio.Recording, opts asr.Options) (asr.Result, error)
}

// Refiner rewrites a transcript under one mode.
type Refiner interface {
	Refine(ctx context.Context, text string, mode refine.Mode) (refine.Result, error)
}

// Clipboard sets the clipboard.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Inserter pastes into the focused field.
type Inserter interface {
	Paste(ctx context.Context, text string) error
}

// Cue is an audible state change.
type Cue int

const (
	CueStart Cue = iota + 1
	CueStop
	CueComplete
)

// Cues plays audible cues. Play must not block.
type Cues interface {
	Play(Cue)
}

// Notice is the immediate answer to a trigger.
type Notice string

const (
	NoticeStart Notice = "start"
	NoticeStop  Notice = "stop"
	NoticeBusy  Notice = "busy"
)

// Deps are the controller's collaborators. Cues and Logger are optional.
type Deps struct {
	Settings    Settings
	Recorder    Recorder
	Transcriber Transcriber
	Refiner     Refiner
	Clipboard   Clipboard
	Inserter    Inserter
	Cues        Cues
	Logger      *slog.Logger
}

type noCues struct{}

func (noCues) Play(Cue) {}

// Controller is the single owner of session state. Every field below mu is
// read and written under it; flows run on their own goroutine and re-take
// the lock at each step.
type Controller struct {
	settings    Settings
	recorder    Recorder
	transcriber Transcriber
	refiner     Refiner
	clipboard   Clipboard
	inserter    Inserter
	cues        Cues
	logger      *slog.Logger
	now         func() time.Time

	flows   sync.WaitGroup
	refines singleflight.Group

	mu            sync.Mutex
	state         fsm.State
	flowing       bool
	startedAt     time.Time
	audio         audio.Recording
	transcription *asr.Result
	refinements   map[refine.Mode]refine.Result
	activeMode    refine.Mode
	generation    uint64
	lastErr       *apperr.Error
	status        string
	resultVisible bool
	subscribers   map[int]chan View
	nextSub       int
}

// NewController builds an idle controller.
func NewController(deps Deps) *Controller {
	if deps.Cues == nil {
		deps.Cues = noCues{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		settings:    deps.Settings,
		recorder:    deps.Recorder,
		transcriber: deps.Transcriber,
		refiner:     deps.Refiner,
		clipboard:   deps.Clipboard,
		inserter:    deps.Inserter,
		cues:        deps.Cues,
		logger:      deps.Logger,
		now:         time.Now,
		state:       fsm.StateIdle,
		refinements: make(map[refine.Mode]refine.Result),
		subscribers: make(map[int]chan View),
	}
}

// State returns the current state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger handles one hotkey press. The start/stop decision is made before
// it returns; the flow itself runs in the background. A press while a flow
// is in flight is rejected, never queued.
func (c *Controller) Trigger(ctx context.Context) Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flowing || c.state == fsm.StateProcessing {
		c.logger.Info("trigger ignored; session busy", "state", string(c.state))
		c.status = apperr.Busy.Description()
		c.publishLocked()
		return NoticeBusy
	}

	flowCtx := context.WithoutCancel(ctx)
	c.flowing = true
	c.flows.Add(1)

	if c.state == fsm.StateRecording {
		go c.stopFlow(flowCtx)
		return NoticeStop
	}
	go c.startFlow(flowCtx)
	return NoticeStart
}

// Wait blocks until every flow started so far has finished.
func (c *Controller) Wait() {
	c.flows.Wait()
}

func (c *Controller) startFlow(ctx context.Context) {
	defer c.flows.Done()

	snapshot := c.settings.Snapshot()
	if snapshot.Indicator.SoundEnable {
		c.cues.Play(CueStart)
	}

	if err := c.recorder.Start(ctx); err != nil {
		c.fail(apperr.Wrap(apperr.KindRecordingStartFailed, err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.applyLocked(fsm.EventStart) {
		return
	}
	c.flowing = false
	c.startedAt = c.now()
	c.audio = audio.Recording{}
	c.transcription = nil
	c.refinements = make(map[refine.Mode]refine.Result)
	c.activeMode = ""
	c.generation++
	c.lastErr = nil
	c.status = "Recording…"
	c.resultVisible = false
	c.publishLocked()
}

func (c *Controller) stopFlow(ctx context.Context) {
	defer c.flows.Done()

	rec, err := c.recorder.Stop(ctx)
	snapshot := c.settings.Snapshot()
	if snapshot.Indicator.SoundEnable {
		c.cues.Play(CueStop)
	}
	if err != nil {
		c.logger.Error("stop recording failed", "error", err.Error())
		c.fail(apperr.New(apperr.KindEmptyAudio, "", err))
		return
	}
	defer c.discardAudio(rec, snapshot)

	if rec.Duration < MinRecording {
		c.logger.Info("recording too short", "duration_ms", rec.Duration.Milliseconds())
		c.fail(apperr.New(apperr.KindEmptyAudio, "", nil))
		return
	}

	c.mu.Lock()
	if !c.applyLocked(fsm.EventStop) {
		c.mu.Unlock()
		return
	}
	c.audio = rec
	c.status = "Transcribing…"
	c.resultVisible = !snapshot.Delivery.QuickMode && !snapshot.Delivery.AutoPaste
	c.publishLocked()
	c.mu.Unlock()

	result, err := c.transcriber.Transcribe(ctx, rec, asr.Options{
		LanguageHint:    snapshot.LanguageHint,
		PreferCloud:     snapshot.Cloud.Enabled,
		OfflineFallback: snapshot.Cloud.OfflineFallback,
	})
	if err != nil {
		c.fail(apperr.Wrap(apperr.KindLocalTranscriptionFailed, err))
		return
	}

	c.mu.Lock()
	if !c.applyLocked(fsm.EventTranscribed) {
		c.mu.Unlock()
		return
	}
	c.audio = audio.Recording{}
	c.transcription = &result
	c.status = fmt.Sprintf("Transcribed with %s in %d ms", result.Provider, result.LatencyMS())
	gen := c.generation
	c.publishLocked()
	c.mu.Unlock()

	c.afterTranscription(ctx, snapshot, gen, result)

	c.mu.Lock()
	c.flowing = false
	c.mu.Unlock()
}

// afterTranscription applies the quick-mode and auto-paste policy.
func (c *Controller) afterTranscription(ctx context.Context, snapshot config.Snapshot, gen uint64, result asr.Result) {
	delivery := snapshot.Delivery

	var (
		text  string
		label string
	)
	switch {
	case delivery.QuickMode:
		refined, err := c.refineForGeneration(ctx, gen, result.Text, refine.SpellingFix)
		if err != nil {
			c.fail(apperr.Wrap(apperr.KindRefinementFailed, err))
			return
		}
		text, label = refined.Text, refine.SpellingFix.Title()+" done"
	case delivery.AutoPaste && delivery.AutoPasteContent == config.ContentSpellingFix:
		refined, err := c.refineForGeneration(ctx, gen, result.Text, refine.SpellingFix)
		if err != nil {
			c.fail(apperr.Wrap(apperr.KindRefinementFailed, err))
			return
		}
		text, label = refined.Text, refine.SpellingFix.Title()+" done"
	case delivery.AutoPaste:
		text, label = result.Text, "Raw text"
	default:
		return
	}

	verb, err := c.deliver(ctx, text, delivery.AutoPaste)
	if err != nil {
		c.fail(apperr.Wrap(apperr.KindAccessibilityPermissionDenied, err))
		return
	}
	if snapshot.Indicator.SoundEnable {
		c.cues.Play(CueComplete)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resultVisible = false
	c.status = label + " and " + verb
	c.publishLocked()
}

// deliver routes text to the focused field when toCursor, else the clipboard.
func (c *Controller) deliver(ctx context.Context, text string, toCursor bool) (string, error) {
	if toCursor {
		return "pasted", c.inserter.Paste(ctx, text)
	}
	return "copied", c.clipboard.Copy(ctx, text)
}

// fail moves the session to error and ends the in-flight flow.
func (c *Controller) fail(classified *apperr.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flowing = false
	c.failLocked(classified)
}

// failAction reports a manual action failure. The session only moves to
// error when gen is still the transcription on display; otherwise a newer
// recording owns the state and the failure is just logged.
func (c *Controller) failAction(classified *apperr.Error, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || (c.state != fsm.StateShowingResult && c.state != fsm.StateError) {
		c.logger.Warn("manual action failed after session moved on",
			"state", string(c.state), "error", classified.Description())
		return
	}
	c.failLocked(classified)
}

func (c *Controller) failLocked(classified *apperr.Error) {
	if !c.applyLocked(fsm.EventFail) {
		return
	}
	c.audio = audio.Recording{}
	c.lastErr = classified
	c.status = classified.Description()
	c.resultVisible = true
	c.publishLocked()
	c.logger.Error("session failed", "kind", string(classified.Kind), "error", classified.Description())
}

// applyLocked runs one state machine event. An invalid transition is a
// programming error: it is logged and the state is left alone.
func (c *Controller) applyLocked(event fsm.Event) bool {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.logger.Error("invalid session transition", "error", err.Error())
		c.flowing = false
		return false
	}
	c.state = next
	return true
}

// discardAudio removes the recording unless debug.keep_audio is set.
func (c *Controller) discardAudio(rec audio.Recording, snapshot config.Snapshot) {
	if rec.Path == "" || snapshot.Debug.KeepAudio {
		return
	}
	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("remove recording failed", "path", rec.Path, "error", err.Error())
	}
}
