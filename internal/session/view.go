package session

import (
	"time"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/asr"
	"github.com/rbright/dictum/internal/audio"
	"github.com/rbright/dictum/internal/fsm"
	"github.com/rbright/dictum/internal/refine"
)

// View is a point-in-time copy of the session for renderers. Nothing in it
// aliases controller state.
type View struct {
	State fsm.State
	// StartedAt is set while recording.
	StartedAt time.Time
	// Audio is set while processing.
	Audio         audio.Recording
	Transcription *asr.Result
	Refinements   map[refine.Mode]refine.Result
	ActiveMode    refine.Mode
	Err           *apperr.Error
	Status        string
	ResultVisible bool
}

// ActiveText is the text a renderer should show: the selected refinement
// when there is one, else the raw transcription.
func (v View) ActiveText() string {
	if r, ok := v.Refinements[v.ActiveMode]; ok {
		return r.Text
	}
	if v.Transcription != nil {
		return v.Transcription.Text
	}
	return ""
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe streams a View after every change, starting with the current
// one. A slow reader only misses intermediate views. cancel releases the
// subscription and closes the channel.
func (c *Controller) Subscribe() (views <-chan View, cancel func()) {
	ch := make(chan View, 8)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	ch <- c.viewLocked()
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
	}
}

func (c *Controller) viewLocked() View {
	v := View{
		State:         c.state,
		ActiveMode:    c.activeMode,
		Err:           c.lastErr,
		Status:        c.status,
		ResultVisible: c.resultVisible,
	}
	switch c.state {
	case fsm.StateRecording:
		v.StartedAt = c.startedAt
	case fsm.StateProcessing:
		v.Audio = c.audio
	}
	if c.transcription != nil {
		t := *c.transcription
		v.Transcription = &t
	}
	if len(c.refinements) > 0 {
		v.Refinements = make(map[refine.Mode]refine.Result, len(c.refinements))
		for mode, r := range c.refinements {
			v.Refinements[mode] = r
		}
	}
	return v
}

// publishLocked fans the current view out without blocking: a full
// subscriber drops its oldest pending view.
func (c *Controller) publishLocked() {
	if len(c.subscribers) == 0 {
		return
	}
	v := c.viewLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
