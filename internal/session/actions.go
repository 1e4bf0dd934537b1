package session

import (
	"context"
	"fmt"

	"github.com/rbright/dictum/internal/apperr"
	"github.com/rbright/dictum/internal/refine"
)

// CopyRaw puts the raw transcription on the clipboard.
func (c *Controller) CopyRaw(ctx context.Context) error {
	c.mu.Lock()
	if c.transcription == nil {
		c.mu.Unlock()
		return ErrNoTranscription
	}
	gen := c.generation
	text := c.transcription.Text
	c.mu.Unlock()

	if err := c.clipboard.Copy(ctx, text); err != nil {
		classified := apperr.Wrap(apperr.KindAccessibilityPermissionDenied, err)
		c.failAction(classified, gen)
		return classified
	}
	c.setStatus("Copied raw text")
	return nil
}

// Refine selects mode for display, computing it first if this transcription
// has not been refined that way yet. A computed mode is never recomputed.
func (c *Controller) Refine(ctx context.Context, mode refine.Mode) (refine.Result, error) {
	c.mu.Lock()
	if c.transcription == nil {
		c.mu.Unlock()
		return refine.Result{}, ErrNoTranscription
	}
	if r, ok := c.refinements[mode]; ok {
		c.activeMode = mode
		c.status = mode.Title() + " selected"
		c.publishLocked()
		c.mu.Unlock()
		return r, nil
	}
	gen := c.generation
	text := c.transcription.Text
	c.status = mode.Title() + "…"
	c.publishLocked()
	c.mu.Unlock()

	r, err := c.refineForGeneration(ctx, gen, text, mode)
	if err != nil {
		classified := apperr.Wrap(apperr.KindRefinementFailed, err)
		c.failAction(classified, gen)
		return refine.Result{}, classified
	}
	return r, nil
}

// CopyRefined puts a computed refinement on the clipboard.
func (c *Controller) CopyRefined(ctx context.Context, mode refine.Mode) error {
	c.mu.Lock()
	if c.transcription == nil {
		c.mu.Unlock()
		return ErrNoTranscription
	}
	gen := c.generation
	r, ok := c.refinements[mode]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s has not been run for this transcription", mode.Title())
	}

	if err := c.clipboard.Copy(ctx, r.Text); err != nil {
		classified := apperr.Wrap(apperr.KindAccessibilityPermissionDenied, err)
		c.failAction(classified, gen)
		return classified
	}
	c.setStatus("Copied " + mode.Title())
	return nil
}

// refineForGeneration calls the refiner once per (transcription, mode).
// Concurrent requests share the call. A result that arrives after a new
// recording started is returned but not stored.
func (c *Controller) refineForGeneration(ctx context.Context, gen uint64, text string, mode refine.Mode) (refine.Result, error) {
	key := fmt.Sprintf("%d/%s", gen, mode)
	v, err, _ := c.refines.Do(key, func() (any, error) {
		c.mu.Lock()
		if r, ok := c.refinements[mode]; ok && c.generation == gen {
			c.mu.Unlock()
			return r, nil
		}
		c.mu.Unlock()

		r, err := c.refiner.Refine(ctx, text, mode)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			c.logger.Info("discarding stale refinement", "mode", string(mode))
			return r, nil
		}
		c.refinements[mode] = r
		return r, nil
	})
	if err != nil {
		return refine.Result{}, err
	}
	r := v.(refine.Result)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.activeMode = mode
		c.status = mode.Title() + " done"
		c.publishLocked()
	}
	return r, nil
}

func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.publishLocked()
}
