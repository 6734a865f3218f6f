package engine

import (
	"image"
	"sync/atomic"
	"time"
)

// clipIDs is the monotonic 64-bit id generator: Workers key their
// registration map by id, not by *Clip pointer, so address reuse after a
// Stop can never alias a live registration.
var clipIDs atomic.Uint64

func nextClipID() uint64 {
	return clipIDs.Add(1)
}

// Clip is the consumer-visible handle. It owns three FrameSlots, a mode,
// a sizing request, a paused flag and a callback. The backend that
// actually decodes into Clip's slots lives on a Worker; Clip only holds
// the worker reference and its own id — removal from the Worker's
// registration map is the sole deallocation path for the backend.
type Clip struct {
	id     uint64
	mode   PlaybackMode
	engine *Engine

	state atomic.Int32 // State

	paused atomic.Bool

	width, height atomic.Int32 // 0 until discovered on frame 0

	frames [3]FrameSlot
	step   atomic.Int32 // stepWord

	workerIndex int

	callback Callback

	stopped atomic.Bool
}

func newClip(mode PlaybackMode, cb Callback, workerIndex int) *Clip {
	c := &Clip{
		id:          nextClipID(),
		mode:        mode,
		callback:    cb,
		workerIndex: workerIndex,
	}
	c.step.Store(int32(stepWaitingForDimensions))
	c.state.Store(int32(Reading))
	return c
}

// ID returns the clip's monotonic identifier, used as the Worker
// registration key.
func (c *Clip) ID() uint64 { return c.id }

func (c *Clip) loadStep() stepWord   { return stepWord(c.step.Load()) }
func (c *Clip) storeStep(s stepWord) { c.step.Store(int32(s)) }

// Ready reports whether the first frame has been decoded.
func (c *Clip) Ready() bool {
	return c.loadStep() != stepWaitingForDimensions
}

// Width returns the discovered width, or 0 before the first frame.
func (c *Clip) Width() int { return int(c.width.Load()) }

// Height returns the discovered height, or 0 before the first frame.
func (c *Clip) Height() int { return int(c.height.Load()) }

// State returns Reading or StateError. Once StateError, it never changes
// back.
func (c *Clip) State() State { return State(c.state.Load()) }

// Mode returns Gif or Video.
func (c *Clip) Mode() PlaybackMode { return c.mode }

func (c *Clip) setDimensions(w, h int) {
	c.width.Store(int32(w))
	c.height.Store(int32(h))
}

func (c *Clip) setError() { c.state.Store(int32(StateError)) }

// Start is only meaningful in WaitingForRequest: it multiplies every
// dimension by the current DPR, stores the resulting FrameRequest into
// every slot, advances the read cursor and signals the Worker. No-op if
// StateError or not in that state.
func (c *Clip) Start(frameW, frameH, outerW, outerH int, factor int, rounded bool) {
	if c.State() == StateError {
		return
	}
	if c.loadStep() != stepWaitingForRequest {
		return
	}
	req := FrameRequest{FrameW: frameW, FrameH: frameH, OuterW: outerW, OuterH: outerH, Rounded: rounded}.scaled(factor)
	for i := range c.frames {
		c.frames[i].request = req
	}
	c.storeStep(c.loadStep().advanceRead())
	c.engine.wake(c.workerIndex, c.id)
}

// Current returns the currently-shown prepared pixmap, advancing the
// display bookkeeping. It never blocks; when the requested outer size
// differs from the stored pixmap's size it re-prepares the pixmap
// synchronously on the calling (UI) goroutine.
func (c *Clip) Current(frameW, frameH, outerW, outerH int, now time.Time) *image.RGBA {
	step := c.loadStep()
	idx := step.readCursor()
	if idx < 0 || step == stepWaitingForFirstFrame {
		// Until the first prepared frame is committed the Worker owns slot 0.
		return nil
	}
	slot := &c.frames[idx]

	if now.IsZero() {
		slot.markDisplayed(displayPaused)
		return slot.prepared
	}
	slot.markDisplayed(displayShown)
	if c.paused.Load() {
		c.paused.Store(false)
		c.engine.wake(c.workerIndex, c.id)
	}

	if slot.prepared == nil {
		return nil
	}
	req := FrameRequest{
		FrameW: frameW, FrameH: frameH,
		OuterW: outerW, OuterH: outerH,
		Rounded: slot.request.Rounded,
	}.scaled(slot.request.Factor)
	if b := slot.prepared.Bounds(); b.Dx() != req.OuterW || b.Dy() != req.OuterH {
		prepared, err := c.engine.preparer.Prepare(req, slot.original, slot.hasAlpha, slot.prepared)
		if err != nil {
			c.setError()
			return slot.prepared
		}
		slot.prepared = prepared
		slot.request = req

		nextIdx := step.writeNextCursor()
		if nextIdx != idx {
			c.frames[nextIdx].request = req
		}
		c.engine.wake(c.workerIndex, c.id)
	}

	if next := step.advanceRead(); next != step {
		c.storeStep(next)
	}
	return slot.prepared
}

// Stop asks the Worker to drop this clip. After Stop returns no further
// callback for this clip will be emitted, even if the Worker was
// mid-pass at the call — emit checks c.stopped before invoking the
// callback.
func (c *Clip) Stop() {
	if c.stopped.CompareAndSwap(false, true) {
		c.engine.removeClip(c)
	}
}

func (c *Clip) isStopped() bool { return c.stopped.Load() }
