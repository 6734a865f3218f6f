package engine

import (
	"image"
	"time"
)

// processResult is the outcome of one clipBackend.process call.
type processResult int

const (
	resultWait processResult = iota
	resultRepaint
	resultErrorResult
	resultStarted
)

// decodedFrame is the backend-private staging area a finishProcess call
// fills in before the Worker copies it into the clip's write slot. Kept
// separate from FrameSlot so the backend never touches a slot the
// consumer might be reading.
type decodedFrame struct {
	original image.Image
	prepared *image.RGBA
	hasAlpha bool
	when     time.Time
}

// clipBackend is the Worker-private decoder-side state for one clip.
type clipBackend struct {
	clip   *Clip
	src    Handle
	decoder Capability

	opened bool

	nextFrameWhen time.Time
	paused        bool

	currentRequest FrameRequest

	staged decodedFrame

	minFrameDelay time.Duration
}

func newClipBackend(clip *Clip, src Handle, decoder Capability, minFrameDelay time.Duration) *clipBackend {
	return &clipBackend{
		clip:          clip,
		src:           src,
		decoder:       decoder,
		minFrameDelay: minFrameDelay,
	}
}

// process advances this clip's decode state by one scheduling pass: open
// and decode frame 0 if the decoder hasn't started yet, otherwise report
// whether the next frame's delay has elapsed.
func (b *clipBackend) process(now time.Time) (processResult, error) {
	if b.clip.State() == StateError {
		return resultErrorResult, nil
	}

	if !b.opened {
		return b.start(now)
	}

	if !b.paused && !now.Before(b.nextFrameWhen) {
		return resultRepaint, nil
	}
	return resultWait, nil
}

// start lazily opens the decoder and decodes frame 0 at native size.
func (b *clipBackend) start(now time.Time) (processResult, error) {
	mode := ModeNormal
	if b.clip.Mode() == Gif {
		mode = ModeSilent
	}
	if err := b.decoder.Open(b.src, mode); err != nil {
		return resultErrorResult, newError(DecoderOpenFailed, "backend.start", err)
	}
	if err := b.decoder.ReadNextFrame(); err != nil {
		return resultErrorResult, newError(DecodeFailed, "backend.start", err)
	}

	var original image.Image
	dst := &image.RGBA{}
	var hasAlpha bool
	if err := b.decoder.RenderFrame(dst, &hasAlpha, image.Point{}); err != nil {
		return resultErrorResult, newError(RenderFailed, "backend.start", err)
	}
	original = dst

	bounds := original.Bounds()
	b.clip.setDimensions(bounds.Dx(), bounds.Dy())

	b.staged = decodedFrame{original: original, hasAlpha: hasAlpha, when: now}
	b.opened = true
	b.nextFrameWhen = now

	return resultStarted, nil
}

// finishProcess decodes the next frame and computes its delay, called by
// the Worker immediately after accepting a Repaint result that survived
// the pause decision.
func (b *clipBackend) finishProcess(now time.Time) (processResult, error) {
	if err := b.decoder.ReadNextFrame(); err != nil {
		return resultErrorResult, newError(DecodeFailed, "backend.finishProcess", err)
	}
	delay := b.decoder.NextFrameDelay()
	if delay < b.minFrameDelay {
		delay = b.minFrameDelay
	}
	b.nextFrameWhen = b.nextFrameWhen.Add(delay)

	if !now.Before(b.nextFrameWhen) {
		// Frame-drop catch-up: we are still behind wall clock after one
		// decode, so decode one more frame and clamp forward.
		if err := b.decoder.ReadNextFrame(); err != nil {
			return resultErrorResult, newError(DecodeFailed, "backend.finishProcess", err)
		}
		if b.nextFrameWhen.Before(now) {
			b.nextFrameWhen = now
		}
	}

	req := b.currentRequest
	target := image.Point{X: req.FrameW, Y: req.FrameH}
	dst := &image.RGBA{}
	var hasAlpha bool
	if err := b.decoder.RenderFrame(dst, &hasAlpha, target); err != nil {
		return resultErrorResult, newError(RenderFailed, "backend.finishProcess", err)
	}

	prepared, err := b.clip.engine.preparer.Prepare(req, dst, hasAlpha, nil)
	if err != nil {
		return resultErrorResult, newError(RenderFailed, "backend.finishProcess", err)
	}

	b.staged = decodedFrame{
		original: dst,
		prepared: prepared,
		hasAlpha: hasAlpha,
		when:     b.nextFrameWhen,
	}

	return resultRepaint, nil
}

func (b *clipBackend) close() {
	if b.decoder != nil {
		_ = b.decoder.Close()
	}
	if b.src != nil {
		_ = b.src.Close()
	}
}
