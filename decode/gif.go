package decode

import (
	"errors"
	"image"
	"image/draw"
	"image/gif"
	"time"

	xdraw "golang.org/x/image/draw"

	"clipengine"
)

// gifDecoder implements clipengine.Capability over the standard
// library's image/gif package. It eagerly decodes every frame on Open
// (GIFs are small enough that streaming frame-by-frame buys nothing) and
// composites frames onto a persistent canvas, clearing a frame's
// rectangle before the next frame when its disposal method is
// DisposalBackground; DisposalPrevious is treated like DisposalNone.
type gifDecoder struct {
	src clipengine.Handle

	frames *gif.GIF
	canvas *image.RGBA

	idx     int
	started bool
}

func newGIFDecoder() *gifDecoder {
	return &gifDecoder{idx: -1}
}

func (d *gifDecoder) Open(src clipengine.Handle, mode clipengine.Mode) error {
	rsc, err := src.Open()
	if err != nil {
		return err
	}
	defer rsc.Close()

	g, err := gif.DecodeAll(rsc)
	if err != nil {
		return err
	}
	if len(g.Image) == 0 {
		return errors.New("decode: gif has no frames")
	}

	d.src = src
	d.frames = g
	d.canvas = image.NewRGBA(image.Rect(0, 0, g.Config.Width, g.Config.Height))
	d.idx = -1
	d.started = false
	return nil
}

// ReadNextFrame composites the next frame onto the canvas, applying the
// previous frame's disposal method first, and loops back to frame 0
// after the last frame (Non-goals: looping is always on).
func (d *gifDecoder) ReadNextFrame() error {
	if d.frames == nil {
		return errors.New("decode: gif not opened")
	}

	if d.started {
		d.applyDisposal(d.idx)
		d.idx = (d.idx + 1) % len(d.frames.Image)
	} else {
		d.idx = 0
		d.started = true
	}

	frame := d.frames.Image[d.idx]
	draw.Draw(d.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
	return nil
}

// applyDisposal restores the canvas per GIF89a disposal semantics before
// the next frame is composited: DisposalBackground clears the frame's
// rectangle, DisposalNone and DisposalPrevious (rarely honored faithfully
// outside a full undo buffer) both leave the canvas as-is.
func (d *gifDecoder) applyDisposal(idx int) {
	if idx < 0 || idx >= len(d.frames.Disposal) {
		return
	}
	if d.frames.Disposal[idx] == gif.DisposalBackground {
		frame := d.frames.Image[idx]
		draw.Draw(d.canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
	}
}

func (d *gifDecoder) RenderFrame(dst *image.RGBA, hasAlpha *bool, target image.Point) error {
	if !d.started {
		return errors.New("decode: gif RenderFrame before ReadNextFrame")
	}
	*hasAlpha = true

	if target.X <= 0 || target.Y <= 0 {
		out := image.NewRGBA(d.canvas.Bounds())
		copy(out.Pix, d.canvas.Pix)
		*dst = *out
		return nil
	}

	out := image.NewRGBA(image.Rect(0, 0, target.X, target.Y))
	xdraw.CatmullRom.Scale(out, out.Bounds(), d.canvas, d.canvas.Bounds(), xdraw.Over, nil)
	*dst = *out
	return nil
}

func (d *gifDecoder) NextFrameDelay() time.Duration {
	if d.frames == nil || d.idx < 0 || d.idx >= len(d.frames.Delay) {
		return 100 * time.Millisecond
	}
	delay := d.frames.Delay[d.idx]
	if delay <= 0 {
		// Browsers treat a zero or missing delay as a fast default
		// rather than a busy-loop.
		delay = 10
	}
	return time.Duration(delay) * 10 * time.Millisecond
}

func (d *gifDecoder) Duration() time.Duration {
	if d.frames == nil {
		return 0
	}
	var total time.Duration
	for _, delay := range d.frames.Delay {
		if delay <= 0 {
			delay = 10
		}
		total += time.Duration(delay) * 10 * time.Millisecond
	}
	return total
}

func (d *gifDecoder) Close() error {
	if d.src != nil {
		return d.src.Close()
	}
	return nil
}
