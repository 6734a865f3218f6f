package engine

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// ProbeResult is what Probe returns for a playable source. TraceID tags
// this one probe attempt, the same way a captured frame gets tagged
// before being handed off, so a caller probing many candidate files can
// correlate a result back to its log lines.
type ProbeResult struct {
	Duration time.Duration
	Width    int
	Height   int
	TraceID  string
}

// maxAspectRatio bounds how far one dimension may exceed the other
// before a source is rejected as "not a playable clip": neither side may
// exceed 10x the other.
const maxAspectRatio = 10

// Probe opens src once in ModeOnlyGifv, reads the first frame, and
// returns its metadata if the dimensions look like a playable clip.
// Stateless: it owns no Worker, no Pool, no registration.
func Probe(src Handle, factory Factory) (ProbeResult, error) {
	decoder := factory(ModeOnlyGifv)
	defer decoder.Close()

	if err := decoder.Open(src, ModeOnlyGifv); err != nil {
		return ProbeResult{}, newError(DecoderOpenFailed, "probe", err)
	}
	if err := decoder.ReadNextFrame(); err != nil {
		return ProbeResult{}, newError(DecodeFailed, "probe", err)
	}

	dst := &image.RGBA{}
	var hasAlpha bool
	if err := decoder.RenderFrame(dst, &hasAlpha, image.Point{}); err != nil {
		return ProbeResult{}, newError(RenderFailed, "probe", err)
	}

	bounds := dst.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if !plausibleDimensions(w, h) {
		return ProbeResult{}, newError(UnplayableDimensions, "probe", nil)
	}

	return ProbeResult{Duration: decoder.Duration(), Width: w, Height: h, TraceID: uuid.New().String()}, nil
}

func plausibleDimensions(w, h int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	if w > h*maxAspectRatio || h > w*maxAspectRatio {
		return false
	}
	return true
}
