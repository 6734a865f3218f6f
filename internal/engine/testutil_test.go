package engine

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

var errTestOpenFailed = errors.New("fake: open failed")

// fakeHandle is an in-memory Handle that never actually needs reading:
// fakeDecoder ignores the bytes and synthesizes frames instead, so the
// reader Open returns (whose Read always fails) is never touched.
type fakeHandle struct {
	closed atomic.Bool
}

func (h *fakeHandle) Open() (ReadSeekCloser, error) { return &fakeReadSeekCloser{}, nil }
func (h *fakeHandle) Close() error                  { h.closed.Store(true); return nil }
func (h *fakeHandle) Size() int64                   { return 1 }

type fakeReadSeekCloser struct{}

func (f *fakeReadSeekCloser) Read(p []byte) (int, error)                   { return 0, errors.New("fake: no bytes") }
func (f *fakeReadSeekCloser) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (f *fakeReadSeekCloser) Close() error                                 { return nil }

// fakeDecoder is a deterministic Capability: every frame is an W×H solid
// image.RGBA, decoded at a fixed delay, with hook points for tests that
// need an open or decode failure on a specific call.
type fakeDecoder struct {
	mu sync.Mutex

	w, h  int
	delay time.Duration

	openErr      error
	failAfterN   int // ReadNextFrame fails once calls exceed this; 0 disables
	readCount    int
	renderCount  int
	closed       bool
}

func newFakeDecoder(w, h int, delay time.Duration) *fakeDecoder {
	return &fakeDecoder{w: w, h: h, delay: delay}
}

func (d *fakeDecoder) Open(src Handle, mode Mode) error {
	if d.openErr != nil {
		return d.openErr
	}
	return nil
}

func (d *fakeDecoder) ReadNextFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readCount++
	if d.failAfterN > 0 && d.readCount > d.failAfterN {
		return errors.New("fake: decode failed")
	}
	return nil
}

func (d *fakeDecoder) RenderFrame(dst *image.RGBA, hasAlpha *bool, target image.Point) error {
	d.mu.Lock()
	d.renderCount++
	d.mu.Unlock()

	w, h := d.w, d.h
	if target.X > 0 && target.Y > 0 {
		w, h = target.X, target.Y
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	*dst = *out
	*hasAlpha = false
	return nil
}

func (d *fakeDecoder) NextFrameDelay() time.Duration { return d.delay }
func (d *fakeDecoder) Duration() time.Duration       { return 10 * d.delay }

func (d *fakeDecoder) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// fakePreparer is a minimal Preparer: it allocates a blank pixmap sized
// to the outer box and ignores the original frame and every compositing
// detail the real render package handles, which is enough for exercising
// the hand-off protocol.
type fakePreparer struct {
	calls atomic.Int64
}

func (p *fakePreparer) Prepare(req FrameRequest, original image.Image, hasAlpha bool, scratch *image.RGBA) (*image.RGBA, error) {
	p.calls.Add(1)
	return image.NewRGBA(image.Rect(0, 0, req.OuterW, req.OuterH)), nil
}

// testEngine builds an Engine wired to a single fakeDecoder/fakePreparer
// pair, matching the way cmd/clipplay wires a real Engine.
func testEngine(cfg EngineConfig, decoder *fakeDecoder, preparer *fakePreparer) *Engine {
	factory := func(mode Mode) Capability { return decoder }
	return New(cfg, factory, preparer, nil)
}

// waitFor polls cond every 2ms until it returns true or timeout elapses,
// returning whether it succeeded. Used instead of a fixed sleep since the
// Worker's pass loop runs on its own goroutine at its own pace.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
