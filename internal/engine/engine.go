package engine

import (
	"context"
	"log/slog"
)

// Engine is the composition root: an object the application constructs
// once at startup and passes to clip creation, instead of relying on
// process-wide global state for the pool, factory, and preparer.
type Engine struct {
	cfg      EngineConfig
	factory  Factory
	preparer Preparer
	pool     *Pool
	log      *slog.Logger
}

// New constructs an Engine. decoderFactory builds a fresh Capability per
// clip (ModeSilent for Gif clips, ModeNormal for Video); preparer turns
// decoded frames into device-ready pixmaps.
func New(cfg EngineConfig, decoderFactory Factory, preparer Preparer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		factory:  decoderFactory,
		preparer: preparer,
		pool:     newPool(cfg, log),
		log:      log,
	}
}

// NewClip constructs a Clip, routes it to a Worker via the Pool, and
// returns immediately — decoding starts asynchronously on that Worker.
func (e *Engine) NewClip(src Handle, mode PlaybackMode, cb Callback) *Clip {
	workerIndex := e.pool.assign()

	clip := newClip(mode, cb, workerIndex)
	clip.engine = e

	decoderMode := ModeNormal
	if mode == Gif {
		decoderMode = ModeSilent
	}
	backend := newClipBackend(clip, src, e.factory(decoderMode), e.cfg.MinFrameDelay)

	e.pool.worker(workerIndex).register(clip, backend)
	e.log.Debug("clipengine: clip registered", "worker", workerIndex, "clip_id", clip.ID(), "mode", mode)
	return clip
}

// wake marks a clip dirty on its owning Worker (called by Clip.Start and
// the unpause path in Clip.Current).
func (e *Engine) wake(workerIndex int, clipID uint64) {
	e.pool.worker(workerIndex).markDirty(clipID)
}

// removeClip asks the owning Worker to drop a clip (Clip.Stop).
func (e *Engine) removeClip(c *Clip) {
	e.pool.worker(c.workerIndex).requestRemoval(c.id)
}

// Shutdown quits every Worker's loop, joins its goroutine, and destroys
// remaining backends. ctx is accepted for forward-compatibility with a
// future bounded shutdown; the current implementation always blocks until
// every Worker has drained.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.pool.shutdown()
	return nil
}

// WorkerCount returns the number of Workers started so far.
func (e *Engine) WorkerCount() int { return e.pool.workerCount() }
