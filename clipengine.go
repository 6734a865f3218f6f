// Package clipengine plays looping animated clips (GIF-like images and
// silent short videos) behind a lock-light, allocation-light API: one
// decoder worker per assigned clip hands prepared pixmaps to a UI thread
// through a triple-buffered slot with no mutex on the hot path.
//
// The engine owns no transport, no storage and no UI toolkit binding.
// Callers supply a decode.Factory (how to open and step a source), a
// render.Preparer (how to turn a decoded frame into a paintable pixmap)
// and a source.Handle per clip (where the bytes come from); this package
// wires those together with the scheduler in internal/engine.
package clipengine

import (
	"context"
	"log/slog"

	"clipengine/internal/engine"
)

// Mode selects how a decode.Capability should be opened for a clip.
type Mode = engine.Mode

const (
	ModeNormal   = engine.ModeNormal
	ModeSilent   = engine.ModeSilent
	ModeOnlyGifv = engine.ModeOnlyGifv
)

// PlaybackMode distinguishes GIF-like silent clips from short silent videos.
type PlaybackMode = engine.PlaybackMode

const (
	Gif   = engine.Gif
	Video = engine.Video
)

// Event is the notification vocabulary a Callback receives.
type Event = engine.Event

const (
	EventReinit  = engine.EventReinit
	EventRepaint = engine.EventRepaint
)

// Callback is invoked by the owning Worker goroutine whenever a Clip's
// size, readiness or current frame changes.
type Callback = engine.Callback

// State is the consumer-visible lifecycle of a Clip: Reading or StateError.
type State = engine.State

const (
	Reading    = engine.Reading
	StateError = engine.StateError
)

// Capability is the decoder plug-in contract: open a source, step forward
// one frame at a time, render the current frame, and report timing.
type Capability = engine.Capability

// Factory builds a fresh Capability for one clip. Called once per
// NewClip; the returned Capability is driven by exactly one Worker for
// the life of that clip.
type Factory = engine.Factory

// Preparer turns a decoded frame into a device-ready pixmap sized to a
// FrameRequest, optionally letterboxed, centered and corner-masked.
type Preparer = engine.Preparer

// Handle is a source-handle contract: either an in-memory byte buffer or
// a refcounted file handle that a Capability can open, read and close
// repeatedly (once per loop restart).
type Handle = engine.Handle

// ReadSeekCloser is what Handle.Open returns.
type ReadSeekCloser = engine.ReadSeekCloser

// FrameRequest is the geometry a consumer wants painted: the logical
// frame size, the outer box it sits in, the device-pixel-ratio factor
// already applied, and whether corners should be rounded.
type FrameRequest = engine.FrameRequest

// EngineConfig holds the tunables the distilled engine left as implicit
// constants: worker count, the load-balancing byte estimate for an
// unsized clip, the stall-to-pause grace period, the small-file slurp
// threshold, and the minimum inter-frame delay floor.
type EngineConfig = engine.EngineConfig

// DefaultEngineConfig returns the values implicit in the original
// engine's constants.
func DefaultEngineConfig() EngineConfig { return engine.DefaultEngineConfig() }

// ErrorKind classifies a terminal Error.
type ErrorKind = engine.ErrorKind

const (
	SourceUnavailable    = engine.SourceUnavailable
	DecoderOpenFailed    = engine.DecoderOpenFailed
	DecodeFailed         = engine.DecodeFailed
	RenderFailed         = engine.RenderFailed
	UnplayableDimensions = engine.UnplayableDimensions
)

// ClipError is returned by Probe and surfaced through logs when a clip's
// backend enters the Error state.
type ClipError = engine.Error

// Clip is the consumer-visible handle returned by Engine.NewClip.
type Clip = engine.Clip

// ProbeResult is what Probe reports for a playable source.
type ProbeResult = engine.ProbeResult

// Probe opens src once, decodes its first frame, and reports its
// duration and dimensions without registering a Clip or starting a
// Worker. Used to reject unplayable sources before committing scheduler
// resources to them.
func Probe(src Handle, factory Factory) (ProbeResult, error) {
	return engine.Probe(src, factory)
}

// Engine is the composition root: one decoderFactory, one Preparer and a
// Pool of Workers shared by every Clip it creates.
type Engine struct {
	inner *engine.Engine
}

// New constructs an Engine. log may be nil, in which case slog.Default()
// is used.
func New(cfg EngineConfig, decoderFactory Factory, preparer Preparer, log *slog.Logger) *Engine {
	return &Engine{inner: engine.New(cfg, decoderFactory, preparer, log)}
}

// NewClip assigns src to a Worker (starting a new one lazily if fewer
// than cfg.WorkerCount are running, otherwise the least-loaded one) and
// returns immediately; decoding starts asynchronously.
func (e *Engine) NewClip(src Handle, mode PlaybackMode, cb Callback) *Clip {
	return e.inner.NewClip(src, mode, cb)
}

// Shutdown stops every Worker and releases every remaining backend. ctx
// is accepted for forward-compatibility with a bounded shutdown; the
// current implementation always blocks until every Worker has drained.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.inner.Shutdown(ctx)
}

// WorkerCount returns the number of Workers started so far.
func (e *Engine) WorkerCount() int { return e.inner.WorkerCount() }
