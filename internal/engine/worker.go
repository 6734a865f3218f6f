package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// neverSentinel stands in for "do not wake me on a timer". A paused
// entry is rescheduled this far out; any dirty-bit wake still fires
// immediately through wakeCh.
const neverSentinel = 24 * time.Hour

// registration is a Worker's record of one live clip. registrations is
// protected by mu because Engine.NewClip, Clip.Start and Clip.Stop all
// touch it from the consumer's goroutine while the Worker's own goroutine
// reads it every pass.
type registration struct {
	clip    *Clip
	backend *clipBackend
	dirty   atomic.Bool
}

// activeEntry is a Worker's record of one clip currently in its scheduling
// set. active is worker-local and touched only from the Worker's own
// goroutine — no lock needed.
type activeEntry struct {
	clip        *Clip
	backend     *clipBackend
	scheduledAt time.Time
}

// Worker is one cooperative scheduler multiplexing many ClipBackends on a
// single goroutine.
type Worker struct {
	index int
	cfg   EngineConfig
	log   *slog.Logger

	mu            sync.RWMutex
	registrations map[uint64]*registration

	active map[uint64]*activeEntry

	loadLevel atomic.Int64

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	timer  *time.Timer
}

func newWorker(index int, cfg EngineConfig, log *slog.Logger) *Worker {
	w := &Worker{
		index:         index,
		cfg:           cfg,
		log:           log,
		registrations: make(map[uint64]*registration),
		active:        make(map[uint64]*activeEntry),
		wakeCh:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		timer:         time.NewTimer(neverSentinel),
	}
	go w.run()
	return w
}

func (w *Worker) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// register adds a newly assigned clip/backend pair, keyed by the clip's
// monotonic id rather than its pointer — address reuse after a Stop can
// never alias a live registration, since runActive below simply checks
// the id is still present in registrations before touching it.
func (w *Worker) register(clip *Clip, backend *clipBackend) {
	reg := &registration{clip: clip, backend: backend}
	reg.dirty.Store(true)
	w.mu.Lock()
	w.registrations[clip.ID()] = reg
	w.mu.Unlock()
	w.loadLevel.Add(w.cfg.AverageClipBytes)
	w.wake()
}

// markDirty flags a clip for re-scheduling on the next pass (called by
// Clip.Start and the unpause path in Clip.Current).
func (w *Worker) markDirty(id uint64) {
	w.mu.RLock()
	reg, ok := w.registrations[id]
	w.mu.RUnlock()
	if ok {
		reg.dirty.Store(true)
	}
	w.wake()
}

// requestRemoval drops a clip's registration. The backend and its active
// entry are cleaned up from the Worker's own goroutine on the next pass,
// not here — active is worker-local and must only be mutated from run().
func (w *Worker) requestRemoval(id uint64) {
	w.mu.Lock()
	delete(w.registrations, id)
	w.mu.Unlock()
	w.wake()
}

func (w *Worker) shutdown() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			w.drainBackends()
			return
		case <-w.timer.C:
			w.pass()
		case <-w.wakeCh:
			w.pass()
		}
	}
}

func (w *Worker) drainBackends() {
	w.mu.Lock()
	w.registrations = make(map[uint64]*registration)
	w.mu.Unlock()
	for _, entry := range w.active {
		entry.backend.close()
	}
	w.active = make(map[uint64]*activeEntry)
}

// pass is one iteration of the scheduling loop.
func (w *Worker) pass() {
	now := time.Now()
	w.promoteDirty(now)
	w.runActive(now)
	w.rearm()
}

// promoteDirty walks registrations under the read lock, inserts
// newly-dirty clips into active (or refreshes their scheduled time),
// snapshots the clip's current write-slot FrameRequest into the backend,
// and clears the dirty bit.
func (w *Worker) promoteDirty(now time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for id, reg := range w.registrations {
		if !reg.dirty.CompareAndSwap(true, false) {
			continue
		}
		if entry, ok := w.active[id]; ok {
			entry.scheduledAt = now
			if !reg.clip.paused.Load() && entry.backend.paused {
				entry.backend.paused = false
				entry.backend.nextFrameWhen = now
			}
		} else {
			w.active[id] = &activeEntry{clip: reg.clip, backend: reg.backend, scheduledAt: now}
		}
		idx := reg.clip.loadStep().writeIndex()
		reg.backend.currentRequest = reg.clip.frames[idx].request
	}
}

// runActive walks active, runs backend.process for every entry whose
// schedule is due, and feeds the result into handleResult.
func (w *Worker) runActive(now time.Time) {
	for id, entry := range w.active {
		if entry.scheduledAt.After(now) {
			continue
		}

		w.mu.RLock()
		reg, stillRegistered := w.registrations[id]
		w.mu.RUnlock()
		if !stillRegistered {
			// Clip was stopped; drop the backend from our own goroutine.
			// No callback fires here since reg no longer exists.
			w.adjustLoad(-footprint(entry.clip, w.cfg.AverageClipBytes))
			entry.backend.close()
			delete(w.active, id)
			continue
		}

		if entry.backend.opened && !entry.backend.currentRequest.Valid() {
			// Frame 0 is decoded but Clip.Start has not supplied a geometry
			// yet: nothing can be prepared until Start marks the clip dirty.
			entry.scheduledAt = now.Add(neverSentinel)
			continue
		}

		result, err := entry.backend.process(now)
		now = time.Now()
		w.handleResult(reg, entry, result, err, now)
		now = time.Now()

		if entry.backend.paused {
			entry.scheduledAt = now.Add(neverSentinel)
		} else {
			entry.scheduledAt = entry.backend.nextFrameWhen
		}
	}
}

func footprint(c *Clip, average int64) int64 {
	w, h := c.Width(), c.Height()
	if w == 0 || h == 0 {
		return average
	}
	return int64(w) * int64(h)
}

func (w *Worker) adjustLoad(delta int64) {
	w.loadLevel.Add(delta)
}

// handleResult applies a process() result to the clip's state. It is
// deliberately iterative rather than recursive: a Repaint that survives
// the pause decision calls finishProcess exactly once, inline, instead
// of recursing into handleResult again.
func (w *Worker) handleResult(reg *registration, entry *activeEntry, result processResult, err error, now time.Time) {
	clip := reg.clip

	if err != nil || result == resultErrorResult {
		w.failClip(reg, entry, err)
		return
	}

	switch result {
	case resultStarted:
		slot := &clip.frames[0]
		slot.original = entry.backend.staged.original
		slot.hasAlpha = entry.backend.staged.hasAlpha
		slot.prepared = nil
		slot.setWhen(now)
		slot.markDisplayed(displayNotShown)
		clip.storeStep(clip.loadStep().advanceWrite())
		w.emit(clip, EventReinit)
		entry.backend.nextFrameWhen = now
		w.adjustLoad(int64(clip.Width())*int64(clip.Height()) - w.cfg.AverageClipBytes)

	case resultRepaint:
		if w.shouldPause(clip, now) {
			entry.backend.paused = true
			clip.paused.Store(true)
			if s := clip.loadStep(); s.advanceWrite() != s {
				clip.storeStep(s.advanceWrite())
			}
			w.emit(clip, EventReinit)
			entry.backend.nextFrameWhen = now.Add(neverSentinel)
			w.log.Debug("clipengine: worker pausing clip", "worker", w.index, "clip_id", clip.ID())
			return
		}

		result2, err2 := entry.backend.finishProcess(now)
		if err2 != nil || result2 == resultErrorResult {
			w.failClip(reg, entry, err2)
			return
		}

		step := clip.loadStep()
		idx := step.writeIndex()
		slot := &clip.frames[idx]
		slot.original = entry.backend.staged.original
		slot.prepared = entry.backend.staged.prepared
		slot.hasAlpha = entry.backend.staged.hasAlpha
		slot.setWhen(entry.backend.staged.when)
		slot.markDisplayed(displayNotShown)
		if next := step.advanceWrite(); next != step {
			clip.storeStep(next)
		}
		w.emit(clip, EventRepaint)

	case resultWait:
		// Nothing to do; already rescheduled by the caller.
	}
}

// shouldPause decides whether to stall decoding for a consumer that has
// stopped painting. readIdx is the slot the consumer currently sees; if
// it was never painted and either the consumer looks dead, or a second
// unconsumed frame is already queued in the write-next slot, playback
// pauses until the next Current() call.
func (w *Worker) shouldPause(clip *Clip, now time.Time) bool {
	step := clip.loadStep()
	if step < 0 {
		// Prelude states (no first paint has happened yet, possibly no
		// geometry yet either): never pause before the consumer has had a
		// chance to see anything.
		return false
	}
	readIdx := step.readCursor()
	if readIdx < 0 {
		readIdx = 0
	}
	show := &clip.frames[readIdx]
	if show.displayedState() > displayNotShown {
		return false
	}

	if when := show.whenTime(); !when.IsZero() && when.Add(w.cfg.PauseGrace).Before(now) {
		return true
	}

	nextIdx := step.writeNextCursor()
	next := &clip.frames[nextIdx]
	if when := next.whenTime(); !when.IsZero() && next.displayedState() <= displayNotShown {
		return true
	}
	return false
}

// failClip is the terminal error path: the clip flips to StateError, is
// unregistered, its backend dropped, load-level decremented, and exactly
// one Reinit emitted.
func (w *Worker) failClip(reg *registration, entry *activeEntry, err error) {
	clip := reg.clip
	clip.setError()
	w.emit(clip, EventReinit)
	w.requestRemovalLocked(clip.ID())
	w.adjustLoad(-footprint(clip, w.cfg.AverageClipBytes))
	entry.backend.close()
	delete(w.active, clip.ID())
	if err != nil {
		w.log.Warn("clipengine: clip entered error state", "worker", w.index, "clip_id", clip.ID(), "error", err)
	}
}

// requestRemovalLocked removes a registration from inside the Worker's own
// goroutine (already holding no lock at call time, unlike requestRemoval
// which is called cross-goroutine from Clip.Stop).
func (w *Worker) requestRemovalLocked(id uint64) {
	w.mu.Lock()
	delete(w.registrations, id)
	w.mu.Unlock()
}

// emit invokes the clip's callback, guarded against a concurrent Stop:
// after Stop, no further callback is emitted. Every emission gets its
// own trace id, tagging the callback the same way a captured frame gets
// tagged with a fresh uuid.New().String() before being handed off.
func (w *Worker) emit(clip *Clip, ev Event) {
	if clip.isStopped() {
		return
	}
	w.log.Debug("clipengine: emit", "clip_id", clip.id, "event", ev.String(), "trace_id", uuid.New().String())
	clip.callback(ev)
}

// rearm finds the minimum scheduled-time across non-paused entries and
// arms the timer to fire then.
func (w *Worker) rearm() {
	next := time.Now().Add(neverSentinel)
	for _, entry := range w.active {
		if entry.backend.paused {
			continue
		}
		if entry.scheduledAt.Before(next) {
			next = entry.scheduledAt
		}
	}
	d := time.Until(next)
	if d < 0 {
		d = 0
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(d)
}

// Load returns the worker's current advisory byte-footprint heuristic,
// used by the Pool for least-loaded assignment.
func (w *Worker) Load() int64 { return w.loadLevel.Load() }
