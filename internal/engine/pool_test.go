package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

// TestPoolAssignStartsFreshWorkersUpToCapacity checks that the first
// WorkerCount clips each get a distinct, freshly started Worker.
func TestPoolAssignStartsFreshWorkersUpToCapacity(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.WorkerCount = 3
	p := newPool(cfg, slog.Default())
	defer p.shutdown()

	seen := make(map[int]bool)
	for i := 0; i < cfg.WorkerCount; i++ {
		idx := p.assign()
		if seen[idx] {
			t.Fatalf("assign() returned worker %d twice before capacity was reached", idx)
		}
		seen[idx] = true
	}
	if got := p.workerCount(); got != cfg.WorkerCount {
		t.Fatalf("workerCount() = %d, want %d", got, cfg.WorkerCount)
	}
}

// TestPoolAssignDoesNotGrowPastCapacity checks that once WorkerCount
// Workers exist, further assignment reuses them instead of starting
// more; the pool never rebalances afterward.
func TestPoolAssignDoesNotGrowPastCapacity(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.WorkerCount = 2
	p := newPool(cfg, slog.Default())
	defer p.shutdown()

	for i := 0; i < 10; i++ {
		p.assign()
	}
	if got := p.workerCount(); got != cfg.WorkerCount {
		t.Fatalf("workerCount() = %d after 10 assigns, want capped at %d", got, cfg.WorkerCount)
	}
}

// TestPoolAssignPrefersLeastLoaded checks that once at capacity,
// assignment picks the Worker with the smallest Load().
func TestPoolAssignPrefersLeastLoaded(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.WorkerCount = 2
	p := newPool(cfg, slog.Default())
	defer p.shutdown()

	p.assign()
	p.assign()

	// Load worker 0 up heavily so every subsequent assignment should
	// prefer worker 1.
	p.worker(0).loadLevel.Store(1 << 30)
	p.worker(1).loadLevel.Store(0)

	for i := 0; i < 5; i++ {
		if got := p.assign(); got != 1 {
			t.Fatalf("assign() = %d, want 1 (least loaded)", got)
		}
	}
}

// registrationCount returns how many clips are currently registered on
// w, reading the same map the Worker's own goroutine consults.
func registrationCount(w *Worker) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.registrations)
}

// TestPoolAssignBalancesLoadAcrossManyRealClips drives Pool.assign the
// way Engine.NewClip actually does, registering WorkerCount*3 real
// clips, and checks that no worker ends up with more than one clip
// more than the least-loaded worker.
func TestPoolAssignBalancesLoadAcrossManyRealClips(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.WorkerCount = 3
	// 1024x1024 matches DefaultEngineConfig's AverageClipBytes exactly, so
	// a clip's load contribution never changes once the first frame
	// decodes — the per-worker load stays exactly proportional to its
	// registration count regardless of how the background Workers
	// interleave with this loop.
	decoder := newFakeDecoder(1024, 1024, time.Hour)
	eng := testEngine(cfg, decoder, &fakePreparer{})
	defer eng.Shutdown(context.Background())

	total := cfg.WorkerCount * 3
	for i := 0; i < total; i++ {
		eng.NewClip(&fakeHandle{}, Gif, func(ev Event) {})
	}

	min, max := -1, -1
	for i := 0; i < cfg.WorkerCount; i++ {
		n := registrationCount(eng.pool.worker(i))
		if min == -1 || n < min {
			min = n
		}
		if max == -1 || n > max {
			max = n
		}
	}
	if max-min > 1 {
		t.Fatalf("clip counts per worker span %d..%d, want at most 1 apart across %d workers", min, max, cfg.WorkerCount)
	}
}
