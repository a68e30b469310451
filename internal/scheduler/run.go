package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// batchRun tracks one pass of the pipeline. Counters are shared by the
// worker pool, so they are guarded.
type batchRun struct {
	id        string
	startedAt time.Time

	mu        sync.Mutex
	processed int
	failed    int
}

func newBatchRun(now time.Time) *batchRun {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	return &batchRun{
		id:        ulid.MustNew(ulid.Timestamp(now), entropy).String(),
		startedAt: now,
	}
}

func (r *batchRun) AddProcessed(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed += n
}

func (r *batchRun) IncFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *batchRun) Counts() (processed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.failed
}
