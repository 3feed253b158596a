// internal/engine/recorder.go
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solatis/killwatch/internal/types"
)

/*
 * Asynchronous match recording.
 *
 * Matches are appended to a bounded channel and drained by one consumer
 * goroutine into an in-memory batch; nothing is written synchronously on
 * the match hot path. A periodic timer flushes the batch: records are
 * bulk-persisted through the external sink, per-profile cumulative
 * counters are incremented, and the decayed frequency metadata used by
 * candidate-selection capping is updated (new = old*decay + recent).
 *
 * Persistence is at-most-once: a failed flush is logged and the batch
 * dropped, never retried. The bounded channel provides back-pressure; a
 * full channel drops the append and counts it rather than blocking Match.
 *
 * The single consumer goroutine is the only writer of the batch, so drain
 * and flush need no further serialization against each other.
 */

// MatchSink is the external persistence collaborator for match records.
type MatchSink interface {
	// WriteMatches bulk-persists one flushed batch.
	WriteMatches(ctx context.Context, matches []types.Match) error

	// UpdateProfileStats applies cumulative counter increments and the new
	// decayed frequency scores after a successful flush.
	UpdateProfileStats(ctx context.Context, counts map[types.ProfileID]int64, frequencies map[types.ProfileID]float64) error
}

// recorder buffers matches and flushes them on a timer.
type recorder struct {
	sink   MatchSink
	logger *slog.Logger

	pending       chan types.Match
	flushInterval time.Duration
	decay         float64

	// batch is owned by the consumer goroutine; batchMu only guards the
	// PendingSize read against the consumer's appends.
	batchMu sync.Mutex
	batch   []types.Match

	// freq holds the decayed recent-match counters, read by candidate
	// selection through Score.
	freqMu sync.RWMutex
	freq   map[types.ProfileID]float64

	dropped       atomic.Int64
	flushed       atomic.Int64
	flushFailures atomic.Int64

	// done closes when Run returns, after the final shutdown flush.
	done chan struct{}
}

// newRecorder creates a recorder draining into the given sink.
func newRecorder(sink MatchSink, logger *slog.Logger, buffer int, flushInterval time.Duration, decay float64) *recorder {
	return &recorder{
		sink:          sink,
		logger:        logger,
		pending:       make(chan types.Match, buffer),
		flushInterval: flushInterval,
		decay:         decay,
		freq:          make(map[types.ProfileID]float64),
		done:          make(chan struct{}),
	}
}

// Append queues one match for recording. Non-blocking: when the buffer is
// full the match is dropped and counted.
func (r *recorder) Append(m types.Match) {
	select {
	case r.pending <- m:
	default:
		r.dropped.Add(1)
	}
}

// Score returns a profile's decayed recent-match counter.
func (r *recorder) Score(id types.ProfileID) float64 {
	r.freqMu.RLock()
	defer r.freqMu.RUnlock()
	return r.freq[id]
}

// PendingSize reports queued plus batched, not yet flushed, matches.
func (r *recorder) PendingSize() int {
	r.batchMu.Lock()
	batched := len(r.batch)
	r.batchMu.Unlock()
	return batched + len(r.pending)
}

// Dropped reports matches discarded because the buffer was full.
func (r *recorder) Dropped() int64 { return r.dropped.Load() }

// Flushed reports matches successfully handed to the sink.
func (r *recorder) Flushed() int64 { return r.flushed.Load() }

// FlushFailures reports dropped batches due to sink errors.
func (r *recorder) FlushFailures() int64 { return r.flushFailures.Load() }

// Done closes after Run has completed its final shutdown flush. Callers
// waiting on a clean shutdown select on it alongside their own deadline.
func (r *recorder) Done() <-chan struct{} { return r.done }

// Run drains the pending channel and flushes on a timer until ctx is
// cancelled. A final flush runs on shutdown. Call in a goroutine.
func (r *recorder) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case m := <-r.pending:
			r.batchMu.Lock()
			r.batch = append(r.batch, m)
			r.batchMu.Unlock()

		case <-ticker.C:
			r.flush(ctx)

		case <-ctx.Done():
			r.drainPending()
			// Shutdown flush uses a fresh context; ctx is already done.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.flush(flushCtx)
			cancel()
			return
		}
	}
}

// drainPending moves whatever is still queued into the batch.
func (r *recorder) drainPending() {
	for {
		select {
		case m := <-r.pending:
			r.batchMu.Lock()
			r.batch = append(r.batch, m)
			r.batchMu.Unlock()
		default:
			return
		}
	}
}

// flush persists the current batch and updates frequency metadata.
// The frequency decay applies every cycle, matches or not, so scores of
// quiet profiles fade instead of pinning the fallback priority forever.
func (r *recorder) flush(ctx context.Context) {
	r.drainPending()

	r.batchMu.Lock()
	batch := r.batch
	r.batch = nil
	r.batchMu.Unlock()

	counts := make(map[types.ProfileID]int64, len(batch))
	for i := range batch {
		counts[batch[i].ProfileID]++
	}
	frequencies := r.applyDecay(counts)

	if len(batch) == 0 {
		return
	}

	if err := r.sink.WriteMatches(ctx, batch); err != nil {
		// At-most-once: the batch is dropped, not requeued.
		r.flushFailures.Add(1)
		r.logger.Error("match flush failed, dropping batch",
			"matches", len(batch), "error", err)
		return
	}
	r.flushed.Add(int64(len(batch)))

	if err := r.sink.UpdateProfileStats(ctx, counts, frequencies); err != nil {
		r.logger.Warn("profile stats update failed", "error", err)
	}
}

// applyDecay folds recent counts into the decayed counters and returns the
// new scores of the profiles touched this cycle.
func (r *recorder) applyDecay(recent map[types.ProfileID]int64) map[types.ProfileID]float64 {
	const floor = 0.01

	r.freqMu.Lock()
	defer r.freqMu.Unlock()

	for id, score := range r.freq {
		score *= r.decay
		if score < floor && recent[id] == 0 {
			delete(r.freq, id)
			continue
		}
		r.freq[id] = score
	}

	updated := make(map[types.ProfileID]float64, len(recent))
	for id, n := range recent {
		r.freq[id] += float64(n)
		updated[id] = r.freq[id]
	}
	return updated
}
