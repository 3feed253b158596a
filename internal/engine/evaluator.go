// internal/engine/evaluator.go
package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/killwatch/internal/filter"
	"github.com/solatis/killwatch/internal/types"
)

/*
 * Candidate evaluation.
 *
 * Runs each candidate's compiled predicate against the event. Small sets
 * evaluate sequentially; larger ones fan out over a bounded worker group.
 * Predicates are pure functions over an immutable event, so parallel
 * evaluation needs no coordination beyond collecting results.
 *
 * Failure containment is per candidate: a predicate that exceeds the
 * per-profile timeout or panics converts that single candidate to "no
 * match" without affecting the others. The overall call deadline is checked
 * between candidates; evaluation stops early once it passes and the
 * coordinator degrades the whole call to an empty result.
 *
 * Result sets are unordered; callers must not rely on ordering.
 */

// evaluator runs compiled predicates with bounded concurrency.
type evaluator struct {
	sequentialThreshold int
	workers             int
	profileTimeout      time.Duration
}

// Evaluate returns the ids of the candidates whose predicates match.
func (ev *evaluator) Evaluate(ctx context.Context, candidates []filter.CompiledProfile, e *types.Event) []types.ProfileID {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= ev.sequentialThreshold {
		return ev.evaluateSequential(ctx, candidates, e)
	}
	return ev.evaluateParallel(ctx, candidates, e)
}

// evaluateSequential evaluates candidates one by one on the caller's
// goroutine. The per-profile timeout is not enforced here: predicates are
// pure closures whose cost is bounded at compile time, and small candidate
// sets finish well inside the overall deadline.
func (ev *evaluator) evaluateSequential(ctx context.Context, candidates []filter.CompiledProfile, e *types.Event) []types.ProfileID {
	matched := make([]types.ProfileID, 0, len(candidates))
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		if candidates[i].Predicate(e) {
			matched = append(matched, candidates[i].ProfileID)
		}
	}
	return matched
}

// evaluateParallel fans candidates out over a bounded worker group, each
// with a per-profile timeout.
func (ev *evaluator) evaluateParallel(ctx context.Context, candidates []filter.CompiledProfile, e *types.Event) []types.ProfileID {
	var (
		mu      sync.Mutex
		matched []types.ProfileID
	)

	g := new(errgroup.Group)
	g.SetLimit(ev.workers)

	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		cand := candidates[i]
		g.Go(func() error {
			if ev.evaluateOne(cand, e) {
				mu.Lock()
				matched = append(matched, cand.ProfileID)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait() // workers never return errors
	return matched
}

// evaluateOne runs a single predicate under the per-profile timeout.
// A timed-out predicate's goroutine is abandoned; predicates are pure, so
// the leak is bounded by the predicate finishing on its own.
func (ev *evaluator) evaluateOne(cand filter.CompiledProfile, e *types.Event) bool {
	if ev.profileTimeout <= 0 {
		return cand.Predicate(e)
	}

	done := make(chan bool, 1)
	go func() {
		done <- cand.Predicate(e)
	}()

	timer := time.NewTimer(ev.profileTimeout)
	defer timer.Stop()

	select {
	case ok := <-done:
		return ok
	case <-timer.C:
		return false
	}
}
