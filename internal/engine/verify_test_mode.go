package engine

import (
	"context"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/items"
	"github.com/bundlewrap/blockwart/internal/worker"
)

// VerifyResult is one item's read-only status check.
type VerifyResult struct {
	ItemID  string
	Correct bool
}

// Verify probes every non-action item's current state with no repair.
// There is no dependency gating
// here — items are independent reads of remote state, dispatched as
// fast as workers are free.
func Verify(ctx context.Context, prepared []item.Item, workers int) ([]VerifyResult, error) {
	queue := make([]item.Item, 0, len(prepared))
	for _, it := range prepared {
		if it.Type() == "action" || it.Type() == "dummy" {
			continue
		}
		queue = append(queue, it)
	}
	if workers < 1 {
		workers = 1
	}

	pool := worker.NewPool(ctx, workers)
	defer pool.Wait()

	var out []VerifyResult
	for pool.KeepRunning() {
		ev, ok := pool.GetEvent(ctx)
		if !ok {
			break
		}
		switch ev.Kind {
		case worker.RequestWork:
			if len(queue) == 0 {
				pool.Quit(ev.WorkerID)
				continue
			}
			it := queue[0]
			queue = queue[1:]
			pool.StartTask(ev.WorkerID, it.ID(), func(taskCtx context.Context) (interface{}, error) {
				prober, ok := it.(items.Prober)
				if !ok {
					return item.Status{Correct: true}, nil
				}
				return prober.Probe(taskCtx)
			})
		case worker.FinishedWork:
			status := ev.Result.(item.Status)
			out = append(out, VerifyResult{ItemID: ev.TaskID, Correct: status.Correct})
		}
	}
	return out, ctx.Err()
}

// TestResult is one item's construction/attribute-validation outcome.
type TestResult struct {
	ItemID string
	Err    error
}

// Test lists every non-dummy item, with no probing and no repair. It runs
// no validation of its own: items are already constructed (and their
// attributes validated) by the time they reach this package, so
// construction failures surface from the item constructors, not here.
// Test dispatches a no-op pass through the pool, one task per non-dummy
// item, so the output lists exactly what an apply would schedule.
func Test(ctx context.Context, prepared []item.Item, workers int) ([]TestResult, error) {
	queue := make([]item.Item, 0, len(prepared))
	for _, it := range prepared {
		if it.Type() == "dummy" {
			continue
		}
		queue = append(queue, it)
	}
	if workers < 1 {
		workers = 1
	}

	pool := worker.NewPool(ctx, workers)
	defer pool.Wait()

	var out []TestResult
	for pool.KeepRunning() {
		ev, ok := pool.GetEvent(ctx)
		if !ok {
			break
		}
		switch ev.Kind {
		case worker.RequestWork:
			if len(queue) == 0 {
				pool.Quit(ev.WorkerID)
				continue
			}
			it := queue[0]
			queue = queue[1:]
			pool.StartTask(ev.WorkerID, it.ID(), func(taskCtx context.Context) (interface{}, error) {
				return nil, nil
			})
		case worker.FinishedWork:
			out = append(out, TestResult{ItemID: ev.TaskID, Err: ev.Err})
		}
	}
	return out, ctx.Err()
}
