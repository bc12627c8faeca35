// Package engine drives a prepared item list through the worker pool:
// partition into ready/blocked, dispatch on RequestWork, cascade-skip or
// propagate triggers and re-partition on FinishedWork, until the pool
// stops.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bundlewrap/blockwart/internal/deps"
	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/worker"
)

// StatusEvent is one (item id, terminal status) pair, in completion
// order — the unit the engine yields to its caller.
type StatusEvent struct {
	ItemID string
	Status item.StatusCode
}

// Apply runs prepared (already deps.Prepare'd) items to completion
// against workers concurrent workers. interactive forces workers to 1 and
// wires prompter into every item so each item's Run can gate on
// confirmation. It returns the stream of yielded results in completion
// order and the aggregated tally, or an ItemDependencyError if the graph
// is left with a nonempty blocked set (a cycle neither preparation nor
// runtime caught until now).
func Apply(ctx context.Context, prepared []item.Item, workers int, interactive bool, prompter item.Prompter) ([]StatusEvent, *Result, error) {
	if interactive {
		workers = 1
	}
	if workers < 1 {
		workers = 1
	}
	for _, it := range prepared {
		if sp, ok := it.(interface{ SetPrompter(item.Prompter) }); ok {
			sp.SetPrompter(prompter)
		}
	}

	ctx, span := otel.Tracer("blockwart-engine").Start(ctx, "engine.apply")
	defer span.End()
	meter := otel.Meter("blockwart-engine")
	itemDuration, _ := meter.Float64Histogram("blockwart_item_duration_ms")
	itemFailures, _ := meter.Int64Counter("blockwart_item_failures_total")
	parallelism, _ := meter.Int64UpDownCounter("blockwart_worker_parallelism")

	byID := make(map[string]item.Item, len(prepared))
	for _, it := range prepared {
		byID[it.ID()] = it
	}

	ready, blocked := deps.SplitReady(prepared)

	result := NewResult()
	var events []StatusEvent

	pool := worker.NewPool(ctx, workers)
	defer pool.Wait()

	for pool.KeepRunning() {
		ev, ok := pool.GetEvent(ctx)
		if !ok {
			break
		}

		switch ev.Kind {
		case worker.RequestWork:
			if len(ready) > 0 {
				it := ready[0]
				ready = ready[1:]
				pool.StartTask(ev.WorkerID, it.ID(), func(taskCtx context.Context) (interface{}, error) {
					parallelism.Add(taskCtx, 1)
					defer parallelism.Add(taskCtx, -1)
					start := time.Now()
					status := it.Run(taskCtx, interactive)
					itemDuration.Record(taskCtx, float64(time.Since(start))/float64(time.Millisecond))
					return status, nil
				})
			} else if pool.JobsOpen() > 0 {
				pool.MarkIdle(ev.WorkerID)
			} else {
				pool.Quit(ev.WorkerID)
			}

		case worker.FinishedWork:
			it := byID[ev.TaskID]
			status := ev.Result.(item.StatusCode)

			if status == item.Failed || status == item.ActionFailed {
				itemFailures.Add(ctx, 1)
			}

			if status.IsFailureOrSkip() && it.CascadeSkip() {
				var removed []item.Item
				removed, blocked = cascadeSkip(it.ID(), blocked)
				for _, skippedItem := range removed {
					if skippedItem.Type() == "dummy" {
						continue
					}
					result.Add(item.Skipped)
					events = append(events, StatusEvent{ItemID: skippedItem.ID(), Status: item.Skipped})
				}
			} else {
				deps.RemoveDep(blocked, it.ID())
			}

			if status == item.Fixed || status == item.ActionOK ||
				((status == item.Skipped || status == item.ActionSkipped) && !it.CascadeSkip()) {
				for _, triggeredID := range it.Triggers() {
					if target, ok := byID[triggeredID]; ok {
						target.SetHasBeenTriggered(true)
					}
				}
			}

			var newlyReady []item.Item
			newlyReady, blocked = deps.SplitReady(blocked)
			ready = append(ready, newlyReady...)

			if it.Type() != "dummy" {
				result.Add(status)
				events = append(events, StatusEvent{ItemID: it.ID(), Status: status})
			}

			pool.ActivateIdleWorkers()
		}
	}

	result.End = time.Now()

	if len(blocked) > 0 {
		ids := make([]string, 0, len(blocked))
		for _, it := range blocked {
			ids = append(ids, it.ID())
		}
		slog.Error("apply drained with a nonempty frontier", "graph", frontierDot(blocked))
		return events, result, &ItemDependencyError{Ids: ids, Reason: "dependency cycle detected"}
	}

	return events, result, nil
}

// frontierDot renders the stuck frontier as a DOT digraph, one edge per
// unresolved dependency, so a cycle can be inspected with graphviz.
func frontierDot(blocked []item.Item) string {
	var b strings.Builder
	b.WriteString("digraph frontier {")
	for _, it := range blocked {
		for _, dep := range it.Deps() {
			fmt.Fprintf(&b, " %q -> %q;", it.ID(), dep)
		}
	}
	b.WriteString(" }")
	return b.String()
}
