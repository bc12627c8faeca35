package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bundlewrap/blockwart/internal/item"
)

// Result is the per-node tally: counts of
// correct/fixed/skipped/failed items, bracketed by the run's start and
// end time. RunID is a synthesized identifier distinct from the
// (node, start-timestamp) pair, so a caller can key an audit entry or a
// history record on something other than wall-clock time.
type Result struct {
	RunID string

	Correct int
	Fixed   int
	Skipped int
	Failed  int

	Start time.Time
	End   time.Time
}

// NewResult starts a tally with a fresh RunID and Start timestamp.
func NewResult() *Result {
	return &Result{RunID: uuid.NewString(), Start: time.Now()}
}

// Add folds one item's terminal status code into the tally. An unknown
// code is a programmer error (a new StatusCode added without updating
// this switch) and panics rather than silently under-counting.
func (r *Result) Add(status item.StatusCode) {
	switch status {
	case item.OK, item.ActionOK:
		r.Correct++
	case item.Fixed:
		r.Fixed++
	case item.Skipped, item.ActionSkipped:
		r.Skipped++
	case item.Failed, item.ActionFailed:
		r.Failed++
	default:
		panic(fmt.Sprintf("engine: unknown status code %q", status))
	}
}

// Total is the number of results folded into this tally.
func (r *Result) Total() int {
	return r.Correct + r.Fixed + r.Skipped + r.Failed
}
