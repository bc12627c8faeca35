// Package scheduler is the optional recurring-apply daemon: a push
// agent still needs something to invoke it repeatedly, kept strictly
// outside the per-apply core. It knows one job kind: "apply this node
// set on this cron expression."
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/bundlewrap/blockwart/internal/engine"
	"github.com/bundlewrap/blockwart/internal/node"
)

// ApplyJob is one recurring apply: run Nodes on CronExpr, with the given
// run options.
type ApplyJob struct {
	Name     string
	CronExpr string
	Nodes    []*node.Node
	Opts     node.ApplyOptions
}

// Scheduler drives ApplyJobs on a cron schedule. Nothing about it is
// part of the per-apply core: it only calls node.Apply repeatedly.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID

	onResult func(jobName, nodeName string, result *engine.Result, err error)
}

// New constructs a scheduler. onResult, if non-nil, is called after
// every node's scheduled apply completes (success or failure) — the
// hook a caller uses to log or persist to internal/store.
func New(onResult func(jobName, nodeName string, result *engine.Result, err error)) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		entries:  make(map[string]cron.EntryID),
		onResult: onResult,
	}
}

// AddJob registers job and starts scheduling it. Returns an error if
// job.CronExpr does not parse. The job's nodes are applied in name
// order on every firing.
func (s *Scheduler) AddJob(ctx context.Context, job ApplyJob) error {
	node.SortByName(job.Nodes)
	id, err := s.cron.AddFunc(job.CronExpr, func() { s.runJob(ctx, job) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", job.Name, err)
	}
	s.mu.Lock()
	s.entries[job.Name] = id
	s.mu.Unlock()
	return nil
}

// RemoveJob stops scheduling a previously added job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job ApplyJob) {
	for _, n := range job.Nodes {
		_, result, err := n.Apply(ctx, job.Opts)
		if err != nil {
			slog.Error("scheduled apply failed", "job", job.Name, "node", n.Name, "error", err)
		} else {
			slog.Info("scheduled apply completed", "job", job.Name, "node", n.Name,
				"fixed", result.Fixed, "failed", result.Failed)
		}
		if s.onResult != nil {
			s.onResult(job.Name, n.Name, result, err)
		}
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for in-flight jobs to finish and stops the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
