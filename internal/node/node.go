package node

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bundlewrap/blockwart/internal/deps"
	"github.com/bundlewrap/blockwart/internal/engine"
	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// Node owns the items yielded by its bundles, plus hostname and
// metadata. Created once per run; destroyed at end of run.
type Node struct {
	Name      string
	Hostname  string
	Metadata  map[string]interface{}
	Items     []item.Item
	Transport transport.Transport
}

// New validates name against the identifier grammar and constructs a
// Node bound to t.
func New(name, hostname string, metadata map[string]interface{}, items []item.Item, t transport.Transport) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if hostname == "" {
		hostname = name
	}
	return &Node{Name: name, Hostname: hostname, Metadata: metadata, Items: items, Transport: t}, nil
}

// Compare is the total ordering on nodes, by name. Callers grouping or
// listing nodes use this instead of whatever ordering a map or slice
// happens to carry.
func Compare(a, b *Node) int {
	return strings.Compare(a.Name, b.Name)
}

// SortByName sorts nodes in place into Compare order.
func SortByName(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return Compare(nodes[i], nodes[j]) < 0 })
}

// Hooks are called by Apply for observability. ApplyOptions.Hooks may be
// nil, in which case neither method is called.
type Hooks interface {
	NodeApplyStart(n *Node)
	NodeApplyEnd(n *Node, duration time.Duration, result *engine.Result)
}

// ApplyOptions configures one apply run.
type ApplyOptions struct {
	Workers     int
	Interactive bool
	Force       bool
	LockPath    string
	Prompter    item.Prompter
	Hooks       Hooks
}

// Apply prepares the node's items and drives them to completion under a
// node lock, calling hooks around the run. Lock contention surfaces as
// *AlreadyLockedError and the run aborts cleanly with an empty result.
func (n *Node) Apply(ctx context.Context, opts ApplyOptions) ([]engine.StatusEvent, *engine.Result, error) {
	if opts.Hooks != nil {
		opts.Hooks.NodeApplyStart(n)
	}
	start := time.Now()

	lock := NewLock(n.Transport, opts.LockPath, opts.Interactive, opts.Force, opts.Prompter)
	if err := lock.Acquire(ctx); err != nil {
		if opts.Hooks != nil {
			opts.Hooks.NodeApplyEnd(n, time.Since(start), &engine.Result{})
		}
		return nil, &engine.Result{}, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			slog.Warn("failed to release node lock", "node", n.Name, "error", err)
		}
	}()

	prepared, err := deps.Prepare(n.Items)
	if err != nil {
		result := &engine.Result{}
		if opts.Hooks != nil {
			opts.Hooks.NodeApplyEnd(n, time.Since(start), result)
		}
		return nil, result, err
	}

	events, result, err := engine.Apply(ctx, prepared, opts.Workers, opts.Interactive, opts.Prompter)
	if opts.Hooks != nil {
		opts.Hooks.NodeApplyEnd(n, time.Since(start), result)
	}
	return events, result, err
}

// Verify runs a dry-run probe pass with no node lock and no mutation.
func (n *Node) Verify(ctx context.Context, workers int) ([]engine.VerifyResult, error) {
	prepared, err := deps.Prepare(n.Items)
	if err != nil {
		return nil, err
	}
	return engine.Verify(ctx, prepared, workers)
}

// Test prepares the node's items and lists them through engine.Test;
// attribute validation has already happened when the items were built.
func (n *Node) Test(ctx context.Context, workers int) ([]engine.TestResult, error) {
	prepared, err := deps.Prepare(n.Items)
	if err != nil {
		return nil, err
	}
	return engine.Test(ctx, prepared, workers)
}
