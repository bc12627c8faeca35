package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bundlewrap/blockwart/internal/engine"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistory_RecordAndRecent(t *testing.T) {
	h := openTestHistory(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := Run{
			Node:   "web01",
			Start:  base.Add(time.Duration(i) * time.Hour),
			End:    base.Add(time.Duration(i)*time.Hour + time.Minute),
			Result: engine.Result{Correct: i},
		}
		if err := h.Record(run); err != nil {
			t.Fatalf("Record run %d: %v", i, err)
		}
	}

	recent, err := h.Recent("web01", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 runs (limit), got %d", len(recent))
	}
	if recent[0].Result.Correct != 2 {
		t.Fatalf("expected the newest run first, got Correct=%d", recent[0].Result.Correct)
	}
}

func TestHistory_RecentScopedByNode(t *testing.T) {
	h := openTestHistory(t)

	if err := h.Record(Run{Node: "web01", Start: time.Now(), Result: engine.Result{Fixed: 1}}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := h.Record(Run{Node: "web02", Start: time.Now(), Result: engine.Result{Fixed: 2}}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recent, err := h.Recent("web01", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Node != "web01" {
		t.Fatalf("expected only web01's run, got %+v", recent)
	}
}

func TestHistory_RecentEmptyForUnknownNode(t *testing.T) {
	h := openTestHistory(t)
	recent, err := h.Recent("nonexistent", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no runs for an unknown node, got %d", len(recent))
	}
}
