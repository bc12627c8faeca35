package node

import (
	"context"
	"testing"
	"time"

	"github.com/bundlewrap/blockwart/internal/item"
)

// scriptedItem is a minimal item.Item for exercising Node.Apply end to end
// without any item construction or a real transport underneath it.
type scriptedItem struct {
	item.Base
	status item.StatusCode
}

func newScriptedItem(id string, deps []string, status item.StatusCode) *scriptedItem {
	return &scriptedItem{Base: item.NewBase(id, "fake", id, deps, nil, nil, false, nil), status: status}
}

func (s *scriptedItem) ComputeAutoDeps(peers []item.Item) ([]string, error) { return nil, nil }
func (s *scriptedItem) Run(ctx context.Context, interactive bool) item.StatusCode {
	return s.status
}

func TestValidateName(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"web01", true},
		{"web-01.internal", true},
		{"web_01", true},
		{"", false},
		{"web 01", false},
		{"web/01", false},
	}
	for _, c := range cases {
		err := ValidateName(c.name)
		if c.valid && err != nil {
			t.Errorf("ValidateName(%q): expected valid, got %v", c.name, err)
		}
		if !c.valid && err == nil {
			t.Errorf("ValidateName(%q): expected an error, got nil", c.name)
		}
	}
}

func TestNew_RejectsInvalidName(t *testing.T) {
	_, err := New("bad name", "", nil, nil, newFakeTransport())
	if err == nil {
		t.Fatal("expected New to reject an invalid node name")
	}
}

func TestNew_DefaultsHostnameToName(t *testing.T) {
	n, err := New("web01", "", nil, nil, newFakeTransport())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.Hostname != "web01" {
		t.Fatalf("expected Hostname to default to Name, got %q", n.Hostname)
	}
}

func TestSortByName(t *testing.T) {
	var nodes []*Node
	for _, name := range []string{"web02", "db01", "web01"} {
		n, err := New(name, "", nil, nil, newFakeTransport())
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		nodes = append(nodes, n)
	}

	SortByName(nodes)
	want := []string{"db01", "web01", "web02"}
	for i, n := range nodes {
		if n.Name != want[i] {
			t.Fatalf("expected nodes sorted by name %v, got %q at %d", want, n.Name, i)
		}
	}
	if Compare(nodes[0], nodes[1]) >= 0 || Compare(nodes[1], nodes[1]) != 0 {
		t.Fatal("Compare must agree with the sorted order")
	}
}

func TestNode_Apply_AcquiresLockRunsItemsAndReleases(t *testing.T) {
	ft := newFakeTransport()
	items := []item.Item{
		newScriptedItem("a", nil, item.OK),
		newScriptedItem("b", []string{"a"}, item.Fixed),
	}
	n, err := New("web01", "", nil, items, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, result, err := n.Apply(ctx, ApplyOptions{Workers: 2, LockPath: "/tmp/blockwart-node-test"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Correct != 1 || result.Fixed != 1 {
		t.Fatalf("unexpected tally: %+v", result)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if ft.dirs["/tmp/blockwart-node-test"] {
		t.Fatal("expected the lock to be released once Apply returns")
	}
}

func TestNode_Apply_LockContentionAbortsRun(t *testing.T) {
	ft := newFakeTransport()
	ft.dirs["/tmp/blockwart-node-test-2"] = true

	n, err := New("web01", "", nil, []item.Item{newScriptedItem("a", nil, item.OK)}, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, result, err := n.Apply(context.Background(), ApplyOptions{Workers: 1, LockPath: "/tmp/blockwart-node-test-2"})
	if err == nil {
		t.Fatal("expected lock contention to abort the run")
	}
	if _, ok := err.(*AlreadyLockedError); !ok {
		t.Fatalf("expected *AlreadyLockedError, got %T: %v", err, err)
	}
	if result.Total() != 0 {
		t.Fatalf("expected an empty result on aborted run, got %+v", result)
	}
}
