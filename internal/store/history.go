// Package store is the optional, off-by-default apply-run history
// backed by BoltDB. It is additive: its absence leaves the system with
// no persistent state beyond the lock file.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bundlewrap/blockwart/internal/engine"
)

var bucketRuns = []byte("runs")

// Run is one recorded apply run for one node.
type Run struct {
	Node   string               `json:"node"`
	Start  time.Time            `json:"start"`
	End    time.Time            `json:"end"`
	Result engine.Result        `json:"result"`
	Events []engine.StatusEvent `json:"events"`
}

// History is a BoltDB-backed log of past apply runs, keyed by node name
// and start time. Constructed only when the caller opts in via the
// history.enabled config key (internal/config); nil History pointers
// are never dereferenced by the CLI layer.
type History struct {
	db *bbolt.DB
}

// Open creates or opens the history database at path.
func Open(path string) (*History, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}
	return &History{db: db}, nil
}

// Record appends one completed run.
func (h *History) Record(run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	key := fmt.Sprintf("%s/%020d", run.Node, run.Start.UnixNano())
	return h.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(key), data)
	})
}

// Recent returns up to limit most recent runs for node, newest first.
func (h *History) Recent(node string, limit int) ([]Run, error) {
	var out []Run
	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		prefix := []byte(node + "/")
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if len(out) >= limit {
				break
			}
			if !hasPrefix(k, prefix) {
				continue
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %q: %w", k, err)
			}
			out = append(out, run)
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Close releases the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}
