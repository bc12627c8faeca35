// Package deps implements the dependency resolver: it normalizes
// auto-deps, needs, static-needs and triggers across a flat item list into
// a prepared DAG the apply engine can schedule.
package deps

import (
	"fmt"
	"strings"
)

// ConfigurationError is raised at preparation time for malformed
// attributes, unresolvable needs, or conflicting peer configuration (a
// file and a symlink claiming the same path, for instance).
type ConfigurationError struct {
	ItemID string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("item %q: %s", e.ItemID, e.Reason)
}

// ItemDependencyError is raised when the prepared graph contains a
// self-loop, references an id that resolves to nothing, or (detected at
// the end of a drained-but-nonempty apply run) a cycle. Ids lists every
// item implicated, for the graphviz-style diagnostic dump.
type ItemDependencyError struct {
	Ids    []string
	Reason string
}

func (e *ItemDependencyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Ids, ", "))
}
