// Package items implements the closed set of concrete item types named in
// the data model: file, directory, symlink, user, group, pkg_*, svc_*,
// action and dummy. Every type embeds item.Base and implements
// ComputeAutoDeps and Run itself; the probe-then-repair algorithm common to
// all stateful types lives once in RunStateful.
package items

import (
	"context"
	"fmt"

	"github.com/bundlewrap/blockwart/internal/item"
)

// RunStateful is the probe-then-repair algorithm shared by every stateful
// item type: gate on the trigger flag, probe, and if already correct
// return OK; otherwise gate on an interactive prompt, then fix and return
// FIXED, or FAILED if fix errors, or SKIPPED if the operator declined or
// the item never fired.
func RunStateful(ctx context.Context, triggered, hasBeenTriggered bool, prompter item.Prompter, interactive bool, probe func(context.Context) (item.Status, error), fix func(context.Context, item.Status) error) item.StatusCode {
	if triggered && !hasBeenTriggered {
		return item.Skipped
	}
	status, err := probe(ctx)
	if err != nil {
		return item.Failed
	}
	if status.Correct {
		return item.OK
	}
	if interactive {
		if prompter == nil || !prompter.Confirm("fix now?", true) {
			return item.Skipped
		}
	}
	if err := fix(ctx, status); err != nil {
		return item.Failed
	}
	return item.Fixed
}

func getString(attrs map[string]interface{}, key, def string) string {
	if v, ok := attrs[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func getRequiredString(attrs map[string]interface{}, key, id string) (string, error) {
	v, ok := attrs[key]
	if !ok {
		return "", &item.ValidationError{ItemID: id, Reason: fmt.Sprintf("missing required attribute %q", key)}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &item.ValidationError{ItemID: id, Reason: fmt.Sprintf("attribute %q must be a non-empty string", key)}
	}
	return s, nil
}

func getBool(attrs map[string]interface{}, key string, def bool) bool {
	if v, ok := attrs[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
