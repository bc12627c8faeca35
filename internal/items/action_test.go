package items

import (
	"context"
	"testing"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// scriptedTransport returns a fixed transport.Result (or error) for every
// Run call, recording how many times it was invoked.
type scriptedTransport struct {
	result transport.Result
	err    error
	calls  int
}

func (s *scriptedTransport) Run(ctx context.Context, command string, opts transport.RunOptions) (transport.Result, error) {
	s.calls++
	return s.result, s.err
}
func (s *scriptedTransport) Upload(ctx context.Context, localPath, remotePath string, opts transport.UploadOptions) error {
	return nil
}
func (s *scriptedTransport) Download(ctx context.Context, remotePath, localPath string, ignoreFailure bool) error {
	return nil
}
func (s *scriptedTransport) DisconnectAll() error { return nil }

func TestAction_SucceedsOnExpectedReturnCode(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 0}}
	a, err := NewAction(item.Config{ID: "action:restart", Type: "action", Attributes: map[string]interface{}{
		"command": "service restart app",
	}}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	status := a.Run(context.Background(), false)
	if status != item.ActionOK {
		t.Fatalf("expected ACTION_OK, got %v", status)
	}
}

// S7: a command that exits with a code other than the expected one fails
// the action even though the transport call itself returned no Go error.
func TestAction_UnexpectedReturnCodeFails(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 3}}
	a, err := NewAction(item.Config{ID: "action:restart", Type: "action", Attributes: map[string]interface{}{
		"command": "service restart app",
	}}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	status := a.Run(context.Background(), false)
	if status != item.ActionFailed {
		t.Fatalf("expected ACTION_FAILED for an unexpected return code, got %v", status)
	}
}

func TestAction_ExplicitExpectedReturnCode(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 42}}
	a, err := NewAction(item.Config{ID: "action:restart", Type: "action", Attributes: map[string]interface{}{
		"command":              "service restart app",
		"expected_return_code": 42,
	}}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	status := a.Run(context.Background(), false)
	if status != item.ActionOK {
		t.Fatalf("expected ACTION_OK when the return code matches expected_return_code, got %v", status)
	}
}

func TestAction_UnlessGuardSkipsCommand(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 0}}
	a, err := NewAction(item.Config{ID: "action:restart", Type: "action", Attributes: map[string]interface{}{
		"command": "service restart app",
		"unless":  "pgrep app",
	}}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	status := a.Run(context.Background(), false)
	if status != item.ActionSkipped {
		t.Fatalf("expected ACTION_SKIPPED when the unless guard succeeds, got %v", status)
	}
	if tr.calls != 1 {
		t.Fatalf("expected only the unless guard to run, not the command itself, got %d calls", tr.calls)
	}
}

func TestAction_TriggeredGateSkipsUntilFired(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 0}}
	a, err := NewAction(item.Config{
		ID:        "action:reload",
		Type:      "action",
		Triggered: true,
		Attributes: map[string]interface{}{
			"command": "service reload app",
		},
	}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	if status := a.Run(context.Background(), false); status != item.ActionSkipped {
		t.Fatalf("expected a triggered-but-not-yet-fired action to be ACTION_SKIPPED, got %v", status)
	}
	if tr.calls != 0 {
		t.Fatalf("expected the command never to run before the trigger fires, got %d calls", tr.calls)
	}

	a.SetHasBeenTriggered(true)
	if status := a.Run(context.Background(), false); status != item.ActionOK {
		t.Fatalf("expected the action to run once fired, got %v", status)
	}
}

type scriptedPrompter struct{ answer bool }

func (p scriptedPrompter) Confirm(question string, defaultYes bool) bool { return p.answer }

// An action whose own interactive attribute is true can never run in a
// non-interactive pass: it is skipped outright, before the unless guard
// or the command itself touch the transport.
func TestAction_InteractiveAttributeSkipsInNonInteractiveRun(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 0}}
	a, err := NewAction(item.Config{ID: "action:restart", Type: "action", Attributes: map[string]interface{}{
		"command":     "service restart app",
		"unless":      "pgrep app",
		"interactive": true,
	}}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	if status := a.Run(context.Background(), false); status != item.ActionSkipped {
		t.Fatalf("expected ACTION_SKIPPED for a confirmation-only action in a non-interactive run, got %v", status)
	}
	if tr.calls != 0 {
		t.Fatalf("expected no transport calls at all, got %d", tr.calls)
	}
}

func TestAction_InteractiveAttributeGatesPromptInInteractiveRun(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 0}}
	a, err := NewAction(item.Config{ID: "action:restart", Type: "action", Attributes: map[string]interface{}{
		"command":     "service restart app",
		"interactive": true,
	}}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	a.SetPrompter(scriptedPrompter{answer: false})
	if status := a.Run(context.Background(), true); status != item.ActionSkipped {
		t.Fatalf("expected a declined prompt to skip the action, got %v", status)
	}
	if tr.calls != 0 {
		t.Fatalf("expected the command not to run after a declined prompt, got %d calls", tr.calls)
	}

	a.SetPrompter(scriptedPrompter{answer: true})
	if status := a.Run(context.Background(), true); status != item.ActionOK {
		t.Fatalf("expected the action to run once confirmed, got %v", status)
	}
}

// interactive: false suppresses the prompt entirely, even in an
// interactive run.
func TestAction_InteractiveFalseNeverPrompts(t *testing.T) {
	tr := &scriptedTransport{result: transport.Result{ReturnCode: 0}}
	a, err := NewAction(item.Config{ID: "action:restart", Type: "action", Attributes: map[string]interface{}{
		"command":     "service restart app",
		"interactive": false,
	}}, tr)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	a.SetPrompter(scriptedPrompter{answer: false})
	if status := a.Run(context.Background(), true); status != item.ActionOK {
		t.Fatalf("expected interactive=false to bypass the prompt and run, got %v", status)
	}
}

func TestAction_MissingCommandFailsConstruction(t *testing.T) {
	_, err := NewAction(item.Config{ID: "action:bad", Type: "action"}, &scriptedTransport{})
	if err == nil {
		t.Fatal("expected a missing \"command\" attribute to fail construction")
	}
	if _, ok := err.(*item.ValidationError); !ok {
		t.Fatalf("expected *item.ValidationError, got %T: %v", err, err)
	}
}
