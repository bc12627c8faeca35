package items

import (
	"context"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// Action is a one-shot imperative command. Unlike stateful items it has
// no probe step: running
// it is itself the operation, gated by the trigger flag, an optional
// "unless" guard, and an optional interactive confirmation.
type Action struct {
	item.Base

	transport          transport.Transport
	command            string
	unless             string
	interactive        *bool // true demands confirmation (skipped outside interactive runs); false never prompts; nil follows the run
	expectedReturnCode int
	expectedStdout     *string
	expectedStderr     *string
}

func NewAction(cfg item.Config, t transport.Transport) (*Action, error) {
	command, err := getRequiredString(cfg.Attributes, "command", cfg.ID)
	if err != nil {
		return nil, err
	}
	a := &Action{
		Base:               item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet),
		transport:          t,
		command:            command,
		unless:             getString(cfg.Attributes, "unless", ""),
		expectedReturnCode: 0,
	}
	if v, ok := cfg.Attributes["expected_return_code"]; ok {
		code, ok := v.(int)
		if !ok {
			return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "attribute \"expected_return_code\" must be an int"}
		}
		a.expectedReturnCode = code
	}
	if v, ok := cfg.Attributes["expected_stdout"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "attribute \"expected_stdout\" must be a string"}
		}
		a.expectedStdout = &s
	}
	if v, ok := cfg.Attributes["expected_stderr"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "attribute \"expected_stderr\" must be a string"}
		}
		a.expectedStderr = &s
	}
	if v, ok := cfg.Attributes["interactive"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "attribute \"interactive\" must be a bool"}
		}
		a.interactive = &b
	}
	return a, nil
}

func (a *Action) ComputeAutoDeps(peers []item.Item) ([]string, error) { return nil, nil }

// Run executes the action: the trigger gate, the unless guard, an
// optional prompt, then the command itself compared against expectations.
// It is called in place of the probe-then-repair Run every other item
// type gets.
func (a *Action) Run(ctx context.Context, interactive bool) item.StatusCode {
	if a.Triggered() && !a.HasBeenTriggered() {
		return item.ActionSkipped
	}

	// An action that insists on confirmation can never run in a
	// non-interactive pass: there is no one to confirm it.
	if !interactive && a.interactive != nil && *a.interactive {
		return item.ActionSkipped
	}

	if a.unless != "" {
		res, err := a.transport.Run(ctx, a.unless, transport.RunOptions{MayFail: true})
		if err == nil && res.ReturnCode == 0 {
			return item.ActionSkipped
		}
	}

	if interactive && (a.interactive == nil || *a.interactive) {
		prompter := a.Prompter()
		if prompter == nil || !prompter.Confirm("run "+a.command+"?", true) {
			return item.ActionSkipped
		}
	}

	res, err := a.transport.Run(ctx, a.command, transport.RunOptions{MayFail: true})
	if err != nil {
		return item.ActionFailed
	}
	if res.ReturnCode != a.expectedReturnCode {
		return item.ActionFailed
	}
	if a.expectedStdout != nil && res.Stdout != *a.expectedStdout {
		return item.ActionFailed
	}
	if a.expectedStderr != nil && res.Stderr != *a.expectedStderr {
		return item.ActionFailed
	}
	return item.ActionOK
}
