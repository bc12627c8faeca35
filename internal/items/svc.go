package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// svcManagers maps a svc_* type suffix to the probe/start/stop/enable
// commands for that service manager. Name is the unit/service name.
var svcManagers = map[string]struct {
	isActive  string
	isEnabled string
	start     string
	stop      string
	enable    string
	disable   string
}{
	"systemd": {
		"systemctl is-active -- %s",
		"systemctl is-enabled -- %s",
		"systemctl start -- %s",
		"systemctl stop -- %s",
		"systemctl enable -- %s",
		"systemctl disable -- %s",
	},
	"sysvinit": {
		"service %s status",
		"chkconfig --list %s | grep -q on",
		"service %s start",
		"service %s stop",
		"chkconfig %s on",
		"chkconfig %s off",
	},
}

// Svc manages whether a service is running and/or enabled at boot,
// selected by the svc_<manager> type (e.g. svc_systemd).
type Svc struct {
	item.Base

	transport transport.Transport
	name      string
	manager   string
	running   bool
	enabled   bool
}

func NewSvc(cfg item.Config, t transport.Transport) (*Svc, error) {
	manager := strings.TrimPrefix(cfg.Type, "svc_")
	if _, ok := svcManagers[manager]; !ok {
		return nil, &item.ValidationError{ItemID: cfg.ID, Reason: fmt.Sprintf("unknown service manager %q", manager)}
	}
	return &Svc{
		Base:      item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet),
		transport: t,
		name:      cfg.Name,
		manager:   manager,
		running:   getBool(cfg.Attributes, "running", true),
		enabled:   getBool(cfg.Attributes, "enabled", true),
	}, nil
}

func (s *Svc) ComputeAutoDeps(peers []item.Item) ([]string, error) { return nil, nil }

func (s *Svc) probe(ctx context.Context) (item.Status, error) {
	cmds := svcManagers[s.manager]

	activeRes, err := s.transport.Run(ctx, fmt.Sprintf(cmds.isActive, shellQuote(s.name)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}
	enabledRes, err := s.transport.Run(ctx, fmt.Sprintf(cmds.isEnabled, shellQuote(s.name)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}

	isRunning := activeRes.ReturnCode == 0
	isEnabled := enabledRes.ReturnCode == 0
	info := map[string]interface{}{}
	correct := true
	if isRunning != s.running {
		info["running_wrong"] = true
		correct = false
	}
	if isEnabled != s.enabled {
		info["enabled_wrong"] = true
		correct = false
	}
	return item.Status{Correct: correct, Info: info}, nil
}

func (s *Svc) fix(ctx context.Context, status item.Status) error {
	cmds := svcManagers[s.manager]
	if statusBool(status, "running_wrong") {
		tmpl := cmds.stop
		if s.running {
			tmpl = cmds.start
		}
		if _, err := s.transport.Run(ctx, fmt.Sprintf(tmpl, shellQuote(s.name)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	if statusBool(status, "enabled_wrong") {
		tmpl := cmds.disable
		if s.enabled {
			tmpl = cmds.enable
		}
		if _, err := s.transport.Run(ctx, fmt.Sprintf(tmpl, shellQuote(s.name)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Svc) Run(ctx context.Context, interactive bool) item.StatusCode {
	return RunStateful(ctx, s.Triggered(), s.HasBeenTriggered(), s.Prompter(), interactive, s.probe, s.fix)
}

// Probe runs this item's status probe only, with no mutation — used by
// verify mode.
func (s *Svc) Probe(ctx context.Context) (item.Status, error) {
	return s.probe(ctx)
}
