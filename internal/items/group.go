package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// Group manages a single POSIX group. Name is the group name.
type Group struct {
	item.Base

	transport transport.Transport
	name      string
	gid       string
}

func NewGroup(cfg item.Config, t transport.Transport) (*Group, error) {
	return &Group{
		Base:      item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet),
		transport: t,
		name:      cfg.Name,
		gid:       getString(cfg.Attributes, "gid", ""),
	}, nil
}

func (g *Group) ComputeAutoDeps(peers []item.Item) ([]string, error) { return nil, nil }

func (g *Group) probe(ctx context.Context) (item.Status, error) {
	res, err := g.transport.Run(ctx, fmt.Sprintf("getent group -- %s", shellQuote(g.name)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}
	info := map[string]interface{}{}
	if res.ReturnCode != 0 {
		info["missing"] = true
		return item.Status{Correct: false, Info: info}, nil
	}
	correct := true
	if g.gid != "" {
		fields := strings.Split(strings.TrimSpace(res.Stdout), ":")
		if len(fields) >= 3 && fields[2] != g.gid {
			info["gid_wrong"] = true
			correct = false
		}
	}
	return item.Status{Correct: correct, Info: info}, nil
}

func (g *Group) fix(ctx context.Context, status item.Status) error {
	if statusBool(status, "missing") {
		args := ""
		if g.gid != "" {
			args = "-g " + shellQuote(g.gid)
		}
		_, err := g.transport.Run(ctx, fmt.Sprintf("groupadd %s -- %s", args, shellQuote(g.name)), transport.RunOptions{Sudo: true})
		return err
	}
	_, err := g.transport.Run(ctx, fmt.Sprintf("groupmod -g %s -- %s", shellQuote(g.gid), shellQuote(g.name)), transport.RunOptions{Sudo: true})
	return err
}

func (g *Group) Run(ctx context.Context, interactive bool) item.StatusCode {
	return RunStateful(ctx, g.Triggered(), g.HasBeenTriggered(), g.Prompter(), interactive, g.probe, g.fix)
}

// Probe runs this item's status probe only, with no mutation — used by
// verify mode.
func (g *Group) Probe(ctx context.Context) (item.Status, error) {
	return g.probe(ctx)
}
