package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// Directory manages the existence, mode and ownership of a remote
// directory. Name is the absolute path.
type Directory struct {
	item.Base

	transport transport.Transport
	path      string
	mode      string
	owner     string
	group     string
}

func NewDirectory(cfg item.Config, t transport.Transport) (*Directory, error) {
	if !strings.HasPrefix(cfg.Name, "/") {
		return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "path must be absolute"}
	}
	return &Directory{
		Base:      item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet),
		transport: t,
		path:      cfg.Name,
		mode:      getString(cfg.Attributes, "mode", "0755"),
		owner:     getString(cfg.Attributes, "owner", ""),
		group:     getString(cfg.Attributes, "group", ""),
	}, nil
}

// ComputeAutoDeps reports a conflict with any symlink claiming this same
// path; a directory otherwise has no implicit peer dependency.
func (d *Directory) ComputeAutoDeps(peers []item.Item) ([]string, error) {
	for _, p := range peers {
		if p.Type() == "symlink" && p.Name() == d.path {
			return nil, &item.ValidationError{
				ItemID: d.ID(),
				Reason: fmt.Sprintf("conflicts with symlink %q on the same path", p.ID()),
			}
		}
	}
	return nil, nil
}

func (d *Directory) probe(ctx context.Context) (item.Status, error) {
	res, err := d.transport.Run(ctx, fmt.Sprintf("stat -c '%%F %%a %%U %%G' -- %s", shellQuote(d.path)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}
	info := map[string]interface{}{}
	if res.ReturnCode != 0 {
		info["missing"] = true
		return item.Status{Correct: false, Info: info}, nil
	}

	fields := strings.Fields(strings.TrimSpace(res.Stdout))
	correct := true
	if len(fields) < 4 || !strings.Contains(fields[0], "directory") {
		info["not_a_directory"] = true
		return item.Status{Correct: false, Info: info}, nil
	}
	if fields[1] != strings.TrimPrefix(d.mode, "0") && fields[1] != d.mode {
		info["mode_wrong"] = true
		correct = false
	}
	if d.owner != "" && fields[2] != d.owner {
		info["owner_wrong"] = true
		correct = false
	}
	if d.group != "" && fields[3] != d.group {
		info["group_wrong"] = true
		correct = false
	}
	return item.Status{Correct: correct, Info: info}, nil
}

func (d *Directory) fix(ctx context.Context, status item.Status) error {
	if statusBool(status, "missing") || statusBool(status, "not_a_directory") {
		if _, err := d.transport.Run(ctx, fmt.Sprintf("mkdir -p -- %s", shellQuote(d.path)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	if d.mode != "" {
		if _, err := d.transport.Run(ctx, fmt.Sprintf("chmod %s -- %s", d.mode, shellQuote(d.path)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	if d.owner != "" || d.group != "" {
		owner := d.owner
		if d.group != "" {
			owner = owner + ":" + d.group
		}
		if _, err := d.transport.Run(ctx, fmt.Sprintf("chown %s -- %s", shellQuote(owner), shellQuote(d.path)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Directory) Run(ctx context.Context, interactive bool) item.StatusCode {
	return RunStateful(ctx, d.Triggered(), d.HasBeenTriggered(), d.Prompter(), interactive, d.probe, d.fix)
}

// Probe runs this item's status probe only, with no mutation — used by
// verify mode.
func (d *Directory) Probe(ctx context.Context) (item.Status, error) {
	return d.probe(ctx)
}
