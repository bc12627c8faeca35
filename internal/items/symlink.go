package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// symlinkNeedsStatic declares that every symlink statically needs all
// user items, since a link under a home directory cannot be created
// before its owner exists.
var symlinkNeedsStatic = []string{"user:"}

// Symlink manages a symbolic link's target and ownership. Name is the
// absolute path of the link itself.
type Symlink struct {
	item.Base

	transport transport.Transport
	path      string
	target    string
	owner     string
	group     string
}

func NewSymlink(cfg item.Config, t transport.Transport) (*Symlink, error) {
	if !strings.HasPrefix(cfg.Name, "/") {
		return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "path must be absolute"}
	}
	target, err := getRequiredString(cfg.Attributes, "target", cfg.ID)
	if err != nil {
		return nil, err
	}
	base := item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet)
	return &Symlink{
		Base:      base,
		transport: t,
		path:      cfg.Name,
		target:    target,
		owner:     getString(cfg.Attributes, "owner", ""),
		group:     getString(cfg.Attributes, "group", ""),
	}, nil
}

// StaticNeeds returns the tag prefixes the resolver must unconditionally
// fold into this item's needs during preparation.
func (s *Symlink) StaticNeeds() []string { return symlinkNeedsStatic }

// ComputeAutoDeps: a file claiming this same path is an unsatisfiable
// configuration, and every directory or symlink anywhere on this path's
// way down becomes an implicit dependency — not just the immediate
// parent, since the nearest declared ancestor may be levels up.
func (s *Symlink) ComputeAutoDeps(peers []item.Item) ([]string, error) {
	var deps []string
	for _, p := range peers {
		if p.ID() == s.ID() {
			continue
		}
		if (p.Type() == "file") && p.Name() == s.path {
			return nil, &item.ValidationError{
				ItemID: s.ID(),
				Reason: fmt.Sprintf("conflicts with file %q on the same path", p.ID()),
			}
		}
		if (p.Type() == "directory" || p.Type() == "symlink") && isAncestorPath(p.Name(), s.path) {
			deps = append(deps, p.ID())
		}
	}
	return deps, nil
}

// isAncestorPath reports whether ancestor contains path, at any depth.
func isAncestorPath(ancestor, path string) bool {
	ancestor = strings.TrimRight(ancestor, "/")
	if ancestor == "" {
		return path != "/"
	}
	return strings.HasPrefix(path, ancestor+"/")
}

func (s *Symlink) probe(ctx context.Context) (item.Status, error) {
	res, err := s.transport.Run(ctx, fmt.Sprintf("readlink -- %s", shellQuote(s.path)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}
	info := map[string]interface{}{}
	if res.ReturnCode != 0 {
		info["missing"] = true
		return item.Status{Correct: false, Info: info}, nil
	}
	correct := true
	if strings.TrimSpace(res.Stdout) != s.target {
		info["target_wrong"] = true
		correct = false
	}

	statRes, err := s.transport.Run(ctx, fmt.Sprintf("stat -c '%%U %%G' -- %s", shellQuote(s.path)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}
	if statRes.ReturnCode == 0 {
		fields := strings.Fields(strings.TrimSpace(statRes.Stdout))
		if len(fields) == 2 {
			if s.owner != "" && fields[0] != s.owner {
				info["owner_wrong"] = true
				correct = false
			}
			if s.group != "" && fields[1] != s.group {
				info["group_wrong"] = true
				correct = false
			}
		}
	}
	return item.Status{Correct: correct, Info: info}, nil
}

func (s *Symlink) fix(ctx context.Context, status item.Status) error {
	if statusBool(status, "missing") || statusBool(status, "target_wrong") {
		if _, err := s.transport.Run(ctx, fmt.Sprintf("ln -sfn -- %s %s", shellQuote(s.target), shellQuote(s.path)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	if s.owner != "" || s.group != "" {
		owner := s.owner
		if s.group != "" {
			owner = owner + ":" + s.group
		}
		if _, err := s.transport.Run(ctx, fmt.Sprintf("chown -h %s -- %s", shellQuote(owner), shellQuote(s.path)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Symlink) Run(ctx context.Context, interactive bool) item.StatusCode {
	return RunStateful(ctx, s.Triggered(), s.HasBeenTriggered(), s.Prompter(), interactive, s.probe, s.fix)
}

// Probe runs this item's status probe only, with no mutation — used by
// verify mode.
func (s *Symlink) Probe(ctx context.Context) (item.Status, error) {
	return s.probe(ctx)
}
