package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// pkgManagers maps a pkg_* type suffix to the probe/install/remove
// commands for that package manager. Name is the package name.
var pkgManagers = map[string]struct {
	query   string
	install string
	remove  string
}{
	"apt":    {"dpkg -s -- %s", "apt-get install -y -- %s", "apt-get remove -y -- %s"},
	"yum":    {"rpm -q -- %s", "yum install -y -- %s", "yum remove -y -- %s"},
	"pacman": {"pacman -Q -- %s", "pacman -S --noconfirm -- %s", "pacman -R --noconfirm -- %s"},
}

// Pkg manages whether a single package is installed via one of a handful
// of package managers, selected by the pkg_<manager> type (e.g. pkg_apt).
type Pkg struct {
	item.Base

	transport transport.Transport
	name      string
	manager   string
	installed bool
}

func NewPkg(cfg item.Config, t transport.Transport) (*Pkg, error) {
	manager := strings.TrimPrefix(cfg.Type, "pkg_")
	if _, ok := pkgManagers[manager]; !ok {
		return nil, &item.ValidationError{ItemID: cfg.ID, Reason: fmt.Sprintf("unknown package manager %q", manager)}
	}
	return &Pkg{
		Base:      item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet),
		transport: t,
		name:      cfg.Name,
		manager:   manager,
		installed: getBool(cfg.Attributes, "installed", true),
	}, nil
}

func (p *Pkg) ComputeAutoDeps(peers []item.Item) ([]string, error) { return nil, nil }

func (p *Pkg) probe(ctx context.Context) (item.Status, error) {
	cmds := pkgManagers[p.manager]
	res, err := p.transport.Run(ctx, fmt.Sprintf(cmds.query, shellQuote(p.name)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}
	isInstalled := res.ReturnCode == 0
	return item.Status{
		Correct: isInstalled == p.installed,
		Info:    map[string]interface{}{"installed": isInstalled},
	}, nil
}

func (p *Pkg) fix(ctx context.Context, status item.Status) error {
	cmds := pkgManagers[p.manager]
	tmpl := cmds.remove
	if p.installed {
		tmpl = cmds.install
	}
	_, err := p.transport.Run(ctx, fmt.Sprintf(tmpl, shellQuote(p.name)), transport.RunOptions{Sudo: true})
	return err
}

func (p *Pkg) Run(ctx context.Context, interactive bool) item.StatusCode {
	return RunStateful(ctx, p.Triggered(), p.HasBeenTriggered(), p.Prompter(), interactive, p.probe, p.fix)
}

// Probe runs this item's status probe only, with no mutation — used by
// verify mode.
func (p *Pkg) Probe(ctx context.Context) (item.Status, error) {
	return p.probe(ctx)
}
