package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// User manages a single POSIX user account. Name is the login name.
type User struct {
	item.Base

	transport transport.Transport
	name      string
	uid       string
	shell     string
	home      string
}

func NewUser(cfg item.Config, t transport.Transport) (*User, error) {
	return &User{
		Base:      item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet),
		transport: t,
		name:      cfg.Name,
		uid:       getString(cfg.Attributes, "uid", ""),
		shell:     getString(cfg.Attributes, "shell", "/bin/bash"),
		home:      getString(cfg.Attributes, "home", "/home/"+cfg.Name),
	}, nil
}

func (u *User) ComputeAutoDeps(peers []item.Item) ([]string, error) { return nil, nil }

func (u *User) probe(ctx context.Context) (item.Status, error) {
	res, err := u.transport.Run(ctx, fmt.Sprintf("getent passwd -- %s", shellQuote(u.name)), transport.RunOptions{MayFail: true})
	if err != nil {
		return item.Status{}, err
	}
	info := map[string]interface{}{}
	if res.ReturnCode != 0 {
		info["missing"] = true
		return item.Status{Correct: false, Info: info}, nil
	}
	fields := strings.Split(strings.TrimSpace(res.Stdout), ":")
	correct := true
	if len(fields) >= 7 {
		if u.uid != "" && fields[2] != u.uid {
			info["uid_wrong"] = true
			correct = false
		}
		if fields[5] != u.home {
			info["home_wrong"] = true
			correct = false
		}
		if fields[6] != u.shell {
			info["shell_wrong"] = true
			correct = false
		}
	}
	return item.Status{Correct: correct, Info: info}, nil
}

func (u *User) fix(ctx context.Context, status item.Status) error {
	if statusBool(status, "missing") {
		args := fmt.Sprintf("-m -d %s -s %s", shellQuote(u.home), shellQuote(u.shell))
		if u.uid != "" {
			args = fmt.Sprintf("-u %s %s", shellQuote(u.uid), args)
		}
		_, err := u.transport.Run(ctx, fmt.Sprintf("useradd %s -- %s", args, shellQuote(u.name)), transport.RunOptions{Sudo: true})
		return err
	}
	args := fmt.Sprintf("-d %s -s %s", shellQuote(u.home), shellQuote(u.shell))
	if u.uid != "" {
		args = fmt.Sprintf("-u %s %s", shellQuote(u.uid), args)
	}
	_, err := u.transport.Run(ctx, fmt.Sprintf("usermod %s -- %s", args, shellQuote(u.name)), transport.RunOptions{Sudo: true})
	return err
}

func (u *User) Run(ctx context.Context, interactive bool) item.StatusCode {
	return RunStateful(ctx, u.Triggered(), u.HasBeenTriggered(), u.Prompter(), interactive, u.probe, u.fix)
}

// Probe runs this item's status probe only, with no mutation — used by
// verify mode.
func (u *User) Probe(ctx context.Context) (item.Status, error) {
	return u.probe(ctx)
}
