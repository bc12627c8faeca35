package items

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// File manages the content, mode and ownership of a single remote file.
// Name is the absolute path.
type File struct {
	item.Base

	transport  transport.Transport
	path       string
	content    string
	hasContent bool
	mode       string
	owner      string
	group      string
}

// NewFile validates attrs and constructs a File item bound to t.
func NewFile(cfg item.Config, t transport.Transport) (*File, error) {
	if !strings.HasPrefix(cfg.Name, "/") {
		return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "path must be absolute"}
	}
	f := &File{
		Base:      item.NewBase(cfg.ID, cfg.Type, cfg.Name, cfg.ExplicitDeps, cfg.Needs, cfg.Triggers, cfg.Triggered, cfg.CascadeSkipSet),
		transport: t,
		path:      cfg.Name,
		mode:      getString(cfg.Attributes, "mode", "0644"),
		owner:     getString(cfg.Attributes, "owner", ""),
		group:     getString(cfg.Attributes, "group", ""),
	}
	if v, ok := cfg.Attributes["content"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "attribute \"content\" must be a string"}
		}
		f.content = s
		f.hasContent = true
	}
	return f, nil
}

// ComputeAutoDeps reports an error if a symlink item claims the same path;
// otherwise a file has no implicit peer dependencies of its own (the
// implicit constraint runs the other way, from Symlink to File/Directory).
func (f *File) ComputeAutoDeps(peers []item.Item) ([]string, error) {
	for _, p := range peers {
		if p.Type() == "symlink" && p.Name() == f.path {
			return nil, &item.ValidationError{
				ItemID: f.ID(),
				Reason: fmt.Sprintf("conflicts with symlink %q on the same path", p.ID()),
			}
		}
	}
	return nil, nil
}

func (f *File) probe(ctx context.Context) (item.Status, error) {
	res, err := f.transport.Run(ctx, fmt.Sprintf("stat -c '%%a %%U %%G' -- %s", shellQuote(f.path)), transport.RunOptions{MayFail: true})
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
	if len(fields) == 3 {
		if fields[0] != strings.TrimPrefix(f.mode, "0") && fields[0] != f.mode {
			info["mode_wrong"] = true
			correct = false
		}
		if f.owner != "" && fields[1] != f.owner {
			info["owner_wrong"] = true
			correct = false
		}
		if f.group != "" && fields[2] != f.group {
			info["group_wrong"] = true
			correct = false
		}
	}

	if f.hasContent {
		hashRes, err := f.transport.Run(ctx, fmt.Sprintf("sha256sum -- %s", shellQuote(f.path)), transport.RunOptions{MayFail: true})
		if err != nil {
			return item.Status{}, err
		}
		want := sha256Hex(f.content)
		got := ""
		if hashRes.ReturnCode == 0 {
			got = strings.Fields(hashRes.Stdout)[0]
		}
		if got != want {
			info["content_wrong"] = true
			correct = false
		}
	}

	return item.Status{Correct: correct, Info: info}, nil
}

func (f *File) fix(ctx context.Context, status item.Status) error {
	missing, _ := status.Info["missing"].(bool)
	contentWrong, _ := status.Info["content_wrong"].(bool)

	if f.hasContent && (missing || contentWrong) {
		tmp, err := os.CreateTemp("", "blockwart-file-*")
		if err != nil {
			return fmt.Errorf("stage local content: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.WriteString(f.content); err != nil {
			tmp.Close()
			return fmt.Errorf("stage local content: %w", err)
		}
		tmp.Close()
		return f.transport.Upload(ctx, tmp.Name(), f.path, transport.UploadOptions{Mode: f.mode, Owner: f.owner, Group: f.group})
	}

	if mw, _ := status.Info["mode_wrong"].(bool); mw && f.mode != "" {
		if _, err := f.transport.Run(ctx, fmt.Sprintf("chmod %s -- %s", f.mode, shellQuote(f.path)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	if ow, _ := status.Info["owner_wrong"].(bool); ow || statusBool(status, "group_wrong") {
		owner := f.owner
		if f.group != "" {
			owner = owner + ":" + f.group
		}
		if _, err := f.transport.Run(ctx, fmt.Sprintf("chown %s -- %s", shellQuote(owner), shellQuote(f.path)), transport.RunOptions{Sudo: true}); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) Run(ctx context.Context, interactive bool) item.StatusCode {
	return RunStateful(ctx, f.Triggered(), f.HasBeenTriggered(), f.Prompter(), interactive, f.probe, f.fix)
}

func statusBool(s item.Status, key string) bool {
	b, _ := s.Info[key].(bool)
	return b
}

// Probe runs this item's status probe only, with no mutation — used by
// verify mode.
func (f *File) Probe(ctx context.Context) (item.Status, error) {
	return f.probe(ctx)
}
