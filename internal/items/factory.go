package items

import (
	"context"
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// New constructs the concrete item named by cfg.Type, validating its
// attributes. It is the only place that knows the closed set of item
// types: file, directory, symlink, user, group, pkg_*, svc_*, action,
// dummy.
func New(cfg item.Config, t transport.Transport) (item.Item, error) {
	switch {
	case cfg.Type == "file":
		return NewFile(cfg, t)
	case cfg.Type == "directory":
		return NewDirectory(cfg, t)
	case cfg.Type == "symlink":
		return NewSymlink(cfg, t)
	case cfg.Type == "user":
		return NewUser(cfg, t)
	case cfg.Type == "group":
		return NewGroup(cfg, t)
	case cfg.Type == "action":
		return NewAction(cfg, t)
	case cfg.Type == "dummy":
		return NewDummy(cfg.ID), nil
	case strings.HasPrefix(cfg.Type, "pkg_"):
		return NewPkg(cfg, t)
	case strings.HasPrefix(cfg.Type, "svc_"):
		return NewSvc(cfg, t)
	default:
		return nil, &item.ValidationError{ItemID: cfg.ID, Reason: "unknown item type \"" + cfg.Type + "\""}
	}
}

// Prober is implemented by every stateful item type (everything but
// action and dummy): a read-only status probe with no repair, used by
// verify mode.
type Prober interface {
	Probe(ctx context.Context) (item.Status, error)
}

// StaticNeedser is implemented by item types with structural
// prerequisites of their own: tag prefixes unconditionally folded into
// their needs during preparation, regardless of what the bundle author
// wrote.
type StaticNeedser interface {
	StaticNeeds() []string
}
