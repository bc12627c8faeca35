package items

import (
	"context"

	"github.com/bundlewrap/blockwart/internal/item"
)

// Dummy is a structural join node synthesized by the dependency resolver
// to turn a set-shaped dependency ("depend on all files") into a single
// fan-in id. It has no desired state of its own: it always reports OK and
// is dispatched like any other item so its dependents unblock, but the
// engine suppresses it from emitted results.
type Dummy struct {
	item.Base
}

func NewDummy(id string) *Dummy {
	return &Dummy{Base: item.NewBase(id, "dummy", id, nil, nil, nil, false, nil)}
}

func (d *Dummy) ComputeAutoDeps(peers []item.Item) ([]string, error) { return nil, nil }

func (d *Dummy) Run(ctx context.Context, interactive bool) item.StatusCode {
	return item.OK
}
