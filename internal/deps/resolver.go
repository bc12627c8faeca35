package deps

import (
	"strings"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/items"
)

// Prepare normalizes a flat item list into the form the apply engine can
// schedule: auto-deps merged in, needs resolved to ids, static needs
// expanded, group references turned into synthesized dummy join nodes,
// and every dependency id validated as resolvable with no self-loops.
// Prepare is the only place these steps run; callers never see an
// unprepared item list reach the engine.
func Prepare(input []item.Item) ([]item.Item, error) {
	byID := make(map[string]item.Item, len(input))
	for _, it := range input {
		if _, dup := byID[it.ID()]; dup {
			return nil, &ConfigurationError{ItemID: it.ID(), Reason: "duplicate item id"}
		}
		byID[it.ID()] = it
	}

	// Step 1: auto-dep injection.
	for _, it := range input {
		peers := make([]item.Item, 0, len(input)-1)
		for _, p := range input {
			if p.ID() != it.ID() {
				peers = append(peers, p)
			}
		}
		autoDeps, err := it.ComputeAutoDeps(peers)
		if err != nil {
			return nil, err
		}
		it.SetAutoDeps(autoDeps)
	}

	dummies := map[string]*items.Dummy{}
	var dummyOrder []string // creation order, so prepared output stays stable across runs
	resolveGroupRef := func(prefix string) string {
		if d, ok := dummies[prefix]; ok {
			return d.ID()
		}
		d := items.NewDummy(prefix)
		typeName := strings.TrimSuffix(prefix, ":")
		for _, p := range input {
			if p.Type() == typeName {
				d.AddDep(p.ID())
			}
		}
		dummies[prefix] = d
		dummyOrder = append(dummyOrder, prefix)
		byID[prefix] = d
		return d.ID()
	}

	// Step 2: needs resolution (group references and literal ids alike).
	for _, it := range input {
		for _, need := range it.Needs() {
			if strings.HasSuffix(need, ":") {
				it.AddDep(resolveGroupRef(need))
				continue
			}
			if _, ok := byID[need]; !ok {
				return nil, &ConfigurationError{ItemID: it.ID(), Reason: "needs unresolvable id \"" + need + "\""}
			}
			it.AddDep(need)
		}
	}

	// Step 3: static-needs expansion, per item type.
	for _, it := range input {
		sn, ok := it.(items.StaticNeedser)
		if !ok {
			continue
		}
		for _, prefix := range sn.StaticNeeds() {
			it.AddDep(resolveGroupRef(prefix))
		}
	}

	// Step 4: any remaining group reference left in a dep list (from
	// explicit_deps or auto_deps authored directly as "type:") resolves
	// to the same synthesized dummy.
	prepared := make([]item.Item, 0, len(input)+len(dummies))
	prepared = append(prepared, input...)
	for _, it := range input {
		for _, dep := range it.Deps() {
			if strings.HasSuffix(dep, ":") {
				it.RemoveDep(dep)
				it.AddDep(resolveGroupRef(dep))
			}
		}
	}
	for _, prefix := range dummyOrder {
		prepared = append(prepared, dummies[prefix])
	}

	// Step 5: trigger back-links. A → {B1, ...} marks each Bi as
	// triggered=true. This is a data-channel flag, not a dependency edge —
	// it never adds to anyone's Deps().
	preparedByID := make(map[string]item.Item, len(prepared))
	for _, it := range prepared {
		preparedByID[it.ID()] = it
	}
	for _, it := range prepared {
		for _, trig := range it.Triggers() {
			if target, ok := preparedByID[trig]; ok {
				target.SetTriggered(true)
			}
		}
	}

	// Step 6 (triggers and ids are validated together): every remaining
	// dependency id must resolve, and no item may depend on itself.
	for _, it := range prepared {
		for _, dep := range it.Deps() {
			if dep == it.ID() {
				return nil, &ItemDependencyError{Ids: []string{it.ID()}, Reason: "item depends on itself"}
			}
			if _, ok := byID[dep]; !ok {
				return nil, &ConfigurationError{ItemID: it.ID(), Reason: "depends on unresolvable id \"" + dep + "\""}
			}
		}
		for _, trig := range it.Triggers() {
			if _, ok := byID[trig]; !ok {
				return nil, &ConfigurationError{ItemID: it.ID(), Reason: "triggers unresolvable id \"" + trig + "\""}
			}
		}
	}

	return prepared, nil
}

// SplitReady partitions items into those with no remaining dependencies
// and those still blocked on at least one.
func SplitReady(in []item.Item) (ready, blocked []item.Item) {
	for _, it := range in {
		if len(it.Deps()) == 0 {
			ready = append(ready, it)
		} else {
			blocked = append(blocked, it)
		}
	}
	return ready, blocked
}

// RemoveDep strips id from every item's dependency set.
func RemoveDep(in []item.Item, id string) {
	for _, it := range in {
		it.RemoveDep(id)
	}
}
