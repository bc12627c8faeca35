package engine

import "github.com/bundlewrap/blockwart/internal/item"

// cascadeSkip removes every item in blocked that transitively depends
// (directly or indirectly) on failedID, returning the removed items and
// the remaining blocked set. Used when an item with cascade_skip=true
// terminates in FAILED, SKIPPED, ACTION_FAILED, or ACTION_SKIPPED.
func cascadeSkip(failedID string, blocked []item.Item) (removed, remaining []item.Item) {
	dead := map[string]bool{failedID: true}
	rest := blocked

	for {
		var nextRest []item.Item
		grew := false
		for _, it := range rest {
			dependsOnDead := false
			for _, d := range it.Deps() {
				if dead[d] {
					dependsOnDead = true
					break
				}
			}
			if dependsOnDead {
				dead[it.ID()] = true
				removed = append(removed, it)
				grew = true
			} else {
				nextRest = append(nextRest, it)
			}
		}
		rest = nextRest
		if !grew {
			break
		}
	}
	return removed, rest
}
