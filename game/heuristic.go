package game

import (
	"fmt"
	"math"
)

// Heuristic estimates the remaining cost from a state to the nearest goal state.
// +Inf means the goal can no longer be reached from state.
type Heuristic interface {
	Estimate(state *WorldState) float64
}

// NewHeuristic returns the heuristic registered under name.
func NewHeuristic(name string, goldBias float64) (Heuristic, error) {
	switch name {
	case "", "admissible":
		return AdmissibleHeuristic{}, nil
	case "greedy":
		return GreedyHeuristic{GoldBias: goldBias}, nil
	default:
		return nil, fmt.Errorf("unknown heuristic %q", name)
	}
}

// batchNeed summarises the work left for one resource kind.
type batchNeed struct {
	need      int // batches the depot still lacks
	carried   int // batches currently held by workers
	available int // batches left in usable deposits
}

func (b batchNeed) toPick() int {
	return max(0, b.need-b.carried)
}

func (b batchNeed) reachable() bool {
	return b.toPick() <= b.available
}

func needFor(state *WorldState, kind ResourceKind) batchNeed {
	missing := state.Depot.Remaining().Of(kind)
	b := batchNeed{need: (missing + BatchAmount - 1) / BatchAmount}
	for _, id := range state.WorkerIDs() {
		if state.Workers[id].Holding(kind) {
			b.carried++
		}
	}
	for _, id := range state.ResourceIDs() {
		r := state.Resources[id]
		if r.Kind == kind {
			b.available += r.Remaining / BatchAmount
		}
	}
	return b
}

// AdmissibleHeuristic counts the deposits and pick-ups still required. Every batch the
// depot lacks needs one deposit, and every batch not already carried one pick-up, each
// costing 1. It never overestimates and is consistent.
type AdmissibleHeuristic struct{}

func (AdmissibleHeuristic) Estimate(state *WorldState) float64 {
	h := 0
	for _, kind := range []ResourceKind{GoldDeposit, WoodDeposit} {
		b := needFor(state, kind)
		if !b.reachable() {
			return math.Inf(1)
		}
		h += b.need + b.toPick()
	}
	return float64(h)
}

// GreedyHeuristic adds travel estimates to AdmissibleHeuristic: a round trip from the
// depot to the nearest usable deposit for every batch still to pick, shared between the
// workers, and the walk home for every worker carrying cargo. GoldBias is charged per
// missing gold batch while the depot may produce workers. The estimate may overshoot.
type GreedyHeuristic struct {
	GoldBias float64
}

func (g GreedyHeuristic) Estimate(state *WorldState) float64 {
	h := AdmissibleHeuristic{}.Estimate(state)
	if math.IsInf(h, 1) {
		return h
	}

	workers := max(1, len(state.Workers))
	depot := state.Depot.Pos
	for _, kind := range []ResourceKind{GoldDeposit, WoodDeposit} {
		b := needFor(state, kind)
		if pick := b.toPick(); pick > 0 {
			if d, ok := nearestDeposit(state, depot, kind); ok {
				h += float64(2*d*pick) / float64(workers)
			}
		}
		if kind == GoldDeposit && state.Depot.CanProduce {
			h += g.GoldBias * float64(b.need)
		}
	}
	for _, id := range state.WorkerIDs() {
		w := state.Workers[id]
		if !w.Empty() && !w.AdjacentToDepot {
			h += float64(w.Pos.Distance(depot))
		}
	}
	return h
}

func nearestDeposit(state *WorldState, from Position, kind ResourceKind) (int, bool) {
	best, found := 0, false
	for _, id := range state.ResourceIDs() {
		r := state.Resources[id]
		if r.Kind != kind || r.Depleted() {
			continue
		}
		if d := from.Distance(r.Pos); !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}
