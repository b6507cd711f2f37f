package game

// Worker is the planning view of one gathering unit.
// The Adjacent* flags are caches derived from Pos; WorldState keeps them current.
type Worker struct {
	ID              int
	Pos             Position
	HoldingGold     bool
	HoldingWood     bool
	AdjacentToDepot bool
	AdjacentToGold  bool
	AdjacentToWood  bool
}

// Empty reports whether the worker carries nothing.
func (w *Worker) Empty() bool {
	return !w.HoldingGold && !w.HoldingWood
}

// Holding reports whether the worker carries a batch of kind.
func (w *Worker) Holding(kind ResourceKind) bool {
	if kind == GoldDeposit {
		return w.HoldingGold
	}
	return w.HoldingWood
}

func (w *Worker) setHolding(kind ResourceKind, holding bool) {
	if kind == GoldDeposit {
		w.HoldingGold = holding
	} else {
		w.HoldingWood = holding
	}
}

// AdjacentTo reports whether the worker stands next to a usable deposit of kind.
func (w *Worker) AdjacentTo(kind ResourceKind) bool {
	if kind == GoldDeposit {
		return w.AdjacentToGold
	}
	return w.AdjacentToWood
}
