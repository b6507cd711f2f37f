package game

// ActionGenerator generates the legal actions and joint successors of a world state.
type ActionGenerator struct {
	// SkipProduction disables the depot's ProduceWorker extension even when the
	// depot could afford it.
	SkipProduction bool
}

// NewActionGenerator creates a new ActionGenerator.
func NewActionGenerator() *ActionGenerator {
	return &ActionGenerator{}
}

// ActionsForWorker returns every action worker w may take in state, in a fixed order:
// per resource (ascending id) the move and the pick-up, then the move to the depot,
// then the gold and wood deposits.
func (ag *ActionGenerator) ActionsForWorker(state *WorldState, w *Worker) []Action {
	var candidates []Action
	for _, id := range state.ResourceIDs() {
		r := state.Resources[id]
		if r.Depleted() {
			continue
		}
		candidates = append(candidates, NewMoveToResourceAction(w, r), NewPickUpAction(w, r))
	}
	d := &state.Depot
	candidates = append(candidates,
		NewMoveToDepotAction(w, d),
		NewDepositAction(w, d, GoldDeposit),
		NewDepositAction(w, d, WoodDeposit),
	)

	actions := candidates[:0]
	for _, a := range candidates {
		if a.PreconditionsMet(state) {
			actions = append(actions, a)
		}
	}
	return actions
}

// Successors returns the children of parent, one per joint action.
//
// Workers are folded in ascending id order over a list of partial states. Each worker's
// actions must be legal both in the partial it extends, so two workers cannot both claim
// the last batch of a deposit in the same step, and in parent, so every joint step holds
// against the state it is issued from. A worker with nothing to do idles.
// The depot may then extend each partial with a ProduceWorker, but only when parent
// itself allows production: gold deposited during a step cannot be spent in that step.
// A partial in which nobody acted is not a successor. parent is never modified.
func (ag *ActionGenerator) Successors(parent *WorldState) []*WorldState {
	canProduce := !ag.SkipProduction && NewProduceWorkerAction(&parent.Depot).PreconditionsMet(parent)

	start := parent.Clone()
	start.beginStep()
	partials := []*WorldState{start}

	for _, id := range parent.WorkerIDs() {
		next := make([]*WorldState, 0, len(partials))
		for _, p := range partials {
			legal := holdsIn(parent, ag.ActionsForWorker(p, p.Workers[id]))
			if len(legal) == 0 {
				next = append(next, p)
				continue
			}
			for i, a := range legal {
				branch := p
				if i < len(legal)-1 {
					branch = p.Clone()
				}
				branch.Cost += a.effect(branch)
				branch.record(a)
				next = append(next, branch)
			}
		}
		partials = next
	}

	if canProduce {
		next := make([]*WorldState, 0, 2*len(partials))
		for _, p := range partials {
			produce := NewProduceWorkerAction(&p.Depot)
			branch := p.Clone()
			branch.Cost += produce.effect(branch)
			branch.record(produce)
			next = append(next, branch, p)
		}
		partials = next
	}

	children := partials[:0]
	for _, p := range partials {
		if !p.openStepEmpty() {
			children = append(children, p)
		}
	}
	return children
}

// holdsIn keeps the actions whose preconditions also hold in state.
func holdsIn(state *WorldState, actions []Action) []Action {
	kept := actions[:0]
	for _, a := range actions {
		if a.PreconditionsMet(state) {
			kept = append(kept, a)
		}
	}
	return kept
}
