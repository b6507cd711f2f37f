package game

import (
	"fmt"
	"strings"
)

// Action is a grounded planning action: every id it refers to is fixed at construction.
//
// Apply never modifies its argument. It clones the state, applies the action to the
// clone as one new step of the action log, and adds the action's cost.
type Action interface {
	PreconditionsMet(state *WorldState) bool
	Apply(state *WorldState) *WorldState
	Cost(state *WorldState) float64
	fmt.Stringer

	// effect mutates state in place and returns the cost. Callers must have checked
	// the preconditions against the same state.
	effect(state *WorldState) float64
}

// applyAsStep applies actions in order to a single clone of state, logged as one step.
func applyAsStep(state *WorldState, actions ...Action) *WorldState {
	next := state.Clone()
	next.beginStep()
	for _, a := range actions {
		next.Cost += a.effect(next)
		next.record(a)
	}
	return next
}

// MoveToResourceAction walks a worker onto a deposit.
type MoveToResourceAction struct {
	WorkerID   int
	ResourceID int
	Kind       ResourceKind
	Target     Position
}

// NewMoveToResourceAction creates a move of w onto r.
func NewMoveToResourceAction(w *Worker, r *Resource) *MoveToResourceAction {
	return &MoveToResourceAction{WorkerID: w.ID, ResourceID: r.ID, Kind: r.Kind, Target: r.Pos}
}

func (a *MoveToResourceAction) PreconditionsMet(state *WorldState) bool {
	w, ok := state.Workers[a.WorkerID]
	if !ok {
		return false
	}
	r, ok := state.Resources[a.ResourceID]
	if !ok {
		return false
	}
	return r.Kind == a.Kind && !r.Depleted() && !w.AdjacentTo(a.Kind)
}

func (a *MoveToResourceAction) Apply(state *WorldState) *WorldState {
	return applyAsStep(state, a)
}

func (a *MoveToResourceAction) Cost(state *WorldState) float64 {
	return float64(state.Workers[a.WorkerID].Pos.Distance(a.Target))
}

func (a *MoveToResourceAction) effect(state *WorldState) float64 {
	cost := a.Cost(state)
	state.relocate(state.Workers[a.WorkerID], a.Target)
	return cost
}

func (a *MoveToResourceAction) String() string {
	return fmt.Sprintf("Worker %d moved to %s deposit %d at %s", a.WorkerID, a.Kind, a.ResourceID, a.Target)
}

// MoveToDepotAction walks a worker onto the depot.
type MoveToDepotAction struct {
	WorkerID int
	DepotID  int
	Target   Position
}

// NewMoveToDepotAction creates a move of w onto d.
func NewMoveToDepotAction(w *Worker, d *Depot) *MoveToDepotAction {
	return &MoveToDepotAction{WorkerID: w.ID, DepotID: d.ID, Target: d.Pos}
}

func (a *MoveToDepotAction) PreconditionsMet(state *WorldState) bool {
	w, ok := state.Workers[a.WorkerID]
	return ok && state.Depot.ID == a.DepotID && !w.AdjacentToDepot
}

func (a *MoveToDepotAction) Apply(state *WorldState) *WorldState {
	return applyAsStep(state, a)
}

func (a *MoveToDepotAction) Cost(state *WorldState) float64 {
	return float64(state.Workers[a.WorkerID].Pos.Distance(a.Target))
}

func (a *MoveToDepotAction) effect(state *WorldState) float64 {
	cost := a.Cost(state)
	state.relocate(state.Workers[a.WorkerID], a.Target)
	return cost
}

func (a *MoveToDepotAction) String() string {
	return fmt.Sprintf("Worker %d moved to depot %d at %s", a.WorkerID, a.DepotID, a.Target)
}

// PickUpAction gathers one batch from an adjacent deposit.
type PickUpAction struct {
	WorkerID   int
	ResourceID int
	Kind       ResourceKind
	Target     Position
}

// NewPickUpAction creates a pick-up by w from r.
func NewPickUpAction(w *Worker, r *Resource) *PickUpAction {
	return &PickUpAction{WorkerID: w.ID, ResourceID: r.ID, Kind: r.Kind, Target: r.Pos}
}

func (a *PickUpAction) PreconditionsMet(state *WorldState) bool {
	w, ok := state.Workers[a.WorkerID]
	if !ok {
		return false
	}
	r, ok := state.Resources[a.ResourceID]
	if !ok {
		return false
	}
	return r.Kind == a.Kind &&
		w.Empty() &&
		w.AdjacentTo(a.Kind) &&
		w.Pos.IsAdjacent(r.Pos) &&
		r.Remaining >= BatchAmount
}

func (a *PickUpAction) Apply(state *WorldState) *WorldState {
	return applyAsStep(state, a)
}

func (a *PickUpAction) Cost(*WorldState) float64 { return 1 }

func (a *PickUpAction) effect(state *WorldState) float64 {
	r := state.Resources[a.ResourceID]
	r.Take(BatchAmount)
	state.Workers[a.WorkerID].setHolding(a.Kind, true)
	if r.Depleted() {
		state.refreshAllAdjacency()
	}
	return 1
}

func (a *PickUpAction) String() string {
	return fmt.Sprintf("Worker %d picked up %s from deposit %d at %s", a.WorkerID, a.Kind, a.ResourceID, a.Target)
}

// DepositAction hands a carried batch over to the depot.
type DepositAction struct {
	WorkerID int
	DepotID  int
	Kind     ResourceKind
	Target   Position
}

// NewDepositAction creates a deposit of kind by w into d.
func NewDepositAction(w *Worker, d *Depot, kind ResourceKind) *DepositAction {
	return &DepositAction{WorkerID: w.ID, DepotID: d.ID, Kind: kind, Target: d.Pos}
}

func (a *DepositAction) PreconditionsMet(state *WorldState) bool {
	w, ok := state.Workers[a.WorkerID]
	return ok &&
		state.Depot.ID == a.DepotID &&
		w.Holding(a.Kind) &&
		w.AdjacentToDepot
}

func (a *DepositAction) Apply(state *WorldState) *WorldState {
	return applyAsStep(state, a)
}

func (a *DepositAction) Cost(*WorldState) float64 { return 1 }

func (a *DepositAction) effect(state *WorldState) float64 {
	state.Depot.Current = state.Depot.Current.Add(a.Kind, BatchAmount)
	state.Workers[a.WorkerID].setHolding(a.Kind, false)
	return 1
}

func (a *DepositAction) String() string {
	return fmt.Sprintf("Worker %d deposited %s at depot %d at %s", a.WorkerID, a.Kind, a.DepotID, a.Target)
}

// ProduceWorkerAction spends gold at the depot for one more worker.
type ProduceWorkerAction struct {
	DepotID int
	At      Position
}

// NewProduceWorkerAction creates a production order for d.
func NewProduceWorkerAction(d *Depot) *ProduceWorkerAction {
	return &ProduceWorkerAction{DepotID: d.ID, At: d.Pos}
}

func (a *ProduceWorkerAction) PreconditionsMet(state *WorldState) bool {
	return state.Depot.ID == a.DepotID && state.Depot.ProductionAllowed()
}

func (a *ProduceWorkerAction) Apply(state *WorldState) *WorldState {
	return applyAsStep(state, a)
}

func (a *ProduceWorkerAction) Cost(*WorldState) float64 { return 1 }

func (a *ProduceWorkerAction) effect(state *WorldState) float64 {
	state.Depot.Current.Gold -= ProductionCost
	state.Depot.Population++
	state.addWorker(state.Depot.Pos)
	return 1
}

func (a *ProduceWorkerAction) String() string {
	return fmt.Sprintf("Depot %d at %s produced a worker", a.DepotID, a.At)
}

// JointAction is one search step in which several agents act together.
type JointAction struct {
	Actions []Action
}

// NewJointAction groups actions into one step. The slice is copied.
func NewJointAction(actions []Action) *JointAction {
	return &JointAction{Actions: append([]Action(nil), actions...)}
}

// PreconditionsMet requires every sub-action to hold against the same state.
func (a *JointAction) PreconditionsMet(state *WorldState) bool {
	if len(a.Actions) == 0 {
		return false
	}
	for _, sub := range a.Actions {
		if !sub.PreconditionsMet(state) {
			return false
		}
	}
	return true
}

func (a *JointAction) Apply(state *WorldState) *WorldState {
	return applyAsStep(state, a.Actions...)
}

func (a *JointAction) Cost(state *WorldState) float64 {
	total := 0.0
	for _, sub := range a.Actions {
		total += sub.Cost(state)
	}
	return total
}

func (a *JointAction) effect(state *WorldState) float64 {
	total := 0.0
	for _, sub := range a.Actions {
		total += sub.effect(state)
	}
	return total
}

func (a *JointAction) String() string {
	parts := make([]string, len(a.Actions))
	for i, sub := range a.Actions {
		parts[i] = sub.String()
	}
	return "Joint[" + strings.Join(parts, "; ") + "]"
}
