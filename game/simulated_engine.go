package game

import (
	"context"
	"slices"
	"sync"

	"gather-go/core"
)

// ProductionTurns is how many turns a depot needs to produce a worker.
const ProductionTurns = 2

type order struct {
	cmd     Command
	started bool
	turns   int
}

// SimulatedEngine is an in-process, turn-based rendition of the gathering game. Workers
// walk one tile per turn, may share tiles and stand on deposits; gathering and depositing
// take a single turn.
type SimulatedEngine struct {
	mu       sync.Mutex
	state    *core.Snapshot
	pending  map[int]*order
	failNext map[int]int
	nextID   int
}

// NewSimulatedEngine starts a simulation from snap. snap is copied.
func NewSimulatedEngine(snap *core.Snapshot) *SimulatedEngine {
	state := snap.Clone()
	next := state.Depot.ID
	for _, w := range state.Workers {
		next = max(next, w.ID)
	}
	for _, r := range state.Resources {
		next = max(next, r.ID)
	}
	return &SimulatedEngine{
		state:    state,
		pending:  make(map[int]*order),
		failNext: make(map[int]int),
		nextID:   next + 1,
	}
}

// FailNext makes the next n commands processed for unit fail without effect.
func (e *SimulatedEngine) FailNext(unit, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext[unit] += n
}

// Snapshot returns a copy of the current state.
func (e *SimulatedEngine) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), nil
}

// Step queues commands, replacing any order the same unit still had, and plays one turn.
func (e *SimulatedEngine) Step(ctx context.Context, commands []Command) (map[int]Feedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	feedback := make(map[int]Feedback)
	for _, cmd := range commands {
		known := e.worker(cmd.UnitID) != nil
		if cmd.Kind == CommandProduce {
			known = cmd.UnitID == e.state.Depot.ID
		}
		if !known {
			feedback[cmd.UnitID] = Feedback{Status: Failed, Message: "unknown unit"}
			continue
		}
		e.pending[cmd.UnitID] = &order{cmd: cmd}
	}

	units := make([]int, 0, len(e.pending))
	for unit := range e.pending {
		units = append(units, unit)
	}
	slices.Sort(units)

	for _, unit := range units {
		o := e.pending[unit]
		if e.failNext[unit] > 0 {
			e.failNext[unit]--
			delete(e.pending, unit)
			feedback[unit] = Feedback{Status: Failed, Message: "injected failure"}
			continue
		}
		fb := e.play(o)
		if fb.Status != Incomplete {
			delete(e.pending, unit)
		}
		feedback[unit] = fb
	}
	e.state.Turn++
	return feedback, nil
}

func (e *SimulatedEngine) play(o *order) Feedback {
	switch o.cmd.Kind {
	case CommandMove:
		w := e.worker(o.cmd.UnitID)
		next := Position{X: w.X, Y: w.Y}.Step(o.cmd.Target)
		w.X, w.Y = next.X, next.Y
		if next == o.cmd.Target {
			return Feedback{Status: Completed}
		}
		return Feedback{Status: Incomplete}

	case CommandGather:
		w := e.worker(o.cmd.UnitID)
		if w.CargoAmount > 0 {
			return Feedback{Status: Failed, Message: "already carrying " + w.Cargo}
		}
		at := Position{X: w.X, Y: w.Y}.Offset(o.cmd.Direction)
		r := e.resourceAt(at)
		if r == nil || r.Remaining < BatchAmount {
			return Feedback{Status: Failed, Message: "nothing to gather at " + at.String()}
		}
		kind, err := ParseResourceKind(r.Kind)
		if err != nil {
			return Feedback{Status: Failed, Message: err.Error()}
		}
		r.Remaining -= BatchAmount
		w.Cargo, w.CargoAmount = kind.String(), BatchAmount
		return Feedback{Status: Completed}

	case CommandDeposit:
		w := e.worker(o.cmd.UnitID)
		if w.CargoAmount == 0 {
			return Feedback{Status: Failed, Message: "nothing to deposit"}
		}
		d := &e.state.Depot
		if (Position{X: w.X, Y: w.Y}).Offset(o.cmd.Direction) != (Position{X: d.X, Y: d.Y}) {
			return Feedback{Status: Failed, Message: "no depot in direction " + string(o.cmd.Direction)}
		}
		switch w.Cargo {
		case "gold":
			d.Gold += w.CargoAmount
		case "wood":
			d.Wood += w.CargoAmount
		}
		w.Cargo, w.CargoAmount = "", 0
		return Feedback{Status: Completed}

	case CommandProduce:
		d := &e.state.Depot
		if !o.started {
			if d.Gold < ProductionCost || d.Population >= d.PopulationCap {
				return Feedback{Status: Failed, Message: "cannot produce " + o.cmd.Template}
			}
			d.Gold -= ProductionCost
			o.started = true
			o.turns = ProductionTurns
		}
		o.turns--
		if o.turns > 0 {
			return Feedback{Status: Incomplete}
		}
		id := e.nextID
		e.nextID++
		d.Population++
		e.state.Workers = append(e.state.Workers, core.WorkerView{ID: id, X: d.X, Y: d.Y})
		return Feedback{Status: Completed, ProducedID: id}
	}
	return Feedback{Status: Failed, Message: "unknown command " + string(o.cmd.Kind)}
}

func (e *SimulatedEngine) worker(id int) *core.WorkerView {
	for i := range e.state.Workers {
		if e.state.Workers[i].ID == id {
			return &e.state.Workers[i]
		}
	}
	return nil
}

func (e *SimulatedEngine) resourceAt(p Position) *core.ResourceView {
	for i := range e.state.Resources {
		r := &e.state.Resources[i]
		if r.X == p.X && r.Y == p.Y {
			return r
		}
	}
	return nil
}
