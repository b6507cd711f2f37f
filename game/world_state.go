package game

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"

	"gather-go/core"
)

// WorldState is one node of the planning search: the depot, every worker and every
// deposit, plus the actions that led here and their accumulated cost.
//
// Equality, Key and Hash only look at the depot, workers and resources. Two states
// reached by different paths at different costs are the same state.
type WorldState struct {
	Depot     Depot
	Workers   map[int]*Worker
	Resources map[int]*Resource

	// Actions holds one group per search step, oldest first.
	Actions [][]Action
	Cost    float64

	workerIDs   []int
	resourceIDs []int // immutable, shared between clones
}

// NewWorldState builds a state from explicit entities. Adjacency flags are computed here.
func NewWorldState(depot Depot, workers []Worker, resources []Resource) *WorldState {
	ws := &WorldState{
		Depot:     depot,
		Workers:   make(map[int]*Worker, len(workers)),
		Resources: make(map[int]*Resource, len(resources)),
	}
	for i := range resources {
		r := resources[i]
		ws.Resources[r.ID] = &r
		ws.resourceIDs = append(ws.resourceIDs, r.ID)
	}
	for i := range workers {
		w := workers[i]
		ws.Workers[w.ID] = &w
		ws.workerIDs = append(ws.workerIDs, w.ID)
	}
	sort.Ints(ws.resourceIDs)
	sort.Ints(ws.workerIDs)
	ws.refreshAllAdjacency()
	return ws
}

// AssignPlanningIDs numbers the snapshot's workers 1..n in ascending engine-id order.
// The result maps engine id to planning id.
func AssignPlanningIDs(workers []core.WorkerView) map[int]int {
	engineIDs := make([]int, 0, len(workers))
	for _, w := range workers {
		engineIDs = append(engineIDs, w.ID)
	}
	sort.Ints(engineIDs)
	ids := make(map[int]int, len(engineIDs))
	for i, id := range engineIDs {
		ids[id] = i + 1
	}
	return ids
}

// FromSnapshot builds the planning state for a live snapshot. ids maps engine worker ids
// to planning ids; nil assigns fresh ones with AssignPlanningIDs.
func FromSnapshot(snap *core.Snapshot, goal core.Goal, ids map[int]int) (*WorldState, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	if ids == nil {
		ids = AssignPlanningIDs(snap.Workers)
	}

	depot := Depot{
		ID:            snap.Depot.ID,
		Pos:           Position{X: snap.Depot.X, Y: snap.Depot.Y},
		Required:      Stockpile{Gold: goal.Gold, Wood: goal.Wood},
		Current:       Stockpile{Gold: snap.Depot.Gold, Wood: snap.Depot.Wood},
		PopulationCap: snap.Depot.PopulationCap,
		Population:    snap.Depot.Population,
		CanProduce:    goal.BuildWorkers,
	}

	resources := make([]Resource, 0, len(snap.Resources))
	for _, rv := range snap.Resources {
		kind, err := ParseResourceKind(rv.Kind)
		if err != nil {
			return nil, fmt.Errorf("resource %d: %w", rv.ID, err)
		}
		resources = append(resources, Resource{
			ID:        rv.ID,
			Kind:      kind,
			Pos:       Position{X: rv.X, Y: rv.Y},
			Remaining: rv.Remaining,
		})
	}

	workers := make([]Worker, 0, len(snap.Workers))
	for _, wv := range snap.Workers {
		id, ok := ids[wv.ID]
		if !ok {
			return nil, fmt.Errorf("worker %d has no planning id", wv.ID)
		}
		w := Worker{ID: id, Pos: Position{X: wv.X, Y: wv.Y}}
		if wv.CargoAmount > 0 {
			w.HoldingGold = wv.Cargo == "gold"
			w.HoldingWood = wv.Cargo == "wood"
		}
		workers = append(workers, w)
	}

	return NewWorldState(depot, workers, resources), nil
}

// Clone returns an independent copy. Finished action groups are shared; they are
// never modified once a step is complete.
func (ws *WorldState) Clone() *WorldState {
	c := &WorldState{
		Depot:       ws.Depot,
		Workers:     make(map[int]*Worker, len(ws.Workers)),
		Resources:   make(map[int]*Resource, len(ws.Resources)),
		Cost:        ws.Cost,
		workerIDs:   append(make([]int, 0, len(ws.workerIDs)+1), ws.workerIDs...),
		resourceIDs: ws.resourceIDs,
	}
	for id, w := range ws.Workers {
		copied := *w
		c.Workers[id] = &copied
	}
	for id, r := range ws.Resources {
		copied := *r
		c.Resources[id] = &copied
	}
	c.Actions = make([][]Action, len(ws.Actions), len(ws.Actions)+1)
	copy(c.Actions, ws.Actions)
	if n := len(c.Actions); n > 0 {
		c.Actions[n-1] = append([]Action(nil), ws.Actions[n-1]...)
	}
	return c
}

// IsGoal checks if the depot holds at least the required gold and wood.
func (ws *WorldState) IsGoal() bool {
	return ws.Depot.Current.Covers(ws.Depot.Required)
}

// WorkerIDs returns the worker ids in ascending order. The slice must not be modified.
func (ws *WorldState) WorkerIDs() []int {
	return ws.workerIDs
}

// ResourceIDs returns the resource ids in ascending order. The slice must not be modified.
func (ws *WorldState) ResourceIDs() []int {
	return ws.resourceIDs
}

// Equal compares depot, workers and resources.
func (ws *WorldState) Equal(o *WorldState) bool {
	if ws.Depot != o.Depot || len(ws.Workers) != len(o.Workers) || len(ws.Resources) != len(o.Resources) {
		return false
	}
	for id, w := range ws.Workers {
		ow, ok := o.Workers[id]
		if !ok || *w != *ow {
			return false
		}
	}
	for id, r := range ws.Resources {
		or, ok := o.Resources[id]
		if !ok || *r != *or {
			return false
		}
	}
	return true
}

// Key creates a unique, stable encoding of the state used for deduplication.
// Equal states have equal keys.
func (ws *WorldState) Key() string {
	b := make([]byte, 0, 32+24*len(ws.workerIDs)+16*len(ws.resourceIDs))

	d := &ws.Depot
	b = strconv.AppendInt(b, int64(d.ID), 10)
	b = append(b, '@')
	b = appendPosition(b, d.Pos)
	for _, v := range []int{d.Required.Gold, d.Required.Wood, d.Current.Gold, d.Current.Wood, d.PopulationCap, d.Population} {
		b = append(b, ',')
		b = strconv.AppendInt(b, int64(v), 10)
	}
	b = strconv.AppendBool(append(b, ','), d.CanProduce)

	b = append(b, '|')
	for _, id := range ws.workerIDs {
		w := ws.Workers[id]
		b = strconv.AppendInt(b, int64(w.ID), 10)
		b = append(b, '@')
		b = appendPosition(b, w.Pos)
		b = append(b, flag(w.HoldingGold), flag(w.HoldingWood), flag(w.AdjacentToDepot), flag(w.AdjacentToGold), flag(w.AdjacentToWood), ';')
	}

	b = append(b, '|')
	for _, id := range ws.resourceIDs {
		r := ws.Resources[id]
		b = strconv.AppendInt(b, int64(r.ID), 10)
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(r.Kind), 10)
		b = append(b, '@')
		b = appendPosition(b, r.Pos)
		b = append(b, '=')
		b = strconv.AppendInt(b, int64(r.Remaining), 10)
		b = append(b, ';')
	}
	return string(b)
}

// Hash returns a 64-bit FNV-1a hash of Key.
func (ws *WorldState) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(ws.Key()))
	return h.Sum64()
}

// Steps returns the action log as plan steps: a single action stays as is, a group of
// several becomes a JointAction.
func (ws *WorldState) Steps() []Action {
	steps := make([]Action, 0, len(ws.Actions))
	for _, group := range ws.Actions {
		switch len(group) {
		case 0:
		case 1:
			steps = append(steps, group[0])
		default:
			steps = append(steps, NewJointAction(group))
		}
	}
	return steps
}

func (ws *WorldState) String() string {
	return fmt.Sprintf("WorldState gold=%d/%d wood=%d/%d workers=%d cost=%.2f steps=%d",
		ws.Depot.Current.Gold, ws.Depot.Required.Gold,
		ws.Depot.Current.Wood, ws.Depot.Required.Wood,
		len(ws.Workers), ws.Cost, len(ws.Actions))
}

// beginStep opens a new, empty action group.
func (ws *WorldState) beginStep() {
	ws.Actions = append(ws.Actions, nil)
}

// record appends a to the open action group.
func (ws *WorldState) record(a Action) {
	if len(ws.Actions) == 0 {
		ws.beginStep()
	}
	n := len(ws.Actions) - 1
	ws.Actions[n] = append(ws.Actions[n], a)
}

func (ws *WorldState) openStepEmpty() bool {
	return len(ws.Actions) == 0 || len(ws.Actions[len(ws.Actions)-1]) == 0
}

// relocate moves w and refreshes all of its adjacency flags.
func (ws *WorldState) relocate(w *Worker, pos Position) {
	w.Pos = pos
	ws.refreshAdjacency(w)
}

func (ws *WorldState) refreshAdjacency(w *Worker) {
	w.AdjacentToDepot = w.Pos.IsAdjacent(ws.Depot.Pos)
	w.AdjacentToGold = false
	w.AdjacentToWood = false
	for _, id := range ws.resourceIDs {
		r := ws.Resources[id]
		if r.Depleted() || !w.Pos.IsAdjacent(r.Pos) {
			continue
		}
		switch r.Kind {
		case GoldDeposit:
			w.AdjacentToGold = true
		case WoodDeposit:
			w.AdjacentToWood = true
		}
		if w.AdjacentToGold && w.AdjacentToWood {
			return
		}
	}
}

func (ws *WorldState) refreshAllAdjacency() {
	for _, id := range ws.workerIDs {
		ws.refreshAdjacency(ws.Workers[id])
	}
}

// addWorker appends a fresh worker at pos with the next planning id.
func (ws *WorldState) addWorker(pos Position) *Worker {
	id := 1
	if n := len(ws.workerIDs); n > 0 {
		id = ws.workerIDs[n-1] + 1
	}
	w := &Worker{ID: id}
	ws.Workers[id] = w
	ws.workerIDs = append(ws.workerIDs, id)
	ws.relocate(w, pos)
	return w
}

func appendPosition(b []byte, p Position) []byte {
	b = strconv.AppendInt(b, int64(p.X), 10)
	b = append(b, ',')
	return strconv.AppendInt(b, int64(p.Y), 10)
}

func flag(v bool) byte {
	if v {
		return '1'
	}
	return '0'
}
