package game

import (
	"container/heap"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zeroHeuristic struct{}

func (zeroHeuristic) Estimate(*WorldState) float64 { return 0 }

type recordingTracer struct {
	events []ExpansionEvent
}

func (r *recordingTracer) OnExpand(ev ExpansionEvent) {
	r.events = append(r.events, ev)
}

func newTestSolver(t *testing.T) *AStarSolver {
	return NewAStarSolver(NewActionGenerator(), AdmissibleHeuristic{}, func(msg string) { t.Log(msg) })
}

func TestAStarSolver_ScenarioA(t *testing.T) {
	plan, err := newTestSolver(t).FindOptimalPlan(t.Context(), scenarioA())
	require.NoError(t, err)

	require.Equal(t, 2, plan.Len())
	assert.Equal(t, 2.0, plan.Cost)
	assert.IsType(t, &PickUpAction{}, plan.Steps[0])
	assert.IsType(t, &DepositAction{}, plan.Steps[1])
	assert.Equal(t, []string{
		"1: Worker 1 picked up gold from deposit 10 at (1, 1)",
		"2: Worker 1 deposited gold at depot 100 at (0, 0)",
	}, plan.Lines())
}

func TestAStarSolver_ScenarioB(t *testing.T) {
	plan, err := newTestSolver(t).FindOptimalPlan(t.Context(), scenarioB())
	require.NoError(t, err)

	require.GreaterOrEqual(t, plan.Len(), 3)
	assert.Equal(t, 3, plan.Len())
	assert.Equal(t, 12.0, plan.Cost)
	for i, step := range plan.Steps {
		joint, ok := step.(*JointAction)
		require.True(t, ok, "step %d should be joint", i+1)
		assert.Len(t, joint.Actions, 2)
	}
	assert.Len(t, plan.Lines(), 6)
}

func TestAStarSolver_ScenarioC(t *testing.T) {
	_, err := newTestSolver(t).FindOptimalPlan(t.Context(), scenarioC())
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestAStarSolver_ExhaustsFrontier(t *testing.T) {
	// without pruning the search has to walk every reachable state before giving up
	solver := NewAStarSolver(nil, zeroHeuristic{}, nil)
	_, err := solver.FindOptimalPlan(t.Context(), scenarioC())
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestAStarSolver_StartIsGoal(t *testing.T) {
	ws := scenarioA()
	ws.Depot.Current.Gold = 100

	plan, err := newTestSolver(t).FindOptimalPlan(t.Context(), ws)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Zero(t, plan.Cost)
	assert.Equal(t, 1, plan.Expanded)
}

func TestAStarSolver_IgnoresStartHistory(t *testing.T) {
	ws := scenarioA()
	ws = NewPickUpAction(ws.Workers[1], ws.Resources[10]).Apply(ws)

	plan, err := newTestSolver(t).FindOptimalPlan(t.Context(), ws)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Len())
	assert.IsType(t, &DepositAction{}, plan.Steps[0])
	assert.Equal(t, 1.0, plan.Cost)
	assert.Len(t, ws.Actions, 1)
}

func TestAStarSolver_Idempotent(t *testing.T) {
	root := scenarioB()
	first, err := newTestSolver(t).FindOptimalPlan(t.Context(), root)
	require.NoError(t, err)
	second, err := newTestSolver(t).FindOptimalPlan(t.Context(), root)
	require.NoError(t, err)

	assert.Equal(t, first.Cost, second.Cost)
	assert.Equal(t, first.Lines(), second.Lines())
	assert.Equal(t, first.Expanded, second.Expanded)
	assert.Empty(t, root.Actions)
}

func TestAStarSolver_PlanReplaysToGoal(t *testing.T) {
	root := scenarioB()
	plan, err := newTestSolver(t).FindOptimalPlan(t.Context(), root)
	require.NoError(t, err)

	ws := root
	total := 0.0
	for _, step := range plan.Steps {
		require.True(t, step.PreconditionsMet(ws), step.String())
		total += step.Cost(ws)
		ws = step.Apply(ws)
	}
	assert.True(t, ws.IsGoal())
	assert.Equal(t, plan.Cost, total)
	assert.Equal(t, plan.Cost, ws.Cost)
}

func TestAStarSolver_Greedy(t *testing.T) {
	solver := NewAStarSolver(nil, GreedyHeuristic{GoldBias: 1}, nil)
	plan, err := solver.FindOptimalPlan(t.Context(), scenarioB())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, plan.Cost, 12.0)
}

func TestAStarSolver_MaxExpansions(t *testing.T) {
	solver := newTestSolver(t)
	solver.MaxExpansions = 1
	_, err := solver.FindOptimalPlan(t.Context(), scenarioB())
	assert.ErrorIs(t, err, ErrSearchLimit)
}

func TestAStarSolver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newTestSolver(t).FindOptimalPlan(ctx, scenarioB())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSearchLimit))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAStarSolver_Tracer(t *testing.T) {
	tracer := &recordingTracer{}
	solver := newTestSolver(t)
	solver.Tracer = tracer

	plan, err := solver.FindOptimalPlan(t.Context(), scenarioA())
	require.NoError(t, err)
	require.Len(t, tracer.events, plan.Expanded)

	last := tracer.events[len(tracer.events)-1]
	assert.True(t, last.Goal)
	assert.Equal(t, 2, last.Depth)
	assert.Equal(t, 2.0, last.Cost)
	assert.Zero(t, tracer.events[0].Seq)
	assert.False(t, tracer.events[0].Goal)
}

func TestPriorityQueue_TieBreak(t *testing.T) {
	pq := &PriorityQueue{}
	heap.Init(pq)
	nodes := []*SearchNode{
		{Seq: 0, Priority: 5, Heuristic: 3, ParentSeq: 1},
		{Seq: 1, Priority: 5, Heuristic: 1, ParentSeq: 1},
		{Seq: 2, Priority: 5, Heuristic: 1, ParentSeq: 4},
		{Seq: 3, Priority: 4, Heuristic: 4, ParentSeq: 0},
		{Seq: 4, Priority: 5, Heuristic: 1, ParentSeq: 4},
	}
	for _, n := range nodes {
		heap.Push(pq, n)
	}

	var order []int
	for pq.Len() > 0 {
		order = append(order, heap.Pop(pq).(*SearchNode).Seq)
	}
	assert.Equal(t, []int{3, 2, 4, 1, 0}, order)
}

func TestPriorityQueue_Update(t *testing.T) {
	pq := &PriorityQueue{}
	heap.Init(pq)
	a := &SearchNode{Seq: 0, Cost: 3, Priority: 5}
	b := &SearchNode{Seq: 1, Cost: 8, Priority: 9}
	heap.Push(pq, a)
	heap.Push(pq, b)

	cheaper := scenarioA()
	pq.update(b, cheaper, 7, 1, 3)

	top := heap.Pop(pq).(*SearchNode)
	assert.Same(t, b, top)
	assert.Same(t, cheaper, top.State)
	assert.Equal(t, 7, top.ParentSeq)
	assert.Equal(t, 1.0, top.Cost)
}
