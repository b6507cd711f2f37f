package game

import (
	"context"
	"testing"

	"gather-go/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoWorkerSnapshot is scenario B as the engine reports it.
func twoWorkerSnapshot() *core.Snapshot {
	return &core.Snapshot{
		Depot: core.DepotView{ID: 100, X: 5, Y: 5, PopulationCap: 4, Population: 2},
		Workers: []core.WorkerView{
			{ID: 22, X: 9, Y: 9},
			{ID: 21, X: 1, Y: 1},
		},
		Resources: []core.ResourceView{
			{ID: 10, X: 0, Y: 0, Kind: "gold", Remaining: 500},
			{ID: 11, X: 10, Y: 10, Kind: "wood", Remaining: 500},
		},
	}
}

func planFor(t *testing.T, snap *core.Snapshot, goal core.Goal) (*Plan, map[int]int) {
	t.Helper()
	ids := AssignPlanningIDs(snap.Workers)
	start, err := FromSnapshot(snap, goal, ids)
	require.NoError(t, err)
	plan, err := NewAStarSolver(nil, nil, nil).FindOptimalPlan(t.Context(), start)
	require.NoError(t, err)
	return plan, ids
}

func TestExecutor_RunsPlanToGoal(t *testing.T) {
	snap := twoWorkerSnapshot()
	goal := core.Goal{Gold: 100, Wood: 100}
	plan, ids := planFor(t, snap, goal)

	engine := NewSimulatedEngine(snap)
	var progress []Progress
	exec := NewExecutor(engine, plan, goal, ids, func(msg string) { t.Log(msg) })
	exec.OnProgress = func(p Progress) { progress = append(progress, p) }

	result, err := exec.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Steps)
	assert.Equal(t, 6, result.Turns)
	assert.Zero(t, result.Retries)

	final, err := engine.Snapshot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 100, final.Depot.Gold)
	assert.Equal(t, 100, final.Depot.Wood)
	assert.Equal(t, 6, final.Turn)

	require.Len(t, progress, 6)
	assert.True(t, progress[5].Completed)
	assert.Len(t, progress[0].Issued, 2)
	assert.Equal(t, CommandGather, progress[0].Issued[0].Kind)
	assert.Equal(t, 21, progress[0].Issued[0].UnitID)
	assert.Equal(t, NorthWest, progress[0].Issued[0].Direction)
}

func TestExecutor_RetriesFailedCommands(t *testing.T) {
	snap := twoWorkerSnapshot()
	goal := core.Goal{Gold: 100, Wood: 100}
	plan, ids := planFor(t, snap, goal)

	engine := NewSimulatedEngine(snap)
	engine.FailNext(22, 2)
	exec := NewExecutor(engine, plan, goal, ids, nil)

	result, err := exec.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Retries)
	assert.Equal(t, 8, result.Turns)
}

func TestExecutor_GivesUpAfterRetries(t *testing.T) {
	snap := twoWorkerSnapshot()
	goal := core.Goal{Gold: 100, Wood: 100}
	plan, ids := planFor(t, snap, goal)

	engine := NewSimulatedEngine(snap)
	engine.FailNext(21, 10)
	exec := NewExecutor(engine, plan, goal, ids, nil)
	exec.MaxRetries = 2

	_, err := exec.Run(t.Context())
	assert.ErrorIs(t, err, ErrCommandRetries)
}

func TestExecutor_StalePrecondition(t *testing.T) {
	snap := twoWorkerSnapshot()
	goal := core.Goal{Gold: 100, Wood: 100}
	plan, ids := planFor(t, snap, goal)

	// the gold worker has wandered off before the plan starts
	moved := snap.Clone()
	moved.Workers[1].X, moved.Workers[1].Y = 3, 3
	exec := NewExecutor(NewSimulatedEngine(moved), plan, goal, ids, nil)

	_, err := exec.Run(t.Context())
	assert.ErrorIs(t, err, ErrStalePrecondition)
}

func TestExecutor_TurnLimit(t *testing.T) {
	snap := twoWorkerSnapshot()
	goal := core.Goal{Gold: 100, Wood: 100}
	plan, ids := planFor(t, snap, goal)

	exec := NewExecutor(NewSimulatedEngine(snap), plan, goal, ids, nil)
	exec.MaxTurns = 3

	result, err := exec.Run(t.Context())
	assert.ErrorIs(t, err, ErrTurnLimit)
	assert.Equal(t, 3, result.Turns)
}

func TestExecutor_RegistersProducedWorkers(t *testing.T) {
	snap := &core.Snapshot{
		Depot:     core.DepotView{ID: 100, X: 0, Y: 0, Gold: 400, PopulationCap: 2, Population: 1},
		Workers:   []core.WorkerView{{ID: 7, X: 1, Y: 0}},
		Resources: []core.ResourceView{{ID: 10, X: 4, Y: 0, Kind: "wood", Remaining: 300}},
	}
	goal := core.Goal{Wood: 100, BuildWorkers: true}
	ids := AssignPlanningIDs(snap.Workers)
	start, err := FromSnapshot(snap, goal, ids)
	require.NoError(t, err)

	produced := NewProduceWorkerAction(&start.Depot).Apply(start)
	newcomer := produced.Workers[2]
	move := NewMoveToResourceAction(newcomer, produced.Resources[10])
	plan := &Plan{Steps: []Action{NewProduceWorkerAction(&start.Depot), move}}

	engine := NewSimulatedEngine(snap)
	exec := NewExecutor(engine, plan, goal, ids, nil)
	result, err := exec.Run(t.Context())
	require.NoError(t, err)
	require.Len(t, result.Produced, 1)

	final, err := engine.Snapshot(t.Context())
	require.NoError(t, err)
	require.Len(t, final.Workers, 2)
	assert.Equal(t, result.Produced[0], final.Workers[1].ID)
	assert.Equal(t, 4, final.Workers[1].X)
	assert.Zero(t, final.Depot.Gold)
	assert.Equal(t, 2, final.Depot.Population)
}

func TestExecutor_Cancelled(t *testing.T) {
	snap := twoWorkerSnapshot()
	goal := core.Goal{Gold: 100, Wood: 100}
	plan, ids := planFor(t, snap, goal)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := NewExecutor(NewSimulatedEngine(snap), plan, goal, ids, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslator(t *testing.T) {
	ws := scenarioB()
	tr := NewTranslator(map[int]int{1: 21, 2: 22})

	commands, err := tr.Translate(NewJointAction([]Action{
		NewPickUpAction(ws.Workers[1], ws.Resources[10]),
		NewMoveToDepotAction(ws.Workers[2], &ws.Depot),
	}), ws)
	require.NoError(t, err)
	assert.Equal(t, []Command{
		{Kind: CommandGather, UnitID: 21, Target: Position{X: 0, Y: 0}, Direction: NorthWest},
		{Kind: CommandMove, UnitID: 22, Target: Position{X: 5, Y: 5}},
	}, commands)

	commands, err = tr.Translate(NewProduceWorkerAction(&ws.Depot), ws)
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: CommandProduce, UnitID: 100, Target: Position{X: 5, Y: 5}, Template: WorkerTemplate}, commands[0])

	_, err = NewTranslator(map[int]int{}).Translate(NewMoveToDepotAction(ws.Workers[1], &ws.Depot), ws)
	assert.Error(t, err)
}
