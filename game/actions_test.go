package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveToResourceAction(t *testing.T) {
	ws := scenarioB()
	move := NewMoveToResourceAction(ws.Workers[1], ws.Resources[11])
	require.True(t, move.PreconditionsMet(ws))
	assert.Equal(t, 9.0, move.Cost(ws))

	next := move.Apply(ws)
	w := next.Workers[1]
	assert.Equal(t, Position{X: 10, Y: 10}, w.Pos)
	assert.True(t, w.AdjacentToWood)
	assert.False(t, w.AdjacentToGold)
	assert.False(t, w.AdjacentToDepot)
	assert.Equal(t, 9.0, next.Cost)
	assert.Equal(t, "Worker 1 moved to wood deposit 11 at (10, 10)", move.String())

	// already next to a usable gold deposit
	assert.False(t, NewMoveToResourceAction(ws.Workers[1], ws.Resources[10]).PreconditionsMet(ws))
	// the parent state is untouched
	assert.Equal(t, Position{X: 1, Y: 1}, ws.Workers[1].Pos)
	assert.Zero(t, ws.Cost)
	assert.Empty(t, ws.Actions)
}

func TestMoveToResourceAction_DepletedTarget(t *testing.T) {
	ws := scenarioB()
	ws.Resources[11].Remaining = 50
	assert.False(t, NewMoveToResourceAction(ws.Workers[1], ws.Resources[11]).PreconditionsMet(ws))
}

func TestMoveToDepotAction(t *testing.T) {
	ws := scenarioB()
	move := NewMoveToDepotAction(ws.Workers[2], &ws.Depot)
	require.True(t, move.PreconditionsMet(ws))

	next := move.Apply(ws)
	assert.Equal(t, Position{X: 5, Y: 5}, next.Workers[2].Pos)
	assert.True(t, next.Workers[2].AdjacentToDepot)
	assert.False(t, next.Workers[2].AdjacentToWood)
	assert.Equal(t, 4.0, next.Cost)
	assert.False(t, move.PreconditionsMet(next))
}

func TestPickUpAction(t *testing.T) {
	ws := scenarioA()
	pick := NewPickUpAction(ws.Workers[1], ws.Resources[10])
	require.True(t, pick.PreconditionsMet(ws))

	next := pick.Apply(ws)
	assert.Equal(t, 400, next.Resources[10].Remaining)
	assert.True(t, next.Workers[1].HoldingGold)
	assert.Equal(t, 1.0, next.Cost)

	// a full worker cannot pick up again
	assert.False(t, pick.PreconditionsMet(next))
}

func TestPickUpAction_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ws *WorldState)
	}{
		{"too little left", func(ws *WorldState) { ws.Resources[10].Remaining = 99 }},
		{"holding wood", func(ws *WorldState) { ws.Workers[1].HoldingWood = true }},
		{"not adjacent", func(ws *WorldState) { ws.relocate(ws.Workers[1], Position{X: 5, Y: 5}) }},
		{"unknown worker", func(ws *WorldState) { delete(ws.Workers, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := scenarioA()
			pick := NewPickUpAction(ws.Workers[1], ws.Resources[10])
			tt.mutate(ws)
			assert.False(t, pick.PreconditionsMet(ws))
		})
	}
}

func TestPickUpAction_DepletionRefreshesEveryWorker(t *testing.T) {
	depot := Depot{ID: 100, Pos: Position{X: 9, Y: 9}}
	ws := NewWorldState(depot,
		[]Worker{{ID: 1, Pos: Position{X: 0, Y: 0}}, {ID: 2, Pos: Position{X: 2, Y: 0}}},
		[]Resource{{ID: 10, Kind: GoldDeposit, Pos: Position{X: 1, Y: 0}, Remaining: 100}},
	)
	require.True(t, ws.Workers[2].AdjacentToGold)

	next := NewPickUpAction(ws.Workers[1], ws.Resources[10]).Apply(ws)
	assert.Zero(t, next.Resources[10].Remaining)
	assert.False(t, next.Workers[1].AdjacentToGold)
	assert.False(t, next.Workers[2].AdjacentToGold)
	assert.True(t, ws.Workers[2].AdjacentToGold)
}

func TestDepositAction_ClearsOnlyItsCargo(t *testing.T) {
	ws := scenarioA()
	ws = NewPickUpAction(ws.Workers[1], ws.Resources[10]).Apply(ws)

	assert.False(t, NewDepositAction(ws.Workers[1], &ws.Depot, WoodDeposit).PreconditionsMet(ws))

	deposit := NewDepositAction(ws.Workers[1], &ws.Depot, GoldDeposit)
	require.True(t, deposit.PreconditionsMet(ws))
	next := deposit.Apply(ws)

	assert.False(t, next.Workers[1].HoldingGold)
	assert.False(t, next.Workers[1].HoldingWood)
	assert.Equal(t, Stockpile{Gold: 100}, next.Depot.Current)
	assert.Equal(t, 2.0, next.Cost)
	assert.True(t, next.IsGoal())
}

func TestDepositAction_RequiresDepot(t *testing.T) {
	ws := scenarioB()
	ws.Workers[1].HoldingGold = true
	assert.False(t, NewDepositAction(ws.Workers[1], &ws.Depot, GoldDeposit).PreconditionsMet(ws))
}

func TestProduceWorkerAction(t *testing.T) {
	ws := scenarioA()
	ws.Depot.CanProduce = true
	ws.Depot.PopulationCap = 2
	ws.Depot.Population = 1
	ws.Depot.Current.Gold = 450

	produce := NewProduceWorkerAction(&ws.Depot)
	require.True(t, produce.PreconditionsMet(ws))

	next := produce.Apply(ws)
	assert.Equal(t, 50, next.Depot.Current.Gold)
	assert.Equal(t, 2, next.Depot.Population)
	require.Contains(t, next.Workers, 2)
	assert.Equal(t, ws.Depot.Pos, next.Workers[2].Pos)
	assert.True(t, next.Workers[2].AdjacentToDepot)
	assert.Equal(t, []int{1, 2}, next.WorkerIDs())
	assert.Equal(t, []int{1}, ws.WorkerIDs())

	// population cap reached
	assert.False(t, produce.PreconditionsMet(next))
}

func TestProduceWorkerAction_Gates(t *testing.T) {
	ws := scenarioA()
	ws.Depot.PopulationCap = 3
	ws.Depot.Population = 1
	ws.Depot.Current.Gold = 400
	produce := NewProduceWorkerAction(&ws.Depot)

	assert.False(t, produce.PreconditionsMet(ws), "production disabled")
	ws.Depot.CanProduce = true
	assert.True(t, produce.PreconditionsMet(ws))
	ws.Depot.Current.Gold = 399
	assert.False(t, produce.PreconditionsMet(ws), "cannot afford")
}

func TestJointAction(t *testing.T) {
	ws := scenarioB()
	joint := NewJointAction([]Action{
		NewMoveToDepotAction(ws.Workers[1], &ws.Depot),
		NewMoveToDepotAction(ws.Workers[2], &ws.Depot),
	})
	require.True(t, joint.PreconditionsMet(ws))
	assert.Equal(t, 8.0, joint.Cost(ws))

	next := joint.Apply(ws)
	assert.Equal(t, 8.0, next.Cost)
	require.Len(t, next.Actions, 1)
	assert.Len(t, next.Actions[0], 2)
	assert.Contains(t, joint.String(), "Worker 1 moved to depot 100")
	assert.Contains(t, joint.String(), "Worker 2 moved to depot 100")

	assert.False(t, NewJointAction(nil).PreconditionsMet(ws))
}

func TestAction_CostIsAdditive(t *testing.T) {
	ws := scenarioB()
	steps := []Action{
		NewJointAction([]Action{
			NewPickUpAction(ws.Workers[1], ws.Resources[10]),
			NewPickUpAction(ws.Workers[2], ws.Resources[11]),
		}),
		NewMoveToDepotAction(ws.Workers[1], &ws.Depot),
		NewMoveToDepotAction(ws.Workers[2], &ws.Depot),
	}

	total := 0.0
	for _, step := range steps {
		require.True(t, step.PreconditionsMet(ws), step.String())
		c := step.Cost(ws)
		assert.GreaterOrEqual(t, c, 0.0)
		next := step.Apply(ws)
		assert.GreaterOrEqual(t, next.Cost, ws.Cost)
		total += c
		ws = next
	}
	assert.Equal(t, total, ws.Cost)
	assert.Equal(t, 10.0, ws.Cost)
}
