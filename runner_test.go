package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gather-go/core"
	"gather-go/game"
	"gather-go/store"
)

const unreachableScenario = `
name: not-enough-gold
goal: {gold: 400}
snapshot:
  depot: {id: 100, x: 0, y: 0}
  workers:
    - {id: 5, x: 0, y: 1}
  resources:
    - {id: 10, x: 5, y: 0, kind: gold, remaining: 300}
`

type testRunner struct {
	*Runner
	config *core.Config
	runs   *store.RunStore
	logs   *bytes.Buffer
}

func newTestRunner(t *testing.T, mutate func(c *core.Config)) *testRunner {
	dir := t.TempDir()
	cm, err := core.NewConfigManager(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	config := core.DefaultConfig()
	config.Output.Dir = filepath.Join(dir, "saves")
	config.Output.DBPath = filepath.Join(dir, "saves", "runs.db")
	config.Scenario.Path = filepath.Join("scenarios", "default.yaml")
	if mutate != nil {
		mutate(config)
	}
	require.NoError(t, config.Validate())
	cm.SetConfig(config)

	runs, err := store.OpenRunStore(config.Output.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	logs := &bytes.Buffer{}
	r, err := NewRunner(cm, runs, log.New(logs, "[runner] ", 0))
	require.NoError(t, err)
	return &testRunner{Runner: r, config: config, runs: runs, logs: logs}
}

func TestRunner_DryRun(t *testing.T) {
	tr := newTestRunner(t, func(c *core.Config) { c.Output.Trace = true })

	state, err := tr.Run(t.Context(), Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, state.Phase)
	assert.Equal(t, "two-camps", state.Scenario)
	assert.Equal(t, core.Goal{Gold: 100, Wood: 100}, state.Goal, "scenario goal overrides the configured one")
	assert.Len(t, state.Plan, 6, "three joint steps of two actions each")
	assert.Equal(t, 12.0, state.Cost)
	require.NotNil(t, state.Result)
	assert.Equal(t, 3, state.Result.Steps)
	require.NotNil(t, state.Progress)
	assert.True(t, state.Progress.Completed)

	fm := core.NewFileManager(tr.config.Output.Dir)
	lines, err := fm.ReadLines(tr.config.Output.PlanFile)
	require.NoError(t, err)
	assert.Equal(t, state.Plan, lines)
	compressed, err := fm.ReadLines(tr.config.Output.PlanFile + ".zst")
	require.NoError(t, err)
	assert.Equal(t, state.Plan, compressed)

	events, err := store.ReadTrace(filepath.Join(tr.config.Output.Dir, state.RunID+".trace.jsonl.zst"))
	require.NoError(t, err)
	assert.Equal(t, state.Expanded, len(events))

	run, err := tr.runs.Run(t.Context(), state.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, run.Status)
	assert.Equal(t, 12.0, run.Cost)
	assert.Equal(t, "admissible", run.Heuristic)
	stored, err := tr.runs.PlanLines(t.Context(), state.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.Plan, stored)
	n, err := tr.runs.ProgressCount(t.Context(), state.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.Result.Turns, n)
}

func TestRunner_PlanOnly(t *testing.T) {
	tr := newTestRunner(t, func(c *core.Config) { c.Output.Compress = false })

	state, err := tr.Run(t.Context(), Options{DryRun: true, PlanOnly: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, state.Phase)
	assert.Nil(t, state.Result)
	assert.Nil(t, state.Progress)
	assert.NotEmpty(t, state.Plan)

	fm := core.NewFileManager(tr.config.Output.Dir)
	assert.True(t, fm.PathExists(tr.config.Output.PlanFile))
	assert.False(t, fm.PathExists(tr.config.Output.PlanFile+".zst"))

	run, err := tr.runs.Run(t.Context(), state.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, run.Status)
	assert.Zero(t, run.Turns)
}

func TestRunner_PlanNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unreachable.yaml")
	require.NoError(t, os.WriteFile(path, []byte(unreachableScenario), 0644))
	tr := newTestRunner(t, nil)

	state, err := tr.Run(t.Context(), Options{ScenarioPath: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, game.ErrPlanNotFound))
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, "not-enough-gold", state.Scenario)

	run, err := tr.runs.Run(t.Context(), state.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, run.Status)
	assert.Contains(t, run.Error, game.ErrPlanNotFound.Error())
	assert.False(t, core.NewFileManager(tr.config.Output.Dir).PathExists(tr.config.Output.PlanFile))
}

func TestRunner_BadScenario(t *testing.T) {
	tr := newTestRunner(t, nil)
	state, err := tr.Run(t.Context(), Options{ScenarioPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.NotEmpty(t, state.Error)
}

func TestRunner_PauseHoldsExecution(t *testing.T) {
	tr := newTestRunner(t, nil)
	tr.Pause()

	type outcome struct {
		state RunState
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		state, err := tr.Run(t.Context(), Options{DryRun: true})
		done <- outcome{state, err}
	}()

	require.Eventually(t, func() bool {
		return tr.Snapshot().Phase == PhaseExecuting
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(3 * pausePoll)
	assert.Nil(t, tr.Snapshot().Progress, "no turn is played while paused")

	var state map[string]any
	raw, err := tr.State()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, true, state["paused"])

	tr.Resume()
	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, PhaseDone, out.state.Phase)
		assert.False(t, out.state.Paused)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish after resume")
	}
}

func TestRunner_CancelWhilePaused(t *testing.T) {
	tr := newTestRunner(t, nil)
	tr.Pause()
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() {
		_, err := tr.Run(ctx, Options{DryRun: true})
		done <- err
	}()
	require.Eventually(t, func() bool {
		return tr.Snapshot().Phase == PhaseExecuting
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop a paused run")
	}
}

func TestRunner_RemoteEngineUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	tr := newTestRunner(t, func(c *core.Config) { c.Engine.URL = srv.URL })

	state, err := tr.Run(t.Context(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read engine state")
	assert.Equal(t, PhaseFailed, state.Phase)
}

func TestRunner_RunIndexFailureIsReported(t *testing.T) {
	tr := newTestRunner(t, nil)
	require.NoError(t, tr.runs.Close())

	state, err := tr.Run(t.Context(), Options{DryRun: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record run")
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, "two-camps", state.Scenario)
	assert.NotEmpty(t, state.Error)

	var observed RunState
	raw, err := tr.State()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &observed))
	assert.Equal(t, PhaseFailed, observed.Phase)
}

func TestNewGenerator_FollowsBuildWorkers(t *testing.T) {
	assert.True(t, newGenerator(core.Goal{Gold: 100}).SkipProduction)
	assert.False(t, newGenerator(core.Goal{Gold: 100, BuildWorkers: true}).SkipProduction)

	// a depot that could produce still gets no production successors when the goal rules it out
	depot := game.Depot{ID: 100, Pos: game.Position{X: 0, Y: 0}, Required: game.Stockpile{Gold: 1000},
		CanProduce: true, PopulationCap: 3, Population: 1}
	depot.Current.Gold = 400
	ws := game.NewWorldState(depot, []game.Worker{{ID: 1, Pos: game.Position{X: 5, Y: 5}}}, nil)
	for _, child := range newGenerator(core.Goal{Gold: 1000}).Successors(ws) {
		assert.Len(t, child.Workers, 1)
	}
	withProduction := newGenerator(core.Goal{Gold: 1000, BuildWorkers: true}).Successors(ws)
	assert.Len(t, withProduction, 2)
}
