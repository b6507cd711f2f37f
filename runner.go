package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gather-go/core"
	"gather-go/game"
	"gather-go/store"
	"gather-go/web"
)

// Run phases reported by State.
const (
	PhaseIdle      = "idle"
	PhasePlanning  = "planning"
	PhaseExecuting = "executing"
	PhaseDone      = "done"
	PhaseFailed    = "failed"
)

// Options selects what a run does beyond planning.
type Options struct {
	// ScenarioPath overrides the configured scenario.
	ScenarioPath string
	// DryRun executes the plan against the in-process simulated engine.
	DryRun bool
	// PlanOnly stops after the plan is written.
	PlanOnly bool
}

// RunState is the JSON document served to observers.
type RunState struct {
	RunID    string                `json:"run_id,omitempty"`
	Scenario string                `json:"scenario,omitempty"`
	Phase    string                `json:"phase"`
	Paused   bool                  `json:"paused"`
	Goal     core.Goal             `json:"goal"`
	Plan     []string              `json:"plan,omitempty"`
	Cost     float64               `json:"cost"`
	Expanded int                   `json:"expanded"`
	Progress *game.Progress        `json:"progress,omitempty"`
	Result   *game.ExecutionResult `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Runner drives one planning run: scenario, search, artifacts, then execution.
type Runner struct {
	ConfigManager *core.ConfigManager
	loader        *core.ScenarioLoader
	runs          *store.RunStore
	hub           *web.Hub
	logger        *log.Logger

	state  RunState
	paused bool
	lock   sync.Mutex
}

// NewRunner creates a runner. runs may be nil to skip the run index.
func NewRunner(cm *core.ConfigManager, runs *store.RunStore, logger *log.Logger) (*Runner, error) {
	loader, err := core.NewScenarioLoader()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[runner] ", log.LstdFlags)
	}
	return &Runner{
		ConfigManager: cm,
		loader:        loader,
		runs:          runs,
		logger:        logger,
		state:         RunState{Phase: PhaseIdle},
	}, nil
}

// SetHub registers the hub that receives state after every change.
func (r *Runner) SetHub(hub *web.Hub) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.hub = hub
}

// Pause holds execution before the next engine turn.
func (r *Runner) Pause() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.paused = true
}

// Resume releases a paused run.
func (r *Runner) Resume() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.paused = false
}

// IsPaused returns true if the runner is paused.
func (r *Runner) IsPaused() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.paused
}

// State returns the current run as JSON.
func (r *Runner) State() ([]byte, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	s := r.state
	s.Paused = r.paused
	return json.Marshal(s)
}

// Snapshot returns a copy of the current run state.
func (r *Runner) Snapshot() RunState {
	r.lock.Lock()
	defer r.lock.Unlock()
	s := r.state
	s.Paused = r.paused
	return s
}

func (r *Runner) update(fn func(s *RunState)) {
	r.lock.Lock()
	fn(&r.state)
	hub := r.hub
	r.lock.Unlock()
	hub.BroadcastFullState()
}

// waitWhilePaused blocks until the runner is resumed or ctx ends.
func (r *Runner) waitWhilePaused(ctx context.Context) error {
	for r.IsPaused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePoll):
		}
	}
	return nil
}

var pausePoll = 200 * time.Millisecond

// pausableEngine holds every engine call while the runner is paused.
type pausableEngine struct {
	game.Engine
	runner *Runner
}

func (p pausableEngine) Step(ctx context.Context, commands []game.Command) (map[int]game.Feedback, error) {
	if err := p.runner.waitWhilePaused(ctx); err != nil {
		return nil, err
	}
	return p.Engine.Step(ctx, commands)
}

// start resolves where the initial snapshot comes from and which engine, if any, executes
// the plan.
func (r *Runner) start(ctx context.Context, config *core.Config, opts Options) (string, *core.Snapshot, core.Goal, game.Engine, error) {
	goal := config.Planner.Goal()

	if !opts.DryRun && config.Engine.URL != "" {
		wrapper, err := core.NewWebWrapper(config.Engine.URL, config.Engine.RandomDelay.MinDelay, config.Engine.RandomDelay.MaxDelay)
		if err != nil {
			return "", nil, goal, nil, fmt.Errorf("failed to create web wrapper: %w", err)
		}
		wrapper.SetBot(r)
		engine := game.NewRemoteEngine(wrapper)
		snap, err := engine.Snapshot(ctx)
		if err != nil {
			return "", nil, goal, nil, fmt.Errorf("failed to read engine state: %w", err)
		}
		return config.Engine.URL, snap, goal, engine, nil
	}

	path := config.Scenario.Path
	if opts.ScenarioPath != "" {
		path = opts.ScenarioPath
	}
	scenario, err := r.loader.Load(path)
	if err != nil {
		return "", nil, goal, nil, err
	}
	snap := scenario.Snapshot
	var engine game.Engine
	if opts.DryRun {
		engine = game.NewSimulatedEngine(snap.Clone())
	}
	return scenario.Name, &snap, scenario.GoalOr(goal), engine, nil
}

// Run plans and, unless told otherwise, executes one run. It returns the final state.
func (r *Runner) Run(ctx context.Context, opts Options) (RunState, error) {
	config := r.ConfigManager.GetConfig()

	name, snap, goal, engine, err := r.start(ctx, config, opts)
	if err != nil {
		r.update(func(s *RunState) { s.Phase, s.Error = PhaseFailed, err.Error() })
		return r.Snapshot(), err
	}

	runID := ""
	if r.runs != nil {
		runID, err = r.runs.BeginRun(ctx, name, goal, config.Planner.Heuristic)
		if err != nil {
			err = fmt.Errorf("failed to record run: %w", err)
			r.update(func(s *RunState) {
				*s = RunState{Scenario: name, Phase: PhaseFailed, Goal: goal, Error: err.Error()}
			})
			return r.Snapshot(), err
		}
	}
	r.update(func(s *RunState) {
		*s = RunState{RunID: runID, Scenario: name, Phase: PhasePlanning, Goal: goal}
	})

	result, err := r.run(ctx, config, opts, runID, snap, goal, engine)
	if r.runs != nil {
		if ferr := r.runs.FinishRun(context.WithoutCancel(ctx), runID, err); ferr != nil {
			r.logger.Printf("failed to record run result: %v", ferr)
		}
	}
	r.update(func(s *RunState) {
		s.Result = result
		if err != nil {
			s.Phase, s.Error = PhaseFailed, err.Error()
			return
		}
		s.Phase = PhaseDone
	})
	return r.Snapshot(), err
}

func (r *Runner) run(ctx context.Context, config *core.Config, opts Options, runID string, snap *core.Snapshot, goal core.Goal, engine game.Engine) (*game.ExecutionResult, error) {
	ids := game.AssignPlanningIDs(snap.Workers)
	start, err := game.FromSnapshot(snap, goal, ids)
	if err != nil {
		return nil, err
	}

	plan, err := r.plan(ctx, config, runID, goal, start)
	if err != nil {
		return nil, err
	}
	r.update(func(s *RunState) {
		s.Plan, s.Cost, s.Expanded = plan.Lines(), plan.Cost, plan.Expanded
	})
	if err := r.savePlan(ctx, config, runID, plan); err != nil {
		return nil, err
	}

	if opts.PlanOnly || engine == nil {
		r.logger.Printf("plan written, no engine to execute it")
		return nil, nil
	}

	r.update(func(s *RunState) { s.Phase = PhaseExecuting })
	executorLog := log.New(r.logger.Writer(), "[executor] ", r.logger.Flags())
	executor := game.NewExecutor(pausableEngine{Engine: engine, runner: r}, plan, goal, ids,
		func(msg string) { executorLog.Println(msg) })
	executor.MaxTurns = config.Executor.MaxTurns
	executor.MaxRetries = config.Executor.MaxRetries
	executor.OnProgress = func(p game.Progress) {
		if r.runs != nil {
			if err := r.runs.RecordProgress(ctx, runID, p); err != nil {
				r.logger.Printf("failed to record progress: %v", err)
			}
		}
		r.update(func(s *RunState) { s.Progress = &p })
	}
	result, err := executor.Run(ctx)
	if err != nil {
		return result, fmt.Errorf("execution failed: %w", err)
	}
	r.logger.Printf("executed %d steps in %d turns (%d retries)", result.Steps, result.Turns, result.Retries)
	return result, nil
}

func (r *Runner) plan(ctx context.Context, config *core.Config, runID string, goal core.Goal, start *game.WorldState) (*game.Plan, error) {
	heuristic, err := game.NewHeuristic(config.Planner.Heuristic, config.Planner.GoldBias)
	if err != nil {
		return nil, err
	}
	plannerLog := log.New(r.logger.Writer(), "[planner] ", r.logger.Flags())
	solver := game.NewAStarSolver(newGenerator(goal), heuristic, func(msg string) { plannerLog.Println(msg) })
	solver.MaxExpansions = config.Planner.MaxExpansions

	if config.Output.Trace {
		name := "trace.jsonl.zst"
		if runID != "" {
			name = runID + ".trace.jsonl.zst"
		}
		trace, err := store.NewTraceLog(filepath.Join(config.Output.Dir, name))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := trace.Close(); err != nil {
				r.logger.Printf("failed to write search trace: %v", err)
			}
		}()
		solver.Tracer = trace
	}

	if config.Planner.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(config.Planner.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	began := time.Now()
	plan, err := solver.FindOptimalPlan(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}
	r.logger.Printf("found plan with %d steps, cost %.0f, %d nodes expanded in %s",
		plan.Len(), plan.Cost, plan.Expanded, time.Since(began).Round(time.Millisecond))
	return plan, nil
}

// newGenerator returns the successor generator for goal. Production is only explored
// when the goal allows building workers.
func newGenerator(goal core.Goal) *game.ActionGenerator {
	gen := game.NewActionGenerator()
	gen.SkipProduction = !goal.BuildWorkers
	return gen
}

// savePlan writes the plan file, its compressed copy and the run index rows.
func (r *Runner) savePlan(ctx context.Context, config *core.Config, runID string, plan *game.Plan) error {
	fm := core.NewFileManager(config.Output.Dir)
	lines := plan.Lines()
	if err := fm.SaveLines(config.Output.PlanFile, lines); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	if config.Output.Compress {
		if err := fm.SaveCompressedLines(config.Output.PlanFile+".zst", lines); err != nil {
			return fmt.Errorf("failed to save compressed plan: %w", err)
		}
	}
	r.logger.Printf("plan saved to %s", fm.GetPath(config.Output.PlanFile))
	if r.runs != nil {
		if err := r.runs.RecordPlan(ctx, runID, plan); err != nil {
			return err
		}
	}
	return nil
}
