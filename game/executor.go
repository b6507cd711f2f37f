package game

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gather-go/core"
)

var (
	// ErrStalePrecondition is returned when the live state no longer admits the next step.
	ErrStalePrecondition = errors.New("plan step preconditions do not hold")
	// ErrCommandRetries is returned when a command keeps failing after its retries.
	ErrCommandRetries = errors.New("command failed too often")
	// ErrTurnLimit is returned when the plan is still running after the turn limit.
	ErrTurnLimit = errors.New("turn limit reached")
)

// Engine is the simulation the executor drives. Step issues commands, advances one turn
// and reports feedback for the commands in flight, keyed by engine unit id.
type Engine interface {
	Snapshot(ctx context.Context) (*core.Snapshot, error)
	Step(ctx context.Context, commands []Command) (map[int]Feedback, error)
}

// Progress is reported after every executed turn.
type Progress struct {
	Turn      int       `json:"turn"`
	Step      int       `json:"step"`  // steps issued so far
	Steps     int       `json:"steps"` // steps in the plan
	Issued    []Command `json:"issued,omitempty"`
	InFlight  int       `json:"in_flight"`
	Retries   int       `json:"retries"`
	Completed bool      `json:"completed"`
}

// ExecutionResult summarises a finished execution.
type ExecutionResult struct {
	Turns    int
	Steps    int
	Retries  int
	Produced []int // engine ids of workers produced during the run
}

// Executor walks a plan against an Engine, one step at a time.
type Executor struct {
	engine     Engine
	plan       *Plan
	goal       core.Goal
	translator *Translator

	// planning id <-> engine id
	planningIDs map[int]int
	engineIDs   map[int]int

	MaxTurns   int
	MaxRetries int
	OnProgress func(Progress)
	logger     func(string)
}

// NewExecutor creates an executor. ids maps engine worker ids to the planning ids the
// plan was made with; nil assigns them from the engine's first snapshot.
func NewExecutor(engine Engine, plan *Plan, goal core.Goal, ids map[int]int, logger func(string)) *Executor {
	if logger == nil {
		logger = func(string) {}
	}
	e := &Executor{
		engine:      engine,
		plan:        plan,
		goal:        goal,
		planningIDs: make(map[int]int),
		engineIDs:   make(map[int]int),
		MaxTurns:    1000,
		MaxRetries:  3,
		logger:      logger,
	}
	for engineID, planningID := range ids {
		e.register(engineID, planningID)
	}
	e.translator = NewTranslator(e.engineIDs)
	return e
}

func (e *Executor) register(engineID, planningID int) {
	e.planningIDs[engineID] = planningID
	e.engineIDs[planningID] = engineID
}

// registerNew gives every unknown engine worker the next planning id, lowest engine id first.
func (e *Executor) registerNew(workers []core.WorkerView) {
	var unknown []int
	for _, w := range workers {
		if _, ok := e.planningIDs[w.ID]; !ok {
			unknown = append(unknown, w.ID)
		}
	}
	sort.Ints(unknown)
	for _, id := range unknown {
		e.register(id, e.nextPlanningID())
	}
}

func (e *Executor) nextPlanningID() int {
	next := 1
	for planningID := range e.engineIDs {
		if planningID >= next {
			next = planningID + 1
		}
	}
	return next
}

// Run executes the whole plan. It returns once every step has completed, or with an
// error when a step cannot be issued, a command exhausts its retries or the turn limit
// is reached.
func (e *Executor) Run(ctx context.Context) (*ExecutionResult, error) {
	steps := e.plan.Steps
	result := &ExecutionResult{}
	inFlight := make(map[int]Command)
	retries := make(map[int]int)
	var reissue []Command

	for turn := 0; ; turn++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if len(inFlight) == 0 && result.Steps == len(steps) {
			e.logger(fmt.Sprintf("Plan completed in %d turns", turn))
			result.Turns = turn
			return result, nil
		}
		if turn >= e.MaxTurns {
			result.Turns = turn
			return result, fmt.Errorf("%w: %d turns, %d of %d steps issued", ErrTurnLimit, turn, result.Steps, len(steps))
		}

		var issue []Command
		if len(inFlight) == 0 {
			step := steps[result.Steps]
			commands, err := e.prepare(ctx, step)
			if err != nil {
				return result, fmt.Errorf("step %d: %w", result.Steps+1, err)
			}
			e.logger(fmt.Sprintf("Turn %d: issuing step %d: %s", turn, result.Steps+1, step))
			result.Steps++
			clear(retries)
			for _, cmd := range commands {
				inFlight[cmd.UnitID] = cmd
			}
			issue = commands
		} else {
			issue = reissue
		}
		reissue = nil

		feedback, err := e.engine.Step(ctx, issue)
		if err != nil {
			return result, fmt.Errorf("failed to step engine: %w", err)
		}

		for _, unit := range sortedUnits(feedback) {
			cmd, ok := inFlight[unit]
			if !ok {
				continue
			}
			fb := feedback[unit]
			switch fb.Status {
			case Completed:
				delete(inFlight, unit)
				if cmd.Kind == CommandProduce && fb.ProducedID != 0 {
					if _, known := e.planningIDs[fb.ProducedID]; !known {
						e.register(fb.ProducedID, e.nextPlanningID())
					}
					result.Produced = append(result.Produced, fb.ProducedID)
				}
			case Failed:
				retries[unit]++
				result.Retries++
				if retries[unit] > e.MaxRetries {
					return result, fmt.Errorf("%w: %s: %s", ErrCommandRetries, cmd, fb.Message)
				}
				e.logger(fmt.Sprintf("Turn %d: %s failed (%s), retry %d", turn, cmd, fb.Message, retries[unit]))
				reissue = append(reissue, cmd)
			}
		}

		if e.OnProgress != nil {
			e.OnProgress(Progress{
				Turn:      turn,
				Step:      result.Steps,
				Steps:     len(steps),
				Issued:    issue,
				InFlight:  len(inFlight),
				Retries:   result.Retries,
				Completed: len(inFlight) == 0 && result.Steps == len(steps),
			})
		}
	}
}

// prepare rebuilds the live planning state, checks step against it and translates it.
func (e *Executor) prepare(ctx context.Context, step Action) ([]Command, error) {
	snap, err := e.engine.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	e.registerNew(snap.Workers)
	state, err := FromSnapshot(snap, e.goal, e.planningIDs)
	if err != nil {
		return nil, err
	}
	if !step.PreconditionsMet(state) {
		return nil, fmt.Errorf("%w: %s", ErrStalePrecondition, step)
	}
	return e.translator.Translate(step, state)
}

func sortedUnits(feedback map[int]Feedback) []int {
	units := make([]int, 0, len(feedback))
	for unit := range feedback {
		units = append(units, unit)
	}
	sort.Ints(units)
	return units
}
