package game

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrPlanNotFound is returned when every reachable state was expanded without meeting the goal.
	ErrPlanNotFound = errors.New("no plan reaches the goal")
	// ErrSearchLimit is returned when the expansion cap or the context deadline stops the search.
	ErrSearchLimit = errors.New("search limit reached")
)

// progressEvery controls how often the solver reports progress to its logger.
const progressEvery = 10000

// ExpansionEvent describes one node taken off the open list.
type ExpansionEvent struct {
	Seq       int     `json:"seq"`
	Hash      uint64  `json:"hash"`
	Cost      float64 `json:"g"`
	Heuristic float64 `json:"h"`
	Depth     int     `json:"depth"`
	Open      int     `json:"open"`
	Closed    int     `json:"closed"`
	Goal      bool    `json:"goal,omitempty"`
}

// SearchTracer receives every expansion of a search.
type SearchTracer interface {
	OnExpand(ev ExpansionEvent)
}

// AStarSolver is the core A* search algorithm.
type AStarSolver struct {
	Generator     *ActionGenerator
	Heuristic     Heuristic
	MaxExpansions int // 0 means unlimited
	Tracer        SearchTracer
	logger        func(string)
}

// NewAStarSolver creates a new AStarSolver. A nil heuristic selects AdmissibleHeuristic.
func NewAStarSolver(generator *ActionGenerator, heuristic Heuristic, logger func(string)) *AStarSolver {
	if generator == nil {
		generator = NewActionGenerator()
	}
	if heuristic == nil {
		heuristic = AdmissibleHeuristic{}
	}
	if logger == nil {
		logger = func(string) {}
	}
	return &AStarSolver{
		Generator: generator,
		Heuristic: heuristic,
		logger:    logger,
	}
}

// FindOptimalPlan searches from start to the cheapest state meeting the depot's goal.
// start is not modified; any action log it carries is ignored.
func (s *AStarSolver) FindOptimalPlan(ctx context.Context, start *WorldState) (*Plan, error) {
	root := start.Clone()
	root.Actions = nil
	root.Cost = 0

	h := s.Heuristic.Estimate(root)
	if math.IsInf(h, 1) {
		return nil, ErrPlanNotFound
	}

	openSet := &PriorityQueue{}
	heap.Init(openSet)
	rootNode := &SearchNode{
		State:     root,
		Key:       root.Key(),
		Heuristic: h,
		Priority:  h,
		ParentSeq: -1,
	}
	heap.Push(openSet, rootNode)

	open := map[string]*SearchNode{rootNode.Key: rootNode}
	closedSet := make(map[string]bool)
	inserted, expanded, generated := 1, 0, 0

	for openSet.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w after %d expansions: %w", ErrSearchLimit, expanded, err)
		}

		current := heap.Pop(openSet).(*SearchNode)
		delete(open, current.Key)
		closedSet[current.Key] = true
		seq := expanded
		expanded++

		goal := current.State.IsGoal()
		if s.Tracer != nil {
			s.Tracer.OnExpand(ExpansionEvent{
				Seq:       seq,
				Hash:      current.State.Hash(),
				Cost:      current.Cost,
				Heuristic: current.Heuristic,
				Depth:     len(current.State.Actions),
				Open:      openSet.Len(),
				Closed:    len(closedSet),
				Goal:      goal,
			})
		}
		if goal {
			s.logger(fmt.Sprintf("Goal reached at cost %.0f after %d expansions", current.Cost, expanded))
			return &Plan{
				Steps:     current.State.Steps(),
				Cost:      current.Cost,
				Expanded:  expanded,
				Generated: generated,
			}, nil
		}
		if s.MaxExpansions > 0 && expanded >= s.MaxExpansions {
			return nil, fmt.Errorf("%w: %d expansions", ErrSearchLimit, expanded)
		}
		if expanded%progressEvery == 0 {
			s.logger(fmt.Sprintf("Expanded %d nodes, open %d, best f %.1f", expanded, openSet.Len(), current.Priority))
		}

		for _, child := range s.Generator.Successors(current.State) {
			generated++
			key := child.Key()
			if closedSet[key] {
				continue
			}
			ch := s.Heuristic.Estimate(child)
			if math.IsInf(ch, 1) {
				continue
			}
			if existing, ok := open[key]; ok {
				if existing.Cost <= child.Cost {
					continue
				}
				openSet.update(existing, child, seq, child.Cost, child.Cost+ch)
				continue
			}
			node := &SearchNode{
				State:     child,
				Key:       key,
				Cost:      child.Cost,
				Heuristic: ch,
				Priority:  child.Cost + ch,
				Seq:       inserted,
				ParentSeq: seq,
			}
			inserted++
			heap.Push(openSet, node)
			open[key] = node
		}
	}

	s.logger(fmt.Sprintf("Frontier exhausted after %d expansions", expanded))
	return nil, ErrPlanNotFound
}
