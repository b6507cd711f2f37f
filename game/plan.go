package game

import (
	"fmt"
	"strings"
)

// Plan is the ordered list of steps found by the solver. A step with several actors is
// a JointAction.
type Plan struct {
	Steps     []Action
	Cost      float64
	Expanded  int // nodes expanded by the search
	Generated int // successors generated by the search
}

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.Steps) }

// Empty reports whether the start state already satisfied the goal.
func (p *Plan) Empty() bool { return len(p.Steps) == 0 }

// Lines renders the plan one action per line as "<step>: <description>", steps numbered
// from 1. The actions of a joint step share its number.
func (p *Plan) Lines() []string {
	var lines []string
	for i, step := range p.Steps {
		for _, a := range flatten(step) {
			lines = append(lines, fmt.Sprintf("%d: %s", i+1, a))
		}
	}
	return lines
}

func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan with %d steps, cost %.0f (%d expanded, %d generated)\n", len(p.Steps), p.Cost, p.Expanded, p.Generated)
	for _, line := range p.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// flatten returns the individual actions of a step.
func flatten(step Action) []Action {
	if j, ok := step.(*JointAction); ok {
		return j.Actions
	}
	return []Action{step}
}
