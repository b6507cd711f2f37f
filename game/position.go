package game

import "fmt"

// Position is an integer coordinate on the map.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction is one of the eight compass directions used by directional engine commands.
type Direction string

const (
	North     Direction = "NORTH"
	NorthEast Direction = "NORTHEAST"
	East      Direction = "EAST"
	SouthEast Direction = "SOUTHEAST"
	South     Direction = "SOUTH"
	SouthWest Direction = "SOUTHWEST"
	West      Direction = "WEST"
	NorthWest Direction = "NORTHWEST"
	Here      Direction = "HERE"
)

// Distance returns the Chebyshev distance between two positions. Every move cost uses it.
func (p Position) Distance(o Position) int {
	return max(abs(p.X-o.X), abs(p.Y-o.Y))
}

// IsAdjacent reports whether o is within one step in each axis, including p itself.
func (p Position) IsAdjacent(o Position) bool {
	return p.Distance(o) <= 1
}

// Step returns the position one move closer to target.
func (p Position) Step(target Position) Position {
	return Position{X: p.X + sign(target.X-p.X), Y: p.Y + sign(target.Y-p.Y)}
}

// DirectionTo returns the direction of the first step from p towards o.
// y grows southwards, as on the engine's map.
func (p Position) DirectionTo(o Position) Direction {
	dx, dy := sign(o.X-p.X), sign(o.Y-p.Y)
	switch {
	case dx == 0 && dy < 0:
		return North
	case dx > 0 && dy < 0:
		return NorthEast
	case dx > 0 && dy == 0:
		return East
	case dx > 0 && dy > 0:
		return SouthEast
	case dx == 0 && dy > 0:
		return South
	case dx < 0 && dy > 0:
		return SouthWest
	case dx < 0 && dy == 0:
		return West
	case dx < 0 && dy < 0:
		return NorthWest
	}
	return Here
}

// Offset returns the neighbouring position in direction d.
func (p Position) Offset(d Direction) Position {
	switch d {
	case North:
		return Position{X: p.X, Y: p.Y - 1}
	case NorthEast:
		return Position{X: p.X + 1, Y: p.Y - 1}
	case East:
		return Position{X: p.X + 1, Y: p.Y}
	case SouthEast:
		return Position{X: p.X + 1, Y: p.Y + 1}
	case South:
		return Position{X: p.X, Y: p.Y + 1}
	case SouthWest:
		return Position{X: p.X - 1, Y: p.Y + 1}
	case West:
		return Position{X: p.X - 1, Y: p.Y}
	case NorthWest:
		return Position{X: p.X - 1, Y: p.Y - 1}
	}
	return p
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
