package game

import "fmt"

// BatchAmount is the quantity moved by a single pick-up or deposit.
const BatchAmount = 100

// ResourceKind identifies what a deposit yields.
type ResourceKind int

const (
	GoldDeposit ResourceKind = iota + 1
	WoodDeposit
)

// ParseResourceKind maps the snapshot spelling of a kind ("gold", "wood") to a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch s {
	case "gold", "GOLD", "gold_mine", "GOLD_MINE":
		return GoldDeposit, nil
	case "wood", "WOOD", "tree", "TREE":
		return WoodDeposit, nil
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}

func (k ResourceKind) String() string {
	switch k {
	case GoldDeposit:
		return "gold"
	case WoodDeposit:
		return "wood"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Resource is a depletable deposit. ID, Kind and Pos never change once created.
type Resource struct {
	ID        int
	Kind      ResourceKind
	Pos       Position
	Remaining int
}

// Depleted reports whether the deposit can no longer serve a full batch.
func (r *Resource) Depleted() bool {
	return r.Remaining < BatchAmount
}

// Take withdraws amount from the deposit. Preconditions must have ruled out
// over-withdrawal, so asking for more than remains is a programming error.
func (r *Resource) Take(amount int) {
	if amount > r.Remaining {
		panic(fmt.Sprintf("invalid resource take: %d from resource %d with %d remaining", amount, r.ID, r.Remaining))
	}
	r.Remaining -= amount
}

// Stockpile is an amount of gold and wood.
type Stockpile struct {
	Gold int `json:"gold"`
	Wood int `json:"wood"`
}

// Of returns the amount held of kind.
func (s Stockpile) Of(kind ResourceKind) int {
	if kind == GoldDeposit {
		return s.Gold
	}
	return s.Wood
}

// Add returns s with amount added to kind.
func (s Stockpile) Add(kind ResourceKind, amount int) Stockpile {
	if kind == GoldDeposit {
		s.Gold += amount
	} else {
		s.Wood += amount
	}
	return s
}

// CanAfford checks if there are enough resources for a given cost.
func (s Stockpile) CanAfford(cost Stockpile) bool {
	return s.Gold >= cost.Gold && s.Wood >= cost.Wood
}

// Covers reports whether s meets or exceeds every amount in required.
func (s Stockpile) Covers(required Stockpile) bool {
	return s.CanAfford(required)
}
