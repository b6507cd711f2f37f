package core

import "fmt"

// Snapshot is one observation of the live simulation, as consumed by the planner.
type Snapshot struct {
	Turn      int            `json:"turn" yaml:"turn"`
	Depot     DepotView      `json:"depot" yaml:"depot"`
	Workers   []WorkerView   `json:"workers" yaml:"workers"`
	Resources []ResourceView `json:"resources" yaml:"resources"`
}

// DepotView is the engine's view of the depot.
type DepotView struct {
	ID            int `json:"id" yaml:"id"`
	X             int `json:"x" yaml:"x"`
	Y             int `json:"y" yaml:"y"`
	Gold          int `json:"gold" yaml:"gold"`
	Wood          int `json:"wood" yaml:"wood"`
	Population    int `json:"population" yaml:"population"`
	PopulationCap int `json:"population_cap" yaml:"population_cap"`
}

// WorkerView is the engine's view of a worker. ID is the engine unit id.
type WorkerView struct {
	ID          int    `json:"id" yaml:"id"`
	X           int    `json:"x" yaml:"x"`
	Y           int    `json:"y" yaml:"y"`
	Cargo       string `json:"cargo,omitempty" yaml:"cargo,omitempty"`
	CargoAmount int    `json:"cargo_amount,omitempty" yaml:"cargo_amount,omitempty"`
}

// ResourceView is the engine's view of a resource deposit.
type ResourceView struct {
	ID        int    `json:"id" yaml:"id"`
	X         int    `json:"x" yaml:"x"`
	Y         int    `json:"y" yaml:"y"`
	Kind      string `json:"kind" yaml:"kind"`
	Remaining int    `json:"remaining" yaml:"remaining"`
}

// Goal is what the depot must hold for the scenario to be won.
type Goal struct {
	Gold         int  `json:"gold" yaml:"gold"`
	Wood         int  `json:"wood" yaml:"wood"`
	BuildWorkers bool `json:"build_workers" yaml:"build_workers"`
}

// Validate checks the invariants the planner relies on.
func (s *Snapshot) Validate() error {
	if s.Depot.ID == 0 {
		return fmt.Errorf("snapshot has no depot")
	}
	if s.Depot.Gold < 0 || s.Depot.Wood < 0 {
		return fmt.Errorf("depot stockpile cannot be negative")
	}
	seen := make(map[int]bool, len(s.Workers))
	for _, w := range s.Workers {
		if seen[w.ID] {
			return fmt.Errorf("duplicate worker id %d", w.ID)
		}
		seen[w.ID] = true
		if w.CargoAmount > 0 && w.Cargo != "gold" && w.Cargo != "wood" {
			return fmt.Errorf("worker %d carries unknown cargo %q", w.ID, w.Cargo)
		}
	}
	ids := make(map[int]bool, len(s.Resources))
	for _, r := range s.Resources {
		if ids[r.ID] {
			return fmt.Errorf("duplicate resource id %d", r.ID)
		}
		ids[r.ID] = true
		if r.Remaining < 0 {
			return fmt.Errorf("resource %d has negative quantity", r.ID)
		}
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Workers = append([]WorkerView(nil), s.Workers...)
	c.Resources = append([]ResourceView(nil), s.Resources...)
	return &c
}
