package game

// ProductionCost is the gold withdrawn from the depot to produce one worker.
const ProductionCost = 400

// Depot accumulates deposited resources and produces workers.
type Depot struct {
	ID            int
	Pos           Position
	Required      Stockpile
	Current       Stockpile
	PopulationCap int
	Population    int
	CanProduce    bool
}

// ProductionAllowed reports whether a worker can be produced right now.
func (d *Depot) ProductionAllowed() bool {
	return d.CanProduce &&
		d.Current.CanAfford(Stockpile{Gold: ProductionCost}) &&
		d.Population < d.PopulationCap
}

// Remaining returns how much of each kind is still missing from the goal.
func (d *Depot) Remaining() Stockpile {
	return Stockpile{
		Gold: max(0, d.Required.Gold-d.Current.Gold),
		Wood: max(0, d.Required.Wood-d.Current.Wood),
	}
}
