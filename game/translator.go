package game

import "fmt"

// CommandKind is the engine-level verb of a Command.
type CommandKind string

const (
	CommandMove    CommandKind = "move"
	CommandGather  CommandKind = "gather"
	CommandDeposit CommandKind = "deposit"
	CommandProduce CommandKind = "produce"
)

// WorkerTemplate is the unit template a depot produces.
const WorkerTemplate = "worker"

// Command is one order for one engine unit. UnitID is the engine id of the worker, or of
// the depot for production.
type Command struct {
	Kind      CommandKind `json:"kind"`
	UnitID    int         `json:"unit"`
	Target    Position    `json:"target"`
	Direction Direction   `json:"direction,omitempty"`
	Template  string      `json:"template,omitempty"`
}

func (c Command) String() string {
	switch c.Kind {
	case CommandMove:
		return fmt.Sprintf("move unit %d to %s", c.UnitID, c.Target)
	case CommandProduce:
		return fmt.Sprintf("produce %s at %d", c.Template, c.UnitID)
	}
	return fmt.Sprintf("%s unit %d %s", c.Kind, c.UnitID, c.Direction)
}

// FeedbackStatus is the engine's verdict on a command after a turn.
type FeedbackStatus int

const (
	Incomplete FeedbackStatus = iota
	Completed
	Failed
)

func (s FeedbackStatus) String() string {
	switch s {
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	}
	return "INCOMPLETE"
}

// Feedback reports the state of the command last issued to a unit.
type Feedback struct {
	Status     FeedbackStatus `json:"status"`
	ProducedID int            `json:"produced_id,omitempty"` // engine id of a produced worker
	Message    string         `json:"message,omitempty"`
}

// Translator turns plan steps into engine commands.
type Translator struct {
	// engineIDs maps planning worker ids to engine unit ids.
	engineIDs map[int]int
}

// NewTranslator creates a Translator over a planning-to-engine id map. The map is
// shared with the caller so workers registered later are seen.
func NewTranslator(engineIDs map[int]int) *Translator {
	return &Translator{engineIDs: engineIDs}
}

// Translate returns the commands for step, given the live state it is issued from.
// A joint step yields one command per sub-action, all issued in the same turn.
func (t *Translator) Translate(step Action, state *WorldState) ([]Command, error) {
	var commands []Command
	for _, a := range flatten(step) {
		cmd, err := t.translate(a, state)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func (t *Translator) translate(a Action, state *WorldState) (Command, error) {
	switch a := a.(type) {
	case *MoveToResourceAction:
		unit, err := t.unit(a.WorkerID)
		return Command{Kind: CommandMove, UnitID: unit, Target: a.Target}, err
	case *MoveToDepotAction:
		unit, err := t.unit(a.WorkerID)
		return Command{Kind: CommandMove, UnitID: unit, Target: a.Target}, err
	case *PickUpAction:
		unit, err := t.unit(a.WorkerID)
		if err != nil {
			return Command{}, err
		}
		w := state.Workers[a.WorkerID]
		return Command{Kind: CommandGather, UnitID: unit, Target: a.Target, Direction: w.Pos.DirectionTo(a.Target)}, nil
	case *DepositAction:
		unit, err := t.unit(a.WorkerID)
		if err != nil {
			return Command{}, err
		}
		w := state.Workers[a.WorkerID]
		return Command{Kind: CommandDeposit, UnitID: unit, Target: a.Target, Direction: w.Pos.DirectionTo(a.Target)}, nil
	case *ProduceWorkerAction:
		return Command{Kind: CommandProduce, UnitID: a.DepotID, Target: a.At, Template: WorkerTemplate}, nil
	}
	return Command{}, fmt.Errorf("cannot translate %T", a)
}

func (t *Translator) unit(workerID int) (int, error) {
	id, ok := t.engineIDs[workerID]
	if !ok {
		return 0, fmt.Errorf("worker %d has no engine unit", workerID)
	}
	return id, nil
}
