package game

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"gather-go/core"
)

// RemoteEngine drives a simulation served over HTTP. The state page is parsed with
// core.Extractor; commands are posted as a form with one entry per command in each of
// the unit, kind, x, y, direction and template fields.
type RemoteEngine struct {
	wrapper     core.WebWrapperInterface
	StatePath   string
	CommandPath string
}

// NewRemoteEngine creates a RemoteEngine over wrapper.
func NewRemoteEngine(wrapper core.WebWrapperInterface) *RemoteEngine {
	return &RemoteEngine{
		wrapper:     wrapper,
		StatePath:   "state",
		CommandPath: "command",
	}
}

// Snapshot fetches and parses the state page.
func (e *RemoteEngine) Snapshot(ctx context.Context) (*core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := e.wrapper.GetURL(e.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	body, err := core.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	if h, err := core.Extractor.HToken(body); err == nil {
		e.wrapper.SetHToken(h)
	}
	snap, err := core.Extractor.Snapshot(body)
	if err != nil {
		return nil, fmt.Errorf("failed to extract state: %w", err)
	}
	return snap, nil
}

// Step posts commands and returns the feedback page's rows.
func (e *RemoteEngine) Step(ctx context.Context, commands []Command) (map[int]Feedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := e.wrapper.PostURL(e.CommandPath, encodeCommands(commands))
	if err != nil {
		return nil, fmt.Errorf("failed to post commands: %w", err)
	}
	body, err := core.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}
	rows, err := core.Extractor.Feedback(body)
	if err != nil {
		return nil, fmt.Errorf("failed to extract feedback: %w", err)
	}

	feedback := make(map[int]Feedback, len(rows))
	for _, row := range rows {
		fb := Feedback{ProducedID: row.ProducedID, Message: row.Message}
		switch row.Status {
		case "COMPLETED":
			fb.Status = Completed
		case "FAILED":
			fb.Status = Failed
		case "INCOMPLETE", "":
			fb.Status = Incomplete
		default:
			return nil, fmt.Errorf("unknown feedback status %q for unit %d", row.Status, row.Unit)
		}
		feedback[row.Unit] = fb
	}
	return feedback, nil
}

func encodeCommands(commands []Command) url.Values {
	data := url.Values{}
	for _, cmd := range commands {
		data.Add("unit", strconv.Itoa(cmd.UnitID))
		data.Add("kind", string(cmd.Kind))
		data.Add("x", strconv.Itoa(cmd.Target.X))
		data.Add("y", strconv.Itoa(cmd.Target.Y))
		data.Add("direction", string(cmd.Direction))
		data.Add("template", cmd.Template)
	}
	return data
}
