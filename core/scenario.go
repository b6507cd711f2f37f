package core

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed scenario.schema.json
var scenarioSchema string

// Scenario is a starting snapshot plus an optional goal that overrides the configured one.
type Scenario struct {
	Name     string   `json:"name" yaml:"name"`
	Goal     *Goal    `json:"goal,omitempty" yaml:"goal,omitempty"`
	Snapshot Snapshot `json:"snapshot" yaml:"snapshot"`
}

// GoalOr returns the scenario goal, or fallback when the scenario has none.
func (s *Scenario) GoalOr(fallback Goal) Goal {
	if s.Goal != nil {
		return *s.Goal
	}
	return fallback
}

// ScenarioLoader reads scenario files. Both JSON and YAML documents are checked
// against the same schema before they are decoded.
type ScenarioLoader struct {
	schema *jsonschema.Schema
}

// NewScenarioLoader compiles the embedded scenario schema.
func NewScenarioLoader() (*ScenarioLoader, error) {
	schema, err := jsonschema.CompileString("scenario.schema.json", scenarioSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile scenario schema: %w", err)
	}
	return &ScenarioLoader{schema: schema}, nil
}

// Load reads a scenario from path. The format follows the extension: .json, or .yaml/.yml.
func (l *ScenarioLoader) Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	scenario, err := l.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if scenario.Name == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

// Parse decodes a scenario document in the given format ("json", "yaml" or "yml").
func (l *ScenarioLoader) Parse(data []byte, format string) (*Scenario, error) {
	var doc any
	switch format {
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
	case "yaml", "yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		// Route through JSON so the schema sees the same value types for both formats.
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize YAML: %w", err)
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("failed to normalize YAML: %w", err)
		}
		data = b
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}

	if err := l.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", err)
	}

	var scenario Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := scenario.Snapshot.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}
