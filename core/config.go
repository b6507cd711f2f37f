package core

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// PlannerConfig holds the goal and search settings.
type PlannerConfig struct {
	RequiredGold   int     `yaml:"required_gold"`
	RequiredWood   int     `yaml:"required_wood"`
	BuildWorkers   bool    `yaml:"build_workers"`
	Heuristic      string  `yaml:"heuristic"`
	GoldBias       float64 `yaml:"gold_bias"`
	MaxExpansions  int     `yaml:"max_expansions"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Goal returns the planner goal configured here.
func (p PlannerConfig) Goal() Goal {
	return Goal{Gold: p.RequiredGold, Wood: p.RequiredWood, BuildWorkers: p.BuildWorkers}
}

// ExecutorConfig holds the plan execution limits.
type ExecutorConfig struct {
	MaxTurns   int `yaml:"max_turns"`
	MaxRetries int `yaml:"max_retries"`
}

// OutputConfig says where plans, traces and the run index are written.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	PlanFile string `yaml:"plan_file"`
	Compress bool   `yaml:"compress"`
	Trace    bool   `yaml:"trace"`
	DBPath   string `yaml:"db_path"`
}

// EngineConfig holds the remote engine settings.
type EngineConfig struct {
	URL         string            `yaml:"url"`
	RandomDelay RandomDelayConfig `yaml:"random_delay"`
}

// RandomDelayConfig specifies the min/max delay for requests, in milliseconds.
type RandomDelayConfig struct {
	MinDelay int `yaml:"min_delay"`
	MaxDelay int `yaml:"max_delay"`
}

// WebManagerConfig holds web UI related settings.
type WebManagerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// ScenarioConfig points at the scenario to plan for.
type ScenarioConfig struct {
	Path string `yaml:"path"`
}

// Config corresponds to the structure of the YAML config file.
type Config struct {
	Planner    PlannerConfig    `yaml:"planner"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Output     OutputConfig     `yaml:"output"`
	Engine     EngineConfig     `yaml:"engine"`
	WebManager WebManagerConfig `yaml:"webmanager"`
	Scenario   ScenarioConfig   `yaml:"scenario"`
}

// DefaultConfig returns the configuration written when none exists.
func DefaultConfig() *Config {
	return &Config{
		Planner: PlannerConfig{
			RequiredGold:   200,
			RequiredWood:   200,
			Heuristic:      "admissible",
			GoldBias:       1.0,
			MaxExpansions:  500000,
			TimeoutSeconds: 60,
		},
		Executor: ExecutorConfig{
			MaxTurns:   5000,
			MaxRetries: 3,
		},
		Output: OutputConfig{
			Dir:      "saves",
			PlanFile: "plan.txt",
			Compress: true,
			Trace:    false,
			DBPath:   "saves/runs.db",
		},
		Engine: EngineConfig{
			RandomDelay: RandomDelayConfig{MinDelay: 0, MaxDelay: 0},
		},
		WebManager: WebManagerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Scenario: ScenarioConfig{
			Path: "scenarios/default.yaml",
		},
	}
}

// ConfigManager handles loading and saving of the configuration.
type ConfigManager struct {
	configPath string
	config     *Config
	lock       sync.Mutex
}

// NewConfigManager loads path, writing the defaults there first when it does not exist.
func NewConfigManager(path string) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: path,
	}

	exists, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}
	if !exists {
		cm.config = DefaultConfig()
		if err := cm.SaveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}
	if err := cm.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cm, nil
}

// Validate checks the configuration values the planner and executor depend on.
func (cm *ConfigManager) Validate() error {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.config.Validate()
}

// Validate checks the configuration values the planner and executor depend on.
func (c *Config) Validate() error {
	p := c.Planner
	if p.RequiredGold < 0 || p.RequiredWood < 0 {
		return fmt.Errorf("required resources cannot be negative")
	}
	switch p.Heuristic {
	case "", "admissible", "greedy":
	default:
		return fmt.Errorf("unknown heuristic %q", p.Heuristic)
	}
	if p.GoldBias < 0 {
		return fmt.Errorf("gold_bias cannot be negative")
	}
	if p.MaxExpansions < 0 || p.TimeoutSeconds < 0 {
		return fmt.Errorf("search limits cannot be negative")
	}
	if c.Executor.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive")
	}
	if c.Executor.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.Output.PlanFile == "" {
		return fmt.Errorf("output plan_file is not set")
	}
	if d := c.Engine.RandomDelay; d.MinDelay < 0 || d.MaxDelay < d.MinDelay && d.MaxDelay != 0 {
		return fmt.Errorf("invalid random delay %d-%d", d.MinDelay, d.MaxDelay)
	}
	if c.WebManager.Enabled && (c.WebManager.Port <= 0 || c.WebManager.Port > 65535) {
		return fmt.Errorf("invalid webmanager port %d", c.WebManager.Port)
	}
	return nil
}

// LoadConfig loads the configuration from the specified YAML file.
func (cm *ConfigManager) LoadConfig() (bool, error) {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	file, err := os.ReadFile(cm.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(file, config); err != nil {
		return false, fmt.Errorf("failed to decode YAML from config file: %w", err)
	}
	cm.config = config
	return true, nil
}

// saveConfig is the internal, non-locking implementation of saving the configuration.
func (cm *ConfigManager) saveConfig() error {
	data, err := yaml.Marshal(cm.config)
	if err != nil {
		return fmt.Errorf("failed to encode config to YAML: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write to config file: %w", err)
	}
	return nil
}

// SaveConfig saves the current configuration to the YAML file.
func (cm *ConfigManager) SaveConfig() error {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.saveConfig()
}

// GetConfig returns the entire configuration.
func (cm *ConfigManager) GetConfig() *Config {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.config
}

// SetConfig sets the configuration for testing purposes.
func (cm *ConfigManager) SetConfig(config *Config) {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	cm.config = config
}

// UpdateGoal changes the planner goal and saves the config.
func (cm *ConfigManager) UpdateGoal(goal Goal) error {
	if goal.Gold < 0 || goal.Wood < 0 {
		return fmt.Errorf("required resources cannot be negative")
	}
	cm.lock.Lock()
	defer cm.lock.Unlock()
	cm.config.Planner.RequiredGold = goal.Gold
	cm.config.Planner.RequiredWood = goal.Wood
	cm.config.Planner.BuildWorkers = goal.BuildWorkers
	return cm.saveConfig()
}
