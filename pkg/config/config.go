package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ModRootEnv overrides the module root directory
	ModRootEnv = "BURROW_MODS"

	// DefaultModRoot is used when neither config nor env name a module root
	DefaultModRoot = "mods"

	// DefaultCheckPeriod is the redeployer quiescence window
	DefaultCheckPeriod = 2 * time.Second

	// DefaultRepoTimeout bounds a single repository install attempt
	DefaultRepoTimeout = 30 * time.Second
)

// RedeployEngine selects the filesystem-change detection strategy
type RedeployEngine string

const (
	// EngineWatcher uses the OS file-change facility
	EngineWatcher RedeployEngine = "watcher"

	// EnginePolling scans registered trees on a periodic timer
	EnginePolling RedeployEngine = "polling"
)

// Config is the platform configuration, loaded once at start-up.
type Config struct {
	// ModRoot is the directory holding installed modules
	ModRoot string `yaml:"mod_root"`

	// Repositories are tried in order when a module is missing.
	// The list is not thread-safe; mutate only at start-up.
	Repositories []string `yaml:"repositories"`

	// Timer wheel parameters
	TickDuration time.Duration `yaml:"tick_duration"`
	WheelSize    int           `yaml:"wheel_size"`

	// Redeployer
	RedeployEngine RedeployEngine `yaml:"redeploy_engine"`
	CheckPeriod    time.Duration  `yaml:"check_period"`

	// Worker pool size for blocking actions
	PoolSize int `yaml:"pool_size"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`
	LangsFile string `yaml:"langs_file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{
		ModRoot:        DefaultModRoot,
		TickDuration:   100 * time.Millisecond,
		WheelSize:      1024,
		RedeployEngine: EngineWatcher,
		CheckPeriod:    DefaultCheckPeriod,
		PoolSize:       8,
		LogLevel:       "info",
	}
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML configuration file and fills unset fields with
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.fillDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.ModRoot == "" {
		c.ModRoot = d.ModRoot
	}
	if c.TickDuration <= 0 {
		c.TickDuration = d.TickDuration
	}
	if c.WheelSize <= 0 {
		c.WheelSize = d.WheelSize
	}
	if c.RedeployEngine == "" {
		c.RedeployEngine = d.RedeployEngine
	}
	if c.CheckPeriod <= 0 {
		c.CheckPeriod = d.CheckPeriod
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(ModRootEnv); v != "" {
		c.ModRoot = v
	}
}

// Validate rejects combinations the runtime cannot start with
func (c *Config) Validate() error {
	switch c.RedeployEngine {
	case EngineWatcher, EnginePolling:
	default:
		return fmt.Errorf("unknown redeploy engine: %q", c.RedeployEngine)
	}
	if c.WheelSize < 1 {
		return fmt.Errorf("wheel size must be >= 1: %d", c.WheelSize)
	}
	return nil
}
