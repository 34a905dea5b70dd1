package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Generation Generation `yaml:"generation"`
	Routing    Routing    `yaml:"routing"`
	Queue      Queue      `yaml:"queue"`
	Quality    Quality    `yaml:"quality"`
	Research   Research   `yaml:"research"`
	Features   Features   `yaml:"features"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
}

type Generation struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	OllamaURL   string  `yaml:"ollama_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// Routing holds overrides for the static task -> model table.
type Routing struct {
	Overrides     map[string]string `yaml:"overrides"`
	ReviewerModel string            `yaml:"reviewer_model"`
}

type Queue struct {
	Workers           int `yaml:"workers"`
	MaxAttempts       int `yaml:"max_attempts"`
	StaleAfterMinutes int `yaml:"stale_after_minutes"`
	SweepIntervalSecs int `yaml:"sweep_interval_secs"`
	PollIntervalSecs  int `yaml:"poll_interval_secs"`
}

type Quality struct {
	MinWords            int     `yaml:"min_words"`
	BurstinessThreshold float64 `yaml:"burstiness_threshold"`
	DuplicateThreshold  float64 `yaml:"duplicate_threshold"`
}

type Research struct {
	CacheTTLHours  int      `yaml:"cache_ttl_hours"`
	FeedURLs       []string `yaml:"feed_urls"`
	MaxCompetitors int      `yaml:"max_competitors"`
}

type Features struct {
	InternalLinking bool `yaml:"internal_linking"`
	AIReviewer      bool `yaml:"ai_reviewer"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for contentforge.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "contentforge")
}

// DataDir returns the XDG data directory for contentforge.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "contentforge")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/contentforge/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'contentforge init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Generation: Generation{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			OllamaURL:   "http://localhost:11434",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   4096,
			Temperature: 0.7,
			TimeoutSecs: 120,
		},
		Queue: Queue{
			Workers:           2,
			MaxAttempts:       3,
			StaleAfterMinutes: 15,
			SweepIntervalSecs: 120,
			PollIntervalSecs:  2,
		},
		Quality: Quality{
			MinWords:            900,
			BurstinessThreshold: 0.35,
			DuplicateThreshold:  0.4,
		},
		Research: Research{
			CacheTTLHours:  72,
			MaxCompetitors: 3,
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// StaleAge returns the processing age past which a job counts as stuck.
func (c *Config) StaleAge() time.Duration {
	return time.Duration(c.Queue.StaleAfterMinutes) * time.Minute
}

// SweepInterval returns how often the stale-lock sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Queue.SweepIntervalSecs) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
