// Package config loads timebox configuration from timebox.yaml plus
// environment variables. Secrets (tokens, credential paths) come from the
// environment (optionally via a .env file); everything else has a sane
// default so the assistant runs with zero configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OllamaConfig selects the local model endpoints
type OllamaConfig struct {
	BaseURL         string `yaml:"base_url"`
	ClassifierModel string `yaml:"classifier_model"`
	HandlerModel    string `yaml:"handler_model"`
	SearchModel     string `yaml:"search_model"`
}

// IdleConfig tunes the idle watcher
type IdleConfig struct {
	IntervalSec  int  `yaml:"interval_sec"`
	ThresholdSec int  `yaml:"threshold_sec"`
	CooldownSec  int  `yaml:"cooldown_sec"`
	FocusOnly    bool `yaml:"focus_only"`
}

// CalendarConfig configures the external calendar mirror
type CalendarConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	CalendarID      string `yaml:"calendar_id"`
}

// DiscordConfig configures the optional Discord connector
type DiscordConfig struct {
	Token     string `yaml:"-"` // env only
	ChannelID string `yaml:"channel_id"`
}

// Config is the full timebox configuration
type Config struct {
	StateDir       string         `yaml:"state_dir"`
	ParkingWorkers int            `yaml:"parking_workers"`
	ListenAddr     string         `yaml:"listen_addr"`
	Ollama         OllamaConfig   `yaml:"ollama"`
	Idle           IdleConfig     `yaml:"idle"`
	Calendar       CalendarConfig `yaml:"calendar"`
	Discord        DiscordConfig  `yaml:"discord"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		StateDir:       "state",
		ParkingWorkers: 2,
		ListenAddr:     ":8000",
		Ollama: OllamaConfig{
			BaseURL:         "http://localhost:11434",
			ClassifierModel: "qwen2.5:7b",
			HandlerModel:    "qwen2.5:7b",
			SearchModel:     "llama3.2",
		},
		Idle: IdleConfig{
			IntervalSec:  30,
			ThresholdSec: 300,
			CooldownSec:  600,
			FocusOnly:    true,
		},
	}
}

// Load reads timebox.yaml if present, then applies environment overrides.
// A missing config file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	// .env is optional, same as the environment it would populate
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("TIMEBOX_CONFIG")
	}
	if path == "" {
		path = "timebox.yaml"
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if cfg.ParkingWorkers < 1 {
		cfg.ParkingWorkers = 1
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STATE_PATH"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_CLASSIFIER_MODEL"); v != "" {
		c.Ollama.ClassifierModel = v
	}
	if v := os.Getenv("OLLAMA_HANDLER_MODEL"); v != "" {
		c.Ollama.HandlerModel = v
	}
	if v := os.Getenv("OLLAMA_SEARCH_MODEL"); v != "" {
		c.Ollama.SearchModel = v
	}
	if v := os.Getenv("PARKING_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ParkingWorkers = n
		}
	}
	if v := os.Getenv("GOOGLE_CALENDAR_CREDENTIALS_FILE"); v != "" {
		c.Calendar.CredentialsFile = v
	}
	if v := os.Getenv("GOOGLE_CALENDAR_ID"); v != "" {
		c.Calendar.CalendarID = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_ID"); v != "" {
		c.Discord.ChannelID = v
	}
}
