// Package config loads swarmctl settings. Later sources override earlier
// ones:
//  1. Defaults
//  2. YAML file (--config, or swarmctl.yaml in the working directory)
//  3. .env file in the working directory
//  4. Environment variables (SWARM_*, OLLAMA_HOST)
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultFile = "swarmctl.yaml"

type Config struct {
	// APIURL is the swarm backend base URL. Empty means offline.
	APIURL string `yaml:"api_url"`
	// Token is sent as a bearer token when set.
	Token string `yaml:"token"`
	// DailyBudget is the spend allowance the ledger measures against.
	DailyBudget    float64       `yaml:"daily_budget"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogFile        string        `yaml:"log_file"`

	Suggest SuggestConfig `yaml:"suggest"`
}

// SuggestConfig selects who answers topic quality checks.
type SuggestConfig struct {
	// Backend is "api" (the swarm backend), "gemini" or "ollama".
	Backend    string `yaml:"backend"`
	Model      string `yaml:"model"`
	OllamaHost string `yaml:"ollama_host"`
}

func Default() Config {
	return Config{
		DailyBudget:    10,
		PollInterval:   3 * time.Second,
		RequestTimeout: 30 * time.Second,
		LogFile:        "swarmctl.log",
		Suggest: SuggestConfig{
			Backend: "api",
		},
	}
}

// Load builds a Config from path (or DefaultFile when path is empty), the
// .env file and the environment. A missing file is not an error unless path
// was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.APIURL = getenv("SWARM_API_URL", c.APIURL)
	c.Token = getenv("SWARM_API_TOKEN", c.Token)
	c.LogFile = getenv("SWARM_LOG_FILE", c.LogFile)
	c.Suggest.Backend = getenv("SWARM_SUGGEST_BACKEND", c.Suggest.Backend)
	c.Suggest.Model = getenv("SWARM_SUGGEST_MODEL", c.Suggest.Model)
	c.Suggest.OllamaHost = getenv("OLLAMA_HOST", c.Suggest.OllamaHost)

	var err error
	if c.DailyBudget, err = getenvFloat("SWARM_DAILY_BUDGET", c.DailyBudget); err != nil {
		return err
	}
	if c.PollInterval, err = getenvDuration("SWARM_POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.RequestTimeout, err = getenvDuration("SWARM_REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("api_url %q must be an http(s) URL", c.APIURL)
		}
	}
	if c.DailyBudget < 0 {
		return fmt.Errorf("daily_budget must not be negative, got %v", c.DailyBudget)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	switch c.Suggest.Backend {
	case "api", "gemini", "ollama":
	default:
		return fmt.Errorf("suggest.backend must be api, gemini or ollama, got %q", c.Suggest.Backend)
	}
	return nil
}

// Offline reports whether no backend is configured.
func (c Config) Offline() bool {
	return strings.TrimSpace(c.APIURL) == ""
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getenvFloat(key string, fallback float64) (float64, error) {
	v := getenv(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// getenvDuration accepts Go durations ("1500ms") or a bare number of seconds.
func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
