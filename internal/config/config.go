// Package config loads runtime configuration from the environment with an
// optional YAML file override.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration for the agent daemon.
type Config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	WorkspaceDir  string        `yaml:"workspace_dir"`
	LLMBaseURL    string        `yaml:"llm_base_url"`
	LLMProvider   string        `yaml:"llm_provider"` // "ollama" or "openai"
	LLMModel      string        `yaml:"llm_model"`
	LLMAPIKey     string        `yaml:"llm_api_key"`
	ExecutorURL   string        `yaml:"executor_url"` // remote tool-execution server, empty disables it
	MaxIterations int           `yaml:"max_iterations"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:    ":8137",
		LLMBaseURL:    "http://localhost:11434",
		LLMProvider:   "ollama",
		LLMModel:      "qwen2.5:latest",
		MaxIterations: 5,
		ToolTimeout:   30 * time.Second,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then REAGENT_* environment variables on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(key string, dest *string) {
		if v := os.Getenv(key); v != "" {
			*dest = v
		}
	}
	set("REAGENT_LISTEN_ADDR", &cfg.ListenAddr)
	set("REAGENT_WORKSPACE_DIR", &cfg.WorkspaceDir)
	set("REAGENT_LLM_BASE_URL", &cfg.LLMBaseURL)
	set("REAGENT_LLM_PROVIDER", &cfg.LLMProvider)
	set("REAGENT_LLM_MODEL", &cfg.LLMModel)
	set("REAGENT_LLM_API_KEY", &cfg.LLMAPIKey)
	set("REAGENT_EXECUTOR_URL", &cfg.ExecutorURL)

	if v := os.Getenv("REAGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIterations = n
		}
	}
	if v := os.Getenv("REAGENT_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ToolTimeout = d
		}
	}
}
