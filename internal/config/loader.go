package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the service config file and applies defaults.
func Load(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a service config document and applies defaults.
func Parse(data []byte) (*ServiceConfig, error) {
	var cfg ServiceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *ServiceConfig) {
	if cfg.Engine.RunWorkers == 0 {
		cfg.Engine.RunWorkers = 4
	}
	if cfg.Engine.QueueDepth == 0 {
		cfg.Engine.QueueDepth = 256
	}
	if cfg.Engine.MaxSubGraphDepth == 0 {
		cfg.Engine.MaxSubGraphDepth = 8
	}
	if cfg.WorkflowsDir == "" {
		cfg.WorkflowsDir = "workflows"
	}
	if cfg.LLM.Provider != "" && cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
}
