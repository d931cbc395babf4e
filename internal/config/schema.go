package config

import "github.com/gyaneshwarpardhi/nodeflow/internal/graph"

// ServiceConfig is the top-level YAML structure of the service config file.
type ServiceConfig struct {
	Version      string     `yaml:"version"`
	Engine       EngineConf `yaml:"engine"`
	WorkflowsDir string     `yaml:"workflows_dir"`
	LLM          LLMConf    `yaml:"llm"`
}

// EngineConf holds tunable run settings.
type EngineConf struct {
	RunWorkers       int `yaml:"run_workers"`
	QueueDepth       int `yaml:"queue_depth"`
	RunTimeoutMs     int `yaml:"run_timeout_ms"` // 0 = no timeout
	MaxSubGraphDepth int `yaml:"max_subgraph_depth"`
}

// LLMConf selects the text generation backend exposed to node executors.
type LLMConf struct {
	Provider  string `yaml:"provider"` // "openai" or "" to disable
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Workflow is one graph document in the workflows directory.
type Workflow struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description"`
	Nodes       []NodeDef       `yaml:"nodes"`
	Connections []ConnectionDef `yaml:"connections"`
}

// NodeDef places a node of a registered type on the graph.
type NodeDef struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Data    map[string]any `yaml:"data"`
	Inputs  []graph.Port   `yaml:"inputs,omitempty"`
	Outputs []graph.Port   `yaml:"outputs,omitempty"`
}

// ConnectionDef wires From to To. Sides default to output for From and
// input for To, but either end may be given first.
type ConnectionDef struct {
	From EndpointDef `yaml:"from"`
	To   EndpointDef `yaml:"to"`
}

// EndpointDef is one end of a connection.
type EndpointDef struct {
	Node string     `yaml:"node"`
	Port string     `yaml:"port"`
	Side graph.Side `yaml:"side,omitempty"`
}
