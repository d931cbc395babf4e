package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

// Validate checks the service config for required fields and sane limits.
func Validate(cfg *ServiceConfig) error {
	var errs []string
	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if cfg.Engine.RunWorkers < 0 {
		errs = append(errs, "engine.run_workers must not be negative")
	}
	if cfg.Engine.QueueDepth < 0 {
		errs = append(errs, "engine.queue_depth must not be negative")
	}
	if cfg.Engine.RunTimeoutMs < 0 {
		errs = append(errs, "engine.run_timeout_ms must not be negative")
	}
	if cfg.Engine.MaxSubGraphDepth < 0 {
		errs = append(errs, "engine.max_subgraph_depth must not be negative")
	}
	switch cfg.LLM.Provider {
	case "", "openai":
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not supported", cfg.LLM.Provider))
	}
	return joinErrors("config", errs)
}

// ValidateWorkflow checks a workflow document for:
//   - Missing or duplicate node ids
//   - Nodes without a type
//   - Invalid port type tags on instance ports
//   - Connections referring to unknown nodes or duplicating another connection
func ValidateWorkflow(w *Workflow) error {
	var errs []string
	ids := make(map[string]int) // id → index

	for i, n := range w.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Sprintf("nodes[%d]: id is required", i))
			continue
		}
		if prev, ok := ids[n.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate node id %q (nodes[%d] and nodes[%d])", n.ID, prev, i))
		} else {
			ids[n.ID] = i
		}
		if n.Type == "" {
			errs = append(errs, fmt.Sprintf("node %s: type is required", n.ID))
		}
		validatePorts(n.ID, "inputs", n.Inputs, &errs)
		validatePorts(n.ID, "outputs", n.Outputs, &errs)
	}

	seen := make(map[[4]string]int)
	for i, c := range w.Connections {
		for _, end := range []EndpointDef{c.From, c.To} {
			if end.Node == "" || end.Port == "" {
				errs = append(errs, fmt.Sprintf("connections[%d]: node and port are required", i))
				continue
			}
			if _, ok := ids[end.Node]; !ok {
				errs = append(errs, fmt.Sprintf("connections[%d]: unknown node %q", i, end.Node))
			}
		}
		from, to := c.From, c.To
		if from.Side == graph.SideInput || to.Side == graph.SideOutput {
			from, to = to, from
		}
		key := [4]string{from.Node, from.Port, to.Node, to.Port}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Sprintf("connections[%d]: duplicates connections[%d]", i, prev))
		} else {
			seen[key] = i
		}
	}

	return joinErrors("workflow "+w.ID, errs)
}

func validatePorts(nodeID, field string, ports []graph.Port, errs *[]string) {
	for j, p := range ports {
		if p.ID == "" {
			*errs = append(*errs, fmt.Sprintf("node %s: %s[%d]: id is required", nodeID, field, j))
		}
		if !p.Type.Valid() {
			*errs = append(*errs, fmt.Sprintf("node %s: %s[%d]: unknown port type %q", nodeID, field, j, p.Type))
		}
	}
}

func joinErrors(scope string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s validation errors:\n  - %s", scope, strings.Join(errs, "\n  - "))
}
