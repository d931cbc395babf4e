package config

import (
	"fmt"

	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

// Build constructs a fresh graph from the document. Every call returns an
// independent graph, so data-bag updates made during one run never leak
// into another.
func (w *Workflow) Build(ports graph.PortLookup) (*graph.Graph, error) {
	g := graph.New(w.ID, ports)
	for _, nd := range w.Nodes {
		err := g.AddNode(graph.Node{
			ID:      nd.ID,
			Type:    nd.Type,
			Inputs:  nd.Inputs,
			Outputs: nd.Outputs,
			Data:    nd.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", w.ID, err)
		}
	}
	for i, cd := range w.Connections {
		from := graph.Endpoint{NodeID: cd.From.Node, PortID: cd.From.Port, Side: cd.From.Side}
		to := graph.Endpoint{NodeID: cd.To.Node, PortID: cd.To.Port, Side: cd.To.Side}
		if from.Side == "" {
			from.Side = graph.SideOutput
		}
		if to.Side == "" {
			// Dragged from the input end: the other end is the output.
			to.Side = graph.SideInput
			if from.Side == graph.SideInput {
				to.Side = graph.SideOutput
			}
		}
		if _, err := g.Connect(from, to); err != nil {
			return nil, fmt.Errorf("workflow %s: connections[%d]: %w", w.ID, i, err)
		}
	}
	return g, nil
}
