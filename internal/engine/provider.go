package engine

import (
	"github.com/gyaneshwarpardhi/nodeflow/internal/config"
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

// LibraryGraphs serves graphs from the workflow library. Each call builds a
// fresh graph, so runs never share data bags and a hot reload takes effect
// on the next run.
func LibraryGraphs(lib *config.Library, ports graph.PortLookup) nodetype.GraphProvider {
	return nodetype.GraphProviderFunc(func(id string) (*graph.Graph, error) {
		w, err := lib.Workflow(id)
		if err != nil {
			return nil, err
		}
		return w.Build(ports)
	})
}
