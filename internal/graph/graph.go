package graph

import (
	"errors"
	"fmt"
	"maps"
	"sync"
)

var (
	ErrDuplicateNode       = errors.New("node with this ID already exists")
	ErrNodeNotFound        = errors.New("node not found")
	ErrPortNotFound        = errors.New("port not found")
	ErrDuplicateConnection = errors.New("connection already exists")
	ErrSameSide            = errors.New("connection must join an output port to an input port")
)

// Node is a typed unit of computation placed on the canvas.
type Node struct {
	ID   string
	Type string
	// Inputs and Outputs override the ports declared by the node type when set.
	Inputs  []Port
	Outputs []Port
	Data    map[string]any
}

// Connection joins exactly one output-side port to one input-side port.
type Connection struct {
	ID       string
	Source   PortRef
	Target   PortRef
	DataType PortType
}

// PortLookup resolves the declared ports of a node type. The node type
// registry satisfies it.
type PortLookup interface {
	Ports(nodeType string) (inputs, outputs []Port, ok bool)
}

// Graph holds nodes and the connections between them. Structure is fixed
// once a run starts; only node data bags change, through UpdateData.
type Graph struct {
	id    string
	ports PortLookup

	mu       sync.RWMutex // guards node data
	nodes    map[string]*Node
	order    []string
	conns    []*Connection
	bySource map[PortRef][]*Connection
	byTarget map[PortRef][]*Connection
}

// New allocates an empty Graph. ports may be nil.
func New(id string, ports PortLookup) *Graph {
	return &Graph{
		id:       id,
		ports:    ports,
		nodes:    make(map[string]*Node),
		bySource: make(map[PortRef][]*Connection),
		byTarget: make(map[PortRef][]*Connection),
	}
}

// ID returns the graph identifier.
func (g *Graph) ID() string { return g.id }

// AddNode registers a node by its ID.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("add node: empty id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("add node %s: %w", n.ID, ErrDuplicateNode)
	}
	cp := n
	cp.Data = maps.Clone(n.Data)
	if cp.Data == nil {
		cp.Data = make(map[string]any)
	}
	g.nodes[n.ID] = &cp
	g.order = append(g.order, n.ID)
	return nil
}

// Connect wires two endpoints. The endpoints may be given in either drag
// order; the output side always becomes the source.
func (g *Graph) Connect(a, b Endpoint) (Connection, error) {
	if a.Side == b.Side {
		return Connection{}, fmt.Errorf("connect %s -> %s: %w", a.Ref(), b.Ref(), ErrSameSide)
	}
	if a.Side == SideInput {
		a, b = b, a
	}
	src, dst := a.Ref(), b.Ref()

	g.mu.Lock()
	defer g.mu.Unlock()
	srcNode, ok := g.nodes[src.NodeID]
	if !ok {
		return Connection{}, fmt.Errorf("connect: source %s: %w", src.NodeID, ErrNodeNotFound)
	}
	dstNode, ok := g.nodes[dst.NodeID]
	if !ok {
		return Connection{}, fmt.Errorf("connect: target %s: %w", dst.NodeID, ErrNodeNotFound)
	}
	for _, c := range g.bySource[src] {
		if c.Target == dst {
			return Connection{}, fmt.Errorf("connect %s -> %s: %w", src, dst, ErrDuplicateConnection)
		}
	}

	srcType, srcKnown, err := g.portType(srcNode, src.PortID, SideOutput)
	if err != nil {
		return Connection{}, err
	}
	dstType, dstKnown, err := g.portType(dstNode, dst.PortID, SideInput)
	if err != nil {
		return Connection{}, err
	}
	dataType := PortTypeAny
	switch {
	case srcKnown && srcType != PortTypeAny:
		dataType = srcType
	case dstKnown:
		dataType = dstType
	}

	c := &Connection{
		ID:       fmt.Sprintf("%s->%s", src, dst),
		Source:   src,
		Target:   dst,
		DataType: dataType,
	}
	g.conns = append(g.conns, c)
	g.bySource[src] = append(g.bySource[src], c)
	g.byTarget[dst] = append(g.byTarget[dst], c)
	return *c, nil
}

// portType finds the declared type of a port. known is false when neither
// the node nor the registry declares ports for it.
func (g *Graph) portType(n *Node, portID string, side Side) (PortType, bool, error) {
	ports := g.declaredPorts(n, side)
	if ports == nil {
		return PortTypeAny, false, nil
	}
	p, ok := FindPort(ports, portID)
	if !ok {
		return "", false, fmt.Errorf("node %s %s port %q: %w", n.ID, side, portID, ErrPortNotFound)
	}
	return p.Type, true, nil
}

func (g *Graph) declaredPorts(n *Node, side Side) []Port {
	if side == SideInput && len(n.Inputs) > 0 {
		return n.Inputs
	}
	if side == SideOutput && len(n.Outputs) > 0 {
		return n.Outputs
	}
	if g.ports == nil {
		return nil
	}
	in, out, ok := g.ports.Ports(n.Type)
	if !ok {
		return nil
	}
	if side == SideInput {
		return in
	}
	return out
}

// Node returns a snapshot of a node, data bag included.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *n
	cp.Data = maps.Clone(n.Data)
	return cp, true
}

// Nodes returns snapshots of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		cp := *g.nodes[id]
		cp.Data = maps.Clone(cp.Data)
		out = append(out, cp)
	}
	return out
}

// NodeIDs returns node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// NodeCount returns the total number of registered nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Connections returns every connection in creation order.
func (g *Graph) Connections() []Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Connection, 0, len(g.conns))
	for _, c := range g.conns {
		out = append(out, *c)
	}
	return out
}

// Incoming returns the connections feeding an input port.
func (g *Graph) Incoming(nodeID, portID string) []Connection {
	return g.collect(g.byTarget, PortRef{NodeID: nodeID, PortID: portID})
}

// Outgoing returns the connections leaving an output port.
func (g *Graph) Outgoing(nodeID, portID string) []Connection {
	return g.collect(g.bySource, PortRef{NodeID: nodeID, PortID: portID})
}

// IsConnected reports whether an input port has at least one upstream.
func (g *Graph) IsConnected(nodeID, portID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byTarget[PortRef{NodeID: nodeID, PortID: portID}]) > 0
}

func (g *Graph) collect(idx map[PortRef][]*Connection, ref PortRef) []Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cs := idx[ref]
	if len(cs) == 0 {
		return nil
	}
	out := make([]Connection, len(cs))
	for i, c := range cs {
		out[i] = *c
	}
	return out
}

// Data returns a copy of a node's data bag.
func (g *Graph) Data(nodeID string) map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	return maps.Clone(n.Data)
}

// UpdateData merges updates into a node's data bag.
func (g *Graph) UpdateData(nodeID string, updates map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[nodeID]
	if !ok {
		return fmt.Errorf("update data %s: %w", nodeID, ErrNodeNotFound)
	}
	maps.Copy(n.Data, updates)
	return nil
}
