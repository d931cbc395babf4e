package graph

import "fmt"

// PortType is the data-type tag carried by a port. The set is closed.
type PortType string

const (
	PortTypeFlow    PortType = "flow"
	PortTypeAny     PortType = "any"
	PortTypeString  PortType = "string"
	PortTypeNumber  PortType = "number"
	PortTypeBoolean PortType = "boolean"
	PortTypeObject  PortType = "object"
	PortTypeArray   PortType = "array"
)

// Valid reports whether t is one of the known port types.
func (t PortType) Valid() bool {
	switch t {
	case PortTypeFlow, PortTypeAny, PortTypeString, PortTypeNumber,
		PortTypeBoolean, PortTypeObject, PortTypeArray:
		return true
	}
	return false
}

// IsFlow reports whether t is the control-flow type.
func (t PortType) IsFlow() bool { return t == PortTypeFlow }

// Port describes one input or output connection point of a node.
type Port struct {
	ID   string   `json:"id" yaml:"id"`
	Type PortType `json:"type" yaml:"type"`

	// Required ports must eventually receive something.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	// DataRequiredIfConnected turns an empty queue on a wired port into an
	// unmet dependency instead of a "no value" input.
	DataRequiredIfConnected bool `json:"data_required_if_connected,omitempty" yaml:"data_required_if_connected,omitempty"`
	// AlwaysActive flow inputs count as signalled without an upstream producer.
	AlwaysActive bool `json:"always_active,omitempty" yaml:"always_active,omitempty"`
}

// Side tells which face of a node an endpoint sits on.
type Side string

const (
	SideInput  Side = "input"
	SideOutput Side = "output"
)

// PortRef addresses one port of one node.
type PortRef struct {
	NodeID string `json:"node_id"`
	PortID string `json:"port_id"`
}

func (r PortRef) String() string { return fmt.Sprintf("%s.%s", r.NodeID, r.PortID) }

// Endpoint is one end of a connection as the user dragged it.
type Endpoint struct {
	NodeID string
	PortID string
	Side   Side
}

// Ref drops the side information.
func (e Endpoint) Ref() PortRef { return PortRef{NodeID: e.NodeID, PortID: e.PortID} }

// Out and In are shorthands for building endpoints.
func Out(nodeID, portID string) Endpoint {
	return Endpoint{NodeID: nodeID, PortID: portID, Side: SideOutput}
}

func In(nodeID, portID string) Endpoint {
	return Endpoint{NodeID: nodeID, PortID: portID, Side: SideInput}
}

// FindPort returns the port with the given id.
func FindPort(ports []Port, id string) (Port, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}
