// Package schematic implements the immutable directed multigraph of
// operation instances ("nodes") connected by named, typed ports
// ("edges") that the interpreter executes.
//
// A Schematic is built once, from a manifest-level Definition, and never
// mutated afterward; NodeIndex values are the internal currency used
// everywhere else in the engine, giving O(1) lookup into per-transaction
// instance arrays instead of repeated name resolution.
package schematic

import "fmt"

// NodeIndex is a small integer identifying a node within a Schematic. It is
// stable for the lifetime of the Schematic.
type NodeIndex int

// PortDirection distinguishes a node's input ports from its output ports.
type PortDirection int

const (
	// Input identifies a node's input port set.
	Input PortDirection = iota
	// Output identifies a node's output port set.
	Output
)

func (d PortDirection) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// PortRef identifies one port on one node: (node, direction, index within
// that node's port list of that direction).
type PortRef struct {
	Node      NodeIndex
	Direction PortDirection
	Index     int
}

// PortSignature names one input or output port and its declared type. Type
// is a simple compatibility tag (e.g. "bytes", "string", "object"); the
// interpreter never interprets it beyond equality/"any" checks performed by
// the validator.
type PortSignature struct {
	Name string
	Type string
}

// OperationRef names the operation an instance runs: a namespace plus a
// name, e.g. {Namespace: "self", Name: "classify"}.
type OperationRef struct {
	Namespace string
	Name      string
}

// Qualified reports whether both namespace and name are present.
func (o OperationRef) Qualified() bool {
	return o.Namespace != "" && o.Name != ""
}

func (o OperationRef) String() string {
	return fmt.Sprintf("%s::%s", o.Namespace, o.Name)
}

// Signature is the port list of a resolved operation, as reported by a
// component's List() call (see package component). The validator's late
// and final phases check connections against Signatures, not against the
// Node's own declared Inputs/Outputs (which may be provisional until a
// component is resolved).
type Signature struct {
	Inputs  []PortSignature
	Outputs []PortSignature
}

// Resolver looks up the Signature for an operation reference. A nil, false
// return means the operation's signature isn't known yet — the late/final
// validator phases report this as MissingComponentModels.
type Resolver func(op OperationRef) (Signature, bool)

// Node is one vertex of a Schematic: an operation instance with a stable
// index, a per-instance configuration blob, and declared port signatures.
type Node struct {
	Index     NodeIndex
	Name      string
	Operation OperationRef
	Config    map[string]any
	Inputs    []PortSignature
	Outputs   []PortSignature
}

// Default is the literal substituted on an edge when its upstream port
// delivers an error packet instead of data. Leaves of Literal may contain
// the "${error.message}" placeholder (see package packet, ApplyDefault).
type Default struct {
	Literal any
}

// InvalidNodeIndex marks an edge endpoint whose instance name did not
// resolve to a declared node. The Schematic still holds such an edge — it
// is the validator's job to report it as DanglingReference, not the
// builder's job to reject it.
const InvalidNodeIndex NodeIndex = -1

// Edge connects one node's named output port to another node's named
// input port, with an optional Default. FromNode/ToNode are
// InvalidNodeIndex when the corresponding *Ref name didn't resolve during
// Build.
type Edge struct {
	FromNode NodeIndex
	FromRef  string
	FromPort string
	ToNode   NodeIndex
	ToRef    string
	ToPort   string
	Default  *Default
}

// HasDefault reports whether e carries a default literal.
func (e Edge) HasDefault() bool { return e.Default != nil }

// Reserved node names a Definition must use for the schematic's external
// input and output boundary nodes.
const (
	InputNodeName  = "<input>"
	OutputNodeName = "<output>"
)

// NoneNodeName is the reserved source name for an edge that carries only a
// default literal and has no real upstream at all — a port may be
// satisfied purely by its default. Build leaves such an edge's
// FromNode as InvalidNodeIndex with FromRef set to NoneNodeName; the
// validator exempts this specific name from dangling-reference and
// reachability checks, and the interpreter seeds the destination port
// directly from the literal instead of waiting on a connection.
const NoneNodeName = "<none>"

// Schematic is the immutable, validated-or-not-yet graph. Construct one
// with Build; validate it with ValidateEarly/ValidateLate/ValidateFinal
// before handing it to the interpreter.
type Schematic struct {
	nodes       []Node
	edges       []Edge
	inputIndex  NodeIndex
	outputIndex NodeIndex
	byName      map[string]NodeIndex
}

// Nodes returns the schematic's nodes in stable, manifest-derived order.
func (s *Schematic) Nodes() []Node {
	return s.nodes
}

// Node returns the node at the given index. Panics if index is out of
// range — callers only ever hold indices this Schematic itself produced.
func (s *Schematic) Node(idx NodeIndex) Node {
	return s.nodes[idx]
}

// NodeByName resolves an instance name to its index.
func (s *Schematic) NodeByName(name string) (NodeIndex, bool) {
	idx, ok := s.byName[name]
	return idx, ok
}

// InputIndex returns the index of the schematic's external input boundary
// node. By convention this is always 0.
func (s *Schematic) InputIndex() NodeIndex { return s.inputIndex }

// OutputIndex returns the index of the schematic's external output
// boundary node. By convention this is the highest populated index.
func (s *Schematic) OutputIndex() NodeIndex { return s.outputIndex }

// GetPortName resolves a PortRef to its declared name on the referenced
// node, using that node's own Inputs/Outputs lists (not a resolved
// component signature — callers needing the resolved signature should
// consult a Resolver directly).
func (s *Schematic) GetPortName(ref PortRef) (string, bool) {
	node := s.nodes[ref.Node]
	var ports []PortSignature
	if ref.Direction == Input {
		ports = node.Inputs
	} else {
		ports = node.Outputs
	}
	if ref.Index < 0 || ref.Index >= len(ports) {
		return "", false
	}
	return ports[ref.Index].Name, true
}

// Connections returns the edges attached to the given node in the given
// direction, in manifest order with ties broken by port name.
func (s *Schematic) Connections(idx NodeIndex, dir PortDirection) []Edge {
	var out []Edge
	for _, e := range s.edges {
		if dir == Output && e.FromNode == idx {
			out = append(out, e)
		} else if dir == Input && e.ToNode == idx {
			out = append(out, e)
		}
	}
	sortEdgesByPort(out, dir)
	return out
}

// Edges returns every edge in the schematic, in manifest (construction)
// order.
func (s *Schematic) Edges() []Edge {
	return s.edges
}

func sortEdgesByPort(edges []Edge, dir PortDirection) {
	// Manifest order is already the primary order (edges are appended in
	// construction order); this is a stable tie-break on port name only,
	// so a plain insertion sort keeping equal-port relative order is enough
	// and avoids pulling in sort.Slice's allocation for the common small-N
	// case of a node's connections.
	for i := 1; i < len(edges); i++ {
		j := i
		for j > 0 && portOf(edges[j-1], dir) > portOf(edges[j], dir) {
			edges[j-1], edges[j] = edges[j], edges[j-1]
			j--
		}
	}
}

func portOf(e Edge, dir PortDirection) string {
	if dir == Output {
		return e.FromPort
	}
	return e.ToPort
}
