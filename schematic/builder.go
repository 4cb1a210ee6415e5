package schematic

import "fmt"

// NodeSpec is the manifest-level description of one node, as a loaded
// config would supply it — manifest parsing itself is out of scope, this
// is just the seam a manifest loader hands values across.
type NodeSpec struct {
	Name      string
	Operation OperationRef
	Config    map[string]any
	Inputs    []PortSignature
	Outputs   []PortSignature
}

// ConnectionSpec is the manifest-level description of one edge.
type ConnectionSpec struct {
	FromNode string
	FromPort string
	ToNode   string
	ToPort   string
	Default  *Default
}

// Definition is the manifest-level schematic: an ordered node list plus an
// ordered connection list, exactly as a builder would receive from a
// validated graph definition.
type Definition struct {
	Nodes       []NodeSpec
	Connections []ConnectionSpec
}

// BuildError reports a problem discovered while constructing a Schematic
// from a Definition — distinct from the validator's ValidationError, which
// only runs once a Schematic already exists. BuildError covers structural
// problems that make a Schematic impossible to represent at all (no nodes,
// duplicate names, a missing boundary node). An unresolvable connection
// endpoint is not a BuildError; see Build.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string { return "schematic: " + e.Reason }

// Build assigns node indices in manifest order and resolves the <input> and
// <output> boundary nodes to their reserved positions. A connection naming
// an instance not declared anywhere in def.Nodes is not rejected here: its
// endpoint is recorded as InvalidNodeIndex and the original name is kept on
// the Edge (FromRef/ToRef), leaving it to ValidateEarly's dangling-reference
// check to report. This lets a Schematic be constructed even when it's
// broken, which the validator's three phases require.
func Build(def Definition) (*Schematic, error) {
	if len(def.Nodes) == 0 {
		return nil, &BuildError{Reason: "definition has no nodes"}
	}

	s := &Schematic{
		byName: make(map[string]NodeIndex, len(def.Nodes)),
	}

	for i, spec := range def.Nodes {
		if _, dup := s.byName[spec.Name]; dup {
			return nil, &BuildError{Reason: fmt.Sprintf("duplicate node name %q", spec.Name)}
		}
		idx := NodeIndex(i)
		s.byName[spec.Name] = idx
		s.nodes = append(s.nodes, Node{
			Index:     idx,
			Name:      spec.Name,
			Operation: spec.Operation,
			Config:    spec.Config,
			Inputs:    spec.Inputs,
			Outputs:   spec.Outputs,
		})
	}

	inputIdx, ok := s.byName[InputNodeName]
	if !ok {
		return nil, &BuildError{Reason: fmt.Sprintf("definition missing reserved node %q", InputNodeName)}
	}
	outputIdx, ok := s.byName[OutputNodeName]
	if !ok {
		return nil, &BuildError{Reason: fmt.Sprintf("definition missing reserved node %q", OutputNodeName)}
	}
	s.inputIndex = inputIdx
	s.outputIndex = outputIdx

	for _, conn := range def.Connections {
		fromIdx, ok := s.byName[conn.FromNode]
		if !ok {
			fromIdx = InvalidNodeIndex
		}
		toIdx, ok2 := s.byName[conn.ToNode]
		if !ok2 {
			toIdx = InvalidNodeIndex
		}
		s.edges = append(s.edges, Edge{
			FromNode: fromIdx,
			FromRef:  conn.FromNode,
			FromPort: conn.FromPort,
			ToNode:   toIdx,
			ToRef:    conn.ToNode,
			ToPort:   conn.ToPort,
			Default:  conn.Default,
		})
	}

	return s, nil
}
