package schematic

import (
	"fmt"
	"sort"

	"github.com/flowgraph/interp/ferr"
)

// selfNamespace is the reserved namespace for a schematic invoking itself
// recursively. The late phase omits it from
// MissingComponentModels/InvalidConnections checks; the final phase does
// not, once the self-signature is known.
const selfNamespace = "self"

// ValidateEarly runs the validator's first phase: checks that don't require
// any external component signature. Errors are collected, not fail-fast,
// within the phase.
func ValidateEarly(s *Schematic) []*ferr.ValidationError {
	var errs []*ferr.ValidationError
	if e := assertNoOutputs(s); e != nil {
		errs = append(errs, e)
	}
	if e := assertNoInputs(s); e != nil {
		errs = append(errs, e)
	}
	if e := assertQualifiedNames(s, true); e != nil {
		errs = append(errs, e)
	}
	if e := assertNoDanglingReferences(s); e != nil {
		errs = append(errs, e)
	}
	for _, e := range errs {
		e.Phase = "early"
	}
	return errs
}

// ValidateLate runs the validator's second phase, after external component
// signatures are known, omitting the "self" namespace (schematics that
// invoke themselves haven't had their own signature pinned down yet).
func ValidateLate(s *Schematic, resolve Resolver) []*ferr.ValidationError {
	errs := validatePorts(s, resolve, []string{selfNamespace})
	for _, e := range errs {
		e.Phase = "late"
	}
	return errs
}

// ValidateFinal re-runs the same checks as ValidateLate without omitting
// "self" — it only runs once cyclic self-references between schematics have
// been pinned down elsewhere.
func ValidateFinal(s *Schematic, resolve Resolver) []*ferr.ValidationError {
	errs := validatePorts(s, resolve, nil)
	for _, e := range errs {
		e.Phase = "final"
	}
	return errs
}

func assertNoOutputs(s *Schematic) *ferr.ValidationError {
	if len(s.Connections(s.outputIndex, Input)) == 0 {
		return &ferr.ValidationError{
			Kind:   "NoOutputs",
			Detail: "output node has no inputs at all",
		}
	}
	return nil
}

// assertNoInputs requires that every input port of the output node is
// transitively reachable from the schematic's input node, or is covered by
// a default.
func assertNoInputs(s *Schematic) *ferr.ValidationError {
	reachable := reachableFrom(s, s.inputIndex)

	var unreachable []string
	for _, e := range s.Connections(s.outputIndex, Input) {
		if e.HasDefault() {
			continue
		}
		if e.FromNode == s.inputIndex || reachable[e.FromNode] {
			continue
		}
		name := e.FromRef
		if e.FromNode != InvalidNodeIndex {
			name = s.nodes[e.FromNode].Name
		}
		unreachable = append(unreachable, name)
	}
	if len(unreachable) == 0 {
		return nil
	}
	return &ferr.ValidationError{
		Kind:   "NoInputs",
		Nodes:  unreachable,
		Detail: "no reachable path from the input node (and no default) for these sources",
	}
}

func reachableFrom(s *Schematic, start NodeIndex) map[NodeIndex]bool {
	seen := map[NodeIndex]bool{start: true}
	queue := []NodeIndex{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range s.Connections(cur, Output) {
			if e.ToNode == InvalidNodeIndex || seen[e.ToNode] {
				continue
			}
			seen[e.ToNode] = true
			queue = append(queue, e.ToNode)
		}
	}
	return seen
}

func assertQualifiedNames(s *Schematic, omitBoundary bool) *ferr.ValidationError {
	var bad []string
	for _, n := range s.nodes {
		if omitBoundary && (n.Index == s.inputIndex || n.Index == s.outputIndex) {
			continue
		}
		if !n.Operation.Qualified() {
			bad = append(bad, n.Name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &ferr.ValidationError{
		Kind:   "NotFullyQualified",
		Nodes:  bad,
		Detail: "operation reference lacks a namespace or a name",
	}
}

func assertNoDanglingReferences(s *Schematic) *ferr.ValidationError {
	seen := map[string]bool{}
	var dangling []string
	for _, e := range s.edges {
		if e.FromNode == InvalidNodeIndex && e.FromRef != InputNodeName && e.FromRef != NoneNodeName && !seen[e.FromRef] {
			seen[e.FromRef] = true
			dangling = append(dangling, e.FromRef)
		}
		if e.ToNode == InvalidNodeIndex && e.ToRef != OutputNodeName && !seen[e.ToRef] {
			seen[e.ToRef] = true
			dangling = append(dangling, e.ToRef)
		}
	}
	if len(dangling) == 0 {
		return nil
	}
	sort.Strings(dangling)
	return &ferr.ValidationError{
		Kind:   "DanglingReference",
		Nodes:  dangling,
		Detail: "connection names an instance not declared in the schematic",
	}
}

func shouldOmit(namespace string, omit []string) bool {
	for _, ns := range omit {
		if ns == namespace {
			return true
		}
	}
	return false
}

// validatePorts implements assert_component_models + assert_ports_used from
// the original validator: every non-boundary node must have a resolvable
// signature (unless its namespace is omitted), and every edge's port must
// exist on the signature it references.
func validatePorts(s *Schematic, resolve Resolver, omitNamespaces []string) []*ferr.ValidationError {
	var errs []*ferr.ValidationError

	missing := map[string]bool{}
	var missingNodes []string
	sigFor := func(idx NodeIndex) (Signature, bool) {
		n := s.nodes[idx]
		sig, ok := resolve(n.Operation)
		if !ok && !shouldOmit(n.Operation.Namespace, omitNamespaces) {
			if !missing[n.Name] {
				missing[n.Name] = true
				missingNodes = append(missingNodes, n.Name)
			}
		}
		return sig, ok
	}

	var invalid []string
	checkPort := func(idx NodeIndex, port string, dir PortDirection) {
		if idx == s.inputIndex || idx == s.outputIndex || idx == InvalidNodeIndex {
			return
		}
		n := s.nodes[idx]
		if shouldOmit(n.Operation.Namespace, omitNamespaces) {
			return
		}
		sig, ok := sigFor(idx)
		if !ok {
			return
		}
		ports := sig.Inputs
		kind := "InvalidInputPort"
		if dir == Output {
			ports = sig.Outputs
			kind = "InvalidOutputPort"
		}
		if !hasPort(ports, port) {
			invalid = append(invalid, fmt.Sprintf("%s: %s.%s %s (available: %v)", kind, n.Name, port, dir, portNames(ports)))
		}
	}

	for _, e := range s.edges {
		if e.FromNode != s.inputIndex {
			checkPort(e.FromNode, e.FromPort, Output)
		}
		if e.ToNode != s.outputIndex {
			checkPort(e.ToNode, e.ToPort, Input)
		}
	}

	if len(missingNodes) > 0 {
		sort.Strings(missingNodes)
		errs = append(errs, &ferr.ValidationError{
			Kind:   "MissingComponentModels",
			Nodes:  missingNodes,
			Detail: "instance refers to an operation whose signature isn't yet resolved",
		})
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		errs = append(errs, &ferr.ValidationError{
			Kind:   "InvalidConnections",
			Detail: fmt.Sprintf("%v", invalid),
		})
	}
	return errs
}

func hasPort(ports []PortSignature, name string) bool {
	for _, p := range ports {
		if p.Name == name {
			return true
		}
	}
	return false
}

func portNames(ports []PortSignature) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}
