// Package interp implements a flow-graph interpreter: it executes
// declarative "schematics" — directed multigraphs of operation instances
// connected by named, typed ports — against a pluggable set of component
// capabilities (native, wasm, or network-backed), shuttling packet streams
// between instances until every external output port completes.
//
// # Quick Start
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/flowgraph/interp/component"
//		"github.com/flowgraph/interp/component/fixtures"
//		"github.com/flowgraph/interp/interpreter"
//		"github.com/flowgraph/interp/packet"
//		"github.com/flowgraph/interp/schematic"
//	)
//
//	func main() {
//		def := schematic.Definition{
//			Nodes: []schematic.NodeSpec{
//				{Name: schematic.InputNodeName, Outputs: []schematic.PortSignature{{Name: "text", Type: "string"}}},
//				{
//					Name:      "upper",
//					Operation: schematic.OperationRef{Namespace: "demo", Name: "upper"},
//					Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
//					Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
//				},
//				{Name: schematic.OutputNodeName, Inputs: []schematic.PortSignature{{Name: "result", Type: "string"}}},
//			},
//			Connections: []schematic.ConnectionSpec{
//				{FromNode: schematic.InputNodeName, FromPort: "text", ToNode: "upper", ToPort: "input"},
//				{FromNode: "upper", FromPort: "output", ToNode: schematic.OutputNodeName, ToPort: "result"},
//			},
//		}
//
//		s, _ := schematic.Build(def)
//		schematic.ValidateEarly(s)
//
//		eng, _ := interpreter.New(s, []component.Component{fixtures.Upper{Namespace: "demo"}})
//
//		out, _ := eng.Invoke(context.Background(), map[string][]packet.Packet{
//			"text": {packet.OkScalar("text", "hello"), packet.Done("text")},
//		})
//		for r := range out {
//			_ = r // r.Packet carries each produced value
//		}
//	}
//
// # Package Structure
//
// schematic/
// The immutable graph model — nodes, edges, ports — plus its builder and
// three-phase validator (early/late/final).
//
// component/
// The capability abstraction every operation instance resolves to, uniform
// across native, wasm, and network-backed implementations.
//
// instance/
// The per-transaction port buffer and instance handler runtime.
//
// interpreter/
// The transaction engine: a single-consumer dispatch loop per run, starting
// instances as their inputs become ready and routing packets along edges.
//
// packet/
// The wire-agnostic packet type every port carries, plus default-on-error
// substitution.
//
// config/
// Engine tunables (channel buffering, hang detection, RNG seed).
//
// log/
// A small leveled logging interface, with adapters for the standard library
// logger and kataras/golog.
package interp
