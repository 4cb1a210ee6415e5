// Package component defines the uniform capability the interpreter uses to
// invoke an operation's backing implementation, whether native, wasm, or
// network-backed. The engine never inspects which variant it holds — it
// only ever calls List and Handle.
package component

import (
	"context"

	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

// Invocation is the per-instance request passed to a component's Handle
// method: target operation, correlation ids, and inherent data the
// component may use for determinism (seed, timestamp).
type Invocation struct {
	ID        string
	TxID      string
	Target    schematic.OperationRef
	Seed      uint64
	Timestamp int64
	Config    map[string]any
}

// Callback lets a component request a secondary, nested invocation through
// the engine — e.g. a higher-order "map" operation invoking a schematic
// once per element. The engine treats the result as a new top-level
// transaction tied to the same trace span.
type Callback func(ctx context.Context, inv Invocation, in <-chan packet.Packet) (<-chan packet.Packet, error)

// Component is the capability every operation instance resolves to.
type Component interface {
	// List returns the operation signatures this component implements.
	List() []Entry

	// Handle executes one invocation against a stream of input packets and
	// returns a stream of output packets. The returned stream yields
	// packets in port-tagged, per-port-ordered succession until each port
	// observes Done.
	Handle(ctx context.Context, inv Invocation, in <-chan packet.Packet, callback Callback) (<-chan packet.Packet, error)
}

// Entry is one operation signature exposed by a component's List().
type Entry struct {
	Operation schematic.OperationRef
	Signature schematic.Signature
}

// HandlerMap is a read-only, shared registry of resolved components, keyed
// by operation reference. It is immutable after construction and safe for
// concurrent read access from every transaction the engine runs.
type HandlerMap struct {
	byOp map[schematic.OperationRef]Component
	sigs map[schematic.OperationRef]schematic.Signature
}

// NewHandlerMap builds a HandlerMap from a set of components, indexing each
// by every operation its List() reports.
func NewHandlerMap(components ...Component) *HandlerMap {
	hm := &HandlerMap{
		byOp: make(map[schematic.OperationRef]Component),
		sigs: make(map[schematic.OperationRef]schematic.Signature),
	}
	for _, c := range components {
		for _, entry := range c.List() {
			hm.byOp[entry.Operation] = c
			hm.sigs[entry.Operation] = entry.Signature
		}
	}
	return hm
}

// Lookup returns the component registered for op, if any.
func (hm *HandlerMap) Lookup(op schematic.OperationRef) (Component, bool) {
	c, ok := hm.byOp[op]
	return c, ok
}

// Resolver adapts the HandlerMap to schematic.Resolver, for use by the
// validator's late/final phases.
func (hm *HandlerMap) Resolver() schematic.Resolver {
	return func(op schematic.OperationRef) (schematic.Signature, bool) {
		sig, ok := hm.sigs[op]
		return sig, ok
	}
}
