package interpreter

import (
	"context"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

// SelfOperationName is the operation name an Engine registers itself under
// in the "self" namespace, letting a schematic contain a node that invokes
// the very schematic it belongs to. Its declared ports mirror the
// schematic's own external input/output ports.
const SelfOperationName = "schematic"

// selfComponent adapts an Engine into a component.Component so the
// validator's final phase and the dispatch loop can treat a self-reference
// node exactly like any other resolved operation.
type selfComponent struct {
	engine *Engine
	sig    schematic.Signature
}

func newSelfComponent(e *Engine) *selfComponent {
	in := e.s.Node(e.s.InputIndex())
	out := e.s.Node(e.s.OutputIndex())
	return &selfComponent{
		engine: e,
		// A self node's own Inputs are named like the schematic's external
		// input ports (the <input> node's Outputs) and its Outputs are named
		// like the schematic's external output ports (the <output> node's
		// Inputs) — callers feed it exactly as they'd invoke the schematic.
		sig: schematic.Signature{
			Inputs:  in.Outputs,
			Outputs: out.Inputs,
		},
	}
}

func (c *selfComponent) List() []component.Entry {
	return []component.Entry{{
		Operation: schematic.OperationRef{Namespace: "self", Name: SelfOperationName},
		Signature: c.sig,
	}}
}

// Handle buffers every input port to completion, invokes a fresh
// transaction of the same schematic with that input, and streams the
// nested transaction's output back out, each packet relabelled with the
// external output port it was produced on (which, by construction, is also
// the name of this node's matching output port).
func (c *selfComponent) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)

	go func() {
		defer close(out)

		buffered := map[string][]packet.Packet{}
		for p := range in {
			buffered[p.Port] = append(buffered[p.Port], p)
		}

		results, err := c.engine.InvokeSync(ctx, buffered)
		if err != nil {
			if c.engine.logger != nil {
				c.engine.logger.Error("self-invocation %s failed: %v", inv.ID, err)
			}
			for _, o := range c.sig.Outputs {
				out <- packet.Err(o.Name, err.Error())
				out <- packet.Done(o.Name)
			}
			return
		}
		for _, r := range results {
			select {
			case out <- withPort(r.Packet, r.Port):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// withSelf returns a copy of components with the engine's own self-adapter
// appended, so New can register it in the same HandlerMap used for
// ValidateFinal and the dispatch loop's component resolution.
func withSelf(e *Engine, components []component.Component) []component.Component {
	return append(append([]component.Component{}, components...), newSelfComponent(e))
}
