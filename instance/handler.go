package instance

import (
	"context"
	"fmt"
	"sync"

	"github.com/bassosimone/runtimex"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/ferr"
	"github.com/flowgraph/interp/log"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

// EventSink is how a Handler reports activity back to the transaction
// engine's single-consumer dispatch loop (package interpreter). A Handler
// never touches transaction state directly — every observation becomes an
// event posted through this interface, so only the dispatch loop goroutine
// ever mutates the transaction.
type EventSink interface {
	DispatchData(ref schematic.PortRef)
	DispatchOpErr(node schematic.NodeIndex, err *packet.PacketError)
}

// Handler is the per-transaction runtime object for one schematic node: it
// owns that node's input and output port buffers and, once started, the
// channel feeding its component and the goroutine draining its component's
// output stream.
type Handler struct {
	node   schematic.Node
	logger log.Logger

	inputs      []*Buffer
	outputs     []*Buffer
	inputIndex  map[string]int
	outputIndex map[string]int

	mu         sync.Mutex
	started    bool
	sender     chan packet.Packet
	cancel     context.CancelFunc
	inputsDone map[string]bool
}

// New builds an unstarted Handler for the given node.
func New(node schematic.Node, logger log.Logger) *Handler {
	h := &Handler{
		node:        node,
		logger:      logger,
		inputs:      make([]*Buffer, len(node.Inputs)),
		outputs:     make([]*Buffer, len(node.Outputs)),
		inputIndex:  make(map[string]int, len(node.Inputs)),
		outputIndex: make(map[string]int, len(node.Outputs)),
	}
	for i, p := range node.Inputs {
		h.inputs[i] = &Buffer{}
		h.inputIndex[p.Name] = i
	}
	for i, p := range node.Outputs {
		h.outputs[i] = &Buffer{}
		h.outputIndex[p.Name] = i
	}
	return h
}

// Index returns the node index this handler backs.
func (h *Handler) Index() schematic.NodeIndex { return h.node.Index }

// Name returns the instance name this handler backs.
func (h *Handler) Name() string { return h.node.Name }

// FindInput resolves a port name to an input PortRef.
func (h *Handler) FindInput(name string) (schematic.PortRef, bool) {
	idx, ok := h.inputIndex[name]
	if !ok {
		return schematic.PortRef{}, false
	}
	return schematic.PortRef{Node: h.node.Index, Direction: schematic.Input, Index: idx}, true
}

// FindOutput resolves a port name to an output PortRef.
func (h *Handler) FindOutput(name string) (schematic.PortRef, bool) {
	idx, ok := h.outputIndex[name]
	if !ok {
		return schematic.PortRef{}, false
	}
	return schematic.PortRef{Node: h.node.Index, Direction: schematic.Output, Index: idx}, true
}

// InputBuffer returns the input buffer at the given port index.
func (h *Handler) InputBuffer(idx int) *Buffer { return h.inputs[idx] }

// OutputBuffer returns the output buffer at the given port index.
func (h *Handler) OutputBuffer(idx int) *Buffer { return h.outputs[idx] }

// Inputs returns every input buffer, in port-index order.
func (h *Handler) Inputs() []*Buffer { return h.inputs }

// Outputs returns every output buffer, in port-index order.
func (h *Handler) Outputs() []*Buffer { return h.outputs }

// Buffer resolves a PortRef belonging to this handler to its Buffer.
func (h *Handler) Buffer(ref schematic.PortRef) *Buffer {
	if ref.Direction == schematic.Input {
		return h.inputs[ref.Index]
	}
	return h.outputs[ref.Index]
}

// SeedDefault pre-loads an input port that has no real upstream (its only
// connection is the reserved "no upstream" sentinel carrying a default
// literal): the port is immediately satisfied with that literal value and
// then closed, exactly as if a real upstream had delivered one packet and
// Done (see schematic.NoneNodeName).
func (h *Handler) SeedDefault(portIndex int, literal any) {
	buf := h.inputs[portIndex]
	buf.In(packet.OkScalar(h.node.Inputs[portIndex].Name, literal))
	buf.In(packet.Done(h.node.Inputs[portIndex].Name))
}

// Ready reports whether every input port is satisfied.
func (h *Handler) Ready() bool {
	for _, b := range h.inputs {
		if !b.Ready() {
			return false
		}
	}
	return true
}

// Started reports whether Start has already run for this handler. An
// instance starts at most once per transaction.
func (h *Handler) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Start hands the given component the caller-built Invocation and the
// receiving end of a fresh packet stream, and spawns a detached consumer
// that posts every packet the component emits as a Data event tagged with
// its source port. Start is a no-op if the handler has already started.
func (h *Handler) Start(
	ctx context.Context,
	inv component.Invocation,
	comp component.Component,
	callback component.Callback,
	sink EventSink,
) error {
	runtimex.Assert(comp != nil)

	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	in := make(chan packet.Packet, 16)
	h.sender = in
	h.mu.Unlock()

	out, err := comp.Handle(ctx, inv, in, callback)
	if err != nil {
		return &ferr.ExecutionError{Node: h.node.Name, Reason: "component handle failed", Err: err}
	}

	go h.drain(ctx, out, sink)
	return nil
}

// drain reads the component's output stream and, for every packet, buffers
// it on the matching output port and posts a Data event. A panic inside a
// component-driven read is recovered and reported as an OpErr — the engine
// does not trust component code any more than it trusts the network.
func (h *Handler) drain(ctx context.Context, out <-chan packet.Packet, sink EventSink) {
	defer func() {
		if r := recover(); r != nil {
			sink.DispatchOpErr(h.node.Index, &packet.PacketError{Message: fmt.Sprintf("panic in component %s: %v", h.node.Name, r)})
		}
	}()

	for {
		select {
		case p, ok := <-out:
			if !ok {
				return
			}
			ref, found := h.FindOutput(p.Port)
			if !found {
				if h.logger != nil {
					h.logger.Warn("dropping packet for unconnected output port %q on %s", p.Port, h.node.Name)
				}
				continue
			}
			h.outputs[ref.Index].In(p)
			sink.DispatchData(ref)
		case <-ctx.Done():
			return
		}
	}
}

// Forward pushes one packet into the running component's input stream.
// Safe to call only after Start has completed; a Handler that hasn't
// started yet has no sender and Forward is a no-op. Once Done has been
// forwarded on every input port, the component's input stream is closed
// and later calls are no-ops too.
func (h *Handler) Forward(p packet.Packet) {
	h.mu.Lock()
	sender := h.sender
	h.mu.Unlock()
	if sender == nil {
		return
	}
	select {
	case sender <- p:
	default:
		// The component isn't draining its input fast enough to keep up
		// with a non-blocking forward; fall back to a blocking send so we
		// never silently drop data the schematic promised to deliver.
		sender <- p
	}
	if _, known := h.inputIndex[p.Port]; p.IsDone() && known {
		h.mu.Lock()
		if h.inputsDone == nil {
			h.inputsDone = make(map[string]bool, len(h.inputs))
		}
		h.inputsDone[p.Port] = true
		if len(h.inputsDone) == len(h.inputs) && h.sender != nil {
			close(h.sender)
			h.sender = nil
		}
		h.mu.Unlock()
	}
}

// Stop cancels the handler's component context and detaches its consumer
// goroutine, used on transaction cancellation.
func (h *Handler) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
