package interpreter

import (
	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

// Kind discriminates the event shapes the dispatch loop accepts. Every
// observation the running transaction makes — a component emitting a
// packet, a component failing outright, a port finishing, a stall watchdog
// firing, or a component asking for a nested invocation — becomes one of
// these before it can touch transaction state, so only the dispatch loop
// goroutine ever mutates a Transaction.
type Kind int

const (
	// Data reports that a packet was buffered on an output port and should
	// be forwarded toward its downstream connections.
	Data Kind = iota
	// OpErr reports that a node's component failed outside the normal
	// packet stream: Handler.drain posts it when it recovers a panic. A
	// Handle() error at start time is handled directly by the dispatch loop
	// and does not travel as an event.
	OpErr
	// Done reports that every output port convention on a node has closed.
	Done
	// Call reports a component's request for a nested invocation tied to
	// the same transaction's trace span.
	Call
	// Stall reports that the watchdog goroutine saw no activity for longer
	// than the configured hang timeout.
	Stall
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "data"
	case OpErr:
		return "op_err"
	case Done:
		return "done"
	case Call:
		return "call"
	case Stall:
		return "stall"
	default:
		return "unknown"
	}
}

// Event is the single typed envelope the transaction's dispatch loop reads
// from its event channel.
type Event struct {
	Kind Kind

	// Data
	Port schematic.PortRef

	// OpErr
	Node schematic.NodeIndex
	Err  *packet.PacketError

	// Call
	CallReq *CallRequest
}

// CallRequest carries a nested-invocation request from a component callback
// through to the transaction dispatch loop, and a channel the loop uses to
// hand back the spawned child transaction's output stream.
type CallRequest struct {
	Invocation component.Invocation
	Reply      chan<- CallReply
}

// CallReply is the dispatch loop's answer to a CallRequest.
type CallReply struct {
	Out <-chan packet.Packet
	Err error
}
