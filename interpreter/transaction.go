package interpreter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/config"
	"github.com/flowgraph/interp/ferr"
	"github.com/flowgraph/interp/instance"
	"github.com/flowgraph/interp/log"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

// Result is one packet the transaction has produced on one of the
// schematic's external output ports.
type Result struct {
	Port   string
	Packet packet.Packet
}

// Transaction runs a single execution of a Schematic end to end: it owns
// every node's instance.Handler for the duration of the run and mutates its
// own state exclusively from one goroutine — the dispatch loop reading
// events off ev.
type Transaction struct {
	id     string
	s      *schematic.Schematic
	comps  *component.HandlerMap
	logger log.Logger
	opts   config.Options
	stats  *Stats

	handlers []*instance.Handler
	ids      *seededSource

	ev     chan Event
	out    chan Result
	doneCh chan struct{}
	err    error

	outputDone   []bool
	doneRouted   map[schematic.PortRef]bool
	lastActivity atomic.Int64 // unix nanos

	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// newTransaction builds a Transaction with one Handler per schematic node,
// but does not start anything yet.
func newTransaction(id string, s *schematic.Schematic, comps *component.HandlerMap, logger log.Logger, opts config.Options, ids *seededSource) *Transaction {
	handlers := make([]*instance.Handler, len(s.Nodes()))
	for i, n := range s.Nodes() {
		handlers[i] = instance.New(n, logger)
	}
	t := &Transaction{
		id:         id,
		s:          s,
		comps:      comps,
		logger:     logger,
		opts:       opts,
		stats:      NewStats(time.Now()),
		handlers:   handlers,
		ids:        ids,
		ev:         make(chan Event, opts.ChannelBuffer),
		out:        make(chan Result, opts.ChannelBuffer),
		doneCh:     make(chan struct{}),
		outputDone: make([]bool, len(s.Node(s.OutputIndex()).Inputs)),
		doneRouted: make(map[schematic.PortRef]bool),
	}
	return t
}

// DispatchData implements instance.EventSink.
func (t *Transaction) DispatchData(ref schematic.PortRef) {
	select {
	case t.ev <- Event{Kind: Data, Port: ref}:
	case <-t.doneCh:
	}
}

// DispatchOpErr implements instance.EventSink.
func (t *Transaction) DispatchOpErr(node schematic.NodeIndex, err *packet.PacketError) {
	select {
	case t.ev <- Event{Kind: OpErr, Node: node, Err: err}:
	case <-t.doneCh:
	}
}

// Outputs returns the channel of packets the transaction produces on the
// schematic's external output ports. The channel is closed once every
// output port has completed or the transaction has failed.
func (t *Transaction) Outputs() <-chan Result { return t.out }

// Err returns the transaction's terminal error, if any, once Outputs has
// closed. Safe to call only after Outputs is drained and closed.
func (t *Transaction) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// run seeds the schematic's external inputs and defaulted ports, then
// drives the single-consumer dispatch loop until every external output port
// has completed, the context is cancelled, or a stall is detected.
func (t *Transaction) run(ctx context.Context, inputs map[string][]packet.Packet) {
	ctx, cancel := context.WithCancel(ctx)
	t.ctx = ctx
	t.cancel = cancel
	t.touch()

	t.stats.Mark("execution", time.Now())
	defer func() {
		for _, h := range t.handlers {
			h.Stop()
		}
		t.stats.End("execution", time.Now())
		t.stats.Finish(time.Now())
		close(t.doneCh)
		close(t.out)
	}()

	t.seedDefaults()
	t.seedExternalInputs(inputs)

	stallCtx, stopStall := context.WithCancel(ctx)
	defer stopStall()
	go t.watchStall(stallCtx)

	for {
		if t.allOutputsDone() {
			return
		}
		select {
		case <-ctx.Done():
			t.fail(ferr.NewStateError("transaction %s cancelled: %v", t.id, ctx.Err()))
			return
		case ev := <-t.ev:
			t.touch()
			t.handle(ctx, ev)
		}
	}
}

func (t *Transaction) touch() {
	t.lastActivity.Store(time.Now().UnixNano())
}

func (t *Transaction) watchStall(ctx context.Context) {
	if t.opts.HangTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(t.opts.HangCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, t.lastActivity.Load())
			if time.Since(last) >= t.opts.HangTimeout {
				select {
				case t.ev <- Event{Kind: Stall}:
				case <-t.doneCh:
				}
				return
			}
		}
	}
}

func (t *Transaction) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	if t.logger != nil {
		t.logger.Error("transaction %s failed: %v", t.id, err)
	}
}

// seedDefaults pre-loads every input port whose only connection is a
// no-upstream default edge (schematic.NoneNodeName), so such a port is
// Ready before the dispatch loop ever runs.
func (t *Transaction) seedDefaults() {
	for _, e := range t.s.Edges() {
		if e.FromRef != schematic.NoneNodeName || !e.HasDefault() || e.ToNode == schematic.InvalidNodeIndex {
			continue
		}
		if e.ToNode == t.s.OutputIndex() {
			t.deliver(e, packet.OkScalar(e.ToPort, e.Default.Literal))
			t.deliver(e, packet.Done(e.ToPort))
			continue
		}
		h := t.handlers[e.ToNode]
		ref, ok := h.FindInput(e.ToPort)
		if !ok {
			continue
		}
		h.SeedDefault(ref.Index, e.Default.Literal)
		t.maybeStart(t.ctx, e.ToNode)
	}
}

// seedExternalInputs buffers the caller-supplied packets onto the <input>
// node's output ports and routes them, exactly as if a component had
// produced them.
func (t *Transaction) seedExternalInputs(inputs map[string][]packet.Packet) {
	inNode := t.s.Node(t.s.InputIndex())
	for portName, pkts := range inputs {
		idx := -1
		for i, p := range inNode.Outputs {
			if p.Name == portName {
				idx = i
				break
			}
		}
		if idx < 0 {
			if t.logger != nil {
				t.logger.Warn("transaction %s: no such external input port %q", t.id, portName)
			}
			continue
		}
		buf := t.handlers[t.s.InputIndex()].OutputBuffer(idx)
		for _, p := range pkts {
			buf.In(p)
		}
		t.route(schematic.PortRef{Node: t.s.InputIndex(), Direction: schematic.Output, Index: idx})
	}
}

func (t *Transaction) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case Data:
		t.route(ev.Port)
	case OpErr:
		t.fail(&ferr.ExecutionError{Node: t.s.Node(ev.Node).Name, Reason: ev.Err.Message})
		t.propagateFailure(ev.Node, ev.Err.Message)
	case Stall:
		t.fail(ferr.NewStateError("transaction %s stalled: no activity for %s", t.id, t.opts.HangTimeout))
		t.failOutputs("Transaction hung")
		t.cancel()
	case Call:
		go t.serveCall(ctx, ev.CallReq)
	case Done:
		// Reserved for future per-node completion bookkeeping; node
		// completion is currently inferred from port status.
	}
}

// propagateFailure emits an error packet followed by a done on every edge
// leaving the failing node's output ports, reusing deliver's default
// substitution and external-output routing so the failure surfaces on the
// stream itself rather than only through Err(). Other branches of the
// schematic that don't depend on this node keep running.
func (t *Transaction) propagateFailure(node schematic.NodeIndex, message string) {
	for _, edge := range t.s.Connections(node, schematic.Output) {
		if edge.ToNode == schematic.InvalidNodeIndex {
			continue
		}
		t.deliver(edge, packet.Err(edge.FromPort, message))
		t.deliver(edge, packet.Done(edge.FromPort))
	}
}

// failOutputs delivers a synthetic error packet followed by done directly
// onto every external output port that hasn't finished yet. Used when the
// whole transaction is being torn down (a stall) rather than a single
// node's failure, so every caller-visible port still gets a terminal
// error instead of just closing silently.
func (t *Transaction) failOutputs(message string) {
	outNode := t.s.Node(t.s.OutputIndex())
	for idx, spec := range outNode.Inputs {
		if t.outputDone[idx] {
			continue
		}
		select {
		case t.out <- Result{Port: spec.Name, Packet: packet.Err(spec.Name, message)}:
		case <-t.doneCh:
			return
		}
		t.outputDone[idx] = true
		select {
		case t.out <- Result{Port: spec.Name, Packet: packet.Done(spec.Name)}:
		case <-t.doneCh:
			return
		}
	}
}

// route drains every newly queued packet from one output port and delivers
// it to each downstream edge leaving that port, applying default
// substitution for error packets on edges that carry one, and forwards
// packets that land on the schematic's external output node to Outputs().
// A port buffer never stores its Done marker, so once the drained port is
// DoneClosed a Done packet is delivered after its data, once per port.
func (t *Transaction) route(ref schematic.PortRef) {
	node := t.s.Node(ref.Node)
	portName := node.Outputs[ref.Index].Name
	buf := t.handlers[ref.Node].OutputBuffer(ref.Index)
	pkts := buf.TakeAll()
	if buf.Status() == instance.DoneClosed && !t.doneRouted[ref] {
		t.doneRouted[ref] = true
		pkts = append(pkts, packet.Done(portName))
	}
	if len(pkts) == 0 {
		return
	}

	for _, edge := range t.s.Connections(ref.Node, schematic.Output) {
		if edge.FromPort != portName || edge.ToNode == schematic.InvalidNodeIndex {
			continue
		}
		for _, p := range pkts {
			t.deliver(edge, p)
		}
	}
}

func (t *Transaction) deliver(edge schematic.Edge, p packet.Packet) {
	if p.IsNoop() {
		return
	}
	if p.IsError() && edge.HasDefault() {
		p = packet.DefaultPacket(edge.ToPort, edge.Default.Literal, p.Err.Message)
	}

	if edge.ToNode == t.s.OutputIndex() {
		t.deliverExternal(edge, p)
		return
	}

	h := t.handlers[edge.ToNode]
	ref, ok := h.FindInput(edge.ToPort)
	if !ok {
		if t.logger != nil {
			t.logger.Warn("transaction %s: no such input port %q on %s", t.id, edge.ToPort, h.Name())
		}
		return
	}

	// maybeStart, once it actually starts the handler, drains and forwards
	// every buffered input packet itself (including the one just buffered
	// below) — so only forward here when the handler was already running,
	// to avoid delivering p to the component twice.
	alreadyStarted := h.Started()
	h.Buffer(ref).In(p)
	if !alreadyStarted {
		t.maybeStart(t.ctx, edge.ToNode)
		return
	}
	if h.Started() {
		h.Forward(withPort(p, edge.ToPort))
	}
}

func withPort(p packet.Packet, port string) packet.Packet {
	p.Port = port
	return p
}

func (t *Transaction) deliverExternal(edge schematic.Edge, p packet.Packet) {
	outNode := t.s.Node(t.s.OutputIndex())
	idx := -1
	for i, spec := range outNode.Inputs {
		if spec.Name == edge.ToPort {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if p.IsDone() {
		if !t.outputDone[idx] {
			t.outputDone[idx] = true
			select {
			case t.out <- Result{Port: edge.ToPort, Packet: p}:
			case <-t.doneCh:
			}
		}
		return
	}
	select {
	case t.out <- Result{Port: edge.ToPort, Packet: p}:
	case <-t.doneCh:
	}
}

func (t *Transaction) allOutputsDone() bool {
	for _, done := range t.outputDone {
		if !done {
			return false
		}
	}
	return true
}

// maybeStart resolves and starts node idx's component the first time its
// inputs become ready.
func (t *Transaction) maybeStart(ctx context.Context, idx schematic.NodeIndex) {
	if idx == t.s.InputIndex() || idx == t.s.OutputIndex() {
		return
	}
	h := t.handlers[idx]
	if h.Started() || !h.Ready() {
		return
	}
	node := t.s.Node(idx)
	comp, ok := t.comps.Lookup(node.Operation)
	if !ok {
		reason := "no component resolved for " + node.Operation.String()
		t.fail(&ferr.ExecutionError{Node: node.Name, Reason: reason})
		t.propagateFailure(idx, reason)
		return
	}
	invID, err := ulid.New(ulid.Timestamp(time.Now()), t.ids)
	if err != nil {
		invID = ulid.Make()
	}
	inv := component.Invocation{
		ID:        invID.String(),
		TxID:      t.id,
		Target:    node.Operation,
		Seed:      t.opts.Seed,
		Timestamp: time.Now().UnixNano(),
		Config:    node.Config,
	}
	if err := h.Start(ctx, inv, comp, t.callback(), t); err != nil {
		t.fail(err)
		msg := err.Error()
		var execErr *ferr.ExecutionError
		if errors.As(err, &execErr) && execErr.Err != nil {
			msg = execErr.Err.Error()
		}
		t.propagateFailure(idx, msg)
		return
	}
	for i, b := range h.Inputs() {
		name := node.Inputs[i].Name
		if !b.IsEmpty() {
			for _, p := range b.TakeAll() {
				h.Forward(withPort(p, name))
			}
		}
		if b.Status() == instance.DoneClosed {
			h.Forward(packet.Done(name))
		}
	}
}

// callback builds the component.Callback handed to every Handler.Start,
// implementing nested invocations through the transaction's own event loop
// rather than a side channel, so a nested call still only touches
// transaction state from the dispatch goroutine.
func (t *Transaction) callback() component.Callback {
	return func(ctx context.Context, inv component.Invocation, in <-chan packet.Packet) (<-chan packet.Packet, error) {
		reply := make(chan CallReply, 1)
		select {
		case t.ev <- Event{Kind: Call, CallReq: &CallRequest{Invocation: inv, Reply: reply}}:
		case <-t.doneCh:
			return nil, ferr.NewStateError("transaction %s already finished", t.id)
		}
		select {
		case r := <-reply:
			return r.Out, r.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (t *Transaction) serveCall(ctx context.Context, req *CallRequest) {
	comp, ok := t.comps.Lookup(req.Invocation.Target)
	if !ok {
		req.Reply <- CallReply{Err: &ferr.ExecutionError{Node: req.Invocation.Target.String(), Reason: "no component resolved for nested invocation"}}
		return
	}
	in := make(chan packet.Packet)
	close(in)
	out, err := comp.Handle(ctx, req.Invocation, in, t.callback())
	req.Reply <- CallReply{Out: out, Err: err}
}
