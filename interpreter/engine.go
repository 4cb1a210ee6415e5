// Package interpreter implements the transaction engine: the single-
// consumer dispatch loop that drives one execution of a schematic.Schematic
// to completion, starting instances as their inputs become ready and
// routing packets along schematic edges.
package interpreter

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/config"
	"github.com/flowgraph/interp/ferr"
	"github.com/flowgraph/interp/log"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

// Engine holds everything shared, read-only, across every transaction it
// runs: the validated Schematic and the resolved component registry.
// Engine itself carries no per-run state, so the same Engine safely drives
// many concurrent Invoke calls.
type Engine struct {
	s      *schematic.Schematic
	comps  *component.HandlerMap
	logger log.Logger
	opts   config.Options
	ids    *seededSource
}

// New validates schematic against the given components (late and final
// phases; the caller is expected to have already run ValidateEarly when the
// schematic was first built) and constructs an Engine ready to run
// transactions. Validation errors from either phase are returned joined;
// callers should not attempt to run an Engine construction that failed.
func New(s *schematic.Schematic, components []component.Component, opts ...config.Option) (*Engine, error) {
	o := config.Apply(opts...)
	e := &Engine{
		s:      s,
		logger: log.GetDefaultLogger(),
		opts:   o,
		ids:    newSeededSource(o.Seed),
	}

	// The engine's own self-adapter needs a *Engine to recurse into, and the
	// HandlerMap needs the self-adapter to resolve the "self" namespace: e
	// is built first with a nil comps, then comps (including the
	// self-adapter) is finalized and attached before validation runs.
	e.comps = component.NewHandlerMap(withSelf(e, components)...)

	resolve := e.comps.Resolver()
	var errs []*ferr.ValidationError
	errs = append(errs, schematic.ValidateLate(s, resolve)...)
	errs = append(errs, schematic.ValidateFinal(s, resolve)...)
	if len(errs) > 0 {
		return nil, joinValidation(errs)
	}

	return e, nil
}

// WithLogger returns a copy of e using logger for every future transaction.
// Engine itself is immutable once built; this returns a new value rather
// than mutating the receiver in place.
func (e *Engine) WithLogger(logger log.Logger) *Engine {
	cp := *e
	cp.logger = logger
	return &cp
}

// Invoke runs one transaction of the engine's schematic against the given
// external inputs (one ordered, Done-terminated packet slice per external
// input port name) and returns a channel of the packets produced on the
// external output ports, closed once every output port has completed.
//
// Invoke returns as soon as the transaction is constructed; the run itself
// happens on a spawned goroutine, consistent with the schematic's own
// single-consumer dispatch loop driving everything from that point on.
func (e *Engine) Invoke(ctx context.Context, inputs map[string][]packet.Packet) (<-chan Result, error) {
	t := e.start(ctx, inputs)
	return t.Outputs(), nil
}

// InvokeSync drains a transaction's output channel into a slice, returning
// its terminal error (if any) once the channel closes. Useful for tests and
// simple callers that don't need to stream results.
func (e *Engine) InvokeSync(ctx context.Context, inputs map[string][]packet.Packet) ([]Result, error) {
	t := e.start(ctx, inputs)
	var results []Result
	for r := range t.Outputs() {
		results = append(results, r)
	}
	return results, t.Err()
}

func (e *Engine) start(ctx context.Context, inputs map[string][]packet.Packet) *Transaction {
	uid, err := uuid.NewRandomFromReader(e.ids)
	if err != nil {
		uid = uuid.New()
	}
	t := newTransaction(uid.String(), e.s, e.comps, e.logger, e.opts, e.ids)
	go t.run(ctx, inputs)
	return t
}

func joinValidation(errs []*ferr.ValidationError) error {
	msg := fmt.Sprintf("%d validation error(s):", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return &validationErrors{msg: msg, errs: errs}
}

// validationErrors bundles every ValidationError collected across phases so
// a caller can either treat New's failure as one error or inspect each
// phase's findings individually.
type validationErrors struct {
	msg  string
	errs []*ferr.ValidationError
}

func (v *validationErrors) Error() string                   { return v.msg }
func (v *validationErrors) Errors() []*ferr.ValidationError { return v.errs }
