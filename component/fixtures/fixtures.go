// Package fixtures provides small, deterministic Component implementations
// used by the interpreter's own tests to exercise the engine's core
// scenarios (echo, fan-out, default-on-error, hung transaction, ...)
// without depending on any real native/wasm/grpc backend.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

func op(namespace, name string) schematic.OperationRef {
	return schematic.OperationRef{Namespace: namespace, Name: name}
}

// Echo forwards every packet on its "input" port to its "output" port
// unchanged, done-for-done.
type Echo struct{ Namespace string }

func (e Echo) namespace() string {
	if e.Namespace == "" {
		return "test"
	}
	return e.Namespace
}

func (e Echo) List() []component.Entry {
	return []component.Entry{{
		Operation: op(e.namespace(), "echo"),
		Signature: schematic.Signature{
			Inputs:  []schematic.PortSignature{{Name: "input", Type: "any"}},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "any"}},
		},
	}}
}

func (e Echo) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)
	go func() {
		defer close(out)
		for p := range in {
			if p.Port != "input" {
				continue
			}
			if p.IsDone() {
				out <- packet.Done("output")
				continue
			}
			fwd := p
			fwd.Port = "output"
			select {
			case out <- fwd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Fail ignores its input and emits a single in-band error packet followed
// by Done, regardless of what it receives.
type Fail struct {
	Namespace string
	Message   string
}

func (f Fail) namespace() string {
	if f.Namespace == "" {
		return "test"
	}
	return f.Namespace
}

func (f Fail) List() []component.Entry {
	return []component.Entry{{
		Operation: op(f.namespace(), "fail"),
		Signature: schematic.Signature{
			Inputs:  []schematic.PortSignature{{Name: "input", Type: "any"}},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "any"}},
		},
	}}
}

func (f Fail) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet, 2)
	msg := f.Message
	if msg == "" {
		msg = "boom"
	}
	go func() {
		defer close(out)
		for range in {
			// drain; Fail never looks at its input payloads.
		}
		out <- packet.Err("output", msg)
		out <- packet.Done("output")
	}()
	return out, nil
}

// Broken refuses to start at all, returning an error from Handle instead
// of a packet stream. Used to exercise the engine's node-failure
// propagation path for a component that never gets as far as emitting a
// packet.
type Broken struct {
	Namespace string
	Message   string
}

func (b Broken) namespace() string {
	if b.Namespace == "" {
		return "test"
	}
	return b.Namespace
}

func (b Broken) List() []component.Entry {
	return []component.Entry{{
		Operation: op(b.namespace(), "broken"),
		Signature: schematic.Signature{
			Inputs:  []schematic.PortSignature{{Name: "input", Type: "any"}},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "any"}},
		},
	}}
}

func (b Broken) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	msg := b.Message
	if msg == "" {
		msg = "cannot start"
	}
	return nil, errors.New(msg)
}

// Slow never emits any output; it exists to exercise the engine's hang
// detection.
type Slow struct{ Namespace string }

func (s Slow) namespace() string {
	if s.Namespace == "" {
		return "test"
	}
	return s.Namespace
}

func (s Slow) List() []component.Entry {
	return []component.Entry{{
		Operation: op(s.namespace(), "slow"),
		Signature: schematic.Signature{
			Inputs:  []schematic.PortSignature{{Name: "input", Type: "any"}},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "any"}},
		},
	}}
}

func (s Slow) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)
	go func() {
		defer close(out)
		for range in {
		}
		<-ctx.Done()
	}()
	return out, nil
}

// Prepend prepends a fixed string to every string-scalar packet it
// receives on "input" and forwards it on "output". Used to build
// fan-out/fan-in scenarios in tests.
type Prepend struct {
	Namespace string
	Name      string
	Prefix    string
}

func (p Prepend) namespace() string {
	if p.Namespace == "" {
		return "test"
	}
	return p.Namespace
}

func (p Prepend) List() []component.Entry {
	return []component.Entry{{
		Operation: op(p.namespace(), p.Name),
		Signature: schematic.Signature{
			Inputs:  []schematic.PortSignature{{Name: "input", Type: "string"}},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "string"}},
		},
	}}
}

func (p Prepend) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)
	go func() {
		defer close(out)
		for pk := range in {
			if pk.Port != "input" {
				continue
			}
			if pk.IsDone() {
				out <- packet.Done("output")
				continue
			}
			s, _ := pk.Scalar.(string)
			select {
			case out <- packet.OkScalar("output", p.Prefix+s):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Concat joins its "a" and "b" input ports pairwise (per-index) into a
// single space-joined string on "output", completing only once both inputs
// have delivered the same packet and closing Done once both sides close.
type Concat struct{ Namespace string }

func (c Concat) namespace() string {
	if c.Namespace == "" {
		return "test"
	}
	return c.Namespace
}

func (c Concat) List() []component.Entry {
	return []component.Entry{{
		Operation: op(c.namespace(), "concat"),
		Signature: schematic.Signature{
			Inputs: []schematic.PortSignature{
				{Name: "a", Type: "string"},
				{Name: "b", Type: "string"},
			},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "string"}},
		},
	}}
}

func (c Concat) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)
	go func() {
		defer close(out)
		var aVals, bVals []string
		aDone, bDone := false, false
		flush := func() {
			for len(aVals) > 0 && len(bVals) > 0 {
				joined := fmt.Sprintf("%s %s", aVals[0], bVals[0])
				aVals, bVals = aVals[1:], bVals[1:]
				select {
				case out <- packet.OkScalar("output", joined):
				case <-ctx.Done():
					return
				}
			}
		}
		for p := range in {
			switch p.Port {
			case "a":
				if p.IsDone() {
					aDone = true
					continue
				}
				s, _ := p.Scalar.(string)
				aVals = append(aVals, s)
			case "b":
				if p.IsDone() {
					bDone = true
					continue
				}
				s, _ := p.Scalar.(string)
				bVals = append(bVals, s)
			}
			flush()
		}
		flush()
		if aDone && bDone {
			out <- packet.Done("output")
		}
	}()
	return out, nil
}

// Delay forwards input to output after a fixed delay, used by tests that
// need a component slow enough to observe an in-flight transaction but
// still short of the configured hang timeout.
type Delay struct {
	Namespace string
	Wait      time.Duration
}

func (d Delay) namespace() string {
	if d.Namespace == "" {
		return "test"
	}
	return d.Namespace
}

func (d Delay) List() []component.Entry {
	return []component.Entry{{
		Operation: op(d.namespace(), "delay"),
		Signature: schematic.Signature{
			Inputs:  []schematic.PortSignature{{Name: "input", Type: "any"}},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "any"}},
		},
	}}
}

func (d Delay) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)
	go func() {
		defer close(out)
		for p := range in {
			if p.Port != "input" {
				continue
			}
			select {
			case <-time.After(d.Wait):
			case <-ctx.Done():
				return
			}
			if p.IsDone() {
				out <- packet.Done("output")
				continue
			}
			fwd := p
			fwd.Port = "output"
			out <- fwd
		}
	}()
	return out, nil
}

// Upper upper-cases a string scalar; a small second "transform" component
// used alongside Prepend in multi-node fixtures.
type Upper struct{ Namespace string }

func (u Upper) namespace() string {
	if u.Namespace == "" {
		return "test"
	}
	return u.Namespace
}

func (u Upper) List() []component.Entry {
	return []component.Entry{{
		Operation: op(u.namespace(), "upper"),
		Signature: schematic.Signature{
			Inputs:  []schematic.PortSignature{{Name: "input", Type: "string"}},
			Outputs: []schematic.PortSignature{{Name: "output", Type: "string"}},
		},
	}}
}

func (u Upper) Handle(ctx context.Context, inv component.Invocation, in <-chan packet.Packet, _ component.Callback) (<-chan packet.Packet, error) {
	out := make(chan packet.Packet)
	go func() {
		defer close(out)
		for p := range in {
			if p.Port != "input" {
				continue
			}
			if p.IsDone() {
				out <- packet.Done("output")
				continue
			}
			s, _ := p.Scalar.(string)
			out <- packet.OkScalar("output", strings.ToUpper(s))
		}
	}()
	return out, nil
}
