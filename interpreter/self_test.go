package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/component/fixtures"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

// These tests drive the selfComponent adapter directly rather than through a
// schematic node whose Operation.Namespace is "self": a genuinely
// self-referential schematic recurses on every invocation, and none of the
// fixtures package's components branch on a base case, so looping it through
// a real dispatch would never terminate. Exercising newSelfComponent and
// Handle in isolation still covers the port-relabeling and InvokeSync
// delegation the adapter is responsible for.

func TestNewSelfComponentSignatureMirrorsBoundaryPorts(t *testing.T) {
	s := buildEchoSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Echo{Namespace: "test"}})
	require.NoError(t, err)

	self := newSelfComponent(eng)
	entries := self.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "self", entries[0].Operation.Namespace)
	assert.Equal(t, SelfOperationName, entries[0].Operation.Name)

	require.Len(t, entries[0].Signature.Inputs, 1)
	assert.Equal(t, "in", entries[0].Signature.Inputs[0].Name)
	require.Len(t, entries[0].Signature.Outputs, 1)
	assert.Equal(t, "out", entries[0].Signature.Outputs[0].Name)
}

func TestSelfComponentHandleDelegatesToEngine(t *testing.T) {
	s := buildEchoSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Echo{Namespace: "test"}})
	require.NoError(t, err)

	self := newSelfComponent(eng)

	in := make(chan packet.Packet, 2)
	in <- packet.OkScalar("in", "recursed")
	in <- packet.Done("in")
	close(in)

	out, err := self.Handle(context.Background(), component.Invocation{ID: "nested"}, in, nil)
	require.NoError(t, err)

	var values []any
	var sawDone bool
	for {
		select {
		case p, ok := <-out:
			if !ok {
				require.True(t, sawDone)
				assert.Equal(t, []any{"recursed"}, values)
				return
			}
			if p.IsDone() {
				sawDone = true
				continue
			}
			values = append(values, p.Scalar)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for self-invocation output")
		}
	}
}

func TestEngineRegistersSelfNamespaceAlongsideUserComponents(t *testing.T) {
	s := buildEchoSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Echo{Namespace: "test"}})
	require.NoError(t, err)

	_, ok := eng.comps.Lookup(schematic.OperationRef{Namespace: "self", Name: SelfOperationName})
	require.True(t, ok, "engine must resolve its own self namespace for ValidateFinal and the dispatch loop")
}
