package component_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/component/fixtures"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

func TestHandlerMapLookupResolvesRegisteredOperations(t *testing.T) {
	hm := component.NewHandlerMap(
		fixtures.Echo{Namespace: "test"},
		fixtures.Fail{Namespace: "test"},
	)

	c, ok := hm.Lookup(schematic.OperationRef{Namespace: "test", Name: "echo"})
	require.True(t, ok)
	assert.IsType(t, fixtures.Echo{}, c)

	_, ok = hm.Lookup(schematic.OperationRef{Namespace: "test", Name: "nope"})
	assert.False(t, ok)
}

func TestHandlerMapResolverMatchesSchematicResolver(t *testing.T) {
	hm := component.NewHandlerMap(fixtures.Echo{Namespace: "test"})
	resolve := hm.Resolver()

	sig, ok := resolve(schematic.OperationRef{Namespace: "test", Name: "echo"})
	require.True(t, ok)
	require.Len(t, sig.Inputs, 1)
	assert.Equal(t, "input", sig.Inputs[0].Name)

	_, ok = resolve(schematic.OperationRef{Namespace: "test", Name: "missing"})
	assert.False(t, ok)
}

func TestHandlerMapLastComponentWinsOnDuplicateOperation(t *testing.T) {
	first := fixtures.Fail{Namespace: "test", Message: "first"}
	second := fixtures.Fail{Namespace: "test", Message: "second"}
	hm := component.NewHandlerMap(first, second)

	c, ok := hm.Lookup(schematic.OperationRef{Namespace: "test", Name: "fail"})
	require.True(t, ok)
	assert.Equal(t, second, c)
}

func TestEchoComponentHandleRoundTrips(t *testing.T) {
	e := fixtures.Echo{Namespace: "test"}
	in := make(chan packet.Packet, 2)
	in <- packet.OkScalar("input", "hi")
	in <- packet.Done("input")
	close(in)

	out, err := e.Handle(context.Background(), component.Invocation{ID: "1"}, in, nil)
	require.NoError(t, err)

	p := <-out
	assert.Equal(t, "hi", p.Scalar)
	assert.Equal(t, "output", p.Port)

	done := <-out
	assert.True(t, done.IsDone())
}
