package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/component/fixtures"
	"github.com/flowgraph/interp/config"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

func buildEchoSchematic(t *testing.T) *schematic.Schematic {
	t.Helper()
	def := schematic.Definition{
		Nodes: []schematic.NodeSpec{
			{Name: schematic.InputNodeName, Outputs: []schematic.PortSignature{{Name: "in", Type: "string"}}},
			{
				Name:      "echo",
				Operation: schematic.OperationRef{Namespace: "test", Name: "echo"},
				Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
				Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{Name: schematic.OutputNodeName, Inputs: []schematic.PortSignature{{Name: "out", Type: "string"}}},
		},
		Connections: []schematic.ConnectionSpec{
			{FromNode: schematic.InputNodeName, FromPort: "in", ToNode: "echo", ToPort: "input"},
			{FromNode: "echo", FromPort: "output", ToNode: schematic.OutputNodeName, ToPort: "out"},
		},
	}
	s, err := schematic.Build(def)
	require.NoError(t, err)
	require.Empty(t, schematic.ValidateEarly(s))
	return s
}

func collect(t *testing.T, ctx context.Context, out <-chan Result, timeout time.Duration) []Result {
	t.Helper()
	var got []Result
	for {
		select {
		case r, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, r)
		case <-time.After(timeout):
			t.Fatal("timed out collecting results")
		case <-ctx.Done():
			t.Fatal("context cancelled while collecting")
		}
	}
}

func TestEngineEchoScenario(t *testing.T) {
	s := buildEchoSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Echo{Namespace: "test"}})
	require.NoError(t, err)

	ctx := context.Background()
	out, err := eng.Invoke(ctx, map[string][]packet.Packet{
		"in": {packet.OkScalar("in", "hello"), packet.Done("in")},
	})
	require.NoError(t, err)

	results := collect(t, ctx, out, 2*time.Second)
	require.NotEmpty(t, results)
	assert.Equal(t, "hello", results[0].Packet.Scalar)
	assert.True(t, results[len(results)-1].Packet.IsDone())
}

func TestEngineDropsNoopPackets(t *testing.T) {
	s := buildEchoSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Echo{Namespace: "test"}})
	require.NoError(t, err)

	ctx := context.Background()
	out, err := eng.Invoke(ctx, map[string][]packet.Packet{
		"in": {packet.Noop("in"), packet.OkScalar("in", "hello"), packet.Done("in")},
	})
	require.NoError(t, err)

	results := collect(t, ctx, out, 2*time.Second)
	var values []any
	for _, r := range results {
		if !r.Packet.IsDone() {
			values = append(values, r.Packet.Scalar)
		}
	}
	assert.Equal(t, []any{"hello"}, values)
}

func buildFanOutSchematic(t *testing.T) *schematic.Schematic {
	t.Helper()
	def := schematic.Definition{
		Nodes: []schematic.NodeSpec{
			{Name: schematic.InputNodeName, Outputs: []schematic.PortSignature{{Name: "in", Type: "string"}}},
			{
				Name:      "left",
				Operation: schematic.OperationRef{Namespace: "test", Name: "left"},
				Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
				Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{
				Name:      "right",
				Operation: schematic.OperationRef{Namespace: "test", Name: "right"},
				Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
				Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{
				Name:      "join",
				Operation: schematic.OperationRef{Namespace: "test", Name: "concat"},
				Inputs: []schematic.PortSignature{
					{Name: "a", Type: "string"},
					{Name: "b", Type: "string"},
				},
				Outputs: []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{Name: schematic.OutputNodeName, Inputs: []schematic.PortSignature{{Name: "out", Type: "string"}}},
		},
		Connections: []schematic.ConnectionSpec{
			{FromNode: schematic.InputNodeName, FromPort: "in", ToNode: "left", ToPort: "input"},
			{FromNode: schematic.InputNodeName, FromPort: "in", ToNode: "right", ToPort: "input"},
			{FromNode: "left", FromPort: "output", ToNode: "join", ToPort: "a"},
			{FromNode: "right", FromPort: "output", ToNode: "join", ToPort: "b"},
			{FromNode: "join", FromPort: "output", ToNode: schematic.OutputNodeName, ToPort: "out"},
		},
	}
	s, err := schematic.Build(def)
	require.NoError(t, err)
	require.Empty(t, schematic.ValidateEarly(s))
	return s
}

func TestEngineFanOutFanInScenario(t *testing.T) {
	s := buildFanOutSchematic(t)
	components := []component.Component{
		fixtures.Prepend{Namespace: "test", Name: "left", Prefix: "L:"},
		fixtures.Prepend{Namespace: "test", Name: "right", Prefix: "R:"},
		fixtures.Concat{Namespace: "test"},
	}
	eng, err := New(s, components)
	require.NoError(t, err)

	ctx := context.Background()
	out, err := eng.Invoke(ctx, map[string][]packet.Packet{
		"in": {packet.OkScalar("in", "x"), packet.Done("in")},
	})
	require.NoError(t, err)

	results := collect(t, ctx, out, 2*time.Second)
	var values []any
	for _, r := range results {
		if !r.Packet.IsDone() {
			values = append(values, r.Packet.Scalar)
		}
	}
	require.Len(t, values, 1)
	assert.Equal(t, "L:x R:x", values[0])
}

func buildDefaultOnErrorSchematic(t *testing.T) *schematic.Schematic {
	t.Helper()
	def := schematic.Definition{
		Nodes: []schematic.NodeSpec{
			{Name: schematic.InputNodeName, Outputs: []schematic.PortSignature{{Name: "in", Type: "string"}}},
			{
				Name:      "risky",
				Operation: schematic.OperationRef{Namespace: "test", Name: "fail"},
				Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
				Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{Name: schematic.OutputNodeName, Inputs: []schematic.PortSignature{{Name: "out", Type: "string"}}},
		},
		Connections: []schematic.ConnectionSpec{
			{FromNode: schematic.InputNodeName, FromPort: "in", ToNode: "risky", ToPort: "input"},
			{
				FromNode: "risky", FromPort: "output",
				ToNode: schematic.OutputNodeName, ToPort: "out",
				Default: &schematic.Default{Literal: "fallback: ${error.message}"},
			},
		},
	}
	s, err := schematic.Build(def)
	require.NoError(t, err)
	require.Empty(t, schematic.ValidateEarly(s))
	return s
}

func TestEngineDefaultOnErrorScenario(t *testing.T) {
	s := buildDefaultOnErrorSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Fail{Namespace: "test", Message: "disk full"}})
	require.NoError(t, err)

	ctx := context.Background()
	out, err := eng.Invoke(ctx, map[string][]packet.Packet{
		"in": {packet.OkScalar("in", "x"), packet.Done("in")},
	})
	require.NoError(t, err)

	results := collect(t, ctx, out, 2*time.Second)
	var values []any
	for _, r := range results {
		if !r.Packet.IsDone() {
			values = append(values, r.Packet.Scalar)
		}
	}
	require.Len(t, values, 1)
	assert.Equal(t, "fallback: disk full", values[0])
}

func buildHangSchematic(t *testing.T) *schematic.Schematic {
	t.Helper()
	def := schematic.Definition{
		Nodes: []schematic.NodeSpec{
			{Name: schematic.InputNodeName, Outputs: []schematic.PortSignature{{Name: "in", Type: "string"}}},
			{
				Name:      "stuck",
				Operation: schematic.OperationRef{Namespace: "test", Name: "slow"},
				Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
				Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{Name: schematic.OutputNodeName, Inputs: []schematic.PortSignature{{Name: "out", Type: "string"}}},
		},
		Connections: []schematic.ConnectionSpec{
			{FromNode: schematic.InputNodeName, FromPort: "in", ToNode: "stuck", ToPort: "input"},
			{FromNode: "stuck", FromPort: "output", ToNode: schematic.OutputNodeName, ToPort: "out"},
		},
	}
	s, err := schematic.Build(def)
	require.NoError(t, err)
	require.Empty(t, schematic.ValidateEarly(s))
	return s
}

func TestEngineDetectsHungTransaction(t *testing.T) {
	s := buildHangSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Slow{Namespace: "test"}},
		config.WithHangTimeout(50*time.Millisecond),
		config.WithHangCheckInterval(10*time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, err := eng.InvokeSync(ctx, map[string][]packet.Packet{
		"in": {packet.OkScalar("in", "x"), packet.Done("in")},
	})
	assert.Error(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Packet.IsError())
	assert.Equal(t, "out", results[0].Port)
	assert.Contains(t, results[0].Packet.Err.Message, "Transaction hung")
	assert.True(t, results[1].Packet.IsDone())
}

func buildBrokenSchematic(t *testing.T) *schematic.Schematic {
	t.Helper()
	def := schematic.Definition{
		Nodes: []schematic.NodeSpec{
			{Name: schematic.InputNodeName, Outputs: []schematic.PortSignature{{Name: "in", Type: "string"}}},
			{
				Name:      "broken",
				Operation: schematic.OperationRef{Namespace: "test", Name: "broken"},
				Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
				Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
			},
			{Name: schematic.OutputNodeName, Inputs: []schematic.PortSignature{{Name: "out", Type: "string"}}},
		},
		Connections: []schematic.ConnectionSpec{
			{FromNode: schematic.InputNodeName, FromPort: "in", ToNode: "broken", ToPort: "input"},
			{FromNode: "broken", FromPort: "output", ToNode: schematic.OutputNodeName, ToPort: "out"},
		},
	}
	s, err := schematic.Build(def)
	require.NoError(t, err)
	require.Empty(t, schematic.ValidateEarly(s))
	return s
}

func TestEngineNodeFailurePresentsAsErrorPacket(t *testing.T) {
	s := buildBrokenSchematic(t)
	eng, err := New(s, []component.Component{fixtures.Broken{Namespace: "test", Message: "cannot start"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, err := eng.InvokeSync(ctx, map[string][]packet.Packet{
		"in": {packet.OkScalar("in", "x"), packet.Done("in")},
	})
	assert.Error(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Packet.IsError())
	assert.Equal(t, "cannot start", results[0].Packet.Err.Message)
	assert.True(t, results[1].Packet.IsDone())
}

func TestEngineRejectsUnresolvedComponent(t *testing.T) {
	s := buildEchoSchematic(t)
	_, err := New(s, nil)
	assert.Error(t, err)
}
