package instance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/interp/component"
	"github.com/flowgraph/interp/component/fixtures"
	"github.com/flowgraph/interp/packet"
	"github.com/flowgraph/interp/schematic"
)

type recordingSink struct {
	mu   sync.Mutex
	data []schematic.PortRef
	errs []*packet.PacketError
	ch   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan struct{}, 64)}
}

func (r *recordingSink) DispatchData(ref schematic.PortRef) {
	r.mu.Lock()
	r.data = append(r.data, ref)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recordingSink) DispatchOpErr(_ schematic.NodeIndex, err *packet.PacketError) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recordingSink) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d/%d", i+1, n)
		}
	}
}

func echoNode() schematic.Node {
	return schematic.Node{
		Index:     0,
		Name:      "echo",
		Operation: schematic.OperationRef{Namespace: "test", Name: "echo"},
		Inputs:    []schematic.PortSignature{{Name: "input", Type: "string"}},
		Outputs:   []schematic.PortSignature{{Name: "output", Type: "string"}},
	}
}

func TestHandlerFindPorts(t *testing.T) {
	h := New(echoNode(), nil)
	ref, ok := h.FindInput("input")
	require.True(t, ok)
	assert.Equal(t, schematic.Input, ref.Direction)

	_, ok = h.FindInput("nope")
	assert.False(t, ok)
}

func TestHandlerStartIsOnceOnly(t *testing.T) {
	h := New(echoNode(), nil)
	sink := newRecordingSink()
	var comp component.Component = fixtures.Echo{Namespace: "test"}

	inv := component.Invocation{ID: "1", TxID: "tx"}
	require.NoError(t, h.Start(context.Background(), inv, comp, nil, sink))
	assert.True(t, h.Started())

	require.NoError(t, h.Start(context.Background(), inv, comp, nil, sink))
}

func TestHandlerForwardsThroughEchoComponent(t *testing.T) {
	h := New(echoNode(), nil)
	sink := newRecordingSink()
	comp := fixtures.Echo{Namespace: "test"}

	require.NoError(t, h.Start(context.Background(), component.Invocation{ID: "1"}, comp, nil, sink))

	h.Forward(packet.OkScalar("input", "hello"))
	sink.waitFor(t, 1)

	ref, ok := h.FindOutput("output")
	require.True(t, ok)
	pkts := h.OutputBuffer(ref.Index).TakeAll()
	require.Len(t, pkts, 1)
	assert.Equal(t, "hello", pkts[0].Scalar)

	h.Forward(packet.Done("input"))
	sink.waitFor(t, 1)
	assert.Equal(t, DoneClosed, h.OutputBuffer(ref.Index).Status())
}

func TestHandlerSeedDefault(t *testing.T) {
	h := New(echoNode(), nil)
	h.SeedDefault(0, "fallback")
	assert.True(t, h.Ready())
}
