// Package instance implements the per-transaction port and instance
// runtime: buffered input/output ports with readiness states, and the
// instance handler that starts an operation and shuttles packets between
// its component stream and the schematic's edges.
package instance

import (
	"sync"

	"github.com/flowgraph/interp/packet"
)

// Status is a port's lifecycle state. A port transitions monotonically:
// Open -> Closing -> DoneOpen -> DoneClosed. Once DoneClosed, no further
// packets may be enqueued.
type Status int

const (
	// Open accepts packets normally.
	Open Status = iota
	// Closing has been told to stop accepting new data but hasn't yet
	// observed Done; the next non-Done enqueue promotes straight to
	// DoneOpen (see Buffer.In).
	Closing
	// DoneOpen has observed Done but still holds queued packets.
	DoneOpen
	// DoneClosed has observed Done and drained its queue; terminal.
	DoneClosed
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case DoneOpen:
		return "done-open"
	case DoneClosed:
		return "done-closed"
	default:
		return "unknown"
	}
}

// Buffer is a single port's packet queue plus its lifecycle state. Every
// enqueue/dequeue goes through a narrow lock scoped to this buffer alone —
// the same "lock only the critical section" discipline the teacher's
// ListenableNode uses for its listener slice.
type Buffer struct {
	mu     sync.Mutex
	status Status
	queue  []packet.Packet

	// taken flags that the buffer has been drained to empty at least once
	// since the last enqueue: Take and TakeAll set it, In clears it. No
	// accessor exposes it, and nothing outside this type reads it.
	taken bool
}

// Status returns the port's current lifecycle state.
func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// IsEmpty reports whether the queue currently holds no packets.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) == 0
}

// In enqueues a packet:
//   - DoneClosed: drop and return false.
//   - Done flag: status becomes DoneOpen if the queue is non-empty, else
//     DoneClosed; the Done marker itself is never stored.
//   - otherwise: append to queue; Open stays Open, Closing promotes to
//     DoneOpen.
//
// Returns false when the packet was dropped (status was already
// DoneClosed), so the caller can log a warning.
func (b *Buffer) In(p packet.Packet) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status == DoneClosed {
		return false
	}
	if p.IsDone() {
		if len(b.queue) > 0 {
			b.status = DoneOpen
		} else {
			b.status = DoneClosed
		}
		return true
	}

	b.queue = append(b.queue, p)
	b.taken = false
	if b.status == Closing {
		b.status = DoneOpen
	}
	return true
}

// MarkClosing transitions Open to Closing. A no-op from any other state.
func (b *Buffer) MarkClosing() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == Open {
		b.status = Closing
	}
}

// Take dequeues one packet. If the queue becomes empty and status is
// DoneOpen, it promotes to DoneClosed.
func (b *Buffer) Take() (packet.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		b.taken = true
		return packet.Packet{}, false
	}
	p := b.queue[0]
	b.queue = b.queue[1:]
	if len(b.queue) == 0 {
		b.taken = true
		if b.status == DoneOpen {
			b.status = DoneClosed
		}
	}
	return p, true
}

// TakeAll drains every currently queued packet, in order.
func (b *Buffer) TakeAll() []packet.Packet {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	b.taken = true
	if b.status == DoneOpen {
		b.status = DoneClosed
	}
	return out
}

// Ready reports whether this port is satisfied for instance-start
// purposes: it has data queued, or it will never receive more (DoneClosed
// and empty).
func (b *Buffer) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) > 0 || b.status == DoneClosed
}
