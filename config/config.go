// Package config holds engine-level tunables: channel buffer sizes, the
// hang-detection threshold, and the RNG seed used to derive transaction and
// per-instance invocation ids. Shaped after graph.StreamConfig /
// graph.DefaultStreamConfig's functional-default pattern.
package config

import "time"

// Options configures a single interpreter.Engine.
type Options struct {
	// ChannelBuffer sizes each transaction's dispatch event channel and its
	// external output (Result) channel. The per-instance input stream a
	// Handler feeds its component has a fixed buffer of its own.
	ChannelBuffer int

	// HangTimeout is how long a transaction may go without a dispatch event
	// before the engine emits a synthetic "Transaction hung" error on its
	// output node. Zero disables hang detection.
	HangTimeout time.Duration

	// HangCheckInterval is how often the engine's stall-detection ticker
	// compares a transaction's last-access time against HangTimeout.
	HangCheckInterval time.Duration

	// Seed roots the engine's transaction and per-instance invocation id
	// generator (a math/rand/v2 source feeding uuid.NewRandomFromReader and
	// the entropy of ulid.New), and is also copied onto every
	// component.Invocation this engine builds for components that want
	// deterministic output of their own. The same non-zero Seed reproduces
	// the same sequence of random bytes across runs that start transactions
	// in the same order; a ULID's timestamp part is wall-clock time. Zero
	// means "no seed configured": the engine draws a fresh seed from
	// crypto/rand instead, so ids stay unique but are not reproducible.
	Seed uint64
}

// Option mutates an Options value during construction.
type Option func(*Options)

// Default returns the engine's baseline configuration.
func Default() Options {
	return Options{
		ChannelBuffer:     256,
		HangTimeout:       30 * time.Second,
		HangCheckInterval: 5 * time.Second,
		Seed:              0,
	}
}

// WithChannelBuffer overrides the dispatch/output channel buffer size.
func WithChannelBuffer(n int) Option {
	return func(o *Options) { o.ChannelBuffer = n }
}

// WithHangTimeout overrides the hang-detection threshold. A zero duration
// disables hang detection entirely.
func WithHangTimeout(d time.Duration) Option {
	return func(o *Options) { o.HangTimeout = d }
}

// WithHangCheckInterval overrides how often the stall ticker polls.
func WithHangCheckInterval(d time.Duration) Option {
	return func(o *Options) { o.HangCheckInterval = d }
}

// WithSeed overrides the engine's root RNG seed, for reproducible
// transaction and invocation ids across runs.
func WithSeed(seed uint64) Option {
	return func(o *Options) { o.Seed = seed }
}

// Apply builds an Options value from Default() plus the given overrides.
func Apply(opts ...Option) Options {
	o := Default()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
