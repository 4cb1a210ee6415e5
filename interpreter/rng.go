package interpreter

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
)

// seededSource is an io.Reader backed by a math/rand/v2 generator, used to
// feed uuid.NewRandomFromReader and ulid.New so transaction ids and the
// random part of per-instance invocation ids come from one reproducible
// stream per engine
// instead of each package's own crypto-random global source. An Engine can
// drive many concurrent transactions, so reads are serialized.
type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// newSeededSource builds a seededSource from seed. A zero seed (the
// "unconfigured" case) draws a fresh seed from crypto/rand instead, so ids
// stay unique across unrelated unseeded runs; a non-zero seed reproduces
// the exact same id sequence every time it's reused.
func newSeededSource(seed uint64) *seededSource {
	if seed == 0 {
		var b [8]byte
		if _, err := rand.Read(b[:]); err == nil {
			seed = binary.LittleEndian.Uint64(b[:])
		}
	}
	return &seededSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf [8]byte
	for i := 0; i < len(p); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], s.rng.Uint64())
		copy(p[i:], buf[:])
	}
	return len(p), nil
}
