package interpreter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsMarkEndAccumulatesElapsed(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStats(base)

	s.Mark("execution", base)
	s.End("execution", base.Add(100*time.Millisecond))
	assert.Equal(t, 100*time.Millisecond, s.Elapsed("execution"))

	s.Mark("execution", base.Add(200*time.Millisecond))
	s.End("execution", base.Add(250*time.Millisecond))
	assert.Equal(t, 150*time.Millisecond, s.Elapsed("execution"))
}

func TestStatsEndWithoutMarkIsNoop(t *testing.T) {
	s := NewStats(time.Now())
	s.End("never-marked", time.Now())
	assert.Zero(t, s.Elapsed("never-marked"))
}

func TestStatsTotalZeroUntilFinish(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStats(base)
	assert.Zero(t, s.Total())

	s.Finish(base.Add(time.Second))
	assert.Equal(t, time.Second, s.Total())
}

func TestStatsSnapshotIsACopy(t *testing.T) {
	base := time.Now()
	s := NewStats(base)
	s.Mark("a", base)
	s.End("a", base.Add(time.Millisecond))

	snap := s.Snapshot()
	snap["a"] = time.Hour
	assert.NotEqual(t, time.Hour, s.Elapsed("a"))
}
