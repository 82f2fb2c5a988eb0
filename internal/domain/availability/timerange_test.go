package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, start, end time.Time) TimeRange {
	t.Helper()
	r, err := NewTimeRange(start, end)
	require.NoError(t, err)
	return r
}

func TestNewTimeRange(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("valid range", func(t *testing.T) {
		r, err := NewTimeRange(base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, r.Duration())
	})

	t.Run("zero-length rejected", func(t *testing.T) {
		_, err := NewTimeRange(base, base)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("inverted rejected", func(t *testing.T) {
		_, err := NewTimeRange(base.Add(time.Hour), base)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestTimeRangeOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := mustRange(t, base, base.Add(2*time.Hour))

	tests := []struct {
		name    string
		other   TimeRange
		overlap bool
	}{
		{"identical", r, true},
		{"contained", mustRange(t, base.Add(30*time.Minute), base.Add(time.Hour)), true},
		{"partial left", mustRange(t, base.Add(-time.Hour), base.Add(time.Hour)), true},
		{"partial right", mustRange(t, base.Add(time.Hour), base.Add(3*time.Hour)), true},
		{"touching at start", mustRange(t, base.Add(-time.Hour), base), false},
		{"touching at end", mustRange(t, base.Add(2*time.Hour), base.Add(3*time.Hour)), false},
		{"disjoint before", mustRange(t, base.Add(-3*time.Hour), base.Add(-2*time.Hour)), false},
		{"disjoint after", mustRange(t, base.Add(5*time.Hour), base.Add(6*time.Hour)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlap, r.Overlaps(tt.other))
			// Overlap is symmetric.
			assert.Equal(t, tt.overlap, tt.other.Overlaps(r))
		})
	}
}

func TestTimeRangeContains(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := mustRange(t, base, base.Add(2*time.Hour))

	assert.True(t, r.Contains(r))
	assert.True(t, r.Contains(mustRange(t, base.Add(30*time.Minute), base.Add(time.Hour))))
	assert.False(t, r.Contains(mustRange(t, base.Add(-time.Minute), base.Add(time.Hour))))
	assert.False(t, r.Contains(mustRange(t, base.Add(time.Hour), base.Add(3*time.Hour))))
}

func TestTimeRangeSubtract(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := mustRange(t, base, base.Add(4*time.Hour))

	t.Run("no overlap returns original", func(t *testing.T) {
		out := r.Subtract(mustRange(t, base.Add(5*time.Hour), base.Add(6*time.Hour)))
		require.Len(t, out, 1)
		assert.Equal(t, r, out[0])
	})

	t.Run("middle cut yields two pieces", func(t *testing.T) {
		out := r.Subtract(mustRange(t, base.Add(time.Hour), base.Add(2*time.Hour)))
		require.Len(t, out, 2)
		assert.Equal(t, base, out[0].Start)
		assert.Equal(t, base.Add(time.Hour), out[0].End)
		assert.Equal(t, base.Add(2*time.Hour), out[1].Start)
		assert.Equal(t, base.Add(4*time.Hour), out[1].End)
	})

	t.Run("full cover yields nothing", func(t *testing.T) {
		out := r.Subtract(mustRange(t, base.Add(-time.Hour), base.Add(5*time.Hour)))
		assert.Empty(t, out)
	})

	t.Run("left edge cut yields tail", func(t *testing.T) {
		out := r.Subtract(mustRange(t, base, base.Add(time.Hour)))
		require.Len(t, out, 1)
		assert.Equal(t, base.Add(time.Hour), out[0].Start)
		assert.Equal(t, base.Add(4*time.Hour), out[0].End)
	})
}
