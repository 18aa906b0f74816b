package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCoversRangeExactlyOnce(t *testing.T) {
	for _, tc := range []struct{ n, parts int }{{10, 3}, {3, 10}, {1, 1}, {100, 7}, {5, 0}} {
		ranges := Split(tc.n, tc.parts)
		require.NotEmpty(t, ranges)
		next := 0
		for _, r := range ranges {
			assert.Equal(t, next, r.Start)
			assert.Greater(t, r.Len(), 0)
			next = r.End
		}
		assert.Equal(t, tc.n, next)
	}
	assert.Nil(t, Split(0, 4))
}

func TestSplitBalanced(t *testing.T) {
	ranges := Split(10, 3)
	require.Len(t, ranges, 3)
	assert.Equal(t, []int{4, 3, 3}, []int{ranges[0].Len(), ranges[1].Len(), ranges[2].Len()})
}

func TestParallelizeVisitsEveryIndex(t *testing.T) {
	const n = 1000
	var seen [n]int32
	Parallelize(n, 8, func(_, start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})
	for i := range seen {
		assert.EqualValues(t, 1, seen[i], "index %d", i)
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}
