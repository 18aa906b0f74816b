package aggregate

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/dataset"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

// stream hides the Partitioner of a source.
type stream struct{ src dataset.Source }

func (s stream) Scan(ctx context.Context, fn func(dtree.Row) error) error { return s.src.Scan(ctx, fn) }

type failing struct{ after int }

func (f failing) Scan(_ context.Context, fn func(dtree.Row) error) error {
	for i := 0; ; i++ {
		if i == f.after {
			return errors.New("connection reset")
		}
		if err := fn(dtree.Row{Cat: []int{0}, Con: []float64{1}, Weight: 1}); err != nil {
			return err
		}
	}
}

func testContext(t *testing.T) *dtree.TrainContext {
	t.Helper()
	table, err := dtree.NewSplitCandidateTable([]int{3}, mat.NewDense(1, 3, []float64{2, 4, 6}))
	require.NoError(t, err)
	p := dtree.Params{Criterion: dtree.Gini, NumClasses: 2, MinSplit: 2, MinBucket: 1, MaxDepth: 4, MaxSurrogates: 1}
	tctx, err := dtree.NewTrainContext(p, table)
	require.NoError(t, err)
	return tctx
}

// integerRows keep every sum exact so that merge order cannot matter.
func integerRows(n int) []dtree.Row {
	rng := rand.New(rand.NewPCG(1, 2))
	rows := make([]dtree.Row, n)
	for i := range rows {
		x := float64(rng.IntN(8))
		level := rng.IntN(4) - 1
		y := 0.0
		if x > 3 {
			y = 1
		}
		if i%7 == 0 {
			x = math.NaN()
		}
		rows[i] = dtree.Row{Cat: []int{level}, Con: []float64{x}, Response: y, Weight: float64(1 + i%3)}
	}
	return rows
}

func TestRunLevelIsIndependentOfSpread(t *testing.T) {
	ctx := context.Background()
	tctx := testContext(t)
	mem := dataset.NewMemorySource(integerRows(1000))

	tree, err := tctx.NewTree()
	require.NoError(t, err)
	want, err := RunLevel(ctx, mem, tctx, tree, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, want.Rows)

	for _, src := range []dataset.Source{mem, stream{mem}} {
		for _, workers := range []int{2, 3, 8} {
			got, err := RunLevel(ctx, src, tctx, tree, workers)
			require.NoError(t, err)
			assert.Equal(t, want, got, "workers %d", workers)
		}
	}
}

func TestRunSurrogateMatchesSequential(t *testing.T) {
	ctx := context.Background()
	tctx := testContext(t)
	mem := dataset.NewMemorySource(integerRows(600))

	tree, err := tctx.NewTree()
	require.NoError(t, err)
	for {
		buf, err := RunLevel(ctx, mem, tctx, tree, 4)
		require.NoError(t, err)
		done, err := dtree.Expand(tctx, tree, buf)
		require.NoError(t, err)
		if done {
			break
		}
	}
	require.Greater(t, tree.NumSplits(), 0)

	want, err := RunSurrogate(ctx, mem, tctx, tree, 0, 1)
	require.NoError(t, err)
	got, err := RunSurrogate(ctx, stream{mem}, tctx, tree, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunReportsTermination(t *testing.T) {
	tctx := testContext(t)
	rows := integerRows(100)
	rows[40].Response = math.Inf(1)
	tree, err := tctx.NewTree()
	require.NoError(t, err)

	_, err = RunLevel(context.Background(), dataset.NewMemorySource(rows), tctx, tree, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTerminated))
}

func TestRunPropagatesSourceErrors(t *testing.T) {
	tctx := testContext(t)
	tree, err := tctx.NewTree()
	require.NoError(t, err)

	for _, workers := range []int{1, 4} {
		_, err = RunLevel(context.Background(), failing{after: 1000}, tctx, tree, workers)
		assert.ErrorContains(t, err, "connection reset")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = RunLevel(cancelled, dataset.NewMemorySource(integerRows(10)), tctx, tree, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmptySource(t *testing.T) {
	tctx := testContext(t)
	tree, err := tctx.NewTree()
	require.NoError(t, err)
	buf, err := RunLevel(context.Background(), dataset.NewMemorySource(nil), tctx, tree, 4)
	require.NoError(t, err)
	assert.Zero(t, buf.Rows)
}
