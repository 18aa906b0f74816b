package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madlib/archived-madlib-sub001/pkg/errors"
	"github.com/madlib/archived-madlib-sub001/sklearn/tree"
)

var points = []tree.PathPoint{
	{CP: 0.5, NumSplits: 0, RelError: 1, XError: 1.02, XStd: 0.05},
	{CP: 0.1, NumSplits: 1, RelError: 0.5, XError: 0.6, XStd: 0.05},
	{CP: 0, NumSplits: 3, RelError: 0.3, XError: 0.62, XStd: 0.05},
}

func TestPlotComplexityPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.png")
	require.NoError(t, PlotComplexityPath(points, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.True(t, errors.Is(PlotComplexityPath(nil, path), errors.ErrEmptyData))
}

func TestComplexityPlotAxes(t *testing.T) {
	p, err := ComplexityPlot(points)
	require.NoError(t, err)
	assert.Equal(t, "Size of tree (leaves)", p.X.Label.Text)
}

func TestWriteComplexityTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteComplexityTable(&buf, points))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "cp,n_splits,rel_error,xerror,xstd", lines[0])
	assert.Equal(t, "0.1,1,0.5,0.6,0.05", lines[2])
}
