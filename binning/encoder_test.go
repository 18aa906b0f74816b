package binning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madlib/archived-madlib-sub001/core/dtree"
	"github.com/madlib/archived-madlib-sub001/pkg/errors"
)

func TestLevelEncoderFit(t *testing.T) {
	data := [][]string{
		{"cat", "red"},
		{"dog", "blue"},
		{"cat", "NULL"},
		{"fish", ""},
	}
	enc := NewLevelEncoder("NULL")
	require.NoError(t, enc.Fit(data))

	assert.True(t, enc.State.IsFitted())
	assert.Equal(t, 2, enc.NFeatures)
	assert.Equal(t, [][]string{{"cat", "dog", "fish"}, {"blue", "red"}}, enc.Categories)
	assert.Equal(t, []int{3, 2}, enc.Levels())

	codes, err := enc.Encode([]string{"dog", "NULL"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, dtree.NullLevel}, codes)

	codes, err = enc.Encode([]string{"bird", "red"})
	require.NoError(t, err)
	assert.Equal(t, []int{dtree.NullLevel, 1}, codes)

	assert.Equal(t, "fish", enc.Decode(0, 2))
	assert.Equal(t, "", enc.Decode(0, dtree.NullLevel))
}

func TestLevelEncoderOrdersByResponse(t *testing.T) {
	data := [][]string{{"a"}, {"a"}, {"b"}, {"c"}, {"c"}, {"c"}}
	y := []float64{9, 7, 1, 4, 5, 6}

	enc := NewLevelEncoder()
	require.NoError(t, enc.FitOrdered(data, y, true, 0))
	assert.Equal(t, []string{"b", "c", "a"}, enc.Categories[0])

	multi := NewLevelEncoder()
	require.NoError(t, multi.FitOrdered(data, []float64{0, 1, 2, 0, 1, 2}, false, 3))
	assert.Equal(t, []string{"c", "a", "b"}, multi.Categories[0])
}

func TestLevelEncoderErrors(t *testing.T) {
	enc := NewLevelEncoder()
	_, err := enc.Encode([]string{"x"})
	assert.True(t, errors.Is(err, errors.ErrNotFitted))

	assert.True(t, errors.Is(enc.Fit(nil), errors.ErrEmptyData))
	assert.True(t, errors.Is(enc.Fit([][]string{{"a", "b"}, {"a"}}), errors.ErrDimensionMismatch))
	assert.True(t, errors.Is(enc.FitOrdered([][]string{{"a"}}, nil, true, 0), errors.ErrDimensionMismatch))

	require.NoError(t, enc.Fit([][]string{{""}}))
	assert.Equal(t, []int{1}, enc.Levels())
	_, err = enc.Encode([]string{"a", "b"})
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestFromLevels(t *testing.T) {
	enc, err := FromLevels([]map[string]int{{"b": 1, "a": 0}, {}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, enc.Levels())
	codes, err := enc.Encode([]string{"b", "x"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, dtree.NullLevel}, codes)
	assert.Equal(t, "a", enc.Decode(0, 0))

	_, err = FromLevels([]map[string]int{{"a": 0, "b": 0}})
	assert.Error(t, err)
	_, err = FromLevels([]map[string]int{{"a": 2}})
	assert.Error(t, err)
}
