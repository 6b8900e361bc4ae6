package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSeries(t *testing.T) {
	t.Run("real data wins", func(t *testing.T) {
		got := BuildSeries([]float64{1, math.NaN(), 2, math.Inf(1), 3}, ptr(100))
		assert.Equal(t, []float64{1, 2, 3}, got)
	})
	t.Run("single sample is replicated", func(t *testing.T) {
		got := BuildSeries([]float64{5}, nil)
		assert.Len(t, got, MinSeriesLength)
		for _, v := range got {
			assert.Equal(t, 5.0, v)
		}
	})
	t.Run("fallback scalar", func(t *testing.T) {
		got := BuildSeries([]float64{}, ptr(100))
		assert.Len(t, got, MinSeriesLength)
		for _, v := range got {
			assert.Equal(t, 100.0, v)
		}
	})
	t.Run("no data", func(t *testing.T) {
		assert.Equal(t, []float64{}, BuildSeries([]float64{}, nil))
		assert.Equal(t, []float64{}, BuildSeries(nil, ptr(math.NaN())))
	})
}

func TestResampleNearest(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 2, 3, 3}, ResampleNearest([]float64{1, 2, 3}, 5))
	assert.Equal(t, []float64{1, 3}, ResampleNearest([]float64{1, 2, 3}, 2))
	assert.Equal(t, []float64{3}, ResampleNearest([]float64{1, 2, 3}, 1))
	assert.Empty(t, ResampleNearest(nil, 4))
	assert.Empty(t, ResampleNearest([]float64{1}, 0))
}

func TestSpreadBackward(t *testing.T) {
	pts := spreadBackward([]float64{1, 2, 3}, 2, noon)
	assert.Equal(t, []TimestampedSample{
		{noon - 2*DayMs, 1},
		{noon - DayMs, 2},
		{noon, 3},
	}, pts)
	assert.Nil(t, spreadBackward(nil, 7, noon))
}
