package finance

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProfitChart(t *testing.T) {
	var pts []ProfitPoint
	for i := int64(0); i < 7; i++ {
		pts = append(pts, ProfitPoint{Timestamp: day0 - (6-i)*DayMs, UnrealizedProfit: float64(60 - 10*i)})
	}
	pts[6].UnrealizedProfit = 0

	opts := ChartOptions{Title: "7d profit", Now: time.UnixMilli(noon), Location: time.UTC}
	img, err := RenderProfitChart(pts, opts)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	cached, err := RenderProfitChart(pts, opts)
	require.NoError(t, err)
	assert.Equal(t, img, cached)
}

func TestRenderProfitChartTooShort(t *testing.T) {
	_, err := RenderProfitChart([]ProfitPoint{{day0, 0}}, ChartOptions{})
	assert.ErrorIs(t, err, ErrNotEnoughPoints)
}

func TestChartKeyDependsOnSeries(t *testing.T) {
	opts := ChartOptions{Now: time.UnixMilli(noon)}
	a := chartKey([]ProfitPoint{{1, 1}, {2, 0}}, opts)
	b := chartKey([]ProfitPoint{{1, 2}, {2, 0}}, opts)
	assert.NotEqual(t, a, b)
}
