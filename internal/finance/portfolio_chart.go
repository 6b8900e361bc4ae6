package finance

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/vicanso/go-charts/v2"
)

// ErrNotEnoughPoints is returned when a series is too short to draw.
var ErrNotEnoughPoints = errors.New("not enough data points")

// ChartOptions controls RenderProfitChart.
type ChartOptions struct {
	Title    string
	Subtitle string
	Location *time.Location
	Now      time.Time
}

// RenderProfitChart draws the series as a PNG line chart. Results are
// cached for a minute keyed by the series and options.
func RenderProfitChart(points []ProfitPoint, opts ChartOptions) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughPoints
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cacheKey := chartKey(points, opts)
	if img, found := cacheGet(cacheKey); found {
		return img, nil
	}

	xLabels := make([]string, len(points))
	values := make([]float64, len(points))
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for i, p := range points {
		xLabels[i] = FormatDayLabel(p.Timestamp, opts.Now, opts.Location)
		values[i] = p.UnrealizedProfit
		minVal = math.Min(minVal, p.UnrealizedProfit)
		maxVal = math.Max(maxVal, p.UnrealizedProfit)
	}

	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = math.Max(math.Abs(maxVal)*0.05, 1)
	}
	yMin := minVal - padding
	yMax := maxVal + padding

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	title := opts.Title
	if title == "" {
		title = "Unrealized profit"
	}
	p, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc(title, opts.Subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	cacheSet(cacheKey, buf)
	return buf, nil
}

func chartKey(points []ProfitPoint, opts ChartOptions) string {
	h := fnv.New64a()
	for _, p := range points {
		fmt.Fprintf(h, "%d:%.6f;", p.Timestamp, p.UnrealizedProfit)
	}
	loc := "UTC"
	if opts.Location != nil {
		loc = opts.Location.String()
	}
	day := BucketDay(opts.Now.UnixMilli())
	return strings.Join([]string{fmt.Sprintf("%x", h.Sum64()), opts.Title, opts.Subtitle, loc, fmt.Sprint(day)}, "|")
}
