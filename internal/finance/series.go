package finance

// MinSeriesLength is the length of synthesized flat series.
const MinSeriesLength = 48

// BuildSeries turns a raw sparkline into a usable series.
// Two or more finite samples are returned as is. A single sample, or the
// fallback when there is none, is replicated MinSeriesLength times. With
// neither, the result is empty.
func BuildSeries(raw []float64, fallback *float64) []float64 {
	valid := make([]float64, 0, len(raw))
	for _, v := range raw {
		if isFinite(v) {
			valid = append(valid, v)
		}
	}
	switch {
	case len(valid) >= 2:
		return valid
	case len(valid) == 1:
		return flat(valid[0], MinSeriesLength)
	}
	if v, ok := ToFinite(fallback); ok {
		return flat(v, MinSeriesLength)
	}
	return []float64{}
}

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// ResampleNearest stretches or shrinks series to n points by nearest index.
func ResampleNearest(series []float64, n int) []float64 {
	if n <= 0 || len(series) == 0 {
		return []float64{}
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = series[len(series)-1]
		return out
	}
	last := len(series) - 1
	for i := range out {
		idx := int(float64(i)*float64(last)/float64(n-1) + 0.5)
		if idx > last {
			idx = last
		}
		out[i] = series[idx]
	}
	return out
}

// spreadBackward lays values evenly over [now-windowDays, now], the last
// value landing on now.
func spreadBackward(values []float64, windowDays int, now int64) []TimestampedSample {
	n := len(values)
	if n == 0 {
		return nil
	}
	out := make([]TimestampedSample, n)
	if n == 1 {
		out[0] = TimestampedSample{Timestamp: now, Price: values[0]}
		return out
	}
	span := int64(windowDays) * DayMs
	for i, v := range values {
		back := span * int64(n-1-i) / int64(n-1)
		out[i] = TimestampedSample{Timestamp: now - back, Price: v}
	}
	return out
}
