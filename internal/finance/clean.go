package finance

// CleanSamples drops samples with a non-finite or negative price.
func CleanSamples(in []TimestampedSample) []TimestampedSample {
	out := make([]TimestampedSample, 0, len(in))
	for _, s := range in {
		if !isFinite(s.Price) || s.Price < 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}
