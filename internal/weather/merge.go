package weather

import "time"

// MergeSeries fills nil fields of the primary series from a fallback series.
// Primary values always win field-by-field; the fallback contributes only the
// listed fields, and only where the primary is nil. When the fallback runs on
// a different temporal grid its values are resampled onto the primary's
// timestamps by linear interpolation between the nearest bracketing non-nil
// samples (clamped to the nearest sample outside the fallback's range).
// Thunder level is ordinal, so it is filled by nearest-neighbor instead.
//
// The returned series keeps the primary's provenance metadata; filled fields
// are reported separately by the resolver.
func MergeSeries(primary, fallback NormalizedTimeseries, fields []Metric) NormalizedTimeseries {
	merged := NormalizedTimeseries{
		Points: make([]Datapoint, len(primary.Points)),
		Meta:   primary.Meta,
	}
	copy(merged.Points, primary.Points)

	for _, field := range fields {
		if field == MetricThunderLevel {
			fillThunder(merged.Points, fallback.Points)
			continue
		}
		samples := collectSamples(fallback.Points, field)
		if len(samples) == 0 {
			continue
		}
		for i := range merged.Points {
			if merged.Points[i].Value(field) != nil {
				continue
			}
			if v := interpolateAt(samples, merged.Points[i].Time); v != nil {
				merged.Points[i].SetValue(field, v)
			}
		}
	}
	return merged
}

type sample struct {
	at    time.Time
	value float64
}

func collectSamples(points []Datapoint, m Metric) []sample {
	var out []sample
	for _, p := range points {
		if v := p.Value(m); v != nil {
			out = append(out, sample{at: p.Time, value: *v})
		}
	}
	return out
}

// interpolateAt linearly interpolates the sample series at t. Samples are
// assumed time-ordered, which holds for normalized provider output.
func interpolateAt(samples []sample, t time.Time) *float64 {
	if len(samples) == 0 {
		return nil
	}
	if !t.After(samples[0].at) {
		v := samples[0].value
		return &v
	}
	last := samples[len(samples)-1]
	if !t.Before(last.at) {
		v := last.value
		return &v
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].at.Before(t) {
			continue
		}
		lo, hi := samples[i-1], samples[i]
		span := hi.at.Sub(lo.at)
		if span <= 0 {
			v := lo.value
			return &v
		}
		frac := float64(t.Sub(lo.at)) / float64(span)
		v := lo.value + frac*(hi.value-lo.value)
		return &v
	}
	return nil
}

func fillThunder(points []Datapoint, fallback []Datapoint) {
	var samples []Datapoint
	for _, p := range fallback {
		if p.Thunder != nil {
			samples = append(samples, p)
		}
	}
	if len(samples) == 0 {
		return
	}
	for i := range points {
		if points[i].Thunder != nil {
			continue
		}
		nearest := samples[0]
		best := absDuration(points[i].Time.Sub(nearest.Time))
		for _, s := range samples[1:] {
			if d := absDuration(points[i].Time.Sub(s.Time)); d < best {
				nearest, best = s, d
			}
		}
		level := *nearest.Thunder
		points[i].Thunder = &level
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
