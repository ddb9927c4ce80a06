package weather

import "math"

// DetectChanges compares a fresh summary against the stored baseline and
// classifies each tracked metric's drift into a severity tier. Every metric
// with a value on both sides yields an entry, severity "none" included, so
// consumers can audit the full comparison; only AlertWorthy entries should
// trigger notification. Metrics that are nil on either side are skipped, not
// treated as a change. Thunder level is ordinal and excluded from numeric
// diffing.
func DetectChanges(old, fresh SegmentWeatherSummary, th Thresholds) []WeatherChange {
	pairs := []struct {
		metric    Metric
		old, new  *float64
		threshold float64
	}{
		{MetricTemperature, old.TempAvg, fresh.TempAvg, th.Temperature},
		{MetricWind, old.WindMax, fresh.WindMax, th.Wind},
		{MetricGust, old.GustMax, fresh.GustMax, th.Gust},
		{MetricPrecipitation, old.PrecipSum, fresh.PrecipSum, th.Precipitation},
	}

	var changes []WeatherChange
	for _, p := range pairs {
		if p.old == nil || p.new == nil || p.threshold <= 0 {
			continue
		}
		delta := *p.new - *p.old
		severity := classifySeverity(math.Abs(delta) / p.threshold)
		direction := DirectionIncrease
		if delta < 0 {
			direction = DirectionDecrease
		}
		changes = append(changes, WeatherChange{
			Metric:    p.metric,
			Old:       *p.old,
			New:       *p.new,
			Delta:     delta,
			Threshold: p.threshold,
			Severity:  severity,
			Direction: direction,
		})
	}
	return changes
}

// classifySeverity maps |delta|/threshold onto the severity tiers.
func classifySeverity(ratio float64) Severity {
	switch {
	case ratio >= 2.0:
		return SeverityMajor
	case ratio >= 1.5:
		return SeverityModerate
	case ratio >= 1.0:
		return SeverityMinor
	default:
		return SeverityNone
	}
}
