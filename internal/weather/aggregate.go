package weather

import "log"

// Reduction names recorded in AggregationConfig.
const (
	reduceMin        = "min"
	reduceMax        = "max"
	reduceAvg        = "avg"
	reduceSum        = "sum"
	reduceOrdinalMax = "ordinal_max"
)

// aggregationConfig is the fixed per-field reduction table. It is attached to
// every summary so a report consumer can audit how each number was produced.
var aggregationConfig = map[string]string{
	"temp_min":          reduceMin,
	"temp_max":          reduceMax,
	"temp_avg":          reduceAvg,
	"wind_max":          reduceMax,
	"gust_max":          reduceMax,
	"precip_sum":        reduceSum,
	"cloud_avg":         reduceAvg,
	"humidity_avg":      reduceAvg,
	"thunder_level_max": reduceOrdinalMax,
	"visibility_min":    reduceMin,
}

// plausibleRange is the physically expected range per metric. Values outside
// it are logged and retained; real extreme weather must not be discarded.
var plausibleRange = map[Metric][2]float64{
	MetricTemperature:   {-50, 50},
	MetricWind:          {0, 300},
	MetricGust:          {0, 300},
	MetricPrecipitation: {0, 500},
	MetricCloudCover:    {0, 100},
	MetricHumidity:      {0, 100},
	MetricVisibility:    {0, 100000},
}

// Aggregate reduces a normalized timeseries into a SegmentWeatherSummary.
// It is pure and does no I/O. Each reduction skips datapoints where that
// specific field is nil; a field that is nil across the whole series (or an
// empty series) yields a nil summary field, which is a valid terminal state
// rather than an error.
func Aggregate(ts NormalizedTimeseries) SegmentWeatherSummary {
	logImplausible(ts)

	summary := SegmentWeatherSummary{
		AggregationConfig: aggregationConfig,
	}

	summary.TempMin = reduce(ts, MetricTemperature, pickMin)
	summary.TempMax = reduce(ts, MetricTemperature, pickMax)
	summary.TempAvg = reduceAverage(ts, MetricTemperature)
	summary.WindMax = reduce(ts, MetricWind, pickMax)
	summary.GustMax = reduce(ts, MetricGust, pickMax)
	summary.PrecipSum = reduce(ts, MetricPrecipitation, add)
	summary.CloudAvg = reduceAverage(ts, MetricCloudCover)
	summary.HumidityAvg = reduceAverage(ts, MetricHumidity)
	summary.VisibilityMin = reduce(ts, MetricVisibility, pickMin)
	summary.ThunderMax = reduceThunder(ts)

	return summary
}

func pickMin(acc, v float64) float64 {
	if v < acc {
		return v
	}
	return acc
}

func pickMax(acc, v float64) float64 {
	if v > acc {
		return v
	}
	return acc
}

func add(acc, v float64) float64 { return acc + v }

// reduce folds the non-nil values of one metric. Returns nil when the series
// contains no value for the metric at all.
func reduce(ts NormalizedTimeseries, m Metric, fold func(acc, v float64) float64) *float64 {
	var acc float64
	seen := false
	for _, p := range ts.Points {
		v := p.Value(m)
		if v == nil {
			continue
		}
		if !seen {
			acc = *v
			seen = true
			continue
		}
		acc = fold(acc, *v)
	}
	if !seen {
		return nil
	}
	return &acc
}

func reduceAverage(ts NormalizedTimeseries, m Metric) *float64 {
	var sum float64
	var n int
	for _, p := range ts.Points {
		v := p.Value(m)
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// reduceThunder takes the ordinal maximum (none < moderate < high).
func reduceThunder(ts NormalizedTimeseries) *ThunderLevel {
	var best *ThunderLevel
	for _, p := range ts.Points {
		if p.Thunder == nil {
			continue
		}
		if best == nil || p.Thunder.Rank() > best.Rank() {
			level := *p.Thunder
			best = &level
		}
	}
	return best
}

// logImplausible warns once per out-of-range value, before the reductions run
// so a value feeding several of them (min, max, avg) is not reported multiple
// times.
func logImplausible(ts NormalizedTimeseries) {
	for _, p := range ts.Points {
		for _, m := range AllMetrics {
			r, ok := plausibleRange[m]
			if !ok {
				continue
			}
			v := p.Value(m)
			if v == nil {
				continue
			}
			if *v < r[0] || *v > r[1] {
				log.Printf("WARN: implausible %s value %g from model %s (expected [%g, %g]); keeping it",
					m, *v, ts.Meta.ModelID, r[0], r[1])
			}
		}
	}
}
