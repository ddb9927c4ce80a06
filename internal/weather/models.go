package weather

import (
	"fmt"
	"time"
)

// Metric identifies a single forecast variable in the normalized schema.
type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricWind          Metric = "wind"
	MetricGust          Metric = "gust"
	MetricPrecipitation Metric = "precipitation"
	MetricCloudCover    Metric = "cloud_cover"
	MetricHumidity      Metric = "humidity"
	MetricThunderLevel  Metric = "thunder_level"
	MetricVisibility    Metric = "visibility"
)

// AllMetrics is the full metric set requested for a segment report.
var AllMetrics = []Metric{
	MetricTemperature,
	MetricWind,
	MetricGust,
	MetricPrecipitation,
	MetricCloudCover,
	MetricHumidity,
	MetricThunderLevel,
	MetricVisibility,
}

// ThunderLevel is an ordinal thunderstorm risk level: none < moderate < high.
type ThunderLevel string

const (
	ThunderNone     ThunderLevel = "none"
	ThunderModerate ThunderLevel = "moderate"
	ThunderHigh     ThunderLevel = "high"
)

// Rank returns the ordinal position of the level so aggregation compares
// levels numerically rather than lexically.
func (t ThunderLevel) Rank() int {
	switch t {
	case ThunderModerate:
		return 1
	case ThunderHigh:
		return 2
	default:
		return 0
	}
}

// GeoPoint is a geographic position with elevation in meters.
type GeoPoint struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
}

// TripSegment is a time- and distance-bounded portion of a planned route.
// Segments are produced by the upstream segmentation stage and are read-only
// here. Timestamps must be UTC.
type TripSegment struct {
	ID        string    `json:"id"`
	Start     GeoPoint  `json:"start"`
	End       GeoPoint  `json:"end"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns the planned time spent on the segment.
func (s TripSegment) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Key returns a canonical cache key for the segment: position rounded to four
// decimals (roughly 11 m) plus the unix time window, so a re-planned route
// covering the same leg shares cache entries.
func (s TripSegment) Key() string {
	return fmt.Sprintf("%.4f,%.4f:%d-%d",
		s.Start.Lat, s.Start.Lon, s.StartTime.Unix(), s.EndTime.Unix())
}

// Datapoint is a single timestamped entry of a normalized timeseries.
// Every field is independently nullable; nil means "not supplied by this
// model", which is distinct from zero.
type Datapoint struct {
	Time          time.Time     `json:"time"`
	Temperature   *float64      `json:"temperature,omitempty"`   // degC
	Wind          *float64      `json:"wind,omitempty"`          // km/h
	Gust          *float64      `json:"gust,omitempty"`          // km/h
	Precipitation *float64      `json:"precipitation,omitempty"` // mm per step
	CloudCover    *float64      `json:"cloud_cover,omitempty"`   // percent
	Humidity      *float64      `json:"humidity,omitempty"`      // percent
	Visibility    *float64      `json:"visibility,omitempty"`    // meters
	Thunder       *ThunderLevel `json:"thunder_level,omitempty"`
}

// Value returns the numeric field for the given metric, or nil. Thunder is
// ordinal and not addressable through this accessor.
func (d Datapoint) Value(m Metric) *float64 {
	switch m {
	case MetricTemperature:
		return d.Temperature
	case MetricWind:
		return d.Wind
	case MetricGust:
		return d.Gust
	case MetricPrecipitation:
		return d.Precipitation
	case MetricCloudCover:
		return d.CloudCover
	case MetricHumidity:
		return d.Humidity
	case MetricVisibility:
		return d.Visibility
	default:
		return nil
	}
}

// SetValue assigns the numeric field for the given metric.
func (d *Datapoint) SetValue(m Metric, v *float64) {
	switch m {
	case MetricTemperature:
		d.Temperature = v
	case MetricWind:
		d.Wind = v
	case MetricGust:
		d.Gust = v
	case MetricPrecipitation:
		d.Precipitation = v
	case MetricCloudCover:
		d.CloudCover = v
	case MetricHumidity:
		d.Humidity = v
	case MetricVisibility:
		d.Visibility = v
	}
}

// SeriesMeta records the provenance of a timeseries.
type SeriesMeta struct {
	ModelID    string        `json:"model_id"`
	RunTime    time.Time     `json:"run_time"`
	Resolution time.Duration `json:"resolution"`
}

// NormalizedTimeseries is a provider-agnostic, time-ordered sequence of
// weather datapoints.
type NormalizedTimeseries struct {
	Points []Datapoint `json:"points"`
	Meta   SeriesMeta  `json:"meta"`
}

// SegmentWeatherSummary is the fixed-shape aggregate of one segment's
// timeseries. Every field is independently nullable; an all-null summary is a
// valid state distinct from "no data available".
type SegmentWeatherSummary struct {
	TempMin       *float64      `json:"temp_min"`
	TempMax       *float64      `json:"temp_max"`
	TempAvg       *float64      `json:"temp_avg"`
	WindMax       *float64      `json:"wind_max"`
	GustMax       *float64      `json:"gust_max"`
	PrecipSum     *float64      `json:"precip_sum"`
	CloudAvg      *float64      `json:"cloud_avg"`
	HumidityAvg   *float64      `json:"humidity_avg"`
	ThunderMax    *ThunderLevel `json:"thunder_level_max"`
	VisibilityMin *float64      `json:"visibility_min"`

	// AggregationConfig maps each summary field to the reduction that
	// produced it, kept for auditability.
	AggregationConfig map[string]string `json:"aggregation_config"`
}

// SegmentWeatherData is the per-segment pipeline output: the aggregated
// summary, the raw series it came from, fallback provenance, and a
// recoverable error flag.
type SegmentWeatherData struct {
	SegmentID      string                `json:"segment_id"`
	Summary        SegmentWeatherSummary `json:"summary"`
	Raw            NormalizedTimeseries  `json:"raw"`
	FallbackModel  string                `json:"fallback_model,omitempty"`
	FallbackFields []Metric              `json:"fallback_fields,omitempty"`
	HasError       bool                  `json:"has_error"`
	ErrorMessage   string                `json:"error_message,omitempty"`
}

// Severity classifies a metric change's magnitude relative to its threshold.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

// AlertWorthy reports whether the severity should trigger a notification.
// Minor changes are recorded for audit but do not alert.
func (s Severity) AlertWorthy() bool {
	return s == SeverityModerate || s == SeverityMajor
}

// Direction indicates which way a metric moved.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// WeatherChange describes one metric's drift between the stored baseline and
// a fresh summary.
type WeatherChange struct {
	Metric    Metric    `json:"metric"`
	Old       float64   `json:"old"`
	New       float64   `json:"new"`
	Delta     float64   `json:"delta"`
	Threshold float64   `json:"threshold"`
	Severity  Severity  `json:"severity"`
	Direction Direction `json:"direction"`
}

// SegmentChanges groups detected changes per segment for trip-level output.
type SegmentChanges struct {
	SegmentID string          `json:"segment_id"`
	Changes   []WeatherChange `json:"changes"`
}

// Thresholds holds the per-metric change thresholds used by the detector.
type Thresholds struct {
	Temperature   float64 `json:"temperature"`
	Wind          float64 `json:"wind"`
	Gust          float64 `json:"gust"`
	Precipitation float64 `json:"precipitation"`
}

// DefaultThresholds returns the stock thresholds; callers may override them
// per trip.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Temperature:   5.0,  // degC
		Wind:          20.0, // km/h
		Gust:          20.0, // km/h
		Precipitation: 10.0, // mm
	}
}
