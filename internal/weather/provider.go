package weather

import (
	"context"
	"time"
)

// Provider abstracts one forecast model (e.g. Open-Meteo, MET Norway).
// Fetch returns a normalized timeseries for the point and window, scoped to
// the requested metrics; metrics a model cannot supply come back nil.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, pt GeoPoint, start, end time.Time, metrics []Metric) (NormalizedTimeseries, error)
}

// ResolveMeta describes which fields, if any, were sourced from a fallback
// model, for downstream transparency such as report footers.
type ResolveMeta struct {
	PrimaryModel   string   `json:"primary_model"`
	FallbackModel  string   `json:"fallback_model,omitempty"`
	FallbackFields []Metric `json:"fallback_fields,omitempty"`
}

// Resolver picks the models for a segment, fills metrics the primary model
// lacks with at most one supplementary call, and merges the result.
type Resolver interface {
	Resolve(ctx context.Context, seg TripSegment, requested []Metric) (NormalizedTimeseries, ResolveMeta, error)
}

// SegmentCache is the TTL-keyed store of previously fetched results. An
// expired or unreadable entry is reported as absent.
type SegmentCache interface {
	Get(key string) (SegmentWeatherData, bool)
	Put(key string, data SegmentWeatherData)
}

// SnapshotStore persists the last delivered summary set per (trip, user).
// Load reports found=false for a missing or corrupt record; that is "no
// baseline", not an error.
type SnapshotStore interface {
	Save(tripID, userID string, summaries map[string]SegmentWeatherSummary) error
	Load(tripID, userID string) (map[string]SegmentWeatherSummary, bool)
}
