package weather

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/trailwx/segment-weather/internal/observability"
)

// Service orchestrates the segment weather pipeline: validation, cache
// lookup, single-flight fetching through the resolver, aggregation, and
// change detection against the snapshot baseline.
type Service struct {
	resolver  Resolver
	cache     SegmentCache
	snapshots SnapshotStore
	metrics   *observability.Metrics

	group singleflight.Group
}

// NewService creates a Service. All collaborators are injected; the Service
// holds no ambient global state.
func NewService(resolver Resolver, cache SegmentCache, snapshots SnapshotStore, metrics *observability.Metrics) *Service {
	return &Service{
		resolver:  resolver,
		cache:     cache,
		snapshots: snapshots,
		metrics:   metrics,
	}
}

// Fetch returns weather data for one segment. Only malformed input produces
// an error; provider failures after retry exhaustion are reported in-band via
// HasError so sibling segments keep going. Concurrent calls for the same
// segment key share a single in-flight fetch, and failed fetches are never
// cached so the next call retries instead of serving a stale failure.
func (s *Service) Fetch(ctx context.Context, seg TripSegment) (SegmentWeatherData, error) {
	norm, err := NormalizeSegment(seg)
	if err != nil {
		return SegmentWeatherData{}, err
	}

	key := norm.Key()
	if data, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		data.SegmentID = norm.ID
		return data, nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		// A sibling flight may have filled the cache while we queued.
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}

		series, meta, err := s.resolver.Resolve(ctx, norm, AllMetrics)
		if err != nil {
			log.Printf("ERROR: fetch failed for segment %s (%s): %v", norm.ID, key, err)
			s.metrics.FetchErrors.Inc()
			return SegmentWeatherData{
				SegmentID:    norm.ID,
				HasError:     true,
				ErrorMessage: err.Error(),
			}, nil
		}

		data := SegmentWeatherData{
			SegmentID:      norm.ID,
			Summary:        Aggregate(series),
			Raw:            series,
			FallbackModel:  meta.FallbackModel,
			FallbackFields: meta.FallbackFields,
		}
		s.cache.Put(key, data)
		return data, nil
	})

	data := v.(SegmentWeatherData)
	data.SegmentID = norm.ID
	return data, nil
}

// FetchTrip fetches all segments of a trip in parallel. Input is validated up
// front so a malformed segment fails the call before any network activity;
// after that, per-segment provider failures are isolated. Results come back
// in input order.
func (s *Service) FetchTrip(ctx context.Context, segments []TripSegment) ([]SegmentWeatherData, error) {
	for _, seg := range segments {
		if _, err := NormalizeSegment(seg); err != nil {
			return nil, err
		}
	}

	results := make([]SegmentWeatherData, len(segments))
	var wg sync.WaitGroup
	for i, seg := range segments {
		i, seg := i, seg
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := s.Fetch(ctx, seg)
			if err != nil {
				// Cannot happen after the up-front validation pass, but a
				// flagged result is safer than a hole in the slice.
				data = SegmentWeatherData{SegmentID: seg.ID, HasError: true, ErrorMessage: err.Error()}
			}
			results[i] = data
		}()
	}
	wg.Wait()
	return results, nil
}

// Report is the full pipeline output handed to the report formatter.
type Report struct {
	ReportID      string               `json:"report_id"`
	TripID        string               `json:"trip_id"`
	Segments      []SegmentWeatherData `json:"segments"`
	Changes       []SegmentChanges     `json:"changes"`
	BaselineFound bool                 `json:"baseline_found"`
}

// BuildReport fetches a trip's segments and diffs them against the last
// delivered baseline. It never moves the baseline; that happens only through
// MarkDelivered once the caller has actually sent the report.
func (s *Service) BuildReport(ctx context.Context, tripID, userID string, segments []TripSegment, th Thresholds) (Report, error) {
	results, err := s.FetchTrip(ctx, segments)
	if err != nil {
		return Report{}, err
	}
	changes, baselineFound := s.Changes(tripID, userID, results, th)
	return Report{
		ReportID:      uuid.NewString(),
		TripID:        tripID,
		Segments:      results,
		Changes:       changes,
		BaselineFound: baselineFound,
	}, nil
}

// Changes compares fresh per-segment summaries against the stored baseline.
// Without a baseline (first run, missing or corrupt snapshot) comparison is
// skipped for the cycle.
func (s *Service) Changes(tripID, userID string, results []SegmentWeatherData, th Thresholds) ([]SegmentChanges, bool) {
	baseline, found := s.snapshots.Load(tripID, userID)
	if !found {
		return nil, false
	}

	var out []SegmentChanges
	for _, data := range results {
		if data.HasError {
			continue
		}
		old, ok := baseline[data.SegmentID]
		if !ok {
			continue
		}
		changes := DetectChanges(old, data.Summary, th)
		if len(changes) == 0 {
			continue
		}
		for _, c := range changes {
			s.metrics.ChangesDetected.WithLabelValues(string(c.Severity)).Inc()
		}
		out = append(out, SegmentChanges{SegmentID: data.SegmentID, Changes: changes})
	}
	return out, true
}

// MarkDelivered persists the delivered summaries as the new comparison
// baseline. Callers must invoke it strictly after successful delivery; a bare
// fetch never moves the baseline, so change detection always measures drift
// since the last report the user actually received.
func (s *Service) MarkDelivered(tripID, userID string, summaries map[string]SegmentWeatherSummary) error {
	return s.snapshots.Save(tripID, userID, summaries)
}
