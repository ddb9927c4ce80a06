package availability

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/trailwx/segment-weather/internal/observability"
	"github.com/trailwx/segment-weather/internal/weather"
)

// Resolver picks a primary model per segment by the geographic region table,
// detects which requested metrics that model cannot supply (per the prober's
// cache), and fills them with at most one supplementary fallback call. It
// implements weather.Resolver.
type Resolver struct {
	providers map[string]weather.Provider
	regions   []Region
	prober    *Prober
	metrics   *observability.Metrics
}

// NewResolver creates a Resolver over the given providers and region table.
func NewResolver(providers map[string]weather.Provider, regions []Region, prober *Prober, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		providers: providers,
		regions:   regions,
		prober:    prober,
		metrics:   metrics,
	}
}

// Resolve fetches the segment's primary series and, when the prober says the
// primary lacks some requested metrics, issues exactly one supplementary call
// to the first suitable fallback. There is no cascading to a second fallback:
// a failed or insufficient fallback leaves the fields null rather than
// spending more quota.
func (r *Resolver) Resolve(ctx context.Context, seg weather.TripSegment, requested []weather.Metric) (weather.NormalizedTimeseries, weather.ResolveMeta, error) {
	region := regionFor(r.regions, seg.Start)
	meta := weather.ResolveMeta{PrimaryModel: region.Primary}

	primary, ok := r.providers[region.Primary]
	if !ok {
		return weather.NormalizedTimeseries{}, meta, fmt.Errorf("no provider registered for primary model %s", region.Primary)
	}

	series, err := r.timedFetch(ctx, primary, seg.Start, seg.StartTime, seg.EndTime, requested)
	if err != nil {
		return weather.NormalizedTimeseries{}, meta, err
	}

	missing := r.missingMetrics(region.Primary, requested)
	if len(missing) == 0 {
		return series, meta, nil
	}

	fallbackID, fallback := r.pickFallback(region, seg.Start, missing)
	if fallback == nil {
		log.Printf("INFO: model %s lacks %v for segment %s and no fallback covers them", region.Primary, missing, seg.ID)
		return series, meta, nil
	}

	r.metrics.FallbackCalls.Inc()
	fbSeries, err := r.timedFetch(ctx, fallback, seg.Start, seg.StartTime, seg.EndTime, missing)
	if err != nil {
		// The primary result is still usable; degrade instead of failing.
		log.Printf("WARN: fallback model %s failed for segment %s: %v", fallbackID, seg.ID, err)
		return series, meta, nil
	}

	merged := weather.MergeSeries(series, fbSeries, missing)
	meta.FallbackModel = fallbackID
	meta.FallbackFields = missing
	return merged, meta, nil
}

// missingMetrics is driven solely by the prober's cache. A model with no
// probe record is assumed complete; per-run nulls never trigger a fallback.
func (r *Resolver) missingMetrics(modelID string, requested []weather.Metric) []weather.Metric {
	availability, ok := r.prober.Lookup(modelID)
	if !ok {
		return nil
	}
	var missing []weather.Metric
	for _, m := range requested {
		if !availability.Has(m) {
			missing = append(missing, m)
		}
	}
	return missing
}

// pickFallback selects the first fallback in the region's priority order
// whose probed availability covers every missing metric and whose coverage
// area includes the segment.
func (r *Resolver) pickFallback(region Region, pt weather.GeoPoint, missing []weather.Metric) (string, weather.Provider) {
	for _, id := range region.Fallbacks {
		if id == region.Primary {
			continue
		}
		provider, ok := r.providers[id]
		if !ok {
			continue
		}
		if !Covers(id, pt) {
			continue
		}
		availability, ok := r.prober.Lookup(id)
		if !ok {
			continue
		}
		covers := true
		for _, m := range missing {
			if !availability.Has(m) {
				covers = false
				break
			}
		}
		if covers {
			return id, provider
		}
	}
	return "", nil
}

func (r *Resolver) timedFetch(ctx context.Context, p weather.Provider, pt weather.GeoPoint, start, end time.Time, metrics []weather.Metric) (weather.NormalizedTimeseries, error) {
	began := time.Now()
	series, err := p.Fetch(ctx, pt, start, end, metrics)
	r.metrics.ProviderDuration.WithLabelValues(p.Name()).Observe(time.Since(began).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ProviderRequests.WithLabelValues(p.Name(), outcome).Inc()
	return series, err
}
