package availability

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/trailwx/segment-weather/internal/observability"
	"github.com/trailwx/segment-weather/internal/store"
	"github.com/trailwx/segment-weather/internal/weather"
)

// kvKey is where the probe results live in the KV store.
const kvKey = "model_availability"

// ModelAvailability records which metrics a model actually returns data for,
// as observed by the last probe. It deliberately decouples "this model cannot
// supply the metric" from "this particular forecast run happened to be null":
// only the probe, not per-request nulls, decides missing-metric status.
type ModelAvailability struct {
	ModelID   string           `json:"model_id"`
	Available []weather.Metric `json:"available"`
	ProbedAt  time.Time        `json:"probed_at"`
}

// Has reports whether the metric is in the availability set.
func (a ModelAvailability) Has(m weather.Metric) bool {
	for _, have := range a.Available {
		if have == m {
			return true
		}
	}
	return false
}

type availabilityRecord struct {
	Models map[string]ModelAvailability `json:"models"`
}

// Prober issues one reference call per model and records which requested
// metrics came back non-null. It is comparatively expensive, so it runs on a
// coarse schedule (startup when stale, periodic job, operator trigger) and
// never per user request.
type Prober struct {
	providers map[string]weather.Provider
	regions   []Region
	kv        store.KV
	ttl       time.Duration
	clock     clockwork.Clock
	metrics   *observability.Metrics

	mu     sync.RWMutex
	models map[string]ModelAvailability
}

// NewProber loads any persisted probe results so a restart does not force an
// immediate re-probe.
func NewProber(providers map[string]weather.Provider, regions []Region, kv store.KV, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Prober {
	p := &Prober{
		providers: providers,
		regions:   regions,
		kv:        kv,
		ttl:       ttl,
		clock:     clock,
		metrics:   metrics,
		models:    make(map[string]ModelAvailability),
	}

	var record availabilityRecord
	found, err := kv.Get(kvKey, &record)
	if err != nil {
		log.Printf("WARN: availability cache unreadable; starting empty: %v", err)
	} else if found && record.Models != nil {
		p.models = record.Models
	}
	return p
}

// Probe samples every model referenced by the region table at a
// representative coordinate for the next 24 hours, requesting the full metric
// set. A metric counts as available when any sampled datapoint carries it.
// Failed probes keep the model's previous record rather than erasing it.
func (p *Prober) Probe(ctx context.Context) (map[string]ModelAvailability, error) {
	p.metrics.ProbeRuns.Inc()

	now := p.clock.Now().UTC()
	results := make(map[string]ModelAvailability)

	for modelID, ref := range p.probeTargets() {
		provider, ok := p.providers[modelID]
		if !ok {
			log.Printf("WARN: region table references model %s with no provider", modelID)
			continue
		}

		series, err := provider.Fetch(ctx, ref, now, now.Add(24*time.Hour), weather.AllMetrics)
		if err != nil {
			log.Printf("WARN: availability probe for model %s failed; keeping previous record: %v", modelID, err)
			continue
		}

		results[modelID] = ModelAvailability{
			ModelID:   modelID,
			Available: observedMetrics(series),
			ProbedAt:  now,
		}
	}

	p.mu.Lock()
	for id, availability := range results {
		p.models[id] = availability
	}
	// Snapshot the map before releasing the lock; kv.Put marshals outside it
	// and must not read the live map while an overlapping probe writes it.
	record := availabilityRecord{Models: make(map[string]ModelAvailability, len(p.models))}
	for id, availability := range p.models {
		record.Models[id] = availability
	}
	p.mu.Unlock()

	if err := p.kv.Put(kvKey, record); err != nil {
		log.Printf("WARN: persisting availability cache: %v", err)
	}

	log.Printf("INFO: availability probe finished for %d model(s)", len(results))
	return p.Availability(), nil
}

// Availability returns a copy of the current per-model availability map.
func (p *Prober) Availability() map[string]ModelAvailability {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]ModelAvailability, len(p.models))
	for id, a := range p.models {
		out[id] = a
	}
	return out
}

// Lookup returns the availability record for one model.
func (p *Prober) Lookup(modelID string) (ModelAvailability, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.models[modelID]
	return a, ok
}

// Stale reports whether any tracked model lacks a probe record fresher than
// the TTL. A stale prober should be re-run before serving fallback decisions.
func (p *Prober) Stale() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := p.clock.Now().Add(-p.ttl)
	for modelID := range p.probeTargets() {
		a, ok := p.models[modelID]
		if !ok || a.ProbedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

// probeTargets maps each model in the region table to the reference point of
// the first region where it is primary, defaulting to the first region's
// point for fallback-only models.
func (p *Prober) probeTargets() map[string]weather.GeoPoint {
	targets := make(map[string]weather.GeoPoint)
	for _, r := range p.regions {
		if _, ok := targets[r.Primary]; !ok {
			targets[r.Primary] = r.RefPoint
		}
		for _, fb := range r.Fallbacks {
			if _, ok := targets[fb]; !ok {
				targets[fb] = r.RefPoint
			}
		}
	}
	return targets
}

// observedMetrics lists every metric with at least one non-null value across
// the probe sample.
func observedMetrics(series weather.NormalizedTimeseries) []weather.Metric {
	seen := make(map[weather.Metric]bool)
	for _, point := range series.Points {
		for _, m := range weather.AllMetrics {
			if seen[m] {
				continue
			}
			if m == weather.MetricThunderLevel {
				if point.Thunder != nil {
					seen[m] = true
				}
				continue
			}
			if point.Value(m) != nil {
				seen[m] = true
			}
		}
	}

	var out []weather.Metric
	for _, m := range weather.AllMetrics {
		if seen[m] {
			out = append(out, m)
		}
	}
	return out
}
