package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailwx/segment-weather/internal/observability"
)

// stubResolver counts calls and serves a canned series, optionally failing.
type stubResolver struct {
	calls int64
	delay time.Duration
	fail  bool
	temp  float64
}

func (r *stubResolver) Resolve(ctx context.Context, seg TripSegment, requested []Metric) (NormalizedTimeseries, ResolveMeta, error) {
	atomic.AddInt64(&r.calls, 1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.fail {
		return NormalizedTimeseries{}, ResolveMeta{}, errors.New("upstream model unreachable")
	}
	return seriesOf(Datapoint{Time: seg.StartTime, Temperature: f(r.temp)}), ResolveMeta{PrimaryModel: "test-model"}, nil
}

// mapCache is a plain cache fake without TTL, sufficient for orchestration
// tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]SegmentWeatherData
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]SegmentWeatherData)}
}

func (c *mapCache) Get(key string) (SegmentWeatherData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[key]
	return d, ok
}

func (c *mapCache) Put(key string, data SegmentWeatherData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
}

func (c *mapCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]SegmentWeatherData)
}

// mapSnapshots is an in-memory SnapshotStore fake.
type mapSnapshots struct {
	mu      sync.Mutex
	records map[string]map[string]SegmentWeatherSummary
}

func newMapSnapshots() *mapSnapshots {
	return &mapSnapshots{records: make(map[string]map[string]SegmentWeatherSummary)}
}

func (s *mapSnapshots) Save(tripID, userID string, summaries map[string]SegmentWeatherSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tripID+"/"+userID] = summaries
	return nil
}

func (s *mapSnapshots) Load(tripID, userID string) (map[string]SegmentWeatherSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[tripID+"/"+userID]
	return r, ok
}

func newTestService(r Resolver) (*Service, *mapCache, *mapSnapshots) {
	cache := newMapCache()
	snapshots := newMapSnapshots()
	svc := NewService(r, cache, snapshots, observability.NewMetricsForTesting())
	return svc, cache, snapshots
}

func TestFetchValidatesBeforeNetwork(t *testing.T) {
	resolver := &stubResolver{}
	svc, _, _ := newTestService(resolver)

	seg := validSegment()
	seg.Start.Lat = 123

	_, err := svc.Fetch(context.Background(), seg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, atomic.LoadInt64(&resolver.calls), "no provider call may happen on invalid input")
}

func TestFetchSingleFlight(t *testing.T) {
	resolver := &stubResolver{delay: 50 * time.Millisecond, temp: 12}
	svc, _, _ := newTestService(resolver)

	const n = 16
	var wg sync.WaitGroup
	results := make([]SegmentWeatherData, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := svc.Fetch(context.Background(), validSegment())
			assert.NoError(t, err)
			results[i] = data
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&resolver.calls),
		"concurrent fetches for one segment key must share a single provider call")
	for _, data := range results {
		require.NotNil(t, data.Summary.TempAvg)
		assert.Equal(t, 12.0, *data.Summary.TempAvg)
	}
}

func TestFetchServesCacheWithinTTL(t *testing.T) {
	resolver := &stubResolver{temp: 5}
	svc, _, _ := newTestService(resolver)

	_, err := svc.Fetch(context.Background(), validSegment())
	require.NoError(t, err)
	_, err = svc.Fetch(context.Background(), validSegment())
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&resolver.calls))
}

func TestFetchFailureIsFlaggedAndNotCached(t *testing.T) {
	resolver := &stubResolver{fail: true}
	svc, cache, _ := newTestService(resolver)

	data, err := svc.Fetch(context.Background(), validSegment())
	require.NoError(t, err, "provider failure must not surface as an error")
	assert.True(t, data.HasError)
	assert.Contains(t, data.ErrorMessage, "unreachable")
	assert.Empty(t, cache.entries, "failed fetches must not be cached")

	// The next call retries instead of serving the stale failure.
	resolver.fail = false
	resolver.temp = 3
	data, err = svc.Fetch(context.Background(), validSegment())
	require.NoError(t, err)
	assert.False(t, data.HasError)
	assert.EqualValues(t, 2, atomic.LoadInt64(&resolver.calls))
}

func TestFetchTripIsolatesFailuresAndKeepsOrder(t *testing.T) {
	resolver := &stubResolver{temp: 7}
	svc, _, _ := newTestService(resolver)

	segA := validSegment()
	segB := validSegment()
	segB.ID = "seg-2"
	segB.Start.Lat = 47.1

	results, err := svc.FetchTrip(context.Background(), []TripSegment{segA, segB})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "seg-1", results[0].SegmentID)
	assert.Equal(t, "seg-2", results[1].SegmentID)
}

func TestFetchTripFailsFastOnInvalidSegment(t *testing.T) {
	resolver := &stubResolver{}
	svc, _, _ := newTestService(resolver)

	bad := validSegment()
	bad.Start.Lon = -999

	_, err := svc.FetchTrip(context.Background(), []TripSegment{validSegment(), bad})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, atomic.LoadInt64(&resolver.calls))
}

func TestBaselineMovesOnlyOnDelivered(t *testing.T) {
	resolver := &stubResolver{temp: 10}
	svc, cache, _ := newTestService(resolver)

	ctx := context.Background()
	segments := []TripSegment{validSegment()}

	// First cycle: fetch without a baseline; comparison is skipped.
	report, err := svc.BuildReport(ctx, "trip-1", "user-1", segments, DefaultThresholds())
	require.NoError(t, err)
	assert.False(t, report.BaselineFound)
	assert.NotEmpty(t, report.ReportID)

	// A second bare fetch must not have created a baseline either:
	// this is the regression guard for the silent no-alert defect where
	// cache-fill fetches posed as delivered baselines.
	report, err = svc.BuildReport(ctx, "trip-1", "user-1", segments, DefaultThresholds())
	require.NoError(t, err)
	assert.False(t, report.BaselineFound)

	// Deliver the report; its summaries become the baseline.
	summaries := map[string]SegmentWeatherSummary{}
	for _, d := range report.Segments {
		summaries[d.SegmentID] = d.Summary
	}
	require.NoError(t, svc.MarkDelivered("trip-1", "user-1", summaries))

	// The weather shifts by 2x the temperature threshold.
	resolver.temp = 20
	cache.clear()

	report, err = svc.BuildReport(ctx, "trip-1", "user-1", segments, DefaultThresholds())
	require.NoError(t, err)
	assert.True(t, report.BaselineFound)
	require.Len(t, report.Changes, 1)

	c, ok := findChange(report.Changes[0].Changes, MetricTemperature)
	require.True(t, ok)
	assert.Equal(t, SeverityMajor, c.Severity)
	assert.True(t, c.Severity.AlertWorthy())
}

func TestChangesSkipsErroredSegments(t *testing.T) {
	resolver := &stubResolver{}
	svc, _, snapshots := newTestService(resolver)

	require.NoError(t, snapshots.Save("trip-1", "user-1", map[string]SegmentWeatherSummary{
		"seg-1": summaryWith(f(10), nil, nil),
	}))

	results := []SegmentWeatherData{{SegmentID: "seg-1", HasError: true, ErrorMessage: "boom"}}
	changes, found := svc.Changes("trip-1", "user-1", results, DefaultThresholds())
	assert.True(t, found)
	assert.Empty(t, changes)
}
