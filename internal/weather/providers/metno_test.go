package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailwx/segment-weather/internal/weather"
)

const metNoPayload = `{
	"properties": {
		"meta": {"updated_at": "2026-03-14T04:30:00Z"},
		"timeseries": [
			{
				"time": "2026-03-14T05:00:00Z",
				"data": {
					"instant": {"details": {"air_temperature": -1.0, "wind_speed": 5.0}},
					"next_1_hours": {"details": {"precipitation_amount": 0.0, "probability_of_thunder": 0}}
				}
			},
			{
				"time": "2026-03-14T06:00:00Z",
				"data": {
					"instant": {"details": {
						"air_temperature": 2.0,
						"wind_speed": 10.0,
						"wind_speed_of_gust": 15.0,
						"cloud_area_fraction": 75.0,
						"relative_humidity": 88.0
					}},
					"next_1_hours": {"details": {"precipitation_amount": 1.2, "probability_of_thunder": 30.0}}
				}
			},
			{
				"time": "2026-03-14T07:00:00Z",
				"data": {
					"instant": {"details": {"air_temperature": 3.0, "wind_speed": 8.0}},
					"next_1_hours": {"details": {"precipitation_amount": 0.4, "probability_of_thunder": 65.0}}
				}
			}
		]
	}
}`

func newTestMetNo(baseURL string) *MetNoProvider {
	p := NewMetNoProvider(&http.Client{Timeout: time.Second}, "segment-weather-test/1.0")
	p.baseURL = baseURL
	p.httpCfg.Retry = testRetryPolicy()
	return p
}

func TestMetNoFetchNormalizesUnits(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(metNoPayload))
	}))
	defer server.Close()

	p := newTestMetNo(server.URL)
	start := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	series, err := p.Fetch(context.Background(), weather.GeoPoint{Lat: 60.1, Lon: 10.2, Elevation: 300}, start, end, weather.AllMetrics)
	require.NoError(t, err)

	assert.Equal(t, "segment-weather-test/1.0", userAgent.Load())

	// 05:00 is before the window.
	require.Len(t, series.Points, 2)
	first := series.Points[0]
	assert.Equal(t, start, first.Time)

	assert.Equal(t, 2.0, *first.Temperature)
	assert.InDelta(t, 36.0, *first.Wind, 1e-9, "wind is converted from m/s to km/h")
	assert.InDelta(t, 54.0, *first.Gust, 1e-9)
	assert.Equal(t, 1.2, *first.Precipitation)
	require.NotNil(t, first.Thunder)
	assert.Equal(t, weather.ThunderModerate, *first.Thunder)
	assert.Nil(t, first.Visibility, "this model carries no visibility variable")

	second := series.Points[1]
	require.NotNil(t, second.Thunder)
	assert.Equal(t, weather.ThunderHigh, *second.Thunder)

	assert.Equal(t, "metno", series.Meta.ModelID)
	assert.Equal(t, time.Date(2026, 3, 14, 4, 30, 0, 0, time.UTC), series.Meta.RunTime)
}

func TestMetNoScopesToRequestedMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(metNoPayload))
	}))
	defer server.Close()

	p := newTestMetNo(server.URL)
	start := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	series, err := p.Fetch(context.Background(), weather.GeoPoint{Lat: 60, Lon: 10}, start, start.Add(time.Hour), []weather.Metric{weather.MetricTemperature})
	require.NoError(t, err)
	require.NotEmpty(t, series.Points)
	assert.NotNil(t, series.Points[0].Temperature)
	assert.Nil(t, series.Points[0].Wind)
	assert.Nil(t, series.Points[0].Thunder)
}

func TestMetNoRequiresUserAgent(t *testing.T) {
	p := NewMetNoProvider(&http.Client{Timeout: time.Second}, "")
	start := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	_, err := p.Fetch(context.Background(), weather.GeoPoint{Lat: 60, Lon: 10}, start, start.Add(time.Hour), weather.AllMetrics)
	require.Error(t, err)
}

func TestThunderLevelBuckets(t *testing.T) {
	cases := []struct {
		prob float64
		want weather.ThunderLevel
	}{
		{0, weather.ThunderNone},
		{9.9, weather.ThunderNone},
		{10, weather.ThunderModerate},
		{49.9, weather.ThunderModerate},
		{50, weather.ThunderHigh},
		{100, weather.ThunderHigh},
	}
	for _, tc := range cases {
		got := thunderLevel(&tc.prob)
		require.NotNil(t, got)
		assert.Equal(t, tc.want, *got, "probability %v", tc.prob)
	}

	assert.Nil(t, thunderLevel(nil))
}
