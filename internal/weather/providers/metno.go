package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/trailwx/segment-weather/internal/weather"
)

// MetNoProvider implements the weather.Provider interface for the MET Norway
// locationforecast 2.0 API. MET Norway supplies a thunder probability, which
// makes it the usual thunder-level fallback for models that lack one. It has
// no visibility variable.
type MetNoProvider struct {
	name      string
	baseURL   string
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// NewMetNoProvider creates the adapter. MET Norway rejects requests without
// an identifying User-Agent, so one is required.
func NewMetNoProvider(client *http.Client, userAgent string) *MetNoProvider {
	return &MetNoProvider{
		name:      "metno",
		baseURL:   "https://api.met.no/weatherapi/locationforecast/2.0/complete",
		userAgent: userAgent,
		httpCfg: HTTPClientConfig{
			Client: client,
			Retry:  DefaultRetryPolicy(),
		},
		circuit: newCircuit("metno"),
	}
}

func (p *MetNoProvider) Name() string {
	return p.name
}

func (p *MetNoProvider) Fetch(ctx context.Context, pt weather.GeoPoint, start, end time.Time, metrics []weather.Metric) (weather.NormalizedTimeseries, error) {
	if p.userAgent == "" {
		return weather.NormalizedTimeseries{}, fmt.Errorf("metno: user agent is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", fmt.Sprintf("%.4f", pt.Lat))
		values.Set("lon", fmt.Sprintf("%.4f", pt.Lon))
		values.Set("altitude", fmt.Sprintf("%.0f", pt.Elevation))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.NormalizedTimeseries{}, fmt.Errorf("metno: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Properties struct {
			Meta struct {
				UpdatedAt time.Time `json:"updated_at"`
			} `json:"meta"`
			Timeseries []struct {
				Time time.Time `json:"time"`
				Data struct {
					Instant struct {
						Details struct {
							AirTemperature   *float64 `json:"air_temperature"`
							WindSpeed        *float64 `json:"wind_speed"`
							WindSpeedOfGust  *float64 `json:"wind_speed_of_gust"`
							CloudAreaFrac    *float64 `json:"cloud_area_fraction"`
							RelativeHumidity *float64 `json:"relative_humidity"`
						} `json:"details"`
					} `json:"instant"`
					NextHour struct {
						Details struct {
							PrecipitationAmount  *float64 `json:"precipitation_amount"`
							ProbabilityOfThunder *float64 `json:"probability_of_thunder"`
						} `json:"details"`
					} `json:"next_1_hours"`
				} `json:"data"`
			} `json:"timeseries"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.NormalizedTimeseries{}, fmt.Errorf("metno: decoding response: %w", err)
	}

	wanted := make(map[weather.Metric]bool, len(metrics))
	for _, m := range metrics {
		wanted[m] = true
	}

	series := weather.NormalizedTimeseries{
		Meta: weather.SeriesMeta{
			ModelID:    p.name,
			RunTime:    payload.Properties.Meta.UpdatedAt,
			Resolution: time.Hour,
		},
	}

	windowStart := start.UTC().Truncate(time.Hour)
	for _, entry := range payload.Properties.Timeseries {
		ts := entry.Time.UTC()
		if ts.Before(windowStart) || ts.After(end.UTC()) {
			continue
		}

		details := entry.Data.Instant.Details
		next := entry.Data.NextHour.Details

		dp := weather.Datapoint{Time: ts}
		if wanted[weather.MetricTemperature] {
			dp.Temperature = details.AirTemperature
		}
		if wanted[weather.MetricWind] {
			dp.Wind = msToKmh(details.WindSpeed)
		}
		if wanted[weather.MetricGust] {
			dp.Gust = msToKmh(details.WindSpeedOfGust)
		}
		if wanted[weather.MetricCloudCover] {
			dp.CloudCover = details.CloudAreaFrac
		}
		if wanted[weather.MetricHumidity] {
			dp.Humidity = details.RelativeHumidity
		}
		if wanted[weather.MetricPrecipitation] {
			dp.Precipitation = next.PrecipitationAmount
		}
		if wanted[weather.MetricThunderLevel] {
			dp.Thunder = thunderLevel(next.ProbabilityOfThunder)
		}
		series.Points = append(series.Points, dp)
	}

	return series, nil
}

// msToKmh converts MET Norway wind speeds (m/s) to the normalized km/h.
func msToKmh(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v * 3.6)
}

// thunderLevel buckets the thunder probability into the ordinal levels.
func thunderLevel(prob *float64) *weather.ThunderLevel {
	if prob == nil {
		return nil
	}
	level := weather.ThunderNone
	switch {
	case *prob >= 50:
		level = weather.ThunderHigh
	case *prob >= 10:
		level = weather.ThunderModerate
	}
	return &level
}
