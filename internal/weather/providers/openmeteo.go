package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/trailwx/segment-weather/internal/weather"
)

// openMeteoParams maps normalized metrics onto Open-Meteo hourly variables.
// Thunder level is absent: Open-Meteo has no thunder probability variable, so
// the field stays nil and the fallback resolver can fill it.
var openMeteoParams = map[weather.Metric]string{
	weather.MetricTemperature:   "temperature_2m",
	weather.MetricWind:          "wind_speed_10m",
	weather.MetricGust:          "wind_gusts_10m",
	weather.MetricPrecipitation: "precipitation",
	weather.MetricCloudCover:    "cloud_cover",
	weather.MetricHumidity:      "relative_humidity_2m",
	weather.MetricVisibility:    "visibility",
}

// OpenMeteoProvider implements the weather.Provider interface for the
// Open-Meteo forecast API.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: HTTPClientConfig{
			Client: client,
			Retry:  DefaultRetryPolicy(),
		},
		circuit: newCircuit("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, pt weather.GeoPoint, start, end time.Time, metrics []weather.Metric) (weather.NormalizedTimeseries, error) {
	hourly := hourlyParams(metrics)
	if len(hourly) == 0 {
		return weather.NormalizedTimeseries{}, fmt.Errorf("openmeteo: no supported metrics requested")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", pt.Lat))
		values.Set("longitude", fmt.Sprintf("%.4f", pt.Lon))
		values.Set("elevation", fmt.Sprintf("%.0f", pt.Elevation))
		values.Set("hourly", strings.Join(hourly, ","))
		values.Set("windspeed_unit", "kmh")
		values.Set("timezone", "UTC")
		values.Set("start_date", start.UTC().Format("2006-01-02"))
		values.Set("end_date", end.UTC().Format("2006-01-02"))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.NormalizedTimeseries{}, fmt.Errorf("openmeteo: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time             []string   `json:"time"`
			Temperature      []*float64 `json:"temperature_2m"`
			WindSpeed        []*float64 `json:"wind_speed_10m"`
			WindGusts        []*float64 `json:"wind_gusts_10m"`
			Precipitation    []*float64 `json:"precipitation"`
			CloudCover       []*float64 `json:"cloud_cover"`
			RelativeHumidity []*float64 `json:"relative_humidity_2m"`
			Visibility       []*float64 `json:"visibility"`
		} `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.NormalizedTimeseries{}, fmt.Errorf("openmeteo: decoding response: %w", err)
	}

	series := weather.NormalizedTimeseries{
		Meta: weather.SeriesMeta{
			ModelID:    p.name,
			RunTime:    time.Now().UTC(),
			Resolution: time.Hour,
		},
	}

	windowStart := start.UTC().Truncate(time.Hour)
	for i, raw := range payload.Hourly.Time {
		ts, err := time.Parse("2006-01-02T15:04", raw)
		if err != nil {
			continue
		}
		ts = ts.UTC()
		if ts.Before(windowStart) || ts.After(end.UTC()) {
			continue
		}

		dp := weather.Datapoint{Time: ts}
		dp.Temperature = at(payload.Hourly.Temperature, i)
		dp.Wind = at(payload.Hourly.WindSpeed, i)
		dp.Gust = at(payload.Hourly.WindGusts, i)
		dp.Precipitation = at(payload.Hourly.Precipitation, i)
		dp.CloudCover = at(payload.Hourly.CloudCover, i)
		dp.Humidity = at(payload.Hourly.RelativeHumidity, i)
		dp.Visibility = at(payload.Hourly.Visibility, i)
		series.Points = append(series.Points, dp)
	}

	return series, nil
}

func hourlyParams(metrics []weather.Metric) []string {
	var out []string
	for _, m := range metrics {
		if p, ok := openMeteoParams[m]; ok {
			out = append(out, p)
		}
	}
	return out
}

// at guards against Open-Meteo returning shorter arrays for some variables.
func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
