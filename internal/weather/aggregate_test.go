package weather

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func thunder(l ThunderLevel) *ThunderLevel { return &l }

func seriesOf(points ...Datapoint) NormalizedTimeseries {
	return NormalizedTimeseries{
		Points: points,
		Meta:   SeriesMeta{ModelID: "test-model", Resolution: time.Hour},
	}
}

func TestAggregateSkipsNullsPerField(t *testing.T) {
	// Temperature [10, nil, 20, nil]: nil datapoints are skipped for that
	// field only.
	s := seriesOf(
		Datapoint{Temperature: f(10)},
		Datapoint{},
		Datapoint{Temperature: f(20)},
		Datapoint{},
	)

	sum := Aggregate(s)
	require.NotNil(t, sum.TempMin)
	require.NotNil(t, sum.TempMax)
	require.NotNil(t, sum.TempAvg)
	assert.Equal(t, 10.0, *sum.TempMin)
	assert.Equal(t, 20.0, *sum.TempMax)
	assert.Equal(t, 15.0, *sum.TempAvg)
}

func TestAggregateAllNullSeries(t *testing.T) {
	s := seriesOf(Datapoint{}, Datapoint{}, Datapoint{})
	assertAllNil(t, Aggregate(s))
}

func TestAggregateEmptySeries(t *testing.T) {
	// The empty series must be observably identical to the all-null one.
	assertAllNil(t, Aggregate(seriesOf()))
}

func assertAllNil(t *testing.T, sum SegmentWeatherSummary) {
	t.Helper()
	assert.Nil(t, sum.TempMin)
	assert.Nil(t, sum.TempMax)
	assert.Nil(t, sum.TempAvg)
	assert.Nil(t, sum.WindMax)
	assert.Nil(t, sum.GustMax)
	assert.Nil(t, sum.PrecipSum)
	assert.Nil(t, sum.CloudAvg)
	assert.Nil(t, sum.HumidityAvg)
	assert.Nil(t, sum.ThunderMax)
	assert.Nil(t, sum.VisibilityMin)
	assert.NotEmpty(t, sum.AggregationConfig)
}

func TestAggregatePrecipitationSums(t *testing.T) {
	s := seriesOf(
		Datapoint{Precipitation: f(2)},
		Datapoint{Precipitation: f(3)},
		Datapoint{Precipitation: f(5)},
	)
	sum := Aggregate(s)
	require.NotNil(t, sum.PrecipSum)
	assert.Equal(t, 10.0, *sum.PrecipSum)
}

func TestAggregateThunderOrdinalMax(t *testing.T) {
	// Ordinal, not lexical: "high" beats "moderate" and "none" even though
	// it sorts first alphabetically.
	s := seriesOf(
		Datapoint{Thunder: thunder(ThunderNone)},
		Datapoint{Thunder: thunder(ThunderModerate)},
		Datapoint{Thunder: thunder(ThunderHigh)},
	)
	sum := Aggregate(s)
	require.NotNil(t, sum.ThunderMax)
	assert.Equal(t, ThunderHigh, *sum.ThunderMax)
}

func TestAggregateMaxAndMinReductions(t *testing.T) {
	s := seriesOf(
		Datapoint{Wind: f(12), Gust: f(30), Visibility: f(9000)},
		Datapoint{Wind: f(35), Gust: f(55), Visibility: f(400)},
		Datapoint{Wind: f(8), Visibility: f(20000)},
	)
	sum := Aggregate(s)
	require.NotNil(t, sum.WindMax)
	require.NotNil(t, sum.GustMax)
	require.NotNil(t, sum.VisibilityMin)
	assert.Equal(t, 35.0, *sum.WindMax)
	assert.Equal(t, 55.0, *sum.GustMax)
	assert.Equal(t, 400.0, *sum.VisibilityMin)
}

func TestAggregateRecordsConfig(t *testing.T) {
	sum := Aggregate(seriesOf(Datapoint{Temperature: f(1)}))
	assert.Equal(t, "min", sum.AggregationConfig["temp_min"])
	assert.Equal(t, "sum", sum.AggregationConfig["precip_sum"])
	assert.Equal(t, "ordinal_max", sum.AggregationConfig["thunder_level_max"])
	assert.Equal(t, "avg", sum.AggregationConfig["humidity_avg"])
}

func TestAggregateKeepsImplausibleValues(t *testing.T) {
	// Out-of-range values are logged, never dropped: real extreme weather
	// must survive aggregation.
	s := seriesOf(Datapoint{Temperature: f(-71.2)})
	sum := Aggregate(s)
	require.NotNil(t, sum.TempMin)
	assert.Equal(t, -71.2, *sum.TempMin)
}

func TestAggregateWarnsOncePerImplausibleValue(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// Temperature feeds three reductions (min, max, avg); the warning still
	// appears exactly once per out-of-range value.
	Aggregate(seriesOf(Datapoint{Temperature: f(-71.2)}, Datapoint{Temperature: f(3)}))

	assert.Equal(t, 1, strings.Count(buf.String(), "implausible temperature"))
}
