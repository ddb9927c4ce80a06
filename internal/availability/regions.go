package availability

import "github.com/trailwx/segment-weather/internal/weather"

// BoundingBox is a lat/lon rectangle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(pt weather.GeoPoint) bool {
	return pt.Lat >= b.MinLat && pt.Lat <= b.MaxLat &&
		pt.Lon >= b.MinLon && pt.Lon <= b.MaxLon
}

// Region is one row of the geographic model-selection table: a bounding box,
// the primary model inside it, and the fallback models in priority order.
// The first matching region wins; the last entry must cover the globe.
type Region struct {
	Name      string
	Box       BoundingBox
	Primary   string
	Fallbacks []string

	// RefPoint is the representative coordinate the prober samples for
	// models primary in this region.
	RefPoint weather.GeoPoint
}

// modelCoverage limits where each model may serve as a fallback. Both current
// models are global, but the check stays so a regional model can be added
// without touching resolver logic.
var modelCoverage = map[string]BoundingBox{
	"metno":     {MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180},
	"openmeteo": {MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180},
}

// Covers reports whether the model's coverage area includes the point.
// Unknown models are assumed global.
func Covers(modelID string, pt weather.GeoPoint) bool {
	box, ok := modelCoverage[modelID]
	if !ok {
		return true
	}
	return box.Contains(pt)
}

// DefaultRegions mirrors the provider-selection policy: MET Norway for the
// Nordic region where its model is strongest, Open-Meteo elsewhere.
func DefaultRegions() []Region {
	return []Region{
		{
			Name:      "nordics",
			Box:       BoundingBox{MinLat: 54, MaxLat: 72, MinLon: 0, MaxLon: 32},
			Primary:   "metno",
			Fallbacks: []string{"openmeteo"},
			RefPoint:  weather.GeoPoint{Lat: 59.91, Lon: 10.75, Elevation: 23}, // Oslo
		},
		{
			Name:      "global",
			Box:       BoundingBox{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180},
			Primary:   "openmeteo",
			Fallbacks: []string{"metno"},
			RefPoint:  weather.GeoPoint{Lat: 47.27, Lon: 11.39, Elevation: 574}, // Innsbruck
		},
	}
}

// regionFor returns the first region whose box contains the point. The table
// always ends with a global region, so this cannot miss on valid input.
func regionFor(regions []Region, pt weather.GeoPoint) Region {
	for _, r := range regions {
		if r.Box.Contains(pt) {
			return r
		}
	}
	return regions[len(regions)-1]
}
