package weather

import (
	"fmt"
	"math"
	"time"
)

// Physical bounds for segment input. Elevation spans below the Dead Sea to
// above Everest with margin.
const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
	minElevation = -500.0
	maxElevation = 9000.0
)

// ValidationError describes malformed segment input. It is the only error
// class the pipeline surfaces to callers; it is always raised before any
// network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid segment input: %s %s", e.Field, e.Reason)
}

// NormalizeSegment validates a segment and returns a normalized copy with
// elevations rounded to the nearest meter. The input is never mutated.
func NormalizeSegment(seg TripSegment) (TripSegment, error) {
	if err := validatePoint("start", seg.Start); err != nil {
		return TripSegment{}, err
	}
	if err := validatePoint("end", seg.End); err != nil {
		return TripSegment{}, err
	}
	if err := validateTimestamp("start_time", seg.StartTime); err != nil {
		return TripSegment{}, err
	}
	if err := validateTimestamp("end_time", seg.EndTime); err != nil {
		return TripSegment{}, err
	}
	if !seg.StartTime.Before(seg.EndTime) {
		return TripSegment{}, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}

	// Round, do not truncate: upstream interpolation produces sub-meter
	// elevations and 1250.7 must become 1251.
	seg.Start.Elevation = math.Round(seg.Start.Elevation)
	seg.End.Elevation = math.Round(seg.End.Elevation)
	return seg, nil
}

func validatePoint(field string, pt GeoPoint) error {
	if pt.Lat < minLatitude || pt.Lat > maxLatitude {
		return &ValidationError{Field: field + ".lat", Reason: fmt.Sprintf("must be within [%g, %g]", minLatitude, maxLatitude)}
	}
	if pt.Lon < minLongitude || pt.Lon > maxLongitude {
		return &ValidationError{Field: field + ".lon", Reason: fmt.Sprintf("must be within [%g, %g]", minLongitude, maxLongitude)}
	}
	if pt.Elevation < minElevation || pt.Elevation > maxElevation {
		return &ValidationError{Field: field + ".elevation", Reason: fmt.Sprintf("must be within [%g, %g] meters", minElevation, maxElevation)}
	}
	return nil
}

// validateTimestamp rejects zero timestamps and any timestamp not normalized
// to UTC. A non-zero zone offset means the upstream producer skipped UTC
// normalization, which corrupts cache keys and comparisons downstream.
func validateTimestamp(field string, ts time.Time) error {
	if ts.IsZero() {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if _, offset := ts.Zone(); offset != 0 {
		return &ValidationError{Field: field, Reason: "must be normalized to UTC"}
	}
	return nil
}
