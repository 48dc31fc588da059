package geo

import "math"

// LonRange is a closed longitude interval in degrees.
type LonRange struct {
	Min float64
	Max float64
}

// BoundingBox is a rectangular approximation of a search circle. It may admit
// points outside the circle but never excludes a point inside it.
//
// Longitudes holds one interval, two when the box crosses the antimeridian,
// and none when every longitude is admitted (the box reaches a pole).
type BoundingBox struct {
	MinLat     float64
	MaxLat     float64
	Longitudes []LonRange
}

// NewBoundingBox derives the box around center for a radius in kilometers:
//
//	latRange = r / 111
//	lonRange = r / (111 * cos(lat0))
//
// widened to the exact spherical half-width where that is larger.
//
// Near the poles the longitude range degenerates, so once the box touches a
// pole or lonRange spans half the globe the longitude constraint is dropped.
// Boxes crossing ±180° are split into two intervals.
func NewBoundingBox(center Point, radiusKm float64) BoundingBox {
	latRange := radiusKm / kmPerDegree

	box := BoundingBox{
		MinLat: math.Max(center.Latitude-latRange, -90),
		MaxLat: math.Min(center.Latitude+latRange, 90),
	}

	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}

	cosLat := math.Cos(toRadians(center.Latitude))
	if cosLat <= 0 {
		return box
	}
	// The exact half-width of the circle is asin(sin(r/R) / cos(lat0)),
	// which outgrows r/(111 cos(lat0)) close to the poles.
	sinHalf := math.Sin(radiusKm/EarthRadiusKm) / cosLat
	if sinHalf >= 1 {
		return box
	}
	lonRange := math.Max(radiusKm/(kmPerDegree*cosLat), math.Asin(sinHalf)*180/math.Pi)
	if lonRange >= 180 {
		return box
	}

	minLon := center.Longitude - lonRange
	maxLon := center.Longitude + lonRange
	switch {
	case minLon < -180:
		box.Longitudes = []LonRange{
			{Min: minLon + 360, Max: 180},
			{Min: -180, Max: maxLon},
		}
	case maxLon > 180:
		box.Longitudes = []LonRange{
			{Min: minLon, Max: 180},
			{Min: -180, Max: maxLon - 360},
		}
	default:
		box.Longitudes = []LonRange{{Min: minLon, Max: maxLon}}
	}
	return box
}

// AllLongitudes reports whether the box admits every longitude.
func (b BoundingBox) AllLongitudes() bool {
	return len(b.Longitudes) == 0
}

// Contains reports whether p falls inside the box.
func (b BoundingBox) Contains(p Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if b.AllLongitudes() {
		return true
	}
	for _, r := range b.Longitudes {
		if p.Longitude >= r.Min && p.Longitude <= r.Max {
			return true
		}
	}
	return false
}
