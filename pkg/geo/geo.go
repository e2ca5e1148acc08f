package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is within the WGS84 range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Distance returns the haversine great-circle distance between a and b in kilometres.
func Distance(a, b Coordinate) float64 {
	if a == b {
		return 0
	}

	dLat := degreesToRadians(b.Lat - a.Lat)
	dLon := degreesToRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(a.Lat))*math.Cos(degreesToRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// rounding can push h slightly outside [0,1] near antipodes
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Offset returns the coordinate reached by moving northKm north and eastKm east of c
// on a local flat approximation. Used for building test fixtures and bounding boxes.
func Offset(c Coordinate, northKm, eastKm float64) Coordinate {
	lat := c.Lat + radiansToDegrees(northKm/EarthRadiusKm)
	lon := c.Lon
	if cosLat := math.Cos(degreesToRadians(c.Lat)); cosLat > 1e-12 {
		lon = c.Lon + radiansToDegrees(eastKm/(EarthRadiusKm*cosLat))
	}
	return Coordinate{Lat: lat, Lon: lon}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
