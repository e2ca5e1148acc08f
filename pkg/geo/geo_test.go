package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/nearcare/pkg/geo"
)

func TestDistance_IdenticalPointsIsZero(t *testing.T) {
	points := []geo.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 37.5665, Lon: 126.9780},
		{Lat: -90, Lon: 0},
		{Lat: 89.9999, Lon: -179.9999},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, geo.Distance(p, p))
	}
}

func TestDistance_IsSymmetric(t *testing.T) {
	a := geo.Coordinate{Lat: 37.4563, Lon: 126.7052}
	b := geo.Coordinate{Lat: 35.1796, Lon: 129.0756}

	assert.InDelta(t, geo.Distance(a, b), geo.Distance(b, a), 1e-9)
}

func TestDistance_KnownPair(t *testing.T) {
	seoul := geo.Coordinate{Lat: 37.5665, Lon: 126.9780}
	busan := geo.Coordinate{Lat: 35.1796, Lon: 129.0756}

	// published great-circle distance is about 325 km
	assert.InDelta(t, 325.0, geo.Distance(seoul, busan), 3.0)
}

func TestDistance_MonotoneAlongBearing(t *testing.T) {
	origin := geo.Coordinate{Lat: 37.50, Lon: 126.70}

	prev := 0.0
	for km := 0.5; km <= 50; km += 0.5 {
		d := geo.Distance(origin, geo.Offset(origin, km, 0))
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestDistance_AntipodalIsStable(t *testing.T) {
	a := geo.Coordinate{Lat: 10, Lon: 20}
	b := geo.Coordinate{Lat: -10, Lon: -160}

	d := geo.Distance(a, b)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*geo.EarthRadiusKm, d, 1e-3)
}

func TestOffset_NorthMatchesDistance(t *testing.T) {
	origin := geo.Coordinate{Lat: 37.50, Lon: 126.70}

	assert.InDelta(t, 3.01, geo.Distance(origin, geo.Offset(origin, 3.01, 0)), 1e-9)
	assert.InDelta(t, 2.99, geo.Distance(origin, geo.Offset(origin, 2.99, 0)), 1e-9)
}

func TestCoordinate_Valid(t *testing.T) {
	assert.True(t, geo.Coordinate{Lat: 37.5, Lon: 126.9}.Valid())
	assert.True(t, geo.Coordinate{Lat: -90, Lon: 180}.Valid())
	assert.False(t, geo.Coordinate{Lat: 91, Lon: 0}.Valid())
	assert.False(t, geo.Coordinate{Lat: 0, Lon: -181}.Valid())
	assert.False(t, geo.Coordinate{Lat: math.NaN(), Lon: 0}.Valid())
}
