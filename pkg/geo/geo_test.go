package geo_test

import (
	"math"
	"testing"

	"github.com/garnizeh/flyaway/pkg/geo"
	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	ljubljana := geo.Point{Lat: 46.0569, Lng: 14.5058}
	maribor := geo.Point{Lat: 46.5547, Lng: 15.6459}

	assert.InDelta(t, 0, geo.DistanceKm(ljubljana, ljubljana), 1e-9)
	assert.InDelta(t, 103.5, geo.DistanceKm(ljubljana, maribor), 1)
	assert.InDelta(t, geo.DistanceKm(ljubljana, maribor), geo.DistanceKm(maribor, ljubljana), 1e-9)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, geo.Point{Lat: 46, Lng: 14}.Validate())
	assert.NoError(t, geo.Point{Lat: -90, Lng: 180}.Validate())
	assert.Error(t, geo.Point{Lat: 91, Lng: 0}.Validate())
	assert.Error(t, geo.Point{Lat: 0, Lng: -181}.Validate())
	assert.Error(t, geo.Point{Lat: math.NaN(), Lng: 0}.Validate())
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	c := geo.Point{Lat: 46.05, Lng: 14.5}
	lo, hi := geo.BoundingBox(c, 10)

	assert.Less(t, lo.Lat, c.Lat)
	assert.Greater(t, hi.Lat, c.Lat)

	north := geo.Point{Lat: hi.Lat, Lng: c.Lng}
	assert.InDelta(t, 10, geo.DistanceKm(c, north), 0.01)
}
