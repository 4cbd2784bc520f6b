package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_IdenticalPoints(t *testing.T) {
	points := [][2]float64{{0, 0}, {28.6, 77.2}, {-33.86, 151.21}, {90, 0}, {-90, 180}}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceKm(p[0], p[1], p[0], p[1]))
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	pairs := [][4]float64{
		{28.6, 77.2, 28.7, 77.1},
		{35.6762, 139.6503, 37.7749, -122.4194},
		{-45, 170, 45, -170},
	}
	for _, p := range pairs {
		ab := DistanceKm(p[0], p[1], p[2], p[3])
		ba := DistanceKm(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-9)
	}
}

func TestDistanceKm_OneDegreeLatitude(t *testing.T) {
	got := DistanceKm(10, 20, 11, 20)
	expected := 111.19
	assert.InEpsilon(t, expected, got, 0.01)
}

func TestDistanceKm_Antipodal(t *testing.T) {
	got := DistanceKm(0, 0, 0, 180)
	assert.InDelta(t, math.Pi*earthRadiusKm, got, 1e-6)
}

func TestDistanceKm_NonFinite(t *testing.T) {
	assert.True(t, math.IsNaN(DistanceKm(math.NaN(), 0, 0, 0)))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(0, 0))
	assert.True(t, Valid(-90, 180))
	assert.False(t, Valid(91, 0))
	assert.False(t, Valid(0, -181))
	assert.False(t, Valid(math.NaN(), 0))
	assert.False(t, Valid(0, math.Inf(1)))
}
