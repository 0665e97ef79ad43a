package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
	}{
		{"same point", 40.4093, 49.8671, 40.4093, 49.8671, 0},
		{"baku center to port", 40.4093, 49.8671, 40.3772, 49.8532, 3.76},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 343.56},
		{"across equator", -1.0, 36.8, 1.0, 36.8, 222.39},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantKm, got, 0.5)
		})
	}
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 0, EstimateDuration(0))
	assert.Equal(t, 6, EstimateDuration(4))
	assert.Equal(t, 15, EstimateDuration(10))
	assert.Equal(t, 60, EstimateDuration(40))
}
