package nearby

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/geo"
)

func spot(id int64, lat, lon float64) *Spot {
	return &Spot{ID: id, Name: "spot", Latitude: lat, Longitude: lon}
}

func TestFilterKeepsOnlyWithinRadius(t *testing.T) {
	center := geo.Point{Lat: 40, Lon: -73}
	near := spot(1, 40.05, -73)
	far := spot(2, 41.0, -73)

	got := Filter(center, DefaultRadiusKm, []*Spot{far, near})
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Item.ID)
	assert.InDelta(t, 5.56, got[0].DistanceKm, 0.01)
}

func TestFilterIncludesBoundary(t *testing.T) {
	center := geo.Point{Lat: 40, Lon: -73}
	edge := spot(1, 40.05, -73.02)
	radius := geo.Distance(center, edge.Location())

	got := Filter(center, radius, []*Spot{edge})
	require.Len(t, got, 1)
	assert.Equal(t, radius, got[0].DistanceKm)
}

func TestFilterOrdersByDistanceThenID(t *testing.T) {
	center := geo.Point{Lat: 0, Lon: 0}
	items := []*Spot{
		spot(7, 0.03, 0),
		spot(5, 0.01, 0),
		spot(2, 0.01, 0),
		spot(9, 0.02, 0),
	}

	got := Filter(center, 100, items)
	ids := make([]int64, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.Item.ID)
	}
	assert.Equal(t, []int64{2, 5, 9, 7}, ids)
}

func TestFilterEmptyIsNotNil(t *testing.T) {
	got := Filter(geo.Point{Lat: 10, Lon: 10}, 1, []*Spot{spot(1, -10, -10)})
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Filter[*Spot](geo.Point{}, 1, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterRandomIsSortedAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	center := geo.Point{Lat: 55.75, Lon: 37.62}
	items := make([]*Spot, 0, 500)
	for i := 0; i < 500; i++ {
		items = append(items, spot(int64(i+1), center.Lat+rng.Float64()-0.5, center.Lon+rng.Float64()-0.5))
	}

	const radius = 25.0
	got := Filter(center, radius, items)
	for i, r := range got {
		assert.LessOrEqual(t, r.DistanceKm, radius)
		if i > 0 {
			prev := got[i-1]
			assert.True(t, prev.DistanceKm < r.DistanceKm ||
				(prev.DistanceKm == r.DistanceKm && prev.Item.ID < r.Item.ID))
		}
	}

	// Каждый кандидат в радиусе попал в результат
	inside := 0
	for _, s := range items {
		if geo.Distance(center, s.Location()) <= radius {
			inside++
		}
	}
	assert.Equal(t, inside, len(got))
}

func TestTop(t *testing.T) {
	ranked := Filter(geo.Point{}, 1000, []*Spot{spot(1, 0, 0.1), spot(2, 0, 0.2), spot(3, 0, 0.3)})

	assert.Len(t, Top(ranked, 2), 2)
	assert.Len(t, Top(ranked, 10), 3)
	assert.Len(t, Top(ranked, -1), 3)
}

func TestSightingLocationComesFromSpot(t *testing.T) {
	g := &Sighting{ID: 3, Spot: spot(1, 12.5, -4)}
	assert.Equal(t, geo.Point{Lat: 12.5, Lon: -4}, g.Location())
	assert.Equal(t, int64(3), g.Key())
}
