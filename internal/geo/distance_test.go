package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func randomPoint(r *rand.Rand) Point {
	return Point{Lat: r.Float64()*180 - 90, Lon: r.Float64()*360 - 180}
}

func TestDistanceSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		a, b := randomPoint(r), randomPoint(r)
		assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
	}
}

func TestDistanceIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		a := randomPoint(r)
		assert.InDelta(t, 0, Distance(a, a), 1e-9)
	}
}

func TestDistanceKnownValues(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
		want float64
	}{
		{"0.05 градуса широты", Point{40, -73}, Point{40.05, -73}, 5.56},
		{"1 градус широты", Point{40, -73}, Point{41, -73}, 111.19},
		{"четверть экватора", Point{0, 0}, Point{0, 90}, 10007.54},
		{"антиподы", Point{0, 0}, Point{0, 180}, 20015.09},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Distance(tc.a, tc.b), 0.01)
		})
	}
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{90, 180}.Valid())
	assert.True(t, Point{-90, -180}.Valid())
	assert.False(t, Point{90.1, 0}.Valid())
	assert.False(t, Point{0, -180.5}.Valid())
}

func TestAroundContainsCircleNearEquator(t *testing.T) {
	center := Point{Lat: 1, Lon: 30}
	box := Around(center, 10)

	assert.InDelta(t, 10/KmPerDegree, box.MaxLat-center.Lat, 1e-12)
	assert.True(t, box.Contains(center))
	assert.True(t, box.Contains(Point{Lat: 1.05, Lon: 30}))
	assert.False(t, box.Contains(Point{Lat: 1.2, Lon: 30}))
}

func TestAroundClampsAtPolesAndAntimeridian(t *testing.T) {
	box := Around(Point{Lat: 89.95, Lon: 179.95}, 20)
	assert.Equal(t, 90.0, box.MaxLat)
	assert.Equal(t, -180.0, box.MinLon)
	assert.Equal(t, 180.0, box.MaxLon)
	assert.True(t, box.Contains(Point{Lat: 89.9, Lon: -179.99}))
}

// destination возвращает точку на расстоянии distKm от start по азимуту bearing (градусы).
func destination(start Point, bearing, distKm float64) Point {
	lat1, lon1 := toRadians(start.Lat), toRadians(start.Lon)
	brg := toRadians(bearing)
	ang := distKm / EarthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(math.Sin(brg)*math.Sin(ang)*math.Cos(lat1), math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2))
	return Point{Lat: lat2 * 180 / math.Pi, Lon: lon2 * 180 / math.Pi}
}

func TestAroundIncludesPointsDueEast(t *testing.T) {
	for _, lat := range []float64{0, 40, 55.75, 60, 75} {
		center := Point{Lat: lat, Lon: -73}
		east := destination(center, 90, 9)
		west := destination(center, 270, 9.99)

		assert.LessOrEqual(t, Distance(center, east), 10.0)
		box := Around(center, 10)
		assert.True(t, box.Contains(east), "lat=%v", lat)
		assert.True(t, box.Contains(west), "lat=%v", lat)
		// Рамка остаётся узкой: поиск не превращается в полный перебор
		assert.Greater(t, box.MinLon, -180.0, "lat=%v", lat)
	}
}

func TestAroundContainsWholeCircle(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for lat := 0.0; lat <= 80; lat += 5 {
		for _, sign := range []float64{1, -1} {
			center := Point{Lat: sign * lat, Lon: r.Float64()*300 - 150}
			for _, radius := range []float64{0.5, 10, 50, 200} {
				box := Around(center, radius)
				for i := 0; i < 200; i++ {
					p := destination(center, r.Float64()*360, r.Float64()*radius)
					if Distance(center, p) > radius {
						continue
					}
					assert.True(t, box.Contains(p), "center=%v radius=%v p=%v", center, radius, p)
				}
				// Точки ровно на окружности тоже внутри
				for bearing := 0.0; bearing < 360; bearing += 15 {
					p := destination(center, bearing, radius*(1-1e-9))
					assert.True(t, box.Contains(p), "center=%v radius=%v bearing=%v", center, radius, bearing)
				}
			}
		}
	}
}

func TestAroundLongitudeWidensWithLatitude(t *testing.T) {
	equator := Around(Point{Lat: 0, Lon: 0}, 10)
	north := Around(Point{Lat: 60, Lon: 0}, 10)

	// На 60° градус долготы вдвое короче, рамка вдвое шире
	assert.InDelta(t, 2, (north.MaxLon-north.MinLon)/(equator.MaxLon-equator.MinLon), 0.01)
	assert.InDelta(t, 10/KmPerDegree, north.MaxLat, 1e-12)
}
