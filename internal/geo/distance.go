// Package geo считает расстояния между координатами.
package geo

import "math"

// EarthRadiusKm: средний радиус Земли, используемый в формуле гаверсинусов.
const EarthRadiusKm = 6371.0

// Point: координаты в десятичных градусах.
type Point struct {
	Lat float64
	Lon float64
}

// Distance возвращает расстояние по большому кругу между a и b в километрах
// (формула гаверсинусов). Диапазоны координат не проверяются: это делает вызывающий код.
//
// Пример:
//
//	Distance(Point{40, -73}, Point{40.05, -73}) → ~5.56
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Погрешность округления может дать h чуть больше 1
	h = math.Min(1, h)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Valid сообщает, что широта в [-90, 90], а долгота в [-180, 180].
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
