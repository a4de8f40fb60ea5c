package geo

import "math"

// KmPerDegree: число километров в одном градусе широты (с запасом вниз,
// поэтому рамка по широте чуть шире круга).
const KmPerDegree = 111.0

// BoundingBox: прямоугольник для предварительной фильтрации по индексу (latitude, longitude).
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Around строит рамку, целиком содержащую круг радиуса radiusKm вокруг центра.
// Рамка только сужает выборку; окончательный отбор делает Distance.
//
// По широте берётся ±radiusKm/111 градусов. По долготе градус короче
// (~111·cos(φ) км), поэтому полуширина считается по сферической формуле
// asin(sin(r/R)/cos(φ)): так рамка не уже круга ни на какой широте.
// Если круг накрывает полюс или рамка пересекает ±180°, берётся вся долгота.
//
// Параметры:
//   - center: центр поиска
//   - radiusKm: радиус в километрах (> 0)
//
// Возвращает: рамку с широтой в [-90, 90] и долготой в [-180, 180].
func Around(center Point, radiusKm float64) BoundingBox {
	delta := radiusKm / KmPerDegree
	box := BoundingBox{
		MinLat: math.Max(-90, center.Lat-delta),
		MaxLat: math.Min(90, center.Lat+delta),
		MinLon: -180,
		MaxLon: 180,
	}
	if box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}

	sinAngle := math.Sin(radiusKm / EarthRadiusKm)
	cosLat := math.Cos(toRadians(center.Lat))
	if sinAngle >= cosLat {
		return box
	}
	// Небольшой запас на погрешность округления у границы круга
	dLon := math.Asin(sinAngle/cosLat)*180/math.Pi*1.000001 + 1e-9

	if center.Lon-dLon >= -180 && center.Lon+dLon <= 180 {
		box.MinLon, box.MaxLon = center.Lon-dLon, center.Lon+dLon
	}
	return box
}

// Contains сообщает, попадает ли точка в рамку (границы включительно).
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}
