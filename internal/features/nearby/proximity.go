// Package nearby: proximity.go отбирает кандидатов в радиусе от точки.
package nearby

import (
	"sort"

	"serotonyl.ru/birdwatch/internal/geo"
)

// DefaultRadiusKm: радиус поиска, если клиент не передал radius.
const DefaultRadiusKm = 10.0

// ActivityLimit: сколько ближайших наблюдений отдаёт nearby-bird-activity.
const ActivityLimit = 10

// Located: кандидат для поиска по расстоянию.
type Located interface {
	Location() geo.Point
	Key() int64
}

// Ranked: кандидат с расстоянием до центра, км.
type Ranked[T Located] struct {
	Item       T
	DistanceKm float64
}

// Filter оставляет кандидатов с расстоянием <= radiusKm и сортирует их
// по возрастанию расстояния; при равных расстояниях раньше идёт меньший Key.
// Пустой результат: пустой срез, не nil (в JSON это [], а не null).
func Filter[T Located](center geo.Point, radiusKm float64, items []T) []Ranked[T] {
	out := make([]Ranked[T], 0)
	for _, item := range items {
		d := geo.Distance(center, item.Location())
		if d <= radiusKm {
			out = append(out, Ranked[T]{Item: item, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Item.Key() < out[j].Item.Key()
	})
	return out
}

// Top обрезает отсортированный результат до n элементов.
func Top[T Located](ranked []Ranked[T], n int) []Ranked[T] {
	if n >= 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}
