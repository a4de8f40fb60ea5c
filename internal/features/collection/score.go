// Package collection: score.go считает очки редкости, индекс и ранг коллекции.
// Функции чистые: сервис передаёт им счётчики из базы.
package collection

import (
	"fmt"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/features/birds"
)

// Веса уровней редкости
const (
	WeightS = 100
	WeightA = 50
	WeightB = 25
	WeightC = 10
)

// NewCollectorRank: ранг, когда сравнивать не с кем.
const NewCollectorRank = "New Collector"

// NoFindsLabel: подпись самой редкой находки для пустой коллекции.
const NoFindsLabel = "No Finds Yet"

// TierCounts: число птиц каждого уровня редкости.
type TierCounts struct {
	S int `json:"s_rarity_count"`
	A int `json:"a_rarity_count"`
	B int `json:"b_rarity_count"`
	C int `json:"c_rarity_count"`
}

// Add увеличивает счётчик уровня tier на n.
func (c *TierCounts) Add(tier string, n int) {
	switch tier {
	case birds.RarityS:
		c.S += n
	case birds.RarityA:
		c.A += n
	case birds.RarityB:
		c.B += n
	case birds.RarityC:
		c.C += n
	}
}

// Entries: всего птиц в коллекции.
func (c TierCounts) Entries() int {
	return c.S + c.A + c.B + c.C
}

// TotalScore: взвешенная сумма: S*100 + A*50 + B*25 + C*10.
func (c TierCounts) TotalScore() int {
	return c.S*WeightS + c.A*WeightA + c.B*WeightB + c.C*WeightC
}

// RarityIndex: средние очки на птицу; для пустой коллекции 0.
func RarityIndex(totalScore, entries int) float64 {
	if entries == 0 {
		return 0
	}
	return float64(totalScore) / float64(entries)
}

// Rank относит пользователя к перцентильной корзине по доле тех,
// у кого очков строго больше. Без пользователей возвращает NewCollectorRank.
//
//	Rank(0, 100)  → "Top 5%"
//	Rank(7, 100)  → "Top 10%"
//	Rank(20, 100) → "Top 25%"
//	Rank(60, 100) → "Top 50%"
func Rank(greater, totalUsers int) string {
	if totalUsers <= 0 {
		return NewCollectorRank
	}
	f := float64(greater) / float64(totalUsers)
	switch {
	case f < 0.05:
		return common.FormatPercentBucket(5)
	case f < 0.10:
		return common.FormatPercentBucket(10)
	case f < 0.25:
		return common.FormatPercentBucket(25)
	default:
		return common.FormatPercentBucket(50)
	}
}

// RarestTier возвращает самый редкий уровень, который есть в коллекции, или "".
func RarestTier(c TierCounts) string {
	switch {
	case c.S > 0:
		return birds.RarityS
	case c.A > 0:
		return birds.RarityA
	case c.B > 0:
		return birds.RarityB
	case c.C > 0:
		return birds.RarityC
	}
	return ""
}

// RarestFindLabel: подпись уровня: "S-Rarity Find" или NoFindsLabel.
func RarestFindLabel(tier string) string {
	if tier == "" {
		return NoFindsLabel
	}
	return fmt.Sprintf("%s-Rarity Find", tier)
}
