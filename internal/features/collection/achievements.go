// Package collection: achievements.go определяет пороги достижений.
package collection

import (
	"fmt"

	"serotonyl.ru/birdwatch/internal/features/streak"
)

// Типы достижений
const (
	AchievementCollection = "COLLECTION"
	AchievementRarest     = "RAREST"
	AchievementStreak     = "STREAK"
	AchievementLocation   = "LOCATION"
)

// Пороги достижений
var (
	CollectionMilestones = []int{10, 50, 100, 500, 1000}
	LocationMilestones   = []int{5, 10, 50, 100}
)

// Progress: показатели пользователя, по которым выдаются достижения.
type Progress struct {
	Entries       int
	SCount        int
	LongestStreak int
	Locations     int
}

// Earned возвращает все достижения, заработанные при данном прогрессе.
// Выдача идемпотентна: повторная вставка того же (тип, название) игнорируется базой.
func Earned(p Progress) []Achievement {
	var out []Achievement
	for _, m := range CollectionMilestones {
		if p.Entries >= m {
			out = append(out, Achievement{
				Type:        AchievementCollection,
				Title:       fmt.Sprintf("Collection Master %d", m),
				Description: fmt.Sprintf("Collected %d different bird species", m),
				Value:       m,
			})
		}
	}
	if p.SCount > 0 {
		out = append(out, Achievement{
			Type:        AchievementRarest,
			Title:       "S-Rank Collector",
			Description: "Found an S-Rank rarity bird",
			Value:       p.SCount,
		})
	}
	for _, m := range streak.ReachedMilestones(p.LongestStreak) {
		out = append(out, Achievement{
			Type:        AchievementStreak,
			Title:       streak.MilestoneTitle(m),
			Description: fmt.Sprintf("Maintained a %d day activity streak", m),
			Value:       m,
		})
	}
	for _, m := range LocationMilestones {
		if p.Locations >= m {
			out = append(out, Achievement{
				Type:        AchievementLocation,
				Title:       fmt.Sprintf("Explorer %d", m),
				Description: fmt.Sprintf("Explored %d different locations", m),
				Value:       m,
			})
		}
	}
	return out
}
