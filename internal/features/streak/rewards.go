// Package streak: rewards.go содержит пороги серий, за которые выдаются достижения.
package streak

import "fmt"

// Milestones: пороги рекордной серии (в днях) для достижений.
var Milestones = []int{7, 30, 100, 365}

// ReachedMilestones возвращает все пороги, которых достиг рекорд longest.
//
//	ReachedMilestones(6)  → []
//	ReachedMilestones(31) → [7 30]
func ReachedMilestones(longest int) []int {
	var out []int
	for _, m := range Milestones {
		if longest >= m {
			out = append(out, m)
		}
	}
	return out
}

// MilestoneTitle создаёт название достижения: MilestoneTitle(30) → "30 Day Streak".
func MilestoneTitle(days int) string {
	return fmt.Sprintf("%d Day Streak", days)
}
