package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(list []Achievement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Title)
	}
	return out
}

func TestEarnedNothingForNewUser(t *testing.T) {
	assert.Empty(t, Earned(Progress{}))
	assert.Empty(t, Earned(Progress{Entries: 9, LongestStreak: 6, Locations: 4}))
}

func TestEarnedThresholds(t *testing.T) {
	got := Earned(Progress{Entries: 50, SCount: 2, LongestStreak: 30, Locations: 10})
	assert.Equal(t, []string{
		"Collection Master 10",
		"Collection Master 50",
		"S-Rank Collector",
		"7 Day Streak",
		"30 Day Streak",
		"Explorer 5",
		"Explorer 10",
	}, titles(got))

	rarest := got[2]
	assert.Equal(t, AchievementRarest, rarest.Type)
	assert.Equal(t, 2, rarest.Value)
}

func TestEarnedDescriptions(t *testing.T) {
	got := Earned(Progress{Entries: 10, LongestStreak: 7, Locations: 5})
	require.Len(t, got, 3)
	assert.Equal(t, "Collected 10 different bird species", got[0].Description)
	assert.Equal(t, AchievementStreak, got[1].Type)
	assert.Equal(t, "Maintained a 7 day activity streak", got[1].Description)
	assert.Equal(t, "Explored 5 different locations", got[2].Description)
}
