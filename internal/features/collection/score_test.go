package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalScore(t *testing.T) {
	c := TierCounts{S: 1, A: 2, B: 0, C: 3}
	assert.Equal(t, 230, c.TotalScore())
	assert.Equal(t, 6, c.Entries())
	assert.Equal(t, 0, TierCounts{}.TotalScore())
}

func TestTierCountsAddIgnoresUnknownTier(t *testing.T) {
	var c TierCounts
	c.Add("S", 2)
	c.Add("C", 1)
	c.Add("X", 5)
	assert.Equal(t, TierCounts{S: 2, C: 1}, c)
}

func TestRarityIndex(t *testing.T) {
	assert.Equal(t, 0.0, RarityIndex(0, 0))
	assert.InDelta(t, 38.333, RarityIndex(230, 6), 0.001)
}

func TestRank(t *testing.T) {
	tests := []struct {
		greater, total int
		want           string
	}{
		{0, 0, NewCollectorRank},
		{0, 1, "Top 5%"},
		{4, 100, "Top 5%"},
		{5, 100, "Top 10%"},
		{9, 100, "Top 10%"},
		{10, 100, "Top 25%"},
		{24, 100, "Top 25%"},
		{25, 100, "Top 50%"},
		{99, 100, "Top 50%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rank(tt.greater, tt.total), "greater=%d total=%d", tt.greater, tt.total)
	}
}

func TestRarestFind(t *testing.T) {
	assert.Equal(t, "", RarestTier(TierCounts{}))
	assert.Equal(t, "B", RarestTier(TierCounts{B: 1, C: 4}))
	assert.Equal(t, "S", RarestTier(TierCounts{S: 1, A: 1}))

	assert.Equal(t, NoFindsLabel, RarestFindLabel(""))
	assert.Equal(t, "S-Rarity Find", RarestFindLabel("S"))
	assert.Equal(t, "C-Rarity Find", RarestFindLabel("C"))
}
