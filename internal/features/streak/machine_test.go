package streak

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func TestAdvanceFirstAction(t *testing.T) {
	st := Advance(State{}, day(1))
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 1, st.Longest)
	require.NotNil(t, st.LastActivity)
	assert.Equal(t, day(1), *st.LastActivity)
}

func TestAdvanceContinuity(t *testing.T) {
	var st State
	for d := 1; d <= 3; d++ {
		st = Advance(st, day(d))
	}
	assert.Equal(t, 3, st.Current)
	assert.Equal(t, 3, st.Longest)
}

func TestAdvanceBreak(t *testing.T) {
	var st State
	for d := 1; d <= 3; d++ {
		st = Advance(st, day(d))
	}
	st = Advance(st, day(3+5))
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 3, st.Longest)
	assert.Equal(t, day(8), *st.LastActivity)
}

func TestAdvanceSameDayIdempotent(t *testing.T) {
	st := Advance(State{}, day(1))
	st = Advance(st, day(2))
	again := Advance(st, day(2))
	assert.Equal(t, st, again)
	assert.Equal(t, 2, again.Current)
}

func TestAdvanceIgnoresPastToday(t *testing.T) {
	st := Advance(State{}, day(5))
	back := Advance(st, day(3))
	assert.Equal(t, st, back)
}

func TestAdvanceKeepsLongestAfterRestart(t *testing.T) {
	var st State
	for d := 1; d <= 5; d++ {
		st = Advance(st, day(d))
	}
	st = Advance(st, day(10))
	st = Advance(st, day(11))
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 5, st.Longest)
}

// Случайные последовательности действий: инвариант current <= longest
// и last_activity == последний день действия.
func TestAdvanceInvariantRandomWalk(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for run := 0; run < 200; run++ {
		var st State
		d := 1
		for step := 0; step < 50; step++ {
			d += r.Intn(4) // 0: тот же день, 1: следующий, 2-3: перерыв
			st = Advance(st, day(d))
			require.LessOrEqual(t, st.Current, st.Longest)
			require.GreaterOrEqual(t, st.Current, 1)
			require.Equal(t, day(d), *st.LastActivity)
		}
	}
}

func TestExpired(t *testing.T) {
	st := Advance(State{}, day(1))
	assert.False(t, Expired(st, day(1)))
	assert.False(t, Expired(st, day(2)))
	assert.True(t, Expired(st, day(3)))
	assert.False(t, Expired(State{}, day(3)))
}

func TestReachedMilestones(t *testing.T) {
	assert.Empty(t, ReachedMilestones(6))
	assert.Equal(t, []int{7, 30}, ReachedMilestones(31))
	assert.Equal(t, "30 Day Streak", MilestoneTitle(30))
}

func TestResponse(t *testing.T) {
	resp := Response(Advance(State{}, day(1)))
	assert.Equal(t, "1 Day Active", resp.Status)
	require.NotNil(t, resp.LastActivityDate)
	assert.Equal(t, "2024-01-01", *resp.LastActivityDate)

	assert.Nil(t, Response(State{}).LastActivityDate)
}
