package upstream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/birdwatch/internal/common"
)

func TestCallWrapsErrors(t *testing.T) {
	b := New("test-wrap", DefaultSettings)

	v, err := Call(b, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	cause := errors.New("502 bad gateway")
	_, err = Call(b, func() (int, error) { return 0, cause })
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.ErrorIs(t, err, cause)
}

func TestBreakerOpensAndIgnoresExpected(t *testing.T) {
	expected := errors.New("nothing found")
	b := New("test-open", Settings{FailureThreshold: 2, Timeout: time.Minute}.With(expected))

	calls := 0
	call := func(err error) error {
		_, e := Call(b, func() (struct{}, error) {
			calls++
			return struct{}{}, err
		})
		return e
	}

	// Штатные ответы не размыкают цепь
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, call(expected), expected)
	}
	assert.Equal(t, 5, calls)

	boom := errors.New("boom")
	assert.Error(t, call(boom))
	assert.Error(t, call(boom))
	assert.Equal(t, 7, calls)

	// Разомкнута: fn не вызывается
	assert.ErrorIs(t, call(nil), common.ErrUpstream)
	assert.Equal(t, 7, calls)
}

func TestSettingsWithDoesNotShareBacking(t *testing.T) {
	a := DefaultSettings.With(errors.New("a"))
	b := DefaultSettings.With(errors.New("b"))
	assert.Len(t, a.Expected, 1)
	assert.Len(t, b.Expected, 1)
	assert.Empty(t, DefaultSettings.Expected)
}
