package timer_test

import (
	"testing"
	"time"

	"github.com/argus-labs/skirmish/pkg/testutils"
	"github.com/argus-labs/skirmish/pkg/timer"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration time.Duration
		mode     timer.Mode
		wantErr  error
	}{
		{name: "repeating", duration: time.Second, mode: timer.Repeating},
		{name: "once", duration: time.Millisecond, mode: timer.Once},
		{name: "zero duration", duration: 0, mode: timer.Repeating, wantErr: timer.ErrInvalidDuration},
		{name: "negative duration", duration: -time.Second, mode: timer.Once, wantErr: timer.ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tm, err := timer.New(tt.duration, tt.mode)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, eris.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.duration, tm.Duration())
			assert.Equal(t, tt.mode, tm.Mode())
			assert.Zero(t, tm.Elapsed())
			assert.False(t, tm.JustFinished())
		})
	}

	_, err := timer.New(time.Second, timer.Mode(9))
	require.Error(t, err)
}

func TestTimer_Repeating(t *testing.T) {
	t.Parallel()

	tm := timer.MustNew(time.Second, timer.Repeating)

	tm.Tick(500 * time.Millisecond)
	assert.False(t, tm.JustFinished())
	assert.Equal(t, 500*time.Millisecond, tm.Elapsed())

	tm.Tick(500 * time.Millisecond)
	assert.True(t, tm.JustFinished())
	assert.Zero(t, tm.Elapsed())

	// The flag only holds for the tick that crossed the boundary.
	tm.Tick(0)
	assert.False(t, tm.JustFinished())

	// Overshoot is carried into the next period.
	tm.Tick(1300 * time.Millisecond)
	assert.True(t, tm.JustFinished())
	assert.Equal(t, 300*time.Millisecond, tm.Elapsed())
	assert.InDelta(t, 0.3, tm.Fraction(), 1e-9)
	assert.Equal(t, 700*time.Millisecond, tm.Remaining())
}

func TestTimer_RepeatingNoCatchUp(t *testing.T) {
	t.Parallel()

	tm := timer.MustNew(time.Second, timer.Repeating)
	tm.Tick(3500 * time.Millisecond)

	assert.True(t, tm.JustFinished())
	assert.Equal(t, uint32(3), tm.TimesFinishedThisTick())
	assert.Equal(t, 500*time.Millisecond, tm.Elapsed())

	tm.Tick(100 * time.Millisecond)
	assert.False(t, tm.JustFinished())
	assert.Zero(t, tm.TimesFinishedThisTick())
}

func TestTimer_Once(t *testing.T) {
	t.Parallel()

	tm := timer.MustNew(time.Second, timer.Once)

	tm.Tick(1500 * time.Millisecond)
	assert.True(t, tm.JustFinished())
	assert.True(t, tm.Finished())
	assert.Equal(t, time.Second, tm.Elapsed(), "once timers clamp at the duration")

	tm.Tick(time.Second)
	assert.False(t, tm.JustFinished())
	assert.True(t, tm.Finished())

	tm.Reset()
	assert.False(t, tm.Finished())
	assert.Zero(t, tm.Elapsed())

	tm.Tick(-time.Second)
	assert.Zero(t, tm.Elapsed(), "negative deltas are ignored")
}

// For any split of k*D + r into steps no longer than D, a repeating timer fires exactly k times
// and ends with r accumulated.
func TestTimer_PhaseAccuracy(t *testing.T) {
	t.Parallel()

	r := testutils.NewRand(t)
	const iterations = 200

	for range iterations {
		duration := time.Duration(r.Int64N(int64(2*time.Second))) + time.Millisecond
		k := r.IntN(20)
		remainder := time.Duration(r.Int64N(int64(duration)))
		total := time.Duration(k)*duration + remainder

		tm := timer.MustNew(duration, timer.Repeating)
		fired := 0
		for _, step := range testutils.RandSplit(r, total, duration) {
			tm.Tick(step)
			if tm.JustFinished() {
				fired++
			}
		}

		require.Equal(t, k, fired, "duration=%s total=%s", duration, total)
		require.Equal(t, remainder, tm.Elapsed(), "duration=%s total=%s", duration, total)
	}
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "once", timer.Once.String())
	assert.Equal(t, "repeating", timer.Repeating.String())
	assert.Equal(t, "unknown", timer.Mode(42).String())
}
