package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntervalLimiter_FirstCallPassesImmediately(t *testing.T) {
	l := NewIntervalLimiter(time.Second)
	var slept []time.Duration
	l.sleep = func(d time.Duration) { slept = append(slept, d) }

	l.WaitIfNeeded()
	require.Empty(t, slept)
}

func TestIntervalLimiter_SecondCallSleepsRemainder(t *testing.T) {
	l := NewIntervalLimiter(time.Second)
	var slept []time.Duration
	l.sleep = func(d time.Duration) { slept = append(slept, d) }

	l.WaitIfNeeded()
	l.WaitIfNeeded()

	require.Len(t, slept, 1)
	require.Greater(t, slept[0], time.Duration(0))
	require.LessOrEqual(t, slept[0], time.Second)
}

func TestIntervalLimiter_ZeroIntervalNeverSleeps(t *testing.T) {
	l := NewIntervalLimiter(0)
	l.sleep = func(time.Duration) { t.Fatal("must not sleep") }

	l.WaitIfNeeded()
	l.WaitIfNeeded()
	l.WaitIfNeeded()
}

func TestIntervalLimiter_ElapsedIntervalDoesNotSleep(t *testing.T) {
	l := NewIntervalLimiter(time.Millisecond)
	var slept int
	l.sleep = func(time.Duration) { slept++ }

	l.WaitIfNeeded()
	time.Sleep(5 * time.Millisecond)
	l.WaitIfNeeded()
	require.Zero(t, slept)
}
