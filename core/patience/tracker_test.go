package patience

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestTracker_AccumulatesOnlyWhenEligible(t *testing.T) {
	tracker := NewTracker(10)

	require.False(t, tracker.OnSecondElapsed("a", false))
	require.Equal(t, uint64(0), tracker.Record("a").AccumulatedSeconds)

	prev := uint64(0)
	for i := 0; i < 5; i++ {
		tracker.OnSecondElapsed("a", true)
		tracker.OnSecondElapsed("a", false)
		cur := tracker.Record("a").AccumulatedSeconds
		require.True(t, cur >= prev)
		prev = cur
	}
	record := tracker.Record("a")
	require.Equal(t, uint64(5), record.AccumulatedSeconds)
	require.Equal(t, 0.5, record.Progress)
	require.Equal(t, uint64(5), tracker.RemainingSeconds("a"))
}

func TestTracker_CompletesExactlyOnce(t *testing.T) {
	tracker := NewTracker(3)
	var completions int
	for i := 0; i < 10; i++ {
		if tracker.OnSecondElapsed("a", true) {
			completions++
			require.Equal(t, 2, i)
		}
		progress := tracker.Record("a").Progress
		require.True(t, progress >= 0 && progress <= 1)
	}
	require.Equal(t, 1, completions)
	require.True(t, tracker.Completed("a"))
	require.Equal(t, float64(1), tracker.Record("a").Progress)
	require.Equal(t, uint64(10), tracker.Record("a").AccumulatedSeconds)
	require.Equal(t, uint64(0), tracker.RemainingSeconds("a"))
}

func TestTracker_ResetDoesNotBankPatience(t *testing.T) {
	tracker := NewTracker(5)
	for i := 0; i < 3; i++ {
		tracker.OnSecondElapsed("a", true)
	}
	session := tracker.Session("a")
	require.Equal(t, uint64(3), tracker.Record("a").AccumulatedSeconds)

	tracker.Reset("a")
	require.Equal(t, uint64(0), tracker.Record("a").AccumulatedSeconds)
	require.NotEqual(t, session, tracker.Session("a"))

	tracker.OnSecondElapsed("a", true)
	require.Equal(t, uint64(1), tracker.Record("a").AccumulatedSeconds)

	for i := 0; i < 3; i++ {
		require.False(t, tracker.OnSecondElapsed("a", true))
	}
	require.True(t, tracker.OnSecondElapsed("a", true), "a new session completes again")

	tracker.Forget("a")
	require.Equal(t, "", tracker.Session("a"))
	require.False(t, tracker.Completed("a"))
}
