package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/examind/examind-api/internal/dto"
)

func TestSessionRegistryRejectsConcurrentSession(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())
	defer registry.Shutdown()

	event, err := registry.Start(1, 2, 30)
	require.NoError(t, err)
	require.Equal(t, dto.SessionEventStarted, event.Type)
	require.Equal(t, 30, event.DurationMinutes)
	require.NotNil(t, event.ServerStartTime)

	_, err = registry.Start(1, 2, 30)
	require.ErrorIs(t, err, ErrSessionActive)

	// A different test for the same student is an independent session.
	_, err = registry.Start(1, 3, 30)
	require.NoError(t, err)
	require.Equal(t, 2, registry.Active())
}

func TestSessionRegistryHeartbeatUsesServerClock(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())
	defer registry.Shutdown()

	start := time.Now()
	registry.now = func() time.Time { return start }

	_, err := registry.Start(1, 2, 30)
	require.NoError(t, err)

	registry.now = func() time.Time { return start.Add(10 * time.Minute) }

	update, err := registry.Heartbeat(1, 2)
	require.NoError(t, err)
	require.Equal(t, dto.SessionEventTimeUpdate, update.Type)
	require.Equal(t, 600, update.ElapsedSeconds)
	require.NotNil(t, update.RemainingSeconds)
	require.Equal(t, 1200, *update.RemainingSeconds)
}

func TestSessionRegistryWarningsFireOnce(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())
	defer registry.Shutdown()

	start := time.Now()
	registry.now = func() time.Time { return start }

	_, err := registry.Start(1, 2, 30)
	require.NoError(t, err)

	key := sessionKey{studentID: 1, testID: 2}

	registry.now = func() time.Time { return start.Add(26 * time.Minute) }
	_, err = registry.Heartbeat(1, 2)
	require.NoError(t, err)
	registry.mu.Lock()
	require.True(t, registry.sessions[key].warnedFive)
	require.False(t, registry.sessions[key].warnedOne)
	registry.mu.Unlock()

	registry.now = func() time.Time { return start.Add(29*time.Minute + 30*time.Second) }
	_, err = registry.Heartbeat(1, 2)
	require.NoError(t, err)
	registry.mu.Lock()
	require.True(t, registry.sessions[key].warnedOne)
	registry.mu.Unlock()

	// Flags stay set; repeating a heartbeat past the thresholds must not
	// rearm the warnings.
	_, err = registry.Heartbeat(1, 2)
	require.NoError(t, err)
}

func TestSessionRegistryTerminateCancelsTimers(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())
	defer registry.Shutdown()

	_, err := registry.Start(1, 2, 30)
	require.NoError(t, err)

	require.NoError(t, registry.Terminate(1, 2, TerminateManual))
	require.Zero(t, registry.Active())

	require.ErrorIs(t, registry.Terminate(1, 2, TerminateManual), ErrSessionNotFound)
	_, err = registry.Heartbeat(1, 2)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRegistryExpiryAutoSubmitsSavedAnswers(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())
	defer registry.Shutdown()

	type submission struct {
		studentID uint
		testID    uint
		answers   []dto.SubmittedAnswer
		timeSpent int
	}
	submitted := make(chan submission, 1)
	registry.SetAutoSubmitFunc(func(studentID, testID uint, answers []dto.SubmittedAnswer, timeSpentSeconds int) {
		submitted <- submission{studentID, testID, answers, timeSpentSeconds}
	})

	// Zero duration expires immediately.
	_, err := registry.Start(4, 9, 0)
	require.NoError(t, err)

	answers := []dto.SubmittedAnswer{{QuestionID: 1, OptionID: uintPtr(2)}}
	// The saved state may lose the race against the already-fired timer on a
	// zero-length session; ignore the not-found case.
	_ = registry.RecordAutoSave(4, 9, answers, 12)

	select {
	case got := <-submitted:
		require.Equal(t, uint(4), got.studentID)
		require.Equal(t, uint(9), got.testID)
	case <-time.After(2 * time.Second):
		t.Fatal("auto-submit was not invoked after expiry")
	}

	require.Eventually(t, func() bool { return registry.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionRegistryRecordAutoSaveKeepsLatestState(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())
	defer registry.Shutdown()

	_, err := registry.Start(1, 2, 30)
	require.NoError(t, err)

	first := []dto.SubmittedAnswer{{QuestionID: 1, OptionIndex: intPtr(0)}}
	second := []dto.SubmittedAnswer{{QuestionID: 1, OptionIndex: intPtr(1)}, {QuestionID: 2, OptionIndex: intPtr(0)}}

	require.NoError(t, registry.RecordAutoSave(1, 2, first, 30))
	require.NoError(t, registry.RecordAutoSave(1, 2, second, 75))

	registry.mu.Lock()
	session := registry.sessions[sessionKey{studentID: 1, testID: 2}]
	require.Len(t, session.lastAnswers, 2)
	require.Equal(t, 75, session.lastSpent)
	registry.mu.Unlock()

	require.ErrorIs(t, registry.RecordAutoSave(9, 9, first, 1), ErrSessionNotFound)
}

func TestSessionRegistrySnapshotResyncsReconnect(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())
	defer registry.Shutdown()

	started, err := registry.Start(1, 2, 45)
	require.NoError(t, err)

	snapshot, err := registry.Snapshot(1, 2)
	require.NoError(t, err)
	require.Equal(t, dto.SessionEventStarted, snapshot.Type)
	require.Equal(t, started.DurationMinutes, snapshot.DurationMinutes)
	require.Equal(t, started.ServerStartTime.Unix(), snapshot.ServerStartTime.Unix())

	_, err = registry.Snapshot(3, 4)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRegistryShutdownCancelsEverything(t *testing.T) {
	registry := NewSessionRegistry(time.Minute, testLogger())

	var wg sync.WaitGroup
	for i := uint(1); i <= 5; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := registry.Start(id, 100, 30)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 5, registry.Active())

	registry.Shutdown()
	require.Zero(t, registry.Active())
}
