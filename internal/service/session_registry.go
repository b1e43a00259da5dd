package service

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/observability"
)

// Session lifecycle errors.
var (
	ErrSessionActive   = errors.New("a session is already running for this test")
	ErrSessionNotFound = errors.New("no running session for this test")
)

// TerminateReason describes why a session ended.
type TerminateReason string

// Terminate reasons. Disconnects never terminate a session; the timer keeps
// running so a reconnecting client resumes its countdown, which means a
// permanently dropped connection holds the session until expiry.
const (
	TerminateManual     TerminateReason = "manual"
	TerminateExpired    TerminateReason = "expired"
	TerminateDisconnect TerminateReason = "disconnect-preserved"
)

// Warning thresholds emitted once each as the countdown crosses them.
const (
	warnFiveMinutes = 5 * time.Minute
	warnOneMinute   = time.Minute
)

// AutoSubmitFunc finalises an attempt when its timer expires. Wired to the
// submission coordinator after construction to break the dependency cycle.
type AutoSubmitFunc func(studentID, testID uint, answers []dto.SubmittedAnswer, timeSpentSeconds int)

type sessionKey struct {
	studentID uint
	testID    uint
}

// examSession is the ephemeral state of one live attempt. It is never
// persisted; a process restart loses all live sessions and students must
// restart their timed attempts.
type examSession struct {
	key         sessionKey
	startedAt   time.Time
	duration    time.Duration
	deadline    *time.Timer
	saveTicker  *time.Ticker
	tickerDone  chan struct{}
	warnedFive  bool
	warnedOne   bool
	lastAnswers []dto.SubmittedAnswer
	lastSpent   int
}

// SessionRegistry tracks live timed attempts, owns the authoritative countdown
// for each, and emits session events to connected clients. One concurrent
// session per (student, test). Constructed at process start and shut down
// explicitly so no timers outlive the process's intent.
type SessionRegistry struct {
	mu               sync.Mutex
	sessions         map[sessionKey]*examSession
	hub              *sessionHub
	autoSaveInterval time.Duration
	autoSubmit       AutoSubmitFunc
	logger           zerolog.Logger
	now              func() time.Time
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry(autoSaveInterval time.Duration, logger zerolog.Logger) *SessionRegistry {
	if autoSaveInterval <= 0 {
		autoSaveInterval = 30 * time.Second
	}

	return &SessionRegistry{
		sessions:         make(map[sessionKey]*examSession),
		hub:              newSessionHub(logger),
		autoSaveInterval: autoSaveInterval,
		logger:           logger.With().Str("component", "session_registry").Logger(),
		now:              time.Now,
	}
}

// SetAutoSubmitFunc wires the expiry callback. Must be called before any
// session is started.
func (r *SessionRegistry) SetAutoSubmitFunc(fn AutoSubmitFunc) {
	r.autoSubmit = fn
}

// Start opens a timed session and schedules the auto-submit deadline plus the
// recurring auto-save trigger. The emitted started event carries the server
// start time and duration so the client countdown is server-anchored.
func (r *SessionRegistry) Start(studentID, testID uint, durationMinutes int) (dto.SessionEvent, error) {
	key := sessionKey{studentID: studentID, testID: testID}

	r.mu.Lock()
	if _, exists := r.sessions[key]; exists {
		r.mu.Unlock()
		return dto.SessionEvent{}, ErrSessionActive
	}

	session := &examSession{
		key:        key,
		startedAt:  r.now(),
		duration:   time.Duration(durationMinutes) * time.Minute,
		tickerDone: make(chan struct{}),
	}
	session.deadline = time.AfterFunc(session.duration, func() {
		r.expire(key)
	})
	session.saveTicker = time.NewTicker(r.autoSaveInterval)
	r.sessions[key] = session
	r.mu.Unlock()

	go r.autoSaveLoop(session)

	observability.SessionsActive().Inc()
	r.logger.Info().
		Uint("student_id", studentID).
		Uint("test_id", testID).
		Int("duration_minutes", durationMinutes).
		Msg("session started")

	event := startedEvent(session)
	r.hub.emit(key, event)

	return event, nil
}

// Heartbeat computes elapsed and remaining time from the server-recorded
// start, emits a time-update and fires each warning threshold at most once.
// Client-supplied clock values never enter this computation.
func (r *SessionRegistry) Heartbeat(studentID, testID uint) (dto.SessionEvent, error) {
	key := sessionKey{studentID: studentID, testID: testID}

	r.mu.Lock()
	session, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return dto.SessionEvent{}, ErrSessionNotFound
	}

	elapsed := r.now().Sub(session.startedAt)
	remaining := session.duration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	var warning string
	switch {
	case remaining <= warnOneMinute && !session.warnedOne:
		session.warnedOne = true
		warning = dto.SessionWarningOneMinute
	case remaining <= warnFiveMinutes && !session.warnedFive:
		session.warnedFive = true
		warning = dto.SessionWarningFiveMinutes
	}
	r.mu.Unlock()

	remainingSeconds := int(remaining.Seconds())
	update := dto.SessionEvent{
		Type:             dto.SessionEventTimeUpdate,
		TestID:           testID,
		ElapsedSeconds:   int(elapsed.Seconds()),
		RemainingSeconds: &remainingSeconds,
	}
	r.hub.emit(key, update)

	if warning != "" {
		r.hub.emit(key, dto.SessionEvent{
			Type:             dto.SessionEventTimeWarning,
			TestID:           testID,
			Level:            warning,
			RemainingSeconds: &remainingSeconds,
		})
	}

	return update, nil
}

// RecordAutoSave retains the latest advisory answer state for use by the
// auto-submit path. Nothing is persisted here.
func (r *SessionRegistry) RecordAutoSave(studentID, testID uint, answers []dto.SubmittedAnswer, timeSpentSeconds int) error {
	key := sessionKey{studentID: studentID, testID: testID}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}

	session.lastAnswers = answers
	session.lastSpent = timeSpentSeconds
	return nil
}

// Snapshot returns a started-shaped event describing the running session, used
// to resynchronise a reconnecting client.
func (r *SessionRegistry) Snapshot(studentID, testID uint) (dto.SessionEvent, error) {
	key := sessionKey{studentID: studentID, testID: testID}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[key]
	if !ok {
		return dto.SessionEvent{}, ErrSessionNotFound
	}

	return startedEvent(session), nil
}

// Terminate cancels both scheduled callbacks, removes the session and emits
// the terminal event for the given reason.
func (r *SessionRegistry) Terminate(studentID, testID uint, reason TerminateReason) error {
	key := sessionKey{studentID: studentID, testID: testID}

	r.mu.Lock()
	session, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, key)
	r.mu.Unlock()

	r.stopTimers(session)
	observability.SessionsActive().Dec()

	eventType := dto.SessionEventSubmitted
	if reason == TerminateExpired {
		eventType = dto.SessionEventAutoSubmitted
	}
	submittedAt := r.now()
	r.hub.emit(key, dto.SessionEvent{
		Type:        eventType,
		TestID:      testID,
		Reason:      string(reason),
		SubmittedAt: &submittedAt,
	})

	r.logger.Info().
		Uint("student_id", studentID).
		Uint("test_id", testID).
		Str("reason", string(reason)).
		Msg("session terminated")

	return nil
}

// Active reports the number of live sessions.
func (r *SessionRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Running reports whether a session is live for the given attempt.
func (r *SessionRegistry) Running(studentID, testID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionKey{studentID: studentID, testID: testID}]
	return ok
}

// Shutdown cancels every pending timer. Live attempts are lost; this is the
// accepted restart semantics, not a durable scheduler.
func (r *SessionRegistry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*examSession, 0, len(r.sessions))
	for key, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		r.stopTimers(session)
		observability.SessionsActive().Dec()
	}

	r.logger.Info().Int("cancelled", len(sessions)).Msg("session registry shut down")
}

// expire runs when a session's deadline fires. The coordinator re-validates
// and persists; Terminate afterwards is a fallback in case finalisation
// failed and left the session behind.
func (r *SessionRegistry) expire(key sessionKey) {
	r.mu.Lock()
	session, ok := r.sessions[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	answers := session.lastAnswers
	timeSpent := session.lastSpent
	if timeSpent <= 0 {
		timeSpent = int(session.duration.Seconds())
	}
	r.mu.Unlock()

	r.logger.Info().
		Uint("student_id", key.studentID).
		Uint("test_id", key.testID).
		Msg("session timer expired, auto-submitting")

	if r.autoSubmit != nil {
		r.autoSubmit(key.studentID, key.testID, answers, timeSpent)
	}

	_ = r.Terminate(key.studentID, key.testID, TerminateExpired)
}

func (r *SessionRegistry) autoSaveLoop(session *examSession) {
	for {
		select {
		case <-session.saveTicker.C:
			r.hub.emit(session.key, dto.SessionEvent{
				Type:   dto.SessionEventAutoSaveTrigger,
				TestID: session.key.testID,
			})
		case <-session.tickerDone:
			return
		}
	}
}

func (r *SessionRegistry) stopTimers(session *examSession) {
	session.deadline.Stop()
	session.saveTicker.Stop()
	close(session.tickerDone)
}

func startedEvent(session *examSession) dto.SessionEvent {
	startedAt := session.startedAt
	return dto.SessionEvent{
		Type:            dto.SessionEventStarted,
		TestID:          session.key.testID,
		ServerStartTime: &startedAt,
		DurationMinutes: int(session.duration / time.Minute),
	}
}
