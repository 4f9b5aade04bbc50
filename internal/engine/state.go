package engine

import "time"

// sessionState is the in-memory runtime state for one monitored session
// (§3, §4.E). It is created in startMonitoring and destroyed in
// stopMonitoring, and is accessed only by that session's own poll cycle —
// single-writer, no internal locking needed (§5).
type sessionState struct {
	startedAt time.Time

	lastOutput           string
	lastOutputChangeTime time.Time

	limitDetectedAt             time.Time
	awaitingContinuation        bool
	immediateContinueAttempted  bool
	lastContinuationTime        time.Time
	scheduledResetTime          time.Time

	quotaCommandSent bool

	lastTaskCompletionNotification time.Time

	lastApprovalQuestion string

	retryCount int
}

func newSessionState(startedAt time.Time) *sessionState {
	return &sessionState{startedAt: startedAt}
}
