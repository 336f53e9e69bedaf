package shopauth

import "time"

// LockoutPolicy defines how many consecutive failures trigger a lock and
// for how long. Two instances of the same policy shape guard the account:
// login attempts (5 failures, 2h) and OTP attempts (3 failures, 15m).
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockoutState is an immutable snapshot of one lockout counter. Transitions
// are pure functions returning the next snapshot; callers persist the result.
type LockoutState struct {
	Attempts    int
	LockedUntil *time.Time
}

// Locked reports whether the lock timestamp is set and still in the future.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// RecordFailure returns the state after one more failed attempt.
//
// A previously set lock that has already expired restarts the counter at 1
// and clears the lock. Otherwise the counter increments, and crossing the
// threshold while not locked sets the lock to now+Duration. An active lock
// timestamp is never extended by further failures.
func (p LockoutPolicy) RecordFailure(s LockoutState, now time.Time) LockoutState {
	if s.LockedUntil != nil && !s.LockedUntil.After(now) {
		return LockoutState{Attempts: 1}
	}

	next := LockoutState{Attempts: s.Attempts + 1, LockedUntil: s.LockedUntil}
	if next.Attempts >= p.Threshold && !s.Locked(now) {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
	}
	return next
}

// RecordSuccess clears the counter and any lock, regardless of prior state.
func (p LockoutPolicy) RecordSuccess(s LockoutState) LockoutState {
	return LockoutState{}
}
