// Package session owns the lifecycle of the single caffeine session: the
// record persisted on disk, and the Manager that acquires and releases
// the inhibitor behind it.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/scienceol/caffeine/internal/power"
)

var (
	// ErrConflictingSession is returned by Start while a session exists.
	ErrConflictingSession = errors.New("a session already exists")

	// ErrNoActiveSession is returned by Stop when there is nothing to stop.
	ErrNoActiveSession = errors.New("no active session")

	// ErrPersistence wraps failures to write or delete the state record.
	ErrPersistence = errors.New("session state could not be persisted")

	// ErrWatcherUnavailable is returned by Start when a timed session
	// could not be handed to the expiry watcher.
	ErrWatcherUnavailable = errors.New("expiry watcher could not be started")

	// ErrDurationTooLong is returned for session lengths above MaxSeconds.
	ErrDurationTooLong = errors.New("session length is too long")
)

// Session is the record of the one active inhibition.
type Session struct {
	ID        string
	Handle    power.Handle
	StartTime uint64  // epoch seconds
	Duration  *uint64 // seconds; nil means unbounded
}

// Bounded reports whether the session expires on its own.
func (s Session) Bounded() bool {
	return s.Duration != nil
}

// Started returns StartTime as a time.Time.
func (s Session) Started() time.Time {
	return time.Unix(int64(s.StartTime), 0)
}

// Deadline returns when a bounded session expires.
func (s Session) Deadline() (time.Time, bool) {
	if s.Duration == nil {
		return time.Time{}, false
	}
	return time.Unix(int64(s.StartTime)+int64(min(*s.Duration, MaxSeconds)), 0), true
}

// Matches reports whether o describes the same inhibitor as s.
func (s Session) Matches(o Session) bool {
	return s.ID == o.ID && s.Handle == o.Handle
}

// MaxSeconds is the longest session length accepted by Start.
const MaxSeconds = power.MaxSeconds

// Seconds returns a pointer to n, for use as a session duration.
func Seconds(n uint64) *uint64 {
	return &n
}

// View is a point-in-time reading of a session.
type View struct {
	Session Session
	Elapsed time.Duration

	// Remaining and Total are only meaningful when Session.Bounded().
	Remaining time.Duration
	Total     time.Duration
}

// FormatClock renders d as "HHh MMm SSs", truncated to whole seconds.
// Hours keep counting past 24 and negative values print as zero.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02dh %02dm %02ds", secs/3600, secs/60%60, secs%60)
}
