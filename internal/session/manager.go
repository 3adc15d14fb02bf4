package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scienceol/caffeine/internal/power"
)

// Scheduler arranges for a timed session to be expired once its duration
// has passed, typically from a process that outlives the caller.
type Scheduler interface {
	Schedule(ctx context.Context, s Session) error
}

// Manager enforces the single-session rule on top of a Store and drives
// the inhibitor Backend.
type Manager struct {
	store     Store
	backend   power.Backend
	scheduler Scheduler
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithScheduler sets who expires timed sessions. Without one, timed
// sessions are only ended by the inhibitor itself running out.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for recoverable problems.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager returns a Manager over store and backend.
func NewManager(store Store, backend power.Backend, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		backend: backend,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a new session lasting duration seconds, or until Stop
// when duration is nil. It fails with ErrConflictingSession, without
// touching the backend, if a session already exists.
func (m *Manager) Start(ctx context.Context, duration *uint64) (*Session, error) {
	if duration != nil && *duration > MaxSeconds {
		return nil, fmt.Errorf("%w: %ds, at most %ds", ErrDurationTooLong, *duration, MaxSeconds)
	}
	unlock, err := m.store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if cur := m.store.Load(); cur != nil {
		return nil, ErrConflictingSession
	}

	h, err := m.backend.Acquire(ctx, duration)
	if err != nil {
		return nil, fmt.Errorf("acquire inhibitor: %w", err)
	}

	sess := Session{
		ID:        m.newID(),
		Handle:    h,
		StartTime: uint64(m.now().Unix()),
	}
	if duration != nil {
		sess.Duration = Seconds(*duration)
	}

	if err := m.store.Save(sess); err != nil {
		m.release(ctx, h)
		return nil, err
	}
	m.log.Debug("session started", "id", sess.ID, "handle", h.String(), "bounded", sess.Bounded())

	if !sess.Bounded() {
		return &sess, nil
	}
	if m.scheduler == nil {
		m.log.Warn("no expiry watcher configured; relying on the inhibitor to expire", "id", sess.ID)
		return &sess, nil
	}
	if err := m.scheduler.Schedule(ctx, sess); err != nil {
		m.release(ctx, h)
		if cerr := m.store.Clear(); cerr != nil {
			m.log.Error("could not clear session after failed schedule", "id", sess.ID, "err", cerr)
		}
		return nil, fmt.Errorf("%w: %w", ErrWatcherUnavailable, err)
	}
	return &sess, nil
}

// Stop ends the current session. Releasing the inhibitor is best effort:
// the record is cleared even when the backend cannot find or stop it.
func (m *Manager) Stop(ctx context.Context) error {
	unlock, err := m.store.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	cur := m.store.Load()
	if cur == nil {
		return ErrNoActiveSession
	}
	m.release(ctx, cur.Handle)
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.log.Debug("session stopped", "id", cur.ID)
	return nil
}

// Expire ends expected if, and only if, it is still the stored session.
// It reports whether anything was done. A racing Stop or a newer session
// makes it a no-op.
func (m *Manager) Expire(ctx context.Context, expected Session) (bool, error) {
	unlock, err := m.store.Lock()
	if err != nil {
		return false, err
	}
	defer unlock()

	cur := m.store.Load()
	if cur == nil || !cur.Matches(expected) {
		m.log.Info("session already ended", "id", expected.ID)
		return false, nil
	}
	m.release(ctx, cur.Handle)
	if err := m.store.Clear(); err != nil {
		return false, err
	}
	m.log.Info("session expired", "id", cur.ID)
	return true, nil
}

// Status reads the current session. It never fails; ok is false when no
// session is active.
func (m *Manager) Status() (v View, ok bool) {
	sess := m.store.Load()
	if sess == nil {
		return View{}, false
	}
	return viewAt(*sess, m.now()), true
}

func viewAt(sess Session, now time.Time) View {
	nowSec := now.Unix()
	v := View{
		Session: sess,
		Elapsed: clampSeconds(nowSec - int64(sess.StartTime)),
	}
	if sess.Duration != nil {
		d := min(*sess.Duration, MaxSeconds)
		end := int64(sess.StartTime) + int64(d)
		v.Total = clampSeconds(int64(d))
		// A clock set back before StartTime must not stretch the session.
		v.Remaining = min(clampSeconds(end-nowSec), v.Total)
	}
	return v
}

func clampSeconds(n int64) time.Duration {
	if n < 0 {
		return 0
	}
	if n > int64(MaxSeconds) {
		n = int64(MaxSeconds)
	}
	return time.Duration(n) * time.Second
}

func (m *Manager) release(ctx context.Context, h power.Handle) {
	err := m.backend.Release(ctx, h)
	switch {
	case err == nil:
	case errors.Is(err, power.ErrHandleNotFound):
		m.log.Info("inhibitor already gone", "handle", h.String(), "err", err)
	default:
		m.log.Warn("could not release inhibitor", "handle", h.String(), "err", err)
	}
}
