// Package watcher expires timed sessions once their duration has passed.
//
// The wait can span hours while the command that started the session has
// long returned, so in production Spawner re-runs this binary as a
// detached process (Command) that calls Run. InProcess does the same on a
// goroutine for tests and long-lived hosts.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/scienceol/caffeine/internal/power"
	"github.com/scienceol/caffeine/internal/proc"
	"github.com/scienceol/caffeine/internal/session"
)

// Command is the hidden subcommand that hosts a detached watcher.
const Command = "__watch"

// pollInterval caps each sleep so that time spent suspended, which the
// monotonic clock does not see, is noticed against the wall clock.
const pollInterval = 30 * time.Second

// Expirer ends a session if it is still the current one.
// session.Manager implements it.
type Expirer interface {
	Expire(ctx context.Context, s session.Session) (bool, error)
}

// Run blocks until the wall-clock deadline of s and then expires it. It
// reports whether s was still current and got ended.
func Run(ctx context.Context, s session.Session, e Expirer) (bool, error) {
	deadline, ok := s.Deadline()
	if !ok {
		return false, errors.New("session has no duration")
	}

	for {
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			break
		}
		t := time.NewTimer(min(remaining, pollInterval))
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
	return e.Expire(ctx, s)
}

// ParseJob rebuilds the session a watcher was spawned for from its
// command-line arguments.
func ParseJob(id, handle string, start, duration uint64) (session.Session, error) {
	if duration > session.MaxSeconds {
		return session.Session{}, fmt.Errorf("%w: %ds", session.ErrDurationTooLong, duration)
	}
	h, err := power.ParseHandle(handle)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{
		ID:        id,
		Handle:    h,
		StartTime: start,
		Duration:  session.Seconds(duration),
	}, nil
}

// Spawner schedules expiry in a detached copy of this program.
type Spawner struct {
	// Executable defaults to os.Executable().
	Executable string
	// Args are passed to the child before the job flags, typically the
	// resolved configuration so the child talks to the same store and
	// backend.
	Args []string
}

func (s *Spawner) Schedule(_ context.Context, sess session.Session) error {
	if sess.Duration == nil {
		return errors.New("session has no duration")
	}
	exe := s.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
	}

	args := append([]string{Command}, s.Args...)
	args = append(args,
		"--session-id", sess.ID,
		"--handle", sess.Handle.String(),
		"--start", strconv.FormatUint(sess.StartTime, 10),
		"--duration", strconv.FormatUint(*sess.Duration, 10),
	)
	cmd := exec.Command(exe, args...)
	if err := proc.StartDetached(cmd); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	go cmd.Wait()
	return nil
}

// InProcess schedules expiry on goroutines of the current process.
// Expirer must be set before the first Schedule.
type InProcess struct {
	Expirer Expirer
	Log     *slog.Logger

	wg sync.WaitGroup
}

func (p *InProcess) Schedule(_ context.Context, sess session.Session) error {
	if p.Expirer == nil {
		return errors.New("watcher has no expirer")
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Detached from the caller's context: the session outlives Start.
		done, err := Run(context.Background(), sess, p.Expirer)
		if p.Log == nil {
			return
		}
		if err != nil {
			p.Log.Error("session expiry failed", "id", sess.ID, "err", err)
			return
		}
		p.Log.Debug("session watcher finished", "id", sess.ID, "expired", done)
	}()
	return nil
}

// Wait blocks until every scheduled expiry has run.
func (p *InProcess) Wait() {
	p.wg.Wait()
}
