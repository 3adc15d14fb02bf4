package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/scienceol/caffeine/internal/logging"
	"github.com/scienceol/caffeine/internal/power"
	"github.com/scienceol/caffeine/internal/session"
	"github.com/scienceol/caffeine/internal/watcher"
)

// newManager wires the session manager for an interactive command.
// Timed sessions are expired by a detached watcher process.
func newManager() (*session.Manager, error) {
	backend, err := power.New(cfg.PowerOptions())
	if err != nil {
		return nil, err
	}
	return session.NewManager(
		session.NewFileStore(cfg.StateFile),
		backend,
		session.WithScheduler(&watcher.Spawner{Args: cfg.HelperArgs()}),
		session.WithLogger(logging.Console(os.Stderr, cfg.Verbose)),
	), nil
}

// describe turns an error from the session layer into the line shown to
// the user.
func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrConflictingSession):
		return "☕ Caffeine is already enabled. Run 'caffeine disable' first"
	case errors.Is(err, session.ErrNoActiveSession):
		return "😴 Caffeine is not enabled"
	case errors.Is(err, power.ErrBackendUnavailable):
		return fmt.Sprintf("Could not keep the machine awake: %v", err)
	case errors.Is(err, power.ErrBackendProtocol):
		return fmt.Sprintf("Unexpected answer from the inhibitor: %v", err)
	case errors.Is(err, session.ErrWatcherUnavailable):
		return fmt.Sprintf("Could not schedule the end of the session: %v", err)
	case errors.Is(err, session.ErrPersistence):
		return fmt.Sprintf("Could not record the session: %v", err)
	}
	return err.Error()
}

// helperLogger opens the log file of a detached helper. Helpers run
// without a terminal, so when the file cannot be opened they carry on
// without logs.
func helperLogger(component string) *slog.Logger {
	log, _, err := logging.File(cfg.LogFile, cfg.Verbose, "component", component)
	if err != nil {
		return logging.Discard()
	}
	return log
}
