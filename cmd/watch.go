package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scienceol/caffeine/internal/power"
	"github.com/scienceol/caffeine/internal/session"
	"github.com/scienceol/caffeine/internal/watcher"
)

var watchJob struct {
	id       string
	handle   string
	start    uint64
	duration uint64
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchJob.id, "session-id", "", "session to expire")
	f.StringVar(&watchJob.handle, "handle", "", "inhibitor handle of the session")
	f.Uint64Var(&watchJob.start, "start", 0, "session start, epoch seconds")
	f.Uint64Var(&watchJob.duration, "duration", 0, "session length in seconds")
	for _, name := range []string{"session-id", "handle", "start", "duration"} {
		_ = watchCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(watchCmd)
}

// watchCmd runs detached from the terminal and ends a timed session once
// it is due.
var watchCmd = &cobra.Command{
	Use:    watcher.Command,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := helperLogger("watcher")

		job, err := watcher.ParseJob(watchJob.id, watchJob.handle, watchJob.start, watchJob.duration)
		if err != nil {
			log.Error("bad watch job", "err", err)
			return err
		}
		backend, err := power.New(cfg.PowerOptions())
		if err != nil {
			log.Error("backend unavailable", "err", err)
			return err
		}
		m := session.NewManager(session.NewFileStore(cfg.StateFile), backend, session.WithLogger(log))

		signal.Ignore(syscall.SIGHUP)
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deadline, _ := job.Deadline()
		log.Info("watching session", "id", job.ID, "handle", job.Handle.String(), "deadline", deadline.Format(time.RFC3339))

		expired, err := watcher.Run(ctx, job, m)
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("watcher interrupted", "id", job.ID)
			return nil
		case err != nil:
			log.Error("could not expire session", "id", job.ID, "err", err)
			return err
		}
		log.Info("watcher done", "id", job.ID, "expired", expired)
		return nil
	},
}
