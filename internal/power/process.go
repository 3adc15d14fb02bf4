package power

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/scienceol/caffeine/internal/proc"
)

// processBackend holds an inhibitor by keeping a child process alive.
// The child runs in its own session so it outlives the command that
// started it; releasing the inhibitor means terminating that process.
type processBackend struct {
	command string
	args    func(duration *uint64) []string
	settle  time.Duration
}

func newSystemdInhibit(opts Options) (Backend, error) {
	command := opts.Command
	if command == "" {
		command = "systemd-inhibit"
	}
	return &processBackend{
		command: command,
		settle:  opts.Settle,
		args: func(duration *uint64) []string {
			return []string{
				"--what=" + opts.What,
				"--who=" + opts.Who,
				"--why=" + opts.Why,
				"--mode=block",
				"sleep", sleepTarget(duration),
			}
		},
	}, nil
}

func newCaffeinate(opts Options) (Backend, error) {
	command := opts.Command
	if command == "" {
		command = "caffeinate"
	}
	flags := caffeinateFlags(opts.What)
	return &processBackend{
		command: command,
		settle:  opts.Settle,
		args: func(duration *uint64) []string {
			args := append([]string(nil), flags...)
			if duration != nil {
				args = append(args, "-t", strconv.FormatUint(*duration, 10))
			}
			return args
		},
	}, nil
}

// sleepTarget is the argument for sleep(1): a number of seconds, or
// "infinity" for an unbounded session.
func sleepTarget(duration *uint64) string {
	if duration == nil {
		return "infinity"
	}
	return strconv.FormatUint(*duration, 10)
}

// caffeinateFlags maps a systemd-inhibit style "what" list onto
// caffeinate assertions.
func caffeinateFlags(what string) []string {
	var flags []string
	for _, w := range strings.Split(what, ":") {
		switch w {
		case "idle":
			flags = append(flags, "-i")
		case "sleep":
			flags = append(flags, "-s")
		case "display":
			flags = append(flags, "-d")
		}
	}
	if len(flags) == 0 {
		flags = []string{"-i"}
	}
	return flags
}

func (p *processBackend) Acquire(ctx context.Context, duration *uint64) (Handle, error) {
	path, err := exec.LookPath(p.command)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %s not found: %v", ErrBackendUnavailable, p.command, err)
	}

	cmd := exec.Command(path, p.args(duration)...)
	if err := proc.StartDetached(cmd); err != nil {
		return Handle{}, fmt.Errorf("%w: failed to start %s: %v", ErrBackendUnavailable, p.command, err)
	}

	// Reap the child if we are still around when it exits.
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	timer := time.NewTimer(p.settle)
	defer timer.Stop()

	select {
	case err := <-exited:
		if err != nil {
			return Handle{}, fmt.Errorf("%w: %s exited: %v", ErrBackendUnavailable, p.command, err)
		}
		if duration == nil {
			return Handle{}, fmt.Errorf("%w: %s exited immediately", ErrBackendUnavailable, p.command)
		}
		// A zero-length session finishes on its own; that is fine.
	case <-ctx.Done():
		_ = proc.Terminate(cmd.Process.Pid)
		return Handle{}, ctx.Err()
	case <-timer.C:
	}

	return Handle{Kind: KindProcess, PID: cmd.Process.Pid}, nil
}

func (p *processBackend) Release(_ context.Context, h Handle) error {
	if h.Kind != KindProcess {
		return fmt.Errorf("%w: %s cannot release %s", ErrHandleNotFound, p.command, h)
	}
	return terminate(h.PID, p.command)
}

// terminate signals pid after checking it still runs the expected
// command, so a recycled pid is never killed.
func terminate(pid int, command string) error {
	if !proc.Runs(pid, command) {
		return fmt.Errorf("%w: pid %d is not a running %s", ErrHandleNotFound, pid, command)
	}
	if err := proc.Terminate(pid); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("%w: pid %d", ErrHandleNotFound, pid)
		}
		return fmt.Errorf("release pid %d: %w", pid, err)
	}
	return nil
}
