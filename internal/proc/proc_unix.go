//go:build unix

package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// StartDetached starts cmd as the leader of a new session so that it keeps
// running after the caller exits and never receives the terminal's
// SIGHUP. Unset stdio streams are attached to /dev/null by os/exec.
//
// The caller owns cmd afterwards and should Wait on it (usually in a
// goroutine) if it stays alive long enough to reap the child.
func StartDetached(cmd *exec.Cmd) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	if err := cmd.Start(); err != nil {
		return err
	}
	return nil
}

// Terminate sends SIGTERM to the process group led by pid, falling back
// to the single process. os.ErrProcessDone is returned when nothing with
// that pid exists anymore.
func Terminate(pid int) error {
	if pid <= 0 {
		return os.ErrProcessDone
	}
	err := unix.Kill(-pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, unix.SIGTERM)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return os.ErrProcessDone
	default:
		return fmt.Errorf("signal %d: %w", pid, err)
	}
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Cmdline returns the argv of pid as recorded by procfs.
func Cmdline(pid int) ([]string, error) {
	if _, err := os.Stat("/proc/self"); err != nil {
		return nil, ErrNoProcfs
	}
	raw, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/cmdline")
	if err != nil {
		return nil, err
	}
	return splitCmdline(raw), nil
}
