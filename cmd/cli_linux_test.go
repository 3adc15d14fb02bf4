//go:build linux

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scienceol/caffeine/internal/power"
	"github.com/scienceol/caffeine/internal/proc"
	"github.com/scienceol/caffeine/internal/session"
	"github.com/scienceol/caffeine/internal/ui"
	"github.com/scienceol/caffeine/internal/watcher"
)

type cliResult struct {
	stdout string
	ui     string
	err    error
}

// resetFlags puts every flag back to its default so runs do not leak
// into each other through the package-level commands.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cliEnv struct {
	run       func(args ...string) cliResult
	dir       string
	statePath string
	inhibit   string
}

func newCLI(t *testing.T) func(args ...string) cliResult {
	t.Helper()
	return newCLIEnv(t).run
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, nil, 0o644))
	inhibit := filepath.Join(dir, "fake-inhibit")
	require.NoError(t, os.WriteFile(inhibit, []byte("#!/bin/sh\nsleep 30\n"), 0o755))

	statePath := filepath.Join(dir, "session.json")
	base := []string{
		"--config", configFile,
		"--state-file", statePath,
		"--log-file", filepath.Join(dir, "caffeine.log"),
		"--backend", "systemd-inhibit",
		"--inhibit-command", inhibit,
	}

	run := func(args ...string) cliResult {
		var stdout, uiOut bytes.Buffer
		restore := ui.SetOutput(&uiOut)
		defer restore()

		resetFlags(rootCmd)
		rootCmd.SetOut(&stdout)
		rootCmd.SetErr(&stdout)
		rootCmd.SetArgs(append(append([]string(nil), base...), args...))
		err := rootCmd.Execute()
		return cliResult{stdout: stdout.String(), ui: uiOut.String(), err: err}
	}
	t.Cleanup(func() { run("disable") })
	return cliEnv{run: run, dir: dir, statePath: statePath, inhibit: inhibit}
}

func readStatus(t *testing.T, run func(args ...string) cliResult) statusReport {
	t.Helper()
	res := run("status", "--json")
	require.NoError(t, res.err)
	var r statusReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &r))
	return r
}

func TestEnableStatusDisable(t *testing.T) {
	run := newCLI(t)

	assert.False(t, readStatus(t, run).Active)

	res := run("enable")
	require.NoError(t, res.err)
	assert.Contains(t, res.ui, "☕ Caffeine enabled")

	st := readStatus(t, run)
	assert.True(t, st.Active)
	assert.Contains(t, st.Handle, "process:")
	assert.Nil(t, st.Remaining)

	res = run("status")
	require.NoError(t, res.err)
	assert.Contains(t, res.ui, "☕ Caffeine enabled for")

	res = run("enable")
	assert.ErrorIs(t, res.err, session.ErrConflictingSession)

	res = run("disable")
	require.NoError(t, res.err)
	assert.Contains(t, res.ui, "😴 Caffeine disabled")
	assert.False(t, readStatus(t, run).Active)
}

func TestDisableWhenAlreadyDisabled(t *testing.T) {
	run := newCLI(t)

	res := run("disable")
	require.NoError(t, res.err)
	assert.Contains(t, res.ui, "already disabled")
}

func TestEnableRejectsBadLength(t *testing.T) {
	run := newCLI(t)

	res := run("enable", "soon")
	assert.Error(t, res.err)
	assert.False(t, readStatus(t, run).Active)
}

func TestUnknownBackend(t *testing.T) {
	run := newCLI(t)

	res := run("--backend", "pigeon", "status")
	assert.ErrorContains(t, res.err, "unknown backend")
}

func TestVersion(t *testing.T) {
	run := newCLI(t)

	res := run("version")
	require.NoError(t, res.err)
	assert.Equal(t, "caffeine v"+version+"\n", res.stdout)
}

// startInhibitor runs the fake inhibitor the way the backend would and
// returns its pid and a channel closed when it exits.
func startInhibitor(t *testing.T, path string) (int, <-chan struct{}) {
	t.Helper()
	c := exec.Command(path)
	require.NoError(t, proc.StartDetached(c))
	exited := make(chan struct{})
	go func() {
		_ = c.Wait()
		close(exited)
	}()
	t.Cleanup(func() { _ = proc.Terminate(c.Process.Pid) })
	return c.Process.Pid, exited
}

func watchArgs(sess session.Session) []string {
	return []string{
		watcher.Command,
		"--session-id", sess.ID,
		"--handle", sess.Handle.String(),
		"--start", strconv.FormatUint(sess.StartTime, 10),
		"--duration", strconv.FormatUint(*sess.Duration, 10),
	}
}

func TestWatchExpiresOverdueSession(t *testing.T) {
	env := newCLIEnv(t)
	pid, exited := startInhibitor(t, env.inhibit)

	sess := session.Session{
		ID:        "overdue",
		Handle:    power.Handle{Kind: power.KindProcess, PID: pid},
		StartTime: uint64(time.Now().Add(-2 * time.Minute).Unix()),
		Duration:  session.Seconds(60),
	}
	store := session.NewFileStore(env.statePath)
	require.NoError(t, store.Save(sess))

	res := env.run(watchArgs(sess)...)
	require.NoError(t, res.err)
	assert.Nil(t, store.Load())
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("inhibitor still running after expiry")
	}

	logged, err := os.ReadFile(filepath.Join(env.dir, "caffeine.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "session expired")
}

func TestWatchLeavesNewerSessionAlone(t *testing.T) {
	env := newCLIEnv(t)
	pid, exited := startInhibitor(t, env.inhibit)

	current := session.Session{
		ID:        "current",
		Handle:    power.Handle{Kind: power.KindProcess, PID: pid},
		StartTime: uint64(time.Now().Add(-2 * time.Minute).Unix()),
		Duration:  session.Seconds(600),
	}
	store := session.NewFileStore(env.statePath)
	require.NoError(t, store.Save(current))

	older := current
	older.ID = "older"
	older.Duration = session.Seconds(60)
	res := env.run(watchArgs(older)...)
	require.NoError(t, res.err)

	got := store.Load()
	require.NotNil(t, got)
	assert.Equal(t, "current", got.ID)
	select {
	case <-exited:
		t.Fatal("inhibitor of the current session was released")
	default:
	}
}

func TestWatchExpiresWithoutLogFile(t *testing.T) {
	env := newCLIEnv(t)
	blocker := filepath.Join(env.dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	pid, _ := startInhibitor(t, env.inhibit)

	sess := session.Session{
		ID:        "overdue",
		Handle:    power.Handle{Kind: power.KindProcess, PID: pid},
		StartTime: uint64(time.Now().Add(-2 * time.Minute).Unix()),
		Duration:  session.Seconds(60),
	}
	store := session.NewFileStore(env.statePath)
	require.NoError(t, store.Save(sess))

	args := append([]string{"--log-file", filepath.Join(blocker, "caffeine.log")}, watchArgs(sess)...)
	res := env.run(args...)
	require.NoError(t, res.err)
	assert.Nil(t, store.Load())
}

func TestWatchRejectsOverlongDuration(t *testing.T) {
	env := newCLIEnv(t)

	sess := session.Session{
		ID:        "huge",
		Handle:    power.Handle{Kind: power.KindProcess, PID: 1},
		StartTime: uint64(time.Now().Unix()),
		Duration:  session.Seconds(session.MaxSeconds + 1),
	}
	res := env.run(watchArgs(sess)...)
	assert.ErrorIs(t, res.err, session.ErrDurationTooLong)
}

func TestHoldReportsMissingBus(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path="+filepath.Join(env.dir, "no-bus"))

	res := env.run(power.HoldCommand, "--app", "caffeine", "--reason", "testing")
	assert.ErrorIs(t, res.err, power.ErrBackendUnavailable)
	assert.True(t, strings.HasPrefix(res.stdout, "error "), res.stdout)
}
