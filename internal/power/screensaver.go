package power

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/scienceol/caffeine/internal/proc"
)

// HoldCommand is the hidden subcommand that runs Hold in a detached
// process.
const HoldCommand = "__hold"

const (
	screenSaverDest  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = "/org/freedesktop/ScreenSaver"
	screenSaverIface = "org.freedesktop.ScreenSaver"

	holdReplyTimeout = 5 * time.Second
	unInhibitTimeout = 5 * time.Second
)

// screenSaverBackend inhibits through org.freedesktop.ScreenSaver.
//
// The service drops an inhibition as soon as the bus connection that
// requested it goes away, so the call cannot be made from the short-lived
// CLI. Instead a detached copy of this program (HoldCommand) owns the
// connection, reports the cookie, and lifts the inhibition when it is
// terminated.
type screenSaverBackend struct {
	exe     string
	args    []string
	app     string
	reason  string
	timeout time.Duration
}

func newScreenSaver(opts Options) (Backend, error) {
	exe := opts.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("%w: locate executable: %v", ErrBackendUnavailable, err)
		}
	}
	return &screenSaverBackend{
		exe:     exe,
		args:    opts.HelperArgs,
		app:     opts.Who,
		reason:  opts.Why,
		timeout: holdReplyTimeout,
	}, nil
}

type holdReply struct {
	line string
	err  error
}

func (s *screenSaverBackend) Acquire(ctx context.Context, duration *uint64) (Handle, error) {
	args := append([]string{HoldCommand}, s.args...)
	args = append(args, "--app", s.app, "--reason", s.reason)
	if duration != nil {
		args = append(args, "--duration", strconv.FormatUint(*duration, 10))
	}

	cmd := exec.Command(s.exe, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := proc.StartDetached(cmd); err != nil {
		return Handle{}, fmt.Errorf("%w: failed to start holder: %v", ErrBackendUnavailable, err)
	}
	pid := cmd.Process.Pid

	replies := make(chan holdReply, 1)
	go func() {
		line, err := bufio.NewReader(stdout).ReadString('\n')
		replies <- holdReply{line: line, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var reply holdReply
	select {
	case reply = <-replies:
	case <-timer.C:
		_ = proc.Terminate(pid)
		return Handle{}, fmt.Errorf("%w: holder did not report a cookie within %s", ErrBackendUnavailable, s.timeout)
	case <-ctx.Done():
		_ = proc.Terminate(pid)
		return Handle{}, ctx.Err()
	}
	_ = stdout.Close()
	go cmd.Wait()

	if reply.err != nil && reply.line == "" {
		return Handle{}, fmt.Errorf("%w: holder exited without reply: %v", ErrBackendUnavailable, reply.err)
	}
	cookie, err := parseHoldReply(reply.line)
	if err != nil {
		_ = proc.Terminate(pid)
		return Handle{}, err
	}
	return Handle{Kind: KindCookie, PID: pid, Cookie: cookie}, nil
}

// Release terminates the holder, which issues UnInhibit with the cookie
// on its own connection before exiting.
func (s *screenSaverBackend) Release(_ context.Context, h Handle) error {
	if h.Kind != KindCookie {
		return fmt.Errorf("%w: screensaver cannot release %s", ErrHandleNotFound, h)
	}
	return terminate(h.PID, s.exe)
}

// parseHoldReply decodes the single line a holder writes on stdout:
// "cookie <n>" on success or "error <message>" on failure.
func parseHoldReply(line string) (uint32, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch verb {
	case "cookie":
		n, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: bad cookie %q", ErrBackendProtocol, rest)
		}
		return uint32(n), nil
	case "error":
		return 0, fmt.Errorf("%w: %s", ErrBackendUnavailable, rest)
	}
	return 0, fmt.Errorf("%w: unexpected holder reply %q", ErrBackendProtocol, line)
}

// ScreenSaverService is the part of org.freedesktop.ScreenSaver that Hold
// needs.
type ScreenSaverService interface {
	Inhibit(ctx context.Context, app, reason string) (uint32, error)
	UnInhibit(ctx context.Context, cookie uint32) error
}

// BusScreenSaver talks to the ScreenSaver service on the session bus.
type BusScreenSaver struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// ConnectScreenSaver opens a private session bus connection.
func ConnectScreenSaver() (*BusScreenSaver, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect session bus: %v", ErrBackendUnavailable, err)
	}
	return &BusScreenSaver{
		conn: conn,
		obj:  conn.Object(screenSaverDest, dbus.ObjectPath(screenSaverPath)),
	}, nil
}

func (b *BusScreenSaver) Inhibit(ctx context.Context, app, reason string) (uint32, error) {
	call := b.obj.CallWithContext(ctx, screenSaverIface+".Inhibit", 0, app, reason)
	if call.Err != nil {
		return 0, fmt.Errorf("%w: Inhibit: %v", ErrBackendUnavailable, call.Err)
	}
	var cookie uint32
	if err := call.Store(&cookie); err != nil {
		return 0, fmt.Errorf("%w: Inhibit reply: %v", ErrBackendProtocol, err)
	}
	return cookie, nil
}

func (b *BusScreenSaver) UnInhibit(ctx context.Context, cookie uint32) error {
	return b.obj.CallWithContext(ctx, screenSaverIface+".UnInhibit", 0, cookie).Err
}

// Close drops the bus connection and with it any inhibition still held.
func (b *BusScreenSaver) Close() error {
	return b.conn.Close()
}

// Hold inhibits through svc, reports the cookie on w and keeps the
// inhibition until ctx is done or duration seconds have passed. The
// inhibition is lifted before Hold returns.
func Hold(ctx context.Context, svc ScreenSaverService, w io.Writer, app, reason string, duration *uint64) error {
	if duration != nil && *duration > MaxSeconds {
		err := fmt.Errorf("duration %ds exceeds %ds", *duration, MaxSeconds)
		fmt.Fprintf(w, "error %s\n", err)
		return err
	}
	cookie, err := svc.Inhibit(ctx, app, reason)
	if err != nil {
		fmt.Fprintf(w, "error %s\n", strings.ReplaceAll(err.Error(), "\n", " "))
		return err
	}
	if _, err := fmt.Fprintf(w, "cookie %d\n", cookie); err != nil {
		_ = unInhibit(svc, cookie)
		return fmt.Errorf("report cookie: %w", err)
	}

	var expired <-chan time.Time
	if duration != nil {
		t := time.NewTimer(time.Duration(*duration) * time.Second)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-ctx.Done():
	case <-expired:
	}
	return unInhibit(svc, cookie)
}

func unInhibit(svc ScreenSaverService, cookie uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), unInhibitTimeout)
	defer cancel()
	if err := svc.UnInhibit(ctx, cookie); err != nil {
		return fmt.Errorf("UnInhibit %d: %w", cookie, err)
	}
	return nil
}
