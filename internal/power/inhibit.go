// Package power keeps the machine awake by holding an OS-level idle
// inhibitor. Exactly one mechanism is used per deployment; it is picked
// once by New from configuration and never switched per call.
package power

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxSeconds is the longest inhibition, in seconds, that fits in a
// time.Duration.
const MaxSeconds = uint64(math.MaxInt64 / int64(time.Second))

// Backend names accepted by New.
const (
	SystemdInhibit = "systemd-inhibit"
	Caffeinate     = "caffeinate"
	ScreenSaver    = "screensaver"
)

var (
	// ErrBackendUnavailable means the inhibition mechanism could not be
	// invoked: binary or bus missing, permission denied, or the inhibitor
	// died right after starting.
	ErrBackendUnavailable = errors.New("inhibitor backend unavailable")

	// ErrBackendProtocol means the mechanism answered with something that
	// could not be turned into a Handle.
	ErrBackendProtocol = errors.New("unexpected reply from inhibitor backend")

	// ErrHandleNotFound means the inhibitor to release is already gone.
	// It is safe to ignore.
	ErrHandleNotFound = errors.New("inhibitor not found")
)

// Backend acquires and releases idle inhibitors.
type Backend interface {
	// Acquire asks the OS to stay awake. A nil duration holds the
	// inhibitor until Release; otherwise it lasts at least that many
	// seconds.
	Acquire(ctx context.Context, duration *uint64) (Handle, error)

	// Release lifts the inhibitor identified by h. Releasing something
	// that no longer exists yields ErrHandleNotFound.
	Release(ctx context.Context, h Handle) error
}

// Options configures the backend returned by New.
type Options struct {
	Backend string // one of the backend names; empty picks DefaultBackend
	What    string // what to inhibit, systemd-inhibit syntax ("idle", "idle:sleep")
	Who     string // application name shown by the OS
	Why     string // reason shown by the OS

	// Command overrides the binary of process-based backends.
	Command string

	// Executable and HelperArgs describe how to re-run this program as the
	// screensaver holder. Executable defaults to os.Executable().
	Executable string
	HelperArgs []string

	// Settle is how long a freshly spawned inhibitor must survive before
	// Acquire trusts it.
	Settle time.Duration
}

const defaultSettle = 150 * time.Millisecond

// New returns the backend selected by opts.Backend.
func New(opts Options) (Backend, error) {
	if opts.What == "" {
		opts.What = "idle"
	}
	if opts.Who == "" {
		opts.Who = "caffeine"
	}
	if opts.Why == "" {
		opts.Why = "Caffeine session active"
	}
	if opts.Settle == 0 {
		opts.Settle = defaultSettle
	}

	name := opts.Backend
	if name == "" {
		name = DefaultBackend
	}
	switch name {
	case SystemdInhibit:
		return newSystemdInhibit(opts)
	case Caffeinate:
		return newCaffeinate(opts)
	case ScreenSaver:
		return newScreenSaver(opts)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, name)
}
