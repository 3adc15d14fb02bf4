//go:build linux

package power

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scienceol/caffeine/internal/proc"
)

type fakeScreenSaver struct {
	mu         sync.Mutex
	cookie     uint32
	inhibitErr error
	released   []uint32
}

func (f *fakeScreenSaver) Inhibit(_ context.Context, app, reason string) (uint32, error) {
	if f.inhibitErr != nil {
		return 0, f.inhibitErr
	}
	return f.cookie, nil
}

func (f *fakeScreenSaver) UnInhibit(_ context.Context, cookie uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, cookie)
	return nil
}

func (f *fakeScreenSaver) releasedCookies() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.released...)
}

func TestParseHoldReply(t *testing.T) {
	cookie, err := parseHoldReply("cookie 1234\n")
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), cookie)

	_, err = parseHoldReply("error org.freedesktop.DBus.Error.ServiceUnknown\n")
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = parseHoldReply("cookie -1\n")
	assert.ErrorIs(t, err, ErrBackendProtocol)

	_, err = parseHoldReply("hello\n")
	assert.ErrorIs(t, err, ErrBackendProtocol)
}

func TestHoldRejectsOverlongDuration(t *testing.T) {
	svc := &fakeScreenSaver{cookie: 5}
	var out bytes.Buffer

	err := Hold(context.Background(), svc, &out, "caffeine", "testing", seconds(MaxSeconds+1))
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "error "))
	assert.Empty(t, svc.releasedCookies())
}

func TestHoldUntilCancelled(t *testing.T) {
	svc := &fakeScreenSaver{cookie: 77}
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Hold(ctx, svc, &out, "caffeine", "testing", nil) }()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, svc.releasedCookies())
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Hold did not return after cancel")
	}
	assert.Equal(t, "cookie 77\n", out.String())
	assert.Equal(t, []uint32{77}, svc.releasedCookies())
}

func TestHoldExpires(t *testing.T) {
	svc := &fakeScreenSaver{cookie: 5}
	var out bytes.Buffer

	require.NoError(t, Hold(context.Background(), svc, &out, "caffeine", "testing", seconds(0)))
	assert.Equal(t, []uint32{5}, svc.releasedCookies())
}

func TestHoldInhibitFails(t *testing.T) {
	svc := &fakeScreenSaver{inhibitErr: errors.New("no screensaver\nservice")}
	var out bytes.Buffer

	err := Hold(context.Background(), svc, &out, "caffeine", "testing", nil)
	require.Error(t, err)
	assert.Equal(t, "error no screensaver service\n", out.String())
	assert.Empty(t, svc.releasedCookies())
}

func newFakeHolder(t *testing.T, body string) *screenSaverBackend {
	t.Helper()
	b, err := New(Options{Backend: ScreenSaver, Executable: writeScript(t, "fake-caffeine", body)})
	require.NoError(t, err)
	return b.(*screenSaverBackend)
}

func TestScreenSaverAcquireRelease(t *testing.T) {
	b := newFakeHolder(t, "echo 'cookie 42'; sleep 30")
	ctx := context.Background()

	h, err := b.Acquire(ctx, seconds(600))
	require.NoError(t, err)
	assert.Equal(t, KindCookie, h.Kind)
	assert.Equal(t, uint32(42), h.Cookie)
	assert.True(t, proc.Alive(h.PID))

	require.NoError(t, b.Release(ctx, h))
	require.Eventually(t, func() bool { return !proc.Alive(h.PID) }, 5*time.Second, 20*time.Millisecond)
	assert.ErrorIs(t, b.Release(ctx, h), ErrHandleNotFound)
}

func TestScreenSaverAcquireBadReply(t *testing.T) {
	b := newFakeHolder(t, "echo 'who are you'; sleep 30")
	_, err := b.Acquire(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBackendProtocol)

	b = newFakeHolder(t, "echo 'error no session bus'; exit 1")
	_, err = b.Acquire(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	b = newFakeHolder(t, "exit 1")
	_, err = b.Acquire(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestScreenSaverAcquireTimeout(t *testing.T) {
	b := newFakeHolder(t, "sleep 30")
	b.timeout = 100 * time.Millisecond

	_, err := b.Acquire(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
