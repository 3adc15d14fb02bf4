package power

import (
	"fmt"
	"strconv"
	"strings"
)

// HandleKind tells how a Handle was obtained.
type HandleKind string

const (
	KindProcess HandleKind = "process"
	KindCookie  HandleKind = "cookie"
)

// Handle identifies an acquired inhibitor.
//
// For KindProcess, PID is the inhibitor process itself. For KindCookie,
// Cookie is the value returned by the ScreenSaver service and PID is the
// holder process owning the bus connection the cookie belongs to.
type Handle struct {
	Kind   HandleKind
	PID    int
	Cookie uint32
}

// String encodes h as "process:<pid>" or "cookie:<cookie>@<pid>".
// ParseHandle reverses it.
func (h Handle) String() string {
	if h.Kind == KindCookie {
		return fmt.Sprintf("cookie:%d@%d", h.Cookie, h.PID)
	}
	return fmt.Sprintf("process:%d", h.PID)
}

// ParseHandle decodes the output of Handle.String.
func ParseHandle(s string) (Handle, error) {
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return Handle{}, fmt.Errorf("invalid handle %q", s)
	}
	switch HandleKind(kind) {
	case KindProcess:
		pid, err := strconv.Atoi(value)
		if err != nil || pid <= 0 {
			return Handle{}, fmt.Errorf("invalid process handle %q", s)
		}
		return Handle{Kind: KindProcess, PID: pid}, nil
	case KindCookie:
		c, p, ok := strings.Cut(value, "@")
		if !ok {
			return Handle{}, fmt.Errorf("invalid cookie handle %q", s)
		}
		cookie, err := strconv.ParseUint(c, 10, 32)
		if err != nil {
			return Handle{}, fmt.Errorf("invalid cookie handle %q", s)
		}
		pid, err := strconv.Atoi(p)
		if err != nil || pid <= 0 {
			return Handle{}, fmt.Errorf("invalid cookie handle %q", s)
		}
		return Handle{Kind: KindCookie, PID: pid, Cookie: uint32(cookie)}, nil
	}
	return Handle{}, fmt.Errorf("unknown handle kind %q", kind)
}
