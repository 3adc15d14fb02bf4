// Package proc starts and signals processes that must outlive the
// caffeine command which spawned them.
package proc

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrNoProcfs is returned by Cmdline when the platform exposes no /proc.
var ErrNoProcfs = errors.New("procfs not available")

// Runs reports whether pid is alive and was started from a binary named
// name. When the command line cannot be inspected, a live pid is trusted.
func Runs(pid int, name string) bool {
	if pid <= 0 || !Alive(pid) {
		return false
	}
	argv, err := Cmdline(pid)
	if errors.Is(err, ErrNoProcfs) {
		return true
	}
	if err != nil {
		return false
	}
	return matches(argv, name)
}

// matches compares name with argv[0] by basename. A script started
// through its #! line shows up as "interpreter [flags] /path/to/script",
// so the first non-flag argument also counts when it is an absolute path.
func matches(argv []string, name string) bool {
	if len(argv) == 0 {
		return false
	}
	base := filepath.Base(name)
	if filepath.Base(argv[0]) == base {
		return true
	}
	for _, arg := range argv[1:] {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return filepath.IsAbs(arg) && filepath.Base(arg) == base
	}
	return false
}

func splitCmdline(raw []byte) []string {
	s := strings.TrimRight(string(raw), "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00")
}
