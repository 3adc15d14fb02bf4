//go:build linux

package power

// DefaultBackend is used when no backend is configured.
const DefaultBackend = SystemdInhibit
