//go:build darwin

package power

// DefaultBackend is used when no backend is configured.
const DefaultBackend = Caffeinate
