//go:build !darwin && !linux

package power

// DefaultBackend is used when no backend is configured.
const DefaultBackend = ScreenSaver
