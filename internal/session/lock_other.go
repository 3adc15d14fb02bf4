//go:build !unix

package session

// Lock is a no-op where flock is unavailable; Save's atomic rename is the
// only protection there.
func (s *FileStore) Lock() (func(), error) {
	return func() {}, nil
}
