package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/scienceol/caffeine/internal/power"
)

// Store persists the current session, if any. It does not enforce the
// single-session rule; Manager does.
type Store interface {
	// Load returns the stored session, or nil when there is none or the
	// record cannot be read.
	Load() *Session
	Save(Session) error
	Clear() error
	// Lock serialises check-then-act sequences across processes.
	Lock() (unlock func(), err error)
}

// FileStore keeps the session as a JSON document at a fixed path.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the state file.
func (s *FileStore) Path() string {
	return s.path
}

// record is the on-disk shape. "handle" holds the pid or cookie as a
// number; older files wrote the pid as a string under "proccess_id" and
// the length under "session_length", both still accepted on load.
type record struct {
	ID         string           `json:"id,omitempty"`
	Handle     json.RawMessage  `json:"handle,omitempty"`
	HandleKind power.HandleKind `json:"handle_kind,omitempty"`
	HolderPID  int              `json:"holder_pid,omitempty"`
	StartTime  *uint64          `json:"start_time"`
	Duration   *uint64          `json:"duration"`

	LegacyPID    json.RawMessage `json:"proccess_id,omitempty"`
	LegacyLength *uint64         `json:"session_length,omitempty"`
}

// Load never fails: a missing, unreadable or malformed file all mean
// there is no session.
func (s *FileStore) Load() *Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	sess, err := decode(data)
	if err != nil {
		return nil
	}
	return sess
}

func decode(data []byte) (*Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.StartTime == nil {
		return nil, errors.New("missing start_time")
	}

	raw := rec.Handle
	if len(raw) == 0 {
		raw = rec.LegacyPID
	}
	value, err := handleValue(raw)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        rec.ID,
		StartTime: *rec.StartTime,
		Duration:  rec.Duration,
	}
	if sess.Duration == nil {
		sess.Duration = rec.LegacyLength
	}

	switch rec.HandleKind {
	case "", power.KindProcess:
		if value == 0 || value > 1<<31-1 {
			return nil, fmt.Errorf("invalid pid %d", value)
		}
		sess.Handle = power.Handle{Kind: power.KindProcess, PID: int(value)}
	case power.KindCookie:
		if value > 1<<32-1 || rec.HolderPID <= 0 {
			return nil, errors.New("invalid cookie handle")
		}
		sess.Handle = power.Handle{Kind: power.KindCookie, PID: rec.HolderPID, Cookie: uint32(value)}
	default:
		return nil, fmt.Errorf("unknown handle kind %q", rec.HandleKind)
	}
	return sess, nil
}

// handleValue accepts a JSON number or a string holding one.
func handleValue(raw json.RawMessage) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("missing handle")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
	}
	return strconv.ParseUint(text, 10, 64)
}

func encode(sess Session) ([]byte, error) {
	rec := record{
		ID:         sess.ID,
		HandleKind: sess.Handle.Kind,
		StartTime:  &sess.StartTime,
		Duration:   sess.Duration,
	}
	switch sess.Handle.Kind {
	case power.KindCookie:
		rec.Handle = json.RawMessage(strconv.FormatUint(uint64(sess.Handle.Cookie), 10))
		rec.HolderPID = sess.Handle.PID
	default:
		rec.HandleKind = power.KindProcess
		rec.Handle = json.RawMessage(strconv.Itoa(sess.Handle.PID))
	}
	return json.Marshal(rec)
}

// Save atomically replaces the state file with sess.
func (s *FileStore) Save(sess Session) error {
	data, err := encode(sess)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrPersistence, tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: chmod %s: %w", ErrPersistence, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrPersistence, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	committed = true
	return nil
}

// Clear deletes the state file. A file that is already gone is fine.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
