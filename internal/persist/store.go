// Package persist keeps a size-bounded on-disk log of consolidated snapshots
// and reloads it into a History on startup.
//
// The log is two newline-delimited JSON files in one directory. New records
// are appended to the current file; once it reaches half the size limit it is
// renamed over the old file and a fresh current file is started, so the pair
// never holds much more than the limit.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/stats"
)

const (
	CurrentFileName = "current_stats.txt"
	OldFileName     = "old_stats.txt"

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Store appends snapshots to the current file, rotating as needed. A Store is
// used from a single goroutine.
type Store struct {
	dir       string
	sizeLimit int64
	log       logger.Logger

	// Size of the current file as of the last successful write. Cleared after
	// any failure so the next Append re-reads it from disk.
	known       bool
	exists      bool
	currentSize int64
}

// NewStore returns a Store writing under dir whose two files together stay
// near sizeLimit bytes.
func NewStore(dir string, sizeLimit int64) (*Store, error) {
	errFactory := errors.New()

	if dir == "" {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "persistence directory is empty")
	}
	if sizeLimit <= 0 {
		return nil, errFactory.WithData(ErrInvalidConfig, sizeLimit)
	}

	return &Store{
		dir:       dir,
		sizeLimit: sizeLimit,
		log:       logger.With("persist"),
	}, nil
}

// Dir returns the directory holding the log files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) currentPath() string {
	return filepath.Join(s.dir, CurrentFileName)
}

func (s *Store) oldPath() string {
	return filepath.Join(s.dir, OldFileName)
}

// Append writes snapshot as one line of the current file.
func (s *Store) Append(snapshot stats.Snapshot) error {
	errFactory := errors.New()

	if err := os.MkdirAll(s.dir, defaultDirPerm); err != nil {
		s.known = false
		return errFactory.Wrap(ErrCreateDir, err)
	}

	if err := s.refresh(); err != nil {
		return err
	}

	if s.shouldRotate() {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	line, err := json.Marshal(snapshot)
	if err != nil {
		return errFactory.Wrap(ErrEncode, err)
	}
	line = append(line, '\n')

	n, err := s.writeLine(line)
	if err != nil {
		s.known = false
		return errFactory.Wrap(ErrAppend, err)
	}

	s.exists = true
	s.currentSize += int64(n)

	return nil
}

func (s *Store) shouldRotate() bool {
	return s.exists && s.currentSize >= s.sizeLimit/2
}

// refresh loads the current file size from disk when it is not known.
func (s *Store) refresh() error {
	if s.known {
		return nil
	}

	info, err := os.Stat(s.currentPath())
	switch {
	case err == nil:
		s.exists = true
		s.currentSize = info.Size()
	case os.IsNotExist(err):
		s.exists = false
		s.currentSize = 0
	default:
		return errors.New().Wrap(ErrAppend, err)
	}
	s.known = true

	return nil
}

func (s *Store) rotate() error {
	if err := os.Rename(s.currentPath(), s.oldPath()); err != nil {
		s.known = false
		return errors.New().Wrap(ErrRotate, err)
	}

	s.log.Debug().
		Int64("size", s.currentSize).
		Int64("limit", s.sizeLimit).
		Msg("Rotated persisted stats")

	s.exists = false
	s.currentSize = 0

	return nil
}

func (s *Store) writeLine(line []byte) (int, error) {
	f, err := os.OpenFile(s.currentPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultFilePerm)
	if err != nil {
		return 0, err
	}

	n, err := f.Write(line)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return n, err
}
