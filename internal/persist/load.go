package persist

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/history"
	"codeberg.org/mutker/hoststat/internal/stats"
)

const maxLineSize = 16 * 1024 * 1024

// Load reads the old file and then the current file in dir and returns a
// History sized to exactly the records read, with the last record as the most
// recent. With no files, or no records, it returns an empty History of
// capacity one. Any malformed line fails the whole load.
func Load(dir string) (*history.History, error) {
	var items []stats.Snapshot

	for _, name := range []string{OldFileName, CurrentFileName} {
		read, err := readFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		items = append(items, read...)
	}

	if len(items) == 0 {
		return history.New(1)
	}

	h, err := history.New(len(items))
	if err != nil {
		return nil, err
	}
	for _, s := range items {
		h.Push(s)
	}

	return h, nil
}

type corruptRecord struct {
	Path  string
	Line  int
	Error string
}

func readFile(path string) ([]stats.Snapshot, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errFactory.Wrap(ErrRead, err)
	}
	defer f.Close()

	var items []stats.Snapshot

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var s stats.Snapshot
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, errFactory.WithData(ErrCorruptRecord, corruptRecord{
				Path:  path,
				Line:  lineNo,
				Error: err.Error(),
			})
		}
		items = append(items, s)
	}

	if err := scanner.Err(); err != nil {
		return nil, errFactory.Wrap(ErrRead, err)
	}

	return items, nil
}

// QuarantineSuffix is appended to log files moved aside by Quarantine.
const QuarantineSuffix = ".corrupt"

// Quarantine renames both log files in dir to <name>.corrupt, replacing any
// earlier quarantined copies, so the next Load starts clean. Missing files
// are skipped.
func Quarantine(dir string) error {
	for _, name := range []string{OldFileName, CurrentFileName} {
		path := filepath.Join(dir, name)
		if err := os.Rename(path, path+QuarantineSuffix); err != nil && !os.IsNotExist(err) {
			return errors.New().Wrap(ErrQuarantine, err)
		}
	}
	return nil
}
