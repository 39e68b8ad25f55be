package slotfs

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/engyne/engyne/errors"
)

// maxJSONLLine bounds a single journal line. Lead text is truncated upstream,
// but webhook payloads can carry arbitrary structures.
const maxJSONLLine = 1 << 20

// AppendJSONL appends one JSON object as a single newline-terminated line.
// The write is flushed before the file is closed so consumers observe whole
// records.
func AppendJSONL(path string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "marshal record for %s", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create parent of %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s for append", path)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrapf(err, "append to %s", path)
	}
	return f.Sync()
}

// CountLines returns the number of lines in a JSONL file. Absent files
// return (0, false); the count is approximate under concurrent appends.
func CountLines(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxJSONLLine)
	count := 0
	for scanner.Scan() {
		count++
	}
	if scanner.Err() != nil {
		return 0, false
	}
	return count, true
}

// ForEachLine iterates lines of a JSONL file by zero-based index starting at
// start. The callback returns false to stop the scan; a partial trailing line
// (no terminating newline yet) is not delivered.
func ForEachLine(path string, start int, fn func(idx int, raw string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	idx := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A final fragment without its newline has not been fully
			// appended yet; leave it for the next pass.
			return nil
		}
		if idx >= start {
			if !fn(idx, line[:len(line)-1]) {
				return nil
			}
		}
		idx++
	}
}

// Touch creates an empty file if it does not exist.
func Touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create parent of %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "touch %s", path)
	}
	return f.Close()
}
