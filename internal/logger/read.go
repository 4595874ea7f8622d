package logger

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"
)

// ParseLine parses one audit line. Lines that do not follow the format are
// reported as not ok.
func ParseLine(line string) (Entry, bool) {
	if len(line) < len(TimeFormat)+len(" [] : ")+sessionTagLength {
		return Entry{}, false
	}
	ts, err := time.ParseInLocation(TimeFormat, line[:len(TimeFormat)], time.Local)
	if err != nil {
		return Entry{}, false
	}
	rest := line[len(TimeFormat):]
	if !strings.HasPrefix(rest, " [") {
		return Entry{}, false
	}
	rest = rest[2:]
	end := strings.Index(rest, "] ")
	if end < 0 {
		return Entry{}, false
	}
	tag := rest[:end]
	rest = rest[end+2:]

	// Event names contain spaces, so match against the known set.
	for _, ev := range Events {
		prefix := string(ev) + ":"
		if strings.HasPrefix(rest, prefix) {
			return Entry{
				Time:   ts,
				Tag:    tag,
				Event:  ev,
				Detail: strings.TrimPrefix(rest[len(prefix):], " "),
			}, true
		}
	}
	return Entry{}, false
}

// ReadFile returns every well-formed entry in the log at path. A missing
// file yields no entries and no error.
func ReadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e, ok := ParseLine(scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	return entries, scanner.Err()
}
