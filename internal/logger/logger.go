// Package logger writes the audit trail: one text line per pipeline event,
//
//	2026-10-17 09:30:12 [3f2a9c1d] DENY MATCH: recursive-force-delete: ...
//
// Lines are assembled in memory and written with a single append so that
// concurrent sessions, even in separate processes, never split a line.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gzhole/gatekeeper/internal/redact"
)

// defaultMaxLogBytes is the size past which New rotates the log to ".1".
const defaultMaxLogBytes = 10 * 1024 * 1024

// TimeFormat is the timestamp layout of every line.
const TimeFormat = "2006-01-02 15:04:05"

// Event names a pipeline step.
type Event string

const (
	EventEvaluating Event = "EVALUATING"
	EventLocalSaid  Event = "LOCAL SAID"
	EventPermsMatch Event = "PERMS MATCH"
	EventDenyMatch  Event = "DENY MATCH"
	EventAPISaid    Event = "CLAUDE-API SAID"
	EventLocalLLM   Event = "CLAUDE-LOCAL SAID"
	EventDecision   Event = "DECISION"
	EventWarning    Event = "WARNING"
)

const sessionTagLength = 8

// Events lists every event in the order they usually appear.
var Events = []Event{
	EventEvaluating, EventDenyMatch, EventPermsMatch, EventLocalSaid,
	EventAPISaid, EventLocalLLM, EventWarning, EventDecision,
}

// SessionTag returns the first eight characters of a session id, padded
// with '-' when the id is shorter. Characters that could break the line
// format (controls, spaces, brackets, invalid UTF-8) become '_'.
func SessionTag(sessionID string) string {
	tag := []rune(cleanTag(sessionID))
	if len(tag) >= sessionTagLength {
		return string(tag[:sessionTagLength])
	}
	return string(tag) + strings.Repeat("-", sessionTagLength-len(tag))
}

func cleanTag(tag string) string {
	return strings.Map(func(r rune) rune {
		if r == '[' || r == ']' || r == unicode.ReplacementChar || unicode.IsControl(r) || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, tag)
}

// Entry is one parsed log line.
type Entry struct {
	Time   time.Time
	Tag    string
	Event  Event
	Detail string
}

// Format renders the entry as a log line without the trailing newline.
// Newlines in the detail are flattened, secrets are redacted and the tag is
// cleaned the same way SessionTag cleans it.
func (e Entry) Format() string {
	detail := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(e.Detail)
	detail = redact.Redact(detail)
	return fmt.Sprintf("%s [%s] %s: %s", e.Time.Format(TimeFormat), cleanTag(e.Tag), e.Event, detail)
}

// AuditLogger appends entries to a file. It is safe for concurrent use.
type AuditLogger struct {
	file *os.File
	mu   sync.Mutex
	now  func() time.Time
}

// New opens path for appending, creating it (and its directory) if needed.
// A file already past the size limit is moved to path+".1" first.
func New(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil && info.Size() >= defaultMaxLogBytes {
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, fmt.Errorf("rotate audit log: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{file: file, now: time.Now}, nil
}

// Log appends one line for sessionID.
func (l *AuditLogger) Log(sessionID string, event Event, detail string) error {
	if l == nil || l.file == nil {
		return nil
	}
	line := Entry{
		Time:   l.now(),
		Tag:    SessionTag(sessionID),
		Event:  event,
		Detail: detail,
	}.Format() + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.file.WriteString(line)
	return err
}

func (l *AuditLogger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}
