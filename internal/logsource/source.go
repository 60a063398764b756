// Package logsource reads records from the operating system's append-only log.
package logsource

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrPermissionDenied means the log can no longer be read by this process.
// It ends the monitoring session; only an external restart recovers.
var ErrPermissionDenied = errors.New("insufficient privilege to read system log")

// Record is one log entry.
type Record struct {
	Subsystem string
	Category  string
	Text      string
	Timestamp time.Time
}

// Cursor marks a position in the log. Fetch returns records strictly after it.
type Cursor struct {
	t time.Time
}

// CursorAt returns a cursor positioned at t.
func CursorAt(t time.Time) Cursor {
	return Cursor{t: t}
}

// Time returns the cursor position.
func (c Cursor) Time() time.Time {
	return c.t
}

// After reports whether ts lies strictly after the cursor.
func (c Cursor) After(ts time.Time) bool {
	return ts.After(c.t)
}

// Source fetches records newer than a cursor, restricted to the given
// subsystems (all subsystems when empty).
type Source interface {
	Fetch(ctx context.Context, since Cursor, subsystems []string) ([]Record, error)
}

// NewSystem returns the log source for the running OS.
func NewSystem() Source {
	if runtime.GOOS == "darwin" {
		return NewUnifiedLog()
	}
	return NewJournal()
}

// runFunc executes a command and returns stdout and stderr separately.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

var deniedMarkers = []string{
	"not permitted",
	"permission denied",
	"insufficient permissions",
	"must be admin",
	"must be root",
}

func isDenied(stderr []byte) bool {
	s := strings.ToLower(string(stderr))
	for _, m := range deniedMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
