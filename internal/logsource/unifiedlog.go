package logsource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const unifiedTimeLayout = "2006-01-02 15:04:05.000000-0700"

// UnifiedLog reads the macOS unified log through `log show --style ndjson`.
type UnifiedLog struct {
	run runFunc
}

// NewUnifiedLog returns a Source backed by the macOS `log` tool.
func NewUnifiedLog() *UnifiedLog {
	return &UnifiedLog{run: execRun}
}

type unifiedEntry struct {
	Timestamp    string `json:"timestamp"`
	Subsystem    string `json:"subsystem"`
	Category     string `json:"category"`
	EventMessage string `json:"eventMessage"`
}

func (u *UnifiedLog) Fetch(ctx context.Context, since Cursor, subsystems []string) ([]Record, error) {
	args := []string{"show", "--style", "ndjson", "--info"}
	if since.Time().IsZero() {
		args = append(args, "--last", "5s")
	} else {
		// --start has whole-second resolution; the strictly-after filter
		// below drops the overlap.
		args = append(args, "--start", since.Time().In(time.Local).Format("2006-01-02 15:04:05"))
	}
	if p := subsystemPredicate(subsystems); p != "" {
		args = append(args, "--predicate", p)
	}

	stdout, stderr, err := u.run(ctx, "log", args...)
	if isDenied(stderr) {
		return nil, ErrPermissionDenied
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("log show: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	return parseUnified(stdout, since), nil
}

func parseUnified(out []byte, since Cursor) []Record {
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var e unifiedEntry
		if err := json.Unmarshal(line, &e); err != nil || e.EventMessage == "" {
			continue
		}
		ts, err := time.Parse(unifiedTimeLayout, e.Timestamp)
		if err != nil || !since.After(ts) {
			continue
		}
		records = append(records, Record{
			Subsystem: e.Subsystem,
			Category:  e.Category,
			Text:      e.EventMessage,
			Timestamp: ts,
		})
	}
	return records
}

func subsystemPredicate(subsystems []string) string {
	if len(subsystems) == 0 {
		return ""
	}
	parts := make([]string, 0, len(subsystems))
	for _, s := range subsystems {
		parts = append(parts, "subsystem == "+strconv.Quote(s))
	}
	return strings.Join(parts, " OR ")
}
