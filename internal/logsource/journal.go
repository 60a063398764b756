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

// Journal reads the systemd journal through `journalctl -o json`. Subsystems
// are matched against SYSLOG_IDENTIFIER.
type Journal struct {
	run runFunc
}

// NewJournal returns a Source backed by journalctl.
func NewJournal() *Journal {
	return &Journal{run: execRun}
}

type journalEntry struct {
	Realtime   string          `json:"__REALTIME_TIMESTAMP"`
	Identifier string          `json:"SYSLOG_IDENTIFIER"`
	Unit       string          `json:"_SYSTEMD_UNIT"`
	Message    json.RawMessage `json:"MESSAGE"`
}

func (j *Journal) Fetch(ctx context.Context, since Cursor, subsystems []string) ([]Record, error) {
	args := []string{"-o", "json", "--no-pager", "--quiet"}
	if since.Time().IsZero() {
		args = append(args, "--since", "-5s")
	} else {
		args = append(args, "--since", "@"+strconv.FormatInt(since.Time().Unix(), 10))
	}
	for _, s := range subsystems {
		args = append(args, "SYSLOG_IDENTIFIER="+s)
	}

	stdout, stderr, err := j.run(ctx, "journalctl", args...)
	if isDenied(stderr) {
		return nil, ErrPermissionDenied
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("journalctl: %w: %s", err, strings.TrimSpace(string(stderr)))
	}
	return parseJournal(stdout, since), nil
}

func parseJournal(out []byte, since Cursor) []Record {
	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e journalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		// Binary messages are encoded as byte arrays; only text is useful.
		var msg string
		if err := json.Unmarshal(e.Message, &msg); err != nil || msg == "" {
			continue
		}
		usec, err := strconv.ParseInt(e.Realtime, 10, 64)
		if err != nil {
			continue
		}
		ts := time.UnixMicro(usec)
		if !since.After(ts) {
			continue
		}
		records = append(records, Record{
			Subsystem: e.Identifier,
			Category:  e.Unit,
			Text:      msg,
			Timestamp: ts,
		})
	}
	return records
}
