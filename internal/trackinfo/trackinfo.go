// Package trackinfo asks the media player what is playing. It is used for
// display only and never carries sample-rate data.
package trackinfo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Track is the now-playing item. The zero value means nothing is playing.
type Track struct {
	Title  string
	Artist string
}

func (t Track) IsZero() bool {
	return t.Title == "" && t.Artist == ""
}

func (t Track) String() string {
	switch {
	case t.IsZero():
		return ""
	case t.Artist == "":
		return t.Title
	default:
		return t.Artist + " - " + t.Title
	}
}

// Provider returns the currently playing track.
type Provider interface {
	Current(ctx context.Context) (Track, error)
}

// Nop never reports a track.
type Nop struct{}

func (Nop) Current(ctx context.Context) (Track, error) {
	return Track{}, nil
}

type command struct {
	name string
	args []string
}

func (c command) Current(ctx context.Context) (Track, error) {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Track{}, fmt.Errorf("%s: %w: %s", c.name, err, strings.TrimSpace(stderr.String()))
	}
	return parseLines(stdout.String()), nil
}

// parseLines reads "title\nartist".
func parseLines(out string) Track {
	lines := strings.SplitN(strings.TrimRight(out, "\r\n"), "\n", 2)
	var t Track
	t.Title = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		t.Artist = strings.TrimSpace(lines[1])
	}
	return t
}
