package detect

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/petems/rate-tray/internal/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func khz(h rate.Hz) string {
	return strconv.FormatFloat(float64(h)/1000, 'f', -1, 64)
}

// oneDecimal renders 48000 as "48.0" so the decimal-kHz form covers every rate.
func oneDecimal(h rate.Hz) string {
	return fmt.Sprintf("%d.%d", h/1000, (h%1000)/100)
}

var templates = map[string]func(rate.Hz) string{
	"decimal dot":     func(h rate.Hz) string { return "Output format " + oneDecimal(h) + " kHz" },
	"decimal comma":   func(h rate.Hz) string { return fmt.Sprintf("Wiedergabe mit %d,%d kHz", h/1000, (h%1000)/100) },
	"plain hz":        func(h rate.Hz) string { return fmt.Sprintf("audio device running at %d Hz", h) },
	"grouped hz":      func(h rate.Hz) string { return fmt.Sprintf("Output: %d,%03d Hz", h/1000, h%1000) },
	"fractional hz":   func(h rate.Hz) string { return fmt.Sprintf("nominal %d.0Hz", h) },
	"alac":            func(h rate.Hz) string { return "Now playing ALAC 24-bit/" + khz(h) + " kHz" },
	"hi-res lossless": func(h rate.Hz) string { return "Hi-Res Lossless " + khz(h) + " kHz" },
	"lossless":        func(h rate.Hz) string { return "Lossless " + khz(h) + " kHz stream" },
	"generic khz":     func(h rate.Hz) string { return "track is " + khz(h) + "kHz" },
	"sample rate":     func(h rate.Hz) string { return fmt.Sprintf("sampleRate: %d", h) },
	"sample rate khz": func(h rate.Hz) string { return "sample rate = " + khz(h) + " kHz" },
	"format":          func(h rate.Hz) string { return fmt.Sprintf("ASBD format: 2 ch, %d Hz, Float32", h) },
}

func TestExtractRoundTrip(t *testing.T) {
	for name, render := range templates {
		for _, h := range rate.Canonical {
			text := render(h)
			t.Run(name+"/"+text, func(t *testing.T) {
				got, ok := Extract(text)
				require.True(t, ok, "no rate in %q", text)
				assert.Equal(t, h, got)
			})
		}
	}
}

func TestExtractRejects(t *testing.T) {
	tests := []string{
		"Bitrate: 320 kbps",
		"Buffer size 512 frames",
		"playing at 22050 Hz",
		"44.15 kHz",
		"44100.5 Hz",
		"4,4100 Hz",
		"sample rate 12345",
		"",
		"nothing to see here 44100",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, ok := Extract(text)
			assert.False(t, ok)
		})
	}
}

func TestExtractPatternPriority(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    rate.Hz
		pattern string
	}{
		{
			name:    "plain hz beats earlier generic khz",
			text:    "Switching to 96 kHz from 44100 Hz",
			want:    rate.R44100,
			pattern: "hz",
		},
		{
			name:    "decimal khz beats earlier plain hz",
			text:    "device 48000 Hz, track 88.2 kHz",
			want:    rate.R88200,
			pattern: "decimal-khz",
		},
		{
			name:    "invalid higher priority match falls through",
			text:    "tone 512 Hz while playing 96 kHz",
			want:    rate.R96000,
			pattern: "khz",
		},
		{
			name:    "second match of the same pattern",
			text:    "resampling 32000 Hz to 48000 Hz",
			want:    rate.R48000,
			pattern: "hz",
		},
		{
			name:    "alac before lossless",
			text:    "ALAC 24-bit/192 kHz Lossless 48 kHz",
			want:    rate.R192000,
			pattern: "alac",
		},
		{
			name:    "decimal form wins over hi-res lossless",
			text:    "upsampled 48 kHz; Hi-Res Lossless 176.4 kHz",
			want:    rate.R176400,
			pattern: "decimal-khz",
		},
		{
			name:    "format fallback for glued tokens",
			text:    "AudioFormat=pcm48000Hz",
			want:    rate.R48000,
			pattern: "format-hz",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Find(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.Rate)
			assert.Equal(t, tt.pattern, m.Pattern)
		})
	}
}

func TestPatternTableOrder(t *testing.T) {
	var names []string
	for _, p := range patterns {
		names = append(names, p.name)
	}
	assert.Equal(t, []string{
		"decimal-khz",
		"hz",
		"alac",
		"hi-res-lossless",
		"lossless",
		"khz",
		"sample-rate",
		"format-hz",
	}, names)
}

func TestPrefilterSkipsPatterns(t *testing.T) {
	assert.False(t, mentionsRate("44100 96000"))
	assert.True(t, mentionsRate("SAMPLE 1"))
	assert.True(t, mentionsRate("ALAC"))
}
