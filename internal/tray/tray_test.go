package tray

import (
	"testing"
	"time"

	"github.com/petems/rate-tray/internal/app"
	"github.com/petems/rate-tray/internal/detect"
	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/rate"
	"github.com/petems/rate-tray/internal/trackinfo"
	"github.com/stretchr/testify/assert"
)

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		name   string
		status app.Status
		want   string
	}{
		{name: "stopped", status: app.Status{}, want: "⏸"},
		{name: "monitoring", status: app.Status{Monitoring: true}, want: "🟢"},
		{name: "applying", status: app.Status{Monitoring: true, Applying: true}, want: "🟡"},
		{name: "pending", status: app.Status{Monitoring: true, Pending: rate.R96000}, want: "🟡"},
		{name: "quantized", status: app.Status{Monitoring: true, Discrepancy: &hardware.Discrepancy{Requested: rate.R44100, Actual: 44000}}, want: "🟠"},
		{name: "log denied", status: app.Status{LogDenied: true}, want: "⚪️"},
		{name: "error", status: app.Status{Monitoring: true, LastError: "boom"}, want: "⚪️"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emojiForStatus(tt.status))
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "♪ ⏸", title(app.Status{}))

	s := app.Status{Monitoring: true, Device: hardware.Device{ID: "42", NominalRate: rate.R44100}}
	assert.Equal(t, "♪ 44.1 kHz 🟢", title(s))
}

func TestMenuLines(t *testing.T) {
	s := app.Status{
		PollerStatus: "Listening",
		Device:       hardware.Device{ID: "42", Name: "DAC", NominalRate: rate.R96000},
		Track:        trackinfo.Track{Title: "So What", Artist: "Miles Davis"},
		LastEvent:    &detect.RateEvent{Rate: rate.R96000},
	}
	assert.Equal(t, "Status: Listening", statusLine(s))
	assert.Equal(t, "Device: DAC @ 96 kHz", deviceLine(s))
	assert.Equal(t, "Miles Davis - So What (96 kHz)", trackLine(s))

	s.Applying, s.ApplyTarget = true, rate.R192000
	assert.Equal(t, "Switching to 192 kHz…", statusLine(s))

	s.Discrepancy = &hardware.Discrepancy{Requested: rate.R44100, Actual: 44000}
	assert.Equal(t, "Device: DAC @ 96 kHz (requested 44.1 kHz, got 44000 Hz)", deviceLine(s))

	assert.Equal(t, "Nothing playing", trackLine(app.Status{}))
	assert.Equal(t, "Device: unknown", deviceLine(app.Status{}))
}

func TestDiagnostics(t *testing.T) {
	s := app.Status{
		Monitoring:   true,
		PollerStatus: "Detected 96 kHz",
		PollAttempts: 7,
		Device: hardware.Device{
			ID:             "42",
			Name:           "DAC",
			NominalRate:    rate.R96000,
			SupportedRates: []rate.Hz{rate.R44100, rate.R96000},
		},
		LastEvent: &detect.RateEvent{
			Rate:      rate.R96000,
			Source:    "com.apple.Music",
			Raw:       "Hi-Res Lossless 96 kHz",
			Timestamp: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
		},
		TargetRate: rate.R96000,
		AutoSwitch: true,
	}

	out := diagnostics(s, "1.0.0", "abc123")
	assert.Contains(t, out, "RateTray 1.0.0 (abc123)")
	assert.Contains(t, out, "log: Detected 96 kHz (attempts 7, denied false)")
	assert.Contains(t, out, `device: 42 "DAC" at 96000 Hz`)
	assert.Contains(t, out, "supported: 44100, 96000")
	assert.Contains(t, out, "detected: 96000 Hz from com.apple.Music at 15:04:05")
	assert.Contains(t, out, "target: 96000 Hz")
	assert.Contains(t, out, "state: idle")
	assert.NotContains(t, out, "discrepancy")
}

func TestMonitorTitle(t *testing.T) {
	assert.Equal(t, "Stop Monitoring", monitorTitle(true))
	assert.Equal(t, "Start Monitoring", monitorTitle(false))
}
