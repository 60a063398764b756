package tray

import (
	"fmt"
	"strings"

	"github.com/petems/rate-tray/internal/app"
)

// emojiForStatus returns the status indicator shown next to the rate
func emojiForStatus(s app.Status) string {
	switch {
	case s.LogDenied || s.LastError != "":
		return "⚪️" // White - needs attention
	case s.Applying || s.Pending != 0:
		return "🟡" // Yellow - rate change in progress
	case s.Discrepancy != nil:
		return "🟠" // Orange - device settled on a different rate
	case s.Monitoring:
		return "🟢" // Green - following playback
	default:
		return "⏸"
	}
}

// title is the menu bar text: the device rate and a status indicator.
func title(s app.Status) string {
	if s.Device.NominalRate == 0 {
		return fmt.Sprintf("♪ %s", emojiForStatus(s))
	}
	return fmt.Sprintf("♪ %s %s", s.Device.NominalRate, emojiForStatus(s))
}

func statusLine(s app.Status) string {
	switch {
	case s.Applying:
		return fmt.Sprintf("Switching to %s…", s.ApplyTarget)
	case s.Pending != 0:
		return fmt.Sprintf("Waiting to switch to %s", s.Pending)
	default:
		return "Status: " + s.PollerStatus
	}
}

func deviceLine(s app.Status) string {
	if s.Device.ID == "" {
		return "Device: unknown"
	}
	line := fmt.Sprintf("Device: %s @ %s", s.Device.Name, s.Device.NominalRate)
	if d := s.Discrepancy; d != nil {
		line += fmt.Sprintf(" (requested %s, got %.0f Hz)", d.Requested, d.Actual)
	}
	return line
}

func trackLine(s app.Status) string {
	track := s.Track.String()
	if track == "" {
		track = "Nothing playing"
	}
	if s.LastEvent != nil {
		return fmt.Sprintf("%s (%s)", track, s.LastEvent.Rate)
	}
	return track
}

// diagnostics is the text placed on the clipboard by "Copy Diagnostics".
func diagnostics(s app.Status, version, commit string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RateTray %s (%s)\n", version, commit)
	fmt.Fprintf(&b, "monitoring: %t\n", s.Monitoring)
	fmt.Fprintf(&b, "log: %s (attempts %d, denied %t)\n", s.PollerStatus, s.PollAttempts, s.LogDenied)
	fmt.Fprintf(&b, "device: %s %q at %d Hz\n", s.Device.ID, s.Device.Name, int(s.Device.NominalRate))

	rates := make([]string, 0, len(s.Device.SupportedRates))
	for _, r := range s.Device.SupportedRates {
		rates = append(rates, fmt.Sprint(int(r)))
	}
	fmt.Fprintf(&b, "supported: %s\n", strings.Join(rates, ", "))

	if s.LastEvent != nil {
		fmt.Fprintf(&b, "detected: %d Hz from %s at %s\n", int(s.LastEvent.Rate), s.LastEvent.Source, s.LastEvent.Timestamp.Format("15:04:05"))
		fmt.Fprintf(&b, "raw: %s\n", s.LastEvent.Raw)
	}
	if s.TargetRate != 0 {
		fmt.Fprintf(&b, "target: %d Hz\n", int(s.TargetRate))
	}
	if d := s.Discrepancy; d != nil {
		fmt.Fprintf(&b, "discrepancy: requested %d Hz, actual %.2f Hz\n", int(d.Requested), d.Actual)
	}
	fmt.Fprintf(&b, "state: %s\n", s.State)
	fmt.Fprintf(&b, "auto switch: %t, fixed family rates: %t\n", s.AutoSwitch, s.UseFixedFamilyRates)
	if s.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", s.LastError)
	}
	return b.String()
}
