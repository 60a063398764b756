// Package detect extracts sample rates from free-text log records.
package detect

import (
	"strings"
	"time"

	"github.com/petems/rate-tray/internal/rate"
)

// RateEvent is a validated sample rate seen in the log.
type RateEvent struct {
	Rate      rate.Hz
	Timestamp time.Time
	Source    string
	Raw       string
}

// Match describes which pattern produced a rate.
type Match struct {
	Rate    rate.Hz
	Pattern string
	Text    string
}

// keywords gate the pattern table; records without any of them are skipped.
var keywords = []string{"khz", "hz", "sample", "rate", "lossless", "alac", "format"}

func mentionsRate(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Extract returns the canonical sample rate mentioned in text, if any.
func Extract(text string) (rate.Hz, bool) {
	m, ok := Find(text)
	return m.Rate, ok
}

// Find is Extract with the matching pattern and matched text attached.
func Find(text string) (Match, bool) {
	if !mentionsRate(text) {
		return Match{}, false
	}

	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			hz, ok := p.hz(m)
			if !ok || !p.validate(hz) {
				continue
			}
			return Match{Rate: hz, Pattern: p.name, Text: m[0]}, true
		}
	}
	return Match{}, false
}
