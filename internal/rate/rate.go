// Package rate holds the canonical sample-rate table and the pure policy
// functions that turn a detected rate into the rate a device should run at.
package rate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Hz is a sample rate in hertz.
type Hz int

const (
	R44100  Hz = 44100
	R48000  Hz = 48000
	R88200  Hz = 88200
	R96000  Hz = 96000
	R176400 Hz = 176400
	R192000 Hz = 192000
)

// Canonical lists every rate the pipeline accepts, ascending.
var Canonical = []Hz{R44100, R48000, R88200, R96000, R176400, R192000}

// IsCanonical reports whether h is one of the six canonical rates.
func (h Hz) IsCanonical() bool {
	for _, c := range Canonical {
		if h == c {
			return true
		}
	}
	return false
}

// String renders the rate in kHz, e.g. "44.1 kHz" or "96 kHz".
func (h Hz) String() string {
	if h%1000 == 0 {
		return fmt.Sprintf("%d kHz", h/1000)
	}
	return strconv.FormatFloat(float64(h)/1000, 'f', -1, 64) + " kHz"
}

// Family groups rates sharing a common base rate.
type Family int

const (
	FamilyUnknown Family = iota
	Family44_1
	Family48
)

var families = map[Family][]Hz{
	Family44_1: {R44100, R88200, R176400},
	Family48:   {R48000, R96000, R192000},
}

// Family returns the rate family h belongs to.
func (h Hz) Family() Family {
	for f, members := range families {
		for _, m := range members {
			if h == m {
				return f
			}
		}
	}
	return FamilyUnknown
}

// Members returns the family's rates in ascending order.
func (f Family) Members() []Hz {
	return append([]Hz(nil), families[f]...)
}

func (f Family) String() string {
	switch f {
	case Family44_1:
		return "44.1k"
	case Family48:
		return "48k"
	default:
		return "unknown"
	}
}

// Policy is the read-only view of the user's rate preferences.
type Policy struct {
	AutoSwitch          bool
	DebounceWindow      time.Duration
	PreferHigherFamily  bool
	UseFixedFamilyRates bool
	Fixed44_1FamilyRate Hz
	Fixed48FamilyRate   Hz
}

// Parse accepts "96000", "96k", "96 kHz", "44.1khz" or "44,1 kHz" and returns
// the canonical rate it names.
func Parse(s string) (Hz, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, ",", ".")

	scale := 1.0
	switch {
	case strings.HasSuffix(v, "khz"):
		v, scale = strings.TrimSuffix(v, "khz"), 1000
	case strings.HasSuffix(v, "k"):
		v, scale = strings.TrimSuffix(v, "k"), 1000
	case strings.HasSuffix(v, "hz"):
		v = strings.TrimSuffix(v, "hz")
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	h := Hz(f*scale + 0.5)
	if !h.IsCanonical() {
		return 0, fmt.Errorf("unsupported rate %q: must be one of %v", s, Canonical)
	}
	return h, nil
}
