package detect

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/petems/rate-tray/internal/rate"
)

// unit says how a captured number is scaled into hertz.
type unit int

const (
	unitHz unit = iota
	unitKHz
	// unitSuffixed is kHz when the capture is immediately followed by "khz",
	// hertz otherwise.
	unitSuffixed
)

type pattern struct {
	name     string
	re       *regexp.Regexp
	unit     unit
	value    func(m []string) (float64, bool)
	validate func(rate.Hz) bool
}

// patterns is evaluated top to bottom; the first validated match wins even
// when a lower-priority pattern matches earlier in the text.
var patterns = []pattern{
	{
		name:     "decimal-khz",
		re:       regexp.MustCompile(`(?i)(\d+)[,.](\d)\s*khz`),
		unit:     unitHz,
		value:    decimalKHz,
		validate: rate.Hz.IsCanonical,
	},
	{
		name:     "hz",
		re:       regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)(?:\.0+)?\s*hz\b`),
		unit:     unitHz,
		value:    groupedHz,
		validate: rate.Hz.IsCanonical,
	},
	{
		name:     "alac",
		re:       regexp.MustCompile(`(?i)alac\s+\d+-bit\s*/\s*(\d+(?:[.,]\d+)?)\s*khz`),
		unit:     unitKHz,
		value:    group(1),
		validate: rate.Hz.IsCanonical,
	},
	{
		name:     "hi-res-lossless",
		re:       regexp.MustCompile(`(?i)hi-res\s+lossless\s+(\d+(?:[.,]\d+)?)\s*khz`),
		unit:     unitKHz,
		value:    group(1),
		validate: rate.Hz.IsCanonical,
	},
	{
		name:     "lossless",
		re:       regexp.MustCompile(`(?i)lossless\s+(\d+(?:[.,]\d+)?)\s*khz`),
		unit:     unitKHz,
		value:    group(1),
		validate: rate.Hz.IsCanonical,
	},
	{
		name:     "khz",
		re:       regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*khz`),
		unit:     unitKHz,
		value:    group(1),
		validate: rate.Hz.IsCanonical,
	},
	{
		name:     "sample-rate",
		re:       regexp.MustCompile(`(?i)sample[\s_-]*rate\D*?(\d+(?:\.\d+)?)(\s*khz)?`),
		unit:     unitSuffixed,
		value:    group(1),
		validate: rate.Hz.IsCanonical,
	},
	{
		name:     "format-hz",
		re:       regexp.MustCompile(`(?i)format.*?(\d+)\s*hz\b`),
		unit:     unitHz,
		value:    group(1),
		validate: rate.Hz.IsCanonical,
	},
}

// hz converts a match into hertz, refusing values that are not whole hertz.
func (p pattern) hz(m []string) (rate.Hz, bool) {
	v, ok := p.value(m)
	if !ok {
		return 0, false
	}

	scale := 1.0
	switch p.unit {
	case unitKHz:
		scale = 1000
	case unitSuffixed:
		if len(m) > 2 && m[2] != "" {
			scale = 1000
		}
	}

	v *= scale
	r := math.Round(v)
	if math.Abs(v-r) > 1e-6 || r <= 0 || r > math.MaxInt32 {
		return 0, false
	}
	return rate.Hz(r), true
}

func group(i int) func(m []string) (float64, bool) {
	return func(m []string) (float64, bool) {
		if len(m) <= i {
			return 0, false
		}
		return parseNumber(m[i])
	}
}

// groupedHz reads whole hertz written with or without thousands
// separators ("44100", "44,100").
func groupedHz(m []string) (float64, bool) {
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return float64(v), true
}

// decimalKHz handles "44,1 kHz" and "44.1 kHz": one decimal digit of kHz.
func decimalKHz(m []string) (float64, bool) {
	if len(m) < 3 {
		return 0, false
	}
	whole, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	dec, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return float64(whole*1000 + dec*100), true
}

func parseNumber(s string) (float64, bool) {
	b := []byte(s)
	for i := range b {
		if b[i] == ',' {
			b[i] = '.'
		}
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
