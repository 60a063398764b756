package hardware

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// graphID names the PipeWire graph clock, which is what a forced rate
// applies to.
const graphID = "pipewire"

var pwMetaRe = regexp.MustCompile(`key:'([^']*)'\s+value:'([^']*)'`)

// parsePWMetadata reads `pw-metadata -n settings` output into key/value pairs.
func parsePWMetadata(out string) map[string]string {
	kv := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		m := pwMetaRe.FindStringSubmatch(line)
		if len(m) == 3 {
			kv[m[1]] = m[2]
		}
	}
	return kv
}

// pwClockRate returns the forced graph rate when one is set, the default
// graph rate otherwise.
func pwClockRate(kv map[string]string) (float64, bool) {
	if v, err := strconv.ParseFloat(kv["clock.force-rate"], 64); err == nil && v > 0 {
		return v, true
	}
	if v, err := strconv.ParseFloat(kv["clock.rate"], 64); err == nil && v > 0 {
		return v, true
	}
	return 0, false
}

// pwAllowedRates parses "[ 44100 48000 ]".
func pwAllowedRates(kv map[string]string) []float64 {
	v := strings.Trim(strings.TrimSpace(kv["clock.allowed-rates"]), "[]")
	var rates []float64
	for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' }) {
		if hz, err := strconv.ParseFloat(f, 64); err == nil {
			rates = append(rates, hz)
		}
	}
	return rates
}

// pwChange classifies one line of `pw-metadata -m` output.
func pwChange(line string) (Change, bool) {
	m := pwMetaRe.FindStringSubmatch(line)
	if len(m) != 3 {
		return Change{}, false
	}
	switch m[1] {
	case "clock.rate", "clock.force-rate":
		return Change{Kind: RateChanged, DeviceID: graphID}, true
	case "default.audio.sink", "default.configured.audio.sink":
		return Change{Kind: DeviceChanged, DeviceID: graphID}, true
	}
	return Change{}, false
}

type pwObject struct {
	Type string `json:"type"`
	Info *struct {
		State  string                       `json:"state"`
		Props  map[string]json.RawMessage   `json:"props"`
		Params map[string][]json.RawMessage `json:"params"`
	} `json:"info"`
}

// pwDumpRate returns the rate a running audio sink negotiated, read from
// `pw-dump` output. Idle graphs report nothing.
func pwDumpRate(data []byte) (float64, bool) {
	var objs []pwObject
	if err := json.Unmarshal(data, &objs); err != nil {
		return 0, false
	}
	for _, o := range objs {
		if o.Type != "PipeWire:Interface:Node" || o.Info == nil || o.Info.State != "running" {
			continue
		}
		var class string
		if err := json.Unmarshal(o.Info.Props["media.class"], &class); err != nil || class != "Audio/Sink" {
			continue
		}
		for _, raw := range o.Info.Params["Format"] {
			var f struct {
				Rate float64 `json:"rate"`
			}
			if err := json.Unmarshal(raw, &f); err == nil && f.Rate > 0 {
				return f.Rate, true
			}
		}
	}
	return 0, false
}
