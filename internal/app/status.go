package app

import (
	"github.com/petems/rate-tray/internal/debounce"
	"github.com/petems/rate-tray/internal/detect"
	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/rate"
	"github.com/petems/rate-tray/internal/trackinfo"
)

// Status is a read-only view of the coordinator, safe to keep after the call.
type Status struct {
	Monitoring   bool
	PollerStatus string
	PollAttempts int
	LogDenied    bool

	Device      hardware.Device
	LastEvent   *detect.RateEvent
	Track       trackinfo.Track
	TargetRate  rate.Hz // final target for the current track, 0 if none
	Discrepancy *hardware.Discrepancy

	State       debounce.State
	Applying    bool
	ApplyTarget rate.Hz
	Pending     rate.Hz

	AutoSwitch          bool
	UseFixedFamilyRates bool
	ManualHold          bool
	LastError           string
}

type EventKind int

const (
	StatusChanged EventKind = iota
	RateDetected
	DeviceUpdated
	TrackChanged
	Transition
	Quantized
)

func (k EventKind) String() string {
	switch k {
	case RateDetected:
		return "rate-detected"
	case DeviceUpdated:
		return "device-updated"
	case TrackChanged:
		return "track-changed"
	case Transition:
		return "transition"
	case Quantized:
		return "quantized"
	default:
		return "status"
	}
}

// Event carries the status at the time it was raised. Rate is set for
// RateDetected only.
type Event struct {
	Kind   EventKind
	Status Status
	Rate   *detect.RateEvent
}

// Status returns the most recently published status.
func (a *App) Status() Status {
	return *a.status.Load()
}

// Subscribe returns a channel of events and a function that ends the
// subscription. Slow subscribers miss events rather than stall the
// coordinator.
func (a *App) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	a.subsMu.Lock()
	a.subs[ch] = struct{}{}
	a.subsMu.Unlock()

	return ch, func() {
		a.subsMu.Lock()
		defer a.subsMu.Unlock()
		if _, ok := a.subs[ch]; ok {
			delete(a.subs, ch)
			close(ch)
		}
	}
}

// publish must be called from the Run goroutine.
func (a *App) publish(kind EventKind, ev *detect.RateEvent) {
	s := a.snapshot()
	a.status.Store(&s)

	e := Event{Kind: kind, Status: s, Rate: ev}
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- e:
		default:
			// Drop if channel full
		}
	}
}

func (a *App) snapshot() Status {
	s := Status{
		Monitoring:          a.st.monitoring,
		PollerStatus:        a.st.pollText,
		LogDenied:           a.st.logDenied,
		Device:              a.st.device,
		LastEvent:           a.st.lastEvent,
		Track:               a.st.track,
		Discrepancy:         a.st.discrepancy,
		State:               a.st.deb.State,
		AutoSwitch:          a.cfg.AutoSwitch,
		UseFixedFamilyRates: a.cfg.UseFixedFamilyRates,
		ManualHold:          a.st.manualHold,
		LastError:           a.st.lastErr,
	}
	if a.st.poller != nil {
		s.PollAttempts = a.st.poller.Status().Attempts
	}
	if a.st.trackRate != 0 && a.st.device.ID != "" {
		effective := rate.Resolve(a.st.trackRate, a.cfg.Policy())
		if t, ok := rate.ClosestSupported(effective, a.st.device.SupportedRates); ok {
			s.TargetRate = t
		}
	}
	if in := a.st.deb.InFlight; in != nil {
		s.Applying = true
		s.ApplyTarget = in.Rate
	}
	if p := a.st.deb.Pending; p != nil {
		s.Pending = p.Rate
	}
	return s
}
