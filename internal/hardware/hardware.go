// Package hardware controls the nominal sample rate of the audio output device.
package hardware

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/petems/rate-tray/internal/rate"
)

var (
	// ErrUnsupportedRate is returned before any hardware call when the
	// device does not advertise the requested rate.
	ErrUnsupportedRate = errors.New("rate not supported by device")
	// ErrHardwareRejected means the OS refused the set call. The device
	// keeps its previous rate.
	ErrHardwareRejected = errors.New("hardware rejected rate change")
)

// Range is a span of nominal rates the device reports. Discrete rates have
// Min == Max.
type Range struct {
	Min, Max float64
}

// Endpoint is the OS audio endpoint.
type Endpoint interface {
	DefaultOutput(ctx context.Context) (string, error)
	Name(ctx context.Context, id string) (string, error)
	NominalRate(ctx context.Context, id string) (float64, error)
	AvailableRates(ctx context.Context, id string) ([]Range, error)
	SetNominalRate(ctx context.Context, id string, hz float64) error
}

// SystemEndpoint is an Endpoint that holds OS resources.
type SystemEndpoint interface {
	Endpoint
	io.Closer
}

type ChangeKind int

const (
	DeviceChanged ChangeKind = iota
	RateChanged
)

func (k ChangeKind) String() string {
	if k == RateChanged {
		return "rate"
	}
	return "device"
}

// Change is a notification that the device or its rate changed outside our
// control.
type Change struct {
	Kind     ChangeKind
	DeviceID string
}

// Notifier is implemented by endpoints that push change notifications. The
// channel is closed when ctx is done.
type Notifier interface {
	Changes(ctx context.Context) <-chan Change
}

// Device is a snapshot of one output device.
type Device struct {
	ID             string
	Name           string
	NominalRate    rate.Hz
	SupportedRates []rate.Hz
}

// Supports reports whether h is in the device's supported set.
func (d Device) Supports(h rate.Hz) bool {
	for _, s := range d.SupportedRates {
		if s == h {
			return true
		}
	}
	return false
}

// Discrepancy records a set call the hardware accepted at a different rate.
// It is not an error.
type Discrepancy struct {
	Requested rate.Hz
	Actual    float64
}

// Result describes a completed set call.
type Result struct {
	DeviceID    string
	Requested   rate.Hz
	Actual      float64
	Discrepancy *Discrepancy
}

// ActualHz is Actual rounded to whole hertz.
func (r Result) ActualHz() rate.Hz {
	return toHz(r.Actual)
}

func toHz(f float64) rate.Hz {
	return rate.Hz(math.Round(f))
}
