package hardware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/petems/rate-tray/internal/rate"
	"github.com/rs/zerolog"
)

const (
	// SettleDelay is how long the device gets to apply a new rate before it
	// is read back.
	SettleDelay = 100 * time.Millisecond
	// quantizationTolerance is the largest difference between requested and
	// actual rate that still counts as an exact match.
	quantizationTolerance = 1.0
)

// Controller is the only component that talks to the Endpoint.
type Controller struct {
	ep     Endpoint
	log    zerolog.Logger
	settle time.Duration
}

func NewController(ep Endpoint, log zerolog.Logger) *Controller {
	return &Controller{
		ep:     ep,
		log:    log,
		settle: SettleDelay,
	}
}

// Endpoint returns the underlying endpoint.
func (c *Controller) Endpoint() Endpoint {
	return c.ep
}

func (c *Controller) resolveID(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	id, err := c.ep.DefaultOutput(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get default output device: %w", err)
	}
	return id, nil
}

// Snapshot reads the device's current state. An empty id means the default
// output device.
func (c *Controller) Snapshot(ctx context.Context, id string) (Device, error) {
	id, err := c.resolveID(ctx, id)
	if err != nil {
		return Device{}, err
	}

	name, err := c.ep.Name(ctx, id)
	if err != nil {
		c.log.Debug().Err(err).Str("device", id).Msg("Failed to read device name")
		name = id
	}

	nominal, err := c.ep.NominalRate(ctx, id)
	if err != nil {
		return Device{}, fmt.Errorf("failed to read nominal rate of %s: %w", id, err)
	}

	supported, err := c.SupportedRates(ctx, id)
	if err != nil {
		return Device{}, err
	}

	return Device{
		ID:             id,
		Name:           name,
		NominalRate:    toHz(nominal),
		SupportedRates: supported,
	}, nil
}

// SupportedRates returns the canonical rates the device can run at, ascending.
// Continuous ranges are intersected with the canonical table.
func (c *Controller) SupportedRates(ctx context.Context, id string) ([]rate.Hz, error) {
	id, err := c.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	ranges, err := c.ep.AvailableRates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read available rates of %s: %w", id, err)
	}
	return canonicalIn(ranges), nil
}

func canonicalIn(ranges []Range) []rate.Hz {
	var out []rate.Hz
	for _, h := range rate.Canonical {
		f := float64(h)
		for _, r := range ranges {
			if f >= r.Min-0.5 && f <= r.Max+0.5 {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// SetNominalRate asks the device to run at target, waits for it to settle and
// reads the rate back. A read-back that differs by more than 1 Hz is reported
// as a Discrepancy on an otherwise successful Result.
func (c *Controller) SetNominalRate(ctx context.Context, id string, target rate.Hz) (Result, error) {
	id, err := c.resolveID(ctx, id)
	if err != nil {
		return Result{}, err
	}

	supported, err := c.SupportedRates(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !target.IsCanonical() || !contains(supported, target) {
		return Result{}, fmt.Errorf("%w: %s on device %s (supported %v)", ErrUnsupportedRate, target, id, supported)
	}

	log := c.log.With().Str("device", id).Int("target", int(target)).Logger()
	log.Info().Msg("Setting nominal rate")

	if err := c.ep.SetNominalRate(ctx, id, float64(target)); err != nil {
		log.Error().Err(err).Msg("Set nominal rate failed")
		return Result{}, fmt.Errorf("%w: %s on device %s: %v", ErrHardwareRejected, target, id, err)
	}

	if c.settle > 0 {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(c.settle):
		}
	}

	actual, err := c.ep.NominalRate(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read back nominal rate of %s: %w", id, err)
	}

	res := Result{DeviceID: id, Requested: target, Actual: actual}
	if math.Abs(actual-float64(target)) > quantizationTolerance {
		res.Discrepancy = &Discrepancy{Requested: target, Actual: actual}
		log.Warn().Float64("actual", actual).Msg("Device quantized requested rate")
	} else {
		log.Info().Float64("actual", actual).Msg("Nominal rate applied")
	}
	return res, nil
}

func contains(set []rate.Hz, h rate.Hz) bool {
	for _, s := range set {
		if s == h {
			return true
		}
	}
	return false
}
