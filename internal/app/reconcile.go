package app

import (
	"context"
	"time"

	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/trackinfo"
)

// reconcileLoop re-reads the device on a fixed period so that changes made
// behind our back (another app, a hot-swapped DAC) are corrected.
func (a *App) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(a.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

func (a *App) trackLoop(ctx context.Context) {
	ticker := time.NewTicker(a.trackInterval)
	defer ticker.Stop()

	for {
		a.pollTrack(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) pollTrack(ctx context.Context) {
	t, err := a.tracks.Current(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Debug().Err(err).Msg("Failed to read track info")
		}
		return
	}
	_ = a.post(ctx, func() { a.onTrack(t) })
}

func (a *App) watchDevice(ctx context.Context, n hardware.Notifier) {
	for ch := range n.Changes(ctx) {
		a.log.Debug().Str("kind", ch.Kind.String()).Str("device", ch.DeviceID).Msg("Device change notification")
		a.refresh(ctx)
	}
}

// refresh snapshots the device off the Run goroutine and hands the result
// back to it.
func (a *App) refresh(ctx context.Context) {
	dev, err := a.hw.Snapshot(ctx, a.deviceID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.log.Warn().Err(err).Msg("Failed to read device state")
		_ = a.post(ctx, func() { a.onSnapshotError(err) })
		return
	}
	_ = a.post(ctx, func() { a.onSnapshot(dev) })
}

func (a *App) onSnapshotError(err error) {
	a.st.lastErr = err.Error()
	a.st.snapshotFailed = true
	a.publish(StatusChanged, nil)
}

func (a *App) onSnapshot(dev hardware.Device) {
	changed := dev.ID != a.st.device.ID || dev.NominalRate != a.st.device.NominalRate
	a.st.device = dev
	if a.st.snapshotFailed {
		a.st.snapshotFailed = false
		a.st.lastErr = ""
		changed = true
	}
	if a.st.discrepancy != nil && a.st.discrepancy.Requested == dev.NominalRate {
		a.st.discrepancy = nil
	}
	a.reconcile()
	if changed {
		a.publish(DeviceUpdated, nil)
	}
}

// reconcile offers the current track's target again when the device has
// drifted away from it by more than 1 Hz.
func (a *App) reconcile() {
	if !a.st.monitoring || !a.cfg.AutoSwitch || a.st.manualHold {
		return
	}
	if a.st.trackRate == 0 || a.st.device.ID == "" {
		return
	}
	target, ok := a.targetFor(a.st.trackRate)
	if !ok {
		return
	}
	diff := target - a.st.device.NominalRate
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return
	}
	a.log.Info().
		Int("current", int(a.st.device.NominalRate)).
		Int("target", int(target)).
		Msg("Device drifted from track rate, reapplying")
	a.offer(target)
}

func (a *App) onTrack(t trackinfo.Track) {
	if t == a.st.track {
		return
	}
	a.st.track = t
	a.log.Debug().Str("track", t.String()).Msg("Now playing")
	a.publish(TrackChanged, nil)
}
