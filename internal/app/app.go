package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/petems/rate-tray/internal/config"
	"github.com/petems/rate-tray/internal/debounce"
	"github.com/petems/rate-tray/internal/detect"
	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/logsource"
	"github.com/petems/rate-tray/internal/poller"
	"github.com/petems/rate-tray/internal/rate"
	"github.com/petems/rate-tray/internal/trackinfo"
	"github.com/rs/zerolog"
)

// ErrNotRunning is returned by requests made while Run is not active.
var ErrNotRunning = errors.New("coordinator not running")

const (
	ReconcileInterval = 3 * time.Second
	TrackInterval     = 2 * time.Second
)

type Config struct {
	Hardware *hardware.Controller
	Source   logsource.Source
	Tracks   trackinfo.Provider // Optional - can be nil
	Config   *config.Config
	Logger   zerolog.Logger

	// Zero values use the package defaults.
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	TrackInterval     time.Duration
}

// App is the coordinator. All of its mutable state belongs to the goroutine
// running Run; other goroutines hand it work through ops.
type App struct {
	hw       *hardware.Controller
	src      logsource.Source
	tracks   trackinfo.Provider
	cfg      *config.Config
	log      zerolog.Logger
	deviceID string

	pollInterval      time.Duration
	reconcileInterval time.Duration
	trackInterval     time.Duration

	deb        *debounce.Debouncer
	ops        chan func()
	rateEvents chan detect.RateEvent
	debChanged chan struct{}
	running    atomic.Bool
	stopped    chan struct{}

	status atomic.Pointer[Status]
	subsMu sync.Mutex
	subs   map[chan Event]struct{}

	// Owned by the Run goroutine.
	st state
}

type state struct {
	ctx            context.Context
	monitoring     bool
	cancelMonitor  context.CancelFunc
	poller         *poller.Poller
	pollText       string
	logDenied      bool
	device         hardware.Device
	lastEvent      *detect.RateEvent
	trackRate      rate.Hz // last detected rate of the playing track
	manualHold     bool
	track          trackinfo.Track
	discrepancy    *hardware.Discrepancy
	deb            debounce.Snapshot
	lastErr        string
	snapshotFailed bool
}

func New(cfg Config) *App {
	a := &App{
		hw:                cfg.Hardware,
		src:               cfg.Source,
		tracks:            cfg.Tracks,
		cfg:               cfg.Config,
		log:               cfg.Logger,
		deviceID:          cfg.Config.DeviceID,
		pollInterval:      cfg.PollInterval,
		reconcileInterval: cfg.ReconcileInterval,
		trackInterval:     cfg.TrackInterval,
		ops:               make(chan func(), 32),
		rateEvents:        make(chan detect.RateEvent, 4),
		debChanged:        make(chan struct{}, 1),
		stopped:           make(chan struct{}),
		subs:              make(map[chan Event]struct{}),
	}
	if a.reconcileInterval <= 0 {
		a.reconcileInterval = ReconcileInterval
	}
	if a.trackInterval <= 0 {
		a.trackInterval = TrackInterval
	}
	a.deb = debounce.New(debounce.Options{
		Apply:  a.apply,
		Logger: a.log.With().Str("component", "debounce").Logger(),
		OnChange: func(debounce.Snapshot) {
			select {
			case a.debChanged <- struct{}{}:
			default:
			}
		},
	})
	a.st.pollText = "Stopped"
	a.status.Store(&Status{PollerStatus: "Stopped", AutoSwitch: a.cfg.AutoSwitch, UseFixedFamilyRates: a.cfg.UseFixedFamilyRates})
	return a
}

// Run owns the coordinator state until ctx is done. It does not start
// monitoring; call Start for that.
func (a *App) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}
	defer close(a.stopped)

	a.st.ctx = ctx
	debDone := make(chan struct{})
	go func() {
		defer close(debDone)
		if err := a.deb.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("Debouncer stopped")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			a.stopMonitoring()
			<-debDone
			return ctx.Err()
		case fn := <-a.ops:
			fn()
		case ev := <-a.rateEvents:
			a.onRateEvent(ev)
		case <-a.debChanged:
			a.onDebounceChange()
		}
	}
}

// post queues fn for the Run goroutine.
func (a *App) post(ctx context.Context, fn func()) error {
	select {
	case <-a.stopped:
		return ErrNotRunning
	default:
	}
	select {
	case a.ops <- fn:
		return nil
	case <-a.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the Run goroutine and waits for its result.
func (a *App) call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if err := a.post(ctx, func() { res <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-a.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start moves from Stopped to Monitoring: log polling, reconciliation and
// track-info polling begin. Starting again after a permission failure is the
// restart that failure requires.
func (a *App) Start(ctx context.Context) error {
	return a.call(ctx, func() error {
		a.startMonitoring()
		return nil
	})
}

// Stop cancels all periodic tasks and any pending rate change.
func (a *App) Stop(ctx context.Context) error {
	return a.call(ctx, func() error {
		a.stopMonitoring()
		return nil
	})
}

// Shutdown stops monitoring if the coordinator is still running.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return nil
}

func (a *App) startMonitoring() {
	if a.st.monitoring {
		return
	}
	mctx, cancel := context.WithCancel(a.st.ctx)
	a.st.monitoring = true
	a.st.cancelMonitor = cancel
	a.st.logDenied = false
	a.st.lastErr = ""

	var lastText string
	a.st.poller = poller.New(poller.Options{
		Source:     a.src,
		Subsystems: a.cfg.LogSubsystems,
		Interval:   a.pollInterval,
		Logger:     a.log.With().Str("component", "poller").Logger(),
		OnStatus: func(s poller.Status) {
			if s.Text == lastText {
				return
			}
			lastText = s.Text
			_ = a.post(mctx, func() { a.onPollerStatus(s) })
		},
	})

	p, rctx := a.st.poller, a.st.ctx
	go func() {
		err := p.Run(mctx, a.rateEvents)
		if errors.Is(err, logsource.ErrPermissionDenied) {
			_ = a.post(rctx, a.onLogDenied)
		}
	}()
	go a.reconcileLoop(mctx)
	if a.tracks != nil && a.cfg.TrackInfo {
		go a.trackLoop(mctx)
	}
	if n, ok := a.hw.Endpoint().(hardware.Notifier); ok {
		go a.watchDevice(mctx, n)
	}
	go a.refresh(mctx)

	a.log.Info().Msg("Monitoring started")
	a.publish(StatusChanged, nil)
}

func (a *App) stopMonitoring() {
	if !a.st.monitoring {
		return
	}
	a.st.cancelMonitor()
	a.st.monitoring = false
	a.st.cancelMonitor = nil
	if !a.st.logDenied {
		a.st.pollText = "Stopped"
	}
	if err := a.deb.Cancel(a.st.ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Debug().Err(err).Msg("Failed to cancel pending rate")
	}

	a.log.Info().Msg("Monitoring stopped")
	a.publish(StatusChanged, nil)
}

func (a *App) onPollerStatus(s poller.Status) {
	if !a.st.monitoring || a.st.logDenied {
		return
	}
	a.st.pollText = s.Text
	a.publish(StatusChanged, nil)
}

// onLogDenied ends the monitoring session. Nothing restarts it internally.
func (a *App) onLogDenied() {
	a.st.logDenied = true
	a.st.pollText = "Insufficient privilege to read system log"
	a.log.Error().Msg("System log not readable; monitoring stopped until restarted")
	a.stopMonitoring()
	a.publish(StatusChanged, nil)
}

func (a *App) onRateEvent(ev detect.RateEvent) {
	if !a.st.monitoring {
		return
	}
	a.st.lastEvent = &ev
	a.st.trackRate = ev.Rate
	a.st.manualHold = false

	a.log.Info().
		Int("rate", int(ev.Rate)).
		Str("source", ev.Source).
		Msg("Track rate detected")
	a.publish(RateDetected, &ev)

	if !a.cfg.AutoSwitch {
		return
	}
	if a.st.device.ID == "" {
		// Reconciled once the first snapshot arrives.
		return
	}
	target, ok := a.targetFor(ev.Rate)
	if !ok {
		return
	}
	a.offer(target)
}

// targetFor resolves a detected rate against policy and the device's
// supported set.
func (a *App) targetFor(detected rate.Hz) (rate.Hz, bool) {
	effective := rate.Resolve(detected, a.cfg.Policy())
	if !effective.IsCanonical() {
		return 0, false
	}
	target, ok := rate.ClosestSupported(effective, a.st.device.SupportedRates)
	if !ok {
		a.log.Warn().Str("device", a.st.device.ID).Msg("Device reports no supported canonical rates")
		return 0, false
	}
	if target != effective {
		a.log.Debug().Int("effective", int(effective)).Int("target", int(target)).Msg("Falling back to closest supported rate")
	}
	return target, true
}

func (a *App) offer(target rate.Hz) {
	t := debounce.Target{DeviceID: a.st.device.ID, Rate: target}
	if err := a.deb.Offer(a.st.ctx, t, a.st.device.NominalRate, a.cfg.Policy().DebounceWindow); err != nil {
		a.log.Warn().Err(err).Msg("Failed to queue rate change")
	}
}

// apply runs on a goroutine started by the debouncer.
func (a *App) apply(ctx context.Context, t debounce.Target) (rate.Hz, error) {
	log := a.log.With().Str("apply_id", uuid.NewString()).Logger()
	log.Debug().Str("device", t.DeviceID).Int("target", int(t.Rate)).Msg("Apply started")

	res, err := a.hw.SetNominalRate(ctx, t.DeviceID, t.Rate)
	if postErr := a.post(ctx, func() { a.onApplied(t, res, err) }); postErr != nil {
		log.Debug().Err(postErr).Msg("Dropped apply result")
	}
	if err != nil {
		return 0, err
	}
	return res.ActualHz(), nil
}

func (a *App) onApplied(t debounce.Target, res hardware.Result, err error) {
	if err != nil {
		a.st.lastErr = err.Error()
		a.log.Error().Err(err).Int("target", int(t.Rate)).Msg("Rate change failed")
		if errors.Is(err, hardware.ErrUnsupportedRate) && a.st.monitoring {
			// The device changed under us; a fresh snapshot picks a new
			// closest rate.
			go a.refresh(a.st.ctx)
		}
		a.publish(StatusChanged, nil)
		return
	}

	a.st.lastErr = ""
	if a.st.device.ID == res.DeviceID {
		a.st.device.NominalRate = res.ActualHz()
	}
	a.st.discrepancy = res.Discrepancy
	if res.Discrepancy != nil {
		a.publish(Quantized, nil)
		return
	}
	a.publish(DeviceUpdated, nil)
}

func (a *App) onDebounceChange() {
	s := a.deb.Snapshot()
	prev := a.st.deb
	a.st.deb = s
	if prev.State != s.State {
		a.publish(Transition, nil)
	}
}

// SetRate applies hz (or the closest rate the device supports) immediately.
// Automatic switching leaves the device alone until the next detected track.
func (a *App) SetRate(ctx context.Context, hz rate.Hz) error {
	if !hz.IsCanonical() {
		return fmt.Errorf("%w: %d Hz", hardware.ErrUnsupportedRate, hz)
	}
	dev, err := a.hw.Snapshot(ctx, a.deviceID)
	if err != nil {
		return err
	}
	return a.call(ctx, func() error {
		a.st.device = dev
		target, ok := rate.ClosestSupported(hz, dev.SupportedRates)
		if !ok {
			return fmt.Errorf("%w: device %s reports no supported rates", hardware.ErrUnsupportedRate, dev.ID)
		}
		a.st.manualHold = true
		a.log.Info().Int("requested", int(hz)).Int("target", int(target)).Msg("Manual rate change")
		return a.deb.Override(a.st.ctx, debounce.Target{DeviceID: dev.ID, Rate: target})
	})
}

// SetAutoSwitch turns automatic switching on or off and persists the choice.
func (a *App) SetAutoSwitch(ctx context.Context, on bool) error {
	return a.call(ctx, func() error {
		a.cfg.AutoSwitch = on
		if !on {
			if err := a.deb.Cancel(a.st.ctx); err != nil {
				return err
			}
		} else {
			a.reconcile()
		}
		a.publish(StatusChanged, nil)
		return a.cfg.Save()
	})
}

// SetFixedFamilyRates toggles family coalescing and persists the choice.
func (a *App) SetFixedFamilyRates(ctx context.Context, on bool) error {
	return a.call(ctx, func() error {
		a.cfg.UseFixedFamilyRates = on
		a.reconcile()
		a.publish(StatusChanged, nil)
		return a.cfg.Save()
	})
}

// IsMonitoring reports whether monitoring is active.
func (a *App) IsMonitoring() bool {
	return a.Status().Monitoring
}
