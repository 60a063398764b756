// Package debounce coalesces bursts of rate targets into single hardware
// applies.
//
// A Debouncer is Idle, Pending (a target waits for its quiescence window to
// pass) or Applying (one set call is in flight). Every state change happens
// on the goroutine running Run; callers only send requests. A target that
// arrives while Applying waits until the in-flight call returns, so at most
// one apply per debouncer is ever outstanding.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petems/rate-tray/internal/rate"
	"github.com/rs/zerolog"
)

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("debouncer stopped")

type State int

const (
	Idle State = iota
	Pending
	Applying
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applying:
		return "applying"
	default:
		return "idle"
	}
}

// Target is a rate to apply to a device.
type Target struct {
	DeviceID string
	Rate     rate.Hz
}

// PendingTarget is superseded, never merged, by newer targets.
type PendingTarget struct {
	Target
	Deadline time.Time
	Manual   bool
}

// ApplyFunc performs the hardware change and returns the rate the device
// ended up at.
type ApplyFunc func(ctx context.Context, t Target) (rate.Hz, error)

// Snapshot is the externally visible debouncer state.
type Snapshot struct {
	State    State
	Pending  *PendingTarget
	InFlight *Target
}

type Options struct {
	Apply  ApplyFunc
	Logger zerolog.Logger
	// OnChange runs on the debouncer goroutine after every state change and
	// must not block.
	OnChange func(Snapshot)
	// Now defaults to time.Now.
	Now func() time.Time
}

type Debouncer struct {
	apply    ApplyFunc
	log      zerolog.Logger
	onChange func(Snapshot)
	now      func() time.Time

	reqs    chan request
	stopped chan struct{}

	mu   sync.Mutex
	snap Snapshot
}

type requestKind int

const (
	reqOffer requestKind = iota
	reqOverride
	reqCancel
)

type request struct {
	kind    requestKind
	target  Target
	current rate.Hz
	window  time.Duration
}

type applyResult struct {
	target Target
	actual rate.Hz
	err    error
}

func New(opts Options) *Debouncer {
	d := &Debouncer{
		apply:    opts.Apply,
		log:      opts.Logger,
		onChange: opts.OnChange,
		now:      opts.Now,
		reqs:     make(chan request, 16),
		stopped:  make(chan struct{}),
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Offer proposes a new target. A target equal to the device's current rate
// clears any pending target; anything else replaces it and restarts the
// window.
func (d *Debouncer) Offer(ctx context.Context, t Target, current rate.Hz, window time.Duration) error {
	return d.send(ctx, request{kind: reqOffer, target: t, current: current, window: window})
}

// Override applies t immediately, dropping any pending target.
func (d *Debouncer) Override(ctx context.Context, t Target) error {
	return d.send(ctx, request{kind: reqOverride, target: t})
}

// Cancel drops the pending target. An in-flight apply is not interrupted.
func (d *Debouncer) Cancel(ctx context.Context) error {
	return d.send(ctx, request{kind: reqCancel})
}

func (d *Debouncer) send(ctx context.Context, r request) error {
	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}
	select {
	case d.reqs <- r:
		return nil
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (d *Debouncer) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// Run processes requests until ctx is done. It may only be called once.
func (d *Debouncer) Run(ctx context.Context) error {
	defer close(d.stopped)

	var (
		pending  *PendingTarget
		inFlight *Target
		current  rate.Hz
		timer    *time.Timer
		timerC   <-chan time.Time
		done     = make(chan applyResult, 1)
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	arm := func(deadline time.Time) {
		stopTimer()
		wait := deadline.Sub(d.now())
		if wait < 0 {
			wait = 0
		}
		timer = time.NewTimer(wait)
		timerC = timer.C
	}
	start := func(t Target) {
		stopTimer()
		pending = nil
		inFlight = &t
		d.log.Debug().Str("device", t.DeviceID).Int("target", int(t.Rate)).Msg("Applying rate")
		go func() {
			actual, err := d.apply(ctx, t)
			done <- applyResult{target: t, actual: actual, err: err}
		}()
	}
	publish := func() {
		s := Snapshot{State: Idle}
		if pending != nil {
			p := *pending
			s.State, s.Pending = Pending, &p
		}
		if inFlight != nil {
			f := *inFlight
			s.State, s.InFlight = Applying, &f
		}
		d.mu.Lock()
		d.snap = s
		d.mu.Unlock()
		if d.onChange != nil {
			d.onChange(s)
		}
	}

	defer stopTimer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case r := <-d.reqs:
			switch r.kind {
			case reqOffer:
				if inFlight != nil {
					if r.target == *inFlight {
						pending = nil
					} else {
						pending = &PendingTarget{Target: r.target, Deadline: d.now().Add(r.window)}
					}
					break
				}
				current = r.current
				if r.target.Rate == current {
					stopTimer()
					pending = nil
					break
				}
				pending = &PendingTarget{Target: r.target, Deadline: d.now().Add(r.window)}
				arm(pending.Deadline)

			case reqOverride:
				if inFlight != nil {
					pending = &PendingTarget{Target: r.target, Deadline: d.now(), Manual: true}
					break
				}
				start(r.target)

			case reqCancel:
				stopTimer()
				pending = nil
			}
			publish()

		case <-timerC:
			timer, timerC = nil, nil
			if pending != nil && inFlight == nil {
				start(pending.Target)
				publish()
			}

		case res := <-done:
			inFlight = nil
			if res.err != nil {
				d.log.Warn().Err(res.err).Int("target", int(res.target.Rate)).Msg("Apply failed")
			} else {
				current = res.actual
			}
			if pending != nil {
				switch {
				case !pending.Manual && pending.Rate == current:
					pending = nil
				case pending.Manual || !d.now().Before(pending.Deadline):
					start(pending.Target)
				default:
					arm(pending.Deadline)
				}
			}
			publish()
		}
	}
}
