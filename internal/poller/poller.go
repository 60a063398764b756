// Package poller turns the system log into a stream of detected sample rates.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petems/rate-tray/internal/detect"
	"github.com/petems/rate-tray/internal/logsource"
	"github.com/rs/zerolog"
)

// DefaultInterval is the fixed log polling period.
const DefaultInterval = 500 * time.Millisecond

// Status is diagnostic only; nothing makes control decisions from it.
type Status struct {
	Attempts int
	Text     string
	Denied   bool
}

type Options struct {
	Source     logsource.Source
	Subsystems []string
	Interval   time.Duration
	Logger     zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// OnStatus is called from the polling goroutine after every status change.
	OnStatus func(Status)
}

type Poller struct {
	src        logsource.Source
	subsystems []string
	interval   time.Duration
	log        zerolog.Logger
	now        func() time.Time
	onStatus   func(Status)

	mu     sync.Mutex
	status Status
}

func New(opts Options) *Poller {
	p := &Poller{
		src:        opts.Source,
		subsystems: opts.Subsystems,
		interval:   opts.Interval,
		log:        opts.Logger,
		now:        opts.Now,
		onStatus:   opts.OnStatus,
		status:     Status{Text: "Not started"},
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run polls until ctx is cancelled or the log becomes unreadable, sending at
// most one event per cycle to out. It returns logsource.ErrPermissionDenied in
// the latter case and does not restart itself.
func (p *Poller) Run(ctx context.Context, out chan<- detect.RateEvent) error {
	cursor := logsource.CursorAt(p.now())
	p.setStatus(func(s *Status) { s.Text = "Listening"; s.Denied = false })

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		ev, ok, next, err := p.poll(ctx, cursor)
		cursor = next
		if err != nil {
			if errors.Is(err, logsource.ErrPermissionDenied) {
				p.log.Error().Err(err).Msg("Log access lost, stopping poller")
				p.setStatus(func(s *Status) { s.Text = "Insufficient privilege to read system log"; s.Denied = true })
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn().Err(err).Msg("Log fetch failed")
			p.setStatus(func(s *Status) { s.Text = fmt.Sprintf("Log read failed: %v", err) })
			continue
		}
		if !ok {
			continue
		}

		p.setStatus(func(s *Status) { s.Text = "Detected " + ev.Rate.String() })
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// poll runs one cycle. The returned cursor always advances, so a cycle that
// finds nothing never re-scans the same range.
func (p *Poller) poll(ctx context.Context, cursor logsource.Cursor) (detect.RateEvent, bool, logsource.Cursor, error) {
	now := p.now()
	p.setStatus(func(s *Status) { s.Attempts++ })

	records, err := p.src.Fetch(ctx, cursor, p.subsystems)
	next := logsource.CursorAt(now)
	if err != nil {
		return detect.RateEvent{}, false, next, err
	}

	for _, r := range records {
		m, ok := detect.Find(r.Text)
		if !ok {
			continue
		}
		p.log.Debug().
			Int("rate", int(m.Rate)).
			Str("pattern", m.Pattern).
			Str("source", r.Subsystem).
			Msg("Rate detected")
		return detect.RateEvent{
			Rate:      m.Rate,
			Timestamp: r.Timestamp,
			Source:    r.Subsystem,
			Raw:       r.Text,
		}, true, next, nil
	}
	return detect.RateEvent{}, false, next, nil
}

// Status returns the latest diagnostic status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) setStatus(fn func(*Status)) {
	p.mu.Lock()
	fn(&p.status)
	s := p.status
	p.mu.Unlock()

	if p.onStatus != nil {
		p.onStatus(s)
	}
}
