package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/petems/rate-tray/internal/config"
	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/logsource"
	"github.com/petems/rate-tray/internal/rate"
	"github.com/petems/rate-tray/internal/trackinfo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing
type mockSource struct {
	mu      sync.Mutex
	pending []string
	err     error
}

func (m *mockSource) push(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, text)
}

func (m *mockSource) Fetch(ctx context.Context, since logsource.Cursor, subsystems []string) ([]logsource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []logsource.Record
	for _, text := range m.pending {
		out = append(out, logsource.Record{Subsystem: "com.apple.Music", Text: text, Timestamp: time.Now()})
	}
	m.pending = nil
	return out, nil
}

type mockEndpoint struct {
	mu        sync.Mutex
	nominal   float64
	supported []rate.Hz
	quantize  map[float64]float64
	sets      []float64
}

func (m *mockEndpoint) DefaultOutput(ctx context.Context) (string, error) { return "42", nil }

func (m *mockEndpoint) Name(ctx context.Context, id string) (string, error) { return "Test DAC", nil }

func (m *mockEndpoint) NominalRate(ctx context.Context, id string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nominal, nil
}

func (m *mockEndpoint) AvailableRates(ctx context.Context, id string) ([]hardware.Range, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []hardware.Range
	for _, h := range m.supported {
		out = append(out, hardware.Range{Min: float64(h), Max: float64(h)})
	}
	return out, nil
}

func (m *mockEndpoint) SetNominalRate(ctx context.Context, id string, hz float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, hz)
	if q, ok := m.quantize[hz]; ok {
		hz = q
	}
	m.nominal = hz
	return nil
}

func (m *mockEndpoint) rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nominal
}

// setExternally simulates another application changing the device.
func (m *mockEndpoint) setExternally(hz float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nominal = hz
}

func (m *mockEndpoint) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets)
}

type staticTracks struct{ t trackinfo.Track }

func (s staticTracks) Current(ctx context.Context) (trackinfo.Track, error) { return s.t, nil }

type harness struct {
	app *App
	src *mockSource
	ep  *mockEndpoint
	cfg *config.Config
}

// notifyingEndpoint pushes device changes the way the OS endpoints do.
type notifyingEndpoint struct {
	*mockEndpoint
	changes chan hardware.Change
}

func (n *notifyingEndpoint) Changes(ctx context.Context) <-chan hardware.Change {
	out := make(chan hardware.Change)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ch := <-n.changes:
				select {
				case out <- ch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func newHarness(t *testing.T, ep *mockEndpoint, tweak func(*config.Config)) *harness {
	t.Helper()
	return newHarnessWith(t, ep, ep, tweak, 50*time.Millisecond)
}

func newHarnessWith(t *testing.T, endpoint hardware.Endpoint, ep *mockEndpoint, tweak func(*config.Config), reconcile time.Duration) *harness {
	t.Helper()

	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	cfg.DebounceMs = config.MinDebounceMs
	if tweak != nil {
		tweak(cfg)
	}

	src := &mockSource{}
	a := New(Config{
		Hardware:          hardware.NewController(endpoint, zerolog.Nop()),
		Source:            src,
		Tracks:            staticTracks{t: trackinfo.Track{Title: "So What", Artist: "Miles Davis"}},
		Config:            cfg,
		Logger:            zerolog.Nop(),
		PollInterval:      10 * time.Millisecond,
		ReconcileInterval: reconcile,
		TrackInterval:     20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, a.Start(ctx))
	return &harness{app: a, src: src, ep: ep, cfg: cfg}
}

func newEndpoint(nominal rate.Hz, supported ...rate.Hz) *mockEndpoint {
	return &mockEndpoint{nominal: float64(nominal), supported: supported}
}

const waitFor = 3 * time.Second
const tick = 10 * time.Millisecond

func TestDetectedRateIsApplied(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100, rate.R48000, rate.R96000)
	h := newHarness(t, ep, nil)

	h.src.push("Playing Hi-Res Lossless 96 kHz")

	assert.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)
	assert.Eventually(t, func() bool {
		s := h.app.Status()
		return s.Device.NominalRate == rate.R96000 && s.LastEvent != nil && !s.Applying
	}, waitFor, tick)

	s := h.app.Status()
	assert.Equal(t, rate.R96000, s.LastEvent.Rate)
	assert.Equal(t, rate.R96000, s.TargetRate)
	assert.Nil(t, s.Discrepancy)
}

func TestUnsupportedRateFallsBackToClosest(t *testing.T) {
	ep := newEndpoint(rate.R48000, rate.R44100, rate.R48000, rate.R96000)
	h := newHarness(t, ep, nil)

	h.src.push("format: 192000 Hz")

	assert.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)
}

func TestReconcileRestoresExternallyChangedRate(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100, rate.R48000, rate.R96000)
	h := newHarness(t, ep, nil)

	h.src.push("Hi-Res Lossless 96 kHz")
	require.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)

	ep.setExternally(48000)

	assert.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)
}

func TestDeviceChangeNotificationTriggersReconcile(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100, rate.R48000, rate.R96000)
	notifier := &notifyingEndpoint{mockEndpoint: ep, changes: make(chan hardware.Change)}
	// No reconcile tick fires during the test.
	h := newHarnessWith(t, notifier, ep, nil, time.Hour)

	h.src.push("Hi-Res Lossless 96 kHz")
	require.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)
	require.Eventually(t, func() bool { return h.app.Status().Device.NominalRate == rate.R96000 }, waitFor, tick)

	ep.setExternally(44100)
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, float64(44100), ep.rate(), "nothing reacts before the notification")

	notifier.changes <- hardware.Change{Kind: hardware.RateChanged, DeviceID: "42"}

	assert.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)
}

func TestQuantizationIsSurfaced(t *testing.T) {
	ep := newEndpoint(rate.R48000, rate.R44100, rate.R48000)
	ep.quantize = map[float64]float64{44100: 44000}
	h := newHarness(t, ep, nil)

	h.src.push("Lossless 44.1 kHz")

	assert.Eventually(t, func() bool {
		d := h.app.Status().Discrepancy
		return d != nil && d.Requested == rate.R44100 && d.Actual == 44000
	}, waitFor, tick)
}

func TestFixedFamilyRates(t *testing.T) {
	ep := newEndpoint(rate.R48000, rate.R44100, rate.R48000, rate.R88200, rate.R96000)
	h := newHarness(t, ep, func(c *config.Config) {
		c.UseFixedFamilyRates = true
		c.Fixed44_1FamilyRate = int(rate.R88200)
	})

	h.src.push("Lossless 44.1 kHz")

	assert.Eventually(t, func() bool { return ep.rate() == 88200 }, waitFor, tick)
}

func TestAutoSwitchOffLeavesDeviceAlone(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100, rate.R96000)
	h := newHarness(t, ep, nil)

	require.NoError(t, h.app.SetAutoSwitch(context.Background(), false))
	h.src.push("Hi-Res Lossless 96 kHz")

	require.Eventually(t, func() bool { return h.app.Status().LastEvent != nil }, waitFor, tick)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, ep.setCount())
	assert.False(t, h.app.Status().AutoSwitch)

	saved, err := config.LoadFrom(h.cfg.Path())
	require.NoError(t, err)
	assert.False(t, saved.AutoSwitch)
}

func TestManualRateHoldsUntilNextTrack(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100, rate.R48000, rate.R96000)
	h := newHarness(t, ep, nil)

	h.src.push("Hi-Res Lossless 96 kHz")
	require.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)

	require.NoError(t, h.app.SetRate(context.Background(), rate.R48000))
	require.Eventually(t, func() bool { return ep.rate() == 48000 }, waitFor, tick)

	// Several reconcile periods pass without reverting the manual choice.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, float64(48000), ep.rate())
	assert.True(t, h.app.Status().ManualHold)

	h.src.push("Lossless 44.1 kHz")
	assert.Eventually(t, func() bool { return ep.rate() == 44100 }, waitFor, tick)
}

func TestSetRateRejectsNonCanonical(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100)
	h := newHarness(t, ep, nil)

	err := h.app.SetRate(context.Background(), 32000)
	assert.ErrorIs(t, err, hardware.ErrUnsupportedRate)
}

func TestPermissionDeniedEndsMonitoring(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100)
	h := newHarness(t, ep, nil)

	h.src.mu.Lock()
	h.src.err = logsource.ErrPermissionDenied
	h.src.mu.Unlock()

	assert.Eventually(t, func() bool {
		s := h.app.Status()
		return s.LogDenied && !s.Monitoring
	}, waitFor, tick)
	assert.Equal(t, "Insufficient privilege to read system log", h.app.Status().PollerStatus)
}

func TestTrackInfoIsPublished(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100)
	h := newHarness(t, ep, nil)

	assert.Eventually(t, func() bool {
		return h.app.Status().Track.String() == "Miles Davis - So What"
	}, waitFor, tick)
}

func TestSubscribeReceivesRateDetected(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100, rate.R96000)
	h := newHarness(t, ep, nil)

	events, unsubscribe := h.app.Subscribe()
	defer unsubscribe()

	h.src.push("Hi-Res Lossless 96 kHz")

	timeout := time.After(waitFor)
	for {
		select {
		case ev := <-events:
			if ev.Kind != RateDetected {
				continue
			}
			require.NotNil(t, ev.Rate)
			assert.Equal(t, rate.R96000, ev.Rate.Rate)
			return
		case <-timeout:
			t.Fatal("no rate-detected event")
		}
	}
}

func TestStopAndRestart(t *testing.T) {
	ep := newEndpoint(rate.R44100, rate.R44100, rate.R96000)
	h := newHarness(t, ep, nil)
	ctx := context.Background()

	require.NoError(t, h.app.Stop(ctx))
	assert.False(t, h.app.Status().Monitoring)
	assert.Equal(t, "Stopped", h.app.Status().PollerStatus)

	require.NoError(t, h.app.Start(ctx))
	assert.True(t, h.app.IsMonitoring())

	h.src.push("Hi-Res Lossless 96 kHz")
	assert.Eventually(t, func() bool { return ep.rate() == 96000 }, waitFor, tick)
}

func TestRequestsAfterRunReturnErrNotRunning(t *testing.T) {
	cfg := config.Default()
	a := New(Config{
		Hardware: hardware.NewController(newEndpoint(rate.R44100, rate.R44100), zerolog.Nop()),
		Source:   &mockSource{},
		Config:   cfg,
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = a.Run(ctx)

	assert.ErrorIs(t, a.Start(context.Background()), ErrNotRunning)
	assert.NoError(t, a.Shutdown(context.Background()))
}
