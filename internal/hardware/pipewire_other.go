//go:build !darwin

package hardware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/rate-tray/internal/rate"
)

// pipeWire drives the PipeWire graph rate through pw-metadata and probes the
// default output device's capabilities through PortAudio.
type pipeWire struct{}

// NewSystem returns the PipeWire endpoint.
func NewSystem() (SystemEndpoint, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &pipeWire{}, nil
}

func (p *pipeWire) metadata(ctx context.Context, args ...string) (map[string]string, error) {
	cmd := exec.CommandContext(ctx, "pw-metadata", append([]string{"-n", "settings", "0"}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pw-metadata: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parsePWMetadata(stdout.String()), nil
}

func (p *pipeWire) DefaultOutput(ctx context.Context) (string, error) {
	return graphID, nil
}

func (p *pipeWire) Name(ctx context.Context, id string) (string, error) {
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return "", fmt.Errorf("failed to get default output device: %w", err)
	}
	return dev.Name, nil
}

// NominalRate prefers the rate the running sink actually negotiated, so a
// forced rate the driver could not honour shows up as a discrepancy. With
// nothing playing it falls back to the graph clock settings.
func (p *pipeWire) NominalRate(ctx context.Context, id string) (float64, error) {
	if out, err := exec.CommandContext(ctx, "pw-dump").Output(); err == nil {
		if hz, ok := pwDumpRate(out); ok {
			return hz, nil
		}
	}

	kv, err := p.metadata(ctx)
	if err != nil {
		return 0, err
	}
	hz, ok := pwClockRate(kv)
	if !ok {
		return 0, fmt.Errorf("pw-metadata reported no clock rate")
	}
	return hz, nil
}

func (p *pipeWire) AvailableRates(ctx context.Context, id string) ([]Range, error) {
	kv, err := p.metadata(ctx)
	if err != nil {
		return nil, err
	}
	allowed := pwAllowedRates(kv)

	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to get default output device: %w", err)
	}
	channels := dev.MaxOutputChannels
	if channels > 2 {
		channels = 2
	}

	var ranges []Range
	for _, h := range rate.Canonical {
		if len(allowed) > 0 && !containsFloat(allowed, float64(h)) {
			continue
		}
		params := portaudio.StreamParameters{
			Output: portaudio.StreamDeviceParameters{
				Device:   dev,
				Channels: channels,
				Latency:  dev.DefaultLowOutputLatency,
			},
			SampleRate:      float64(h),
			FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
		}
		if err := portaudio.IsFormatSupported(params, make([]float32, 0)); err != nil {
			continue
		}
		ranges = append(ranges, Range{Min: float64(h), Max: float64(h)})
	}
	return ranges, nil
}

func (p *pipeWire) SetNominalRate(ctx context.Context, id string, hz float64) error {
	_, err := p.metadata(ctx, "clock.force-rate", strconv.FormatFloat(hz, 'f', 0, 64))
	return err
}

// Changes follows the settings metadata (graph rate) and the default
// metadata (default sink) with `pw-metadata -m`.
func (p *pipeWire) Changes(ctx context.Context) <-chan Change {
	out := make(chan Change, 8)
	var wg sync.WaitGroup
	for _, name := range []string{"settings", "default"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			p.monitor(ctx, name, out)
		}(name)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (p *pipeWire) monitor(ctx context.Context, name string, out chan<- Change) {
	cmd := exec.CommandContext(ctx, "pw-metadata", "-m", "-n", name)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return
	}
	if err := cmd.Start(); err != nil {
		return
	}
	defer cmd.Wait()

	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		ch, ok := pwChange(sc.Text())
		if !ok {
			continue
		}
		select {
		case out <- ch:
		case <-ctx.Done():
			return
		}
	}
}

func (p *pipeWire) Close() error {
	return portaudio.Terminate()
}

func containsFloat(set []float64, v float64) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
