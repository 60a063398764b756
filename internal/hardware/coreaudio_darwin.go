//go:build darwin

package hardware

/*
#cgo LDFLAGS: -framework CoreAudio -framework CoreFoundation
#include <CoreAudio/CoreAudio.h>
#include <CoreFoundation/CoreFoundation.h>

static AudioObjectPropertyAddress globalAddress(AudioObjectPropertySelector sel) {
    AudioObjectPropertyAddress addr = { sel, kAudioObjectPropertyScopeGlobal, 0 };
    return addr;
}

static OSStatus rtDefaultOutput(AudioObjectID *out) {
    AudioObjectPropertyAddress addr = globalAddress(kAudioHardwarePropertyDefaultOutputDevice);
    UInt32 size = sizeof(AudioObjectID);
    return AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, out);
}

static OSStatus rtNominalRate(AudioObjectID dev, Float64 *out) {
    AudioObjectPropertyAddress addr = globalAddress(kAudioDevicePropertyNominalSampleRate);
    UInt32 size = sizeof(Float64);
    return AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, out);
}

static OSStatus rtSetNominalRate(AudioObjectID dev, Float64 rate) {
    AudioObjectPropertyAddress addr = globalAddress(kAudioDevicePropertyNominalSampleRate);
    return AudioObjectSetPropertyData(dev, &addr, 0, NULL, sizeof(Float64), &rate);
}

static OSStatus rtRangeCount(AudioObjectID dev, UInt32 *count) {
    AudioObjectPropertyAddress addr = globalAddress(kAudioDevicePropertyAvailableNominalSampleRates);
    UInt32 size = 0;
    OSStatus st = AudioObjectGetPropertyDataSize(dev, &addr, 0, NULL, &size);
    *count = size / sizeof(AudioValueRange);
    return st;
}

static OSStatus rtRanges(AudioObjectID dev, AudioValueRange *out, UInt32 *count) {
    AudioObjectPropertyAddress addr = globalAddress(kAudioDevicePropertyAvailableNominalSampleRates);
    UInt32 size = *count * sizeof(AudioValueRange);
    OSStatus st = AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, out);
    *count = size / sizeof(AudioValueRange);
    return st;
}

static OSStatus rtName(AudioObjectID dev, char *buf, UInt32 len) {
    AudioObjectPropertyAddress addr = globalAddress(kAudioObjectPropertyName);
    CFStringRef name = NULL;
    UInt32 size = sizeof(CFStringRef);
    OSStatus st = AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, &name);
    if (st != noErr) {
        return st;
    }
    if (name == NULL) {
        return -1;
    }
    Boolean ok = CFStringGetCString(name, buf, len, kCFStringEncodingUTF8);
    CFRelease(name);
    return ok ? noErr : -1;
}
*/
import "C"

import (
	"context"
	"fmt"
	"strconv"
	"unsafe"
)

type coreAudio struct{}

// NewSystem returns the CoreAudio endpoint.
func NewSystem() (SystemEndpoint, error) {
	return &coreAudio{}, nil
}

func parseObjectID(id string) (C.AudioObjectID, error) {
	v, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q: %w", id, err)
	}
	return C.AudioObjectID(v), nil
}

func osStatus(op string, st C.OSStatus) error {
	if st == 0 {
		return nil
	}
	return fmt.Errorf("%s: OSStatus %d", op, int32(st))
}

func (c *coreAudio) DefaultOutput(ctx context.Context) (string, error) {
	var dev C.AudioObjectID
	if err := osStatus("default output device", C.rtDefaultOutput(&dev)); err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(dev), 10), nil
}

func (c *coreAudio) Name(ctx context.Context, id string) (string, error) {
	dev, err := parseObjectID(id)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 256)
	st := C.rtName(dev, (*C.char)(unsafe.Pointer(&buf[0])), C.UInt32(len(buf)))
	if err := osStatus("device name", st); err != nil {
		return "", err
	}
	return C.GoString((*C.char)(unsafe.Pointer(&buf[0]))), nil
}

func (c *coreAudio) NominalRate(ctx context.Context, id string) (float64, error) {
	dev, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}
	var hz C.Float64
	if err := osStatus("nominal rate", C.rtNominalRate(dev, &hz)); err != nil {
		return 0, err
	}
	return float64(hz), nil
}

func (c *coreAudio) AvailableRates(ctx context.Context, id string) ([]Range, error) {
	dev, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var count C.UInt32
	if err := osStatus("available rates size", C.rtRangeCount(dev, &count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	raw := make([]C.AudioValueRange, int(count))
	if err := osStatus("available rates", C.rtRanges(dev, &raw[0], &count)); err != nil {
		return nil, err
	}

	ranges := make([]Range, 0, int(count))
	for _, r := range raw[:int(count)] {
		ranges = append(ranges, Range{Min: float64(r.mMinimum), Max: float64(r.mMaximum)})
	}
	return ranges, nil
}

func (c *coreAudio) SetNominalRate(ctx context.Context, id string, hz float64) error {
	dev, err := parseObjectID(id)
	if err != nil {
		return err
	}
	return osStatus("set nominal rate", C.rtSetNominalRate(dev, C.Float64(hz)))
}

func (c *coreAudio) Close() error {
	return nil
}
