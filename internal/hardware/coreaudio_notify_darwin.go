//go:build darwin

package hardware

/*
#include <stdint.h>
#include <CoreAudio/CoreAudio.h>

extern void rtGoPropertyChanged(uintptr_t watcher, UInt32 selector, UInt32 object);

static OSStatus rtListener(AudioObjectID obj, UInt32 n, const AudioObjectPropertyAddress *addrs, void *data) {
    for (UInt32 i = 0; i < n; i++) {
        rtGoPropertyChanged((uintptr_t)data, addrs[i].mSelector, obj);
    }
    return noErr;
}

static OSStatus rtWatchedOutput(AudioObjectID *out) {
    AudioObjectPropertyAddress addr = { kAudioHardwarePropertyDefaultOutputDevice, kAudioObjectPropertyScopeGlobal, 0 };
    UInt32 size = sizeof(AudioObjectID);
    return AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, out);
}

static OSStatus rtAddListener(AudioObjectID obj, AudioObjectPropertySelector sel, uintptr_t watcher) {
    AudioObjectPropertyAddress addr = { sel, kAudioObjectPropertyScopeGlobal, 0 };
    return AudioObjectAddPropertyListener(obj, &addr, rtListener, (void *)watcher);
}

static OSStatus rtRemoveListener(AudioObjectID obj, AudioObjectPropertySelector sel, uintptr_t watcher) {
    AudioObjectPropertyAddress addr = { sel, kAudioObjectPropertyScopeGlobal, 0 };
    return AudioObjectRemovePropertyListener(obj, &addr, rtListener, (void *)watcher);
}
*/
import "C"

import (
	"context"
	"strconv"
	"sync"
)

const (
	selDefaultOutput = C.AudioObjectPropertySelector(C.kAudioHardwarePropertyDefaultOutputDevice)
	selNominalRate   = C.AudioObjectPropertySelector(C.kAudioDevicePropertyNominalSampleRate)
	systemObject     = C.AudioObjectID(C.kAudioObjectSystemObject)
)

// CoreAudio calls listeners on its own threads, possibly after removal, so
// callbacks find their watcher through this table and ignore unknown ids.
var (
	watchersMu  sync.Mutex
	watchers    = make(map[uintptr]chan Change)
	nextWatcher uintptr
)

func registerWatcher(raw chan Change) uintptr {
	watchersMu.Lock()
	defer watchersMu.Unlock()
	nextWatcher++
	watchers[nextWatcher] = raw
	return nextWatcher
}

func unregisterWatcher(id uintptr) {
	watchersMu.Lock()
	defer watchersMu.Unlock()
	delete(watchers, id)
}

//export rtGoPropertyChanged
func rtGoPropertyChanged(id C.uintptr_t, selector C.UInt32, object C.UInt32) {
	watchersMu.Lock()
	raw, ok := watchers[uintptr(id)]
	watchersMu.Unlock()
	if !ok {
		return
	}

	ch := Change{Kind: RateChanged, DeviceID: strconv.FormatUint(uint64(object), 10)}
	if C.AudioObjectPropertySelector(selector) == selDefaultOutput {
		ch = Change{Kind: DeviceChanged}
	}
	select {
	case raw <- ch:
	default:
		// A refresh is already queued
	}
}

// Changes reports default-output switches and nominal rate changes on the
// current default output. The rate listener follows the default device.
func (c *coreAudio) Changes(ctx context.Context) <-chan Change {
	out := make(chan Change, 8)
	raw := make(chan Change, 8)
	id := registerWatcher(raw)
	handle := C.uintptr_t(id)

	if err := osStatus("listen default output", C.rtAddListener(systemObject, selDefaultOutput, handle)); err != nil {
		unregisterWatcher(id)
		close(out)
		return out
	}

	var dev C.AudioObjectID
	listenRate := func() {
		if C.rtWatchedOutput(&dev) != 0 {
			dev = 0
			return
		}
		if C.rtAddListener(dev, selNominalRate, handle) != 0 {
			dev = 0
		}
	}
	listenRate()

	go func() {
		defer close(out)
		defer unregisterWatcher(id)
		defer C.rtRemoveListener(systemObject, selDefaultOutput, handle)

		for {
			select {
			case <-ctx.Done():
				if dev != 0 {
					C.rtRemoveListener(dev, selNominalRate, handle)
				}
				return
			case ch := <-raw:
				if ch.Kind == DeviceChanged {
					if dev != 0 {
						C.rtRemoveListener(dev, selNominalRate, handle)
					}
					listenRate()
					if dev != 0 {
						ch.DeviceID = strconv.FormatUint(uint64(dev), 10)
					}
				}
				select {
				case out <- ch:
				case <-ctx.Done():
				}
			}
		}
	}()
	return out
}
