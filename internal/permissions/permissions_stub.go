//go:build !darwin

package permissions

import (
	"context"
	"errors"
)

// Hint describes how to grant log access.
func Hint() string {
	return "Add your user to the systemd-journal group: sudo usermod -aG systemd-journal $USER"
}

// OpenSettings has no settings pane to open outside macOS.
func OpenSettings(ctx context.Context) error {
	return errors.New("no privacy settings pane on this platform")
}
