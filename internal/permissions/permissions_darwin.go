//go:build darwin

package permissions

import (
	"context"
	"os/exec"
)

const privacyPane = "x-apple.systempreferences:com.apple.preference.security?Privacy_AllFiles"

// Hint describes how to grant log access.
func Hint() string {
	return "Run as an administrator, or go to: System Settings → Privacy & Security → Full Disk Access"
}

// OpenSettings opens the Privacy & Security pane
func OpenSettings(ctx context.Context) error {
	return exec.CommandContext(ctx, "open", privacyPane).Run()
}
