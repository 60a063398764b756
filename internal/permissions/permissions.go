// Package permissions checks that the system log is readable and tells the
// user how to fix it when it is not.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petems/rate-tray/internal/logsource"
)

// ErrLogAccess means the process may not read the system log.
var ErrLogAccess = errors.New("system log access not granted")

// CheckLogAccess runs a one-second query against src.
func CheckLogAccess(ctx context.Context, src logsource.Source) (bool, error) {
	_, err := src.Fetch(ctx, logsource.CursorAt(time.Now().Add(-time.Second)), nil)
	if errors.Is(err, logsource.ErrPermissionDenied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnsurePermissions checks log access and prints guidance if it is missing
func EnsurePermissions(ctx context.Context, src logsource.Source) error {
	ok, err := CheckLogAccess(ctx, src)
	if err != nil {
		return fmt.Errorf("failed to probe system log: %w", err)
	}
	if !ok {
		fmt.Println("⚠️  Permission to read the system log is required")
		fmt.Println("   " + Hint())
		return ErrLogAccess
	}
	return nil
}
