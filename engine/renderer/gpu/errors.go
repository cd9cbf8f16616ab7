package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotCreated is returned when an operation is issued before
	// Startup has completed.
	ErrDeviceNotCreated = errors.New("graphics device has not been created")

	// ErrDeviceDestroyed is returned when an operation is issued after
	// Shutdown, or through a handle whose owning device was torn down.
	ErrDeviceDestroyed = errors.New("graphics device was destroyed")
)

// disposedError reports use of a resource that was destroyed, either
// individually or as part of device teardown.
func disposedError(r *resource) error {
	if r.device != nil && r.device.destroyed {
		return fmt.Errorf("%s %q: %w", r.kind, r.name, ErrDeviceDestroyed)
	}
	return fmt.Errorf("%s %q was destroyed", r.kind, r.name)
}

func argumentError(format string, args ...interface{}) error {
	return fmt.Errorf("invalid argument: "+format, args...)
}
