package device

import "errors"

var (
	// ErrDeviceUnavailable means the transport interface could not be
	// claimed. Not retryable.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrTransientBusy is the retryable error class: the device rejected a
	// control transfer because firmware was mid register application.
	ErrTransientBusy = errors.New("device busy")

	// ErrDeviceClosing is returned for any command issued after shutdown
	// has begun. No transport attempt is made.
	ErrDeviceClosing = errors.New("device closing")
)

// IsTransient reports whether err is in the retryable busy class.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientBusy)
}
