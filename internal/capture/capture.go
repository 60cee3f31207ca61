// Package capture abstracts the camera owned by an attendance session.
package capture

import (
	"context"
	"errors"
	"image"
)

// ErrDeviceUnavailable means the capture device could not be opened or
// claimed. It is fatal for the session: no partial session may start.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Source produces one frame per call. A session acquires the source
// exclusively at start and must release it on every exit path.
type Source interface {
	// Acquire claims the device. Returns ErrDeviceUnavailable when the
	// device cannot be opened or is held by another session.
	Acquire(ctx context.Context) error
	// ReadFrame blocks until the next frame is available.
	ReadFrame(ctx context.Context) (image.Image, error)
	// Release frees the device for the next session. Safe to call more
	// than once.
	Release() error
}
