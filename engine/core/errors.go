package core

import (
	"errors"
)

var (
	ErrInitialization    = errors.New("render surface initialization failed")
	ErrNoAdapter         = errors.New("no suitable graphics adapter found")
	ErrNoSurfaceFormat   = errors.New("no supported presentation format")
	ErrSurfaceOutdated   = errors.New("surface configuration is outdated")
	ErrSurfaceTimeout    = errors.New("timed out acquiring the next surface image")
	ErrSurfaceLost       = errors.New("surface lost")
	ErrDeviceLost        = errors.New("graphics device lost")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrDepthMismatch     = errors.New("depth attachment does not match surface size")
	ErrInvalidState      = errors.New("invalid render surface state")
	ErrSurfaceDestroyed  = errors.New("render surface destroyed")
	ErrInvalidDescriptor = errors.New("invalid pipeline descriptor")
	ErrUnknown           = errors.New("unknown")
)

// IsTransient reports whether err is a presentation failure that a
// reconfigure of the surface can recover from.
func IsTransient(err error) bool {
	return errors.Is(err, ErrSurfaceOutdated) ||
		errors.Is(err, ErrSurfaceTimeout) ||
		errors.Is(err, ErrSurfaceLost)
}

// IsFatal reports whether err means the device can no longer be used.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDeviceLost) || errors.Is(err, ErrOutOfMemory)
}
