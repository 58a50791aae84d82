//go:build !linux

// Package mpris exposes the player on D-Bus so desktop media controls
// can drive it. Off linux there is no D-Bus worth speaking to and the
// adapter is inert.
package mpris

import "time"

// Status mirrors the MPRIS playback states.
type Status int

const (
	StatusStopped Status = iota
	StatusPlaying
	StatusPaused
)

// Controller is the slice of the player the adapter drives.
type Controller interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	Position() time.Duration
	Duration() time.Duration
	Status() Status
	Target() string
}

// Adapter is a no-op on non-Linux platforms.
type Adapter struct{}

// New returns a no-op adapter on non-Linux platforms.
func New(_ Controller) (*Adapter, error) {
	return &Adapter{}, nil
}

// Close is a no-op on non-Linux platforms.
func (a *Adapter) Close() error {
	return nil
}
