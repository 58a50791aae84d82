//go:build linux

// Package mpris exposes the player on D-Bus so desktop media controls
// can drive it.
package mpris

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
)

// Status mirrors the MPRIS playback states.
type Status int

const (
	StatusStopped Status = iota
	StatusPlaying
	StatusPaused
)

// Controller is the slice of the player the adapter drives. Implemented
// by the public Player handle.
type Controller interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	Position() time.Duration
	Duration() time.Duration
	Status() Status
	Target() string
}

// Adapter connects a Controller to MPRIS over D-Bus.
type Adapter struct {
	server *server.Server
	done   chan struct{}
}

// New creates and starts a new MPRIS adapter.
func New(ctrl Controller) (*Adapter, error) {
	a := &Adapter{done: make(chan struct{})}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{ctrl: ctrl}

	a.server = server.NewServer("amlview", rootAdapter, playerAdapter)

	// Start the server in background
	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - the host application owns the lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "amlview", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file", "http", "https"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"video/mp4"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	ctrl Controller
}

func (p *playerAdapter) Next() error {
	return nil // Single stream, no queue
}

func (p *playerAdapter) Previous() error {
	return nil // Single stream, no queue
}

func (p *playerAdapter) Pause() error {
	return p.ctrl.Pause()
}

func (p *playerAdapter) PlayPause() error {
	if p.ctrl.Status() == StatusPlaying {
		return p.ctrl.Pause()
	}
	return p.ctrl.Play()
}

func (p *playerAdapter) Stop() error {
	return p.ctrl.Pause()
}

func (p *playerAdapter) Play() error {
	return p.ctrl.Play()
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	target := p.ctrl.Position() + time.Duration(offset)*time.Microsecond
	return p.ctrl.Seek(target.Seconds())
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.ctrl.Seek((time.Duration(position) * time.Microsecond).Seconds())
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.ctrl.Status() {
	case StatusPlaying:
		return types.PlaybackStatusPlaying, nil
	case StatusPaused:
		return types.PlaybackStatusPaused, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	target := p.ctrl.Target()
	if target == "" {
		return types.Metadata{}, nil
	}
	return types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(target)),
		Length:  types.Microseconds(p.ctrl.Duration().Microseconds()),
		Title:   filepath.Base(target),
		Url:     target,
	}, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil // The decoder has no volume, video only
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return p.ctrl.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.ctrl.Target() != "", nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return p.ctrl.Target() != "", nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

func formatTrackID(target string) string {
	h := fnv.New64a()
	h.Write([]byte(target))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
