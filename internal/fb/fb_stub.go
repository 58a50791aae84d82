//go:build !linux

// Package fb pokes the framebuffer so a 32-bit X11 window can punch a
// transparent hole down to the video layer. Off linux nothing needs
// poking and the package is inert.
package fb

// Screen is a no-op placeholder on platforms without a framebuffer.
type Screen struct{}

func Open() (*Screen, error) { return &Screen{}, nil }

func (s *Screen) Close() error { return nil }

func (s *Screen) Size() (uint32, uint32) { return 1920, 1080 }

// ScreenSize reports a nominal full HD panel.
func ScreenSize() (uint32, uint32, error) { return 1920, 1080, nil }
