//go:build linux

// Package fb pokes the framebuffer so a 32-bit X11 window can punch a
// transparent hole down to the video layer, and reports the panel size
// for fullscreen video axis updates.
package fb

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const defaultDevice = "/dev/fb0"

const (
	fbioGetVScreenInfo = 0x4600
	fbioPutVScreenInfo = 0x4601
)

type bitfield struct {
	Offset   uint32
	Length   uint32
	MSBRight uint32
}

// varScreenInfo mirrors struct fb_var_screeninfo from linux/fb.h.
type varScreenInfo struct {
	XRes         uint32
	YRes         uint32
	XResVirtual  uint32
	YResVirtual  uint32
	XOffset      uint32
	YOffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          bitfield
	Green        bitfield
	Blue         bitfield
	Transp       bitfield
	Nonstd       uint32
	Activate     uint32
	Height       uint32
	Width        uint32
	AccelFlags   uint32
	Pixclock     uint32
	LeftMargin   uint32
	RightMargin  uint32
	UpperMargin  uint32
	LowerMargin  uint32
	HsyncLen     uint32
	VsyncLen     uint32
	Sync         uint32
	Vmode        uint32
	Rotate       uint32
	Colorspace   uint32
	Reserved     [4]uint32
}

// Screen holds the framebuffer open with its original mode saved so
// Close can put things back.
type Screen struct {
	f     *os.File
	saved varScreenInfo
}

// Open switches the framebuffer to 32-bit ARGB so window alpha reaches
// the compositor. Without this the black window background stays opaque
// and covers the video plane.
func Open() (*Screen, error) {
	f, err := os.OpenFile(defaultDevice, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer: %w", err)
	}
	var info varScreenInfo
	if err := ioctl(f, fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		f.Close()
		return nil, fmt.Errorf("get screen info: %w", err)
	}
	s := &Screen{f: f, saved: info}

	info.BitsPerPixel = 32
	info.Red = bitfield{Offset: 16, Length: 8}
	info.Green = bitfield{Offset: 8, Length: 8}
	info.Blue = bitfield{Offset: 0, Length: 8}
	info.Transp = bitfield{Offset: 24, Length: 8}
	if err := ioctl(f, fbioPutVScreenInfo, unsafe.Pointer(&info)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set screen info: %w", err)
	}
	return s, nil
}

// Close restores the saved mode and releases the device.
func (s *Screen) Close() error {
	err := ioctl(s.f, fbioPutVScreenInfo, unsafe.Pointer(&s.saved))
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Size reports the visible resolution at the time Open was called.
func (s *Screen) Size() (uint32, uint32) {
	return s.saved.XRes, s.saved.YRes
}

// ScreenSize reads the panel resolution without changing the mode.
func ScreenSize() (uint32, uint32, error) {
	f, err := os.OpenFile(defaultDevice, os.O_RDONLY, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("open framebuffer: %w", err)
	}
	defer f.Close()
	var info varScreenInfo
	if err := ioctl(f, fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		return 0, 0, fmt.Errorf("get screen info: %w", err)
	}
	return info.XRes, info.YRes, nil
}

func ioctl(f *os.File, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
