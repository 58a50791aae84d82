//go:build linux && arm64

package vpu

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kerbiriou/amlview/internal/fb"
)

// ioctl plumbing for the amstream/amvideo drivers. Request codes and
// command values follow the vendor amstream.h (64-bit ioctl API).
const (
	iocWrite     = 1
	iocRead      = 2
	iocMagic     = 'S'
	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | size<<iocSizeShift | iocMagic<<iocTypeShift | nr<<iocNrShift
}

var (
	amstreamIocGetVersion   = ioc(iocRead, 0xc0, 4)
	amstreamIocSet          = ioc(iocWrite, 0xc2, unsafe.Sizeof(amIoctlParm{}))
	amstreamIocGetEx        = ioc(iocRead|iocWrite, 0xc3, unsafe.Sizeof(amIoctlParmEx{}))
	amstreamIocSysinfo      = ioc(iocWrite, 0x0a, 4)
	amstreamIocVPause       = ioc(iocWrite, 0x17, 4)
	amstreamIocSetVideoAxis = ioc(iocWrite, 0x4c, 4)
	amstreamIocClearVideo   = ioc(iocWrite, 0x84, 4)
)

const (
	amstreamSetVFormat    = 0x105
	amstreamGetExVBStatus = 0x900

	vformatHEVC       = 11
	vdecTypeHEVC      = 15
	openRetries       = 100
	openRetryInterval = 50 * time.Millisecond
)

// amIoctlParm mirrors struct am_ioctl_parm: an 8-byte value union
// followed by the command selector.
type amIoctlParm struct {
	Data uint64
	Cmd  uint32
	_    [4]byte
}

// amIoctlParmEx mirrors struct am_ioctl_parm_ex; only the buf_status
// member of the union is read here (five 32-bit counters).
type amIoctlParmEx struct {
	Union [24]byte
	Cmd   uint32
	_     [4]byte
}

// decSysinfo mirrors struct dec_sysinfo handed to AMSTREAM_IOC_SYSINFO.
type decSysinfo struct {
	Format  uint32
	Width   uint32
	Height  uint32
	Rate    uint32
	Extra   uint32
	Status  uint32
	Ratio   uint32
	_       [4]byte
	Param   uint64
	Ratio64 uint64
}

// deviceBackend talks to the real VPU: the HEVC stream port takes the
// Annex B byte stream, the control port takes everything else.
type deviceBackend struct {
	cfg     Config
	codec   *os.File
	control *os.File
}

func newBackend(cfg Config) (backend, error) {
	b := &deviceBackend{cfg: cfg}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

// open claims both device nodes and programs the decoder for HEVC.
// The stream port reports EBUSY for a short while after a previous
// close, so claiming it retries.
func (b *deviceBackend) open() error {
	codec, err := openRetry(b.cfg.CodecDevice, os.O_WRONLY)
	if err != nil {
		return fmt.Errorf("open codec device: %w", err)
	}
	control, err := openRetry(b.cfg.ControlDevice, os.O_RDWR)
	if err != nil {
		codec.Close()
		return fmt.Errorf("open control device: %w", err)
	}
	b.codec = codec
	b.control = control

	parm := amIoctlParm{Cmd: amstreamSetVFormat, Data: vformatHEVC}
	if err := b.ioctl(b.codec, amstreamIocSet, unsafe.Pointer(&parm)); err != nil {
		b.close()
		return fmt.Errorf("set vformat: %w", err)
	}
	sysinfo := decSysinfo{Format: vdecTypeHEVC}
	if err := b.ioctl(b.codec, amstreamIocSysinfo, unsafe.Pointer(&sysinfo)); err != nil {
		b.close()
		return fmt.Errorf("set sysinfo: %w", err)
	}
	return nil
}

func openRetry(path string, flag int) (*os.File, error) {
	var lastErr error
	for i := 0; i < openRetries; i++ {
		f, err := os.OpenFile(path, flag, 0)
		if err == nil {
			return f, nil
		}
		lastErr = err
		if !errors.Is(err, unix.EBUSY) {
			return nil, err
		}
		time.Sleep(openRetryInterval)
	}
	return nil, fmt.Errorf("%s stayed busy: %w", path, lastErr)
}

func (b *deviceBackend) ioctl(f *os.File, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (b *deviceBackend) write(data []byte) error {
	for len(data) > 0 {
		n, err := b.codec.Write(data)
		if err != nil {
			return fmt.Errorf("write codec: %w", err)
		}
		data = data[n:]
	}
	return nil
}

func (b *deviceBackend) setPaused(paused bool) error {
	v := int32(0)
	if paused {
		v = 1
	}
	return b.ioctl(b.control, amstreamIocVPause, unsafe.Pointer(&v))
}

func (b *deviceBackend) setAxis(x, y int, w, h uint32) error {
	axis := [4]int32{int32(x), int32(y), int32(x) + int32(w), int32(y) + int32(h)}
	return b.ioctl(b.control, amstreamIocSetVideoAxis, unsafe.Pointer(&axis))
}

func (b *deviceBackend) fullscreenAxis() error {
	w, h, err := fb.ScreenSize()
	if err != nil {
		return err
	}
	return b.setAxis(0, 0, w, h)
}

func (b *deviceBackend) clearVideo() error {
	v := int32(1)
	return b.ioctl(b.control, amstreamIocClearVideo, unsafe.Pointer(&v))
}

func (b *deviceBackend) bufferLevel() (int32, error) {
	parm := amIoctlParmEx{Cmd: amstreamGetExVBStatus}
	if err := b.ioctl(b.codec, amstreamIocGetEx, unsafe.Pointer(&parm)); err != nil {
		return 0, err
	}
	// struct buf_status: size, data_len, free_len, read/write pointers.
	dataLen := int32(uint32(parm.Union[4]) | uint32(parm.Union[5])<<8 | uint32(parm.Union[6])<<16 | uint32(parm.Union[7])<<24)
	return dataLen, nil
}

func (b *deviceBackend) version() (uint16, uint16, error) {
	var v uint32
	if err := b.ioctl(b.codec, amstreamIocGetVersion, unsafe.Pointer(&v)); err != nil {
		return 0, 0, err
	}
	return uint16(v >> 16), uint16(v & 0xFFFF), nil
}

// reopen flushes the decoder the only way that works: release the
// nodes and claim them again.
func (b *deviceBackend) reopen() error {
	b.close()
	return b.open()
}

func (b *deviceBackend) close() error {
	var err error
	if b.codec != nil {
		err = b.codec.Close()
		b.codec = nil
	}
	if b.control != nil {
		if cerr := b.control.Close(); err == nil {
			err = cerr
		}
		b.control = nil
	}
	return err
}
