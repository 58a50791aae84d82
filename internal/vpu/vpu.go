// Package vpu drives the Amlogic video decoder through the amstream
// character devices. The decoder is fed raw Annex B HEVC data and
// renders to its own hardware layer; this package owns the feed loop
// and the small state machine that decides when a stream has finished
// draining out of the hardware buffer.
//
// On anything but linux/arm64 a simulated backend stands in for the
// devices, mirroring what the original player did for development
// machines.
package vpu

import (
	"time"

	"github.com/sirupsen/logrus"
)

// FeedKind tags items flowing from the demuxer to the sink.
type FeedKind int

const (
	// FeedExtraData carries parameter sets; must precede samples.
	FeedExtraData FeedKind = iota
	// FeedSample carries one access unit in Annex B form.
	FeedSample
	// FeedEOF marks the end of the current stream; the sink keeps
	// playing until the hardware buffer drains.
	FeedEOF
	// FeedStop discards the current stream immediately (new load, seek).
	FeedStop
)

// Feed is one item of decoder input.
type Feed struct {
	Kind FeedKind
	Data []byte
	PTS  time.Duration
}

// CmdKind tags control commands addressed to the sink loop.
type CmdKind int

const (
	CmdPlay CmdKind = iota
	CmdPause
	CmdAxis
	CmdFullscreen
)

// Command is a control request with its reply channel. Reply must be
// buffered; the sink sends exactly one result and never blocks on it.
type Command struct {
	Kind  CmdKind
	X, Y  int
	W, H  uint32
	Reply chan<- error
}

// EndReason reports why playback ended. A nil Err is a clean
// end-of-stream; anything else aborted the stream.
type EndReason struct {
	Err error
}

// Config selects the device nodes used by the hardware backend.
type Config struct {
	CodecDevice   string // HEVC stream port, normally /dev/amstream_hevc
	ControlDevice string // video control port, normally /dev/amvideo
}

// backend is the hardware-facing half of the sink. The state machine
// in Sink is identical for the real devices and the simulator.
type backend interface {
	write(data []byte) error
	setPaused(paused bool) error
	setAxis(x, y int, w, h uint32) error
	fullscreenAxis() error
	clearVideo() error
	// bufferLevel reports how much undecoded data sits in the hardware
	// buffer. Used to detect drain after EOF.
	bufferLevel() (int32, error)
	version() (major, minor uint16, err error)
	reopen() error
	close() error
}

// Open prepares the decoder and returns a Sink ready to Run. End-of-
// stream notifications are delivered on eos.
func Open(cfg Config, eos chan EndReason, log *logrus.Entry) (*Sink, error) {
	be, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	if major, minor, err := be.version(); err == nil {
		log.Debugf("amstream version %d.%d", major, minor)
	}
	return newSink(be, cfg, eos, log), nil
}
