// Package engine ties the demuxer, the decoder sink and the window
// together behind a synchronous command interface. Three goroutines do
// the work: the command loop owns window geometry and routing, the
// demux loop streams samples into the sink, and the sink loop drives
// the decoder. Every public method is a message into the command loop
// with a single-use reply channel.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kerbiriou/amlview/internal/vpu"
)

// Window is the display surface the engine controls. Implemented by
// x11.Window; tests substitute a recorder.
type Window interface {
	Show() error
	Hide() error
	SetPos(x, y int16) error
	SetSize(width, height uint16) error
	SetFullscreen(on bool) error
	Closed() <-chan struct{}
	Close() error
}

// Config carries the knobs the engine needs at startup.
type Config struct {
	Devices      vpu.Config
	FetchTimeout time.Duration

	// Initial video area, also used when leaving fullscreen.
	WindowX, WindowY          int
	WindowWidth, WindowHeight uint32
}

type cmdKind int

const (
	cmdLoad cmdKind = iota
	cmdPlay
	cmdPause
	cmdSeek
	cmdShow
	cmdHide
	cmdSetPos
	cmdResize
	cmdFullscreen
)

type command struct {
	kind    cmdKind
	target  string
	seconds float64
	x, y    int
	w, h    uint32
	on      bool
	reply   chan error
}

type geometry struct {
	x, y int
	w, h uint32
}

// Engine is the running player core. Create with New, stop with Close.
type Engine struct {
	cfg  Config
	log  *logrus.Entry
	win  Window
	sink *vpu.Sink
	eos  chan vpu.EndReason

	cmds      chan command
	demuxCmds chan demuxCmd

	quit      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	posMicros atomic.Int64
	durMicros atomic.Int64
}

// New opens the decoder and starts the engine goroutines. The window
// is adopted: Close tears it down along with everything else.
func New(cfg Config, win Window, log *logrus.Entry) (*Engine, error) {
	eos := make(chan vpu.EndReason, 1)
	sink, err := vpu.Open(cfg.Devices, eos, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoder, err)
	}

	e := &Engine{
		cfg:       cfg,
		log:       log,
		win:       win,
		sink:      sink,
		eos:       eos,
		cmds:      make(chan command),
		demuxCmds: make(chan demuxCmd),
		quit:      make(chan struct{}),
	}
	e.wg.Add(3)
	go func() {
		defer e.wg.Done()
		sink.Run(e.quit)
	}()
	go e.demuxLoop()
	go e.run()
	return e, nil
}

// stop ends all loops. Idempotent; fired by Close and by the window
// manager destroying the window.
func (e *Engine) stop() {
	e.stopOnce.Do(func() { close(e.quit) })
}

// Close shuts the engine down, waits for the loops to drain and
// releases the window. Safe to call more than once; later calls
// return the first result.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.stop()
		e.wg.Wait()
		e.closeErr = e.win.Close()
	})
	return e.closeErr
}

// Load opens the media at target and prepares it for playback. Any
// stream already loaded is discarded first.
func (e *Engine) Load(target string) error {
	return e.do(command{kind: cmdLoad, target: target})
}

// Play starts or resumes presentation.
func (e *Engine) Play() error { return e.do(command{kind: cmdPlay}) }

// Pause freezes presentation; buffered data keeps feeding the decoder.
func (e *Engine) Pause() error { return e.do(command{kind: cmdPause}) }

// Seek jumps to the closest sync point at or before the position.
func (e *Engine) Seek(seconds float64) error {
	return e.do(command{kind: cmdSeek, seconds: seconds})
}

// Show raises the video window.
func (e *Engine) Show() error { return e.do(command{kind: cmdShow}) }

// Hide drops the video window behind everything else.
func (e *Engine) Hide() error { return e.do(command{kind: cmdHide}) }

// SetPos moves the video area.
func (e *Engine) SetPos(x, y int) error {
	return e.do(command{kind: cmdSetPos, x: x, y: y})
}

// Resize changes the video area dimensions.
func (e *Engine) Resize(w, h uint32) error {
	return e.do(command{kind: cmdResize, w: w, h: h})
}

// SetFullscreen toggles fullscreen. Leaving fullscreen restores the
// last window geometry.
func (e *Engine) SetFullscreen(on bool) error {
	return e.do(command{kind: cmdFullscreen, on: on})
}

// WaitUntilEnd blocks until the current stream finishes draining out
// of the decoder, an unrecoverable stream error occurs, or the engine
// shuts down.
func (e *Engine) WaitUntilEnd() error {
	select {
	case r := <-e.eos:
		return r.Err
	case <-e.quit:
		return ErrShutdown
	}
}

// Position reports the presentation time of the last sample handed to
// the decoder. Approximate by one buffer depth, which is fine for
// progress display and resume points.
func (e *Engine) Position() time.Duration {
	return time.Duration(e.posMicros.Load()) * time.Microsecond
}

// Duration reports the duration of the loaded media, zero before any
// load.
func (e *Engine) Duration() time.Duration {
	return time.Duration(e.durMicros.Load()) * time.Microsecond
}

func (e *Engine) do(c command) error {
	c.reply = make(chan error, 1)
	select {
	case e.cmds <- c:
	case <-e.quit:
		return ErrShutdown
	}
	select {
	case err := <-c.reply:
		return err
	case <-e.quit:
		return ErrShutdown
	}
}

// run is the command loop. It owns the window geometry and the loaded
// flag; nothing else touches them.
func (e *Engine) run() {
	defer e.wg.Done()

	geom := geometry{
		x: e.cfg.WindowX, y: e.cfg.WindowY,
		w: e.cfg.WindowWidth, h: e.cfg.WindowHeight,
	}
	loaded := false
	winClosed := e.win.Closed()

	for {
		select {
		case <-e.quit:
			return
		case <-winClosed:
			e.log.Info("window closed, shutting down")
			e.stop()
			return
		case c := <-e.cmds:
			c.reply <- e.handle(c, &geom, &loaded)
		}
	}
}

func (e *Engine) handle(c command, geom *geometry, loaded *bool) error {
	switch c.kind {
	case cmdLoad:
		res := e.demuxRequest(demuxCmd{kind: dcLoad, target: c.target})
		if res.err != nil {
			return res.err
		}
		*loaded = true
		e.durMicros.Store(int64(res.duration / time.Microsecond))
		e.log.WithField("target", c.target).Infof("loaded %dx%d, %s", res.width, res.height, res.duration)
		return e.sinkRequest(vpu.Command{Kind: vpu.CmdAxis, X: geom.x, Y: geom.y, W: geom.w, H: geom.h})

	case cmdPlay:
		return e.sinkRequest(vpu.Command{Kind: vpu.CmdPlay})

	case cmdPause:
		return e.sinkRequest(vpu.Command{Kind: vpu.CmdPause})

	case cmdSeek:
		if !*loaded {
			return ErrNothingLoaded
		}
		res := e.demuxRequest(demuxCmd{kind: dcSeek, seconds: c.seconds})
		return res.err

	case cmdShow:
		return e.win.Show()

	case cmdHide:
		return e.win.Hide()

	case cmdSetPos:
		geom.x, geom.y = c.x, c.y
		if err := e.win.SetPos(int16(c.x), int16(c.y)); err != nil {
			return err
		}
		return e.sinkRequest(vpu.Command{Kind: vpu.CmdAxis, X: geom.x, Y: geom.y, W: geom.w, H: geom.h})

	case cmdResize:
		geom.w, geom.h = c.w, c.h
		if err := e.win.SetSize(uint16(c.w), uint16(c.h)); err != nil {
			return err
		}
		return e.sinkRequest(vpu.Command{Kind: vpu.CmdAxis, X: geom.x, Y: geom.y, W: geom.w, H: geom.h})

	case cmdFullscreen:
		if err := e.win.SetFullscreen(c.on); err != nil {
			return err
		}
		if c.on {
			return e.sinkRequest(vpu.Command{Kind: vpu.CmdFullscreen})
		}
		return e.sinkRequest(vpu.Command{Kind: vpu.CmdAxis, X: geom.x, Y: geom.y, W: geom.w, H: geom.h})

	default:
		return fmt.Errorf("unknown command %d", c.kind)
	}
}

// sinkRequest round-trips a command through the sink loop.
func (e *Engine) sinkRequest(cmd vpu.Command) error {
	reply := make(chan error, 1)
	cmd.Reply = reply
	select {
	case e.sink.Commands() <- cmd:
	case <-e.quit:
		return ErrShutdown
	}
	select {
	case err := <-reply:
		return err
	case <-e.quit:
		return ErrShutdown
	}
}

// demuxRequest round-trips a command through the demux loop.
func (e *Engine) demuxRequest(c demuxCmd) demuxResult {
	c.reply = make(chan demuxResult, 1)
	select {
	case e.demuxCmds <- c:
	case <-e.quit:
		return demuxResult{err: ErrShutdown}
	}
	select {
	case res := <-c.reply:
		return res
	case <-e.quit:
		return demuxResult{err: ErrShutdown}
	}
}
