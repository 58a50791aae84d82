// Package amlview plays HEVC video through the Amlogic hardware
// decoder, presenting it on its own X11 surface. The package is meant
// to be embedded in a host application: create a Player, load a file
// or URL, and drive it with the transport and geometry operations.
// Every operation returns a Code; negative codes are failures.
package amlview

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kerbiriou/amlview/internal/config"
	"github.com/kerbiriou/amlview/internal/engine"
	"github.com/kerbiriou/amlview/internal/fb"
	"github.com/kerbiriou/amlview/internal/logx"
	"github.com/kerbiriou/amlview/internal/mpris"
	"github.com/kerbiriou/amlview/internal/resume"
	"github.com/kerbiriou/amlview/internal/vpu"
	"github.com/kerbiriou/amlview/internal/x11"
)

// savePeriod paces resume point writes while playing.
const savePeriod = 5 * time.Second

// Player is one player instance. All methods are safe for concurrent
// use; after Close every operation returns CodeShutdown.
type Player struct {
	eng    *engine.Engine
	log    *logrus.Entry
	screen *fb.Screen
	store  *resume.Store
	remote *mpris.Adapter

	mu       sync.Mutex
	closed   bool
	target   string
	status   mpris.Status
	saveStop chan struct{}
}

// New creates a player: configuration is read, the framebuffer is put
// in ARGB mode, the video window and the decoder are opened. Returns
// nil and a failure code when any of that does not work out.
func New() (*Player, Code) {
	cfg, err := config.Load()
	if err != nil {
		return nil, CodeUnknown
	}
	logger := logx.New(cfg.Log.File, cfg.Log.Level)
	log := logger.WithField("component", "player")

	win, err := x11.Open(
		int16(cfg.Window.X), int16(cfg.Window.Y),
		uint16(cfg.Window.Width), uint16(cfg.Window.Height))
	if err != nil {
		log.Errorf("open window: %v", err)
		return nil, codeFor(err)
	}

	return newPlayer(cfg, win, log)
}

// newPlayer wires the player around an already open window.
func newPlayer(cfg *config.Config, win engine.Window, log *logrus.Entry) (*Player, Code) {
	p := &Player{log: log, saveStop: make(chan struct{})}

	// ARGB unlock needs framebuffer access; without it the window is
	// opaque but playback still works, so failure only logs.
	if screen, err := fb.Open(); err != nil {
		log.Warnf("framebuffer: %v", err)
	} else {
		p.screen = screen
	}

	eng, err := engine.New(engine.Config{
		Devices: vpu.Config{
			CodecDevice:   cfg.Devices.Codec,
			ControlDevice: cfg.Devices.Control,
		},
		FetchTimeout: cfg.FetchTimeout(),
		WindowX:      cfg.Window.X,
		WindowY:      cfg.Window.Y,
		WindowWidth:  cfg.Window.Width,
		WindowHeight: cfg.Window.Height,
	}, win, log)
	if err != nil {
		log.Errorf("start engine: %v", err)
		win.Close()
		if p.screen != nil {
			p.screen.Close()
		}
		return nil, codeFor(err)
	}
	p.eng = eng

	if cfg.ResumeEnabled() {
		if store, err := resume.Open(); err != nil {
			log.Warnf("resume store: %v", err)
		} else {
			p.store = store
		}
	}
	if cfg.MprisEnabled() {
		if adapter, err := mpris.New(&controller{p: p}); err != nil {
			log.Warnf("mpris: %v", err)
		} else {
			p.remote = adapter
		}
	}

	go p.saveLoop()
	return p, CodeNone
}

// Load opens the media at target, a filesystem path or an HTTP(S) URL,
// and prepares it for playback. A previously saved position for the
// same target is restored.
func (p *Player) Load(target string) Code {
	if err := p.eng.Load(target); err != nil {
		p.log.Errorf("load %s: %v", target, err)
		return codeFor(err)
	}
	p.mu.Lock()
	p.target = target
	p.status = mpris.StatusStopped
	p.mu.Unlock()

	if p.store != nil {
		if point, err := p.store.Get(target); err == nil && point != nil {
			p.log.Infof("resuming %s at %s", target, point.Position)
			if err := p.eng.Seek(point.Position.Seconds()); err != nil {
				p.log.Warnf("resume seek: %v", err)
			}
		}
	}
	return CodeNone
}

// Show raises the video window above everything else.
func (p *Player) Show() Code { return p.code(p.eng.Show()) }

// Hide pushes the video window behind everything else.
func (p *Player) Hide() Code { return p.code(p.eng.Hide()) }

// Play starts or resumes playback.
func (p *Player) Play() Code {
	if err := p.eng.Play(); err != nil {
		return p.code(err)
	}
	p.setStatus(mpris.StatusPlaying)
	return CodeNone
}

// Pause freezes playback. Play resumes it.
func (p *Player) Pause() Code {
	if err := p.eng.Pause(); err != nil {
		return p.code(err)
	}
	p.setStatus(mpris.StatusPaused)
	return CodeNone
}

// Seek jumps to the given position in seconds. The stream restarts at
// the nearest preceding sync point.
func (p *Player) Seek(seconds float64) Code {
	return p.code(p.eng.Seek(seconds))
}

// Resize changes the video area dimensions.
func (p *Player) Resize(width, height uint32) Code {
	return p.code(p.eng.Resize(width, height))
}

// SetPos moves the video area.
func (p *Player) SetPos(x, y int) Code {
	return p.code(p.eng.SetPos(x, y))
}

// SetFullscreen enters or leaves fullscreen. Leaving restores the last
// window geometry.
func (p *Player) SetFullscreen(on bool) Code {
	return p.code(p.eng.SetFullscreen(on))
}

// WaitUntilEnd blocks until the loaded stream has fully played out of
// the decoder, a stream error aborts it, or the player is closed.
func (p *Player) WaitUntilEnd() Code {
	err := p.eng.WaitUntilEnd()
	if err == nil {
		p.setStatus(mpris.StatusStopped)
		p.mu.Lock()
		target := p.target
		p.mu.Unlock()
		if p.store != nil && target != "" {
			// Played to the end, nothing to resume next time.
			if cerr := p.store.Clear(target); cerr != nil {
				p.log.Warnf("clear resume point: %v", cerr)
			}
		}
	}
	return p.code(err)
}

// Position reports the current playback position.
func (p *Player) Position() time.Duration { return p.eng.Position() }

// Duration reports the duration of the loaded media.
func (p *Player) Duration() time.Duration { return p.eng.Duration() }

// Close releases the decoder, the window and every other resource.
// The handle must not be used afterwards; operations on a closed
// player return CodeShutdown.
func (p *Player) Close() Code {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return CodeShutdown
	}
	p.closed = true
	p.mu.Unlock()

	close(p.saveStop)
	if p.remote != nil {
		if err := p.remote.Close(); err != nil {
			p.log.Warnf("mpris close: %v", err)
		}
	}

	err := p.eng.Close()

	if p.store != nil {
		if serr := p.store.Close(); serr != nil {
			p.log.Warnf("resume store close: %v", serr)
		}
	}
	if p.screen != nil {
		if serr := p.screen.Close(); serr != nil {
			p.log.Warnf("framebuffer restore: %v", serr)
		}
	}
	return p.code(err)
}

func (p *Player) code(err error) Code {
	if err != nil {
		c := codeFor(err)
		if c != CodeShutdown {
			p.log.Errorf("%v", err)
		}
		return c
	}
	return CodeNone
}

func (p *Player) setStatus(s mpris.Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// saveLoop periodically records the playback position so an abrupt
// stop still leaves a usable resume point.
func (p *Player) saveLoop() {
	if p.store == nil {
		return
	}
	tick := time.NewTicker(savePeriod)
	defer tick.Stop()
	for {
		select {
		case <-p.saveStop:
			return
		case <-tick.C:
			p.mu.Lock()
			target, status := p.target, p.status
			p.mu.Unlock()
			if target != "" && status == mpris.StatusPlaying {
				p.store.Save(target, p.eng.Position())
			}
		}
	}
}

// controller adapts the player to the D-Bus media controls.
type controller struct {
	p *Player
}

func (c *controller) Play() error  { return c.p.Play().err() }
func (c *controller) Pause() error { return c.p.Pause().err() }
func (c *controller) Seek(seconds float64) error {
	return c.p.Seek(seconds).err()
}
func (c *controller) Position() time.Duration { return c.p.eng.Position() }
func (c *controller) Duration() time.Duration { return c.p.eng.Duration() }

func (c *controller) Status() mpris.Status {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.status
}

func (c *controller) Target() string {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.target
}
