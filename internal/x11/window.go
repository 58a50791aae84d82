// Package x11 manages the borderless transparent window that sits over
// the hardware video layer. The window paints nothing; with the
// framebuffer in ARGB mode its zero-alpha background lets the video
// plane show through, and raising or lowering it is what makes the
// video appear or disappear.
package x11

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// ErrOpen means the display connection could not be established.
var ErrOpen = errors.New("cannot open display")

// ErrInternal covers X protocol failures after the connection is up.
var ErrInternal = errors.New("display error")

const (
	mwmHintsDecorations = 1 << 1
	mwmHintsLen         = 5

	netWmStateRemove = 0
	netWmStateAdd    = 1
)

// Window is a depth-32 override of the video area. All methods must be
// called from one goroutine; the event pump runs separately and only
// signals the closed channel.
type Window struct {
	conn *xgb.Conn
	id   xproto.Window
	root xproto.Window

	wmProtocols     xproto.Atom
	wmDeleteWindow  xproto.Atom
	netWmState      xproto.Atom
	netWmFullscreen xproto.Atom

	closed chan struct{}
}

// Open connects to the X server and creates the window at the given
// geometry. The window is created unmapped; Show maps and raises it.
func Open(x, y int16, width, height uint16) (*Window, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	w := &Window{conn: conn, closed: make(chan struct{})}
	if err := w.create(x, y, width, height); err != nil {
		conn.Close()
		return nil, err
	}
	go w.pump()
	return w, nil
}

func (w *Window) create(x, y int16, width, height uint16) error {
	screen := xproto.Setup(w.conn).DefaultScreen(w.conn)
	w.root = screen.Root

	visual, ok := findVisual(screen, 32)
	if !ok {
		return fmt.Errorf("%w: no 32-bit visual", ErrOpen)
	}

	cmap, err := xproto.NewColormapId(w.conn)
	if err != nil {
		return internal("colormap id", err)
	}
	if err := xproto.CreateColormapChecked(w.conn, xproto.ColormapAllocNone, cmap, w.root, visual).Check(); err != nil {
		return internal("create colormap", err)
	}

	id, err := xproto.NewWindowId(w.conn)
	if err != nil {
		return internal("window id", err)
	}
	w.id = id

	// Depth-32 windows need explicit back and border pixels plus the
	// matching colormap, or the server rejects the create request.
	mask := uint32(xproto.CwBackPixel | xproto.CwBorderPixel | xproto.CwEventMask | xproto.CwColormap)
	values := []uint32{0, 0, uint32(xproto.EventMaskStructureNotify), uint32(cmap)}
	err = xproto.CreateWindowChecked(w.conn, 32, id, w.root,
		x, y, width, height, 0,
		xproto.WindowClassInputOutput, visual, mask, values).Check()
	if err != nil {
		return internal("create window", err)
	}

	for _, a := range []struct {
		name string
		dst  *xproto.Atom
	}{
		{"WM_PROTOCOLS", &w.wmProtocols},
		{"WM_DELETE_WINDOW", &w.wmDeleteWindow},
		{"_NET_WM_STATE", &w.netWmState},
		{"_NET_WM_STATE_FULLSCREEN", &w.netWmFullscreen},
	} {
		reply, err := xproto.InternAtom(w.conn, false, uint16(len(a.name)), a.name).Reply()
		if err != nil {
			return internal("intern atom "+a.name, err)
		}
		*a.dst = reply.Atom
	}

	if err := w.setDeleteProtocol(); err != nil {
		return err
	}
	return w.removeDecorations()
}

// setDeleteProtocol opts in to WM_DELETE_WINDOW so closing the window
// from the window manager reaches the event pump instead of killing
// the connection.
func (w *Window) setDeleteProtocol() error {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(w.wmDeleteWindow))
	err := xproto.ChangePropertyChecked(w.conn, xproto.PropModeReplace, w.id,
		w.wmProtocols, xproto.AtomAtom, 32, 1, data).Check()
	if err != nil {
		return internal("set wm protocols", err)
	}
	return nil
}

// removeDecorations strips the title bar and borders with the Motif WM
// hints property, which every relevant window manager still honors.
func (w *Window) removeDecorations() error {
	atom, err := xproto.InternAtom(w.conn, false, uint16(len("_MOTIF_WM_HINTS")), "_MOTIF_WM_HINTS").Reply()
	if err != nil {
		return internal("intern motif hints", err)
	}
	hints := [mwmHintsLen]uint32{mwmHintsDecorations, 0, 0, 0, 0}
	data := make([]byte, 4*mwmHintsLen)
	for i, v := range hints {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	err = xproto.ChangePropertyChecked(w.conn, xproto.PropModeReplace, w.id,
		atom.Atom, atom.Atom, 32, mwmHintsLen, data).Check()
	if err != nil {
		return internal("set motif hints", err)
	}
	return nil
}

func findVisual(screen *xproto.ScreenInfo, depth byte) (xproto.Visualid, bool) {
	for _, d := range screen.AllowedDepths {
		if d.Depth != depth {
			continue
		}
		for _, v := range d.Visuals {
			if v.Class == xproto.VisualClassTrueColor {
				return v.VisualId, true
			}
		}
	}
	return 0, false
}

// pump drains events until the connection dies or the window is told
// to close. Only WM_DELETE_WINDOW is acted upon.
func (w *Window) pump() {
	for {
		ev, err := w.conn.WaitForEvent()
		if ev == nil && err == nil {
			return
		}
		if err != nil {
			continue
		}
		switch e := ev.(type) {
		case xproto.ClientMessageEvent:
			if e.Format == 32 && xproto.Atom(e.Data.Data32[0]) == w.wmDeleteWindow {
				select {
				case <-w.closed:
				default:
					close(w.closed)
				}
				return
			}
		case xproto.DestroyNotifyEvent:
			if e.Window == w.id {
				select {
				case <-w.closed:
				default:
					close(w.closed)
				}
				return
			}
		}
	}
}

// Closed signals that the window manager closed the window.
func (w *Window) Closed() <-chan struct{} { return w.closed }

// Show maps the window and raises it above everything else.
func (w *Window) Show() error {
	if err := xproto.MapWindowChecked(w.conn, w.id).Check(); err != nil {
		return internal("map window", err)
	}
	return w.restack(xproto.StackModeAbove)
}

// Hide drops the window to the bottom of the stack. The window stays
// mapped so its geometry keeps tracking the video axis.
func (w *Window) Hide() error {
	return w.restack(xproto.StackModeBelow)
}

func (w *Window) restack(mode uint32) error {
	err := xproto.ConfigureWindowChecked(w.conn, w.id,
		xproto.ConfigWindowStackMode, []uint32{mode}).Check()
	if err != nil {
		return internal("restack", err)
	}
	return nil
}

// SetPos moves the window. Negative coordinates are allowed.
func (w *Window) SetPos(x, y int16) error {
	err := xproto.ConfigureWindowChecked(w.conn, w.id,
		xproto.ConfigWindowX|xproto.ConfigWindowY,
		[]uint32{uint32(int32(x)), uint32(int32(y))}).Check()
	if err != nil {
		return internal("move", err)
	}
	return nil
}

// SetSize resizes the window.
func (w *Window) SetSize(width, height uint16) error {
	err := xproto.ConfigureWindowChecked(w.conn, w.id,
		xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		[]uint32{uint32(width), uint32(height)}).Check()
	if err != nil {
		return internal("resize", err)
	}
	return nil
}

// SetFullscreen asks the window manager to toggle the EWMH fullscreen
// state. For mapped windows the request must go to the root window as
// a client message.
func (w *Window) SetFullscreen(on bool) error {
	action := uint32(netWmStateRemove)
	if on {
		action = netWmStateAdd
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: w.id,
		Type:   w.netWmState,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			action, uint32(w.netWmFullscreen), 0, 0, 0,
		}),
	}
	err := xproto.SendEventChecked(w.conn, false, w.root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes())).Check()
	if err != nil {
		return internal("fullscreen", err)
	}
	return nil
}

// Close tears down the window and the connection. The event pump exits
// on its own once the connection drops.
func (w *Window) Close() error {
	err := xproto.DestroyWindowChecked(w.conn, w.id).Check()
	w.conn.Close()
	if err != nil {
		return internal("destroy window", err)
	}
	return nil
}

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
