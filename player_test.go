package amlview

import (
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kerbiriou/amlview/internal/config"
	"github.com/kerbiriou/amlview/internal/mediatest"
)

type fakeWindow struct {
	mu     sync.Mutex
	closed chan struct{}
	shown  bool
}

func newFakeWindow() *fakeWindow { return &fakeWindow{closed: make(chan struct{})} }

func (w *fakeWindow) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shown = true
	return nil
}

func (w *fakeWindow) Hide() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shown = false
	return nil
}

func (w *fakeWindow) SetPos(x, y int16) error            { return nil }
func (w *fakeWindow) SetSize(width, height uint16) error { return nil }
func (w *fakeWindow) SetFullscreen(on bool) error        { return nil }
func (w *fakeWindow) Closed() <-chan struct{}            { return w.closed }
func (w *fakeWindow) Close() error                       { return nil }

func testPlayer(t *testing.T) *Player {
	t.Helper()
	off := false
	cfg := &config.Config{
		Window: config.WindowConfig{Width: 1280, Height: 720},
		Fetch:  config.FetchConfig{TimeoutSeconds: 5},
		Resume: config.ResumeConfig{Enabled: &off},
		Mpris:  config.MprisConfig{Enabled: &off},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	p, code := newPlayer(cfg, newFakeWindow(), logrus.NewEntry(logger))
	if code != CodeNone {
		t.Fatalf("newPlayer() = %s", code)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPlayer_CreateDestroy(t *testing.T) {
	p := testPlayer(t)
	if code := p.Close(); code.Failed() {
		t.Errorf("Close() = %s", code)
	}
}

func TestPlayer_FullRun(t *testing.T) {
	p := testPlayer(t)
	clip, _ := mediatest.WriteClip(t, "hvc1")

	if code := p.Load(clip); code != CodeNone {
		t.Fatalf("Load() = %s", code)
	}
	if code := p.Show(); code != CodeNone {
		t.Fatalf("Show() = %s", code)
	}
	if code := p.Play(); code != CodeNone {
		t.Fatalf("Play() = %s", code)
	}
	if code := p.WaitUntilEnd(); code != CodeNone {
		t.Fatalf("WaitUntilEnd() = %s", code)
	}
}

func TestPlayer_SeekBeforeLoad(t *testing.T) {
	p := testPlayer(t)

	if code := p.Seek(3); code != CodeInvalidCommand {
		t.Errorf("Seek() before Load = %s, want invalid command", code)
	}
}

func TestPlayer_LoadMissingMedia(t *testing.T) {
	p := testPlayer(t)

	code := p.Load(filepath.Join(t.TempDir(), "nope.mp4"))
	if !code.Failed() {
		t.Fatalf("Load() of missing file = %s, want failure", code)
	}
	if code != CodeDemuxInternal {
		t.Errorf("Load() = %s, want demux internal", code)
	}
}

func TestPlayer_OpsAfterClose(t *testing.T) {
	p := testPlayer(t)

	if code := p.Close(); code.Failed() {
		t.Fatalf("Close() = %s", code)
	}
	if code := p.Close(); code != CodeShutdown {
		t.Errorf("second Close() = %s, want shutdown", code)
	}
	if code := p.Play(); code != CodeShutdown {
		t.Errorf("Play() after Close = %s, want shutdown", code)
	}
	if code := p.Load("clip.mp4"); code != CodeShutdown {
		t.Errorf("Load() after Close = %s, want shutdown", code)
	}
	if code := p.WaitUntilEnd(); code != CodeShutdown {
		t.Errorf("WaitUntilEnd() after Close = %s, want shutdown", code)
	}
}

func TestPlayer_GeometryOps(t *testing.T) {
	p := testPlayer(t)

	for name, code := range map[string]Code{
		"resize":     p.Resize(640, 360),
		"setpos":     p.SetPos(100, 50),
		"fullscreen": p.SetFullscreen(true),
		"windowed":   p.SetFullscreen(false),
		"hide":       p.Hide(),
	} {
		if code != CodeNone {
			t.Errorf("%s = %s", name, code)
		}
	}
}
