package demux

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kerbiriou/amlview/internal/mediatest"
)

func TestOpen_ReadsHEVCTrack(t *testing.T) {
	path, nals := mediatest.WriteClip(t, "hvc1")

	src, err := Open(path, time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	wantExtra := append([]byte{0, 0, 0, 1}, mediatest.VPS...)
	if !bytes.Equal(src.ExtraData(), wantExtra) {
		t.Errorf("ExtraData() = %x, want %x", src.ExtraData(), wantExtra)
	}
	if got := src.Duration(); got != 2*time.Second {
		t.Errorf("Duration() = %v, want 2s", got)
	}
	if w, h := src.Dimensions(); w != 1920 || h != 1080 {
		t.Errorf("Dimensions() = %dx%d, want 1920x1080", w, h)
	}

	wantPTS := []time.Duration{0, 500 * time.Millisecond, time.Second}
	for i, nal := range nals {
		s, err := src.ReadSample()
		if err != nil {
			t.Fatalf("ReadSample(%d) error = %v", i, err)
		}
		want := append([]byte{0, 0, 0, 1}, nal...)
		if !bytes.Equal(s.Data, want) {
			t.Errorf("sample %d = %x, want %x", i, s.Data, want)
		}
		if s.PTS != wantPTS[i] {
			t.Errorf("sample %d pts = %v, want %v", i, s.PTS, wantPTS[i])
		}
	}

	if _, err := src.ReadSample(); err != io.EOF {
		t.Errorf("ReadSample() after last = %v, want io.EOF", err)
	}
}

func TestOpen_Hev1EntryAccepted(t *testing.T) {
	path, _ := mediatest.WriteClip(t, "hev1")

	src, err := Open(path, time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	src.Close()
}

func TestSource_Seek(t *testing.T) {
	path, _ := mediatest.WriteClip(t, "hvc1")

	src, err := Open(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	tests := []struct {
		seconds float64
		wantPos time.Duration
	}{
		{0, 0},
		{0.6, 500 * time.Millisecond}, // lands on the preceding sample
		{10, time.Second},             // clamped to the last sample
		{-1, 0},
	}
	for _, tt := range tests {
		if err := src.Seek(tt.seconds); err != nil {
			t.Fatalf("Seek(%v) error = %v", tt.seconds, err)
		}
		if got := src.Position(); got != tt.wantPos {
			t.Errorf("Position() after Seek(%v) = %v, want %v", tt.seconds, got, tt.wantPos)
		}
	}
}

func TestOpen_NoHEVCStream(t *testing.T) {
	// Same structure but an AVC sample entry: the track must be skipped.
	path, _ := mediatest.WriteClip(t, "avc1")

	_, err := Open(path, time.Second)
	if !errors.Is(err, ErrNoHEVCStream) {
		t.Errorf("Open() error = %v, want ErrNoHEVCStream", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.mp4"), time.Second)
	if err == nil {
		t.Fatal("Open() of missing file succeeded")
	}
	var derr *Error
	if !errors.As(err, &derr) {
		t.Errorf("Open() error = %T, want *demux.Error", err)
	}
}

func TestOpen_RemoteFetch(t *testing.T) {
	path, nals := mediatest.WriteClip(t, "hvc1")
	clip, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(clip)
	}))
	defer srv.Close()

	src, err := Open(srv.URL+"/clip.mp4", 5*time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	s, err := src.ReadSample()
	if err != nil {
		t.Fatalf("ReadSample() error = %v", err)
	}
	want := append([]byte{0, 0, 0, 1}, nals[0]...)
	if !bytes.Equal(s.Data, want) {
		t.Errorf("sample = %x, want %x", s.Data, want)
	}

	tmp := src.tmpPath
	if tmp == "" {
		t.Fatal("remote open left no temporary copy")
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Errorf("temporary copy %s survived Close", tmp)
	}
}

func TestOpen_RemoteFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		target string
	}{
		{"server error", srv.URL + "/clip.mp4"},
		{"unreachable", "http://127.0.0.1:1/clip.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.target, time.Second)
			var derr *Error
			if !errors.As(err, &derr) {
				t.Fatalf("Open() error = %v (%T), want *demux.Error", err, err)
			}
			if derr.Op != "fetch" {
				t.Errorf("Op = %q, want fetch", derr.Op)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"http://example.com/a.mp4", true},
		{"https://example.com/a.mp4", true},
		{"/tmp/a.mp4", false},
		{"a.mp4", false},
	}
	for _, tt := range tests {
		if got := isRemote(tt.target); got != tt.want {
			t.Errorf("isRemote(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}
