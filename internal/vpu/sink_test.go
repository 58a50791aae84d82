package vpu

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testSink(t *testing.T) (*Sink, chan EndReason, chan struct{}) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	eos := make(chan EndReason, 1)
	s := newSink(newSimBackend(), Config{}, eos, logrus.NewEntry(logger))
	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.Run(quit)
		close(done)
	}()
	t.Cleanup(func() {
		close(quit)
		<-done
	})
	return s, eos, quit
}

func send(t *testing.T, s *Sink, kind CmdKind) {
	t.Helper()
	reply := make(chan error, 1)
	s.Commands() <- Command{Kind: kind, Reply: reply}
	select {
	case err := <-reply:
		if err != nil {
			t.Fatalf("command %d: %v", kind, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("command %d: no reply", kind)
	}
}

func TestSink_EOFDrainsAndNotifies(t *testing.T) {
	s, eos, _ := testSink(t)

	s.FeedCh() <- Feed{Kind: FeedExtraData, Data: []byte{0, 0, 0, 1}}
	for i := 0; i < 5; i++ {
		s.FeedCh() <- Feed{Kind: FeedSample, Data: []byte{0, 0, 0, 1, 0x26}}
	}
	send(t, s, CmdPlay)
	s.FeedCh() <- Feed{Kind: FeedEOF}

	select {
	case r := <-eos:
		if r.Err != nil {
			t.Fatalf("end reason: %v", r.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no end-of-stream notification")
	}
}

func TestSink_PausedDrainWaitsForPlay(t *testing.T) {
	s, eos, _ := testSink(t)

	for i := 0; i < 3; i++ {
		s.FeedCh() <- Feed{Kind: FeedSample, Data: []byte{0, 0, 0, 1, 0x26}}
	}
	send(t, s, CmdPause)
	s.FeedCh() <- Feed{Kind: FeedEOF}

	// Frozen presentation holds the buffer level steady without ever
	// reporting a drain, so no notification may arrive yet.
	select {
	case <-eos:
		t.Fatal("stream ended while paused")
	case <-time.After(200 * time.Millisecond):
	}

	send(t, s, CmdPlay)
	select {
	case r := <-eos:
		if r.Err != nil {
			t.Fatalf("end reason: %v", r.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no end-of-stream notification after resume")
	}
}

func TestSink_StopDiscardsWithoutNotify(t *testing.T) {
	s, eos, _ := testSink(t)

	s.FeedCh() <- Feed{Kind: FeedSample, Data: []byte{0, 0, 0, 1, 0x26}}
	send(t, s, CmdPlay)
	s.FeedCh() <- Feed{Kind: FeedStop}

	select {
	case <-eos:
		t.Fatal("stop must not look like end of stream")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSink_AxisCommands(t *testing.T) {
	s, _, _ := testSink(t)

	reply := make(chan error, 1)
	s.Commands() <- Command{Kind: CmdAxis, X: 10, Y: 20, W: 640, H: 360, Reply: reply}
	if err := <-reply; err != nil {
		t.Fatalf("axis: %v", err)
	}
	send(t, s, CmdFullscreen)
}
