package vpu

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// pollInterval paces drain checks and keeps the loop from spinning.
	pollInterval = 10 * time.Millisecond
	// drainStableReads: this many identical buffer-level reads after
	// EOF mean the decoder is stuck on a final partial frame and the
	// stream is treated as finished.
	drainStableReads = 3
)

// Sink owns the decoder feed loop. Control commands and demuxer output
// arrive on channels; end-of-stream is reported on the eos channel
// handed to Open.
type Sink struct {
	be   backend
	cfg  Config
	eos  chan EndReason
	log  *logrus.Entry
	cmds chan Command
	feed chan Feed

	st        state
	prevLevel int32
	sameLevel int
}

func newSink(be backend, cfg Config, eos chan EndReason, log *logrus.Entry) *Sink {
	return &Sink{
		be:   be,
		cfg:  cfg,
		eos:  eos,
		log:  log,
		cmds: make(chan Command, 8),
		feed: make(chan Feed, 128),
		st:   stateInitial,
	}
}

// Commands is where control requests are sent.
func (s *Sink) Commands() chan<- Command { return s.cmds }

// FeedCh is where the demux loop delivers decoder input.
func (s *Sink) FeedCh() chan<- Feed { return s.feed }

// Run services the sink until quit closes, then releases the device.
func (s *Sink) Run(quit <-chan struct{}) {
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	defer s.be.close()

	for {
		select {
		case <-quit:
			s.log.Debug("sink shutting down")
			return
		case cmd := <-s.cmds:
			s.handleCommand(cmd)
		case f := <-s.feed:
			if err := s.processFeed(f); err != nil {
				// A failed write mid-stream does not end playback; the
				// decoder usually recovers on the next access unit.
				s.log.Warnf("feed: %v", err)
			}
		case <-tick.C:
			s.update()
		}
	}
}

func (s *Sink) handleCommand(cmd Command) {
	var err error
	switch cmd.Kind {
	case CmdPlay:
		err = s.play()
	case CmdPause:
		err = s.pause()
	case CmdAxis:
		err = s.be.setAxis(cmd.X, cmd.Y, cmd.W, cmd.H)
	case CmdFullscreen:
		err = s.be.fullscreenAxis()
	default:
		err = fmt.Errorf("unknown sink command %d", cmd.Kind)
	}
	if err != nil {
		s.log.Errorf("command %d: %v", cmd.Kind, err)
	}
	if cmd.Reply != nil {
		cmd.Reply <- err
	}
}

func (s *Sink) processFeed(f Feed) error {
	switch f.Kind {
	case FeedExtraData, FeedSample:
		return s.be.write(f.Data)
	case FeedEOF:
		return s.setState(s.st.afterEOF(), true)
	case FeedStop:
		return s.stop()
	default:
		return fmt.Errorf("unknown feed kind %d", f.Kind)
	}
}

func (s *Sink) play() error  { return s.setState(s.st.afterPlay(), false) }
func (s *Sink) pause() error { return s.setState(s.st.afterPause(), false) }

// stop discards the current stream without an end-of-stream
// notification; the demuxer sends it before loading new media.
func (s *Sink) stop() error {
	if s.st == stateInitial {
		return nil
	}
	return s.setState(stateStopped, false)
}

// setState applies the hardware side effects of a transition. eof
// matters only when entering Stopped: it decides whether waiters are
// notified.
func (s *Sink) setState(next state, eof bool) error {
	if s.st == next {
		return nil
	}
	switch next {
	case stateStopped:
		if err := s.be.clearVideo(); err != nil {
			return err
		}
		if eof {
			s.notifyEnd(EndReason{})
		}
	case statePaused, statePausedFinishing:
		if err := s.be.setPaused(true); err != nil {
			return err
		}
	case statePlaying:
		if err := s.be.setPaused(false); err != nil {
			return err
		}
	case stateFinishing:
		if s.st == statePausedFinishing {
			if err := s.be.setPaused(false); err != nil {
				return err
			}
		}
		s.prevLevel = 0
		s.sameLevel = 0
	}
	s.log.Debugf("state %s -> %s", s.st, next)
	s.st = next
	return nil
}

// update advances the drain detection and, once stopped, reopens the
// device: closing and reopening is the only reliable way to flush the
// hardware buffer.
func (s *Sink) update() {
	if s.st == stateFinishing {
		level, err := s.be.bufferLevel()
		if err != nil {
			s.log.Warnf("buffer status: %v", err)
			return
		}
		drained := level <= 0 || (level == s.prevLevel && s.sameLevel >= drainStableReads)
		if drained {
			if err := s.setState(stateStopped, true); err != nil {
				s.log.Errorf("stop after drain: %v", err)
			}
		} else {
			if level == s.prevLevel {
				s.sameLevel++
			} else {
				s.sameLevel = 0
			}
			s.prevLevel = level
		}
	}

	if s.st == stateStopped {
		if err := s.be.reopen(); err != nil {
			s.log.Errorf("reopen decoder: %v", err)
			return
		}
		s.st = stateInitial
		s.prevLevel = 0
		s.sameLevel = 0
	}
}

// notifyEnd keeps only the most recent notification if nobody is
// waiting, so a late WaitUntilEnd still observes the last stream end.
func (s *Sink) notifyEnd(r EndReason) {
	select {
	case s.eos <- r:
	default:
		select {
		case <-s.eos:
		default:
		}
		select {
		case s.eos <- r:
		default:
		}
	}
}
