package engine

import (
	"errors"
	"io"
	"time"

	"github.com/kerbiriou/amlview/internal/demux"
	"github.com/kerbiriou/amlview/internal/vpu"
)

type demuxCmdKind int

const (
	dcLoad demuxCmdKind = iota
	dcSeek
)

type demuxCmd struct {
	kind    demuxCmdKind
	target  string
	seconds float64
	reply   chan demuxResult
}

type demuxResult struct {
	duration      time.Duration
	width, height uint16
	err           error
}

// demuxLoop owns the open Source. Between commands it pumps samples
// into the sink feed channel; the sink loop always drains that channel
// so sends cannot wedge.
func (e *Engine) demuxLoop() {
	defer e.wg.Done()

	var src *demux.Source
	defer func() {
		if src != nil {
			src.Close()
		}
	}()
	streaming := false

	for {
		if streaming {
			// Commands jump the queue so a seek or reload does not wait
			// for the rest of the file to be fed.
			select {
			case <-e.quit:
				return
			case c := <-e.demuxCmds:
				src, streaming = e.handleDemuxCmd(c, src)
				continue
			default:
			}

			smp, err := src.ReadSample()
			switch {
			case err == io.EOF:
				if !e.sendFeed(vpu.Feed{Kind: vpu.FeedEOF}) {
					return
				}
				streaming = false
			case err != nil:
				e.log.Errorf("demux: %v", err)
				e.reportEnd(vpu.EndReason{Err: err})
				streaming = false
			default:
				if !e.sendFeed(vpu.Feed{Kind: vpu.FeedSample, Data: smp.Data, PTS: smp.PTS}) {
					return
				}
				e.posMicros.Store(int64(smp.PTS / time.Microsecond))
			}
			continue
		}

		select {
		case <-e.quit:
			return
		case c := <-e.demuxCmds:
			src, streaming = e.handleDemuxCmd(c, src)
		}
	}
}

func (e *Engine) handleDemuxCmd(c demuxCmd, src *demux.Source) (*demux.Source, bool) {
	switch c.kind {
	case dcLoad:
		// Discard whatever the decoder is holding before switching.
		if src != nil {
			if !e.sendFeed(vpu.Feed{Kind: vpu.FeedStop}) {
				c.reply <- demuxResult{err: ErrShutdown}
				return src, false
			}
			src.Close()
			src = nil
		}
		next, err := demux.Open(c.target, e.cfg.FetchTimeout)
		if err != nil {
			c.reply <- demuxResult{err: err}
			return nil, false
		}
		if !e.sendFeed(vpu.Feed{Kind: vpu.FeedExtraData, Data: next.ExtraData()}) {
			next.Close()
			c.reply <- demuxResult{err: ErrShutdown}
			return nil, false
		}
		// Reset the position here, not in the command loop: sample
		// streaming starts as soon as the reply is sent, and a reset
		// racing the per-sample stores would wipe real positions.
		e.posMicros.Store(0)
		w, h := next.Dimensions()
		c.reply <- demuxResult{duration: next.Duration(), width: w, height: h}
		return next, true

	case dcSeek:
		if src == nil {
			c.reply <- demuxResult{err: ErrNothingLoaded}
			return nil, false
		}
		if !e.sendFeed(vpu.Feed{Kind: vpu.FeedStop}) {
			c.reply <- demuxResult{err: ErrShutdown}
			return src, false
		}
		if err := src.Seek(c.seconds); err != nil {
			c.reply <- demuxResult{err: err}
			return src, false
		}
		// Parameter sets again: the decoder was flushed by the stop.
		if !e.sendFeed(vpu.Feed{Kind: vpu.FeedExtraData, Data: src.ExtraData()}) {
			c.reply <- demuxResult{err: ErrShutdown}
			return src, false
		}
		e.posMicros.Store(int64(src.Position() / time.Microsecond))
		c.reply <- demuxResult{}
		return src, true

	default:
		c.reply <- demuxResult{err: errors.New("unknown demux command")}
		return src, src != nil
	}
}

// sendFeed delivers one item to the sink, giving up on shutdown.
func (e *Engine) sendFeed(f vpu.Feed) bool {
	select {
	case e.sink.FeedCh() <- f:
		return true
	case <-e.quit:
		return false
	}
}

// reportEnd unblocks WaitUntilEnd with a stream error, keeping only
// the latest notification like the sink does.
func (e *Engine) reportEnd(r vpu.EndReason) {
	select {
	case e.eos <- r:
	default:
		select {
		case <-e.eos:
		default:
		}
		select {
		case e.eos <- r:
		default:
		}
	}
}
