package engine

import "errors"

var (
	// ErrShutdown is returned by every operation once the engine has
	// been closed or the window was destroyed.
	ErrShutdown = errors.New("engine shut down")

	// ErrNothingLoaded rejects operations that need media, like seeking
	// before any load.
	ErrNothingLoaded = errors.New("nothing loaded")

	// ErrDisconnected means an internal channel was torn down while a
	// command was in flight. Seeing it is a lifecycle bug.
	ErrDisconnected = errors.New("engine channel disconnected")

	// ErrDemuxDisconnected means the demux loop went away while a
	// command was addressed to it.
	ErrDemuxDisconnected = errors.New("demuxer channel disconnected")

	// ErrDecoder wraps failures to open or drive the video decoder.
	ErrDecoder = errors.New("video decoder error")
)
