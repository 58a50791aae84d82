package amlview

import (
	"errors"

	"github.com/kerbiriou/amlview/internal/demux"
	"github.com/kerbiriou/amlview/internal/engine"
	"github.com/kerbiriou/amlview/internal/x11"
)

// Code is a player status code. Zero is success, positive codes are
// caller mistakes, negative codes are failures. The values are part of
// the compatibility surface shared with the C header and must not
// change.
type Code int

const (
	CodeNone              Code = 0
	CodeInvalidCommand    Code = 1
	CodeUnknown           Code = -1
	CodeDisconnected      Code = -2
	CodeDemuxDisconnected Code = -3
	CodeDemuxInternal     Code = -4
	CodeVideoDecoding     Code = -5
	CodeNoHEVCStream      Code = -6
	CodeDisplayOpen       Code = -7
	CodeDisplayInternal   Code = -8
	CodeBug               Code = -42
	CodeUnreachable       Code = -43
	CodeShutdown          Code = -64
)

// Failed reports whether the code is a failure. CodeInvalidCommand is
// a rejection, not a failure, matching the original numbering where
// only negative values are errors.
func (c Code) Failed() bool { return c < 0 }

func (c Code) String() string {
	switch c {
	case CodeNone:
		return "ok"
	case CodeInvalidCommand:
		return "invalid command"
	case CodeUnknown:
		return "unknown error"
	case CodeDisconnected:
		return "player disconnected"
	case CodeDemuxDisconnected:
		return "demuxer disconnected"
	case CodeDemuxInternal:
		return "demuxer internal error"
	case CodeVideoDecoding:
		return "video decoding error"
	case CodeNoHEVCStream:
		return "no hevc stream"
	case CodeDisplayOpen:
		return "cannot open display"
	case CodeDisplayInternal:
		return "display internal error"
	case CodeBug:
		return "bug"
	case CodeUnreachable:
		return "unreachable state"
	case CodeShutdown:
		return "shutting down"
	default:
		return "unrecognized code"
	}
}

// err turns a code back into an error for callers that want one.
func (c Code) err() error {
	if c == CodeNone {
		return nil
	}
	return errors.New(c.String())
}

// codeFor translates an internal error into its public code.
func codeFor(err error) Code {
	var derr *demux.Error
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, engine.ErrShutdown):
		return CodeShutdown
	case errors.Is(err, engine.ErrNothingLoaded):
		return CodeInvalidCommand
	case errors.Is(err, engine.ErrDemuxDisconnected):
		return CodeDemuxDisconnected
	case errors.Is(err, engine.ErrDisconnected):
		return CodeDisconnected
	case errors.Is(err, demux.ErrNoHEVCStream):
		return CodeNoHEVCStream
	case errors.As(err, &derr):
		return CodeDemuxInternal
	case errors.Is(err, x11.ErrOpen):
		return CodeDisplayOpen
	case errors.Is(err, x11.ErrInternal):
		return CodeDisplayInternal
	case errors.Is(err, engine.ErrDecoder):
		return CodeVideoDecoding
	default:
		return CodeUnknown
	}
}
