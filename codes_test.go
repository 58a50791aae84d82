package amlview

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kerbiriou/amlview/internal/demux"
	"github.com/kerbiriou/amlview/internal/engine"
	"github.com/kerbiriou/amlview/internal/x11"
)

// The numeric values are shared with the C header; they are frozen.
func TestCodeValues(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNone, 0},
		{CodeInvalidCommand, 1},
		{CodeUnknown, -1},
		{CodeDisconnected, -2},
		{CodeDemuxDisconnected, -3},
		{CodeDemuxInternal, -4},
		{CodeVideoDecoding, -5},
		{CodeNoHEVCStream, -6},
		{CodeDisplayOpen, -7},
		{CodeDisplayInternal, -8},
		{CodeBug, -42},
		{CodeUnreachable, -43},
		{CodeShutdown, -64},
	}
	for _, tt := range tests {
		if int(tt.code) != tt.want {
			t.Errorf("%s = %d, want %d", tt.code, int(tt.code), tt.want)
		}
	}
}

func TestCodeFailed(t *testing.T) {
	if CodeNone.Failed() {
		t.Error("CodeNone must not be a failure")
	}
	if CodeInvalidCommand.Failed() {
		t.Error("CodeInvalidCommand is a rejection, not a failure")
	}
	for _, c := range []Code{CodeUnknown, CodeNoHEVCStream, CodeShutdown} {
		if !c.Failed() {
			t.Errorf("%s must be a failure", c)
		}
	}
}

func TestCodeString(t *testing.T) {
	for _, c := range []Code{
		CodeNone, CodeInvalidCommand, CodeUnknown, CodeDisconnected,
		CodeDemuxDisconnected, CodeDemuxInternal, CodeVideoDecoding,
		CodeNoHEVCStream, CodeDisplayOpen, CodeDisplayInternal,
		CodeBug, CodeUnreachable, CodeShutdown,
	} {
		if c.String() == "unrecognized code" {
			t.Errorf("code %d has no name", int(c))
		}
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeNone},
		{"shutdown", engine.ErrShutdown, CodeShutdown},
		{"nothing loaded", engine.ErrNothingLoaded, CodeInvalidCommand},
		{"disconnected", engine.ErrDisconnected, CodeDisconnected},
		{"demux disconnected", engine.ErrDemuxDisconnected, CodeDemuxDisconnected},
		{"no hevc", &demux.Error{Op: "parse", Err: demux.ErrNoHEVCStream}, CodeNoHEVCStream},
		{"demux internal", &demux.Error{Op: "open", Err: errors.New("corrupt")}, CodeDemuxInternal},
		{"display open", fmt.Errorf("%w: no server", x11.ErrOpen), CodeDisplayOpen},
		{"display internal", fmt.Errorf("%w: map failed", x11.ErrInternal), CodeDisplayInternal},
		{"decoder", fmt.Errorf("%w: open device", engine.ErrDecoder), CodeVideoDecoding},
		{"anything else", errors.New("mystery"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := codeFor(tt.err); got != tt.want {
				t.Errorf("codeFor(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
