// Package mediatest authors minimal MP4 fixtures for the player's
// tests: an mdat of length-prefixed HEVC samples followed by a moov
// describing them. Keeping one authoring helper stops the demux,
// engine and player suites from drifting apart on fixture details.
package mediatest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// VPS is the parameter-set NALU carried by fixture clips.
var VPS = []byte{0x40, 0x01, 0x0C}

// Box assembles one MP4 box from its fourcc and payload parts.
func Box(fourcc string, parts ...[]byte) []byte {
	payload := bytes.Join(parts, nil)
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out, uint32(8+len(payload)))
	copy(out[4:8], fourcc)
	return append(out, payload...)
}

// U16 encodes a big-endian uint16.
func U16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }

// U32 encodes a big-endian uint32.
func U32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }

// BuildHvcC assembles a minimal HEVCDecoderConfigurationRecord holding
// the given parameter-set NALUs in a single array.
func BuildHvcC(lengthSizeMinusOne byte, nalus ...[]byte) []byte {
	rec := make([]byte, 21)
	rec[0] = 1 // configurationVersion
	rec = append(rec, 0xFC|lengthSizeMinusOne)
	rec = append(rec, 1) // numOfArrays
	rec = append(rec, 0xA0, 0, byte(len(nalus)))
	for _, n := range nalus {
		rec = append(rec, byte(len(n)>>8), byte(len(n)))
		rec = append(rec, n...)
	}
	return rec
}

// WriteClip authors a playable-shape MP4 with three samples on a
// 1000-unit timescale (PTS 0, 500 and 1000ms, duration 2s) under the
// given sample entry fourcc. Returns the file path and the raw NAL
// payloads per sample.
func WriteClip(t *testing.T, sampleEntryType string) (string, [][]byte) {
	t.Helper()

	nals := [][]byte{
		{0x26, 0x01, 0xAA},
		{0x02, 0x01, 0xBB, 0xCC},
		{0x02, 0x01, 0xDD},
	}
	var mdatPayload []byte
	var sizes []byte
	for _, n := range nals {
		mdatPayload = append(mdatPayload, U32(uint32(len(n)))...)
		mdatPayload = append(mdatPayload, n...)
		sizes = append(sizes, U32(uint32(4+len(n)))...)
	}
	mdat := Box("mdat", mdatPayload)

	entry := Box(sampleEntryType,
		make([]byte, 6), U16(1), // data_reference_index
		make([]byte, 16), // pre_defined + reserved
		U16(1920), U16(1080),
		U32(0x00480000), U32(0x00480000), // dpi
		U32(0), U16(1), // reserved, frame_count
		make([]byte, 32), // compressorname
		U16(24), U16(0xFFFF),
		Box("hvcC", BuildHvcC(3, VPS)),
	)

	stbl := Box("stbl",
		Box("stsd", U32(0), U32(1), entry),
		Box("stts", U32(0), U32(1), U32(3), U32(500)),
		Box("stsc", U32(0), U32(1), U32(1), U32(3), U32(1)),
		Box("stsz", U32(0), U32(0), U32(3), sizes),
		Box("stco", U32(0), U32(1), U32(8)), // samples start right after the mdat header
	)

	mdhd := Box("mdhd",
		U32(0),               // version/flags
		U32(0), U32(0),       // creation, modification
		U32(1000), U32(2000), // timescale, duration
		U16(0x55C4), U16(0),  // language, pre_defined
	)
	hdlr := Box("hdlr", U32(0), U32(0), []byte("vide"), make([]byte, 12), []byte{0})

	moov := Box("moov",
		Box("trak",
			Box("mdia", mdhd, hdlr, Box("minf", stbl)),
		),
	)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, append(mdat, moov...), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, nals
}
