package demux

import (
	"encoding/binary"
	"fmt"
)

var startCode = []byte{0, 0, 0, 1}

// parseHvcC converts an HEVCDecoderConfigurationRecord (the raw payload
// of an hvcC box) into Annex B form: every parameter set NALU prefixed
// with a four-byte start code. The decoder must receive these before
// any sample data. Returns the converted extradata and the NAL length
// field size used by the track's samples.
func parseHvcC(rec []byte) ([]byte, int, error) {
	// Fixed part of the record is 22 bytes; lengthSizeMinusOne lives in
	// the low bits of byte 21, numOfArrays in byte 22.
	if len(rec) < 23 {
		return nil, 0, fmt.Errorf("hvcC record too short (%d bytes)", len(rec))
	}
	nalLen := int(rec[21]&3) + 1
	numArrays := int(rec[22])
	off := 23

	out := make([]byte, 0, len(rec))
	for i := 0; i < numArrays; i++ {
		if off+3 > len(rec) {
			return nil, 0, fmt.Errorf("hvcC truncated in array header %d", i)
		}
		// array_completeness(1) + reserved(1) + NAL_unit_type(6), unused here
		count := int(binary.BigEndian.Uint16(rec[off+1 : off+3]))
		off += 3
		for j := 0; j < count; j++ {
			if off+2 > len(rec) {
				return nil, 0, fmt.Errorf("hvcC truncated in nalu length %d/%d", i, j)
			}
			n := int(binary.BigEndian.Uint16(rec[off : off+2]))
			off += 2
			if off+n > len(rec) {
				return nil, 0, fmt.Errorf("hvcC truncated in nalu payload %d/%d", i, j)
			}
			out = append(out, startCode...)
			out = append(out, rec[off:off+n]...)
			off += n
		}
	}
	return out, nalLen, nil
}

// toAnnexB rewrites a length-prefixed sample to start-code form. For
// the common four-byte length prefix the rewrite happens in place, the
// way the VPU feeder expects it; shorter prefixes force a copy since
// the start code does not fit the hole.
func toAnnexB(sample []byte, nalLen int) ([]byte, error) {
	if nalLen == 4 {
		off := 0
		for off < len(sample) {
			if off+4 > len(sample) {
				return nil, fmt.Errorf("sample truncated at nal header (offset %d)", off)
			}
			n := int(binary.BigEndian.Uint32(sample[off : off+4]))
			if n < 0 || off+4+n > len(sample) {
				return nil, fmt.Errorf("nal length %d exceeds sample (offset %d)", n, off)
			}
			copy(sample[off:off+4], startCode)
			off += 4 + n
		}
		return sample, nil
	}

	if nalLen < 1 || nalLen > 4 {
		return nil, fmt.Errorf("unsupported nal length size %d", nalLen)
	}
	out := make([]byte, 0, len(sample)+len(sample)/8)
	off := 0
	for off < len(sample) {
		if off+nalLen > len(sample) {
			return nil, fmt.Errorf("sample truncated at nal header (offset %d)", off)
		}
		n := 0
		for i := 0; i < nalLen; i++ {
			n = n<<8 | int(sample[off+i])
		}
		off += nalLen
		if off+n > len(sample) {
			return nil, fmt.Errorf("nal length %d exceeds sample (offset %d)", n, off)
		}
		out = append(out, startCode...)
		out = append(out, sample[off:off+n]...)
		off += n
	}
	return out, nil
}
