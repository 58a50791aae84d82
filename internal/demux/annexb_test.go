package demux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbiriou/amlview/internal/mediatest"
)

func TestParseHvcC(t *testing.T) {
	vps := []byte{0x40, 0x01, 0x0C}
	sps := []byte{0x42, 0x01, 0x01, 0x22}

	extra, nalLen, err := parseHvcC(mediatest.BuildHvcC(3, vps, sps))
	require.NoError(t, err)
	assert.Equal(t, 4, nalLen)

	want := append([]byte{0, 0, 0, 1}, vps...)
	want = append(want, 0, 0, 0, 1)
	want = append(want, sps...)
	assert.Equal(t, want, extra)
}

func TestParseHvcC_Truncated(t *testing.T) {
	tests := []struct {
		name string
		rec  []byte
	}{
		{"empty", nil},
		{"short header", make([]byte, 10)},
		{"missing array", append(make([]byte, 22), 2)},
		{"nalu overruns", mediatest.BuildHvcC(3, []byte{1, 2, 3})[:26]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseHvcC(tt.rec)
			assert.Error(t, err)
		})
	}
}

func TestToAnnexB_InPlace(t *testing.T) {
	sample := []byte{
		0, 0, 0, 3, 0x26, 0x01, 0x02,
		0, 0, 0, 2, 0x44, 0x01,
	}
	out, err := toAnnexB(sample, 4)
	require.NoError(t, err)

	want := []byte{
		0, 0, 0, 1, 0x26, 0x01, 0x02,
		0, 0, 0, 1, 0x44, 0x01,
	}
	assert.Equal(t, want, out)
	// Four-byte prefixes are rewritten without reallocating.
	assert.True(t, &out[0] == &sample[0], "expected in-place rewrite")
}

func TestToAnnexB_ShortPrefix(t *testing.T) {
	sample := []byte{0, 3, 0x26, 0x01, 0x02, 0, 1, 0x44}
	out, err := toAnnexB(sample, 2)
	require.NoError(t, err)

	want := []byte{0, 0, 0, 1, 0x26, 0x01, 0x02, 0, 0, 0, 1, 0x44}
	assert.Equal(t, want, out)
}

func TestToAnnexB_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		nalLen int
	}{
		{"truncated header", []byte{0, 0, 0}, 4},
		{"length overruns", []byte{0, 0, 0, 9, 1, 2}, 4},
		{"bad prefix size", []byte{0, 1, 2}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toAnnexB(tt.sample, tt.nalLen)
			assert.Error(t, err)
		})
	}
}

func TestToAnnexB_Empty(t *testing.T) {
	out, err := toAnnexB(nil, 4)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(out, nil))
}
