// Package demux opens an MP4 file or URL and hands out the HEVC
// elementary stream in Annex B form, ready to be written to the VPU.
// It fills the role libavformat played in the original player: track
// selection, extradata conversion, sample iteration and time-based
// seeking.
package demux

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	mp4 "github.com/abema/go-mp4"
)

// ErrNoHEVCStream is returned when the container holds no hvc1/hev1
// video track. The player only drives the HEVC decoder, so anything
// else is unplayable.
var ErrNoHEVCStream = errors.New("no hevc stream in media")

// Error wraps a demuxer fault with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("demux: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error { return &Error{Op: op, Err: err} }

type sampleInfo struct {
	offset int64
	size   uint32
	pts    uint64 // in track timescale units
	sync   bool
}

// Source is an open media target positioned on its HEVC track.
// Not safe for concurrent use; the demux loop is its only caller.
type Source struct {
	f         *os.File
	tmpPath   string // non-empty when the media was fetched from a URL
	timescale uint32
	duration  time.Duration
	extra     []byte
	nalLen    int
	width     uint16
	height    uint16
	samples   []sampleInfo
	cur       int
}

// Open reads the media at target, which is either a filesystem path or
// an HTTP(S) URL. Remote media is fetched into a temporary file first;
// the file is removed on Close.
func Open(target string, fetchTimeout time.Duration) (*Source, error) {
	path := target
	tmp := ""
	if isRemote(target) {
		p, err := fetch(target, fetchTimeout)
		if err != nil {
			return nil, wrap("fetch", err)
		}
		path = p
		tmp = p
	}

	f, err := os.Open(path)
	if err != nil {
		if tmp != "" {
			os.Remove(tmp)
		}
		return nil, wrap("open", err)
	}

	s := &Source{f: f, tmpPath: tmp}
	if err := s.parse(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying file and any fetched temporary copy.
func (s *Source) Close() error {
	err := s.f.Close()
	if s.tmpPath != "" {
		os.Remove(s.tmpPath)
	}
	return err
}

// ExtraData returns the parameter sets in Annex B form. Must be written
// to the decoder before the first sample and again after every seek.
func (s *Source) ExtraData() []byte { return s.extra }

// Duration reports the HEVC track duration.
func (s *Source) Duration() time.Duration { return s.duration }

// Dimensions reports the coded width and height from the sample entry.
func (s *Source) Dimensions() (w, h uint16) { return s.width, s.height }

// Sample is one access unit in Annex B form with its presentation time.
type Sample struct {
	Data []byte
	PTS  time.Duration
}

// ReadSample returns the next video sample, converted to start-code
// form. io.EOF signals the end of the track.
func (s *Source) ReadSample() (Sample, error) {
	if s.cur >= len(s.samples) {
		return Sample{}, io.EOF
	}
	info := s.samples[s.cur]
	buf := make([]byte, info.size)
	if _, err := s.f.ReadAt(buf, info.offset); err != nil {
		return Sample{}, wrap("read sample", err)
	}
	data, err := toAnnexB(buf, s.nalLen)
	if err != nil {
		return Sample{}, wrap("convert sample", err)
	}
	s.cur++
	return Sample{Data: data, PTS: s.toDuration(info.pts)}, nil
}

// Seek repositions the reader to the last sync sample at or before the
// given position. The next ReadSample starts from there.
func (s *Source) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	target := uint64(seconds * float64(s.timescale))
	idx := 0
	for i := range s.samples {
		if s.samples[i].pts > target {
			break
		}
		if s.samples[i].sync {
			idx = i
		}
	}
	s.cur = idx
	return nil
}

// Position reports the presentation time of the next sample to read.
func (s *Source) Position() time.Duration {
	if s.cur >= len(s.samples) {
		return s.duration
	}
	return s.toDuration(s.samples[s.cur].pts)
}

func (s *Source) toDuration(ts uint64) time.Duration {
	if s.timescale == 0 {
		return 0
	}
	return time.Duration(ts) * time.Second / time.Duration(s.timescale)
}

func isRemote(target string) bool {
	return len(target) > 7 && (target[:7] == "http://" || (len(target) > 8 && target[:8] == "https://"))
}

// parse walks the moov box, locates the first hvc1/hev1 track and
// flattens its sample tables into a single indexable list.
func (s *Source) parse() error {
	traks, err := mp4.ExtractBox(s.f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak()})
	if err != nil {
		return wrap("read moov", err)
	}

	for _, trak := range traks {
		ok, err := s.parseTrak(trak)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrNoHEVCStream
}

func (s *Source) parseTrak(trak *mp4.BoxInfo) (bool, error) {
	// Only video handlers can carry the stream we want.
	hdlrs, err := mp4.ExtractBoxWithPayload(s.f, trak, mp4.BoxPath{mp4.BoxTypeMdia(), mp4.BoxTypeHdlr()})
	if err != nil || len(hdlrs) == 0 {
		return false, nil
	}
	hdlr, ok := hdlrs[0].Payload.(*mp4.Hdlr)
	if !ok || string(hdlr.HandlerType[:]) != "vide" {
		return false, nil
	}

	stblPath := mp4.BoxPath{mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl()}

	stsds, err := mp4.ExtractBox(s.f, trak, append(stblPath, mp4.BoxTypeStsd()))
	if err != nil || len(stsds) == 0 {
		return false, nil
	}
	found, err := s.parseStsd(stsds[0])
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	mdhds, err := mp4.ExtractBoxWithPayload(s.f, trak, mp4.BoxPath{mp4.BoxTypeMdia(), mp4.BoxTypeMdhd()})
	if err != nil || len(mdhds) == 0 {
		return false, wrap("read mdhd", errOrMissing(err))
	}
	mdhd := mdhds[0].Payload.(*mp4.Mdhd)
	s.timescale = mdhd.Timescale
	var dur uint64
	if mdhd.GetVersion() == 0 {
		dur = uint64(mdhd.DurationV0)
	} else {
		dur = mdhd.DurationV1
	}
	s.duration = s.toDuration(dur)

	if err := s.buildSampleTable(trak, stblPath); err != nil {
		return false, err
	}
	return true, nil
}

func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return errors.New("box missing")
}

// parseStsd reads the raw stsd payload and looks for an hvc1/hev1
// sample entry. go-mp4 has no typed view of the HEVC entry, so the
// entry and its hvcC child are walked by hand.
func (s *Source) parseStsd(info *mp4.BoxInfo) (bool, error) {
	payload, err := s.rawPayload(info)
	if err != nil {
		return false, wrap("read stsd", err)
	}
	if len(payload) < 8 {
		return false, nil
	}
	entryCount := int(binary.BigEndian.Uint32(payload[4:8]))
	off := 8
	for i := 0; i < entryCount && off+8 <= len(payload); i++ {
		size := int(binary.BigEndian.Uint32(payload[off : off+4]))
		typ := string(payload[off+4 : off+8])
		if size < 8 || off+size > len(payload) {
			return false, wrap("parse stsd", fmt.Errorf("bad entry size %d", size))
		}
		if typ == "hvc1" || typ == "hev1" {
			return true, s.parseVisualEntry(payload[off : off+size])
		}
		off += size
	}
	return false, nil
}

// parseVisualEntry digs the hvcC record out of a VisualSampleEntry.
// Layout per ISO 14496-12: 8-byte box header, 78-byte fixed visual
// fields, then child boxes.
func (s *Source) parseVisualEntry(entry []byte) error {
	const fixed = 8 + 78
	if len(entry) < fixed {
		return wrap("parse sample entry", errors.New("entry too short"))
	}
	s.width = binary.BigEndian.Uint16(entry[8+24 : 8+26])
	s.height = binary.BigEndian.Uint16(entry[8+26 : 8+28])

	off := fixed
	for off+8 <= len(entry) {
		size := int(binary.BigEndian.Uint32(entry[off : off+4]))
		typ := string(entry[off+4 : off+8])
		if size < 8 || off+size > len(entry) {
			break
		}
		if typ == "hvcC" {
			extra, nalLen, err := parseHvcC(entry[off+8 : off+size])
			if err != nil {
				return wrap("parse hvcC", err)
			}
			s.extra = extra
			s.nalLen = nalLen
			return nil
		}
		off += size
	}
	return wrap("parse sample entry", errors.New("hvcC box missing"))
}

func (s *Source) rawPayload(info *mp4.BoxInfo) ([]byte, error) {
	buf := make([]byte, info.Size-info.HeaderSize)
	if _, err := s.f.ReadAt(buf, int64(info.Offset+info.HeaderSize)); err != nil {
		return nil, err
	}
	return buf, nil
}

// buildSampleTable flattens stts/stsc/stsz/stco(co64)/stss into one
// ordered sample list with absolute file offsets and timestamps.
func (s *Source) buildSampleTable(trak *mp4.BoxInfo, stblPath mp4.BoxPath) error {
	var (
		stts *mp4.Stts
		stsc *mp4.Stsc
		stsz *mp4.Stsz
		stss *mp4.Stss
	)
	var chunkOffsets []uint64

	get := func(bt mp4.BoxType) (mp4.IBox, error) {
		boxes, err := mp4.ExtractBoxWithPayload(s.f, trak, append(stblPath, bt))
		if err != nil {
			return nil, err
		}
		if len(boxes) == 0 {
			return nil, nil
		}
		return boxes[0].Payload, nil
	}

	if b, err := get(mp4.BoxTypeStts()); err != nil {
		return wrap("read stts", err)
	} else if b != nil {
		stts = b.(*mp4.Stts)
	}
	if b, err := get(mp4.BoxTypeStsc()); err != nil {
		return wrap("read stsc", err)
	} else if b != nil {
		stsc = b.(*mp4.Stsc)
	}
	if b, err := get(mp4.BoxTypeStsz()); err != nil {
		return wrap("read stsz", err)
	} else if b != nil {
		stsz = b.(*mp4.Stsz)
	}
	if b, err := get(mp4.BoxTypeStss()); err == nil && b != nil {
		stss = b.(*mp4.Stss)
	}
	if b, err := get(mp4.BoxTypeStco()); err != nil {
		return wrap("read stco", err)
	} else if b != nil {
		stco := b.(*mp4.Stco)
		chunkOffsets = make([]uint64, len(stco.ChunkOffset))
		for i, o := range stco.ChunkOffset {
			chunkOffsets[i] = uint64(o)
		}
	}
	if chunkOffsets == nil {
		if b, err := get(mp4.BoxTypeCo64()); err != nil {
			return wrap("read co64", err)
		} else if b != nil {
			chunkOffsets = b.(*mp4.Co64).ChunkOffset
		}
	}

	if stts == nil || stsc == nil || stsz == nil || chunkOffsets == nil {
		return wrap("sample tables", errors.New("incomplete stbl"))
	}

	sizes := func(i int) uint32 {
		if stsz.SampleSize != 0 {
			return stsz.SampleSize
		}
		return stsz.EntrySize[i]
	}
	total := int(stsz.SampleCount)

	syncs := map[int]bool{}
	if stss != nil {
		for _, n := range stss.SampleNumber {
			syncs[int(n)-1] = true // stss numbers samples from 1
		}
	}

	samples := make([]sampleInfo, 0, total)

	// Expand stsc runs into per-chunk sample counts.
	sampleIdx := 0
	var pts uint64
	sttsEntry, sttsLeft := 0, uint32(0)
	if len(stts.Entries) > 0 {
		sttsLeft = stts.Entries[0].SampleCount
	}
	nextPTS := func() uint64 {
		cur := pts
		for sttsEntry < len(stts.Entries) && sttsLeft == 0 {
			sttsEntry++
			if sttsEntry < len(stts.Entries) {
				sttsLeft = stts.Entries[sttsEntry].SampleCount
			}
		}
		if sttsEntry < len(stts.Entries) {
			pts += uint64(stts.Entries[sttsEntry].SampleDelta)
			sttsLeft--
		}
		return cur
	}

	for ci := 0; ci < len(chunkOffsets) && sampleIdx < total; ci++ {
		perChunk := samplesInChunk(stsc, ci)
		off := chunkOffsets[ci]
		for j := uint32(0); j < perChunk && sampleIdx < total; j++ {
			sz := sizes(sampleIdx)
			samples = append(samples, sampleInfo{
				offset: int64(off),
				size:   sz,
				pts:    nextPTS(),
				sync:   stss == nil || syncs[sampleIdx],
			})
			off += uint64(sz)
			sampleIdx++
		}
	}

	if len(samples) == 0 {
		return wrap("sample tables", errors.New("track has no samples"))
	}
	s.samples = samples
	return nil
}

// samplesInChunk resolves the stsc run covering chunk index ci (0-based).
func samplesInChunk(stsc *mp4.Stsc, ci int) uint32 {
	count := uint32(1)
	for _, e := range stsc.Entries {
		if int(e.FirstChunk)-1 > ci {
			break
		}
		count = e.SamplesPerChunk
	}
	return count
}
