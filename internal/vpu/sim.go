package vpu

import "sync"

// simBackend stands in for the amstream devices on machines without
// the Amlogic VPU. It models the hardware buffer as a write counter
// that drains while presentation runs, which is enough for the drain
// detection and the whole state machine to behave like the real thing.
type simBackend struct {
	mu      sync.Mutex
	level   int32
	playing bool
}

func newSimBackend() *simBackend { return &simBackend{} }

func (b *simBackend) write(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level++
	return nil
}

func (b *simBackend) setPaused(paused bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playing = !paused
	return nil
}

func (b *simBackend) setAxis(x, y int, w, h uint32) error { return nil }
func (b *simBackend) fullscreenAxis() error               { return nil }

func (b *simBackend) clearVideo() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = 0
	return nil
}

// bufferLevel drains one unit per read while presenting, mimicking the
// decoder chewing through its buffer.
func (b *simBackend) bufferLevel() (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.playing && b.level > 0 {
		b.level--
	}
	return b.level, nil
}

func (b *simBackend) version() (uint16, uint16, error) { return 0, 0, nil }

func (b *simBackend) reopen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = 0
	b.playing = false
	return nil
}

func (b *simBackend) close() error { return nil }
