package vpu

// state tracks where the decoder sits between "nothing buffered yet"
// and "hardware buffer drained".
//
// Valid transitions:
//   - Initial          → Playing | Paused | Finishing
//   - Playing          ↔ Paused
//   - Playing/Initial  → Finishing        (EOF arrived)
//   - Paused           → PausedFinishing  (EOF arrived while paused)
//   - Finishing        ↔ PausedFinishing
//   - Finishing        → Stopped          (buffer drained)
//   - any              → Stopped          (explicit stop)
//
// Stopped is terminal for a given device handle; the sink reopens the
// device to flush and resets to Initial.
type state int

const (
	// stateInitial: a stream may be buffering but nothing has played.
	stateInitial state = iota
	// statePaused: buffering continues, presentation is frozen.
	statePaused
	// statePlaying: buffering and presenting.
	statePlaying
	// stateFinishing: EOF received, hardware buffer still draining.
	stateFinishing
	// statePausedFinishing: EOF received but presentation is frozen;
	// resuming play continues the drain.
	statePausedFinishing
	// stateStopped: buffer empty or stream discarded.
	stateStopped
)

func (s state) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case statePaused:
		return "paused"
	case statePlaying:
		return "playing"
	case stateFinishing:
		return "finishing"
	case statePausedFinishing:
		return "paused-finishing"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// afterPlay returns the state a play command moves to. During a drain
// play can only resume the drain, never restart presentation.
func (s state) afterPlay() state {
	switch s {
	case statePausedFinishing, stateFinishing:
		return stateFinishing
	default:
		return statePlaying
	}
}

// afterPause returns the state a pause command moves to.
func (s state) afterPause() state {
	switch s {
	case stateFinishing, statePausedFinishing:
		return statePausedFinishing
	default:
		return statePaused
	}
}

// afterEOF returns the state entered when the demuxer runs out of
// samples.
func (s state) afterEOF() state {
	switch s {
	case statePaused, statePausedFinishing:
		return statePausedFinishing
	case stateStopped:
		return stateStopped
	default:
		return stateFinishing
	}
}
