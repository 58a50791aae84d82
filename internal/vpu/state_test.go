package vpu

import "testing"

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from state
		move func(state) state
		want state
	}{
		{"play from initial", stateInitial, state.afterPlay, statePlaying},
		{"play from paused", statePaused, state.afterPlay, statePlaying},
		{"play while playing", statePlaying, state.afterPlay, statePlaying},
		{"play resumes paused drain", statePausedFinishing, state.afterPlay, stateFinishing},
		{"play during drain stays draining", stateFinishing, state.afterPlay, stateFinishing},
		{"pause during paused drain stays", statePausedFinishing, state.afterPause, statePausedFinishing},
		{"pause from playing", statePlaying, state.afterPause, statePaused},
		{"pause from initial", stateInitial, state.afterPause, statePaused},
		{"pause freezes drain", stateFinishing, state.afterPause, statePausedFinishing},
		{"eof while playing", statePlaying, state.afterEOF, stateFinishing},
		{"eof while initial", stateInitial, state.afterEOF, stateFinishing},
		{"eof while paused", statePaused, state.afterEOF, statePausedFinishing},
		{"eof while paused drain", statePausedFinishing, state.afterEOF, statePausedFinishing},
		{"eof after stop", stateStopped, state.afterEOF, stateStopped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.move(tt.from); got != tt.want {
				t.Errorf("from %s: got %s, want %s", tt.from, got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for _, s := range []state{stateInitial, statePaused, statePlaying, stateFinishing, statePausedFinishing, stateStopped} {
		if s.String() == "unknown" {
			t.Errorf("state %d has no name", s)
		}
	}
	if got := state(99).String(); got != "unknown" {
		t.Errorf("got %q, want unknown", got)
	}
}
