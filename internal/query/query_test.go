package query

import "testing"

func TestStateTerminal(t *testing.T) {
	cases := map[State]bool{
		StateQueued:    false,
		StateRunning:   false,
		StateSucceeded: true,
		StateFailed:    true,
		StateCancelled: true,
		State(""):      false,
		State("BOGUS"): false,
	}
	for state, want := range cases {
		if got := state.Terminal(); got != want {
			t.Fatalf("%q.Terminal() = %v, want %v", state, got, want)
		}
	}
}
