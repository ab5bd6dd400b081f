package fill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// poll runs the sequence through the debouncer and returns how many edges
// were signalled.
func poll(d *Debouncer, levels []bool) int {
	edges := 0
	for _, level := range levels {
		if d.Poll(level) {
			edges++
		}
	}
	return edges
}

// press builds a level sequence of one released sample followed by n
// pressed samples.
func press(n int) []bool {
	seq := make([]bool, 0, n+1)
	seq = append(seq, false)
	for rep := 0; rep < n; rep++ {
		seq = append(seq, true)
	}
	return seq
}

func TestDebouncer_ShortRunsNeverTrigger(t *testing.T) {
	for n := 0; n < DebouncePolls; n++ {
		var d Debouncer
		assert.Zero(t, poll(&d, press(n)), "run of %d pressed samples", n)
	}
}

func TestDebouncer_CleanPressTriggersExactlyOnce(t *testing.T) {
	var d Debouncer

	// Settle in the released state first.
	for rep := 0; rep < 20; rep++ {
		assert.False(t, d.Poll(false))
	}

	// The edge fires on the DebouncePolls-th consecutive pressed sample.
	for i := 0; i < DebouncePolls-1; i++ {
		assert.False(t, d.Poll(true), "sample %d", i)
	}
	assert.True(t, d.Poll(true))

	// Holding longer produces no further edges.
	for rep := 0; rep < 50; rep++ {
		assert.False(t, d.Poll(true))
	}
}

func TestDebouncer_OneEdgePerPress(t *testing.T) {
	var d Debouncer
	total := 0
	for rep := 0; rep < 5; rep++ {
		total += poll(&d, press(30))
	}
	assert.Equal(t, 5, total)
}

func TestDebouncer_BouncyPressTriggersOnce(t *testing.T) {
	var d Debouncer
	// Contact bounce: short make/break bursts before the press settles.
	seq := []bool{false, true, false, true, true, false, true}
	seq = append(seq, press(DebouncePolls)[1:]...)
	assert.Equal(t, 1, poll(&d, seq))
}

func TestDebouncer_HeldFromPowerUpDoesNotTrigger(t *testing.T) {
	// Holding a button across power-up (the maintenance entry gesture)
	// must not produce a press edge until the button is released once.
	var d Debouncer
	for i := 0; i < 100; i++ {
		assert.False(t, d.Poll(true), "sample %d", i)
	}
	assert.Equal(t, 1, poll(&d, press(DebouncePolls)))
}
