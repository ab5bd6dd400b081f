package fill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tapScript appends n debounced mode taps to a script: each tap is one
// released settling sample followed by a full pressed run.
func tapScript(script []bool, n int) []bool {
	for rep := 0; rep < n; rep++ {
		script = append(script, false)
		for rep := 0; rep < DebouncePolls; rep++ {
			script = append(script, true)
		}
	}
	return script
}

func TestInspect_BrowsesSlotsAndReadsLive(t *testing.T) {
	c, rig, _ := newTestController(t)

	// Three taps walk slot 0 -> 1 -> 2 -> 3, then a few idle polls sit on
	// the live-reading slot before the dispense button exits.
	modeScript := tapScript([]bool{false}, 3)
	rig.Mode.Script(append(modeScript, false)...)

	dispenseScript := make([]bool, len(modeScript)+2)
	rig.Dispense.Script(append(dispenseScript, true)...)

	rig.Scale.Script(1000, 2000, 3000)

	c.inspect()

	screens := rig.Display.Screens()
	assert.Contains(t, screens, [DisplayRows]string{"Inspect Contents", ""})
	assert.Contains(t, screens, [DisplayRows]string{"VOLUME: 200", "220000"})
	assert.Contains(t, screens, [DisplayRows]string{"VOLUME: 450", "240000"})
	assert.Contains(t, screens, [DisplayRows]string{"VOLUME: 900", "250000"})
	assert.Contains(t, screens, [DisplayRows]string{"Exiting...", ""})

	// The live slot re-reads the scale on every poll instead of caching.
	assert.GreaterOrEqual(t, rig.Scale.Reads(), 3)
	assert.Contains(t, screens, [DisplayRows]string{"Current val:", "1000"})
	assert.Contains(t, screens, [DisplayRows]string{"Current val:", "2000"})
	assert.Contains(t, screens, [DisplayRows]string{"Current val:", "3000"})
}

func TestInspect_SlotCyclingWraps(t *testing.T) {
	c, rig, _ := newTestController(t)

	// Four taps: 0 -> 1 -> 2 -> 3 -> 0. A preset screen must show up
	// again after the live-reading slot.
	modeScript := tapScript([]bool{false}, 4)
	rig.Mode.Script(append(modeScript, false)...)

	dispenseScript := make([]bool, len(modeScript)+2)
	rig.Dispense.Script(append(dispenseScript, true)...)

	rig.Scale.Script(5000)

	c.inspect()

	screens := rig.Display.Screens()
	live := -1
	for i, s := range screens {
		if s[0] == "Current val:" {
			live = i
			break
		}
	}
	require.GreaterOrEqual(t, live, 0, "live slot was shown")

	wrapped := false
	for _, s := range screens[live:] {
		if s == ([DisplayRows]string{"VOLUME: 200", "220000"}) {
			wrapped = true
			break
		}
	}
	assert.True(t, wrapped, "slot index wrapped back to the first preset")
}

func TestInspect_NeverMutatesTable(t *testing.T) {
	c, rig, store := newTestController(t)

	store.Write(0, 101)
	store.Write(4, 202)
	store.Write(8, 303)
	c.Modes().LoadThresholds(store)

	rig.Mode.Script(tapScript([]bool{false}, 2)...)
	dispenseScript := make([]bool, 30)
	rig.Dispense.Script(append(dispenseScript, true)...)

	c.inspect()

	assert.Equal(t, int32(101), store.Read(0))
	assert.Equal(t, int32(202), store.Read(4))
	assert.Equal(t, int32(303), store.Read(8))
	assert.Equal(t, int32(101), c.Modes().PresetThreshold(0))
}

func TestBoot_SingleButtonHeldEntersInspection(t *testing.T) {
	c, rig, _ := newTestController(t)

	rig.Dispense.Script(true, true, true)

	c.Boot()

	screens := rig.Display.Screens()
	assert.Contains(t, screens, [DisplayRows]string{"Inspect Contents", ""})
	assert.Contains(t, screens, [DisplayRows]string{"Exiting...", ""})
	assert.Equal(t, [DisplayRows]string{"Volume: 200 mL", "Press to change"}, rig.Display.Lines())
}
