package fill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anishkk/gobfm/pkg/nvram"
)

// newTestController builds a controller on a fresh mock rig with time
// suppressed, so scripted runs finish instantly.
func newTestController(t *testing.T) (*Controller, *Mock, *nvram.Memory) {
	t.Helper()
	rig := NewMock()
	store := nvram.NewMemory(PresetCount * nvram.Int32Size)
	c := New(rig.Hardware(), store, Params{})
	c.Sleep = func(time.Duration) {}
	return c, rig, store
}

func TestRepresentative(t *testing.T) {
	tests := []struct {
		name   string
		window [medianWindow]int32
		want   int32
	}{
		// The documented selection index is (n+1)/2 = 2, the largest of
		// the sorted window, matching the deployed firmware.
		{name: "already ascending", window: [3]int32{218500, 219000, 221000}, want: 221000},
		{name: "descending", window: [3]int32{221000, 219000, 218500}, want: 221000},
		{name: "shuffled", window: [3]int32{219000, 221000, 218500}, want: 221000},
		{name: "all equal", window: [3]int32{5, 5, 5}, want: 5},
		{name: "negative readings", window: [3]int32{-10, -30, -20}, want: -10},
		{name: "spike rejected downward", window: [3]int32{100, 100, 90}, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, representative(tt.window))
		})
	}
}

func TestDispense_StopsWhenRepresentativeReachesThreshold(t *testing.T) {
	c, rig, _ := newTestController(t)

	// Pass 1: representative 211000 < 220000, keep dispensing.
	// Pass 2: sorted [218500 219000 221000] -> 221000 >= 220000, stop.
	rig.Scale.Script(
		210000, 211000, 209000,
		221000, 219000, 218500,
	)

	c.dispense(220000)

	assert.Equal(t, 6, rig.Scale.Reads(), "exactly two filter passes")
	assert.Equal(t, []bool{true, false}, rig.Panel.RelayLog)
	assert.False(t, rig.Panel.Indicator())
}

func TestDispense_ContinuesWhileBelowThreshold(t *testing.T) {
	c, rig, _ := newTestController(t)

	rig.Scale.Script(
		100, 110, 105, // 110
		150, 140, 160, // 160
		190, 210, 205, // 210
	)

	c.dispense(200)

	assert.Equal(t, 9, rig.Scale.Reads(), "three filter passes")
}

func TestDispense_SentinelNeverConsultsScale(t *testing.T) {
	c, rig, _ := newTestController(t)

	// Weight feedback must play no part: stop only on button release.
	rig.Scale.Script(999999)
	rig.Dispense.Script(true, true, true, false)

	c.dispense(Uncalibrated)

	assert.Zero(t, rig.Scale.Reads())
	assert.Equal(t, []bool{true, false}, rig.Panel.RelayLog)

	screens := rig.Display.Screens()
	require.NotEmpty(t, screens)
	assert.Contains(t, screens, [DisplayRows]string{"Manual mode", "Dispensing"})
}

func TestDispense_ReturnsToHomeScreen(t *testing.T) {
	c, rig, _ := newTestController(t)

	rig.Scale.Script(300000, 300000, 300000)
	c.dispense(220000)

	assert.Equal(t, [DisplayRows]string{"Volume: 200 mL", "Press to change"}, rig.Display.Lines())
}

func TestStep_EndToEndPresetFill(t *testing.T) {
	c, rig, _ := newTestController(t)

	// Main-loop trigger sample below threshold, then two filter passes.
	rig.Scale.Script(
		215000,
		210000, 211000, 209000,
		221000, 219000, 218500,
	)
	rig.Dispense.Press()

	var reps []int32
	c.Trace = func(weight int32, mode int, threshold int32, dispensing bool) {
		if dispensing {
			reps = append(reps, weight)
			assert.Equal(t, int32(220000), threshold)
			assert.Equal(t, 0, mode)
		}
	}

	c.Step()

	assert.Equal(t, 7, rig.Scale.Reads())
	assert.Equal(t, []int32{211000, 221000}, reps)
	assert.Equal(t, []bool{true, false}, rig.Panel.RelayLog)
	assert.Contains(t, rig.Display.Screens(), [DisplayRows]string{"Dispensing", "200 mL"})
	assert.Equal(t, [DisplayRows]string{"Volume: 200 mL", "Press to change"}, rig.Display.Lines())
}

func TestStep_NoDispenseWhenReadingAtOrAboveThreshold(t *testing.T) {
	c, rig, _ := newTestController(t)

	// The reading must already be below the threshold for a fill to
	// start; a full container on the scale keeps the relay off even with
	// the button held.
	rig.Scale.Script(225000)
	rig.Dispense.Press()

	c.Step()

	assert.Empty(t, rig.Panel.RelayLog)
	assert.Equal(t, 1, rig.Scale.Reads())
}

func TestStep_NoDispenseWithoutButton(t *testing.T) {
	c, rig, _ := newTestController(t)

	rig.Scale.Script(100)
	c.Step()

	assert.Empty(t, rig.Panel.RelayLog)
}
