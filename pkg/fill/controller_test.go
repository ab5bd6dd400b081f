package fill

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStep_DebouncedModePressAdvancesMode(t *testing.T) {
	c, rig, _ := newTestController(t)

	rig.Mode.Script(tapScript(nil, 1)...)

	for rep := 0; rep < DebouncePolls+1; rep++ {
		c.Step()
	}

	assert.Equal(t, 1, c.Modes().Index())
	assert.Equal(t, [DisplayRows]string{"Volume: 450 mL", "Press to change"}, rig.Display.Lines())
}

func TestStep_ModeCyclesThroughAllFour(t *testing.T) {
	c, rig, _ := newTestController(t)

	rig.Mode.Script(tapScript(nil, 5)...)

	seen := map[int]bool{}
	for rep := 0; rep < 5*(DebouncePolls+1); rep++ {
		c.Step()
		seen[c.Modes().Index()] = true
		assert.GreaterOrEqual(t, c.Modes().Index(), 0)
		assert.Less(t, c.Modes().Index(), modeCount)
	}

	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true, 3: true}, seen)
	// Five taps from mode 0 wrap around to mode 1.
	assert.Equal(t, 1, c.Modes().Index())
}

func TestStep_EmitsTraceEveryIteration(t *testing.T) {
	c, rig, _ := newTestController(t)

	rig.Scale.Script(123, 456)

	var weights []int32
	c.Trace = func(weight int32, mode int, threshold int32, dispensing bool) {
		assert.False(t, dispensing)
		weights = append(weights, weight)
	}

	c.Step()
	c.Step()

	assert.Equal(t, []int32{123, 456}, weights)
}

func TestBoot_FreshStorePresetsBehaveAsManual(t *testing.T) {
	c, rig, _ := newTestController(t)

	c.Boot()

	// Every slot of a never-calibrated store reads back the erased
	// sentinel, so preset 0 dispenses exactly like manual mode.
	assert.Equal(t, Uncalibrated, c.Modes().Threshold())

	rig.Scale.Script(-50)
	rig.Dispense.Script(true, true, true, false)

	c.Step()

	assert.Equal(t, []bool{true, false}, rig.Panel.RelayLog)
	assert.Contains(t, rig.Display.Screens(), [DisplayRows]string{"Manual mode", "Dispensing"})
}

func TestController_LogfReportsLoadedThresholds(t *testing.T) {
	c, _, store := newTestController(t)

	store.Write(0, 220000)
	var lines []string
	c.Logf = func(format string, v ...any) {
		lines = append(lines, fmt.Sprintf(format, v...))
	}

	c.Boot()

	assert.Contains(t, lines, "threshold[0] = 220000")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	c, _, _ := newTestController(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
