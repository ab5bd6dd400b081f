package fill

import (
	"strconv"
	"time"
)

// inspectSlots is the number of browsable maintenance slots: one per
// preset threshold plus a live scale reading.
const inspectSlots = PresetCount + 1

const exitDelay = 500 * time.Millisecond

// inspect runs the read-only maintenance screen. A debounced mode-button
// press cycles through the stored thresholds and the live reading slot; a
// raw dispense-button press exits. The calibration table is never
// mutated here.
func (c *Controller) inspect() {
	c.show("Inspect Contents", "")
	c.Sleep(c.params.PromptDelay)
	c.show("Use VOL button", "to toggle")
	c.Sleep(c.params.PromptDelay)
	c.show("Use DISP button", "to exit")
	c.Sleep(c.params.PromptDelay)
	c.hw.Display.Clear()

	slot := 0
	for {
		if c.modeSwitch.Poll(c.hw.Mode.Pressed()) {
			slot = (slot + 1) % inspectSlots
		}

		if slot < PresetCount {
			c.show(
				"VOLUME: "+strconv.Itoa(c.modes.PresetVolume(slot)),
				strconv.FormatInt(int64(c.modes.PresetThreshold(slot)), 10),
			)
		} else {
			// Always a fresh reading, never a cached one.
			c.show(
				"Current val:",
				strconv.FormatInt(int64(c.hw.Scale.Read()), 10),
			)
		}

		if c.hw.Dispense.Pressed() {
			c.show("Exiting...", "")
			c.Sleep(exitDelay)
			break
		}
		c.Sleep(c.params.PollInterval)
	}
	c.hw.Display.Clear()
}
