package fill

import "strconv"

// selectPreset runs the calibration entry screen: a debounced mode-button
// press cycles the candidate preset (manual mode is not calibratable), a
// raw dispense-button press confirms. Blocks until confirmed.
func (c *Controller) selectPreset() int {
	c.show("Entering Calib", "Choose Volume")

	// Both buttons are still held from power-up; wait them out.
	for c.hw.Dispense.Pressed() || c.hw.Mode.Pressed() {
		c.Sleep(c.params.PollInterval)
	}
	c.Sleep(c.params.PromptDelay)

	c.show("Press DISPENSE", "to confirm")
	c.Sleep(c.params.PromptDelay)

	idx := 0
	c.show(c.modes.DisplayInfo(idx))
	for {
		edge := c.modeSwitch.Poll(c.hw.Mode.Pressed())
		if c.hw.Dispense.Pressed() {
			return idx
		}
		if edge {
			idx = (idx + 1) % PresetCount
			c.show(c.modes.DisplayInfo(idx))
		}
		c.Sleep(c.params.PollInterval)
	}
}

// calibrate relearns the threshold for preset idx and persists it. The
// user holds the mode button to run the pump into a reference container;
// the stabilized reading sampled just before release becomes the new
// threshold.
func (c *Controller) calibrate(idx int) {
	c.show("Begin Calibration", "Volume: "+strconv.Itoa(c.modes.PresetVolume(idx)))
	c.Sleep(c.params.PromptDelay)
	c.show("Place container", "")
	c.Sleep(c.params.PromptDelay)
	c.show("Press VOL button", "to fill")
	c.Sleep(c.params.PromptDelay)
	c.show("Release", "to save value")
	c.Sleep(c.params.PromptDelay)

	value := c.modes.PresetThreshold(idx)
	for {
		captured, ok := c.capturePass(value)
		value = captured
		if ok {
			break
		}
		c.Sleep(c.params.PollInterval)
	}

	c.show("Done", "Saved: "+strconv.FormatInt(int64(value), 10))
	c.logf("value saved is: %d", value)
	c.Sleep(c.params.PromptDelay)
	c.hw.Display.Clear()

	c.store.Write(slotAddr[idx], value)
	c.modes.setThreshold(idx, value)
}

// capturePass actuates the dispenser while the mode button is held,
// continuously sampling the stabilized reading; the last sample taken
// before release wins. If the button is not held at all the pass does not
// iterate and prev is returned unchanged with ok=false, leaving the
// previously stored threshold in effect.
func (c *Controller) capturePass(prev int32) (value int32, ok bool) {
	value = prev
	for c.hw.Mode.Pressed() {
		c.hw.Panel.SetIndicator(true)
		c.hw.Panel.SetRelay(true)
		value = c.hw.Scale.ReadStable(c.params.StableSamples)
		c.logf("capture sample: %d", value)
		ok = true
	}
	c.hw.Panel.SetIndicator(false)
	c.hw.Panel.SetRelay(false)
	return value, ok
}
