package fill

import "slices"

const (
	// medianWindow is the length of one filter pass. Always odd.
	medianWindow = 3

	// representativeIndex selects the element the stop comparison uses
	// from the ascending-sorted window. The deployed firmware computes
	// (n+1)/2, which for n=3 lands on index 2 — the largest of the three
	// readings rather than the true median at index 1. The machine's
	// calibration was tuned against that behavior, so it is kept.
	representativeIndex = (medianWindow + 1) / 2
)

// representative sorts one window of readings ascending and returns the
// element used for the stop comparison.
func representative(window [medianWindow]int32) int32 {
	sorted := window
	slices.Sort(sorted[:])
	return sorted[representativeIndex]
}

// dispense actuates the relay and indicator and blocks until the stop
// condition is met.
//
// With the Uncalibrated sentinel the stop is purely user-timed: the scale
// is never consulted and the relay stays on until the dispense button is
// released (raw level, no debounce).
//
// With a real threshold the loop repeats median filter passes: three fresh
// sign-corrected readings, sorted ascending, reduced to a representative
// sample that is compared against the threshold. Dispensing continues
// while threshold-sample > 0 and stops once the sample reaches or exceeds
// the threshold.
func (c *Controller) dispense(threshold int32) {
	c.hw.Panel.SetIndicator(true)
	c.hw.Panel.SetRelay(true)

	if threshold == Uncalibrated {
		c.show("Manual mode", "Dispensing")
		for c.hw.Dispense.Pressed() {
			c.Sleep(c.params.PollInterval)
		}
	} else {
		var window [medianWindow]int32
		for {
			for i := range window {
				window[i] = c.hw.Scale.Read()
			}
			sample := representative(window)
			c.logf("median: %d\tdifference: %d", sample, threshold-sample)
			c.trace(sample, c.modes.Index(), threshold, true)
			if threshold-sample <= 0 {
				break
			}
		}
	}

	c.hw.Panel.SetIndicator(false)
	c.hw.Panel.SetRelay(false)
	c.hw.Display.Clear()
	c.showHome()
}
