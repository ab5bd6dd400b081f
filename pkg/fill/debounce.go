package fill

// Debounce shift-register constants. The register shifts once per poll;
// the high bits are forced by the mask so only the low DebouncePolls bits
// carry sample history.
const (
	debounceMask    uint16 = 0xE000
	debounceTrigger uint16 = 0xF000

	// DebouncePolls is the run of consecutive pressed samples required
	// before a press is acknowledged.
	DebouncePolls = 12
)

// Debouncer turns the noisy raw level of a momentary switch into a single
// clean press event. Poll must be called once per loop iteration at a
// roughly constant period; the filter trades DebouncePolls cycles of
// latency for immunity to contact bounce.
//
// Register method from https://my.eng.utah.edu/%7Ecs5780/debouncing.pdf
type Debouncer struct {
	state uint16
}

// Poll shifts the current raw level into the register and reports whether
// a debounced press edge occurred. It returns true exactly once per press:
// on the first poll where the level has been pressed for DebouncePolls
// consecutive samples immediately preceded by a released sample.
func (d *Debouncer) Poll(pressed bool) bool {
	raw := uint16(1)
	if pressed {
		raw = 0
	}
	d.state = d.state<<1 | raw | debounceMask
	return d.state == debounceTrigger
}
