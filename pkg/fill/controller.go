package fill

import (
	"context"
	"strconv"
	"time"

	"github.com/anishkk/gobfm/pkg/nvram"
)

// Hardware bundles the peripherals the controller drives.
type Hardware struct {
	Scale    Scale
	Dispense Button
	Mode     Button
	Panel    Panel
	Display  Display
}

// Params holds the machine tunables. Zero values are replaced by defaults
// matching the deployed machine.
type Params struct {
	// Volumes are the display-only preset labels in milliliters.
	Volumes [PresetCount]int
	// Thresholds are the power-on defaults used until LoadThresholds
	// replaces them with the persisted table.
	Thresholds [PresetCount]int32
	// PollInterval paces the main loop and every busy-wait.
	PollInterval time.Duration
	// PromptDelay is how long each guided prompt stays on screen.
	PromptDelay time.Duration
	// StableSamples is the averaging count for calibration captures.
	StableSamples int
}

func (p *Params) setDefaults() {
	if p.Volumes == ([PresetCount]int{}) {
		p.Volumes = [PresetCount]int{200, 450, 900}
	}
	if p.Thresholds == ([PresetCount]int32{}) {
		p.Thresholds = [PresetCount]int32{220000, 240000, 250000}
	}
	if p.PollInterval == 0 {
		p.PollInterval = 5 * time.Millisecond
	}
	if p.PromptDelay == 0 {
		p.PromptDelay = 2 * time.Second
	}
	if p.StableSamples == 0 {
		p.StableSamples = 5
	}
}

// TraceFunc receives one diagnostic record per control-loop or dispense
// iteration. Advisory only; the firmware streams it over the UART and the
// bench feeds it into the scope.
type TraceFunc func(weight int32, mode int, threshold int32, dispensing bool)

// Controller is the single logical task of the machine. It owns all
// mutable state (mode index, calibration table, debounce register) and
// runs strictly synchronously: workflows block until their natural
// completion condition, and nothing else proceeds meanwhile.
type Controller struct {
	hw     Hardware
	store  nvram.Store
	params Params

	modes      *ModeManager
	modeSwitch Debouncer

	// Sleep is used for every delay and busy-wait pause. Defaults to
	// time.Sleep; tests inject a no-op so scripted runs finish instantly.
	Sleep func(time.Duration)
	// Logf is the optional prose diagnostic sink (readings, medians,
	// saved values). Nil disables logging.
	Logf func(format string, v ...any)
	// Trace is the optional structured diagnostic sink.
	Trace TraceFunc
}

// New creates a controller for the given peripherals and store.
func New(hw Hardware, store nvram.Store, params Params) *Controller {
	params.setDefaults()
	return &Controller{
		hw:     hw,
		store:  store,
		params: params,
		modes:  NewModeManager(params.Volumes, params.Thresholds),
		Sleep:  time.Sleep,
	}
}

// Modes exposes the mode manager, read-only by convention. The bench uses
// it to annotate the scope.
func (c *Controller) Modes() *ModeManager {
	return c.modes
}

// Boot performs the power-up sequence: calibration entry if both buttons
// are held, loading the persisted calibration table, inspection entry if
// exactly one button is held, then the home screen.
func (c *Controller) Boot() {
	if c.hw.Dispense.Pressed() && c.hw.Mode.Pressed() {
		idx := c.selectPreset()
		c.logf("selected mode %d", idx+1)
		c.calibrate(idx)
	}

	c.modes.LoadThresholds(c.store)
	for i := 0; i < PresetCount; i++ {
		c.logf("threshold[%d] = %d", i, c.modes.PresetThreshold(i))
	}

	if c.hw.Dispense.Pressed() != c.hw.Mode.Pressed() {
		c.inspect()
	}

	c.showHome()
}

// Run executes the main control loop until ctx is cancelled. Cancellation
// is only observed between iterations: a dispense or calibration already
// in flight runs to its natural completion condition.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c.Step()
		c.Sleep(c.params.PollInterval)
	}
}

// Step runs one main-loop iteration: poll the mode switch, sample the
// scale, start a dispense when the dispense button is held and the
// reading is still below the active threshold, and advance the mode on a
// debounced press.
func (c *Controller) Step() {
	edge := c.modeSwitch.Poll(c.hw.Mode.Pressed())

	reading := c.hw.Scale.Read()
	threshold := c.modes.Threshold()
	c.logf("reading: %d\tmode: %d\tthreshold: %d", reading, c.modes.Index()+1, threshold)
	c.trace(reading, c.modes.Index(), threshold, false)

	// The reading must already be below the threshold for dispensing to
	// start; a container at or past its target weight is only topped off
	// manually.
	if c.hw.Dispense.Pressed() && reading < threshold {
		if !c.modes.Manual() {
			c.show("Dispensing", strconv.Itoa(c.modes.PresetVolume(c.modes.Index()))+" mL")
		}
		c.dispense(threshold)
	}

	if edge {
		c.modes.Advance()
		c.showHome()
	}
}

// show clears the display and writes the two lines.
func (c *Controller) show(line1, line2 string) {
	c.hw.Display.Clear()
	c.hw.Display.SetCursor(0, 0)
	c.hw.Display.Print(line1)
	c.hw.Display.SetCursor(0, 1)
	c.hw.Display.Print(line2)
}

// showHome renders the mode screen for the currently selected mode.
func (c *Controller) showHome() {
	c.show(c.modes.DisplayInfo(c.modes.Index()))
}

func (c *Controller) logf(format string, v ...any) {
	if c.Logf != nil {
		c.Logf(format, v...)
	}
}

func (c *Controller) trace(weight int32, mode int, threshold int32, dispensing bool) {
	if c.Trace != nil {
		c.Trace(weight, mode, threshold, dispensing)
	}
}
