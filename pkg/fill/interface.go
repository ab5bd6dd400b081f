// Package fill implements the control core of the bottle filling machine:
// mode selection, debounced input handling, the calibration workflow, the
// dispense control loop with its median stop filter, and the maintenance
// inspection screen. The package is hardware-agnostic; peripherals are
// supplied through the interfaces below, with real implementations in the
// firmware and a scripted Mock rig for tests and the desktop bench.
package fill

// Scale produces sign-corrected weight readings in raw sensor counts.
// The load cell convention inverts sign relative to dispensed volume, so
// implementations negate the raw sample before returning it.
type Scale interface {
	// Read returns a single immediate sample. May block briefly waiting
	// for the sensor to become ready.
	Read() int32
	// ReadStable averages n acquisitions to suppress noise. Used while
	// capturing a calibration threshold.
	ReadStable(n int) int32
}

// Button reports the raw electrical level of a momentary switch.
// Implementations normalize active-low wiring: Pressed is true while the
// button is physically held.
type Button interface {
	Pressed() bool
}

// Panel drives the dispense relay and the status indicator.
type Panel interface {
	SetRelay(on bool)
	SetIndicator(on bool)
}

// Display is a 2x16 character display addressed by (column, row).
type Display interface {
	SetCursor(col, row int)
	Print(s string)
	Clear()
}

// Ensure the mock rig satisfies the peripheral interfaces.
var (
	_ Scale   = (*MockScale)(nil)
	_ Button  = (*MockButton)(nil)
	_ Panel   = (*MockPanel)(nil)
	_ Display = (*MockDisplay)(nil)
)
