package fill

import (
	"strconv"

	"github.com/anishkk/gobfm/pkg/nvram"
)

const (
	// PresetCount is the number of calibratable volume presets.
	PresetCount = 3
	// ModeManual is the mode index of the manual (unbounded) mode.
	ModeManual = PresetCount

	modeCount = PresetCount + 1
)

// Uncalibrated is the threshold sentinel meaning "no automatic stop". It is
// a first-class stored value: a preset that was never calibrated reads back
// as -1 and dispenses exactly like manual mode.
const Uncalibrated int32 = -1

// slotAddr maps preset index to its fixed nvram byte address. Slots are
// 4 bytes apart and assigned at compile time.
var slotAddr = [PresetCount]int{0, 4, 8}

// ModeManager owns the calibration table and the current mode index.
// Mode order is Preset0, Preset1, Preset2, Manual.
type ModeManager struct {
	volumes    [PresetCount]int
	thresholds [PresetCount]int32
	index      int
}

// NewModeManager creates a manager with the given volume labels (ml) and
// power-on default thresholds. LoadThresholds replaces the defaults with
// the persisted table.
func NewModeManager(volumes [PresetCount]int, thresholds [PresetCount]int32) *ModeManager {
	return &ModeManager{volumes: volumes, thresholds: thresholds}
}

// LoadThresholds reads every preset threshold from its fixed slot.
func (m *ModeManager) LoadThresholds(store nvram.Store) {
	for i := range m.thresholds {
		m.thresholds[i] = store.Read(slotAddr[i])
	}
}

// Advance cycles to the next mode, wrapping from Manual back to Preset0.
func (m *ModeManager) Advance() {
	m.index = (m.index + 1) % modeCount
}

// Index returns the current mode index (0..3).
func (m *ModeManager) Index() int {
	return m.index
}

// Manual reports whether the current mode is the manual mode.
func (m *ModeManager) Manual() bool {
	return m.index == ModeManual
}

// Threshold returns the stop threshold of the current mode. Manual mode
// always behaves as Uncalibrated.
func (m *ModeManager) Threshold() int32 {
	if m.Manual() {
		return Uncalibrated
	}
	return m.thresholds[m.index]
}

// PresetVolume returns the volume label of preset i.
func (m *ModeManager) PresetVolume(i int) int {
	return m.volumes[i]
}

// PresetThreshold returns the threshold of preset i.
func (m *ModeManager) PresetThreshold(i int) int32 {
	return m.thresholds[i]
}

func (m *ModeManager) setThreshold(i int, v int32) {
	m.thresholds[i] = v
}

// DisplayInfo returns the two home-screen lines for mode index i.
func (m *ModeManager) DisplayInfo(i int) (line1, line2 string) {
	if i == ModeManual {
		return "Manual Mode", "Press to Change"
	}
	return "Volume: " + strconv.Itoa(m.volumes[i]) + " mL", "Press to change"
}
