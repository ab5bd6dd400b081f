package main

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/anishkk/gobfm/pkg/fill"
	"github.com/anishkk/gobfm/pkg/nvram"
	"github.com/anishkk/gobfm/pkg/telemetry"
)

// updateMachineStateFromReading updates the mode and valve indicators from an
// incoming reading. Only updates UI when the state actually changes.
// Uses fyne.Do() to ensure thread-safe UI updates from goroutine.
func updateMachineStateFromReading(state *appState, reading telemetry.Reading) {
	newState := machineState{mode: reading.Mode, dispensing: reading.Dispensing}
	if state.machine == newState {
		// No change, skip update
		return
	}

	state.machine = newState

	// Update UI on main thread using fyne.Do()
	fyne.Do(func() {
		updateMachineButtons(state)
	})
}

// updateMachineButtons updates the visual state of the mode and valve indicators.
func updateMachineButtons(state *appState) {
	state.modeBtn.SetText(modeLabel(state.cfg, state.machine.mode))
	if state.machine.dispensing {
		state.valveBtn.SetText("Valve OPEN")
		state.valveBtn.Importance = widget.HighImportance
	} else {
		state.valveBtn.SetText("Valve closed")
		state.valveBtn.Importance = widget.MediumImportance
	}
	state.modeBtn.Refresh()
	state.valveBtn.Refresh()
}

// panelRefreshInterval paces the virtual panel display updates.
const panelRefreshInterval = 50 * time.Millisecond

// showVirtualPanel opens a window running the machine control logic against a
// simulated rig: the real controller, a flow-simulated scale, and the same
// calibration file the deployed machine would use.
func showVirtualPanel(state *appState) {
	rig := fill.NewMock()
	rig.Scale.FlowRate = state.cfg.Mock.FlowRate
	rig.Scale.SetValue(state.cfg.Mock.TareWeight)

	store, err := nvram.OpenFile(state.cfg.Storage.Path, fill.PresetCount*nvram.Int32Size)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to open calibration store: %w", err), state.window)
		return
	}

	params := fill.Params{
		PollInterval:  state.cfg.Machine.PollInterval,
		PromptDelay:   state.cfg.Machine.PromptDelay,
		StableSamples: state.cfg.Machine.StableSamples,
	}
	copy(params.Volumes[:], state.cfg.Machine.Volumes)
	for i, th := range state.cfg.Machine.Thresholds {
		if i >= len(params.Thresholds) {
			break
		}
		params.Thresholds[i] = th
	}

	ctrl := fill.New(rig.Hardware(), store, params)
	ctrl.Boot()

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)

	window := fyne.CurrentApp().NewWindow("Virtual Panel")

	// 16x2 display rendered as a monospace label
	displayLabel := widget.NewLabel("")
	displayLabel.TextStyle = fyne.TextStyle{Monospace: true}

	weightLabel := widget.NewLabel("")
	indicatorLabel := widget.NewLabel("")

	// The mode switch is momentary: hold long enough for the debounce
	// register to fill, then let go.
	modeBtn := widget.NewButton("MODE", func() {
		rig.Mode.Press()
		time.AfterFunc(20*params.PollInterval, rig.Mode.Release)
	})

	// The dispense button is held for the whole pour, so it toggles.
	dispensing := false
	var dispenseBtn *widget.Button
	dispenseBtn = widget.NewButton("DISPENSE", func() {
		dispensing = !dispensing
		if dispensing {
			rig.Dispense.Press()
			dispenseBtn.Importance = widget.HighImportance
		} else {
			rig.Dispense.Release()
			dispenseBtn.Importance = widget.MediumImportance
		}
		dispenseBtn.Refresh()
	})

	// Swapping in an empty bottle drops the scale back to the tare weight
	bottleBtn := widget.NewButton("New Bottle", func() {
		rig.Scale.SetValue(state.cfg.Mock.TareWeight)
	})

	window.SetContent(container.NewVBox(
		displayLabel,
		indicatorLabel,
		weightLabel,
		container.NewHBox(modeBtn, dispenseBtn, bottleBtn),
	))

	// Poll the rig and mirror it into the window
	go func() {
		ticker := time.NewTicker(panelRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			lines := rig.Display.Lines()
			weight := rig.Scale.Value()
			relay := rig.Panel.Relay()
			indicator := rig.Panel.Indicator()
			fyne.Do(func() {
				displayLabel.SetText(fmt.Sprintf("%-16s\n%-16s", lines[0], lines[1]))
				weightLabel.SetText(fmt.Sprintf("Scale: %d counts", weight))
				switch {
				case relay:
					indicatorLabel.SetText("Relay ON")
				case indicator:
					indicatorLabel.SetText("Indicator ON")
				default:
					indicatorLabel.SetText("Idle")
				}
			})
		}
	}()

	window.SetOnClosed(func() {
		cancel()
		if rig.Panel.Relay() {
			rig.Panel.SetRelay(false)
		}
	})
	window.Resize(fyne.NewSize(400, 220))
	window.Show()
}
