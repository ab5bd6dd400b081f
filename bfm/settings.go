package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/anishkk/gobfm/pkg/meter"
	"github.com/anishkk/gobfm/pkg/telemetry"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	// Create tabs
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createMachineTab(state),
		createScaleTab(state),
		createMeasurementTab(state),
		createStorageTab(state),
		createMockTab(state),
	)

	// Create dialog with tabs as content
	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	// Get available serial ports
	ports, err := telemetry.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
		currentDisplay = currentPort
	}

	portSelect := widget.NewSelect(portOptions, func(selected string) {
		// Selection handler - will be called on submit
	})
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected // Fallback to selected text
				}

				// Check if port changed and device is connected
				portChanged := state.cfg.Serial.Port != selectedPort
				wasConnected := state.device != nil && state.device.IsConnected()

				state.cfg.Serial.Port = selectedPort
				if err := state.cfg.Save("config.yaml"); err != nil {
					dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
					return
				}

				// If port changed and device was connected, restart the measurement chain
				if portChanged && wasConnected {
					// Gracefully close old chain
					closeMeasurementChain(state.chain)
					state.chain = nil

					// Close old device
					if state.device != nil {
						state.device.Close()
						state.device = nil
					}

					// Reconnect with new port
					handleConnect(state)
				}
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createMachineTab creates the Machine configuration tab with the preset
// volumes, power-on thresholds and loop timing.
func createMachineTab(state *appState) *container.TabItem {
	volumeEntries := make([]*widget.Entry, len(state.cfg.Machine.Volumes))
	for i, v := range state.cfg.Machine.Volumes {
		volumeEntries[i] = widget.NewEntry()
		volumeEntries[i].SetText(strconv.Itoa(v))
	}

	thresholdEntries := make([]*widget.Entry, len(state.cfg.Machine.Thresholds))
	for i, th := range state.cfg.Machine.Thresholds {
		thresholdEntries[i] = widget.NewEntry()
		thresholdEntries[i].SetText(strconv.FormatInt(int64(th), 10))
	}

	pollIntervalEntry := widget.NewEntry()
	pollIntervalEntry.SetText(state.cfg.Machine.PollInterval.String())

	promptDelayEntry := widget.NewEntry()
	promptDelayEntry.SetText(state.cfg.Machine.PromptDelay.String())

	stableSamplesEntry := widget.NewEntry()
	stableSamplesEntry.SetText(strconv.Itoa(state.cfg.Machine.StableSamples))

	items := []*widget.FormItem{}
	for i, entry := range volumeEntries {
		items = append(items, &widget.FormItem{Text: fmt.Sprintf("Preset %d Volume (mL)", i+1), Widget: entry})
	}
	for i, entry := range thresholdEntries {
		items = append(items, &widget.FormItem{Text: fmt.Sprintf("Preset %d Threshold (counts)", i+1), Widget: entry})
	}
	items = append(items,
		&widget.FormItem{Text: "Poll Interval", Widget: pollIntervalEntry},
		&widget.FormItem{Text: "Prompt Delay", Widget: promptDelayEntry},
		&widget.FormItem{Text: "Stable Samples", Widget: stableSamplesEntry},
	)

	form := &widget.Form{
		Items: items,
		OnSubmit: func() {
			for i, entry := range volumeEntries {
				if v, err := strconv.Atoi(entry.Text); err == nil {
					state.cfg.Machine.Volumes[i] = v
				}
			}
			for i, entry := range thresholdEntries {
				if th, err := strconv.ParseInt(entry.Text, 10, 32); err == nil {
					state.cfg.Machine.Thresholds[i] = int32(th)
				}
			}
			if pi, err := time.ParseDuration(pollIntervalEntry.Text); err == nil {
				state.cfg.Machine.PollInterval = pi
			}
			if pd, err := time.ParseDuration(promptDelayEntry.Text); err == nil {
				state.cfg.Machine.PromptDelay = pd
			}
			if ss, err := strconv.Atoi(stableSamplesEntry.Text); err == nil {
				state.cfg.Machine.StableSamples = ss
			}
			if err := state.cfg.Save("config.yaml"); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
			// Refresh the mode indicator in case volumes changed
			updateMachineButtons(state)
		},
	}

	return container.NewTabItem("Machine", form)
}

// createScaleTab creates the Scale configuration tab.
func createScaleTab(state *appState) *container.TabItem {
	countsPerGramEntry := widget.NewEntry()
	countsPerGramEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Scale.CountsPerGram))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Counts per Gram", Widget: countsPerGramEntry},
		},
		OnSubmit: func() {
			if cpg, err := strconv.ParseFloat(countsPerGramEntry.Text, 64); err == nil {
				state.cfg.Scale.CountsPerGram = cpg
			}
			if err := state.cfg.Save("config.yaml"); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Scale", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	windowSecondsEntry := widget.NewEntry()
	windowSecondsEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.WindowSeconds))

	minFillDurationEntry := widget.NewEntry()
	minFillDurationEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.MinFillDuration))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(fmt.Sprintf("%d", state.cfg.Measurement.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Min Fill Duration (s)", Widget: minFillDurationEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			if ws, err := strconv.ParseFloat(windowSecondsEntry.Text, 64); err == nil {
				state.cfg.Measurement.WindowSeconds = ws
			}
			if mfd, err := strconv.ParseFloat(minFillDurationEntry.Text, 64); err == nil {
				state.cfg.Measurement.MinFillDuration = mfd
			}
			if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil {
				state.cfg.Measurement.AverageSamples = avg
			}
			if err := state.cfg.Save("config.yaml"); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
			// Recreate fill meter with new config
			state.fillMeter = meter.New(state.cfg)
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createStorageTab creates the Storage configuration tab.
func createStorageTab(state *appState) *container.TabItem {
	pathEntry := widget.NewEntry()
	pathEntry.SetText(state.cfg.Storage.Path)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Calibration Image Path", Widget: pathEntry},
		},
		OnSubmit: func() {
			if pathEntry.Text != "" {
				state.cfg.Storage.Path = pathEntry.Text
			}
			if err := state.cfg.Save("config.yaml"); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Storage", form)
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.NoiseLevel))

	flowRateEntry := widget.NewEntry()
	flowRateEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.FlowRate))

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	tareWeightEntry := widget.NewEntry()
	tareWeightEntry.SetText(strconv.FormatInt(int64(state.cfg.Mock.TareWeight), 10))

	refillDelayEntry := widget.NewEntry()
	refillDelayEntry.SetText(state.cfg.Mock.RefillDelay.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Noise Level (counts)", Widget: noiseLevelEntry},
			{Text: "Flow Rate (counts/s)", Widget: flowRateEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
			{Text: "Tare Weight (counts)", Widget: tareWeightEntry},
			{Text: "Refill Delay", Widget: refillDelayEntry},
		},
		OnSubmit: func() {
			if nl, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = nl
			}
			if fr, err := strconv.ParseFloat(flowRateEntry.Text, 64); err == nil {
				state.cfg.Mock.FlowRate = fr
			}
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				state.cfg.Mock.SampleRate = sr
			}
			if tw, err := strconv.ParseInt(tareWeightEntry.Text, 10, 32); err == nil {
				state.cfg.Mock.TareWeight = int32(tw)
			}
			if rd, err := time.ParseDuration(refillDelayEntry.Text); err == nil {
				state.cfg.Mock.RefillDelay = rd
			}
			if err := state.cfg.Save("config.yaml"); err != nil {
				dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
