package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/anishkk/gobfm/pkg/config"
	"github.com/anishkk/gobfm/pkg/meter"
	"github.com/anishkk/gobfm/pkg/sample"
	"github.com/anishkk/gobfm/pkg/scope"
	"github.com/anishkk/gobfm/pkg/telemetry"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use mocked device instead of serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	// Override average samples if provided via command line
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}

	// Create Fyne application
	application := app.NewWithID("com.anishkk.gobfm")

	// Create main window
	window := application.NewWindow("Bottle Filling Machine")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	// Create fill meter
	fillMeter := meter.New(cfg)

	// Create application state
	appState := &appState{
		cfg:       cfg,
		device:    nil,
		fillMeter: fillMeter,
		window:    window,
		useMock:   *mockFlag,
	}

	// Create toolbar
	toolbar := createToolbar(appState)

	// Create scope widget for graph display
	scopeWidget := scope.New(cfg)
	appState.scopeWidget = scopeWidget

	// Create border layout with toolbar at top and scope widget as content
	container := container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		scopeWidget,
	)

	window.SetContent(container)
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device                telemetry.Device
	readings              <-chan telemetry.Reading
	readingsForTee        <-chan telemetry.Reading
	machineStateGoroutine chan struct{} // Closed when machine state goroutine exits
	samplesStream         <-chan sample.Sample
	meterGoroutine        chan struct{} // Closed when meter goroutine exits
}

// machineState mirrors the mode and valve state the firmware last reported.
type machineState struct {
	mode       int
	dispensing bool
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	device      telemetry.Device
	fillMeter   *meter.Meter
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	modeBtn     *widget.Button
	valveBtn    *widget.Button
	useMock     bool
	machine     machineState      // Last reported mode and valve state
	chain       *measurementChain // Current measurement chain (nil if not connected)

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the application toolbar with Connect, Settings, Panel,
// and machine state indicator buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	// Connect button with icon
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	// Settings button with icon
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	// Virtual panel button opens a simulated machine front panel
	panelBtn := widget.NewButtonWithIcon("Panel", theme.ComputerIcon(), func() {
		showVirtualPanel(state)
	})

	// Mode and valve indicators mirror the state the firmware reports.
	// They are display-only: the machine is driven from its own buttons,
	// the bench just watches.
	modeBtn := widget.NewButton(modeLabel(state.cfg, 0), nil)
	modeBtn.Disable()
	state.modeBtn = modeBtn

	valveBtn := widget.NewButton("Valve closed", nil)
	valveBtn.Disable()
	state.valveBtn = valveBtn

	// Create toolbar with buttons on left and indicators aligned to the right
	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn, panelBtn), // left
		container.NewHBox(modeBtn, valveBtn),                 // right
		nil, // center (spacer)
	)
}

// modeLabel renders the indicator text for a reported mode index.
func modeLabel(cfg *config.Config, mode int) string {
	if mode >= 0 && mode < len(cfg.Machine.Volumes) {
		return fmt.Sprintf("Mode %d: %d mL", mode+1, cfg.Machine.Volumes[mode])
	}
	return "Manual"
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for all goroutines to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Close device - this will close the readings channel
	if chain.device != nil {
		chain.device.Close()
	}

	// Wait for machine state goroutine to finish
	if chain.machineStateGoroutine != nil {
		<-chain.machineStateGoroutine
	}

	// Wait for meter goroutine to finish
	// The meter goroutine will exit when samplesStream closes
	// The samplesStream will close when converters finish draining
	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		// Disconnect - gracefully close measurement chain
		closeMeasurementChain(state.chain)
		state.chain = nil
		state.device = nil
		// Connect button icon doesn't change
		state.machine = machineState{}
		updateMachineButtons(state)
		if state.useMock {
			fmt.Println("Disconnected from mocked device")
		} else {
			fmt.Println("Disconnected from serial port")
		}
	} else {
		// Connect
		var device telemetry.Device
		if state.useMock {
			device = telemetry.NewMock(&state.cfg.Mock, state.cfg.Machine.Thresholds)
			fmt.Println("Using mocked device")
		} else {
			device = telemetry.New(state.cfg.Serial.Port, telemetry.DefaultBaudRate, telemetry.DefaultBufferSize)
		}

		if err := device.Connect(); err != nil {
			if state.useMock {
				dialog.ShowError(fmt.Errorf("failed to connect to mocked device: %w", err), state.window)
			} else {
				dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
			}
			return
		}
		state.device = device
		if state.useMock {
			fmt.Printf("Connected to mocked device\n")
		} else {
			fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
		}

		// Reset meter shutdown flag for new chain
		state.fillMeter.ResetShutdown()

		// Register callback with fill meter to update scope widget
		// This must be done before starting the measurement chain
		// Throttle updates to ~60 FPS (16.67ms between updates) to ensure smooth UI
		const updateInterval = 16 * time.Millisecond // ~60 FPS
		state.fillMeter.OnUpdate(func(samples []sample.Sample, flowRates []float64, fills []meter.Fill) {
			// Throttle updates to prevent UI from being overwhelmed
			state.updateMu.Lock()
			now := time.Now()
			timeSinceLastUpdate := now.Sub(state.lastUpdateTime)
			state.updateMu.Unlock()

			// Skip update if too soon since last update
			if timeSinceLastUpdate < updateInterval {
				return
			}

			// Update timestamp
			state.updateMu.Lock()
			state.lastUpdateTime = now
			state.updateMu.Unlock()

			// Update scope widget on main thread
			// Scope widget handles downsampling internally, so pass full data
			fyne.Do(func() {
				state.scopeWidget.UpdateData(samples, flowRates, fills)
			})
		})

		// Create converter pipeline with chaining support
		readings := device.Readings()

		// Tee readings: one branch for machine state updates, one for converter chain
		// We need to tee because we need to read from the channel twice:
		// 1. For mode and valve indicator synchronization
		// 2. For the converter chain
		readingsForConverter := teeChannel(readings)

		// Track goroutines for graceful shutdown
		machineStateDone := make(chan struct{})
		meterDone := make(chan struct{})

		// Update machine state indicators from readings (only when state changes)
		go func() {
			defer close(machineStateDone)
			for reading := range readings {
				updateMachineStateFromReading(state, reading)
			}
		}()

		// Chain converters: base converter always used, averaging converter conditionally
		// If average_samples is 0, skip averaging; if > 0, chain averaging converter
		// Increase buffer size to prevent channel full errors
		baseStream := sample.NewConverter(state.cfg, 500)(readingsForConverter)

		var samplesStream <-chan sample.Sample
		if state.cfg.Measurement.AverageSamples > 0 {
			// Chain averaging converter when enabled (for already-converted samples)
			samplesStream = sample.NewAveragingConverterForSamples(state.cfg.Measurement.AverageSamples, 500)(baseStream)
		} else {
			// No averaging, use base stream directly
			samplesStream = baseStream
		}

		// Process samples through fill meter (starts measurement automatically)
		go func() {
			defer close(meterDone)
			state.fillMeter.ProcessSamples(samplesStream)
		}()

		// Store chain for graceful shutdown
		state.chain = &measurementChain{
			device:                device,
			readings:              readings,
			readingsForTee:        readingsForConverter,
			machineStateGoroutine: machineStateDone,
			samplesStream:         samplesStream,
			meterGoroutine:        meterDone,
		}
	}
}

// teeChannel creates a tee of the input channel, returning a new channel that receives
// all values from the input. This allows multiple consumers of the same channel.
func teeChannel(in <-chan telemetry.Reading) <-chan telemetry.Reading {
	out := make(chan telemetry.Reading, 100)

	go func() {
		defer close(out)
		for reading := range in {
			out <- reading
		}
	}()

	return out
}
