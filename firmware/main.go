//go:generate tinygo flash -target=pico

package main

import (
	"context"
	"machine"
	"time"

	"github.com/anishkk/gobfm/pkg/fill"
)

var uart = machine.UART0

func main() {
	// Configure UART for telemetry output
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	// Configure I2C for the calibration EEPROM
	machine.I2C0.Configure(machine.I2CConfig{})

	disp, err := newDisplay()
	if err != nil {
		for {
			println("lcd init failed:", err.Error())
			time.Sleep(time.Second)
		}
	}

	// Splash screen while the operator decides whether to hold buttons for
	// calibration or inspection entry
	disp.Clear()
	disp.SetCursor(0, 0)
	disp.Print("Dispense machine")
	disp.SetCursor(0, 1)
	disp.Print("V1.3")
	time.Sleep(800 * time.Millisecond)
	disp.Clear()

	hw := fill.Hardware{
		Scale:    &loadCell{adc: newHX711(PIN_LOADCELL_SCK, PIN_LOADCELL_DOUT)},
		Dispense: newButton(PIN_DISPENSE),
		Mode:     newButton(PIN_MODE),
		Panel:    newPanel(PIN_RELAY, PIN_INDICATOR),
		Display:  disp,
	}

	ctrl := fill.New(hw, newEEPROM(), fill.Params{})
	ctrl.Trace = emitTelemetry

	ctrl.Boot()
	ctrl.Run(context.Background())
}

// emitTelemetry writes one CSV record per control iteration.
// Output format: "unix_micros,weight,mode,threshold,dispensing\n"
// Example: "1234567890123456,234567,1,240000,1\n"
func emitTelemetry(weight int32, mode int, threshold int32, dispensing bool) {
	timestampMicros := time.Now().UnixNano() / 1000 // Convert nanoseconds to microseconds

	print(timestampMicros)
	print(",")
	print(weight)
	print(",")
	print(mode)
	print(",")
	print(threshold)
	print(",")
	if dispensing {
		print("1")
	} else {
		print("0")
	}
	print("\n")
}
