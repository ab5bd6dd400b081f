package main

import (
	"machine"

	"github.com/anishkk/gobfm/pkg/fill"
	"github.com/anishkk/gobfm/pkg/nvram"
	"tinygo.org/x/drivers/at24cx"
	"tinygo.org/x/drivers/hd44780"
)

// Ensure the board peripherals satisfy the control core interfaces.
var (
	_ fill.Scale   = (*loadCell)(nil)
	_ fill.Button  = (*button)(nil)
	_ fill.Panel   = (*panel)(nil)
	_ fill.Display = (*display)(nil)
	_ nvram.Store  = (*eeprom)(nil)
)

// loadCell adapts the hx711 to the Scale interface. The cell is mounted so
// that added weight drives the raw value negative, so samples are negated.
type loadCell struct {
	adc *hx711
}

func (s *loadCell) Read() int32 {
	return -s.adc.read()
}

func (s *loadCell) ReadStable(n int) int32 {
	if n <= 0 {
		n = 1
	}
	var sum int64
	for range n {
		sum += int64(s.Read())
	}
	return int32(sum / int64(n))
}

// button is an active-low momentary switch on an input with pull-up.
type button struct {
	pin machine.Pin
}

func newButton(pin machine.Pin) *button {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &button{pin: pin}
}

func (b *button) Pressed() bool {
	return !b.pin.Get()
}

// panel drives the dispense relay and the status indicator pins.
type panel struct {
	relay     machine.Pin
	indicator machine.Pin
}

func newPanel(relay, indicator machine.Pin) *panel {
	relay.Configure(machine.PinConfig{Mode: machine.PinOutput})
	indicator.Configure(machine.PinConfig{Mode: machine.PinOutput})
	relay.Low()
	indicator.Low()
	return &panel{relay: relay, indicator: indicator}
}

func (p *panel) SetRelay(on bool)     { p.relay.Set(on) }
func (p *panel) SetIndicator(on bool) { p.indicator.Set(on) }

// display adapts the hd44780 driver to the Display interface.
type display struct {
	dev hd44780.Device
}

func newDisplay() (*display, error) {
	dev, err := hd44780.NewGPIO4Bit(
		[]machine.Pin{PIN_LCD_D4, PIN_LCD_D5, PIN_LCD_D6, PIN_LCD_D7},
		PIN_LCD_EN, PIN_LCD_RS, machine.NoPin,
	)
	if err != nil {
		return nil, err
	}
	if err := dev.Configure(hd44780.Config{
		Width:  LCD_COLS,
		Height: LCD_ROWS,
	}); err != nil {
		return nil, err
	}
	return &display{dev: dev}, nil
}

func (d *display) SetCursor(col, row int) {
	d.dev.SetCursor(uint8(col), uint8(row))
}

func (d *display) Print(s string) {
	d.dev.Write([]byte(s))
}

func (d *display) Clear() {
	d.dev.ClearDisplay()
}

// eeprom adapts the at24cx driver to the calibration store interface.
type eeprom struct {
	dev at24cx.Device
}

func newEEPROM() *eeprom {
	dev := at24cx.New(machine.I2C0)
	dev.Configure(at24cx.Config{})
	return &eeprom{dev: dev}
}

// Write stores v one byte at a time, least significant byte first, the same
// layout nvram.EncodeInt32 produces. Not atomic across the four bytes.
func (e *eeprom) Write(addr int, v int32) {
	var buf [nvram.Int32Size]byte
	nvram.EncodeInt32(buf[:], v)
	for i, b := range buf {
		e.dev.WriteByte(uint16(addr+i), b)
	}
}

func (e *eeprom) Read(addr int) int32 {
	var buf [nvram.Int32Size]byte
	for i := range buf {
		buf[i], _ = e.dev.ReadByte(uint16(addr + i))
	}
	return nvram.DecodeInt32(buf[:])
}
