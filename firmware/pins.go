package main

import "machine"

const (
	// Front panel buttons (active low, internal pull-ups)
	PIN_DISPENSE = machine.GP2
	PIN_MODE     = machine.GP3

	// Dispense relay and status indicator
	PIN_RELAY     = machine.GP6
	PIN_INDICATOR = machine.LED

	// Load cell ADC two-wire interface
	PIN_LOADCELL_DOUT = machine.GP7
	PIN_LOADCELL_SCK  = machine.GP8

	// Character LCD in 4-bit mode
	PIN_LCD_RS = machine.GP10
	PIN_LCD_EN = machine.GP11
	PIN_LCD_D4 = machine.GP12
	PIN_LCD_D5 = machine.GP13
	PIN_LCD_D6 = machine.GP14
	PIN_LCD_D7 = machine.GP15

	// LCD dimensions
	LCD_COLS = 16
	LCD_ROWS = 2

	// Serial configuration
	// Baud rate calculation: Format "unix_micros,weight,mode,threshold,dispensing\n"
	// Example: "1234567890123456,-250000,3,-1,1\n" = ~35 bytes max per line
	// The 10SPS load cell paces the loop: 10 lines/sec * 35 bytes = 350 bytes/sec
	// UART 8N1: 10 bits/byte = 3,500 baud minimum
	// 115200 leaves ample headroom for the prose diagnostics during calibration
	UART_BAUD_RATE = 115200
)
