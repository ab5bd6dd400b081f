package main

import (
	"machine"
	"time"
)

// hx711 clocks samples out of the 24-bit load cell ADC over its two-wire
// synchronous interface. The part converts continuously at 10SPS and signals
// a finished conversion by pulling DOUT low.
type hx711 struct {
	sck  machine.Pin
	dout machine.Pin
}

func newHX711(sck, dout machine.Pin) *hx711 {
	sck.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dout.Configure(machine.PinConfig{Mode: machine.PinInput})
	sck.Low()
	return &hx711{sck: sck, dout: dout}
}

// ready reports whether a conversion is waiting to be read.
func (h *hx711) ready() bool {
	return !h.dout.Get()
}

// read blocks until the next conversion, shifts out 24 bits MSB first, then
// pulses one extra clock to select channel A at gain 128 for the next cycle.
func (h *hx711) read() int32 {
	for !h.ready() {
		time.Sleep(100 * time.Microsecond)
	}

	var raw uint32
	for range 24 {
		h.sck.High()
		raw <<= 1
		if h.dout.Get() {
			raw |= 1
		}
		h.sck.Low()
	}

	// 25th pulse: channel A, gain 128
	h.sck.High()
	h.sck.Low()

	// Sign-extend the 24-bit two's complement value
	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int32(raw)
}
