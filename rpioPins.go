package pihat

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio"
)

// real GPIO backends for the Pi

type rpioLed struct {
}

func (rpi *rpioLed) init() error {
	return rpio.Open()
}

func (rpi *rpioLed) set(pinNum int, on bool) {
	pin := rpio.Pin(pinNum)
	pin.Output()
	if on {
		pin.High()
	} else {
		pin.Low()
	}
}

func (rpi *rpioLed) on(pin int) {
	rpi.set(pin, true)
}

func (rpi *rpioLed) off(pin int) {
	rpi.set(pin, false)
}

func (rpi *rpioLed) close() {
	// the hat owns the single rpio.Close
}

type rpioButtons struct {
	pins [3]rpio.Pin
}

func (rb *rpioButtons) setup(rt runtimeConfig, pins [3]int) error {
	if err := rpio.Open(); err != nil {
		return errors.Wrap(err, "buttons: gpio open")
	}
	for i, p := range pins {
		rb.pins[i] = rpio.Pin(p)
		rb.pins[i].Input()
		rb.pins[i].PullUp() // GND => button press
	}
	return nil
}

func (rb *rpioButtons) read() ([3]bool, error) {
	var levels [3]bool
	for i := range rb.pins {
		levels[i] = rb.pins[i].Read() == rpio.High
	}
	return levels, nil
}

func (rb *rpioButtons) close() {
	// N/A, nothing special
}

// piezo tone; the PWM clock runs at tone * cycle length
const buzzerToneHz = 1600
const buzzerCycle = 32

type rpioBuzzer struct {
	pin    rpio.Pin
	opened bool
}

func (rz *rpioBuzzer) open(pinNum int) error {
	if err := rpio.Open(); err != nil {
		return errors.Wrap(err, "buzzer: gpio open")
	}
	rz.pin = rpio.Pin(pinNum)
	rz.pin.Mode(rpio.Pwm)
	rz.pin.Freq(buzzerToneHz * buzzerCycle)
	rz.pin.DutyCycle(0, buzzerCycle)
	rz.opened = true
	return nil
}

func (rz *rpioBuzzer) on() {
	rz.pin.DutyCycle(buzzerCycle/2, buzzerCycle)
}

func (rz *rpioBuzzer) off() {
	rz.pin.DutyCycle(0, buzzerCycle)
}

func (rz *rpioBuzzer) close() {
	if rz.opened {
		rz.off()
	}
}

// rpioStripPins bangs the strip's data/clock lines; the chip-select
// line gates the shared bus while we own it
type rpioStripPins struct {
	data  rpio.Pin
	clock rpio.Pin
	cs    rpio.Pin
}

func openRpioStripPins(dataPin, clockPin, csPin int) (*rpioStripPins, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "strip: gpio open")
	}
	sp := &rpioStripPins{
		data:  rpio.Pin(dataPin),
		clock: rpio.Pin(clockPin),
		cs:    rpio.Pin(csPin),
	}
	sp.data.Output()
	sp.clock.Output()
	sp.cs.Output()
	sp.cs.Low() // selected
	return sp, nil
}

func (sp *rpioStripPins) Data(on bool) {
	if on {
		sp.data.High()
	} else {
		sp.data.Low()
	}
}

func (sp *rpioStripPins) Clock(on bool) {
	if on {
		sp.clock.High()
	} else {
		sp.clock.Low()
	}
}

func (sp *rpioStripPins) Release() {
	sp.cs.High()
}
