package apa102

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultCount is how many strip LEDs the hat carries
const DefaultCount = 7

// clock pulses with data held low before/after the payload
const lockPulses = 36
const unlockPulses = 32

// 5-bit global brightness field, or'd under the 0xE0 marker bits
const brightnessMarker = 0xE0
const brightnessMax = 31

// Pins is the pair of digital lines the strip protocol is banged over.
// Implementations: rpio lines on the Pi, SimPins everywhere else.
type Pins interface {
	Data(on bool)
	Clock(on bool)
	Release()
}

type Led struct {
	Red        uint8
	Green      uint8
	Blue       uint8
	Brightness float64
}

type Strip struct {
	mu           sync.Mutex
	pins         Pins
	leds         []Led
	writeThrough bool
	closed       bool
}

// Open sets up the in-memory strip; nothing hits the wire until Flush
// (or immediately on every mutation when writeThrough is set).
func Open(pins Pins, count int, writeThrough bool) *Strip {
	if count <= 0 {
		count = DefaultCount
	}
	return &Strip{pins: pins, leds: make([]Led, count), writeThrough: writeThrough}
}

func (s *Strip) Count() int {
	return len(s.leds)
}

func clamp(b float64) float64 {
	if b < 0 {
		return 0
	}
	if b > 1 {
		return 1
	}
	return b
}

// brightnessByte quantizes [0,1] to the 5-bit wire field
func brightnessByte(b float64) byte {
	q := int(clamp(b) * brightnessMax)
	return brightnessMarker | (byte(q) & 0x1F)
}

func (s *Strip) SetLed(index int, red, green, blue uint8, brightness float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.leds) {
		return errors.Errorf("apa102: no led %d", index)
	}
	s.leds[index] = Led{Red: red, Green: green, Blue: blue, Brightness: clamp(brightness)}
	return s.maybeFlush()
}

func (s *Strip) SetAll(red, green, blue uint8, brightness float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.leds {
		s.leds[i] = Led{Red: red, Green: green, Blue: blue, Brightness: clamp(brightness)}
	}
	return s.maybeFlush()
}

// TurnOn lights every LED white at full brightness
func (s *Strip) TurnOn() error {
	return s.SetAll(255, 255, 255, 1.0)
}

func (s *Strip) TurnOff() error {
	return s.SetAll(0, 0, 0, 0)
}

func (s *Strip) TurnOffLed(index int) error {
	return s.SetLed(index, 0, 0, 0, 0)
}

// Rainbow paints the 7-color arc across the strip
func (s *Strip) Rainbow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.leds {
		c := rainbowColors[i%len(rainbowColors)]
		s.leds[i] = Led{Red: c[0], Green: c[1], Blue: c[2], Brightness: 0.3}
	}
	return s.maybeFlush()
}

var rainbowColors = [DefaultCount][3]uint8{
	{255, 0, 0},   // red
	{255, 128, 0}, // orange
	{255, 255, 0}, // yellow
	{0, 255, 0},   // green
	{0, 255, 255}, // cyan
	{0, 0, 255},   // blue
	{128, 0, 255}, // violet
}

func (s *Strip) maybeFlush() error {
	if !s.writeThrough {
		return nil
	}
	return s.flushLocked()
}

// Flush clocks the whole frame out to the hardware
func (s *Strip) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Strip) flushLocked() error {
	if s.closed {
		return errors.New("apa102: strip is closed")
	}
	s.lock(lockPulses)
	for _, led := range s.leds {
		s.writeByte(brightnessByte(led.Brightness))
		s.writeByte(led.Blue)
		s.writeByte(led.Green)
		s.writeByte(led.Red)
	}
	s.lock(unlockPulses)
	return nil
}

// lock holds data low and pulses the clock; the same wiggle starts and
// latches a frame, just with different pulse counts
func (s *Strip) lock(pulses int) {
	s.pins.Data(false)
	for i := 0; i < pulses; i++ {
		s.pins.Clock(true)
		s.pins.Clock(false)
	}
}

// MSB first, clock high then low per bit
func (s *Strip) writeByte(b byte) {
	for bit := 7; bit >= 0; bit-- {
		s.pins.Data(b&(1<<uint(bit)) != 0)
		s.pins.Clock(true)
		s.pins.Clock(false)
	}
}

// Close blanks the strip before giving the lines back so nothing is
// left lit after we exit
func (s *Strip) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for i := range s.leds {
		s.leds[i] = Led{}
	}
	err := s.flushLocked()
	s.closed = true
	s.pins.Release()
	return err
}
