package apa102

import (
	"testing"

	"gotest.tools/assert"
)

func TestBrightnessQuantize(t *testing.T) {
	// floor(31*b) under the 0xE0 marker
	assert.Equal(t, brightnessByte(0), byte(0xE0))
	assert.Equal(t, brightnessByte(1), byte(0xFF))
	assert.Equal(t, brightnessByte(0.5), byte(0xE0|15))
	assert.Equal(t, brightnessByte(0.04), byte(0xE1))
	// just below a step stays on the lower step
	assert.Equal(t, brightnessByte(0.99), byte(0xE0|30))
}

func TestBrightnessClamp(t *testing.T) {
	assert.Equal(t, brightnessByte(-3.5), byte(0xE0))
	assert.Equal(t, brightnessByte(42), byte(0xFF))
}

func TestFlushFrame(t *testing.T) {
	pins := NewSimPins()
	strip := Open(pins, 2, false)

	err := strip.SetLed(0, 10, 20, 30, 1.0)
	assert.NilError(t, err)
	err = strip.SetLed(1, 40, 50, 60, 0.5)
	assert.NilError(t, err)

	// nothing on the wire until Flush
	assert.Equal(t, len(pins.Bits), 0)

	err = strip.Flush()
	assert.NilError(t, err)

	// 36 lock + 2*32 payload + 32 unlock clock pulses
	assert.Equal(t, len(pins.Bits), 36+2*32+32)
	for i := 0; i < 36; i++ {
		assert.Equal(t, pins.Bits[i], byte(0))
	}
	for i := 36 + 2*32; i < len(pins.Bits); i++ {
		assert.Equal(t, pins.Bits[i], byte(0))
	}

	// brightness, blue, green, red per LED
	payload := pins.Bytes(36, 8)
	assert.DeepEqual(t, payload, []byte{
		0xFF, 30, 20, 10,
		0xE0 | 15, 60, 50, 40,
	})
}

func TestWriteThrough(t *testing.T) {
	pins := NewSimPins()
	strip := Open(pins, 1, true)

	err := strip.SetLed(0, 1, 2, 3, 1.0)
	assert.NilError(t, err)
	// one full frame went out without an explicit Flush
	assert.Equal(t, len(pins.Bits), 36+32+32)
}

func TestSetLedRange(t *testing.T) {
	strip := Open(NewSimPins(), 7, false)
	assert.ErrorContains(t, strip.SetLed(7, 0, 0, 0, 0), "no led")
	assert.ErrorContains(t, strip.SetLed(-1, 0, 0, 0, 0), "no led")
}

func TestTurnOnOff(t *testing.T) {
	pins := NewSimPins()
	strip := Open(pins, 7, false)

	assert.NilError(t, strip.TurnOn())
	assert.NilError(t, strip.Flush())
	payload := pins.Bytes(36, 4)
	assert.DeepEqual(t, payload, []byte{0xFF, 255, 255, 255})

	pins.Reset()
	assert.NilError(t, strip.TurnOff())
	assert.NilError(t, strip.Flush())
	payload = pins.Bytes(36, 4)
	assert.DeepEqual(t, payload, []byte{0xE0, 0, 0, 0})
}

func TestCloseBlanksAndReleases(t *testing.T) {
	pins := NewSimPins()
	strip := Open(pins, 7, false)
	assert.NilError(t, strip.TurnOn())
	assert.NilError(t, strip.Flush())

	pins.Reset()
	assert.NilError(t, strip.Close())

	// the final frame is all-off
	payload := pins.Bytes(36, 7*4)
	for i := 0; i < 7; i++ {
		assert.Equal(t, payload[i*4], byte(0xE0))
		assert.Equal(t, payload[i*4+1], byte(0))
		assert.Equal(t, payload[i*4+2], byte(0))
		assert.Equal(t, payload[i*4+3], byte(0))
	}

	// lines are gone now
	assert.ErrorContains(t, strip.Flush(), "closed")
	// double close is fine
	assert.NilError(t, strip.Close())
}

func TestRainbow(t *testing.T) {
	pins := NewSimPins()
	strip := Open(pins, 7, false)
	assert.NilError(t, strip.Rainbow())
	assert.NilError(t, strip.Flush())

	payload := pins.Bytes(36, 7*4)
	// first LED red, last violet, everything dimmed to the same level
	assert.DeepEqual(t, payload[0:4], []byte{brightnessByte(0.3), 0, 0, 255})
	assert.DeepEqual(t, payload[24:28], []byte{brightnessByte(0.3), 255, 0, 128})
}
