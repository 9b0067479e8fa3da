package alphanum_backpack

import (
	"log"

	"github.com/pkg/errors"

	"pihat/i2c"
)

// Address is the backpack's 7-bit bus address on the hat
const Address = 0x70

// commands we support
// OSC on/off 0/1
const i2c_OSC_CMD = 0x20
const i2c_OSC_ON = 0x21
const i2c_OSC_OFF = 0x20

// display on/off and 2 "blink" bits in position 2+1
const i2cDISPLAY_CMD = 0x80
const i2cDISPLAY_ON = 0x81
const i2cDISPLAY_OFF = 0x80

// 0x0 -> 0xF brightness levels
const i2cBRIGHTNESS_CMD = 0xE0
const i2cBRIGHTNESS_MAX = 0xEF
const i2cBRIGHTNESS_MIN = 0xE0

// export blink positions
const BLINK_OFF = 0
const BLINK_2HZ = 1
const BLINK_1HZ = 2
const BLINK_HALFHZ = 3

// Cells is how many 14-segment characters the module carries
const Cells = 4

// one address byte, then 2 bytes (little-endian mask) per cell
const displaySize = 1 + Cells*2

// translate characters to 14-segment bitmasks
var segmentValues = map[byte]uint16{
	' ':  0x0000,
	'!':  0x0006,
	'"':  0x0220,
	'#':  0x12CE,
	'$':  0x12ED,
	'%':  0x0C24,
	'&':  0x235D,
	'\'': 0x0400,
	'(':  0x2400,
	')':  0x0900,
	'*':  0x3FC0,
	'+':  0x12C0,
	'-':  0x00C0,
	'/':  0x0C00,
	'0':  0x0C3F,
	'1':  0x0006,
	'2':  0x00DB,
	'3':  0x008F,
	'4':  0x00E6,
	'5':  0x2069,
	'6':  0x00FD,
	'7':  0x0007,
	'8':  0x00FF,
	'9':  0x00EF,
	'=':  0x00C8,
	'?':  0x1083,
	'@':  0x02BB,
	'A':  0x00F7,
	'B':  0x128F,
	'C':  0x0039,
	'D':  0x120F,
	'E':  0x00F9,
	'F':  0x0071,
	'G':  0x00BD,
	'H':  0x00F6,
	'I':  0x1209,
	'J':  0x001E,
	'K':  0x2470,
	'L':  0x0038,
	'M':  0x0536,
	'N':  0x2136,
	'O':  0x003F,
	'P':  0x00F3,
	'Q':  0x203F,
	'R':  0x20F3,
	'S':  0x00ED,
	'T':  0x1201,
	'U':  0x003E,
	'V':  0x0C30,
	'W':  0x2836,
	'X':  0x2D00,
	'Y':  0x1500,
	'Z':  0x0C09,
	'_':  0x0008,
	'a':  0x1058,
	'b':  0x2078,
	'c':  0x00D8,
	'd':  0x088E,
	'e':  0x0858,
	'f':  0x0071,
	'g':  0x048E,
	'h':  0x1070,
	'i':  0x1000,
	'j':  0x000E,
	'k':  0x3600,
	'l':  0x0030,
	'm':  0x10D4,
	'n':  0x1050,
	'o':  0x00DC,
	'p':  0x0170,
	'q':  0x0486,
	'r':  0x0050,
	's':  0x2088,
	't':  0x0078,
	'u':  0x001C,
	'v':  0x2004,
	'w':  0x2814,
	'x':  0x28C0,
	'y':  0x200C,
	'z':  0x0848,
}

type Alphanum struct {
	display [displaySize]uint8
	i2cDev  i2c.Bus
	blink   byte
	sim     bool
	closed  bool
}

func (this *Alphanum) simLog(v string, args ...interface{}) {
	if !this.sim {
		return
	}
	log.Printf(v, args...)
}

// Open brings the backpack up: oscillator on, display enabled with
// blink off, brightness pinned to max
func Open(bus i2c.Bus, simulated bool) (*Alphanum, error) {
	this := &Alphanum{
		i2cDev: bus,
		blink:  BLINK_OFF,
		sim:    simulated,
	}
	if _, err := this.i2cDev.WriteByte(i2c_OSC_ON); err != nil {
		return nil, errors.Wrap(err, "alphanum: oscillator setup")
	}
	if err := this.DisplayOn(true); err != nil {
		return nil, errors.Wrap(err, "alphanum: display enable")
	}
	if _, err := this.i2cDev.WriteByte(i2cBRIGHTNESS_MAX); err != nil {
		return nil, errors.Wrap(err, "alphanum: brightness setup")
	}
	return this, nil
}

func (this *Alphanum) DisplayOn(on bool) error {
	this.simLog("Display: %t", on)
	// blink rate is bits 2 and 1 of the display command
	var val byte = i2cDISPLAY_ON | (this.blink << 1)
	if !on {
		val = i2cDISPLAY_OFF
	}
	_, err := this.i2cDev.WriteByte(val)
	return err
}

func (this *Alphanum) SetBlinkRate(rate uint8) error {
	if rate > 3 {
		return errors.Errorf("alphanum: bad blink rate: %d", rate)
	}
	this.simLog("Blink rate %d", rate)
	this.blink = rate
	// one assumes you want the display on now?
	return this.DisplayOn(true)
}

func (this *Alphanum) SetBrightness(level uint8) error {
	if level > 15 {
		return errors.Errorf("alphanum: bad brightness level: %d", level)
	}
	this.simLog("Brightness %d", level)
	_, err := this.i2cDev.WriteByte(i2cBRIGHTNESS_CMD | level)
	return err
}

// getMask never fails: unknown characters render as a blank cell,
// trying the other case first
func getMask(char uint8) uint16 {
	if val, ok := segmentValues[char]; ok {
		return val
	}
	if val, ok := segmentValues[altCase(char)]; ok {
		return val
	}
	return segmentValues[' ']
}

func altCase(char uint8) uint8 {
	if char >= 'A' && char <= 'Z' {
		return char + 'a' - 'A'
	} else if char >= 'a' && char <= 'z' {
		return char + 'A' - 'a'
	}
	return char
}

// frame builds the full buffer: leading register-pointer zero, then
// one little-endian mask per cell, message placed per alignment
func frame(msg string, rightAligned bool) [displaySize]uint8 {
	var display [displaySize]uint8
	offset := 0
	if rightAligned {
		offset = Cells - len(msg)
	}
	for i := 0; i < len(msg); i++ {
		mask := getMask(msg[i])
		display[1+2*(offset+i)] = uint8(mask & 0xFF)
		display[1+2*(offset+i)+1] = uint8(mask >> 8)
	}
	return display
}

// Show puts up to 4 characters on the display, right aligned
func (this *Alphanum) Show(msg string) error {
	return this.show(msg, true)
}

// ShowLeft is Show with left alignment
func (this *Alphanum) ShowLeft(msg string) error {
	return this.show(msg, false)
}

func (this *Alphanum) show(msg string, rightAligned bool) error {
	if this.closed {
		return errors.New("alphanum: display is closed")
	}
	if len(msg) > Cells {
		return errors.Errorf("alphanum: too many characters: %s", msg)
	}
	this.simLog("Show: %q", msg)
	this.display = frame(msg, rightAligned)
	_, err := this.i2cDev.Write(this.display[:])
	return err
}

func (this *Alphanum) Clear() error {
	return this.show("", true)
}

// Close blanks and disables the display before releasing the bus
func (this *Alphanum) Close() error {
	if this.closed {
		return nil
	}
	this.Clear()
	this.DisplayOn(false)
	this.closed = true
	return this.i2cDev.Close()
}
