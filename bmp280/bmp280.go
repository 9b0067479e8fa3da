package bmp280

import (
	"log"
	"sync"

	"github.com/pkg/errors"

	"pihat/i2c"
)

// Address is the sensor's 7-bit bus address on the hat
const Address = 0x77

const (
	regChipID   = 0xD0
	regCtrlMeas = 0xF4
	regCalib    = 0x88
	regPressMSB = 0xF7
	regTempMSB  = 0xFA

	chipSignature = 0x58

	// temp x1, pressure x1, normal (continuous) mode
	ctrlMeasNormal = 0x27
)

// t_fine to degrees, from the datasheet
const tempResolution = 5120.0

type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

// factory calibration words, read once at Open and immutable after
type calibration struct {
	t1         uint16
	t2, t3     int16
	p1         uint16
	p2, p3, p4 int16
	p5, p6, p7 int16
	p8, p9     int16
}

type BMP280 struct {
	mu    sync.Mutex
	bus   i2c.Bus
	cal   calibration
	state State
	tFine int32
}

// Open probes the chip, pulls the calibration block and switches the
// part into continuous sampling. A wrong chip ID leaves the device
// Failed but does not touch the bus again.
func Open(bus i2c.Bus) (*BMP280, error) {
	d := &BMP280{bus: bus, state: Initializing}

	id, err := bus.ReadReg(regChipID, 1)
	if err != nil {
		d.state = Failed
		return d, errors.Wrap(err, "bmp280: chip id read")
	}
	if id[0] != chipSignature {
		d.state = Failed
		return d, errors.Errorf("bmp280: unexpected chip id 0x%02x (want 0x%02x)", id[0], chipSignature)
	}

	if err := d.readCalibration(); err != nil {
		d.state = Failed
		return d, err
	}

	if _, err := bus.Write([]byte{regCtrlMeas, ctrlMeasNormal}); err != nil {
		d.state = Failed
		return d, errors.Wrap(err, "bmp280: enable sampling")
	}

	d.state = Ready
	return d, nil
}

// 12 little-endian words starting at 0x88: T1..T3 then P1..P9
func (d *BMP280) readCalibration() error {
	words := make([]uint16, 12)
	for i := range words {
		w, err := d.bus.ReadRegU16LE(regCalib + byte(2*i))
		if err != nil {
			return errors.Wrapf(err, "bmp280: calibration word %d", i)
		}
		words[i] = w
	}
	d.cal = calibration{
		t1: words[0],
		t2: int16(words[1]),
		t3: int16(words[2]),
		p1: words[3],
		p2: int16(words[4]),
		p3: int16(words[5]),
		p4: int16(words[6]),
		p5: int16(words[7]),
		p6: int16(words[8]),
		p7: int16(words[9]),
		p8: int16(words[10]),
		p9: int16(words[11]),
	}
	return nil
}

func (d *BMP280) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *BMP280) Ready() bool {
	return d.State() == Ready
}

// msb<<12 | lsb<<4 | xlsb>>4
func (d *BMP280) raw20(reg byte) (int32, error) {
	buf, err := d.bus.ReadReg(reg, 3)
	if err != nil {
		return 0, err
	}
	return int32(uint32(buf[0])<<12 | uint32(buf[1])<<4 | uint32(buf[2])>>4), nil
}

// Temperature reads and compensates one sample, in °C
func (d *BMP280) Temperature() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tFine, err := d.readTFine()
	if err != nil {
		return 0, err
	}
	return float64(tFine) / tempResolution, nil
}

// readTFine updates the undivided temperature term the pressure
// formula feeds on; caller holds the lock
func (d *BMP280) readTFine() (int32, error) {
	if d.state != Ready {
		return 0, errors.Errorf("bmp280: not ready (state %d)", d.state)
	}
	raw, err := d.raw20(regTempMSB)
	if err != nil {
		return 0, errors.Wrap(err, "bmp280: temperature read")
	}
	d.tFine = compensateTemp(raw, d.cal)
	return d.tFine, nil
}

// Pressure reads and compensates one sample, in hPa. A temperature
// read happens first because the formula needs a fresh t_fine.
func (d *BMP280) Pressure() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.readTFine(); err != nil {
		return 0, err
	}
	raw, err := d.raw20(regPressMSB)
	if err != nil {
		return 0, errors.Wrap(err, "bmp280: pressure read")
	}
	pa256, ok := compensatePressure(raw, d.tFine, d.cal)
	if !ok {
		// zero denominator; the part is mid-reset or the calibration
		// block read back empty
		log.Println("bmp280: pressure denominator is zero, reporting 0")
		return 0, nil
	}
	// Q24.8 pascals to hPa
	return float64(pa256) / 256.0 / 100.0, nil
}

// datasheet 32-bit temperature compensation; result is t_fine
func compensateTemp(raw int32, cal calibration) int32 {
	var1 := ((raw>>3 - int32(cal.t1)<<1) * int32(cal.t2)) >> 11
	delta := raw>>4 - int32(cal.t1)
	var2 := (((delta * delta) >> 12) * int32(cal.t3)) >> 14
	return var1 + var2
}

// datasheet 64-bit pressure compensation; result is pascals in Q24.8.
// ok is false when the first denominator term lands on zero.
func compensatePressure(raw, tFine int32, cal calibration) (int64, bool) {
	var1 := int64(tFine) - 128000
	var2 := var1 * var1 * int64(cal.p6)
	var2 += (var1 * int64(cal.p5)) << 17
	var2 += int64(cal.p4) << 35
	var1 = (var1*var1*int64(cal.p3))>>8 + (var1*int64(cal.p2))<<12
	var1 = ((int64(1)<<47 + var1) * int64(cal.p1)) >> 33
	if var1 == 0 {
		return 0, false
	}
	p := int64(1048576 - raw)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(cal.p9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(cal.p8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + int64(cal.p7)<<4
	return p, true
}

// SimPreload primes a simulated bus with the chip signature, a real
// part's calibration block and one plausible sample, so off-Pi
// bring-up probes and reads like hardware
func SimPreload(sb *i2c.SimBus) {
	sb.Preload(regChipID, chipSignature)
	words := []uint16{
		27504, 26435, 0xFC18, // T1..T3
		36477, 0xD643, 3024, 2855, 140, 0xFFF9, 15500, 0xC6F8, 6000, // P1..P9
	}
	for i, w := range words {
		sb.Preload(regCalib+byte(2*i), byte(w&0xFF), byte(w>>8))
	}
	// ~25.08 degrees, ~1006.5 hPa
	sb.Preload(regTempMSB, 0x7E, 0xED, 0x00)
	sb.Preload(regPressMSB, 0x65, 0x5A, 0xC0)
}

// Close leaves the part in whatever sampling mode it is in (it is
// harmless powered) and releases the bus handle
func (d *BMP280) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Uninitialized {
		return nil
	}
	d.state = Uninitialized
	return d.bus.Close()
}
