package i2c

import (
	"fmt"
	"log"
	"os"
	"syscall"
)

// Bus is the register-style transaction surface the hat drivers use.
// The real implementation talks to /dev/i2c-N; the simulated one is
// backed by a register map so drivers run (and test) off-Pi.
type Bus interface {
	WriteByte(single byte) (int, error)
	Write(buf []uint8) (int, error)
	ReadReg(reg byte, n int) ([]byte, error)
	ReadRegU16LE(reg byte) (uint16, error)
	Close() error
}

const (
	I2C_SLAVE = 0x0703
)

type I2C struct {
	fd      *os.File
	address uint8
}

// open a connection to the i2c device; simulated gets a SimBus instead
func Open(address uint8, bus int, simulated bool) (Bus, error) {
	if simulated {
		return NewSimBus(address), nil
	}
	f, err := os.OpenFile(fmt.Sprintf("/dev/i2c-%d", bus), os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	if err := ioctl(f.Fd(), I2C_SLAVE, uintptr(address)); err != nil {
		f.Close()
		return nil, err
	}
	return &I2C{fd: f, address: address}, nil
}

func (this *I2C) Close() error {
	return this.fd.Close()
}

// this is to write a command-style byte
func (this *I2C) WriteByte(single byte) (int, error) {
	var buf [1]byte
	buf[0] = single
	// not MT safe for i2c
	if err := this.selectLine(); err != nil {
		return 0, err
	}
	return this.fd.Write(buf[:])
}

func (this *I2C) Write(buf []uint8) (int, error) {
	// not MT safe for i2c
	if err := this.selectLine(); err != nil {
		return 0, err
	}
	return this.fd.Write(buf)
}

// ReadReg sets the register pointer and reads n bytes back
func (this *I2C) ReadReg(reg byte, n int) ([]byte, error) {
	if err := this.selectLine(); err != nil {
		return nil, err
	}
	if _, err := this.fd.Write([]byte{reg}); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := this.fd.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (this *I2C) ReadRegU16LE(reg byte) (uint16, error) {
	buf, err := this.ReadReg(reg, 2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func (this *I2C) selectLine() error {
	return ioctl(this.fd.Fd(), I2C_SLAVE, uintptr(this.address))
}

func ioctl(fd, cmd, arg uintptr) error {
	_, _, err := syscall.Syscall6(syscall.SYS_IOCTL, fd, cmd, arg, 0, 0, 0)
	if err != 0 {
		return err
	}
	return nil
}

// SimBus logs traffic like the real thing would carry it and keeps a
// register map so driver reads have something to chew on.
type SimBus struct {
	address uint8
	regs    map[byte]byte
	Audit   [][]byte
	Quiet   bool
	closed  bool
}

func NewSimBus(address uint8) *SimBus {
	return &SimBus{address: address, regs: make(map[byte]byte)}
}

// Preload stuffs register values before a driver opens the device
func (sb *SimBus) Preload(reg byte, vals ...byte) {
	for i, v := range vals {
		sb.regs[reg+byte(i)] = v
	}
}

func (sb *SimBus) checkOpen() {
	if sb.closed {
		panic(fmt.Sprintf("i2c: use after Close on 0x%02x", sb.address))
	}
}

func (sb *SimBus) logWrite(buf []uint8) {
	if sb.Quiet {
		return
	}
	line := fmt.Sprintf("Write 0x%02x :", sb.address)
	for i := 0; i < len(buf); i++ {
		line += fmt.Sprintf(" %02x", buf[i])
	}
	log.Println(line)
}

func (sb *SimBus) WriteByte(single byte) (int, error) {
	sb.checkOpen()
	sb.Audit = append(sb.Audit, []byte{single})
	sb.logWrite([]byte{single})
	return 1, nil
}

func (sb *SimBus) Write(buf []uint8) (int, error) {
	sb.checkOpen()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	sb.Audit = append(sb.Audit, cp)
	sb.logWrite(buf)
	// register-addressed writes land in the map too
	for i := 1; i < len(buf); i++ {
		sb.regs[buf[0]+byte(i-1)] = buf[i]
	}
	return len(buf), nil
}

func (sb *SimBus) ReadReg(reg byte, n int) ([]byte, error) {
	sb.checkOpen()
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = sb.regs[reg+byte(i)]
	}
	return buf, nil
}

func (sb *SimBus) ReadRegU16LE(reg byte) (uint16, error) {
	buf, err := sb.ReadReg(reg, 2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func (sb *SimBus) Close() error {
	sb.checkOpen()
	sb.closed = true
	if !sb.Quiet {
		log.Printf("Close: 0x%02x", sb.address)
	}
	return nil
}
