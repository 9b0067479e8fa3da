package pihat

import (
	"fmt"
	"sync"
)

// logging/simulated GPIO backends, used off-Pi and by the tests

type logLed struct {
	mu         sync.Mutex
	leds       map[int]bool
	audit      []string
	disableLog bool
	logger     flogger
}

func (ll *logLed) init() error {
	ll.leds = make(map[int]bool)
	ll.audit = make([]string, 0)
	ll.logger = &ThreadLogger{name: "LEDs"}
	return nil
}

func (ll *logLed) set(pinNum int, on bool) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.leds[pinNum] = on
	if !ll.disableLog {
		ll.logger.Printf("Set LED %v to %v", pinNum, on)
	}
	ll.audit = append(ll.audit, fmt.Sprintf("Set LED %v to %v", pinNum, on))
}

func (ll *logLed) on(pinNum int) {
	ll.set(pinNum, true)
}

func (ll *logLed) off(pinNum int) {
	ll.set(pinNum, false)
}

func (ll *logLed) close() {
}

func (ll *logLed) get(pinNum int) bool {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	return ll.leds[pinNum]
}

// simButtons levels are test-settable; lines idle high (not pressed)
type simButtons struct {
	mu     sync.Mutex
	levels [3]bool
	closed bool
}

func (sb *simButtons) setup(rt runtimeConfig, pins [3]int) error {
	sb.levels = [3]bool{true, true, true}
	return nil
}

func (sb *simButtons) read() ([3]bool, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.closed {
		panic("buttons: read after close")
	}
	return sb.levels, nil
}

func (sb *simButtons) close() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.closed = true
}

func (sb *simButtons) press(b ButtonSource) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.levels[b] = false
}

func (sb *simButtons) release(b ButtonSource) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.levels[b] = true
}

type logBuzzer struct {
	mu    sync.Mutex
	isOn  bool
	buzzs int
	log   flogger
}

func (lb *logBuzzer) open(pin int) error {
	lb.log = &ThreadLogger{name: "Buzzer"}
	lb.log.Printf("open on pin %d", pin)
	return nil
}

func (lb *logBuzzer) on() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.log == nil {
		lb.log = &ThreadLogger{name: "Buzzer"}
	}
	lb.isOn = true
	lb.buzzs++
	lb.log.Println("on")
}

func (lb *logBuzzer) off() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.log == nil {
		lb.log = &ThreadLogger{name: "Buzzer"}
	}
	lb.isOn = false
	lb.log.Println("off")
}

func (lb *logBuzzer) close() {
	lb.off()
}

func (lb *logBuzzer) buzzing() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.isOn
}
