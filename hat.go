// Package pihat drives the multi-peripheral add-on board: the APA102
// LED strip, the BMP280 environment sensor, the 14-segment display,
// three indicator LEDs, three buttons and the piezo buzzer. Callers
// get a typed action/event surface; everything hardware-shaped stays
// behind it.
package pihat

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio"

	"pihat/alphanum_backpack"
	"pihat/apa102"
	"pihat/bmp280"
	"pihat/i2c"
)

type deviceState int

const (
	stateUninitialized deviceState = iota
	stateInitializing
	stateReady
	stateFailed
)

// hatParts are the swappable hardware backends; buses are factories
// because they are only opened during (async) bring-up
type hatParts struct {
	leds       led
	btns       buttons
	buzz       buzzer
	stripPins  func() (apa102.Pins, error)
	sensorBus  func() (i2c.Bus, error)
	displayBus func() (i2c.Bus, error)
}

type Hat struct {
	mu sync.Mutex

	settings *settings
	rt       runtimeConfig
	parts    hatParts

	strip   *apa102.Strip
	sensor  *bmp280.BMP280
	display *alphanum_backpack.Alphanum

	state        deviceState
	sensorState  deviceState
	displayState deviceState
	initErr      error
	closed       bool

	events chan Event
	quit   chan struct{}
	wg     sync.WaitGroup
}

// Open wires up the hat from a config file ("" for defaults). Real
// GPIO/i2c backends on the Pi, logging/simulated ones everywhere
// else. Call Start to actually bring the hardware up.
func Open(configFile string) (*Hat, error) {
	s, err := initSettings(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "hat: settings")
	}
	setupLogging(s)
	rt := initRuntime()

	var parts hatParts
	if s.GetBool("pins_simulated") {
		parts.leds = &logLed{}
		if s.GetBool("keyboard_buttons") {
			parts.btns = &keyButtons{}
		} else {
			parts.btns = &simButtons{}
		}
		parts.buzz = &logBuzzer{}
		parts.stripPins = func() (apa102.Pins, error) {
			return apa102.NewSimPins(), nil
		}
	} else {
		parts.leds = &rpioLed{}
		parts.btns = &rpioButtons{}
		parts.buzz = &rpioBuzzer{}
		parts.stripPins = func() (apa102.Pins, error) {
			return openRpioStripPins(
				s.GetInt("pin_strip_data"),
				s.GetInt("pin_strip_clock"),
				s.GetInt("pin_strip_cs"))
		}
	}

	sim := s.GetBool("i2c_simulated")
	busNum := s.GetInt("i2c_bus")
	parts.sensorBus = func() (i2c.Bus, error) {
		bus, err := i2c.Open(s.GetByte("sensor_device"), busNum, sim)
		if err == nil && sim {
			// give the simulated part a pulse so Open's probe works
			bmp280.SimPreload(bus.(*i2c.SimBus))
		}
		return bus, err
	}
	parts.displayBus = func() (i2c.Bus, error) {
		return i2c.Open(s.GetByte("display_device"), busNum, sim)
	}

	return newHat(s, rt, parts), nil
}

func newHat(s *settings, rt runtimeConfig, parts hatParts) *Hat {
	return &Hat{
		settings: s,
		rt:       rt,
		parts:    parts,
		events:   make(chan Event, 16),
		quit:     make(chan struct{}),
	}
}

// Events is the hat's single outbound channel: button presses and
// periodic temperature/pressure readings
func (h *Hat) Events() <-chan Event {
	return h.events
}

func (h *Hat) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateReady
}

// Err reports why bring-up failed, once it has
func (h *Hat) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initErr
}

// Start kicks off asynchronous bring-up; PerformAction has no effect
// until it completes
func (h *Hat) Start() {
	h.mu.Lock()
	if h.state != stateUninitialized {
		h.mu.Unlock()
		return
	}
	h.state = stateInitializing
	h.mu.Unlock()

	h.wg.Add(1)
	go h.initialize()
}

func (h *Hat) fail(err error) {
	h.rt.logger.Println(err.Error())
	h.mu.Lock()
	h.state = stateFailed
	h.initErr = err
	h.mu.Unlock()
}

func (h *Hat) initialize() {
	defer h.wg.Done()
	logger := h.rt.logger

	// digital lines first; no line controller is unrecoverable
	if err := h.parts.leds.init(); err != nil {
		h.fail(errors.Wrap(err, "hat: led lines"))
		return
	}
	for _, pin := range h.ledPins() {
		h.parts.leds.off(pin)
	}
	if err := h.parts.btns.setup(h.rt, h.buttonPins()); err != nil {
		h.fail(errors.Wrap(err, "hat: button lines"))
		return
	}
	if err := h.parts.buzz.open(h.settings.GetInt("pin_buzzer")); err != nil {
		h.fail(errors.Wrap(err, "hat: buzzer line"))
		return
	}
	stripPins, err := h.parts.stripPins()
	if err != nil {
		h.fail(errors.Wrap(err, "hat: strip lines"))
		return
	}
	strip := apa102.Open(stripPins, apa102.DefaultCount, true)
	strip.TurnOff()

	// bus devices soft-fail: a dead sensor should not cost us the rest
	// of the board. Everything is built on locals and published in one
	// shot; readers can poke at the hat mid-bring-up.
	var sensor *bmp280.BMP280
	sensorState := stateInitializing
	if bus, err := h.parts.sensorBus(); err != nil {
		logger.Printf("sensor bus: %s", err.Error())
		sensorState = stateFailed
	} else if dev, err := bmp280.Open(bus); err != nil {
		logger.Printf("sensor: %s", err.Error())
		sensorState = stateFailed
		bus.Close()
	} else {
		sensor = dev
		sensorState = stateReady
	}

	var display *alphanum_backpack.Alphanum
	displayState := stateInitializing
	if bus, err := h.parts.displayBus(); err != nil {
		logger.Printf("display bus: %s", err.Error())
		displayState = stateFailed
	} else if disp, err := alphanum_backpack.Open(bus, h.settings.GetBool("i2c_simulated")); err != nil {
		logger.Printf("display: %s", err.Error())
		displayState = stateFailed
		bus.Close()
	} else {
		display = disp
		displayState = stateReady
	}

	h.mu.Lock()
	h.strip = strip
	h.sensor = sensor
	h.sensorState = sensorState
	h.display = display
	h.displayState = displayState
	h.mu.Unlock()

	h.wg.Add(3)
	go h.runWatchButtons()
	go h.runSensorPoll("Temperature", h.settings.GetDuration("temperaturePollTime"),
		h.readTemperature, func(v float64) Event { return TemperatureEvent{DegreesC: v} })
	go h.runSensorPoll("Pressure", h.settings.GetDuration("pressurePollTime"),
		h.readPressure, func(v float64) Event { return PressureEvent{HPa: v} })

	h.mu.Lock()
	h.state = stateReady
	h.mu.Unlock()
	logger.Println("hat is ready")
}

func (h *Hat) ledPins() [3]int {
	return [3]int{
		h.settings.GetInt("pin_red_led"),
		h.settings.GetInt("pin_green_led"),
		h.settings.GetInt("pin_blue_led"),
	}
}

func (h *Hat) buttonPins() [3]int {
	return [3]int{
		h.settings.GetInt("pin_button_a"),
		h.settings.GetInt("pin_button_b"),
		h.settings.GetInt("pin_button_c"),
	}
}

func (h *Hat) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
		h.rt.logger.Printf("dropping %T, consumer is behind", ev)
	}
}

func (h *Hat) runWatchButtons() {
	defer h.wg.Done()
	logger := &ThreadLogger{name: "Buttons"}
	defer logger.Println("exiting runWatchButtons")
	defer h.parts.btns.close()

	interval := h.settings.GetDuration("buttonPollTime")
	// lines idle high
	prev := [3]bool{true, true, true}

	for {
		select {
		case <-h.quit:
			return
		case <-h.rt.clock.After(interval):
		}

		levels, err := h.parts.btns.read()
		if err != nil {
			logger.Println(err.Error())
			return
		}
		// low means pressed; one event per tick, first match wins
		for i, level := range levels {
			if !level && prev[i] {
				logger.Printf("button %v pressed", ButtonSource(i))
				h.emit(ButtonEvent{Source: ButtonSource(i)})
				break
			}
		}
		prev = levels
	}
}

func (h *Hat) runSensorPoll(name string, interval time.Duration, read func() (float64, error), wrap func(float64) Event) {
	defer h.wg.Done()
	logger := &ThreadLogger{name: name}
	defer logger.Printf("exiting %s poll", name)

	for {
		select {
		case <-h.quit:
			return
		case <-h.rt.clock.After(interval):
		}

		val, err := read()
		if err != nil {
			// unavailable sensors read as zero, never as a fault
			logger.Println(err.Error())
			val = 0
		}
		h.emit(wrap(val))
	}
}

func (h *Hat) currentSensor() *bmp280.BMP280 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sensor
}

func (h *Hat) readTemperature() (float64, error) {
	sensor := h.currentSensor()
	if sensor == nil {
		return 0, errors.New("hat: sensor not available")
	}
	return sensor.Temperature()
}

func (h *Hat) readPressure() (float64, error) {
	sensor := h.currentSensor()
	if sensor == nil {
		return 0, errors.New("hat: sensor not available")
	}
	return sensor.Pressure()
}

// Temperature reads the sensor now, in °C; 0 when it is unavailable
func (h *Hat) Temperature() float64 {
	val, err := h.readTemperature()
	if err != nil {
		h.rt.logger.Println(err.Error())
		return 0
	}
	return val
}

// Pressure reads the sensor now, in hPa; 0 when it is unavailable
func (h *Hat) Pressure() float64 {
	val, err := h.readPressure()
	if err != nil {
		h.rt.logger.Println(err.Error())
		return 0
	}
	return val
}

// Show puts up to 4 characters on the segment display, right aligned
func (h *Hat) Show(msg string) error {
	return h.showText(msg, true)
}

// ShowLeft is Show with left alignment
func (h *Hat) ShowLeft(msg string) error {
	return h.showText(msg, false)
}

func (h *Hat) showText(msg string, rightAligned bool) error {
	h.mu.Lock()
	disp, state, closed := h.display, h.displayState, h.closed
	h.mu.Unlock()
	if closed || state != stateReady {
		return errors.New("hat: display not available")
	}
	if rightAligned {
		return disp.Show(msg)
	}
	return disp.ShowLeft(msg)
}

// PerformAction runs one of the named actions. Before the hat is
// ready the action is retried once after a cooldown, then dropped.
func (h *Hat) PerformAction(action Action) {
	h.perform(action, false)
}

func (h *Hat) perform(action Action, deferred bool) {
	h.mu.Lock()
	ready := h.state == stateReady
	closed := h.closed
	h.mu.Unlock()

	// a disposed hat holds no handles worth dispatching into; this
	// also swallows any deferred retry that fires after Close
	if closed {
		h.rt.logger.Printf("hat is closed, dropping action %v", action)
		return
	}

	if !ready {
		if deferred {
			h.rt.logger.Printf("still not ready, dropping action %v", action)
			return
		}
		h.rt.logger.Printf("not ready for action %v, retrying once", action)
		go func() {
			h.rt.clock.Sleep(h.settings.GetDuration("actionRetryTime"))
			h.perform(action, true)
		}()
		return
	}

	pins := h.ledPins()
	switch action {
	case ActionRedOn:
		h.parts.leds.on(pins[0])
	case ActionRedOff:
		h.parts.leds.off(pins[0])
	case ActionGreenOn:
		h.parts.leds.on(pins[1])
	case ActionGreenOff:
		h.parts.leds.off(pins[1])
	case ActionBlueOn:
		h.parts.leds.on(pins[2])
	case ActionBlueOff:
		h.parts.leds.off(pins[2])
	case ActionStripOn:
		h.strip.TurnOn()
	case ActionStripOff:
		h.strip.TurnOff()
	case ActionBuzz:
		h.buzzOnce()
	case ActionRainbow:
		h.strip.Rainbow()
	case ActionDemo:
		for _, pin := range pins {
			h.parts.leds.on(pin)
		}
		h.strip.Rainbow()
		if err := h.Show(h.settings.GetString("demoText")); err != nil {
			h.rt.logger.Println(err.Error())
		}
	default:
		h.rt.logger.Printf("unhandled action %d", int(action))
	}
}

// buzz now, stop on a one-shot timer; the caller is never blocked
func (h *Hat) buzzOnce() {
	h.parts.buzz.on()
	go func() {
		h.rt.clock.Sleep(h.settings.GetDuration("buzzTime"))
		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()
		if !closed {
			h.parts.buzz.off()
		}
	}()
}

// Close stops every poller before any handle is released; an in-
// flight tick must never see a freed line
func (h *Hat) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	close(h.quit)
	h.wg.Wait()

	if h.strip != nil {
		h.strip.Close()
	}
	if h.display != nil {
		h.display.Close()
	}
	if h.sensor != nil {
		h.sensor.Close()
	}

	h.parts.buzz.close()
	h.parts.leds.close()
	if !h.settings.GetBool("pins_simulated") {
		rpio.Close()
	}
	close(h.events)
}
