package pihat

import (
	"math"
	"testing"
	"time"

	"gotest.tools/assert"
)

func TestBringUp(t *testing.T) {
	h, _, tp := startedHat(t)
	defer h.Close()

	assert.Assert(t, h.Ready())
	assert.Equal(t, h.sensorState, stateReady)
	assert.Equal(t, h.displayState, stateReady)

	// display got its oscillator/display/brightness sequence
	assert.Assert(t, len(tp.displaySim.Audit) >= 3)
	// the strip was blanked on the way up
	assert.Assert(t, len(tp.stripPins.Bits) > 0)
	// indicator LEDs driven low
	for _, pin := range h.ledPins() {
		assert.Equal(t, tp.leds.get(pin), false)
	}
}

func TestSensorSoftFail(t *testing.T) {
	h, _, tp := testHat()
	// break the sensor probe; the rest of the hat must still come up
	tp.sensorSim.Preload(0xD0, 0x00)

	h.Start()
	waitReady(t, h)
	defer h.Close()

	assert.Equal(t, h.sensorState, stateFailed)
	assert.Equal(t, h.displayState, stateReady)
	assert.Equal(t, h.Temperature(), 0.0)
	assert.Equal(t, h.Pressure(), 0.0)
}

func TestButtonPressEvent(t *testing.T) {
	h, clock, tp := startedHat(t)
	defer h.Close()

	// all three pollers are parked on the clock
	clock.BlockUntil(3)
	tp.btns.press(ButtonB)
	clock.Advance(h.settings.GetDuration("buttonPollTime"))

	ev := readEvent(t, h)
	btn, ok := ev.(ButtonEvent)
	assert.Assert(t, ok, "expected a button event, got %#v", ev)
	assert.Equal(t, btn.Source, ButtonB)

	// held down is not a second press
	clock.BlockUntil(3)
	clock.Advance(h.settings.GetDuration("buttonPollTime"))
	noEvent(t, h)

	// release and press again fires again
	tp.btns.release(ButtonB)
	clock.BlockUntil(3)
	clock.Advance(h.settings.GetDuration("buttonPollTime"))
	noEvent(t, h)

	tp.btns.press(ButtonB)
	clock.BlockUntil(3)
	clock.Advance(h.settings.GetDuration("buttonPollTime"))
	ev = readEvent(t, h)
	assert.Equal(t, ev.(ButtonEvent).Source, ButtonB)
}

func TestButtonFirstMatchWins(t *testing.T) {
	h, clock, tp := startedHat(t)
	defer h.Close()

	clock.BlockUntil(3)
	tp.btns.press(ButtonC)
	tp.btns.press(ButtonA)
	clock.Advance(h.settings.GetDuration("buttonPollTime"))

	// no multi-touch: one event, poll order decides
	ev := readEvent(t, h)
	assert.Equal(t, ev.(ButtonEvent).Source, ButtonA)
	noEvent(t, h)
}

func TestSensorPollEvents(t *testing.T) {
	h, clock, _ := startedHat(t)
	defer h.Close()

	clock.BlockUntil(3)
	clock.Advance(h.settings.GetDuration("temperaturePollTime"))

	ev := readEvent(t, h)
	temp, ok := ev.(TemperatureEvent)
	assert.Assert(t, ok, "expected a temperature event, got %#v", ev)
	assert.Assert(t, math.Abs(temp.DegreesC-25.08) < 0.01,
		"temperature %v", temp.DegreesC)

	// two more seconds lands on the pressure cadence
	clock.BlockUntil(3)
	clock.Advance(2 * time.Second)

	for {
		ev = readEvent(t, h)
		if press, ok := ev.(PressureEvent); ok {
			assert.Assert(t, math.Abs(press.HPa-1006.53) < 0.01,
				"pressure %v", press.HPa)
			return
		}
	}
}

func TestActionLeds(t *testing.T) {
	h, _, tp := startedHat(t)
	defer h.Close()

	red := h.settings.GetInt("pin_red_led")
	h.PerformAction(ActionRedOn)
	assert.Equal(t, tp.leds.get(red), true)
	h.PerformAction(ActionRedOff)
	assert.Equal(t, tp.leds.get(red), false)

	green := h.settings.GetInt("pin_green_led")
	h.PerformAction(ActionGreenOn)
	assert.Equal(t, tp.leds.get(green), true)
}

func TestActionStrip(t *testing.T) {
	h, _, tp := startedHat(t)
	defer h.Close()

	tp.stripPins.Reset()
	h.PerformAction(ActionStripOn)
	// write-through: the frame went out immediately, all white
	payload := tp.stripPins.Bytes(36, 4)
	assert.DeepEqual(t, payload, []byte{0xFF, 255, 255, 255})

	tp.stripPins.Reset()
	h.PerformAction(ActionRainbow)
	payload = tp.stripPins.Bytes(36, 4)
	// first strip LED goes red under the rainbow
	assert.DeepEqual(t, payload[1:4], []byte{0, 0, 255})
}

func TestActionBuzz(t *testing.T) {
	h, clock, tp := startedHat(t)
	defer h.Close()

	h.PerformAction(ActionBuzz)
	assert.Assert(t, tp.buzz.buzzing())

	// pollers plus the one-shot off timer
	clock.BlockUntil(4)
	clock.Advance(h.settings.GetDuration("buzzTime"))
	eventually(t, "buzzer off", func() bool { return !tp.buzz.buzzing() })
}

func TestActionDemo(t *testing.T) {
	h, _, tp := startedHat(t)
	defer h.Close()

	h.PerformAction(ActionDemo)
	for _, pin := range h.ledPins() {
		assert.Equal(t, tp.leds.get(pin), true)
	}
	// demo text landed on the display as a full frame write
	last := tp.displaySim.Audit[len(tp.displaySim.Audit)-1]
	assert.Equal(t, len(last), 9)
	assert.Equal(t, last[0], byte(0))
}

func TestUnknownActionLogsOnly(t *testing.T) {
	h, _, _ := startedHat(t)
	defer h.Close()
	h.PerformAction(Action(99))
}

func TestActionBeforeReadyRetriesOnce(t *testing.T) {
	h, clock, tp := testHat()
	red := defaultSettings().GetInt("pin_red_led")

	// not started yet: the action parks one retry on the clock
	h.PerformAction(ActionRedOn)
	clock.BlockUntil(1)

	h.Start()
	waitReady(t, h)

	clock.BlockUntil(4)
	clock.Advance(h.settings.GetDuration("actionRetryTime"))
	eventually(t, "deferred action applied", func() bool {
		return tp.leds.get(red)
	})
	h.Close()
}

func TestActionRetryDropsWhenStillNotReady(t *testing.T) {
	h, clock, tp := testHat()
	red := defaultSettings().GetInt("pin_red_led")

	h.PerformAction(ActionRedOn)
	clock.BlockUntil(1)
	// never start the hat; the single retry fires and gives up
	clock.Advance(10 * h.settings.GetDuration("actionRetryTime"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, tp.leds.get(red), false)
	assert.Equal(t, len(tp.leds.audit), 0)
	h.Close()
}

func TestShowBeforeReady(t *testing.T) {
	h, _, _ := testHat()
	err := h.Show("HI")
	assert.ErrorContains(t, err, "display not available")
	h.Close()
}

func TestReadsDuringBringUp(t *testing.T) {
	h, _, _ := testHat()

	// hammer the public surface while initialize publishes the device
	// handles; the race detector keeps this honest
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
			}
			h.Temperature()
			h.Pressure()
			h.Show("HI")
			h.Ready()
		}
	}()

	h.Start()
	waitReady(t, h)
	close(done)
	<-stopped
	h.Close()
}

func TestActionAfterCloseDropped(t *testing.T) {
	h, _, tp := startedHat(t)
	h.Close()

	// dispatching into released handles would panic the sim bus
	h.PerformAction(ActionRedOn)
	h.PerformAction(ActionStripOn)
	err := h.Show("HI")
	assert.ErrorContains(t, err, "display not available")
	assert.Equal(t, tp.leds.get(h.settings.GetInt("pin_red_led")), false)
}

func TestActionRetrySkipsClosedHat(t *testing.T) {
	h, clock, tp := testHat()

	// park a retry, dispose the hat, then let the retry fire
	h.PerformAction(ActionRedOn)
	clock.BlockUntil(1)
	h.Close()
	clock.Advance(h.settings.GetDuration("actionRetryTime"))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, len(tp.leds.audit), 0)
}

func TestCloseStopsPollersFirst(t *testing.T) {
	h, _, tp := startedHat(t)

	// SimBus and simButtons panic on use-after-close; a Close that
	// released handles before stopping the pollers would blow up here
	h.Close()

	// second close is a no-op
	h.Close()

	// event channel is closed out
	_, ok := <-h.Events()
	assert.Equal(t, ok, false)

	// display was blanked and switched off on the way down
	n := len(tp.displaySim.Audit)
	assert.Assert(t, n >= 2)
	assert.DeepEqual(t, tp.displaySim.Audit[n-1], []byte{0x80})
}

func TestCloseWithoutStart(t *testing.T) {
	h, _, _ := testHat()
	h.Close()
}
