package pihat

import (
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"pihat/alphanum_backpack"
	"pihat/apa102"
	"pihat/bmp280"
	"pihat/i2c"
)

func logCaller(pc uintptr, file string, line int, ok bool) {
	if !ok {
		file = "?"
		line = 0
	}

	fn := runtime.FuncForPC(pc)
	var fnName string
	if fn == nil {
		fnName = "?()"
	} else {
		dotName := filepath.Ext(fn.Name())
		fnName = strings.TrimLeft(dotName, ".") + "()"
	}

	log.Printf("Starting %s (%s:%d)", fnName, filepath.Base(file), line)
}

// testParts keeps handles on all the sim backends so tests can poke
// and inspect them
type testParts struct {
	leds       *logLed
	btns       *simButtons
	buzz       *logBuzzer
	stripPins  *apa102.SimPins
	sensorSim  *i2c.SimBus
	displaySim *i2c.SimBus
}

func testHat() (*Hat, clockwork.FakeClock, *testParts) {
	// log the start of the test
	logCaller(runtime.Caller(1))

	s := defaultSettings()
	// the backends are injected below; keep the teardown paths on the
	// simulated side whatever machine the tests run on
	s.settings["pins_simulated"] = true
	s.settings["i2c_simulated"] = true
	clock := clockwork.NewFakeClock()
	rt := runtimeConfig{clock: clock, logger: &ThreadLogger{name: "test"}}

	tp := &testParts{
		leds:       &logLed{disableLog: true},
		btns:       &simButtons{},
		buzz:       &logBuzzer{},
		stripPins:  apa102.NewSimPins(),
		sensorSim:  i2c.NewSimBus(bmp280.Address),
		displaySim: i2c.NewSimBus(alphanum_backpack.Address),
	}
	tp.sensorSim.Quiet = true
	tp.displaySim.Quiet = true
	bmp280.SimPreload(tp.sensorSim)

	parts := hatParts{
		leds: tp.leds,
		btns: tp.btns,
		buzz: tp.buzz,
		stripPins: func() (apa102.Pins, error) {
			return tp.stripPins, nil
		},
		sensorBus: func() (i2c.Bus, error) {
			return tp.sensorSim, nil
		},
		displayBus: func() (i2c.Bus, error) {
			return tp.displaySim, nil
		},
	}
	return newHat(s, rt, parts), clock, tp
}

// bring-up runs on its own goroutine and does not use the clock, so
// a short real-time spin is enough
func waitReady(t *testing.T, h *Hat) {
	t.Helper()
	for i := 0; i < 2000; i++ {
		if h.Ready() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("hat never became ready")
}

func startedHat(t *testing.T) (*Hat, clockwork.FakeClock, *testParts) {
	h, clock, tp := testHat()
	h.Start()
	waitReady(t, h)
	return h, clock, tp
}

func readEvent(t *testing.T, h *Hat) Event {
	t.Helper()
	select {
	case ev := <-h.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("nothing to read from the event channel")
	}
	return nil
}

func noEvent(t *testing.T, h *Hat) {
	t.Helper()
	// give any stray emit a moment to land
	time.Sleep(20 * time.Millisecond)
	select {
	case ev := <-h.Events():
		t.Fatalf("got an unexpected event %#v", ev)
	default:
	}
}

// spin until the condition holds; the runners do their work on their
// own goroutines after a clock advance
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	for i := 0; i < 2000; i++ {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("never happened: %s", what)
}
