package pihat

// Action is the full set of things a caller can ask the hat to do.
// Unknown values are logged and dropped, never a panic.
type Action int

const (
	ActionRedOn Action = iota
	ActionRedOff
	ActionGreenOn
	ActionGreenOff
	ActionBlueOn
	ActionBlueOff
	ActionStripOn
	ActionStripOff
	ActionBuzz
	ActionRainbow
	ActionDemo
)

var actionNames = map[Action]string{
	ActionRedOn:    "red-on",
	ActionRedOff:   "red-off",
	ActionGreenOn:  "green-on",
	ActionGreenOff: "green-off",
	ActionBlueOn:   "blue-on",
	ActionBlueOff:  "blue-off",
	ActionStripOn:  "strip-on",
	ActionStripOff: "strip-off",
	ActionBuzz:     "buzz",
	ActionRainbow:  "rainbow",
	ActionDemo:     "demo",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ButtonSource is which of the three touch buttons fired
type ButtonSource int

const (
	ButtonA ButtonSource = iota
	ButtonB
	ButtonC
)

func (b ButtonSource) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	case ButtonC:
		return "C"
	}
	return "?"
}

// Event is what comes out of the hat's outbound channel. Exactly one
// concrete type per occurrence; consumers type-switch on it.
type Event interface {
	hatEvent()
}

type ButtonEvent struct {
	Source ButtonSource
}

type TemperatureEvent struct {
	DegreesC float64
}

type PressureEvent struct {
	HPa float64
}

func (ButtonEvent) hatEvent()      {}
func (TemperatureEvent) hatEvent() {}
func (PressureEvent) hatEvent()    {}
