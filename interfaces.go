package pihat

// hardware access stays behind small interfaces so the whole hat runs
// (and tests) off-Pi with logging backends

// led drives the three fixed-color indicator lines
type led interface {
	init() error
	set(pin int, on bool)
	on(pin int)
	off(pin int)
	close()
}

// buttons reports the raw level of each button line, A then B then C.
// A logically low line means pressed (the lines idle pulled up).
type buttons interface {
	setup(rt runtimeConfig, pins [3]int) error
	read() ([3]bool, error)
	close()
}

// buzzer is the duty-cycle output for the piezo
type buzzer interface {
	open(pin int) error
	on()
	off()
	close()
}
