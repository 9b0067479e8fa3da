package pihat

import (
	"sync"

	// keyboard for sim mode
	"github.com/nsf/termbox-go"
)

// keyboard-simulated buttons for development off the Pi: tapping
// a/b/c holds the matching line low for one poll tick
type keyButtons struct {
	mu      sync.Mutex
	pressed [3]bool
	done    bool
}

func (kb *keyButtons) setup(rt runtimeConfig, pins [3]int) error {
	if err := termbox.Init(); err != nil {
		return err
	}
	go kb.watchKeys(rt)
	return nil
}

func (kb *keyButtons) watchKeys(rt runtimeConfig) {
	for {
		ev := termbox.PollEvent()
		kb.mu.Lock()
		if kb.done {
			kb.mu.Unlock()
			return
		}
		if ev.Type == termbox.EventKey {
			switch ev.Ch {
			case 'a':
				kb.pressed[ButtonA] = true
			case 'b':
				kb.pressed[ButtonB] = true
			case 'c':
				kb.pressed[ButtonC] = true
			}
		}
		kb.mu.Unlock()
	}
}

// read reports a tapped key as one low level, then lets it float back
func (kb *keyButtons) read() ([3]bool, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	var levels [3]bool
	for i := range levels {
		levels[i] = !kb.pressed[i]
		kb.pressed[i] = false
	}
	return levels, nil
}

func (kb *keyButtons) close() {
	kb.mu.Lock()
	kb.done = true
	kb.mu.Unlock()
	termbox.Interrupt()
	termbox.Close()
}
