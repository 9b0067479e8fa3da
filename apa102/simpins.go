package apa102

// SimPins records what the strip itself would see: one sampled data
// bit per clock rising edge. Tests decode the bit stream back into
// lock run + payload bytes + unlock run.
type SimPins struct {
	data     bool
	released bool

	Bits []byte // 0 or 1 per rising clock edge
}

func NewSimPins() *SimPins {
	return &SimPins{}
}

func (sp *SimPins) Data(on bool) {
	if sp.released {
		panic("apa102: pin use after Release")
	}
	sp.data = on
}

func (sp *SimPins) Clock(on bool) {
	if sp.released {
		panic("apa102: pin use after Release")
	}
	if !on {
		return
	}
	if sp.data {
		sp.Bits = append(sp.Bits, 1)
	} else {
		sp.Bits = append(sp.Bits, 0)
	}
}

func (sp *SimPins) Release() {
	sp.released = true
}

func (sp *SimPins) Reset() {
	sp.Bits = nil
}

// Bytes packs a run of sampled bits MSB-first, the way the LEDs latch
// their 8-bit fields
func (sp *SimPins) Bytes(from, n int) []byte {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		var b byte
		for j := 0; j < 8; j++ {
			b = b<<1 | sp.Bits[from+i*8+j]
		}
		out = append(out, b)
	}
	return out
}
