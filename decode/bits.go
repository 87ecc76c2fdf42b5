package decode

// A Bit is the decision made for one pulse position.
type Bit uint8

const (
	Zero Bit = iota
	One
	// Erased bits had identical samples in both halves of the bit period.
	Erased
)

func (b Bit) String() string {
	switch b {
	case Zero:
		return "0"
	case One:
		return "1"
	}
	return "X"
}

// Pack packs bits into msg, most significant bit first. Erased bits pack as
// zero, they are accounted for separately by the detector.
func Pack(bits []Bit, msg []byte) {
	for bIdx := range msg {
		var b byte
		for _, bit := range bits[bIdx<<3 : (bIdx+1)<<3] {
			b <<= 1
			if bit == One {
				b |= 1
			}
		}
		msg[bIdx] = b
	}
}
