// Package gen synthesizes Mode S transmissions for testing.
package gen

import (
	"crypto/rand"
	"fmt"
	"math"
	mrand "math/rand"

	"github.com/bemasher/rtlmodes/crc"
)

// Preamble chips at 2 MHz: pulses at 0, 1, 3.5 and 4.5 microseconds.
const Preamble = "1010000101000000"

// NewRandDF17 returns a random extended squitter with valid parity.
func NewRandDF17() (pkt []byte, err error) {
	modes := crc.NewCRC("ModeS", 0, crc.ModeSPoly)

	pkt = make([]byte, 14)
	_, err = rand.Read(pkt)
	if err != nil {
		return nil, err
	}

	// DF17, capability 5.
	pkt[0] = 0x8D

	checksum := modes.Checksum(pkt[:11])
	pkt[11] = uint8(checksum >> 16)
	pkt[12] = uint8(checksum >> 8)
	pkt[13] = uint8(checksum)

	return
}

// ManchesterLUT maps a nibble to its pulse position encoding, a one is sent
// as a pulse in the first half of the bit period, a zero in the second.
type ManchesterLUT [16]byte

func NewManchesterLUT() ManchesterLUT {
	return ManchesterLUT{
		85, 86, 89, 90, 101, 102, 105, 106, 149, 150, 153, 154, 165, 166, 169, 170,
	}
}

func (lut ManchesterLUT) Encode(data []byte) (manchester []byte) {
	manchester = make([]byte, len(data)<<1)

	for idx := range data {
		manchester[idx<<1] = lut[data[idx]>>4]
		manchester[idx<<1+1] = lut[data[idx]&0x0F]
	}

	return
}

func UnpackBits(data []byte) []byte {
	bits := make([]byte, len(data)<<3)

	for idx, b := range data {
		offset := idx << 3
		for bit := 7; bit >= 0; bit-- {
			bits[offset+(7-bit)] = (b >> uint8(bit)) & 0x01
		}
	}

	return bits
}

func Upsample(bits []byte, factor int) []byte {
	signal := make([]byte, len(bits)*factor)

	for idx, b := range bits {
		offset := idx * factor
		for i := 0; i < factor; i++ {
			signal[offset+i] = b
		}
	}

	return signal
}

// Frame returns the chips of the preamble followed by msg, one chip per
// sample at 2 MHz.
func Frame(msg []byte) []byte {
	chips := make([]byte, len(Preamble), len(Preamble)+len(msg)<<4)
	for idx := range Preamble {
		if Preamble[idx] == '1' {
			chips[idx] = 1
		}
	}

	lut := NewManchesterLUT()
	return append(chips, UnpackBits(lut.Encode(msg))...)
}

// Magnitude renders chips as magnitudes, high for pulses and zero otherwise.
func Magnitude(chips []byte, high uint16) []uint16 {
	mag := make([]uint16, len(chips))
	for idx, c := range chips {
		mag[idx] = uint16(c) * high
	}
	return mag
}

// Modulate keys a complex carrier offset freq Hz from the center frequency
// with chips. Returns interleaved I/Q in [-amp, amp].
func Modulate(chips []byte, amp, freq, samplerate float64) []float64 {
	signal := CmplxOscillatorF64(len(chips), freq, samplerate)
	for idx := range signal {
		signal[idx] *= float64(chips[idx>>1]) * amp
	}
	return signal
}

// AddNoise adds uniform noise in [-amp, amp) to signal.
func AddNoise(signal []float64, amp float64, rng *mrand.Rand) {
	for idx := range signal {
		signal[idx] += (rng.Float64() - 0.5) * 2.0 * amp
	}
}

func CmplxOscillatorF64(samples int, freq float64, samplerate float64) []float64 {
	signal := make([]float64, samples<<1)

	for idx := 0; idx < len(signal); idx += 2 {
		signal[idx], signal[idx+1] = math.Sincos(2 * math.Pi * float64(idx>>1) * freq / samplerate)
	}

	return signal
}

// F64toU8 quantizes samples in [-1, 1] to unsigned bytes biased by 127.
func F64toU8(f64 []float64, u8 []byte) {
	if len(f64) != len(u8) {
		panic(fmt.Errorf("arrays must have same dimensions: %d != %d", len(f64), len(u8)))
	}

	for idx, val := range f64 {
		u8[idx] = uint8(127 + int(math.Round(clamp(val)*127)))
	}
}

// F64toS8 quantizes samples in [-1, 1] to signed bytes.
func F64toS8(f64 []float64, s8 []byte) {
	if len(f64) != len(s8) {
		panic(fmt.Errorf("arrays must have same dimensions: %d != %d", len(f64), len(s8)))
	}

	for idx, val := range f64 {
		s8[idx] = byte(int8(math.Round(clamp(val) * 127)))
	}
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
