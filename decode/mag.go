// RTLMODES - An rtl-sdr receiver for Mode S and ADS-B transmissions on 1090MHz.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package decode

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Largest absolute deviation of an 8-bit I or Q sample.
	MaxDeviation = 128
	// Scales magnitudes so neighbouring I/Q pairs remain distinct after
	// rounding. sqrt(2)*128*360 still fits in a uint16.
	MagScale = 360

	lutStride = MaxDeviation + 1
)

var (
	ErrOddLength   = errors.New("sample buffer has odd length")
	ErrShortBuffer = errors.New("magnitude buffer too short")
)

// Encoding of 8-bit I/Q samples.
type Encoding int

const (
	// Unsigned samples are biased by 127, as produced by rtl-sdr dongles.
	Unsigned Encoding = iota
	// Signed samples are two's complement deviations.
	Signed
)

func (e Encoding) String() string {
	switch e {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// Set implements flag.Value.
func (e *Encoding) Set(value string) error {
	switch strings.ToLower(value) {
	case "unsigned", "u8", "cu8":
		*e = Unsigned
	case "signed", "s8", "cs8":
		*e = Signed
	default:
		return errors.Errorf("invalid sample encoding: %q", value)
	}
	return nil
}

// MagLUT maps absolute I and Q deviations to a scaled magnitude, indexed by
// i*129+q. Read only once built.
type MagLUT []uint16

// Pre-computes round(sqrt(i^2+q^2)*MagScale) for i, q in [0, 128].
func NewMagLUT() (lut MagLUT) {
	lut = make([]uint16, lutStride*lutStride)
	for i := 0; i < lutStride; i++ {
		for q := 0; q < lutStride; q++ {
			lut[i*lutStride+q] = uint16(math.Round(math.Sqrt(float64(i*i+q*q)) * MagScale))
		}
	}
	return
}

// Magnitude returns the table value for absolute deviations i and q.
func (lut MagLUT) Magnitude(i, q int) uint16 {
	return lut[i*lutStride+q]
}

// Calculates the magnitude of each I/Q pair in input, writing len(input)/2
// values to output.
func (lut MagLUT) Execute(input []byte, output []uint16, enc Encoding) error {
	if len(input)&1 != 0 {
		return errors.Wrapf(ErrOddLength, "%d bytes", len(input))
	}

	n := len(input) >> 1
	if len(output) < n {
		return errors.Wrapf(ErrShortBuffer, "need %d samples, have %d", n, len(output))
	}
	output = output[:n]

	switch enc {
	case Unsigned:
		for idx := range output {
			i := int(input[idx<<1]) - 127
			q := int(input[idx<<1+1]) - 127
			if i < 0 {
				i = -i
			}
			if q < 0 {
				q = -q
			}
			output[idx] = lut[i*lutStride+q]
		}
	case Signed:
		for idx := range output {
			i := int(int8(input[idx<<1]))
			q := int(int8(input[idx<<1+1]))
			if i < 0 {
				i = -i
			}
			if q < 0 {
				q = -q
			}
			output[idx] = lut[i*lutStride+q]
		}
	default:
		return errors.Errorf("unknown encoding: %s", enc)
	}

	return nil
}
