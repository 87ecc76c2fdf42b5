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
	"github.com/sirupsen/logrus"

	"github.com/bemasher/rtlmodes/parse"
)

const (
	CenterFreq = 1090000000
	SampleRate = 2000000
	DataRate   = 1000000

	// Default number of I/Q samples per block.
	DefaultBlockSize = 1 << 17
)

// PacketConfig specifies packet-specific radio configuration.
type PacketConfig struct {
	CenterFreq uint32
	SampleRate int
	DataRate   int

	// I/Q samples per block, BlockSize2 is the same in bytes.
	BlockSize, BlockSize2 int

	PreambleLength, PacketLength int

	// Samples carried from the end of one block to the start of the next.
	Overlap      int
	BufferLength int

	Encoding Encoding
}

func NewPacketConfig(blockSize int) (cfg PacketConfig) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	cfg.CenterFreq = CenterFreq
	cfg.SampleRate = SampleRate
	cfg.DataRate = DataRate

	cfg.BlockSize = blockSize
	cfg.BlockSize2 = blockSize << 1

	cfg.PreambleLength = PreambleSamples
	cfg.PacketLength = LongMsgSamples

	cfg.Overlap = FullSamples
	cfg.BufferLength = cfg.BlockSize + cfg.Overlap

	return
}

func (d Decoder) Log() {
	logrus.WithFields(logrus.Fields{
		"CenterFreq":     d.Cfg.CenterFreq,
		"SampleRate":     d.Cfg.SampleRate,
		"DataRate":       d.Cfg.DataRate,
		"BlockSize":      d.Cfg.BlockSize,
		"PreambleLength": d.Cfg.PreambleLength,
		"PacketLength":   d.Cfg.PacketLength,
		"Overlap":        d.Cfg.Overlap,
		"Encoding":       d.Cfg.Encoding,
		"Aggressive":     d.det.Aggressive,
		"CheckCRC":       d.det.CheckCRC,
		"CRCOnly":        d.det.CRCOnly,
	}).Info("decoder")
}

// Decoder owns the magnitude buffer and composes the magnitude computer with
// the message detector.
type Decoder struct {
	Cfg PacketConfig

	lut MagLUT
	det *Detector

	// Magnitudes of the previous block's tail followed by the current block.
	Signal []uint16

	// Valid samples in Signal after the last call to Decode.
	sigLen int
	// Absolute sample index of Signal[0].
	base int64
	// Next offset to examine, relative to Signal[0].
	next int
}

// Create a new decoder with the given packet configuration.
func NewDecoder(cfg PacketConfig, parser parse.Parser, opts Options) (d Decoder) {
	d.Cfg = cfg
	d.lut = NewMagLUT()
	d.det = NewDetector(parser, opts)

	d.Signal = make([]uint16, d.Cfg.BufferLength)

	// The first block is preceded by an overlap of silence.
	d.sigLen = d.Cfg.Overlap
	d.base = -int64(d.Cfg.Overlap)

	return
}

func (d Decoder) Stats() Stats {
	return d.det.Stats()
}

// Demodulate computes magnitudes of the whole of input and scans them for
// messages. Indices passed to fn are relative to the start of input.
func (d *Decoder) Demodulate(input []byte, fn Handler) error {
	n := len(input) >> 1
	if cap(d.Signal) < n {
		d.Signal = make([]uint16, n)
	}
	mag := d.Signal[:n]

	if err := d.lut.Execute(input, mag, d.Cfg.Encoding); err != nil {
		return err
	}

	d.det.Detect(mag, fn)

	// The buffer no longer holds a stream tail.
	d.Reset()

	return nil
}

// Decode accepts a sample block of the stream and scans it for messages,
// including those straddling the previous block. Indices passed to fn are
// absolute sample indices since the start of the stream.
func (d *Decoder) Decode(block []byte, fn func(idx int64, msg parse.Message)) error {
	if len(block)&1 != 0 {
		return ErrOddLength
	}

	n := len(block) >> 1
	overlap := d.Cfg.Overlap

	if cap(d.Signal) < overlap+n {
		signal := make([]uint16, overlap+n)
		copy(signal, d.Signal[:d.sigLen])
		d.Signal = signal
	}
	d.Signal = d.Signal[:cap(d.Signal)]

	// Shift the tail of the previous block to the front.
	shift := d.sigLen - overlap
	copy(d.Signal, d.Signal[shift:d.sigLen])
	d.base += int64(shift)
	d.next -= shift
	if d.next < 0 {
		d.next = 0
	}

	if err := d.lut.Execute(block, d.Signal[overlap:overlap+n], d.Cfg.Encoding); err != nil {
		return err
	}
	d.sigLen = overlap + n

	base := d.base
	d.next = d.det.scan(d.Signal[:d.sigLen], d.next, func(idx int, msg parse.Message) {
		fn(base+int64(idx), msg)
	})

	return nil
}

// Reset discards the stream tail carried between calls to Decode.
func (d *Decoder) Reset() {
	overlap := d.Cfg.Overlap
	if cap(d.Signal) < overlap {
		d.Signal = make([]uint16, overlap)
	}
	d.Signal = d.Signal[:cap(d.Signal)]

	for idx := range d.Signal[:overlap] {
		d.Signal[idx] = 0
	}

	d.sigLen = overlap
	d.base = -int64(overlap)
	d.next = 0
}
