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
	// Preamble duration in microseconds.
	PreambleUs    = 8
	LongMsgBits   = 112
	ShortMsgBits  = 56
	LongMsgBytes  = LongMsgBits / 8
	SamplesPerBit = 2

	PreambleSamples = PreambleUs * SamplesPerBit
	LongMsgSamples  = LongMsgBits * SamplesPerBit

	// Preamble and longest message in microseconds.
	FullLen = PreambleUs + LongMsgBits
	// Samples needed past a candidate offset to slice a long message.
	FullSamples = FullLen * SamplesPerBit

	// Minimum average pulse delta of a message. Anything weaker is noise.
	SignalThreshold = 10 * 255

	// Pulse deltas below this inherit the previous bit's decision.
	ambiguousDelta = 256
)

// A Handler receives each accepted message along with the sample index of
// its preamble within the scanned buffer.
type Handler func(idx int, msg parse.Message)

// Options controlling acceptance of demodulated messages.
type Options struct {
	// Accept messages with up to two erased bits in the first 56 bits.
	Aggressive bool
	// Only deliver messages with valid parity.
	CheckCRC bool
	// Ask the parser to stop after validating parity.
	CRCOnly bool
}

func DefaultOptions() Options {
	return Options{Aggressive: true, CheckCRC: true}
}

// Stats counts detector outcomes since creation.
type Stats struct {
	Preambles      uint64
	Demodulated    uint64
	GoodCRC        uint64
	BadCRC         uint64
	Fixed          uint64
	SingleBitFix   uint64
	TwoBitFix      uint64
	OutOfPhase     uint64
	PhaseCorrected uint64
	Noise          uint64
	ParseErrors    uint64
	Delivered      uint64
}

// Sub returns the counts accumulated since prev.
func (s Stats) Sub(prev Stats) Stats {
	return Stats{
		Preambles:      s.Preambles - prev.Preambles,
		Demodulated:    s.Demodulated - prev.Demodulated,
		GoodCRC:        s.GoodCRC - prev.GoodCRC,
		BadCRC:         s.BadCRC - prev.BadCRC,
		Fixed:          s.Fixed - prev.Fixed,
		SingleBitFix:   s.SingleBitFix - prev.SingleBitFix,
		TwoBitFix:      s.TwoBitFix - prev.TwoBitFix,
		OutOfPhase:     s.OutOfPhase - prev.OutOfPhase,
		PhaseCorrected: s.PhaseCorrected - prev.PhaseCorrected,
		Noise:          s.Noise - prev.Noise,
		ParseErrors:    s.ParseErrors - prev.ParseErrors,
		Delivered:      s.Delivered - prev.Delivered,
	}
}

func (s Stats) Log() {
	logrus.WithFields(logrus.Fields{
		"preambles":      s.Preambles,
		"demodulated":    s.Demodulated,
		"goodCRC":        s.GoodCRC,
		"badCRC":         s.BadCRC,
		"fixed":          s.Fixed,
		"singleBitFix":   s.SingleBitFix,
		"twoBitFix":      s.TwoBitFix,
		"outOfPhase":     s.OutOfPhase,
		"phaseCorrected": s.PhaseCorrected,
		"noise":          s.Noise,
		"parseErrors":    s.ParseErrors,
		"delivered":      s.Delivered,
	}).Info("stats")
}

// A Detector finds Mode S messages in magnitude buffers. Scratch buffers are
// owned by the detector, so a Detector must not be used concurrently.
type Detector struct {
	Options

	parser parse.Parser

	bits [LongMsgBits]Bit
	msg  [LongMsgBytes]byte
	win  window

	stats Stats
}

func NewDetector(parser parse.Parser, opts Options) *Detector {
	d := &Detector{
		Options: opts,
		parser:  parser,
	}
	d.win.aux = make([]uint16, LongMsgSamples)
	return d
}

func (d *Detector) Stats() Stats {
	return d.stats
}

// Detect scans mag for messages, calling fn for each accepted message in
// order of increasing offset. Magnitudes are corrected in place while
// retrying an offset and restored before moving on.
func (d *Detector) Detect(mag []uint16, fn Handler) {
	d.scan(mag, 0, fn)
}

// scan examines offsets from start and returns the next offset it would have
// examined, which may be past the end of mag after a long message.
func (d *Detector) scan(mag []uint16, start int, fn Handler) int {
	var useCorrection bool

	j := start
	for ; j < len(mag)-FullSamples; j++ {
		if !useCorrection && !preamble(mag, j) {
			continue
		}

		if !useCorrection {
			d.stats.Preambles++
		}

		errs := d.slice(mag, j, useCorrection)
		Pack(d.bits[:], d.msg[:])

		msgBits := d.parser.MessageBits(d.msg[0] >> 3)
		if msgBits <= 0 || msgBits > LongMsgBits || !d.strong(mag, j, msgBits>>3) {
			d.stats.Noise++
			useCorrection = false
			continue
		}

		var good, delivered bool
		if errs == 0 || (d.Aggressive && errs < 3) {
			good, delivered = d.accept(j, msgBits, useCorrection, fn)
		}

		if good {
			j += (PreambleUs + msgBits) * SamplesPerBit
		}

		if !good && !delivered && !useCorrection {
			// Retry this offset once with phase correction.
			j--
			useCorrection = true
		} else {
			useCorrection = false
		}
	}

	return j
}

// preamble reports whether the samples at j look like a Mode S preamble
// standing above the noise floor.
func preamble(m []uint16, j int) bool {
	if !(m[j] > m[j+1] &&
		m[j+1] < m[j+2] &&
		m[j+2] > m[j+3] &&
		m[j+3] < m[j] &&
		m[j+4] < m[j] &&
		m[j+5] < m[j] &&
		m[j+6] < m[j] &&
		m[j+7] > m[j+8] &&
		m[j+8] < m[j+9] &&
		m[j+9] > m[j+6]) {
		return false
	}

	// Divided by 6 rather than 4 to tolerate phase skew.
	high := (int(m[j]) + int(m[j+2]) + int(m[j+7]) + int(m[j+9])) / 6

	if int(m[j+4]) >= high || int(m[j+5]) >= high {
		return false
	}

	for _, v := range m[j+11 : j+15] {
		if int(v) >= high {
			return false
		}
	}

	return true
}

// slice decides every bit of a long message following the preamble at j and
// returns the number of erasures in the first 56 bits. When correct is set
// the magnitudes are phase corrected for the duration of the call.
func (d *Detector) slice(mag []uint16, j int, correct bool) (errs int) {
	if correct {
		defer d.win.snapshot(mag, j).restore()

		if j > 0 {
			if detectOutOfPhase(mag, j) != InPhase {
				d.stats.OutOfPhase++
			}
			applyPhaseCorrection(mag, j)
		}
	}

	m := mag[j+PreambleSamples : j+PreambleSamples+LongMsgSamples]
	for i := range d.bits {
		low, high := int(m[i<<1]), int(m[i<<1+1])
		delta := low - high
		if delta < 0 {
			delta = -delta
		}

		switch {
		case i > 0 && delta < ambiguousDelta:
			d.bits[i] = d.bits[i-1]
		case low == high:
			d.bits[i] = Erased
			if i < ShortMsgBits {
				errs++
			}
		case low > high:
			d.bits[i] = One
		default:
			d.bits[i] = Zero
		}
	}

	return
}

// strong reports whether the average pulse delta over msgBytes bytes of the
// message at j clears SignalThreshold.
func (d *Detector) strong(mag []uint16, j, msgBytes int) bool {
	if msgBytes == 0 {
		return false
	}

	m := mag[j+PreambleSamples:]

	delta := 0
	for i := 0; i < msgBytes*8*SamplesPerBit; i += SamplesPerBit {
		v := int(m[i]) - int(m[i+1])
		if v < 0 {
			v = -v
		}
		delta += v
	}
	delta /= msgBytes * 4

	return delta >= SignalThreshold
}

// accept hands the packed message to the parser and delivers it to fn if it
// passes the parity check or checking is disabled.
func (d *Detector) accept(j, msgBits int, corrected bool, fn Handler) (good, delivered bool) {
	d.stats.Demodulated++

	msg, err := d.parser.Parse(d.msg[:], msgBits, d.CRCOnly)
	if err != nil {
		d.stats.ParseErrors++
		logrus.WithField("offset", j).WithError(err).Debug("parse failed")
		return false, false
	}

	good = msg.CRCOk()
	if good {
		d.stats.GoodCRC++

		if f, ok := msg.(parse.Fixer); ok {
			switch f.FixedBits() {
			case 0:
			case 1:
				d.stats.Fixed++
				d.stats.SingleBitFix++
			default:
				d.stats.Fixed++
				d.stats.TwoBitFix++
			}
		}

		if corrected {
			d.stats.PhaseCorrected++
			msg.SetPhaseCorrected(true)
		}
	} else {
		d.stats.BadCRC++
	}

	if good || !d.CheckCRC {
		d.stats.Delivered++
		fn(j, msg)
		delivered = true
	}

	return
}
