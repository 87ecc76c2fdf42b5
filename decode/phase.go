package decode

// Phase describes which way the receiver's sampling is skewed relative to the
// transmitted pulse edges.
type Phase int

const (
	InPhase Phase = 0
	// Pulses leak into the following sample.
	OutOfPhaseRight Phase = 1
	// Pulses leak into the preceding sample.
	OutOfPhaseLeft Phase = -1
)

// detectOutOfPhase compares samples adjacent to the preamble pulses of the
// message starting at j against a third of their neighbours. j must be
// greater than zero, the last rule looks one sample behind the preamble.
func detectOutOfPhase(mag []uint16, j int) Phase {
	switch {
	case mag[j+3] > mag[j+2]/3:
		return OutOfPhaseRight
	case mag[j+10] > mag[j+9]/3:
		return OutOfPhaseRight
	case mag[j+6] > mag[j+7]/3:
		return OutOfPhaseLeft
	case mag[j-1] > mag[j+1]/3:
		return OutOfPhaseLeft
	}
	return InPhase
}

// applyPhaseCorrection walks the bit pairs following the preamble. When a pair
// decides a one, the leading sample of the next pair is boosted by 5/4,
// otherwise it is attenuated by 4/5. Only samples in [j+18, j+240) change.
func applyPhaseCorrection(mag []uint16, j int) {
	m := mag[j:]
	for k := PreambleSamples; k < PreambleSamples+(LongMsgBits-1)*SamplesPerBit; k += SamplesPerBit {
		if m[k] > m[k+1] {
			m[k+2] = uint16(uint32(m[k+2]) * 5 / 4)
		} else {
			m[k+2] = uint16(uint32(m[k+2]) * 4 / 5)
		}
	}
}

// A window is a snapshot of the message samples following a preamble.
// Correction mutates magnitudes in place, restore puts them back.
type window struct {
	mag []uint16
	aux []uint16
}

// snapshot copies the samples of the message starting at j into w.aux and
// returns w for a deferred restore.
func (w *window) snapshot(mag []uint16, j int) *window {
	w.mag = mag[j+PreambleSamples : j+PreambleSamples+LongMsgSamples]
	copy(w.aux, w.mag)
	return w
}

func (w *window) restore() {
	copy(w.mag, w.aux)
	w.mag = nil
}
