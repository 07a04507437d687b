package pf

import "math"

// maxReal is the overflow ceiling for accumulated Boltzmann sums. Crossing
// one tenth of it triggers a warning, reaching it aborts the pass.
const maxReal = math.MaxFloat64

// minNormal is the smallest positive normal float64. An ensemble total at or
// below it means the chosen scale reference was too aggressive.
const minNormal = 2.2250738585072014e-308

// scaling holds the per-length rescaling factors of one fold. Every matrix
// entry for an interval of length d carries an implicit factor scale[d], so
// the stored values stay within float64 range for arbitrary sequence
// lengths. expMLbase[d] additionally carries the multiloop-base factor to
// the d-th power, the combination every unpaired multiloop stretch needs.
type scaling struct {
	pfScale   float64
	scale     []float64
	expMLbase []float64
}

func newScaling(n int, pfScale, expMLbase float64) *scaling {
	if pfScale <= 0 {
		pfScale = 1.0
	}
	s := &scaling{
		pfScale:   pfScale,
		scale:     make([]float64, n+2),
		expMLbase: make([]float64, n+2),
	}
	s.scale[0] = 1.0
	s.scale[1] = 1.0 / pfScale
	s.expMLbase[0] = 1.0
	s.expMLbase[1] = expMLbase * s.scale[1]
	for i := 2; i <= n+1; i++ {
		s.scale[i] = s.scale[i/2] * s.scale[i-i/2]
		s.expMLbase[i] = math.Pow(expMLbase, float64(i)) * s.scale[i]
	}
	return s
}

// PfScaleFromEnergy derives a scale reference from a crude free-energy
// pre-estimate (kcal/mol) of the ensemble for a sequence of length n.
// Callers that hit the overflow error retry with a more conservative
// (more negative) estimate.
func PfScaleFromEnergy(energy, kT float64, n int) float64 {
	const sfact = 1.07
	if n == 0 {
		return 1.0
	}
	return math.Exp(-(sfact * energy * 1000.0) / kT / float64(n))
}
