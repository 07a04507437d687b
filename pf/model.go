package pf

import "math"

const (
	// gasConst is the gas constant in cal/(K·mol).
	gasConst = 1.98717
	// k0 converts degrees Celsius to Kelvin.
	k0 = 273.15
)

// Encoded base alphabet. 0 doubles as "unknown" and as the alignment gap.
const (
	baseN = 0
	baseA = 1
	baseC = 2
	baseG = 3
	baseU = 4
)

// Canonical pair types. 0 means the bases cannot pair; 7 is the
// "nonstandard" closing type used when constraints force a pair the model
// does not know.
const nonstandardPair = 7

// pairTable[a][b] is the pair type of the ordered pair of encoded bases.
var pairTable = [5][5]int{
	baseC: {baseG: 1},
	baseG: {baseC: 2, baseU: 3},
	baseU: {baseG: 4, baseA: 6},
	baseA: {baseU: 5},
}

// rtype maps a pair type to the type of the reversed pair.
var rtype = [8]int{0, 2, 1, 4, 3, 6, 5, 7}

func encodeBase(c byte) int {
	switch c {
	case 'A', 'a':
		return baseA
	case 'C', 'c':
		return baseC
	case 'G', 'g':
		return baseG
	case 'U', 'u', 'T', 't':
		return baseU
	}
	return baseN
}

// ExpParams collects the temperature-derived parameters of one fold.
type ExpParams struct {
	// Temperature in degrees Celsius.
	Temperature float64
	// KT is the thermal energy in cal/mol at Temperature.
	KT float64
	// PfScale is the per-base rescaling reference. 1.0 disables rescaling;
	// see PfScaleFromEnergy for deriving it from an ensemble estimate.
	PfScale float64
	// Turn is the minimum number of unpaired bases a hairpin must enclose,
	// i.e. i and j may pair only when j-i > Turn.
	Turn int
	// MaxLoop caps the combined unpaired span of an interior loop.
	MaxLoop int
}

func newExpParams(opts Opts) *ExpParams {
	return &ExpParams{
		Temperature: opts.Temperature,
		KT:          (opts.Temperature + k0) * gasConst,
		PfScale:     opts.PfScale,
		Turn:        opts.Turn,
		MaxLoop:     opts.MaxLoop,
	}
}

// EnergyModel supplies the elementary Boltzmann factors of the loop
// decomposition. Implementations must be pure: same geometry in, same
// weight out. Weights are relative to the unpaired state (1.0); rescaling
// is the engine's business, not the model's.
type EnergyModel interface {
	// PairType classifies the ordered pair of encoded bases. 0 means the
	// bases cannot pair.
	PairType(a, b int) int
	// ExpHairpin returns the factor of a hairpin of u unpaired bases closed
	// by a pair of the given type. si1 and sj1 are the encoded unpaired
	// bases adjacent to the closing pair; loopSeq is the loop subsequence
	// including the closing bases.
	ExpHairpin(u, pairType, si1, sj1 int, loopSeq string) float64
	// ExpIntLoop returns the factor of an interior loop with u1 and u2
	// unpaired bases on its two strands, closed by pairType outside and
	// pairType2 (already reversed) inside. si1/sj1 neighbor the outer pair,
	// sp1/sq1 the inner one.
	ExpIntLoop(u1, u2, pairType, pairType2, si1, sj1, sp1, sq1 int) float64
	// ExpMultiStem returns the factor of one multiloop branch. s5 and s3
	// are the encoded neighbor bases, -1 when the stem abuts a sequence
	// end.
	ExpMultiStem(pairType, s5, s3 int) float64
	// ExpExtStem returns the factor of an exterior-loop stem.
	ExpExtStem(pairType, s5, s3 int) float64
	// ExpMLclosing is the factor paid for closing a multiloop.
	ExpMLclosing() float64
	// ExpMLbase is the factor of one unpaired base inside a multiloop.
	ExpMLbase() float64
}

// basicModel is the built-in simplified nearest-neighbor model: stacking
// energies per pair-type pair, logarithmic loop-size penalties, a terminal
// AU penalty, and affine multiloop costs. It exists so the package folds
// end to end without external parameter tables; real tables plug in through
// the EnergyModel slot.
type basicModel struct {
	kT float64
}

// NewDefaultModel returns the built-in energy model at the given
// temperature (degrees Celsius).
func NewDefaultModel(temperature float64) EnergyModel {
	return &basicModel{kT: (temperature + k0) * gasConst}
}

// Free energies in kcal/mol at 37C.
var stack37 = [8][8]float64{
	1: {1: -2.4, 2: -3.3, 3: -2.1, 4: -1.4, 5: -2.1, 6: -2.1, 7: -0.5},
	2: {1: -3.3, 2: -3.4, 3: -2.5, 4: -1.5, 5: -2.2, 6: -2.4, 7: -0.5},
	3: {1: -2.1, 2: -2.5, 3: -1.3, 4: -0.5, 5: -1.4, 6: -1.3, 7: -0.5},
	4: {1: -1.4, 2: -1.5, 3: -0.5, 4: 0.3, 5: -0.6, 6: -1.0, 7: -0.5},
	5: {1: -2.1, 2: -2.2, 3: -1.4, 4: -0.6, 5: -1.1, 6: -0.9, 7: -0.5},
	6: {1: -2.1, 2: -2.4, 3: -1.3, 4: -1.0, 5: -0.9, 6: -1.3, 7: -0.5},
	7: {1: -0.5, 2: -0.5, 3: -0.5, 4: -0.5, 5: -0.5, 6: -0.5, 7: -0.5},
}

const (
	hairpinBase37 = 5.4  // hairpin of minimal size
	bulgeBase37   = 3.8  // bulge of size 1
	intLoopBase37 = 4.0  // interior loop of size 2
	lxc37         = 1.08 // logarithmic loop-size extrapolation
	terminalAU37  = 0.5
	mlClosing37   = 3.4
	mlIntern37    = 0.4
	mlBase37      = 0.0
	ninioSlope    = 0.5
	ninioMax      = 3.0
)

func (m *basicModel) expNeg(e float64) float64 {
	return math.Exp(-e * 1000.0 / m.kT)
}

func (m *basicModel) PairType(a, b int) int {
	if a < 0 || b < 0 || a > 4 || b > 4 {
		return 0
	}
	return pairTable[a][b]
}

func (m *basicModel) ExpHairpin(u, pairType, si1, sj1 int, loopSeq string) float64 {
	if u < 3 {
		return 0
	}
	e := hairpinBase37 + lxc37*math.Log(float64(u)/3.0)
	if pairType > 2 {
		e += terminalAU37
	}
	return m.expNeg(e)
}

func (m *basicModel) ExpIntLoop(u1, u2, pairType, pairType2, si1, sj1, sp1, sq1 int) float64 {
	if u1 == 0 && u2 == 0 {
		return m.expNeg(stack37[pairType][pairType2])
	}
	var e float64
	if u1 == 0 || u2 == 0 { // bulge
		u := u1 + u2
		e = bulgeBase37 + lxc37*math.Log(float64(u))
		if u == 1 {
			// A single-base bulge keeps the helix stacked.
			e += stack37[pairType][pairType2]
		} else {
			if pairType > 2 {
				e += terminalAU37
			}
			if pairType2 > 2 {
				e += terminalAU37
			}
		}
	} else {
		u := u1 + u2
		e = intLoopBase37 + lxc37*math.Log(float64(u)/2.0)
		asym := ninioSlope * math.Abs(float64(u1-u2))
		if asym > ninioMax {
			asym = ninioMax
		}
		e += asym
		if pairType > 2 {
			e += terminalAU37
		}
		if pairType2 > 2 {
			e += terminalAU37
		}
	}
	return m.expNeg(e)
}

func (m *basicModel) ExpMultiStem(pairType, s5, s3 int) float64 {
	e := mlIntern37
	if pairType > 2 {
		e += terminalAU37
	}
	return m.expNeg(e)
}

func (m *basicModel) ExpExtStem(pairType, s5, s3 int) float64 {
	if pairType > 2 {
		return m.expNeg(terminalAU37)
	}
	return 1.0
}

func (m *basicModel) ExpMLclosing() float64 { return m.expNeg(mlClosing37) }

func (m *basicModel) ExpMLbase() float64 { return m.expNeg(mlBase37) }
