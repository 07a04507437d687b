package pf

import (
	"math"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// EnergyInf is the sentinel failure energy (kcal/mol) returned when a fold
// cannot run at all.
const EnergyInf = 100000.0

// CompoundKind discriminates the two fold-compound shapes.
type CompoundKind int

const (
	// SingleSequence folds one RNA sequence.
	SingleSequence CompoundKind = iota
	// Alignment folds a multiple sequence alignment comparatively.
	Alignment
)

// BacktrackType selects which ensemble total Pf reports the free energy of.
type BacktrackType int

const (
	// BacktrackDefault reports q(1,n), or qo for circular folds.
	BacktrackDefault BacktrackType = iota
	// BacktrackPaired reports qb(1,n), the ensemble constrained to pair the
	// sequence ends.
	BacktrackPaired
	// BacktrackMultiloop reports qm(1,n).
	BacktrackMultiloop
)

// GquadFunc produces the precomputed G-quadruplex partition matrix
// (row-wise, already rescaled) for an encoded sequence.
type GquadFunc func(enc []int, scale []float64) []float64

// Opts configures a fold compound. The zero value is not useful; start from
// DefaultOpts.
type Opts struct {
	// Temperature in degrees Celsius.
	Temperature float64
	// Turn is the minimum hairpin loop size.
	Turn int
	// MaxLoop caps the unpaired span of interior loops.
	MaxLoop int
	// PfScale is the rescaling reference; 1.0 folds unscaled. Use
	// PfScaleFromEnergy for long sequences.
	PfScale float64
	// Circular folds a closed backbone: the linear pass runs first, then the
	// circular post-processing pass.
	Circular bool
	// Model supplies the loop Boltzmann factors. Nil selects the built-in
	// model at Temperature.
	Model EnergyModel
	// BacktrackType selects the reported ensemble total.
	BacktrackType BacktrackType
	// Gquad enables G-quadruplex support; nil disables it.
	Gquad GquadFunc
}

// DefaultOpts is the standard model setting.
var DefaultOpts = Opts{
	Temperature: 37.0,
	Turn:        3,
	MaxLoop:     30,
	PfScale:     1.0,
}

// FoldCompound owns everything one partition-function computation touches:
// sequence encoding, model parameters, constraints, and the DP matrices.
// Matrices are allocated here and freed with the compound. Two different
// compounds may be filled concurrently; one compound must not.
type FoldCompound struct {
	Kind   CompoundKind
	Opts   Opts
	Params *ExpParams
	Model  EnergyModel

	// Length is the sequence (or alignment) length n.
	Length int

	// Single-sequence state.
	Sequence string
	enc      []int // 1-based encoding; enc[0]/enc[n+1] wrap when circular

	// Alignment state.
	NSeq int
	Ali  []string // aligned rows, gaps included
	Ss   []string // per-row ungapped sequences
	s    [][]int  // per-row encodings, gaps encoded 0
	s5   [][]int  // s5[r][i]: nearest non-gap base 5' of i in row r
	s3   [][]int  // s3[r][i]: nearest non-gap base 3' of i in row r
	a2s  [][]int  // a2s[r][i]: ungapped position count of row r up to i
	// PScore is the per-pair covariance score table (column-wise,
	// centi-kcal). Precomputed at construction; callers may overwrite it
	// before Pf.
	PScore []int

	// ptype is the column-wise pair-type table (single-sequence only).
	ptype []int

	// Constraint and domain collaborators. HC is always present; SC,
	// SCS (per alignment row) and Domains default to neutral.
	HC      *HardConstraints
	SC      *SoftConstraints
	SCS     []*SoftConstraints
	Domains *Domains

	idx *triIndex
	// M holds the DP matrices of this fold.
	M *Matrices
}

// New builds a fold compound for a single RNA sequence.
func New(seq string, opts Opts) (*FoldCompound, error) {
	n := len(seq)
	if n == 0 {
		return nil, errors.New("pf: empty sequence")
	}
	fc := &FoldCompound{
		Kind:     SingleSequence,
		Opts:     opts,
		Length:   n,
		Sequence: normalizeRNA(seq),
	}
	fc.finishSetup(opts)

	fc.enc = make([]int, n+2)
	for i := 1; i <= n; i++ {
		fc.enc[i] = encodeBase(fc.Sequence[i-1])
	}
	if opts.Circular {
		fc.enc[0] = fc.enc[n]
		fc.enc[n+1] = fc.enc[1]
	}

	fc.ptype = make([]int, fc.idx.cells())
	for j := 1; j <= n; j++ {
		for i := 1; i < j; i++ {
			fc.ptype[fc.idx.ji(i, j)] = fc.Model.PairType(fc.enc[i], fc.enc[j])
		}
	}
	fc.HC = newHardConstraints(n, fc.idx)
	fc.HC.defaultFill(fc.idx, fc.ptype, fc.Params.Turn)
	return fc, nil
}

// NewAlignment builds a comparative fold compound from gapped alignment
// rows. All rows must share one length.
func NewAlignment(rows []string, opts Opts) (*FoldCompound, error) {
	if len(rows) == 0 {
		return nil, errors.New("pf: empty alignment")
	}
	n := len(rows[0])
	if n == 0 {
		return nil, errors.New("pf: empty alignment rows")
	}
	for r, row := range rows {
		if len(row) != n {
			return nil, errors.Errorf("pf: alignment row %d has length %d, want %d", r, len(row), n)
		}
	}
	fc := &FoldCompound{
		Kind:   Alignment,
		Opts:   opts,
		Length: n,
		NSeq:   len(rows),
	}
	fc.finishSetup(opts)

	fc.Ali = make([]string, fc.NSeq)
	fc.Ss = make([]string, fc.NSeq)
	fc.s = make([][]int, fc.NSeq)
	fc.s5 = make([][]int, fc.NSeq)
	fc.s3 = make([][]int, fc.NSeq)
	fc.a2s = make([][]int, fc.NSeq)
	for r, row := range rows {
		fc.Ali[r] = normalizeRNA(row)
		enc := make([]int, n+2)
		s5 := make([]int, n+2)
		s3 := make([]int, n+2)
		a2s := make([]int, n+2)
		var ungapped strings.Builder
		for i := 1; i <= n; i++ {
			c := fc.Ali[r][i-1]
			if isGap(c) {
				enc[i] = 0
			} else {
				enc[i] = encodeBase(c)
				ungapped.WriteByte(c)
			}
			a2s[i] = a2s[i-1]
			if enc[i] != 0 {
				a2s[i]++
			}
			s5[i] = 0
			for k := i - 1; k >= 1; k-- {
				if enc[k] != 0 {
					s5[i] = enc[k]
					break
				}
			}
		}
		a2s[n+1] = a2s[n]
		for i := n; i >= 1; i-- {
			s3[i] = 0
			for k := i + 1; k <= n; k++ {
				if enc[k] != 0 {
					s3[i] = enc[k]
					break
				}
			}
		}
		fc.s[r] = enc
		fc.s5[r] = s5
		fc.s3[r] = s3
		fc.a2s[r] = a2s
		fc.Ss[r] = ungapped.String()
	}
	fc.PScore = make([]int, fc.idx.cells())
	fc.fillPScore()
	fc.HC = newHardConstraints(n, fc.idx)
	for j := 1; j <= n; j++ {
		for i := 1; i < j; i++ {
			if j-i > fc.Params.Turn && fc.PScore[fc.idx.ji(i, j)] >= minPScore {
				fc.HC.Matrix[fc.idx.ji(i, j)] = ContextAllLoops
			}
		}
	}
	fc.SCS = make([]*SoftConstraints, fc.NSeq)
	return fc, nil
}

func (fc *FoldCompound) finishSetup(opts Opts) {
	fc.Params = newExpParams(opts)
	fc.Model = opts.Model
	if fc.Model == nil {
		fc.Model = NewDefaultModel(opts.Temperature)
	}
	fc.idx = newTriIndex(fc.Length)
	mlBase := fc.Model.ExpMLbase()
	if fc.Kind == Alignment {
		// An unpaired multiloop column costs the base factor once per row.
		mlBase = math.Pow(mlBase, float64(fc.NSeq))
	}
	sc := newScaling(fc.Length, opts.PfScale, mlBase)
	fc.M = newMatrices(fc.idx, sc, opts.Circular)
}

// Pf fills the matrices and returns the ensemble free energy in kcal/mol.
// The reported total follows Opts.BacktrackType. A numeric overflow aborts
// the pass with an error naming the offending interval; the caller should
// retry with a more conservative PfScale, there is no in-place recovery.
func (fc *FoldCompound) Pf() (float64, error) {
	n := fc.Length
	fc.HC.prepare()
	switch fc.Kind {
	case SingleSequence:
		if fc.Opts.Gquad != nil && fc.M.G == nil {
			fc.M.G = fc.Opts.Gquad(fc.enc, fc.M.sc.scale)
		}
		if err := fc.fillLinear(); err != nil {
			return EnergyInf, err
		}
		if fc.Opts.Circular {
			fc.fillCircular()
		}
	case Alignment:
		if err := fc.fillAliLinear(); err != nil {
			return EnergyInf, err
		}
		if fc.Opts.Circular {
			fc.fillAliCircular()
		}
	default:
		log.Error.Printf("pf: unrecognized fold compound kind %d", fc.Kind)
		return EnergyInf, errors.Errorf("pf: unrecognized fold compound kind %d", fc.Kind)
	}

	var q float64
	switch {
	case fc.Opts.BacktrackType == BacktrackPaired:
		q = fc.M.QB[fc.idx.ij(1, n)]
	case fc.Opts.BacktrackType == BacktrackMultiloop:
		q = fc.M.QM[fc.idx.ij(1, n)]
	case fc.Opts.Circular:
		q = fc.M.QO
	default:
		q = fc.M.Q[fc.idx.ij(1, n)]
	}
	if q <= minNormal {
		log.Error.Printf("pf: pf_scale %g too large", fc.Params.PfScale)
	}
	e := (-math.Log(q) - float64(n)*math.Log(fc.Params.PfScale)) * fc.Params.KT / 1000.0
	if fc.Kind == Alignment {
		e /= float64(fc.NSeq)
	}
	return e, nil
}

// SubseqFreeEnergy reports the free energy of the open subinterval [i,j]
// from the filled q matrix.
func (fc *FoldCompound) SubseqFreeEnergy(i, j int) float64 {
	q := fc.M.Q[fc.idx.ij(i, j)]
	return (-math.Log(q) - float64(j-i+1)*math.Log(fc.Params.PfScale)) * fc.Params.KT / 1000.0
}

// pairTypeOr7 returns the pair type of (i,j), substituting the nonstandard
// type for pairs the model rejects but constraints admit.
func (fc *FoldCompound) pairTypeOr7(i, j int) int {
	t := fc.ptype[fc.idx.ji(i, j)]
	if t == 0 {
		t = nonstandardPair
	}
	return t
}

// enc5 returns the encoded base 5' of i, or -1 at the open sequence end.
func (fc *FoldCompound) enc5(i int) int {
	if i > 1 || fc.Opts.Circular {
		return fc.enc[i-1]
	}
	return -1
}

// enc3 returns the encoded base 3' of j, or -1 at the open sequence end.
func (fc *FoldCompound) enc3(j int) int {
	if j < fc.Length || fc.Opts.Circular {
		return fc.enc[j+1]
	}
	return -1
}

func normalizeRNA(seq string) string {
	var b strings.Builder
	b.Grow(len(seq))
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		switch {
		case c == 't' || c == 'T':
			c = 'U'
		case c >= 'a' && c <= 'z':
			c = c - 'a' + 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isGap(c byte) bool { return c == '-' || c == '.' || c == '~' || c == '_' }
