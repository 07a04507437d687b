package pf

import (
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// PairProb is one entry of a sparse pair-probability list.
type PairProb struct {
	I, J int
	P    float64
}

// PairProbs runs the outside pass over a filled single-sequence linear fold
// and stores p(i,j) in M.Probs. Probabilities propagate from the exterior
// inward in three steps per pair: as an exterior stem, as the inner pair of
// an interior loop, and as a multiloop branch. The multiloop step reuses
// rolling per-row accumulators so the whole pass stays O(n^2 * maxLoop).
//
// Pf must have completed first. Circular and comparative folds, soft
// constraints and ligand domains are outside this pass; they only shape the
// forward matrices.
func (fc *FoldCompound) PairProbs() error {
	if fc.Kind != SingleSequence {
		return errors.New("pf: pair probabilities need a single-sequence fold")
	}
	if fc.Opts.Circular {
		return errors.New("pf: pair probabilities not supported for circular folds")
	}
	if fc.SC != nil || (fc.Domains != nil && fc.Domains.ExpEnergy != nil) {
		return errors.New("pf: pair probabilities do not support soft constraints or ligand domains")
	}
	if fc.M.G != nil {
		return errors.New("pf: pair probabilities do not support G-quadruplexes")
	}

	var (
		n       = fc.Length
		m       = fc.M
		idx     = fc.idx
		hc      = fc.HC
		turn    = fc.Params.Turn
		maxLoop = fc.Params.MaxLoop
	)
	qb, qm := m.QB, m.QM
	scale, expMLbase := m.sc.scale, m.sc.expMLbase
	qTotal := m.Q1k[n]
	if !(qTotal > 0) {
		return errors.New("pf: pair probabilities need a completed forward pass")
	}
	if m.Probs == nil {
		m.Probs = make([]float64, idx.cells())
	}
	probs := m.Probs
	expMLclosing := fc.Model.ExpMLclosing()

	prml := make([]float64, n+2)
	prmL := make([]float64, n+2)
	prmL1 := make([]float64, n+2)

	// Exterior pairs seed the recursion.
	for i := 1; i <= n; i++ {
		for j := i; j <= n && j <= i+turn; j++ {
			probs[idx.ij(i, j)] = 0
		}
		for j := i + turn + 1; j <= n; j++ {
			ij := idx.ij(i, j)
			if qb[ij] > 0 && hc.Matrix[idx.ji(i, j)]&ContextExtLoop != 0 {
				probs[ij] = m.Q1k[i-1] * m.Qln[j+1] / qTotal *
					fc.Model.ExpExtStem(fc.pairTypeOr7(i, j), fc.enc5(i), fc.enc3(j))
			} else {
				probs[ij] = 0
			}
		}
	}

	var qmax float64
	for l := n; l > turn+1; l-- {
		// (k,l) as the inner pair of an interior loop closed by (i,j).
		for k := 1; k < l-turn; k++ {
			kl := idx.ij(k, l)
			if qb[kl] == 0 {
				continue
			}
			if hc.Matrix[idx.ji(k, l)]&ContextIntLoopEnc == 0 {
				continue
			}
			tkl := rtype[fc.pairTypeOr7(k, l)]
			pp := 0.0
			iMin := k - maxLoop - 1
			if iMin < 1 {
				iMin = 1
			}
			for i := iMin; i <= k-1; i++ {
				u1 := k - i - 1
				jMax := l + maxLoop - u1 + 1
				if jMax > n {
					jMax = n
				}
				for j := l + 1; j <= jMax; j++ {
					ij := idx.ij(i, j)
					if probs[ij] <= 0 {
						continue
					}
					if hc.Matrix[idx.ji(i, j)]&ContextIntLoop == 0 {
						continue
					}
					pp += probs[ij] *
						fc.Model.ExpIntLoop(u1, j-l-1, fc.pairTypeOr7(i, j), tkl,
							fc.enc[i+1], fc.enc[j-1], fc.enc[k-1], fc.enc[l+1]) *
						scale[u1+j-l+1]
				}
			}
			probs[kl] += pp
		}

		// (k,l) as a multiloop branch. prmL[i] carries closings (i,j) with
		// every base in (l,j) unpaired, prml[i] those with further branches
		// right of l; both roll with l.
		prmMLb := 0.0
		if l < n {
			for k := 2; k < l-turn; k++ {
				i := k - 1
				prmt, prmt1 := 0.0, 0.0
				if probs[idx.ij(i, l+1)] > 0 && hc.Matrix[idx.ji(i, l+1)]&ContextMBLoop != 0 {
					tt := rtype[fc.pairTypeOr7(i, l+1)]
					prmt1 = probs[idx.ij(i, l+1)] * expMLclosing *
						fc.Model.ExpMultiStem(tt, fc.enc[l], fc.enc[i+1])
				}
				for j := l + 2; j <= n; j++ {
					pij := probs[idx.ij(i, j)]
					if pij <= 0 || hc.Matrix[idx.ji(i, j)]&ContextMBLoop == 0 {
						continue
					}
					tt := rtype[fc.pairTypeOr7(i, j)]
					prmt += pij *
						fc.Model.ExpMultiStem(tt, fc.enc[j-1], fc.enc[i+1]) *
						qm[idx.ij(l+1, j-1)]
				}
				prmt *= expMLclosing
				prml[i] = prmt
				prmL[i] = prmL1[i]*expMLbase[1] + prmt1
				prmMLb = prmMLb*expMLbase[1] + prml[i]
				prml[i] = prml[i] + prmL[i]

				kl := idx.ij(k, l)
				if qb[kl] == 0 || hc.Matrix[idx.ji(k, l)]&ContextMBLoopEnc == 0 {
					continue
				}
				temp := prmMLb
				for i2 := 1; i2 <= k-2; i2++ {
					temp += prml[i2] * qm[idx.ij(i2+1, k-1)]
				}
				s5, s3 := -1, -1
				if k > 1 {
					s5 = fc.enc[k-1]
				}
				if l < n {
					s3 = fc.enc[l+1]
				}
				temp *= fc.Model.ExpMultiStem(fc.pairTypeOr7(k, l), s5, s3) * scale[2]
				probs[kl] += temp

				if probs[kl] > qmax {
					qmax = probs[kl]
					if qmax > maxReal/10.0 {
						log.Error.Printf("pf: p close to overflow: %d %d %g %g", k, l, probs[kl], qb[kl])
					}
				}
				if probs[kl] >= maxReal {
					return errors.Errorf("pf: overflow while calculating p[%d,%d]; use a larger pf scale", k, l)
				}
			}
		}
		prmL1, prmL = prmL, prmL1
	}

	for i := 1; i <= n; i++ {
		for j := i + turn + 1; j <= n; j++ {
			ij := idx.ij(i, j)
			probs[ij] *= qb[ij]
		}
	}
	return nil
}

// PairProb returns p(i,j) from the filled probability matrix.
func (fc *FoldCompound) PairProb(i, j int) float64 {
	if fc.M.Probs == nil || j <= i {
		return 0
	}
	return fc.M.Probs[fc.idx.ij(i, j)]
}

// PairProbList flattens the probability matrix to the pairs with
// p(i,j) > cutoff, ordered by (i,j).
func (fc *FoldCompound) PairProbList(cutoff float64) []PairProb {
	if fc.M.Probs == nil {
		return nil
	}
	var out []PairProb
	n := fc.Length
	for i := 1; i <= n; i++ {
		for j := i + fc.Params.Turn + 1; j <= n; j++ {
			if p := fc.M.Probs[fc.idx.ij(i, j)]; p > cutoff {
				out = append(out, PairProb{I: i, J: j, P: p})
			}
		}
	}
	return out
}

// UnpairedProb returns the probability that position i pairs nothing.
func (fc *FoldCompound) UnpairedProb(i int) float64 {
	if fc.M.Probs == nil {
		return 0
	}
	p := 1.0
	for k := 1; k < i; k++ {
		p -= fc.M.Probs[fc.idx.ij(k, i)]
	}
	for j := i + 1; j <= fc.Length; j++ {
		p -= fc.M.Probs[fc.idx.ij(i, j)]
	}
	return p
}

// MeanBPDistance is the expected base-pair distance between two structures
// drawn independently from the ensemble, 2 * sum p(1-p).
func (fc *FoldCompound) MeanBPDistance() float64 {
	if fc.M.Probs == nil {
		return 0
	}
	d := 0.0
	n := fc.Length
	for i := 1; i <= n; i++ {
		for j := i + fc.Params.Turn + 1; j <= n; j++ {
			p := fc.M.Probs[fc.idx.ij(i, j)]
			d += 2.0 * p * (1.0 - p)
		}
	}
	return d
}
