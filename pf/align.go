package pf

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// fillAliLinear runs the comparative recursion over the alignment: the same
// decomposition as fillLinear, with every per-row Boltzmann factor computed
// independently and multiplied across rows, and the covariance score folded
// into qb once per closing pair. Loop geometry is addressed through each
// row's ungapped-column map so gaps do not distort loop lengths.
func (fc *FoldCompound) fillAliLinear() error {
	var (
		n    = fc.Length
		m    = fc.M
		idx  = fc.idx
		hc   = fc.HC
		turn = fc.Params.Turn
	)
	q, qb, qm, qm1 := m.Q, m.QB, m.QM, m.QM1
	scale, expMLbase := m.sc.scale, m.sc.expMLbase
	kTn := fc.Params.KT / 10.0

	qq := make([]float64, n+2)
	qq1 := make([]float64, n+2)
	qqm := make([]float64, n+2)
	qqm1 := make([]float64, n+2)
	ptypes := make([]int, fc.NSeq)

	for d := 0; d <= turn; d++ {
		for i := 1; i+d <= n; i++ {
			j := i + d
			ij := idx.ij(i, j)
			if hc.UpExt[i] > d {
				v := scale[d+1]
				v *= fc.aliUnpairedWeight(i, j)
				q[ij] = v
			} else {
				q[ij] = 0
			}
			qb[ij] = 0
			qm[ij] = 0
		}
	}

	var qmax float64
	for j := turn + 2; j <= n; j++ {
		for i := j - turn - 1; i >= 1; i-- {
			ij := idx.ij(i, j)
			ji := idx.ji(i, j)
			hcDecompose := hc.Matrix[ji]
			for r := 0; r < fc.NSeq; r++ {
				ptypes[r] = fc.rowPairTypeOr7(r, i, j)
			}

			qbt := 0.0
			if hcDecompose != 0 {
				qbt += fc.aliHairpinQ(i, j, ptypes)
				qbt += fc.aliInteriorQ(i, j, ptypes)
				qbt += fc.aliMultiClosedQ(i, j, ptypes, qqm1)
				qbt *= math.Exp(float64(fc.PScore[ji]) / kTn)
			}
			qb[ij] = qbt

			qqm[i] = 0
			if hc.UpML[j] > 0 {
				t := qqm1[i] * expMLbase[1]
				for r := 0; r < fc.NSeq; r++ {
					if scs := fc.SCS[r]; scs != nil && scs.ExpEnergyUp != nil {
						t *= scs.ExpEnergyUp[fc.a2s[r][j]][1]
					}
				}
				qqm[i] = t
			}
			if hcDecompose&ContextMBLoopEnc != 0 {
				t := 1.0
				for r := 0; r < fc.NSeq; r++ {
					t *= fc.Model.ExpMultiStem(ptypes[r], fc.rowEnc5(r, i), fc.rowEnc3(r, j))
				}
				qqm[i] += qb[ij] * t
			}
			qm1[ji] = qqm[i]

			temp := 0.0
			kl := idx.row[i] - j + 1
			for k := j; k > i; k, kl = k-1, kl+1 {
				temp += qm[kl] * qqm[k]
			}
			maxk := i + hc.UpML[i]
			if maxk > j {
				maxk = j
			}
			for k, u := maxk, maxk-i; k > i; k, u = k-1, u-1 {
				t := expMLbase[u] * qqm[k]
				for r := 0; r < fc.NSeq; r++ {
					if scs := fc.SCS[r]; scs != nil && scs.ExpEnergyUp != nil {
						if ur := fc.a2s[r][k] - fc.a2s[r][i]; ur > 0 {
							t *= scs.ExpEnergyUp[fc.a2s[r][i]][ur]
						}
					}
				}
				temp += t
			}
			qm[ij] = temp + qqm[i]

			qbt = 0
			if qb[ij] > 0 && hcDecompose&ContextExtLoop != 0 {
				qbt = qb[ij]
				for r := 0; r < fc.NSeq; r++ {
					qbt *= fc.Model.ExpExtStem(ptypes[r], fc.rowEnc5(r, i), fc.rowEnc3(r, j))
				}
			}
			if hc.UpExt[j] > 0 {
				t := qq1[i] * scale[1]
				for r := 0; r < fc.NSeq; r++ {
					if scs := fc.SCS[r]; scs != nil && scs.ExpEnergyUp != nil {
						t *= scs.ExpEnergyUp[fc.a2s[r][j]][1]
					}
				}
				qbt += t
			}
			qq[i] = qbt

			temp = qq[i]
			u := j - i + 1
			if hc.UpExt[i] >= u {
				temp += scale[u] * fc.aliUnpairedWeight(i, j)
			}
			kl = idx.row[i] - i
			for k := i; k < j; k, kl = k+1, kl-1 {
				temp += q[kl] * qq[k+1]
			}
			q[ij] = temp

			if temp > qmax {
				qmax = temp
				if qmax > maxReal/10.0 {
					log.Error.Printf("pf: Q close to overflow: %d %d %g", i, j, temp)
				}
			}
			if temp >= maxReal {
				return errors.Errorf("pf: overflow while calculating q[%d,%d]; use a larger pf scale", i, j)
			}
		}
		qq, qq1 = qq1, qq
		qqm, qqm1 = qqm1, qqm
	}

	for k := 1; k <= n; k++ {
		m.Q1k[k] = q[idx.ij(1, k)]
		m.Qln[k] = q[idx.ij(k, n)]
	}
	m.Q1k[0] = 1.0
	m.Qln[n+1] = 1.0
	return nil
}

// aliUnpairedWeight multiplies the per-row soft-constraint weights of the
// alignment stretch [i,j] staying unpaired.
func (fc *FoldCompound) aliUnpairedWeight(i, j int) float64 {
	w := 1.0
	for r := 0; r < fc.NSeq; r++ {
		scs := fc.SCS[r]
		if scs == nil || scs.ExpEnergyUp == nil {
			continue
		}
		if u := fc.a2s[r][j] - fc.a2s[r][i] + 1; u > 0 {
			w *= scs.ExpEnergyUp[fc.a2s[r][i]][u]
		}
	}
	return w
}

func (fc *FoldCompound) rowPairTypeOr7(r, i, j int) int {
	t := fc.Model.PairType(fc.s[r][i], fc.s[r][j])
	if t == 0 {
		t = nonstandardPair
	}
	return t
}

// rowEnc5 returns row r's nearest base 5' of i, or -1 at an open end.
func (fc *FoldCompound) rowEnc5(r, i int) int {
	if i > 1 || fc.Opts.Circular {
		return fc.s5[r][i]
	}
	return -1
}

// rowEnc3 returns row r's nearest base 3' of j, or -1 at an open end.
func (fc *FoldCompound) rowEnc3(r, j int) int {
	if j < fc.Length || fc.Opts.Circular {
		return fc.s3[r][j]
	}
	return -1
}

// aliHairpinQ is the hairpin contribution to qb(i,j): per-row hairpin
// factors on each row's own ungapped loop length, multiplied across rows.
func (fc *FoldCompound) aliHairpinQ(i, j int, ptypes []int) float64 {
	hc := fc.HC
	if hc.Matrix[fc.idx.ji(i, j)]&ContextHpLoop == 0 {
		return 0
	}
	if u := j - i - 1; u < fc.Params.Turn || hc.UpHP[i+1] < u {
		return 0
	}
	w := 1.0
	for r := 0; r < fc.NSeq; r++ {
		u := fc.a2s[r][j-1] - fc.a2s[r][i]
		if u < 0 {
			u = 0
		}
		w *= fc.Model.ExpHairpin(u, ptypes[r], fc.s3[r][i], fc.s5[r][j], fc.rowLoopSeq(r, i, j))
		if scs := fc.SCS[r]; scs != nil && scs.ExpEnergyUp != nil && u > 0 {
			w *= scs.ExpEnergyUp[fc.a2s[r][i]+1][u]
		}
	}
	return w * fc.M.sc.scale[j-i+1]
}

// rowLoopSeq materializes row r's ungapped subsequence spanned by the
// alignment interval [i,j], closing bases included.
func (fc *FoldCompound) rowLoopSeq(r, i, j int) string {
	start := fc.a2s[r][i-1]
	end := fc.a2s[r][j]
	if start < 0 {
		start = 0
	}
	if end > len(fc.Ss[r]) {
		end = len(fc.Ss[r])
	}
	if start >= end {
		return ""
	}
	return fc.Ss[r][start:end]
}

// aliInteriorQ sums interior-loop contributions with per-row loop lengths
// taken from the ungapped-column maps.
func (fc *FoldCompound) aliInteriorQ(i, j int, ptypes []int) float64 {
	var (
		idx     = fc.idx
		hc      = fc.HC
		qb      = fc.M.QB
		scale   = fc.M.sc.scale
		turn    = fc.Params.Turn
		maxLoop = fc.Params.MaxLoop
	)
	if hc.Matrix[idx.ji(i, j)]&ContextIntLoop == 0 {
		return 0
	}
	sum := 0.0
	kMax := i + maxLoop + 1
	if kMax > j-turn-2 {
		kMax = j - turn - 2
	}
	for k := i + 1; k <= kMax; k++ {
		u1 := k - i - 1
		if hc.UpInt[i+1] < u1 {
			break
		}
		lMin := k + turn + 1
		if lm := j - 1 - (maxLoop - u1); lm > lMin {
			lMin = lm
		}
		for l := j - 1; l >= lMin; l-- {
			u2 := j - l - 1
			if hc.UpInt[l+1] < u2 {
				continue
			}
			if hc.Matrix[idx.ji(k, l)]&ContextIntLoopEnc == 0 {
				continue
			}
			qbkl := qb[idx.ij(k, l)]
			if qbkl == 0 {
				continue
			}
			w := 1.0
			for r := 0; r < fc.NSeq; r++ {
				u1r := fc.a2s[r][k-1] - fc.a2s[r][i]
				u2r := fc.a2s[r][j-1] - fc.a2s[r][l]
				if u1r < 0 {
					u1r = 0
				}
				if u2r < 0 {
					u2r = 0
				}
				t2 := rtype[fc.rowPairTypeOr7(r, k, l)]
				w *= fc.Model.ExpIntLoop(u1r, u2r, ptypes[r], t2,
					fc.s3[r][i], fc.s5[r][j], fc.s5[r][k], fc.s3[r][l])
			}
			sum += qbkl * w * scale[u1+u2+2]
		}
	}
	return sum
}

// aliMultiClosedQ is the multiloop-closing contribution to qb(i,j).
func (fc *FoldCompound) aliMultiClosedQ(i, j int, ptypes []int, qqm1 []float64) float64 {
	var (
		idx = fc.idx
		qm  = fc.M.QM
	)
	if fc.HC.Matrix[idx.ji(i, j)]&ContextMBLoop == 0 {
		return 0
	}
	temp := 0.0
	for k := i + 2; k <= j-1; k++ {
		temp += qm[idx.ij(i+1, k-1)] * qqm1[k]
	}
	w := 1.0
	for r := 0; r < fc.NSeq; r++ {
		w *= fc.Model.ExpMLclosing() *
			fc.Model.ExpMultiStem(rtype[ptypes[r]], fc.s5[r][j], fc.s3[r][i])
	}
	return temp * w * fc.M.sc.scale[2]
}
