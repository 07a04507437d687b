package pf

import (
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// fillLinear runs the single-sequence McCaskill recursion, filling q, qb,
// qm and qm1 for every interval. Traversal order is fixed: the interval end
// j grows from turn+2 to n, the start i shrinks from j-turn-1 to 1; values
// at (i,j) depend only on completed columns and on same-column values with
// larger i.
//
// The rolling buffers qq/qq1 and qqm/qqm1 hold the current and the previous
// column. They are swapped after every column, never copied or reallocated;
// copying would turn the O(n²) buffer traffic cubic.
func (fc *FoldCompound) fillLinear() error {
	var (
		n    = fc.Length
		m    = fc.M
		idx  = fc.idx
		hc   = fc.HC
		sc   = fc.SC
		ud   = fc.Domains
		turn = fc.Params.Turn
	)
	q, qb, qm, qm1 := m.Q, m.QB, m.QM, m.QM1
	scale, expMLbase := m.sc.scale, m.sc.expMLbase

	qq := make([]float64, n+2)
	qq1 := make([]float64, n+2)
	qqm := make([]float64, n+2)
	qqm1 := make([]float64, n+2)

	withUD := ud != nil && ud.ExpEnergy != nil
	udMax := 0
	var qqu, qqmu [][]float64
	if withUD {
		if ud.ExpProd != nil {
			ud.ExpProd(fc)
		}
		for _, sz := range ud.MotifSizes {
			if udMax < sz {
				udMax = sz
			}
		}
		qqu = make([][]float64, udMax+1)
		qqmu = make([][]float64, udMax+1)
		for u := 0; u <= udMax; u++ {
			qqu[u] = make([]float64, n+2)
			qqmu[u] = make([]float64, n+2)
		}
	}
	withGquad := m.G != nil
	expMLstem := 0.0
	if withGquad {
		expMLstem = fc.Model.ExpMultiStem(0, -1, -1)
	}

	// Intervals at or below the minimum loop size hold only the
	// all-unpaired state.
	for d := 0; d <= turn; d++ {
		for i := 1; i+d <= n; i++ {
			j := i + d
			ij := idx.ij(i, j)
			if hc.UpExt[i] > d {
				v := scale[d+1]
				if sc != nil {
					if sc.ExpEnergyUp != nil {
						v *= sc.ExpEnergyUp[i][d+1]
					}
					if sc.ExpF != nil {
						v *= sc.ExpF(i, j, i, j, DecompExtUp)
					}
				}
				if withUD {
					v *= ud.ExpEnergy(fc, i, j, DomainExtLoop)
				}
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
			tt := fc.pairTypeOr7(i, j)
			hcDecompose := hc.Matrix[ji]

			// qb: ensemble weight given that i pairs j, split by the loop
			// the pair closes.
			qbt := 0.0
			if hcDecompose != 0 {
				qbt += fc.hairpinQ(i, j)
				qbt += fc.interiorQ(i, j)
				qbt += fc.multiClosedQ(i, j, qqm1)
			}
			qb[ij] = qbt

			// qqm: [i,j] as a multiloop part ending in its one stem.
			qqm[i] = 0
			if withUD {
				qqmu[0][i] = 0
			}
			if hc.UpML[j] > 0 {
				t := qqm1[i] * expMLbase[1]
				if sc != nil {
					if sc.ExpEnergyUp != nil {
						t *= sc.ExpEnergyUp[j][1]
					}
					if sc.ExpF != nil {
						t *= sc.ExpF(i, j, i, j-1, DecompMLML)
					}
				}
				if withUD {
					for _, u := range ud.MotifSizes {
						if j-u < i || hc.UpML[j-u+1] < u {
							continue
						}
						t2 := qqmu[u][i] *
							ud.ExpEnergy(fc, j-u+1, j, DomainMLLoop|DomainMotif) *
							expMLbase[u]
						if sc != nil && sc.ExpEnergyUp != nil {
							t2 *= sc.ExpEnergyUp[j-u+1][u]
						}
						t += t2
					}
					qqmu[0][i] = t
				}
				qqm[i] = t
			}
			if hcDecompose&ContextMBLoopEnc != 0 {
				t := qb[ij] * fc.Model.ExpMultiStem(tt, fc.enc5(i), fc.enc3(j))
				if sc != nil && sc.ExpF != nil {
					t *= sc.ExpF(i, j, i, j, DecompMLStem)
				}
				qqm[i] += t
				if withUD {
					qqmu[0][i] += t
				}
			}
			if withGquad {
				g := m.G[ij] * expMLstem
				qqm[i] += g
				if withUD {
					qqmu[0][i] += g
				}
			}
			// Stored for circular post-processing and stochastic
			// backtracking.
			qm1[ji] = qqm[i]

			// qm: one or more branches over [i,j]. First every split into a
			// built prefix and a final branch, then the all-unpaired-prefix
			// terms, then the single branch itself.
			temp := 0.0
			kl := idx.row[i] - j + 1 // walks [i,k-1] as k shrinks from j
			if sc != nil && sc.ExpF != nil {
				for k := j; k > i; k, kl = k-1, kl+1 {
					temp += qm[kl] * qqm[k] * sc.ExpF(i, j, k-1, k, DecompMLMLML)
				}
			} else {
				for k := j; k > i; k, kl = k-1, kl+1 {
					temp += qm[kl] * qqm[k]
				}
			}
			maxk := i + hc.UpML[i]
			if maxk > j {
				maxk = j
			}
			for k, u := maxk, maxk-i; k > i; k, u = k-1, u-1 {
				t := expMLbase[u] * qqm[k]
				if withUD {
					t *= ud.ExpEnergy(fc, i, k-1, DomainMLLoop)
				}
				if sc != nil {
					if sc.ExpEnergyUp != nil {
						t *= sc.ExpEnergyUp[i][u]
					}
					if sc.ExpF != nil {
						t *= sc.ExpF(i, j, k, j, DecompMLML)
					}
				}
				temp += t
			}
			qm[ij] = temp + qqm[i]

			// qq: exterior part of [i,j] with exactly one stem starting at i.
			qbt = 0
			if hc.UpExt[j] > 0 {
				t := qq1[i] * scale[1]
				if sc != nil {
					if sc.ExpEnergyUp != nil {
						t *= sc.ExpEnergyUp[j][1]
					}
					if sc.ExpF != nil {
						t *= sc.ExpF(i, j, i, j-1, DecompExtExt)
					}
				}
				if withUD {
					for _, u := range ud.MotifSizes {
						if j-u < i || hc.UpExt[j-u+1] < u {
							continue
						}
						t2 := qqu[u][i] *
							ud.ExpEnergy(fc, j-u+1, j, DomainExtLoop|DomainMotif) *
							scale[u]
						if sc != nil && sc.ExpEnergyUp != nil {
							t2 *= sc.ExpEnergyUp[j-u+1][u]
						}
						t += t2
					}
				}
				qbt += t
			}
			if hcDecompose&ContextExtLoop != 0 {
				t := qb[ij] * fc.Model.ExpExtStem(tt, fc.enc5(i), fc.enc3(j))
				if sc != nil && sc.ExpF != nil {
					t *= sc.ExpF(i, j, i, j, DecompExtStem)
				}
				qbt += t
			}
			if withGquad {
				qbt += m.G[ij]
			}
			qq[i] = qbt
			if withUD {
				qqu[0][i] = qbt
			}

			// q: full exterior decomposition of [i,j].
			temp = qq[i]
			u := j - i + 1
			if hc.UpExt[i] >= u {
				t := scale[u]
				if sc != nil {
					if sc.ExpEnergyUp != nil {
						t *= sc.ExpEnergyUp[i][u]
					}
					if sc.ExpF != nil {
						t *= sc.ExpF(i, j, i, j, DecompExtUp)
					}
				}
				if withUD {
					t *= ud.ExpEnergy(fc, i, j, DomainExtLoop)
				}
				temp += t
			}
			kl = idx.row[i] - i // walks [i,k] as k grows from i
			if sc != nil && sc.ExpF != nil {
				for k := i; k < j; k, kl = k+1, kl-1 {
					temp += q[kl] * qq[k+1] * sc.ExpF(i, j, k, k+1, DecompExtExtExt)
				}
			} else {
				for k := i; k < j; k, kl = k+1, kl-1 {
					temp += q[kl] * qq[k+1]
				}
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
		if withUD {
			// Width-indexed buffers shift by one position instead.
			last := qqu[udMax]
			copy(qqu[1:], qqu[:udMax])
			qqu[0] = last
			last = qqmu[udMax]
			copy(qqmu[1:], qqmu[:udMax])
			qqmu[0] = last
		}
	}

	// Convenience vectors: everything left of k, everything right of k.
	for k := 1; k <= n; k++ {
		m.Q1k[k] = q[idx.ij(1, k)]
		m.Qln[k] = q[idx.ij(k, n)]
	}
	m.Q1k[0] = 1.0
	m.Qln[n+1] = 1.0
	return nil
}

// hairpinQ is the hairpin-closing contribution to qb(i,j).
func (fc *FoldCompound) hairpinQ(i, j int) float64 {
	hc := fc.HC
	if hc.Matrix[fc.idx.ji(i, j)]&ContextHpLoop == 0 {
		return 0
	}
	u := j - i - 1
	if u < fc.Params.Turn || hc.UpHP[i+1] < u {
		return 0
	}
	tt := fc.pairTypeOr7(i, j)
	w := fc.Model.ExpHairpin(u, tt, fc.enc[i+1], fc.enc[j-1], fc.Sequence[i-1:j]) *
		fc.M.sc.scale[u+2]
	if sc := fc.SC; sc != nil {
		if sc.ExpEnergyUp != nil {
			w *= sc.ExpEnergyUp[i+1][u]
		}
		if sc.ExpF != nil {
			w *= sc.ExpF(i, j, i, j, DecompPairHP)
		}
	}
	return w
}

// interiorQ sums the interior-loop contributions to qb(i,j) over all
// enclosed pair choices (k,l) within the loop-size cap.
func (fc *FoldCompound) interiorQ(i, j int) float64 {
	var (
		idx     = fc.idx
		hc      = fc.HC
		sc      = fc.SC
		qb      = fc.M.QB
		scale   = fc.M.sc.scale
		turn    = fc.Params.Turn
		maxLoop = fc.Params.MaxLoop
	)
	if hc.Matrix[idx.ji(i, j)]&ContextIntLoop == 0 {
		return 0
	}
	tt := fc.pairTypeOr7(i, j)
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
			t2 := rtype[fc.pairTypeOr7(k, l)]
			w := fc.Model.ExpIntLoop(u1, u2, tt, t2,
				fc.enc[i+1], fc.enc[j-1], fc.enc[k-1], fc.enc[l+1]) *
				scale[u1+u2+2]
			if sc != nil {
				if sc.ExpEnergyUp != nil {
					w *= sc.ExpEnergyUp[i+1][u1] * sc.ExpEnergyUp[l+1][u2]
				}
				if u1 == 0 && u2 == 0 && sc.ExpEnergyStack != nil {
					w *= sc.ExpEnergyStack[i] * sc.ExpEnergyStack[k] *
						sc.ExpEnergyStack[l] * sc.ExpEnergyStack[j]
				}
				if sc.ExpF != nil {
					w *= sc.ExpF(i, j, k, l, DecompPairIL)
				}
			}
			sum += qbkl * w
		}
	}
	return sum
}

// multiClosedQ is the multiloop-closing contribution to qb(i,j), using the
// previous column's one-stem weights to avoid a fourth nested loop.
func (fc *FoldCompound) multiClosedQ(i, j int, qqm1 []float64) float64 {
	var (
		idx = fc.idx
		qm  = fc.M.QM
	)
	if fc.HC.Matrix[idx.ji(i, j)]&ContextMBLoop == 0 {
		return 0
	}
	tt := rtype[fc.pairTypeOr7(i, j)]
	temp := 0.0
	for k := i + 2; k <= j-1; k++ {
		temp += qm[idx.ij(i+1, k-1)] * qqm1[k]
	}
	w := temp * fc.Model.ExpMLclosing() *
		fc.Model.ExpMultiStem(tt, fc.enc[j-1], fc.enc[i+1]) *
		fc.M.sc.scale[2]
	if sc := fc.SC; sc != nil && sc.ExpF != nil {
		w *= sc.ExpF(i, j, i+1, j-1, DecompPairML)
	}
	return w
}
