package pf

import "math"

// fillAliCircular is the comparative analogue of fillCircular: the same
// three-term decomposition, with per-row loop geometry taken from the
// ungapped-column maps and sequence-independent terms (the multiloop
// closing penalty) raised to the row count.
func (fc *FoldCompound) fillAliCircular() {
	var (
		n       = fc.Length
		m       = fc.M
		idx     = fc.idx
		hc      = fc.HC
		turn    = fc.Params.Turn
		maxLoop = fc.Params.MaxLoop
	)
	qb, qm, qm1, qm2 := m.QB, m.QM, m.QM1, m.QM2
	scale := m.sc.scale
	ptypes := make([]int, fc.NSeq)

	var qho, qio, qmo float64

	for k := 1; k < n-turn-1; k++ {
		qot := 0.0
		for u := k + turn + 1; u < n-turn-1; u++ {
			qot += qm1[idx.ji(k, u)] * qm1[idx.ji(u+1, n)]
		}
		qm2[k] = qot
	}

	for p := 1; p < n; p++ {
		for q := p + turn + 1; q <= n; q++ {
			u := n - q + p - 1
			if u < turn {
				continue
			}
			hcPQ := hc.Matrix[idx.ji(p, q)]
			if hcPQ == 0 {
				continue
			}
			qbpq := qb[idx.ij(p, q)]
			if qbpq == 0 {
				continue
			}
			for r := 0; r < fc.NSeq; r++ {
				ptypes[r] = fc.rowPairTypeOr7(r, p, q)
			}

			// Exterior hairpin: the closing pair was scaled by the forward
			// recursion, only the loop length is scaled here. The wrapped
			// loop spans q+1..n and 1..p-1, so both unpaired runs must be
			// admissible.
			if hcPQ&ContextHpLoop != 0 && hc.UpHP[q+1] >= n-q && hc.UpHP[1] >= p-1 {
				w := 1.0
				for r := 0; r < fc.NSeq; r++ {
					ur := fc.a2s[r][n] - fc.a2s[r][q] + fc.a2s[r][p] - 1
					if ur < 0 {
						ur = 0
					}
					loopSeq := fc.rowRotatedSeq(r, p, q)
					w *= fc.Model.ExpHairpin(ur, rtype[ptypes[r]],
						fc.s3[r][q], fc.s5[r][p], loopSeq)
					if scs := fc.SCS[r]; scs != nil && scs.ExpEnergyUp != nil {
						if p > 1 && fc.a2s[r][p]-1 > 0 {
							w *= scs.ExpEnergyUp[1][fc.a2s[r][p]-1]
						}
						if q < n && fc.a2s[r][n]-fc.a2s[r][q] > 0 {
							w *= scs.ExpEnergyUp[fc.a2s[r][q]+1][fc.a2s[r][n]-fc.a2s[r][q]]
						}
					}
				}
				qho += qbpq * w * scale[u]
			}

			// Exterior interior loops.
			if hcPQ&ContextIntLoop == 0 || hc.UpInt[1] < p-1 {
				continue
			}
			for k := q + 1; k < n; k++ {
				ln1 := k - q - 1
				if ln1+p-1 > maxLoop {
					break
				}
				if hc.UpInt[q+1] < ln1 {
					break
				}
				lStart := ln1 + p - 1 + n - maxLoop
				if lStart < k+turn+1 {
					lStart = k + turn + 1
				}
				for l := lStart; l <= n; l++ {
					ln2 := p - 1 + n - l
					if ln1+ln2 > maxLoop {
						continue
					}
					if hc.Matrix[idx.ji(k, l)]&ContextIntLoop == 0 {
						continue
					}
					if hc.UpInt[l+1] < n-l {
						continue
					}
					qbkl := qb[idx.ij(k, l)]
					if qbkl == 0 {
						continue
					}
					w := 1.0
					for r := 0; r < fc.NSeq; r++ {
						ln1r := fc.a2s[r][k] - 1 - fc.a2s[r][q]
						ln2r := fc.a2s[r][n] - fc.a2s[r][l] + fc.a2s[r][p] - 1
						if ln1r < 0 {
							ln1r = 0
						}
						if ln2r < 0 {
							ln2r = 0
						}
						t2 := fc.rowPairTypeOr7(r, l, k)
						w *= fc.Model.ExpIntLoop(ln1r, ln2r, rtype[ptypes[r]], t2,
							fc.s3[r][q], fc.s5[r][p], fc.s5[r][k], fc.s3[r][l])
					}
					qio += qbpq * qbkl * w * scale[ln1+ln2]
				}
			}
		}
	}

	mlClosing := math.Pow(fc.Model.ExpMLclosing(), float64(fc.NSeq))
	for k := turn + 2; k < n-2*turn-3; k++ {
		qmo += qm[idx.ij(1, k)] * qm2[k+1] * mlClosing
	}

	m.QHO = qho
	m.QIO = qio
	m.QMO = qmo
	m.QO = qho + qio + qmo + scale[n]
}

// rowRotatedSeq materializes row r's ungapped exterior region of [p,q]:
// everything 3' of q followed by everything 5' of p, the loop a reverse
// hairpin sees.
func (fc *FoldCompound) rowRotatedSeq(r, p, q int) string {
	s := fc.Ss[r]
	start := fc.a2s[r][q] - 1
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	head := fc.a2s[r][p]
	if head > len(s) {
		head = len(s)
	}
	return s[start:] + s[:head]
}
