package pf

// fillCircular accounts for the closed backbone. It is a post-processing
// pass over the matrices fillLinear already filled (same turn, same scale)
// and must never run standalone. The circular total splits into a
// hairpin-closing, an interior-loop-closing and a multiloop-closing
// component, plus the fully unpaired circle.
func (fc *FoldCompound) fillCircular() {
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

	var qho, qio, qmo float64

	// qm2[k]: exactly two branches spanning [k,n].
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
			qbpq := qb[idx.ij(p, q)]
			if qbpq == 0 {
				continue
			}
			hcPQ := hc.Matrix[idx.ji(p, q)]
			tt := rtype[fc.pairTypeOr7(p, q)]

			// The outside of [p,q] as hairpin interior. The closing pair was
			// already scaled by the forward recursion, so only the loop
			// length u is scaled here. The wrapped loop spans q+1..n and
			// 1..p-1, so both unpaired runs must be admissible.
			if hcPQ&ContextHpLoop != 0 && hc.UpHP[q+1] >= n-q && hc.UpHP[1] >= p-1 {
				loopSeq := fc.Sequence[q-1:] + fc.Sequence[:p]
				qho += qbpq *
					fc.Model.ExpHairpin(u, tt, fc.enc[q+1], fc.enc[p-1], loopSeq) *
					scale[u]
			}

			// Exterior interior loops: (k,l) outside [p,q] is the second
			// pair, with the same loop-size cap the forward recursion uses.
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
					t2 := rtype[fc.pairTypeOr7(k, l)]
					qio += qbpq * qbkl *
						fc.Model.ExpIntLoop(ln2, ln1, t2, tt,
							fc.enc[l+1], fc.enc[k-1], fc.enc[p-1], fc.enc[q+1]) *
						scale[ln1+ln2]
				}
			}
		}
	}

	// Multiloops spanning the whole circle: a prefix with >=1 branch and
	// exactly two more branches to close at least three around the loop.
	for k := turn + 2; k < n-2*turn-3; k++ {
		qmo += qm[idx.ij(1, k)] * qm2[k+1] * fc.Model.ExpMLclosing()
	}

	// The open (fully unpaired) circular chain always contributes.
	m.QHO = qho
	m.QIO = qio
	m.QMO = qmo
	m.QO = qho + qio + qmo + scale[n]
}
