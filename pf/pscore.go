package pf

// Covariance scores are kept in hundredths of kcal/mol; pairs scoring below
// minPScore are excluded from the comparative recursion entirely.
const (
	pscoreUnit = 100
	minPScore  = -2 * pscoreUnit
)

// pairDist[t1][t2] counts the base substitutions between two realizations of
// a pair: compensatory double mutations score 2, single consistent mutations
// 1, conserved pairs 0.
var pairDist [8][8]int

func init() {
	bases := [7][2]int{
		1: {baseC, baseG},
		2: {baseG, baseC},
		3: {baseG, baseU},
		4: {baseU, baseG},
		5: {baseA, baseU},
		6: {baseU, baseA},
	}
	for t1 := 1; t1 <= 6; t1++ {
		for t2 := 1; t2 <= 6; t2++ {
			d := 0
			if bases[t1][0] != bases[t2][0] {
				d++
			}
			if bases[t1][1] != bases[t2][1] {
				d++
			}
			pairDist[t1][t2] = d
		}
	}
}

// fillPScore precomputes the per-pair covariance bonus/penalty for the
// alignment path: mutual-substitution evidence among the rows that can form
// the pair, minus a penalty for rows that cannot (gap-gap rows count a
// quarter). The result is multiplied into qb once per closing pair as
// exp(pscore/(kT/10)).
func (fc *FoldCompound) fillPScore() {
	n := fc.Length
	turn := fc.Params.Turn
	for j := 1; j <= n; j++ {
		for i := 1; i < j; i++ {
			ji := fc.idx.ji(i, j)
			if j-i <= turn {
				fc.PScore[ji] = minPScore - 1
				continue
			}
			var pfreq [8]int
			for r := 0; r < fc.NSeq; r++ {
				a, b := fc.s[r][i], fc.s[r][j]
				switch {
				case a == 0 && b == 0:
					pfreq[7]++
				default:
					t := fc.Model.PairType(a, b)
					pfreq[t]++
				}
			}
			if 2*pfreq[0] > fc.NSeq {
				fc.PScore[ji] = minPScore - 1
				continue
			}
			score := 0
			for t1 := 1; t1 <= 6; t1++ {
				for t2 := t1; t2 <= 6; t2++ {
					score += pfreq[t1] * pfreq[t2] * pairDist[t1][t2]
				}
			}
			fc.PScore[ji] = (pscoreUnit*score)/fc.NSeq -
				pscoreUnit*pfreq[0] - (pscoreUnit*pfreq[7])/4
		}
	}
}
