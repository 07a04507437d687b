package pf

import "math"

// Exhaustive reference implementation used by the recursion tests. It
// enumerates every nested structure admitted by the compound's hard
// constraints and weighs each one by its loop decomposition. Only valid at
// PfScale 1, where every rescaling factor is exactly 1.

type pairIJ struct{ i, j int }

// enumerate lists all structures of [i,j]: position i either stays unpaired
// (when the hard constraints allow) or pairs some admissible k.
func enumerate(fc *FoldCompound, i, j int) [][]pairIJ {
	if i >= j {
		return [][]pairIJ{nil}
	}
	var out [][]pairIJ
	if fc.HC.unpairedOK[i] {
		out = append(out, enumerate(fc, i+1, j)...)
	}
	for k := i + fc.Params.Turn + 1; k <= j; k++ {
		if fc.HC.Matrix[fc.idx.ji(i, k)] == 0 {
			continue
		}
		for _, in := range enumerate(fc, i+1, k-1) {
			for _, rest := range enumerate(fc, k+1, j) {
				s := make([]pairIJ, 0, 1+len(in)+len(rest))
				s = append(s, pairIJ{i, k})
				s = append(s, in...)
				s = append(s, rest...)
				out = append(out, s)
			}
		}
	}
	return out
}

// childrenOf returns the pairs directly enclosed by (lo,hi), left to right.
func childrenOf(pairs []pairIJ, lo, hi int) []pairIJ {
	partner := map[int]int{}
	for _, p := range pairs {
		partner[p.i] = p.j
	}
	var out []pairIJ
	for k := lo + 1; k < hi; k++ {
		if j, ok := partner[k]; ok {
			out = append(out, pairIJ{k, j})
			k = j
		}
	}
	return out
}

// stemWeight is the Boltzmann weight of the substructure rooted at pair p:
// the loop p closes times the weights of all stems inside it.
func stemWeight(fc *FoldCompound, pairs []pairIJ, p pairIJ) float64 {
	ch := childrenOf(pairs, p.i, p.j)
	tt := fc.pairTypeOr7(p.i, p.j)
	switch len(ch) {
	case 0:
		return fc.Model.ExpHairpin(p.j-p.i-1, tt,
			fc.enc[p.i+1], fc.enc[p.j-1], fc.Sequence[p.i-1:p.j])
	case 1:
		c := ch[0]
		t2 := rtype[fc.pairTypeOr7(c.i, c.j)]
		return fc.Model.ExpIntLoop(c.i-p.i-1, p.j-c.j-1, tt, t2,
			fc.enc[p.i+1], fc.enc[p.j-1], fc.enc[c.i-1], fc.enc[c.j+1]) *
			stemWeight(fc, pairs, c)
	}
	w := fc.Model.ExpMLclosing() *
		fc.Model.ExpMultiStem(rtype[tt], fc.enc[p.j-1], fc.enc[p.i+1])
	unpaired := p.j - p.i - 1
	for _, c := range ch {
		unpaired -= c.j - c.i + 1
		w *= fc.Model.ExpMultiStem(fc.pairTypeOr7(c.i, c.j), fc.enc[c.i-1], fc.enc[c.j+1]) *
			stemWeight(fc, pairs, c)
	}
	return w * math.Pow(fc.Model.ExpMLbase(), float64(unpaired))
}

// structWeight is the full ensemble weight of one structure: exterior stem
// factors times each stem's subtree weight.
func structWeight(fc *FoldCompound, pairs []pairIJ) float64 {
	w := 1.0
	for _, p := range childrenOf(pairs, 0, fc.Length+1) {
		w *= fc.Model.ExpExtStem(fc.pairTypeOr7(p.i, p.j), fc.enc5(p.i), fc.enc3(p.j)) *
			stemWeight(fc, pairs, p)
	}
	return w
}

// bruteQ sums structWeight over the whole ensemble.
func bruteQ(fc *FoldCompound) float64 {
	q := 0.0
	for _, s := range enumerate(fc, 1, fc.Length) {
		q += structWeight(fc, s)
	}
	return q
}
