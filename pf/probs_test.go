package pf

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestPairProbsMatchEnumeration(t *testing.T) {
	for _, seq := range bruteSeqs {
		fc, err := New(seq, DefaultOpts)
		require.NoError(t, err)
		_, err = fc.Pf()
		require.NoError(t, err)
		require.NoError(t, fc.PairProbs())

		n := fc.Length
		structs := enumerate(fc, 1, n)
		q := 0.0
		want := make(map[pairIJ]float64)
		for _, s := range structs {
			w := structWeight(fc, s)
			q += w
			for _, p := range s {
				want[p] += w
			}
		}
		for i := 1; i <= n; i++ {
			for j := i + fc.Params.Turn + 1; j <= n; j++ {
				wp := want[pairIJ{i, j}] / q
				got := fc.PairProb(i, j)
				if wp == 0 {
					expect.EQ(t, got, 0.0, "seq %s p(%d,%d)", seq, i, j)
					continue
				}
				require.InEpsilon(t, wp, got, 1e-8, "seq %s p(%d,%d)", seq, i, j)
			}
		}
	}
}

func TestPairProbsSumToAtMostOne(t *testing.T) {
	fc, err := New("GGGCGCAAUACGCUUCGGCGCCC", DefaultOpts)
	require.NoError(t, err)
	_, err = fc.Pf()
	require.NoError(t, err)
	require.NoError(t, fc.PairProbs())
	for i := 1; i <= fc.Length; i++ {
		up := fc.UnpairedProb(i)
		expect.True(t, up >= -1e-9 && up <= 1.0+1e-9, "unpaired(%d)=%g", i, up)
	}
	expect.True(t, fc.MeanBPDistance() >= 0.0)
}

func TestPairProbList(t *testing.T) {
	fc, err := New("GGGAAACCC", DefaultOpts)
	require.NoError(t, err)
	_, err = fc.Pf()
	require.NoError(t, err)
	require.NoError(t, fc.PairProbs())

	all := fc.PairProbList(0)
	expect.True(t, len(all) > 0)
	for _, p := range all {
		expect.True(t, p.P > 0)
		expect.EQ(t, p.P, fc.PairProb(p.I, p.J))
	}
	// A high cutoff keeps only the dominant stem.
	top := fc.PairProbList(0.5)
	expect.True(t, len(top) < len(all))
	for _, p := range top {
		expect.True(t, p.P > 0.5)
	}
}

func TestPairProbsRejectsUnsupported(t *testing.T) {
	circ, err := New("GGGAAACCC", circOpts())
	require.NoError(t, err)
	_, err = circ.Pf()
	require.NoError(t, err)
	require.Error(t, circ.PairProbs())

	ali, err := NewAlignment([]string{"GGGAAACCC"}, DefaultOpts)
	require.NoError(t, err)
	_, err = ali.Pf()
	require.NoError(t, err)
	require.Error(t, ali.PairProbs())

	// Without a forward pass there is nothing to trace back.
	cold, err := New("GGGAAACCC", DefaultOpts)
	require.NoError(t, err)
	require.Error(t, cold.PairProbs())
}
