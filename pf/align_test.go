package pf

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestAlignmentOfOneRowMatchesSingle(t *testing.T) {
	// A gap-free one-row alignment carries no covariance signal and must
	// reproduce the single-sequence ensemble exactly.
	for _, seq := range bruteSeqs {
		single, err := New(seq, DefaultOpts)
		require.NoError(t, err)
		eS, err := single.Pf()
		require.NoError(t, err)

		ali, err := NewAlignment([]string{seq}, DefaultOpts)
		require.NoError(t, err)
		eA, err := ali.Pf()
		require.NoError(t, err)

		require.InDelta(t, eS, eA, 1e-9, "seq %s", seq)
		n := len(seq)
		require.InEpsilon(t, single.M.Q[single.idx.ij(1, n)], ali.M.Q[ali.idx.ij(1, n)], 1e-9, "seq %s", seq)
	}
}

func TestCircularAlignmentOfOneRowMatchesSingle(t *testing.T) {
	for _, seq := range []string{"GGGAAACCCAAAA", "GGGGAAAACCCCAAGGGGAAAACCCCAA"} {
		single, err := New(seq, circOpts())
		require.NoError(t, err)
		eS, err := single.Pf()
		require.NoError(t, err)

		ali, err := NewAlignment([]string{seq}, circOpts())
		require.NoError(t, err)
		eA, err := ali.Pf()
		require.NoError(t, err)

		require.InDelta(t, eS, eA, 1e-9, "seq %s", seq)
		require.InEpsilon(t, single.M.QO, ali.M.QO, 1e-9, "seq %s", seq)
	}
}

func TestIdenticalRowsSquareTheWeights(t *testing.T) {
	// With identical rows every covariance score is zero and each per-row
	// Boltzmann factor appears once per row, so each structure contributes
	// its single-sequence weight squared.
	for _, seq := range []string{"GGGAAAUCCC", "GCGCUUCGGCGC"} {
		single, err := New(seq, DefaultOpts)
		require.NoError(t, err)
		_, err = single.Pf()
		require.NoError(t, err)

		want := 0.0
		for _, s := range enumerate(single, 1, single.Length) {
			w := structWeight(single, s)
			want += w * w
		}

		ali, err := NewAlignment([]string{seq, seq}, DefaultOpts)
		require.NoError(t, err)
		_, err = ali.Pf()
		require.NoError(t, err)
		require.InEpsilon(t, want, ali.M.Q[ali.idx.ij(1, len(seq))], 1e-9, "seq %s", seq)
	}
}

// mlBaseModel overrides the unpaired multiloop base factor of an existing
// model.
type mlBaseModel struct {
	EnergyModel
	base float64
}

func (m mlBaseModel) ExpMLbase() float64 { return m.base }

func TestIdenticalRowsWeighMultiloopBasesPerRow(t *testing.T) {
	// With a non-unit multiloop base factor, every unpaired multiloop base
	// costs the factor once per row, so the squared-weight identity must
	// still hold on a multiloop-forming sequence.
	const seq = "GAGGGAAACCCAGGGAAACCCAC"
	opts := DefaultOpts
	opts.Model = mlBaseModel{NewDefaultModel(opts.Temperature), 0.5}

	single, err := New(seq, opts)
	require.NoError(t, err)
	_, err = single.Pf()
	require.NoError(t, err)
	n := single.Length
	require.InEpsilon(t, bruteQ(single), single.M.Q[single.idx.ij(1, n)], 1e-9)

	want := 0.0
	for _, s := range enumerate(single, 1, n) {
		w := structWeight(single, s)
		want += w * w
	}
	ali, err := NewAlignment([]string{seq, seq}, opts)
	require.NoError(t, err)
	_, err = ali.Pf()
	require.NoError(t, err)
	require.InEpsilon(t, want, ali.M.Q[ali.idx.ij(1, n)], 1e-9)
}

func TestAlignmentCovariance(t *testing.T) {
	// Compensatory double substitution at the closing pair: GC in one row,
	// CG in the other. The covariance score rewards the pair.
	ali, err := NewAlignment([]string{"GGGAAACCC", "CGGAAACCG"}, DefaultOpts)
	require.NoError(t, err)
	expect.True(t, ali.PScore[ali.idx.ji(1, 9)] > 0, "pscore=%d", ali.PScore[ali.idx.ji(1, 9)])

	// Conserved pairs score zero.
	expect.EQ(t, ali.PScore[ali.idx.ji(2, 8)], 0)

	// A column pair most rows cannot form is excluded outright.
	bad, err := NewAlignment([]string{"GAGAAACCC", "GCGAAACCC"}, DefaultOpts)
	require.NoError(t, err)
	expect.True(t, bad.PScore[bad.idx.ji(2, 8)] < minPScore)
	expect.EQ(t, bad.HC.Matrix[bad.idx.ji(2, 8)], byte(0))

	e, err := ali.Pf()
	require.NoError(t, err)
	expect.True(t, e < 0.0)
}

func TestAlignmentWithGaps(t *testing.T) {
	rows := []string{
		"GGGCAAAAGCCC",
		"GGG-AAAA-CCC",
		"GGGCAAAAGCCC",
	}
	ali, err := NewAlignment(rows, DefaultOpts)
	require.NoError(t, err)
	e, err := ali.Pf()
	require.NoError(t, err)
	expect.True(t, ali.M.Q[ali.idx.ij(1, 12)] > 0.0)
	expect.True(t, e < 0.0, "e=%g", e)

	// Ungapped coordinate maps skip the gap columns.
	expect.EQ(t, ali.a2s[1][4], 3)
	expect.EQ(t, ali.a2s[1][12], 10)
	expect.EQ(t, ali.Ss[1], "GGGAAAACCC")
	// Nearest non-gap neighbors bridge the gap.
	expect.EQ(t, ali.s5[1][5], encodeBase('G'))
	expect.EQ(t, ali.s3[1][3], encodeBase('A'))
}

func TestAlignmentRowLengthMismatch(t *testing.T) {
	_, err := NewAlignment([]string{"GGGAAACCC", "GGG"}, DefaultOpts)
	require.Error(t, err)
	_, err = NewAlignment(nil, DefaultOpts)
	require.Error(t, err)
	_, err = NewAlignment([]string{""}, DefaultOpts)
	require.Error(t, err)
}
