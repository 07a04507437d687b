package pf

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func circOpts() Opts {
	o := DefaultOpts
	o.Circular = true
	return o
}

func TestCircularUnpairable(t *testing.T) {
	// Nothing pairs: the ensemble is the open circle alone.
	fc, err := New("AAAAAAAAAA", circOpts())
	require.NoError(t, err)
	e, err := fc.Pf()
	require.NoError(t, err)
	expect.EQ(t, e, 0.0)
	expect.EQ(t, fc.M.QO, 1.0)
	expect.EQ(t, fc.M.QHO, 0.0)
	expect.EQ(t, fc.M.QIO, 0.0)
	expect.EQ(t, fc.M.QMO, 0.0)
}

func TestCircularHairpin(t *testing.T) {
	fc, err := New("GGGAAACCCAAAA", circOpts())
	require.NoError(t, err)
	e, err := fc.Pf()
	require.NoError(t, err)
	// The stem (1..3, 7..9) leaves 4 exterior bases: a reverse hairpin.
	expect.True(t, fc.M.QHO > 0.0)
	expect.True(t, fc.M.QO > 1.0)
	expect.True(t, e < 0.0, "e=%g", e)
	// One stem cannot close exterior interior loops or multiloops.
	expect.EQ(t, fc.M.QIO, 0.0)
	expect.EQ(t, fc.M.QMO, 0.0)
}

func TestCircularComponents(t *testing.T) {
	// Two stable stems on opposite sides of the circle make exterior
	// interior loops possible.
	fc, err := New("GGGGAAAACCCCAAGGGGAAAACCCCAA", circOpts())
	require.NoError(t, err)
	e, err := fc.Pf()
	require.NoError(t, err)
	expect.True(t, fc.M.QHO > 0.0)
	expect.True(t, fc.M.QIO > 0.0)
	expect.True(t, e < 0.0)
	// Two stems are one branch short of a spanning multiloop.
	expect.EQ(t, fc.M.QMO, 0.0)
}

func TestCircularMultiloop(t *testing.T) {
	// Three stems around the circle let a multiloop span the whole backbone.
	fc, err := New("GGGAAACCCAAGGGAAACCCAAGGGAAACCCAA", circOpts())
	require.NoError(t, err)
	e, err := fc.Pf()
	require.NoError(t, err)
	expect.True(t, fc.M.QHO > 0.0)
	expect.True(t, fc.M.QIO > 0.0)
	expect.True(t, fc.M.QMO > 0.0)
	expect.True(t, e < 0.0)
}

func TestCircularHairpinHonorsUnpairedRuns(t *testing.T) {
	fc, err := New("GGGAAACCCAAAA", circOpts())
	require.NoError(t, err)
	// Position 11 pairs nothing, so every exterior hairpin would leave it
	// unpaired; forbidding that must empty the component.
	fc.HC.ProhibitUnpaired(11)
	_, err = fc.Pf()
	require.NoError(t, err)
	expect.EQ(t, fc.M.QHO, 0.0)
	expect.EQ(t, fc.M.QO, 1.0)
}

func TestCircularExteriorLoopsHonorUnpairedRuns(t *testing.T) {
	fc, err := New("GGGGAAAACCCCAAGGGGAAAACCCCAA", circOpts())
	require.NoError(t, err)
	// Position 27 sits 3' of both stems and pairs nothing: it lands in the
	// second segment of every exterior loop.
	fc.HC.ProhibitUnpaired(27)
	_, err = fc.Pf()
	require.NoError(t, err)
	expect.EQ(t, fc.M.QHO, 0.0)
	expect.EQ(t, fc.M.QIO, 0.0)
	expect.EQ(t, fc.M.QMO, 0.0)
	expect.EQ(t, fc.M.QO, 1.0)
}

func TestCircularAlignmentHonorsUnpairedRuns(t *testing.T) {
	ali, err := NewAlignment([]string{"GGGAAACCCAAAA"}, circOpts())
	require.NoError(t, err)
	ali.HC.ProhibitUnpaired(11)
	_, err = ali.Pf()
	require.NoError(t, err)
	expect.EQ(t, ali.M.QHO, 0.0)
	expect.EQ(t, ali.M.QO, 1.0)
}

func TestCircularNeverBelowOpenChain(t *testing.T) {
	for _, seq := range bruteSeqs {
		fc, err := New(seq, circOpts())
		require.NoError(t, err)
		e, err := fc.Pf()
		require.NoError(t, err)
		expect.True(t, fc.M.QO >= 1.0, "seq %s qo=%g", seq, fc.M.QO)
		expect.True(t, e <= 0.0, "seq %s e=%g", seq, e)
		expect.GE(t, fc.M.QHO, 0.0)
		expect.GE(t, fc.M.QIO, 0.0)
		expect.GE(t, fc.M.QMO, 0.0)
	}
}

func TestCircularWrapsEncoding(t *testing.T) {
	fc, err := New("GGGAAACCC", circOpts())
	require.NoError(t, err)
	expect.EQ(t, fc.enc[0], fc.enc[fc.Length])
	expect.EQ(t, fc.enc[fc.Length+1], fc.enc[1])
}
