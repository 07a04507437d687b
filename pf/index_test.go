package pf

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestTriIndexAddressing(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12, 40} {
		x := newTriIndex(n)
		seenIJ := map[int]bool{}
		seenJI := map[int]bool{}
		for i := 1; i <= n; i++ {
			for j := i; j <= n; j++ {
				ij, ji := x.ij(i, j), x.ji(i, j)
				expect.True(t, ij >= 0 && ij < x.cells(), "ij(%d,%d)=%d n=%d", i, j, ij, n)
				expect.True(t, ji >= 0 && ji < x.cells(), "ji(%d,%d)=%d n=%d", i, j, ji, n)
				expect.False(t, seenIJ[ij], "ij collision at (%d,%d) n=%d", i, j, n)
				expect.False(t, seenJI[ji], "ji collision at (%d,%d) n=%d", i, j, n)
				seenIJ[ij] = true
				seenJI[ji] = true
			}
		}
	}
}

func TestTriIndexContiguity(t *testing.T) {
	x := newTriIndex(10)
	for i := 1; i < 10; i++ {
		for j := i; j < 10; j++ {
			// Row-wise: growing j walks adjacent slots downward.
			expect.EQ(t, x.ij(i, j+1), x.ij(i, j)-1)
			// Column-wise: growing i walks adjacent slots upward.
			expect.EQ(t, x.ji(i+1, j+1), x.ji(i, j+1)+1)
		}
	}
}
