package pf

// triIndex maps ordered pairs (i,j), 1 <= i <= j <= n, onto offsets of a
// flat triangular array. Two addressings exist side by side: a row-wise one
// (row[i]-j, used by q, qb and qm, so that growing j from a fixed i walks
// contiguous slots) and a column-wise one (col[j]+i, used by qm1 and the
// per-pair tables, contiguous in i). Both are pure arithmetic and are shared
// by the linear and circular passes of one fold.
type triIndex struct {
	n   int
	row []int
	col []int
}

func newTriIndex(n int) *triIndex {
	x := &triIndex{
		n:   n,
		row: make([]int, n+1),
		col: make([]int, n+1),
	}
	for i := 1; i <= n; i++ {
		x.row[i] = (n+1-i)*(n-i)/2 + n + 1
		x.col[i] = i * (i - 1) / 2
	}
	return x
}

// cells returns the number of slots a triangular matrix needs under either
// addressing.
func (x *triIndex) cells() int { return (x.n+1)*(x.n+2)/2 }

// ij returns the row-wise offset of (i,j). REQUIRES: 1 <= i <= j <= n.
func (x *triIndex) ij(i, j int) int { return x.row[i] - j }

// ji returns the column-wise offset of (i,j). REQUIRES: 1 <= i <= j <= n.
func (x *triIndex) ji(i, j int) int { return x.col[j] + i }
