package pf

// Matrices holds every DP matrix of one partition-function pass. They are
// allocated once per fold, filled exactly once by the linear engine in
// increasing-j, decreasing-i order, optionally extended by the circular
// post-processing pass, and live until the owning FoldCompound is dropped.
type Matrices struct {
	n   int
	idx *triIndex
	sc  *scaling

	// Q, QB and QM are row-wise triangular matrices (see triIndex.ij):
	// the unconstrained ensemble weight of [i,j], the weight given that
	// i pairs j, and the weight of [i,j] as a multiloop part with at least
	// one branch.
	Q, QB, QM []float64
	// QM1 is column-wise addressed (triIndex.ji): [i,j] as exactly one
	// multiloop branch closed at i. Kept for circular post-processing and
	// stochastic backtracking.
	QM1 []float64
	// QM2[k] is the weight of [k,n] split into exactly two multiloop
	// branches. Filled by the circular pass only.
	QM2 []float64
	// G is the optional precomputed G-quadruplex contribution, row-wise.
	// Nil when quadruplex support is disabled.
	G []float64
	// Q1k[k] = Q(1,k) and Qln[k] = Q(k,n), with Q1k[0] = Qln[n+1] = 1.
	Q1k, Qln []float64
	// Probs is the base-pair probability matrix, row-wise. Filled by
	// PairProbs.
	Probs []float64

	// Circular totals: the circular partition function and its hairpin-,
	// interior- and multiloop-closing components.
	QO, QHO, QIO, QMO float64
}

func newMatrices(idx *triIndex, sc *scaling, circular bool) *Matrices {
	n := idx.n
	m := &Matrices{
		n:   n,
		idx: idx,
		sc:  sc,
		Q:   make([]float64, idx.cells()),
		QB:  make([]float64, idx.cells()),
		QM:  make([]float64, idx.cells()),
		QM1: make([]float64, idx.cells()),
		Q1k: make([]float64, n+2),
		Qln: make([]float64, n+2),
	}
	if circular {
		m.QM2 = make([]float64, n+2)
	}
	return m
}

// Scale returns the rescaling factor applied to intervals of length d.
func (m *Matrices) Scale(d int) float64 { return m.sc.scale[d] }

// ExpMLbase returns the rescaled weight of d unpaired multiloop bases.
func (m *Matrices) ExpMLbase(d int) float64 { return m.sc.expMLbase[d] }
