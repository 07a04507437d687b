package pf

// Loop-context flags. A set bit in the hard-constraint matrix means the pair
// may close (or, for the *Enc flags, be enclosed by) a loop of that kind.
const (
	ContextExtLoop byte = 1 << iota
	ContextHpLoop
	ContextIntLoop
	ContextIntLoopEnc
	ContextMBLoop
	ContextMBLoopEnc
)

// ContextAllLoops marks a pair admissible in every loop context.
const ContextAllLoops = ContextExtLoop | ContextHpLoop | ContextIntLoop |
	ContextIntLoopEnc | ContextMBLoop | ContextMBLoopEnc

// HardConstraints stores, per pair, the loop contexts it may take part in,
// and, per position, whether it may stay unpaired. The recursion engines
// consume the derived Up* run-length tables: UpExt[i] is the length of the
// longest stretch starting at i that may remain unpaired inside an exterior
// loop, and likewise UpHP, UpInt and UpML for the other loop kinds.
//
// Constraint edits must happen between compound construction and Pf; the
// engines treat the tables as read-only and internally consistent.
type HardConstraints struct {
	n int
	// Matrix is column-wise addressed (see triIndex.ji).
	Matrix []byte

	UpExt, UpHP, UpInt, UpML []int

	unpairedOK []bool
}

func newHardConstraints(n int, idx *triIndex) *HardConstraints {
	hc := &HardConstraints{
		n:          n,
		Matrix:     make([]byte, idx.cells()),
		UpExt:      make([]int, n+2),
		UpHP:       make([]int, n+2),
		UpInt:      make([]int, n+2),
		UpML:       make([]int, n+2),
		unpairedOK: make([]bool, n+2),
	}
	for i := 1; i <= n; i++ {
		hc.unpairedOK[i] = true
	}
	return hc
}

// defaultFill marks every pair with a known pair type and span above turn as
// admissible in all loop contexts.
func (hc *HardConstraints) defaultFill(idx *triIndex, ptype []int, turn int) {
	for j := 1; j <= hc.n; j++ {
		for i := 1; i < j; i++ {
			if j-i > turn && ptype[idx.ji(i, j)] != 0 {
				hc.Matrix[idx.ji(i, j)] = ContextAllLoops
			}
		}
	}
}

// ProhibitPair removes the pair (i,j) from every loop context.
func (hc *HardConstraints) ProhibitPair(i, j int) {
	if i > j {
		i, j = j, i
	}
	hc.Matrix[j*(j-1)/2+i] = 0
}

// ForcePair demands that i pairs with j: every pair sharing an endpoint with
// or crossing (i,j) is removed, (i,j) itself becomes admissible in all loop
// contexts (even when noncanonical), and both positions lose the option of
// staying unpaired.
func (hc *HardConstraints) ForcePair(i, j int) {
	if i > j {
		i, j = j, i
	}
	for l := 1; l <= hc.n; l++ {
		for k := 1; k < l; k++ {
			if k == i && l == j {
				continue
			}
			shares := k == i || k == j || l == i || l == j
			crosses := (k < i && i < l && l < j) || (i < k && k < j && j < l)
			if shares || crosses {
				hc.Matrix[l*(l-1)/2+k] = 0
			}
		}
	}
	hc.Matrix[j*(j-1)/2+i] = ContextAllLoops
	hc.unpairedOK[i] = false
	hc.unpairedOK[j] = false
}

// ForceUnpaired demands that position i stays unpaired in every structure.
func (hc *HardConstraints) ForceUnpaired(i int) {
	for l := 1; l <= hc.n; l++ {
		for k := 1; k < l; k++ {
			if k == i || l == i {
				hc.Matrix[l*(l-1)/2+k] = 0
			}
		}
	}
}

// ProhibitUnpaired forbids position i from staying unpaired.
func (hc *HardConstraints) ProhibitUnpaired(i int) {
	hc.unpairedOK[i] = false
}

// prepare recomputes the Up* run-length tables from the per-position
// unpaired flags. Called by the engines before each pass.
func (hc *HardConstraints) prepare() {
	for i := hc.n; i >= 1; i-- {
		run := 0
		if hc.unpairedOK[i] {
			run = hc.UpExt[i+1] + 1
		}
		hc.UpExt[i] = run
		hc.UpHP[i] = run
		hc.UpInt[i] = run
		hc.UpML[i] = run
	}
}

// Decomp identifies the decomposition step a generalized soft-constraint
// callback is asked to weight.
type Decomp int

const (
	// DecompExtUp: [i,j] fully unpaired in the exterior loop.
	DecompExtUp Decomp = iota
	// DecompExtExt: exterior part [i,j] shrinks to [k,l].
	DecompExtExt
	// DecompExtStem: (i,j) closes an exterior stem.
	DecompExtStem
	// DecompExtExtExt: exterior split [i,k] + [k+1,j].
	DecompExtExtExt
	// DecompMLML: multiloop part [i,j] shrinks to [k,l].
	DecompMLML
	// DecompMLStem: (i,j) closes a multiloop stem.
	DecompMLStem
	// DecompMLMLML: multiloop split [i,k] + [k+1,j].
	DecompMLMLML
	// DecompPairHP: (i,j) closes a hairpin.
	DecompPairHP
	// DecompPairIL: (i,j) closes an interior loop with inner pair (k,l).
	DecompPairIL
	// DecompPairML: (i,j) closes a multiloop.
	DecompPairML
)

// SoftConstraints attaches multiplicative pseudo-energy weights to
// decomposition steps. Nil fields are neutral.
type SoftConstraints struct {
	// ExpEnergyUp[i][u] is the weight of positions i..i+u-1 staying
	// unpaired. Rows and runs are 1-based; ExpEnergyUp[i][0] must be 1.
	ExpEnergyUp [][]float64
	// ExpEnergyStack[i] is the per-position weight contributed when i takes
	// part in a perfectly stacked pair.
	ExpEnergyStack []float64
	// ExpF, when set, weights every decomposition step (i,j) -> (k,l).
	ExpF func(i, j, k, l int, d Decomp) float64
}

// Unstructured-domain (ligand) loop classes passed to the domain callback.
type DomainLoop uint

const (
	DomainExtLoop DomainLoop = 1 << iota
	DomainMLLoop
	// DomainMotif marks a bound-motif production instead of a plain
	// unpaired stretch.
	DomainMotif
)

// Domains models ligand binding to unpaired stretches. ExpEnergy returns
// the weight of the domain covering [i,j] in the given loop class; MotifSizes
// lists the distinct bound-motif widths the production rules may emit.
// ExpProd, when set, runs once before the linear pass to precompute
// production state.
type Domains struct {
	MotifSizes []int
	ExpEnergy  func(fc *FoldCompound, i, j int, loop DomainLoop) float64
	ExpProd    func(fc *FoldCompound)
}
