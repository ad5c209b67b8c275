// Package hessian assembles the sparse block Hessians HAp, Hf, HApf = JᵀJ from the sparse
// block Jacobians, split into a symbolic build (structure only) and a numeric update (pure
// arithmetic, invalid-block-aware). The numeric update does not take the symbolic structure: it
// derives the blocks again on every call, and no Symbolic is kept across LM iterations.
package hessian

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/jacobian"
	"go.viam.com/rba/rbatypes"
)

// EdgePair is an unordered pair of kf2kf edge ids, normalized so I <= J, used to key HAp's
// upper-triangle-only storage.
type EdgePair struct{ I, J int }

// HApfKey keys the rectangular HApf block for one (edge, landmark) pair.
type HApfKey struct {
	EdgeID int
	LmID   int
}

// Symbolic is the structure of the sparse blocks an observation set implies: which
// (edge,edge), (landmark), and (edge,landmark) blocks exist. BuildNumeric does not use it; the
// solver rebuilds both the structure and the numeric values through BuildNumeric every iteration.
type Symbolic struct {
	Dims         rbatypes.Dims
	EdgePairs    []EdgePair
	Landmarks    []int
	HApfKeys     []HApfKey
}

// BuildSymbolic derives the block structure implied by a set of observation Jacobians. lmOf
// maps an observation's index back to the landmark id it observed.
func BuildSymbolic(dims rbatypes.Dims, obsJacobians []*jacobian.Observation, lmOf func(obsIdx int) int) *Symbolic {
	pairSet := make(map[EdgePair]bool)
	lmSet := make(map[int]bool)
	apfSet := make(map[HApfKey]bool)

	for _, oj := range obsJacobians {
		if !oj.Valid {
			continue
		}
		for i, ci := range oj.EdgeColumns {
			for j := i; j < len(oj.EdgeColumns); j++ {
				pairSet[normalizePair(ci.EdgeID, oj.EdgeColumns[j].EdgeID)] = true
			}
			if oj.LandmarkCol != nil {
				apfSet[HApfKey{EdgeID: ci.EdgeID, LmID: lmOf(oj.ObsIdx)}] = true
			}
		}
		if oj.LandmarkCol != nil {
			lmSet[lmOf(oj.ObsIdx)] = true
		}
	}

	s := &Symbolic{Dims: dims}
	for p := range pairSet {
		s.EdgePairs = append(s.EdgePairs, p)
	}
	sort.Slice(s.EdgePairs, func(i, j int) bool {
		if s.EdgePairs[i].I != s.EdgePairs[j].I {
			return s.EdgePairs[i].I < s.EdgePairs[j].I
		}
		return s.EdgePairs[i].J < s.EdgePairs[j].J
	})
	for lm := range lmSet {
		s.Landmarks = append(s.Landmarks, lm)
	}
	sort.Ints(s.Landmarks)
	for k := range apfSet {
		s.HApfKeys = append(s.HApfKeys, k)
	}
	return s
}

func normalizePair(a, b int) EdgePair {
	if a <= b {
		return EdgePair{I: a, J: b}
	}
	return EdgePair{I: b, J: a}
}

// System holds the numeric Hessian blocks and gradient vectors for one LM iteration's linear
// system.
type System struct {
	Dims   rbatypes.Dims
	HAp    map[EdgePair]*mat.Dense
	Hf     map[int]*mat.Dense
	HApf   map[HApfKey]*mat.Dense
	GAp    map[int]*mat.VecDense
	Gf     map[int]*mat.VecDense

	TotalError       float64
	BlocksSkipped    int
}

// HuberWeight returns the IRLS reweighting factor 1/sqrt(1+(delta/k)^2) for a Mahalanobis
// residual norm delta, matching the Huber kernel ρ(δ) = 2k²(√(1+(δ/k)²)−1) (its derivative
// ρ'(δ)/(2δ) reduces to this closed form).
func HuberWeight(delta, k float64) float64 {
	if k <= 0 {
		return 1
	}
	return 1 / math.Sqrt(1+(delta/k)*(delta/k))
}

// BuildNumeric assembles HAp, Hf, HApf, GAp, Gf from a set of observation Jacobians, each
// paired with its landmark id and an information matrix. useRobustKernel applies HuberWeight
// to each observation's residual norm before accumulating. The returned System's BlocksSkipped
// counts the invalid observations skipped, one per observation; it does not count the
// individual block multiplications those observations would have contributed.
func BuildNumeric(
	dims rbatypes.Dims,
	obsJacobians []*jacobian.Observation,
	lmOf func(obsIdx int) int,
	information func(obsIdx int) *mat.Dense,
	useRobustKernel bool,
	huberK float64,
) *System {
	sys := &System{
		Dims: dims,
		HAp:  make(map[EdgePair]*mat.Dense),
		Hf:   make(map[int]*mat.Dense),
		HApf: make(map[HApfKey]*mat.Dense),
		GAp:  make(map[int]*mat.VecDense),
		Gf:   make(map[int]*mat.VecDense),
	}

	for _, oj := range obsJacobians {
		if !oj.Valid {
			sys.BlocksSkipped++
			continue
		}
		info := information(oj.ObsIdx)
		w := 1.0
		if useRobustKernel {
			mahal := mahalanobisNorm(oj.Residual, info)
			w = HuberWeight(mahal, huberK)
		}
		weighted := mat.NewDense(info.RawMatrix().Rows, info.RawMatrix().Cols, nil)
		weighted.Scale(w, info)

		wr := mat.NewVecDense(oj.Residual.Len(), nil)
		wr.MulVec(weighted, oj.Residual)
		sys.TotalError += mat.Dot(oj.Residual, wr)

		for i, ci := range oj.EdgeColumns {
			accumulateGAp(sys, ci.EdgeID, ci.Block, weighted, oj.Residual)
			for j := i; j < len(oj.EdgeColumns); j++ {
				cj := oj.EdgeColumns[j]
				accumulateHAp(sys, ci.EdgeID, cj.EdgeID, ci.Block, cj.Block, weighted)
			}
			if oj.LandmarkCol != nil {
				accumulateHApf(sys, ci.EdgeID, lmOf(oj.ObsIdx), ci.Block, oj.LandmarkCol, weighted)
			}
		}
		if oj.LandmarkCol != nil {
			lmID := lmOf(oj.ObsIdx)
			accumulateHf(sys, lmID, oj.LandmarkCol, weighted)
			accumulateGf(sys, lmID, oj.LandmarkCol, weighted, oj.Residual)
		}
	}
	return sys
}

func mahalanobisNorm(r *mat.VecDense, info *mat.Dense) float64 {
	tmp := mat.NewVecDense(r.Len(), nil)
	tmp.MulVec(info, r)
	return math.Sqrt(math.Max(0, mat.Dot(r, tmp)))
}

func accumulateHAp(sys *System, edgeI, edgeJ int, jpI, jpJ *mat.Dense, w *mat.Dense) {
	pair := normalizePair(edgeI, edgeJ)
	var a, b *mat.Dense = jpI, jpJ
	if edgeI > edgeJ {
		a, b = jpJ, jpI
	}
	tmp := mat.NewDense(a.RawMatrix().Cols, w.RawMatrix().Cols, nil)
	tmp.Mul(a.T(), w)
	block := mat.NewDense(a.RawMatrix().Cols, b.RawMatrix().Cols, nil)
	block.Mul(tmp, b)
	addInto(sys.HAp, pair, block)
}

func accumulateHf(sys *System, lmID int, jf *mat.Dense, w *mat.Dense) {
	tmp := mat.NewDense(jf.RawMatrix().Cols, w.RawMatrix().Cols, nil)
	tmp.Mul(jf.T(), w)
	block := mat.NewDense(jf.RawMatrix().Cols, jf.RawMatrix().Cols, nil)
	block.Mul(tmp, jf)
	if cur, ok := sys.Hf[lmID]; ok {
		cur.Add(cur, block)
	} else {
		sys.Hf[lmID] = block
	}
}

func accumulateHApf(sys *System, edgeID, lmID int, jp, jf *mat.Dense, w *mat.Dense) {
	tmp := mat.NewDense(jp.RawMatrix().Cols, w.RawMatrix().Cols, nil)
	tmp.Mul(jp.T(), w)
	block := mat.NewDense(jp.RawMatrix().Cols, jf.RawMatrix().Cols, nil)
	block.Mul(tmp, jf)
	key := HApfKey{EdgeID: edgeID, LmID: lmID}
	if cur, ok := sys.HApf[key]; ok {
		cur.Add(cur, block)
	} else {
		sys.HApf[key] = block
	}
}

func accumulateGAp(sys *System, edgeID int, jp *mat.Dense, w *mat.Dense, r *mat.VecDense) {
	wr := mat.NewVecDense(r.Len(), nil)
	wr.MulVec(w, r)
	g := mat.NewVecDense(jp.RawMatrix().Cols, nil)
	g.MulVec(jp.T(), wr)
	if cur, ok := sys.GAp[edgeID]; ok {
		cur.AddVec(cur, g)
	} else {
		sys.GAp[edgeID] = g
	}
}

func accumulateGf(sys *System, lmID int, jf *mat.Dense, w *mat.Dense, r *mat.VecDense) {
	wr := mat.NewVecDense(r.Len(), nil)
	wr.MulVec(w, r)
	g := mat.NewVecDense(jf.RawMatrix().Cols, nil)
	g.MulVec(jf.T(), wr)
	if cur, ok := sys.Gf[lmID]; ok {
		cur.AddVec(cur, g)
	} else {
		sys.Gf[lmID] = g
	}
}

func addInto(m map[EdgePair]*mat.Dense, pair EdgePair, block *mat.Dense) {
	if cur, ok := m[pair]; ok {
		cur.Add(cur, block)
	} else {
		m[pair] = block
	}
}
