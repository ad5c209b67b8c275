package solver

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/hessian"
	"go.viam.com/rba/rbaerrors"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spantree"
)

// schurReduce assembles the damped, landmark-eliminated reduced system S*dp = b over the
// optimized edges: S = H~Ap - HApf * H~f^-1 * HApf^T, b = GAp - HApf * H~f^-1 * Gf. Returns the
// per-landmark damped-Hf inverse so backSubstituteLandmarks can reuse it.
func schurReduce(
	sys *hessian.System,
	edgeIDs []int,
	edgeIndex map[int]int,
	landmarkIDs []int,
	lmIndex map[int]int,
	dims rbatypes.Dims,
	lambda float64,
) (*mat.Dense, *mat.VecDense, map[int]*mat.Dense, error) {
	dp := dims.PoseDim
	n := len(edgeIDs) * dp

	s := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)

	for pair, block := range sys.HAp {
		i, iok := edgeIndex[pair.I]
		j, jok := edgeIndex[pair.J]
		if !iok || !jok {
			continue
		}
		damped := block
		if pair.I == pair.J {
			damped = dampedCopy(block, lambda)
		}
		setBlock(s, i*dp, j*dp, damped)
		if pair.I != pair.J {
			setBlock(s, j*dp, i*dp, damped.T())
		}
	}
	for edgeID, g := range sys.GAp {
		i, ok := edgeIndex[edgeID]
		if !ok {
			continue
		}
		setVecBlock(b, i*dp, g)
	}

	hfInv := make(map[int]*mat.Dense, len(landmarkIDs))
	for _, lmID := range landmarkIDs {
		hf, ok := sys.Hf[lmID]
		if !ok {
			continue
		}
		damped := dampedCopy(hf, lambda)
		inv := mat.NewDense(damped.RawMatrix().Rows, damped.RawMatrix().Cols, nil)
		if err := inv.Inverse(damped); err != nil {
			return nil, nil, nil, rbaerrors.NewLinearSolveFailure(lambda)
		}
		hfInv[lmID] = inv

		gf := sys.Gf[lmID]
		hfInvGf := mat.NewVecDense(gf.Len(), nil)
		hfInvGf.MulVec(inv, gf)

		var touching []int
		for edgeID := range edgeIndex {
			if _, ok := sys.HApf[hessian.HApfKey{EdgeID: edgeID, LmID: lmID}]; ok {
				touching = append(touching, edgeID)
			}
		}
		for _, ei := range touching {
			bi := sys.HApf[hessian.HApfKey{EdgeID: ei, LmID: lmID}]
			ii := edgeIndex[ei]

			contrib := mat.NewVecDense(dp, nil)
			contrib.MulVec(bi, hfInvGf)
			sub := mat.NewVecDense(dp, nil)
			for r := 0; r < dp; r++ {
				sub.SetVec(r, b.AtVec(ii*dp+r)-contrib.AtVec(r))
			}
			setVecBlock(b, ii*dp, sub)

			for _, ej := range touching {
				bj := sys.HApf[hessian.HApfKey{EdgeID: ej, LmID: lmID}]
				jj := edgeIndex[ej]

				tmp := mat.NewDense(dp, inv.RawMatrix().Cols, nil)
				tmp.Mul(bi, inv)
				block := mat.NewDense(dp, dp, nil)
				block.Mul(tmp, bj.T())

				subtractBlock(s, ii*dp, jj*dp, block)
			}
		}
	}

	return s, b, hfInv, nil
}

func dampedCopy(a *mat.Dense, lambda float64) *mat.Dense {
	r, c := a.Dims()
	out := mat.DenseCopyOf(a)
	for i := 0; i < r && i < c; i++ {
		out.Set(i, i, out.At(i, i)+lambda*a.At(i, i))
	}
	return out
}

func setBlock(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(row+i, col+j, src.At(i, j))
		}
	}
}

func subtractBlock(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(row+i, col+j, dst.At(row+i, col+j)-src.At(i, j))
		}
	}
}

func setVecBlock(dst *mat.VecDense, offset int, src *mat.VecDense) {
	for i := 0; i < src.Len(); i++ {
		dst.SetVec(offset+i, src.AtVec(i))
	}
}

// solveCholesky solves s*dp = b via dense Cholesky factorization.
func solveCholesky(s *mat.Dense, b *mat.VecDense) (*mat.VecDense, bool) {
	n, _ := s.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, s.At(i, j))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, false
	}
	dst := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(dst, b); err != nil {
		return nil, false
	}
	return dst, true
}

// backSubstituteLandmarks recovers each optimized landmark's step df from the reduced system's
// solution dp: H~f * df = Gf - HApf^T * dp.
func backSubstituteLandmarks(
	sys *hessian.System,
	landmarkIDs []int,
	lmIndex map[int]int,
	hfInv map[int]*mat.Dense,
	dp *mat.VecDense,
	edgeIDs []int,
	edgeIndex map[int]int,
	dims rbatypes.Dims,
) map[int]*mat.VecDense {
	out := make(map[int]*mat.VecDense, len(landmarkIDs))
	poseDim := dims.PoseDim
	for _, lmID := range landmarkIDs {
		inv, ok := hfInv[lmID]
		if !ok {
			continue
		}
		gf := sys.Gf[lmID]
		rhs := mat.VecDenseCopyOf(gf)
		for edgeID, ii := range edgeIndex {
			bi, ok := sys.HApf[hessian.HApfKey{EdgeID: edgeID, LmID: lmID}]
			if !ok {
				continue
			}
			dpEdge := mat.NewVecDense(poseDim, nil)
			for r := 0; r < poseDim; r++ {
				dpEdge.SetVec(r, dp.AtVec(ii*poseDim+r))
			}
			term := mat.NewVecDense(bi.RawMatrix().Cols, nil)
			term.MulVec(bi.T(), dpEdge)
			rhs.SubVec(rhs, term)
		}
		df := mat.NewVecDense(rhs.Len(), nil)
		df.MulVec(inv, rhs)
		out[lmID] = df
	}
	return out
}

type stateSnapshot struct {
	edgePoses    map[int]any
	landmarkPos  map[int]*mat.VecDense
}

func snapshotState(g *graph.Graph, edgeIDs, landmarkIDs []int) *stateSnapshot {
	s := &stateSnapshot{edgePoses: make(map[int]any), landmarkPos: make(map[int]*mat.VecDense)}
	for _, id := range edgeIDs {
		s.edgePoses[id] = g.Edge(id).Pose
	}
	for _, id := range landmarkIDs {
		s.landmarkPos[id] = mat.VecDenseCopyOf(g.Landmark(id).Position)
	}
	return s
}

func restoreState(g *graph.Graph, s *stateSnapshot) {
	for id, pose := range s.edgePoses {
		g.Edge(id).Pose = pose
	}
	for id, pos := range s.landmarkPos {
		g.Landmark(id).Position = pos
	}
}

// applyUpdate composes each optimized edge's pose with its tangent step via the algebra's Exp
// (a right-multiplicative perturbation, matching the Jacobian convention) and adds each
// optimized landmark's step directly to its position.
func applyUpdate(
	g *graph.Graph,
	trees *spantree.SpanningTrees,
	algebra rbatypes.PoseAlgebra,
	edgeIDs []int,
	dp *mat.VecDense,
	landmarkIDs []int,
	df map[int]*mat.VecDense,
	dims rbatypes.Dims,
) {
	poseDim := dims.PoseDim
	for i, edgeID := range edgeIDs {
		delta := mat.NewVecDense(poseDim, nil)
		for r := 0; r < poseDim; r++ {
			delta.SetVec(r, dp.AtVec(i*poseDim+r))
		}
		edge := g.Edge(edgeID)
		edge.Pose = algebra.Compose(edge.Pose, algebra.Exp(delta))
		trees.MarkDirty(edgeID)
	}
	for _, lmID := range landmarkIDs {
		delta, ok := df[lmID]
		if !ok {
			continue
		}
		lm := g.Landmark(lmID)
		updated := mat.VecDenseCopyOf(lm.Position)
		updated.AddVec(updated, delta)
		lm.Position = updated
	}
}

// predictReduction computes the LM predicted-reduction denominator dxᵀ(λDx + g) over both the
// pose and landmark unknowns, used as ρ's denominator.
func predictReduction(
	sys *hessian.System,
	edgeIDs []int,
	edgeIndex map[int]int,
	landmarkIDs []int,
	lmIndex map[int]int,
	dp *mat.VecDense,
	df map[int]*mat.VecDense,
	dims rbatypes.Dims,
	lambda float64,
) float64 {
	poseDim := dims.PoseDim
	total := 0.0
	for i, edgeID := range edgeIDs {
		g := sys.GAp[edgeID]
		hap := sys.HAp[hessian.EdgePair{I: edgeID, J: edgeID}]
		for r := 0; r < poseDim; r++ {
			damp := 0.0
			if hap != nil {
				damp = lambda * hap.At(r, r) * dp.AtVec(i*poseDim+r)
			}
			total += dp.AtVec(i*poseDim+r) * (damp + g.AtVec(r))
		}
	}
	for _, lmID := range landmarkIDs {
		delta, ok := df[lmID]
		if !ok {
			continue
		}
		g := sys.Gf[lmID]
		hf := sys.Hf[lmID]
		for r := 0; r < delta.Len(); r++ {
			damp := 0.0
			if hf != nil {
				damp = lambda * hf.At(r, r) * delta.AtVec(r)
			}
			total += delta.AtVec(r) * (damp + g.AtVec(r))
		}
	}
	return total
}

// conditionNumber computes the condition number of the assembled (undamped) HAp matrix over
// edgeIDs, off-diagonal blocks included, via SVD, an optional diagnostic a caller can request.
func conditionNumber(sys *hessian.System, edgeIDs []int, edgeIndex map[int]int, dims rbatypes.Dims) float64 {
	poseDim := dims.PoseDim
	n := len(edgeIDs) * poseDim
	if n == 0 {
		return 0
	}
	full := mat.NewDense(n, n, nil)
	for pair, block := range sys.HAp {
		i, iok := edgeIndex[pair.I]
		j, jok := edgeIndex[pair.J]
		if !iok || !jok {
			continue
		}
		setBlock(full, i*poseDim, j*poseDim, block)
		if pair.I != pair.J {
			setBlock(full, j*poseDim, i*poseDim, block.T())
		}
	}
	var svd mat.SVD
	if !svd.Factorize(full, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 || values[len(values)-1] == 0 {
		return 0
	}
	return values[0] / values[len(values)-1]
}

// landmarkCovariance returns the diagonal of each optimized landmark's damped-Hf inverse, this
// module's chosen approximation for landmark covariance recovery (see DESIGN.md).
func landmarkCovariance(sys *hessian.System, landmarkIDs []int, lambda float64, dims rbatypes.Dims) map[int][]float64 {
	out := make(map[int][]float64, len(landmarkIDs))
	for _, lmID := range landmarkIDs {
		hf, ok := sys.Hf[lmID]
		if !ok {
			continue
		}
		damped := dampedCopy(hf, lambda)
		inv := mat.NewDense(damped.RawMatrix().Rows, damped.RawMatrix().Cols, nil)
		if err := inv.Inverse(damped); err != nil {
			continue
		}
		diag := make([]float64, dims.LandmarkDim)
		for i := 0; i < dims.LandmarkDim; i++ {
			diag[i] = inv.At(i, i)
		}
		out[lmID] = diag
	}
	return out
}
