// Package jacobian builds the sparse block Jacobians ∂h/∂Ap and ∂h/∂f for every observation,
// driven by walking that observation's spanning-tree path. Both an analytic implementation
// (the default) and a numeric finite-difference implementation exist so the two can be
// cross-checked against each other.
package jacobian

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spantree"
)

// EdgeColumn is one kf2kf edge's D_o x D_p contribution to an observation's Jacobian row.
type EdgeColumn struct {
	EdgeID int
	Block  *mat.Dense
}

// Observation is the full Jacobian row for one observation: its per-edge pose columns, its
// landmark column (nil if the landmark is known-position), and its residual.
type Observation struct {
	ObsIdx       int
	EdgeColumns  []EdgeColumn
	LandmarkCol  *mat.Dense // D_o x D_l, nil if the landmark is known-position
	Residual     *mat.VecDense
	Valid        bool
}

// PathEdgeIDs returns the symbolic structure for an observation: the kf2kf edge ids on the
// spanning-tree path between its observing KF and its landmark's base KF. BuildNumeric calls it
// for every observation on every call; the result is not cached across LM iterations.
func PathEdgeIDs(g *graph.Graph, trees *spantree.SpanningTrees, obsIdx int) []int {
	obs := g.Observation(obsIdx)
	lm := g.Landmark(obs.LmID)
	if lm == nil || lm.BaseKF == obs.ObservingKF {
		return nil
	}
	tree := trees.Tree(obs.ObservingKF)
	edgeIDs, _ := spantree.PathEdges(g, tree, lm.BaseKF)
	return edgeIDs
}

// BuildAnalytic computes the analytic Jacobian (and residual) for one observation. The
// relevant tree (rooted at the observing KF) must already have fresh numeric poses
// (UpdateNumeric must have been called since the last change to any edge on the path).
func BuildAnalytic(
	g *graph.Graph,
	trees *spantree.SpanningTrees,
	algebra rbatypes.PoseAlgebra,
	sensor rbatypes.SensorModel,
	sensorParams any,
	obsIdx int,
) *Observation {
	obs := g.Observation(obsIdx)
	lm := g.Landmark(obs.LmID)
	out := &Observation{ObsIdx: obsIdx}
	if obs.Invalid || lm == nil {
		return out
	}

	tree := trees.Tree(obs.ObservingKF)
	relPose, _ := tree.Pose(lm.BaseKF)
	if relPose == nil {
		return out
	}

	pred, ok := sensor.Project(relPose, lm.Position, sensorParams)
	if !ok {
		return out
	}
	dhdT, dhdf, ok := sensor.Jacobians(relPose, lm.Position, sensorParams)
	if !ok {
		return out
	}

	residual := mat.NewVecDense(pred.Len(), nil)
	residual.SubVec(obs.Obs, pred)
	out.Residual = residual
	out.Valid = true

	if !lm.Known {
		out.LandmarkCol = dhdf
	}

	if lm.BaseKF == obs.ObservingKF {
		return out
	}

	baseKF := lm.BaseKF
	for cur := baseKF; cur != tree.Root; {
		pred := tree.Pred(cur)
		edgeID := tree.PredEdge(cur)
		edge := g.Edge(edgeID)
		isForward := edge.From == pred && edge.To == cur

		var m *mat.Dense
		if isForward {
			m = adjointFromTo(algebra, tree, cur, baseKF)
		} else {
			m = adjointFromTo(algebra, tree, pred, baseKF)
			m.Scale(-1, m)
		}

		block := mat.NewDense(dhdT.RawMatrix().Rows, m.RawMatrix().Cols, nil)
		block.Mul(dhdT, m)
		out.EdgeColumns = append(out.EdgeColumns, EdgeColumn{EdgeID: edgeID, Block: block})

		cur = pred
	}
	return out
}

// adjointFromTo returns Ad(Inverse(T(from <- baseKF))), reading T(obsKF <- from) and
// T(obsKF <- baseKF) off the tree rooted at obsKF and composing: T(from<-baseKF) =
// Inverse(T(obsKF<-from)) (+) T(obsKF<-baseKF).
func adjointFromTo(algebra rbatypes.PoseAlgebra, tree *spantree.Tree, from, baseKF int) *mat.Dense {
	obsToFrom, _ := tree.Pose(from)
	obsToBase, _ := tree.Pose(baseKF)
	fromToBase := algebra.Compose(algebra.Inverse(obsToFrom), obsToBase)
	return algebra.Adjoint(algebra.Inverse(fromToBase))
}

// BuildNumeric computes a finite-difference approximation of the same Jacobian, for
// cross-checking BuildAnalytic. It perturbs each edge's pose independently (re-walking the path
// without touching the cached tree) and the landmark position, rather than trusting any cached
// composed pose.
func BuildNumeric(
	g *graph.Graph,
	trees *spantree.SpanningTrees,
	algebra rbatypes.PoseAlgebra,
	sensor rbatypes.SensorModel,
	sensorParams any,
	obsIdx int,
	eps float64,
) *Observation {
	obs := g.Observation(obsIdx)
	lm := g.Landmark(obs.LmID)
	out := &Observation{ObsIdx: obsIdx}
	if obs.Invalid || lm == nil {
		return out
	}

	dims := sensor.Dims()
	edgeIDs := PathEdgeIDs(g, trees, obsIdx)

	composed := func(perturbEdge int, delta *mat.VecDense) any {
		return evalPathPose(g, algebra, obs.ObservingKF, lm.BaseKF, perturbEdge, delta)
	}

	baseRel := composed(-1, nil)
	pred, ok := sensor.Project(baseRel, lm.Position, sensorParams)
	if !ok {
		return out
	}
	residual := mat.NewVecDense(pred.Len(), nil)
	residual.SubVec(obs.Obs, pred)
	out.Residual = residual
	out.Valid = true

	for _, edgeID := range edgeIDs {
		block := mat.NewDense(pred.Len(), dims.PoseDim, nil)
		for d := 0; d < dims.PoseDim; d++ {
			delta := mat.NewVecDense(dims.PoseDim, nil)
			delta.SetVec(d, eps)
			relPlus := composed(edgeID, delta)
			predPlus, okPlus := sensor.Project(relPlus, lm.Position, sensorParams)
			if !okPlus {
				continue
			}
			for r := 0; r < pred.Len(); r++ {
				block.Set(r, d, (predPlus.AtVec(r)-pred.AtVec(r))/eps)
			}
		}
		out.EdgeColumns = append(out.EdgeColumns, EdgeColumn{EdgeID: edgeID, Block: block})
	}

	if !lm.Known {
		block := mat.NewDense(pred.Len(), dims.LandmarkDim, nil)
		for d := 0; d < dims.LandmarkDim; d++ {
			fPlus := mat.VecDenseCopyOf(lm.Position)
			fPlus.SetVec(d, fPlus.AtVec(d)+eps)
			predPlus, okPlus := sensor.Project(baseRel, fPlus, sensorParams)
			if !okPlus {
				continue
			}
			for r := 0; r < pred.Len(); r++ {
				block.Set(r, d, (predPlus.AtVec(r)-pred.AtVec(r))/eps)
			}
		}
		out.LandmarkCol = block
	}
	return out
}

// evalPathPose recomputes T(obsKF <- baseKF) by walking the graph directly (ignoring the
// cached tree's stored poses), optionally perturbing one edge's pose by delta (in that edge's
// own right-tangent frame) before composing.
func evalPathPose(g *graph.Graph, algebra rbatypes.PoseAlgebra, obsKF, baseKF, perturbEdge int, delta *mat.VecDense) any {
	path, ok := g.FindPathBFS(obsKF, baseKF)
	if !ok {
		return algebra.Identity()
	}
	pose := algebra.Identity()
	for i := 0; i < len(path)-1; i++ {
		from, to := path[i], path[i+1]
		edgeID := -1
		for _, eid := range g.IncidentEdges(from) {
			e := g.Edge(eid)
			if (e.From == from && e.To == to) || (e.From == to && e.To == from) {
				edgeID = eid
				break
			}
		}
		e := g.Edge(edgeID)
		edgePose := e.Pose
		if edgeID == perturbEdge && delta != nil {
			edgePose = algebra.Compose(edgePose, algebra.Exp(delta))
		}
		var step any
		if e.From == from {
			step = edgePose
		} else {
			step = algebra.Inverse(edgePose)
		}
		pose = algebra.Compose(pose, step)
	}
	return pose
}
