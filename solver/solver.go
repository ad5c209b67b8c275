// Package solver implements the Levenberg-Marquardt outer loop with Schur-complement
// elimination of landmark unknowns and a dense Cholesky solve on the reduced system.
package solver

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/hessian"
	"go.viam.com/rba/jacobian"
	"go.viam.com/rba/logging"
	"go.viam.com/rba/rbaerrors"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spantree"
)

// Params bundles every LM/Schur tuning knob, with defaults set by DefaultParams.
type Params struct {
	MaxIters                          int
	MaxErrorPerObsToStop              float64
	MaxRho                            float64
	MaxLambda                         float64
	MinErrorReductionRatioToRelinearize float64
	UseRobustKernel                   bool
	KernelParam                       float64
	NumericJacobians                  bool
	ComputeConditionNumber            bool
	ComputeSparsityStats              bool
}

// DefaultParams returns reasonable tuning defaults.
func DefaultParams() Params {
	return Params{
		MaxIters:                          20,
		MaxErrorPerObsToStop:              1e-9,
		MaxRho:                            1.0,
		MaxLambda:                         1e20,
		MinErrorReductionRatioToRelinearize: 0.01,
		UseRobustKernel:                   true,
		KernelParam:                       1.0,
	}
}

// Problem bundles the pieces a Run call needs: the graph, the algebra and sensor model, the
// noise model, and the spanning trees (already populated for whichever roots appear among the
// observations being optimized).
type Problem struct {
	Graph       *graph.Graph
	Trees       *spantree.SpanningTrees
	Algebra     rbatypes.PoseAlgebra
	Sensor      rbatypes.SensorModel
	SensorParams any
	Noise       rbatypes.NoiseModel
}

// Report is the per-run diagnostic output, carrying the same TOptimizeExtraOutputInfo-style
// counters the original exposes.
type Report struct {
	Iterations           int
	Accepted             int
	Rejected             int
	InitialSqError       float64
	FinalSqError         float64
	Converged            bool
	NonConvergenceReason error
	ConditionNumberHAp   float64
	NumObservations      int
	NumJacobians         int
	NumBlocksSkipped     int
	LandmarkCovariance   map[int][]float64 // diagonal of H~f^-1 per optimized landmark, if requested
}

// Run executes the LM outer loop, optimizing the poses of edgeIDs and the positions of
// landmarkIDs against every observation in obsIdxs, in place on p.Graph.
func Run(
	ctx context.Context,
	p *Problem,
	edgeIDs []int,
	landmarkIDs []int,
	obsIdxs []int,
	params Params,
	logger logging.Logger,
	recoverCovariance bool,
) (*Report, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("solver")
	}
	dims := p.Sensor.Dims()
	edgeIndex := indexOf(edgeIDs)
	lmIndex := indexOf(landmarkIDs)

	lambda := 1e-3
	report := &Report{NumObservations: len(obsIdxs)}

	roots := distinctRoots(p.Graph, obsIdxs)
	for _, r := range roots {
		p.Trees.Tree(r)
	}

	eval := func() ([]*jacobian.Observation, *hessian.System, float64) {
		p.Trees.UpdateNumeric(roots)
		obsJac := make([]*jacobian.Observation, 0, len(obsIdxs))
		for _, idx := range obsIdxs {
			var oj *jacobian.Observation
			if params.NumericJacobians {
				oj = jacobian.BuildNumeric(p.Graph, p.Trees, p.Algebra, p.Sensor, p.SensorParams, idx, 1e-6)
			} else {
				oj = jacobian.BuildAnalytic(p.Graph, p.Trees, p.Algebra, p.Sensor, p.SensorParams, idx)
			}
			obsJac = append(obsJac, oj)
		}
		lmOf := func(obsIdx int) int { return p.Graph.Observation(obsIdx).LmID }
		infoOf := func(obsIdx int) *mat.Dense { return p.Noise.Information(obsIdx, dims) }
		sys := hessian.BuildNumeric(dims, obsJac, lmOf, infoOf, params.UseRobustKernel, params.KernelParam)
		return obsJac, sys, sys.TotalError
	}

	_, sys, e0 := eval()
	report.InitialSqError = e0
	report.NumJacobians = len(obsIdxs)
	currentSys := sys
	currentError := e0

	for iter := 0; iter < params.MaxIters; iter++ {
		report.Iterations++

		s, b, hfInvCache, err := schurReduce(currentSys, edgeIDs, edgeIndex, landmarkIDs, lmIndex, dims, lambda)
		if err != nil {
			lambda *= 10
			report.Rejected++
			if lambda > params.MaxLambda {
				report.NonConvergenceReason = rbaerrors.NewNumericDivergence(lambda, params.MaxLambda)
				break
			}
			continue
		}

		dp, ok := solveCholesky(s, b)
		if !ok {
			lambda *= 10
			report.Rejected++
			if lambda > params.MaxLambda {
				report.NonConvergenceReason = rbaerrors.NewNumericDivergence(lambda, params.MaxLambda)
				break
			}
			continue
		}

		df := backSubstituteLandmarks(currentSys, landmarkIDs, lmIndex, hfInvCache, dp, edgeIDs, edgeIndex, dims)

		snapshot := snapshotState(p.Graph, edgeIDs, landmarkIDs)
		applyUpdate(p.Graph, p.Trees, p.Algebra, edgeIDs, dp, landmarkIDs, df, dims)

		_, newSys, e1 := eval()
		predictedReduction := predictReduction(currentSys, edgeIDs, edgeIndex, landmarkIDs, lmIndex, dp, df, dims, lambda)

		var rho float64
		if predictedReduction > 0 {
			rho = (currentError - e1) / predictedReduction
		}

		if rho > 0 {
			report.Accepted++
			prevError := currentError
			currentSys = newSys
			currentError = e1
			if rho > params.MinErrorReductionRatioToRelinearize {
				lambda = math.Max(lambda*0.1, 1e-12)
			}
			perObs := 0.0
			if len(obsIdxs) > 0 {
				perObs = math.Abs(prevError-e1) / float64(len(obsIdxs))
			}
			logger.Debugw("lm step accepted", "iter", iter, "lambda", lambda, "error", currentError)
			if perObs < params.MaxErrorPerObsToStop {
				report.Converged = true
				break
			}
		} else {
			restoreState(p.Graph, snapshot)
			p.Trees.UpdateNumeric(roots)
			lambda *= 10
			report.Rejected++
			logger.Debugw("lm step rejected", "iter", iter, "lambda", lambda)
			if lambda > params.MaxLambda {
				report.NonConvergenceReason = rbaerrors.NewNumericDivergence(lambda, params.MaxLambda)
				break
			}
		}
	}

	report.FinalSqError = currentError
	report.NumBlocksSkipped = currentSys.BlocksSkipped

	if params.ComputeConditionNumber {
		report.ConditionNumberHAp = conditionNumber(currentSys, edgeIDs, edgeIndex, dims)
	}
	if recoverCovariance {
		report.LandmarkCovariance = landmarkCovariance(currentSys, landmarkIDs, lambda, dims)
	}

	if report.NonConvergenceReason != nil {
		return report, report.NonConvergenceReason
	}
	return report, nil
}

func indexOf(ids []int) map[int]int {
	m := make(map[int]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func distinctRoots(g *graph.Graph, obsIdxs []int) []int {
	seen := make(map[int]bool)
	var roots []int
	for _, idx := range obsIdxs {
		kf := g.Observation(idx).ObservingKF
		if !seen[kf] {
			seen[kf] = true
			roots = append(roots, kf)
		}
	}
	return roots
}
