// Package localarea implements the local-area optimizer: a bounded BFS that collects the
// kf2kf edges and landmarks worth re-optimizing around a keyframe, then runs the solver in two
// stages.
package localarea

import (
	"context"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/logging"
	"go.viam.com/rba/solver"
)

// Params bundles the local-area optimizer's own tunables on top of the solver's own Params.
type Params struct {
	MaxOptimizeDepth                    int
	OptimizeK2KEdges                    bool
	DontOptimizeLandmarksSeenLessThanN   int
	OptimizeNewEdgesAlone               bool
	UseRobustKernelStage1               bool
	Solver                              solver.Params
	RecoverCovariance                   bool

	// NewEdgeIDs restricts Stage 1's per-edge warm start to these edges only (the ones just
	// created by define_new_keyframe, say), rather than every edge collectUnknowns gathers.
	// Edges here not present in the collected set are ignored.
	NewEdgeIDs []int
}

// DefaultParams returns reasonable tuning defaults for the local-area optimizer.
func DefaultParams(maxOptimizeDepth int) Params {
	return Params{
		MaxOptimizeDepth:                  maxOptimizeDepth,
		OptimizeK2KEdges:                  true,
		DontOptimizeLandmarksSeenLessThanN: 1,
		OptimizeNewEdgesAlone:             true,
		UseRobustKernelStage1:             true,
		Solver:                            solver.DefaultParams(),
	}
}

// Report is the local-area optimizer's output: counts, per-stage solver reports, and
// montanaflynn/stats-based RMSE/percentile diagnostics over the observations involved.
type Report struct {
	EdgesOptimized     []int
	LandmarksOptimized []int
	ObservationsUsed   int
	Stage1Reports      []*solver.Report
	Stage2Report       *solver.Report
	ObsRMSE            float64
	ObsResidualP50     float64
	ObsResidualP95     float64
}

// Optimize runs optimize_local_area: collects the unknowns around rootKF, optionally warm-starts
// each newly created edge in isolation, then runs a joint LM pass over everything collected.
func Optimize(
	ctx context.Context,
	p *solver.Problem,
	rootKF int,
	params Params,
	logger logging.Logger,
) (*Report, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("localarea")
	}

	edgeIDs, landmarkIDs, obsIdxs := collectUnknowns(p.Graph, rootKF, params.MaxOptimizeDepth, params.OptimizeK2KEdges, params.DontOptimizeLandmarksSeenLessThanN)
	report := &Report{EdgesOptimized: edgeIDs, LandmarksOptimized: landmarkIDs, ObservationsUsed: len(obsIdxs)}

	if params.OptimizeNewEdgesAlone {
		inSet := make(map[int]bool, len(edgeIDs))
		for _, eid := range edgeIDs {
			inSet[eid] = true
		}
		stage1 := params.Solver
		stage1.UseRobustKernel = params.UseRobustKernelStage1
		for _, edgeID := range params.NewEdgeIDs {
			if !inSet[edgeID] {
				continue
			}
			edgeObs := observationsTouchingEdge(p.Graph, edgeID, obsIdxs)
			if len(edgeObs) == 0 {
				continue
			}
			r, err := solver.Run(ctx, p, []int{edgeID}, landmarksOf(p.Graph, edgeObs), edgeObs, stage1, logger, false)
			if r != nil {
				report.Stage1Reports = append(report.Stage1Reports, r)
			}
			if err != nil {
				logger.Debugw("stage1 edge optimization non-convergent", "edge", edgeID, "error", err)
			}
		}
	}

	stage2, err := solver.Run(ctx, p, edgeIDs, landmarkIDs, obsIdxs, params.Solver, logger, params.RecoverCovariance)
	report.Stage2Report = stage2
	computeResidualStats(report, p, obsIdxs)
	return report, err
}

// collectUnknowns runs the bounded BFS collecting every kf2kf edge incident to a KF it expands
// (if optimizing edges), including edges back to an already-visited KF, so cycle-closing edges
// are collected too, and every landmark seen at least minSeen times across the observations of
// the visited KFs, each added exactly once, on the visit that crosses the threshold.
func collectUnknowns(g *graph.Graph, rootKF, radius int, optimizeEdges bool, minSeen int) (edgeIDs, landmarkIDs, obsIdxs []int) {
	visited := map[int]bool{rootKF: true}
	frontier := []int{rootKF}
	edgeSet := make(map[int]bool)
	seenCount := make(map[int]int)
	addedLandmark := make(map[int]bool)
	var obsSet []int

	processKF := func(kf int) {
		for _, idx := range g.ObservationsOf(kf) {
			obsSet = append(obsSet, idx)
			lmID := g.Observation(idx).LmID
			lm := g.Landmark(lmID)
			if lm == nil || lm.Known {
				continue
			}
			seenCount[lmID]++
			if !addedLandmark[lmID] && seenCount[lmID] >= minSeen {
				addedLandmark[lmID] = true
				landmarkIDs = append(landmarkIDs, lmID)
			}
		}
	}
	processKF(rootKF)

	for depth := 0; depth < radius && len(frontier) > 0; depth++ {
		var next []int
		for _, v := range frontier {
			for _, eid := range g.IncidentEdges(v) {
				e := g.Edge(eid)
				other := e.To
				if other == v {
					other = e.From
				}
				if optimizeEdges {
					edgeSet[eid] = true
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
				processKF(other)
			}
		}
		frontier = next
	}

	for eid := range edgeSet {
		edgeIDs = append(edgeIDs, eid)
	}
	sort.Ints(edgeIDs)
	sort.Ints(landmarkIDs)
	sort.Ints(obsSet)
	return edgeIDs, landmarkIDs, dedupInts(obsSet)
}

func dedupInts(in []int) []int {
	if len(in) == 0 {
		return in
	}
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func observationsTouchingEdge(g *graph.Graph, edgeID int, obsIdxs []int) []int {
	edge := g.Edge(edgeID)
	var out []int
	for _, idx := range obsIdxs {
		obs := g.Observation(idx)
		if obs.ObservingKF == edge.From || obs.ObservingKF == edge.To {
			out = append(out, idx)
		}
	}
	return out
}

func landmarksOf(g *graph.Graph, obsIdxs []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, idx := range obsIdxs {
		lmID := g.Observation(idx).LmID
		lm := g.Landmark(lmID)
		if lm == nil || lm.Known || seen[lmID] {
			continue
		}
		seen[lmID] = true
		out = append(out, lmID)
	}
	return out
}

func computeResidualStats(report *Report, p *solver.Problem, obsIdxs []int) {
	var residuals []float64
	dims := p.Sensor.Dims()
	for _, idx := range obsIdxs {
		obs := p.Graph.Observation(idx)
		lm := p.Graph.Landmark(obs.LmID)
		if lm == nil {
			continue
		}
		tree := p.Trees.Tree(obs.ObservingKF)
		relPose, dirty := tree.Pose(lm.BaseKF)
		if dirty || relPose == nil {
			continue
		}
		pred, ok := p.Sensor.Project(relPose, lm.Position, p.SensorParams)
		if !ok {
			continue
		}
		sumSq := 0.0
		for r := 0; r < dims.ObsDim; r++ {
			d := obs.Obs.AtVec(r) - pred.AtVec(r)
			sumSq += d * d
		}
		residuals = append(residuals, sumSq)
	}
	if len(residuals) == 0 {
		return
	}
	if mse, err := stats.Mean(residuals); err == nil {
		report.ObsRMSE = math.Sqrt(mse)
	}
	if p50, err := stats.Percentile(residuals, 50); err == nil {
		report.ObsResidualP50 = p50
	}
	if p95, err := stats.Percentile(residuals, 95); err == nil {
		report.ObsResidualP95 = p95
	}
}
