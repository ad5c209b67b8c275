// Package engine implements the public façade: the single entry point a caller drives to grow
// the graph and keep it optimized, wrapping graph, spantree, ecp, and localarea behind
// define_new_keyframe/optimize_local_area/clear. Engine has no add_observation operation of its
// own; observations enter through DefineNewKeyFrame.
package engine

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/ecp"
	"go.viam.com/rba/graph"
	"go.viam.com/rba/localarea"
	"go.viam.com/rba/logging"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/solver"
	"go.viam.com/rba/spantree"
)

// PendingObservation is one observation to attach to a new keyframe, mirroring
// graph.AddObservation's parameters.
type PendingObservation struct {
	LmID         int
	Obs          *mat.VecDense
	Mode         graph.LandmarkMode
	BaseKF       int
	InitialGuess *mat.VecDense
}

// Engine bundles the graph, its spanning trees, the pluggable strategies, and the diagnostic
// counters behind the public operations.
type Engine struct {
	Graph   *graph.Graph
	Trees   *spantree.SpanningTrees
	Algebra rbatypes.PoseAlgebra
	Sensor  rbatypes.SensorModel
	SensorParams any
	Noise   rbatypes.NoiseModel
	Policy  ecp.Policy
	Logger  logging.Logger

	MaxOptimizeDepth int
	LocalAreaParams  localarea.Params

	// Diagnostics counters mirroring the original's TOptimizeExtraOutputInfo.
	NumObservations           int
	NumJacobians              int
	NumKF2KFEdgesOptimized    int
	NumLMOptimized            int
	NumSpanTreeNumericUpdates int
}

// New constructs an Engine over the given dimension traits and strategies. maxTreeDepth bounds
// every spanning tree; maxOptimizeDepth is the default BFS radius optimize_local_area uses when
// driven via define_new_keyframe.
func New(
	algebra rbatypes.PoseAlgebra,
	sensor rbatypes.SensorModel,
	sensorParams any,
	noise rbatypes.NoiseModel,
	policy ecp.Policy,
	maxTreeDepth, maxOptimizeDepth int,
	logger logging.Logger,
) *Engine {
	if noise == nil {
		noise = rbatypes.IdentityNoiseModel{}
	}
	if logger == nil {
		logger = logging.NewBlankLogger("engine")
	}
	g := graph.New(sensor.Dims())
	return &Engine{
		Graph:            g,
		Trees:            spantree.New(g, algebra, maxTreeDepth),
		Algebra:          algebra,
		Sensor:           sensor,
		SensorParams:     sensorParams,
		Noise:            noise,
		Policy:           policy,
		Logger:           logger,
		MaxOptimizeDepth: maxOptimizeDepth,
		LocalAreaParams:  localarea.DefaultParams(maxOptimizeDepth),
	}
}

// NewKeyFrameResult mirrors the original's TNewKeyFrameInfo: the new KF's id, the edges the
// policy created for it, and the local-area optimization report (nil if run_local_opt=false).
type NewKeyFrameResult struct {
	NewKFID      int
	CreatedEdges []int
	Report       *localarea.Report
}

// DefineNewKeyFrame allocates a new keyframe, attaches its observations, lets the policy decide
// which kf2kf edges accompany it, and optionally runs local-area optimization around it.
func (e *Engine) DefineNewKeyFrame(ctx context.Context, observations []PendingObservation, runLocalOpt bool) (*NewKeyFrameResult, error) {
	newKF := e.Graph.AllocKF()

	var obsIdxs []int
	for _, po := range observations {
		idx, err := e.Graph.AddObservation(newKF, po.LmID, po.Obs, po.Mode, po.BaseKF, po.InitialGuess)
		if err != nil {
			return nil, err
		}
		obsIdxs = append(obsIdxs, idx)
		e.NumObservations++
	}

	proposed, err := e.Policy.DetermineEdgesToCreate(e.Graph, e.Trees, e.Algebra, newKF, obsIdxs)
	if err != nil {
		return nil, err
	}

	var createdEdges []int
	for _, pe := range proposed {
		eid, err := e.Graph.AllocKF2KFEdge(pe.From, pe.To, pe.Kind, pe.InitPose)
		if err != nil {
			return nil, err
		}
		createdEdges = append(createdEdges, eid)
	}
	e.Trees.UpdateSymbolicNewNode(newKF, createdEdges)
	e.NumSpanTreeNumericUpdates += e.Trees.UpdateNumeric(e.Trees.Roots())

	result := &NewKeyFrameResult{NewKFID: newKF, CreatedEdges: createdEdges}
	if runLocalOpt {
		report, err := e.OptimizeLocalArea(ctx, newKF, e.MaxOptimizeDepth, createdEdges)
		result.Report = report
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// OptimizeLocalArea runs the local-area optimizer rooted at rootKF, updating this Engine's
// diagnostic counters from the returned report. newEdgeIDs, when non-empty, restricts Stage 1's
// per-edge warm start to those edges (the ones just created for rootKF); pass nil when
// optimizing an area with no freshly created edges to warm-start.
func (e *Engine) OptimizeLocalArea(ctx context.Context, rootKF, radius int, newEdgeIDs []int) (*localarea.Report, error) {
	params := e.LocalAreaParams
	params.MaxOptimizeDepth = radius
	params.NewEdgeIDs = newEdgeIDs

	problem := &solver.Problem{
		Graph:        e.Graph,
		Trees:        e.Trees,
		Algebra:      e.Algebra,
		Sensor:       e.Sensor,
		SensorParams: e.SensorParams,
		Noise:        e.Noise,
	}
	report, err := localarea.Optimize(ctx, problem, rootKF, params, e.Logger)
	if report != nil {
		e.NumKF2KFEdgesOptimized += len(report.EdgesOptimized)
		e.NumLMOptimized += len(report.LandmarksOptimized)
		if report.Stage2Report != nil {
			e.NumJacobians += report.Stage2Report.NumJacobians
		}
	}
	return report, err
}

// EvalOverallSquaredError returns the current total weighted squared residual over every
// observation in the graph, without modifying it.
func (e *Engine) EvalOverallSquaredError() float64 {
	seen := make(map[int]bool)
	var roots []int
	for _, obs := range e.Graph.Observations() {
		e.Trees.Tree(obs.ObservingKF)
		if !seen[obs.ObservingKF] {
			seen[obs.ObservingKF] = true
			roots = append(roots, obs.ObservingKF)
		}
	}
	e.Trees.UpdateNumeric(roots)

	total := 0.0
	for _, obs := range e.Graph.Observations() {
		lm := e.Graph.Landmark(obs.LmID)
		if lm == nil {
			continue
		}
		tree := e.Trees.Tree(obs.ObservingKF)
		relPose, dirty := tree.Pose(lm.BaseKF)
		if dirty || relPose == nil {
			continue
		}
		pred, ok := e.Sensor.Project(relPose, lm.Position, e.SensorParams)
		if !ok {
			continue
		}
		info := e.Noise.Information(obs.Idx, e.Sensor.Dims())
		r := mat.NewVecDense(pred.Len(), nil)
		r.SubVec(obs.Obs, pred)
		wr := mat.NewVecDense(pred.Len(), nil)
		wr.MulVec(info, r)
		total += mat.Dot(r, wr)
	}
	return total
}

// Clear resets the graph, trees, and diagnostics counters to a fresh, empty state.
func (e *Engine) Clear() {
	e.Graph.Clear()
	e.Trees = spantree.New(e.Graph, e.Algebra, e.Trees.MaxDepth())
	e.NumObservations = 0
	e.NumJacobians = 0
	e.NumKF2KFEdgesOptimized = 0
	e.NumLMOptimized = 0
	e.NumSpanTreeNumericUpdates = 0
}
