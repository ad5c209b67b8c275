// Command rbademo runs a small chain-of-3 scenario end to end: three keyframes in a straight
// line, four landmarks each seen from all three, perturbed initial poses, and reports the final
// per-observation RMSE.
package main

import (
	"context"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/ecp"
	"go.viam.com/rba/engine"
	"go.viam.com/rba/graph"
	"go.viam.com/rba/logging"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/sensormodels"
	"go.viam.com/rba/spatialmath"
)

func main() {
	logger := logging.NewDebugLogger("rbademo")

	eng := engine.New(
		spatialmath.SE2Algebra{},
		sensormodels.SE2RangeBearing{},
		nil,
		rbatypes.IdentityNoiseModel{},
		ecp.LinearGraphPolicy{},
		10, 3,
		logger,
	)

	vec := func(x, y float64) *mat.VecDense { return mat.NewVecDense(2, []float64{x, y}) }

	// KF0 at origin, observes 4 landmarks.
	obs0 := []engine.PendingObservation{
		{LmID: 0, Obs: rangeBearing(1, 1), Mode: graph.LandmarkInitUnknown, BaseKF: 0, InitialGuess: vec(1, 1)},
		{LmID: 1, Obs: rangeBearing(1, -1), Mode: graph.LandmarkInitUnknown, BaseKF: 0, InitialGuess: vec(1, -1)},
		{LmID: 2, Obs: rangeBearing(2, 1), Mode: graph.LandmarkInitUnknown, BaseKF: 0, InitialGuess: vec(2, 1)},
		{LmID: 3, Obs: rangeBearing(2, -1), Mode: graph.LandmarkInitUnknown, BaseKF: 0, InitialGuess: vec(2, -1)},
	}
	if _, err := eng.DefineNewKeyFrame(context.Background(), obs0, false); err != nil {
		fmt.Fprintln(os.Stderr, "kf0:", err)
		os.Exit(1)
	}

	// KF1 at (1,0). The linear policy gives its edge to KF0 an identity initial pose, which is
	// then offset by (0.05, 0.05, 0.02).
	obs1 := []engine.PendingObservation{
		{LmID: 0, Obs: rangeBearing(0, 1)},
		{LmID: 1, Obs: rangeBearing(0, -1)},
		{LmID: 2, Obs: rangeBearing(1, 1)},
		{LmID: 3, Obs: rangeBearing(1, -1)},
	}
	if _, err := eng.DefineNewKeyFrame(context.Background(), obs1, false); err != nil {
		fmt.Fprintln(os.Stderr, "kf1:", err)
		os.Exit(1)
	}
	perturbEdgePose(eng, 0)

	// KF2 at (2,0). Defining it runs the local-area optimization; its edge to KF1 is then offset
	// the same way and the area around KF2 is optimized again.
	obs2 := []engine.PendingObservation{
		{LmID: 0, Obs: rangeBearing(-1, 1)},
		{LmID: 1, Obs: rangeBearing(-1, -1)},
		{LmID: 2, Obs: rangeBearing(0, 1)},
		{LmID: 3, Obs: rangeBearing(0, -1)},
	}
	result, err := eng.DefineNewKeyFrame(context.Background(), obs2, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kf2 optimize:", err)
	}
	perturbEdgePose(eng, 1)

	report, err := eng.OptimizeLocalArea(context.Background(), result.NewKFID, 3, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "final optimize:", err)
	}

	fmt.Printf("new_kf_id=%d created_edges=%v\n", result.NewKFID, result.CreatedEdges)
	fmt.Printf("obs_rmse=%.9f final_sq_error=%.9f iterations=%d accepted=%d\n",
		report.ObsRMSE, report.Stage2Report.FinalSqError, report.Stage2Report.Iterations, report.Stage2Report.Accepted)
}

func rangeBearing(dx, dy float64) *mat.VecDense {
	rng := math.Hypot(dx, dy)
	bearing := math.Atan2(dy, dx)
	return mat.NewVecDense(2, []float64{rng, bearing})
}

func perturbEdgePose(eng *engine.Engine, edgeID int) {
	edge := eng.Graph.Edge(edgeID)
	pose := edge.Pose.(spatialmath.Pose2D)
	pose.X += 0.05
	pose.Y += 0.05
	pose.Theta += 0.02
	edge.Pose = pose
	eng.Trees.MarkDirty(edgeID)
}
