package solver

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"
	"go.viam.com/test"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/sensormodels"
	"go.viam.com/rba/spantree"
	"go.viam.com/rba/spatialmath"
)

// buildSingleEdgeProblem sets up a 2-KF, 1-edge, 1-known-landmark graph where the edge's stored
// pose is perturbed away from the pose that generated the observation, so the solver has
// something to correct.
func buildSingleEdgeProblem(t *testing.T) (*Problem, int) {
	algebra := spatialmath.SE2Algebra{}
	sensor := sensormodels.SE2RangeBearing{}
	truePose := spatialmath.Pose2D{X: 2, Y: 0.5, Theta: 0.3}
	f := mat.NewVecDense(2, []float64{3, 1})

	g := graph.New(sensor.Dims())
	kf0 := g.AllocKF()
	kf1 := g.AllocKF()
	eid, err := g.AllocKF2KFEdge(kf1, kf0, rbatypes.EdgeRegular, spatialmath.Pose2D{X: 1.5, Y: 0.5, Theta: 0.2})
	test.That(t, err, test.ShouldBeNil)

	obs, ok := sensor.Project(truePose, f, nil)
	test.That(t, ok, test.ShouldBeTrue)
	idx, err := g.AddObservation(kf1, 0, obs, graph.LandmarkKnown, kf0, f)
	test.That(t, err, test.ShouldBeNil)

	trees := spantree.New(g, algebra, 5)
	p := &Problem{
		Graph:   g,
		Trees:   trees,
		Algebra: algebra,
		Sensor:  sensor,
		Noise:   rbatypes.IdentityNoiseModel{},
	}
	_ = idx
	return p, eid
}

func TestRunReducesErrorOnAcceptedStep(t *testing.T) {
	p, eid := buildSingleEdgeProblem(t)
	report, err := Run(context.Background(), p, []int{eid}, nil, []int{0}, DefaultParams(), nil, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Accepted > 0, test.ShouldBeTrue)
	test.That(t, report.FinalSqError <= report.InitialSqError, test.ShouldBeTrue)
	test.That(t, report.FinalSqError < 1e-6, test.ShouldBeTrue)
}

// TestRunOptimizesEdgeAndLandmarkJointly exercises the Schur complement over a real pose
// unknown and a real landmark unknown at once, anchored by a second, well-observed landmark so
// the system stays well-conditioned.
func TestRunOptimizesEdgeAndLandmarkJointly(t *testing.T) {
	algebra := spatialmath.SE2Algebra{}
	sensor := sensormodels.SE2RangeBearing{}
	truePose := spatialmath.Pose2D{X: 2, Y: 0.5, Theta: 0.3}
	trueF1 := mat.NewVecDense(2, []float64{3, 1})
	trueF2 := mat.NewVecDense(2, []float64{-1, 2})

	g := graph.New(sensor.Dims())
	kf0 := g.AllocKF()
	kf1 := g.AllocKF()
	eid, err := g.AllocKF2KFEdge(kf1, kf0, rbatypes.EdgeRegular, spatialmath.Pose2D{X: 1.7, Y: 0.4, Theta: 0.25})
	test.That(t, err, test.ShouldBeNil)

	obs1, ok := sensor.Project(truePose, trueF1, nil)
	test.That(t, ok, test.ShouldBeTrue)
	guess1 := mat.NewVecDense(2, []float64{2.5, 1.4})
	idx1, err := g.AddObservation(kf1, 0, obs1, graph.LandmarkInitUnknown, kf0, guess1)
	test.That(t, err, test.ShouldBeNil)

	obs2, ok := sensor.Project(truePose, trueF2, nil)
	test.That(t, ok, test.ShouldBeTrue)
	idx2, err := g.AddObservation(kf1, 1, obs2, graph.LandmarkKnown, kf0, trueF2)
	test.That(t, err, test.ShouldBeNil)

	trees := spantree.New(g, algebra, 5)
	p := &Problem{
		Graph:   g,
		Trees:   trees,
		Algebra: algebra,
		Sensor:  sensor,
		Noise:   rbatypes.IdentityNoiseModel{},
	}

	report, err := Run(context.Background(), p, []int{eid}, []int{0}, []int{idx1, idx2}, DefaultParams(), nil, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Accepted > 0, test.ShouldBeTrue)
	test.That(t, report.FinalSqError <= report.InitialSqError, test.ShouldBeTrue)
	test.That(t, report.FinalSqError < report.InitialSqError*0.01, test.ShouldBeTrue)
}
