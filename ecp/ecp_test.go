package ecp

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"go.viam.com/test"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spantree"
	"go.viam.com/rba/spatialmath"
)

func TestLinearGraphPolicy(t *testing.T) {
	g := graph.New(rbatypes.Dims{PoseDim: 3})
	g.AllocKF()
	g.AllocKF()
	algebra := spatialmath.SE2Algebra{}

	proposed, err := LinearGraphPolicy{}.DetermineEdgesToCreate(g, nil, algebra, 0, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, proposed, test.ShouldBeNil)

	proposed, err = LinearGraphPolicy{}.DetermineEdgesToCreate(g, nil, algebra, 1, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(proposed), test.ShouldEqual, 1)
	test.That(t, proposed[0].From, test.ShouldEqual, 1)
	test.That(t, proposed[0].To, test.ShouldEqual, 0)
	test.That(t, proposed[0].Kind, test.ShouldEqual, rbatypes.EdgeRegular)
}

func TestLocalAreasCenterEdgeOnly(t *testing.T) {
	g := graph.New(rbatypes.Dims{PoseDim: 3})
	for i := 0; i < 5; i++ {
		g.AllocKF()
	}
	algebra := spatialmath.SE2Algebra{}
	policy := LocalAreasFixedSizePolicy{Params: LocalAreasParams{SubmapSize: 3, MinObsToLoopClosure: 4, MaxTreeDepth: 5}}

	proposed, err := policy.DetermineEdgesToCreate(g, nil, algebra, 3, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(proposed), test.ShouldEqual, 1)
	test.That(t, proposed[0].From, test.ShouldEqual, 3)
	test.That(t, proposed[0].To, test.ShouldEqual, 0)

	proposed, err = policy.DetermineEdgesToCreate(g, nil, algebra, 4, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(proposed), test.ShouldEqual, 1)
	test.That(t, proposed[0].From, test.ShouldEqual, 4)
	test.That(t, proposed[0].To, test.ShouldEqual, 3)
}

func chainGraphECP(n int) *graph.Graph {
	g := graph.New(rbatypes.Dims{PoseDim: 3})
	for i := 0; i < n; i++ {
		g.AllocKF()
	}
	for i := 0; i < n-1; i++ {
		g.AllocKF2KFEdge(i+1, i, rbatypes.EdgeRegular, spatialmath.IdentityPose2D())
	}
	return g
}

// Both tests use SubmapSize 3, so base KF 0 (landmark 99's owner) falls in area 0 while newKF
// 5's area center is 3 -- distinct areas, letting findLoopClosure actually have something to
// propose between.
func TestFindLoopClosureProposesEdgeToSharedLandmark(t *testing.T) {
	g := chainGraphECP(6)
	algebra := spatialmath.SE2Algebra{}

	guess := mat.NewVecDense(2, []float64{1, 1})
	_, err := g.AddObservation(0, 99, mat.NewVecDense(2, nil), graph.LandmarkInitUnknown, 0, guess)
	test.That(t, err, test.ShouldBeNil)
	idxB, err := g.AddObservation(5, 99, mat.NewVecDense(2, nil), graph.LandmarkNeither, 0, nil)
	test.That(t, err, test.ShouldBeNil)

	trees := spantree.New(g, algebra, 10)
	trees.Tree(3)
	trees.UpdateNumeric([]int{3})

	policy := LocalAreasFixedSizePolicy{Params: LocalAreasParams{SubmapSize: 3, MinObsToLoopClosure: 1, MaxTreeDepth: 4}}
	edge, ok := policy.findLoopClosure(g, trees, algebra, []int{idxB}, 3, 3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, edge.Kind, test.ShouldEqual, rbatypes.EdgeLoopClosure)
	test.That(t, edge.From, test.ShouldEqual, 3)
	test.That(t, edge.To, test.ShouldEqual, 0)
}

func TestFindLoopClosureNoneWhenTooFewShared(t *testing.T) {
	g := chainGraphECP(6)
	algebra := spatialmath.SE2Algebra{}

	guess := mat.NewVecDense(2, []float64{1, 1})
	g.AddObservation(0, 99, mat.NewVecDense(2, nil), graph.LandmarkInitUnknown, 0, guess)
	idxB, _ := g.AddObservation(5, 99, mat.NewVecDense(2, nil), graph.LandmarkNeither, 0, nil)

	trees := spantree.New(g, algebra, 10)
	trees.Tree(3)
	trees.UpdateNumeric([]int{3})

	policy := LocalAreasFixedSizePolicy{Params: LocalAreasParams{SubmapSize: 3, MinObsToLoopClosure: 4, MaxTreeDepth: 4}}
	_, ok := policy.findLoopClosure(g, trees, algebra, []int{idxB}, 3, 3)
	test.That(t, ok, test.ShouldBeFalse)
}
