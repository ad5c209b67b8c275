package spantree

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spatialmath"
)

func chainGraph(n int) *graph.Graph {
	g := graph.New(rbatypes.Dims{PoseDim: 3})
	for i := 0; i < n; i++ {
		g.AllocKF()
	}
	for i := 0; i < n-1; i++ {
		g.AllocKF2KFEdge(i+1, i, rbatypes.EdgeRegular, spatialmath.Pose2D{X: 1})
	}
	return g
}

func TestBoundedTreeChain(t *testing.T) {
	g := chainGraph(5)
	s := New(g, spatialmath.SE2Algebra{}, 2)
	tree := s.Tree(0)

	test.That(t, tree.Dist(0), test.ShouldEqual, 0)
	test.That(t, tree.Dist(1), test.ShouldEqual, 1)
	test.That(t, tree.Dist(2), test.ShouldEqual, 2)
	test.That(t, tree.Dist(3), test.ShouldEqual, -1)
	test.That(t, tree.Contains(3), test.ShouldBeFalse)
}

func TestUpdateNumericChain(t *testing.T) {
	g := chainGraph(4)
	s := New(g, spatialmath.SE2Algebra{}, 3)
	tree := s.Tree(0)
	s.UpdateNumeric([]int{0})

	pose3, dirty := tree.Pose(3)
	test.That(t, dirty, test.ShouldBeFalse)
	p := pose3.(spatialmath.Pose2D)
	// Each edge was allocated as (i+1, i) with Pose{X:1}: since From is the higher-numbered
	// endpoint, composing T(root<-v) along the chain inverts every step, giving X=-3 at node 3.
	test.That(t, math.Abs(p.X+3) < 1e-9, test.ShouldBeTrue)
}

func TestMarkDirtyPropagates(t *testing.T) {
	g := chainGraph(4)
	s := New(g, spatialmath.SE2Algebra{}, 3)
	tree := s.Tree(0)
	s.UpdateNumeric([]int{0})

	s.MarkDirty(0) // edge 0 is on the path to every downstream node
	_, dirty1 := tree.Pose(1)
	_, dirty3 := tree.Pose(3)
	test.That(t, dirty1, test.ShouldBeTrue)
	test.That(t, dirty3, test.ShouldBeTrue)

	s.UpdateNumeric([]int{0})
	_, dirty1b := tree.Pose(1)
	test.That(t, dirty1b, test.ShouldBeFalse)
}

func TestTieBreakLowestPredecessor(t *testing.T) {
	// Diamond: 0-1, 0-2, 1-3, 2-3. Both 1 and 2 reach 3 at distance 2; lowest id (1) wins.
	g := graph.New(rbatypes.Dims{PoseDim: 3})
	for i := 0; i < 4; i++ {
		g.AllocKF()
	}
	g.AllocKF2KFEdge(1, 0, rbatypes.EdgeRegular, spatialmath.IdentityPose2D())
	g.AllocKF2KFEdge(2, 0, rbatypes.EdgeRegular, spatialmath.IdentityPose2D())
	g.AllocKF2KFEdge(3, 1, rbatypes.EdgeRegular, spatialmath.IdentityPose2D())
	g.AllocKF2KFEdge(3, 2, rbatypes.EdgeRegular, spatialmath.IdentityPose2D())

	s := New(g, spatialmath.SE2Algebra{}, 3)
	tree := s.Tree(0)
	test.That(t, tree.Pred(3), test.ShouldEqual, 1)
}

func TestUpdateSymbolicNewNode(t *testing.T) {
	g := chainGraph(3)
	s := New(g, spatialmath.SE2Algebra{}, 5)
	s.Tree(0)

	newKF := g.AllocKF()
	eid, _ := g.AllocKF2KFEdge(newKF, 2, rbatypes.EdgeRegular, spatialmath.Pose2D{X: 1})
	s.UpdateSymbolicNewNode(newKF, []int{eid})

	tree := s.Tree(0)
	test.That(t, tree.Contains(newKF), test.ShouldBeTrue)
	test.That(t, tree.Dist(newKF), test.ShouldEqual, 3)
}

func TestPathEdgesDirection(t *testing.T) {
	g := chainGraph(3)
	s := New(g, spatialmath.SE2Algebra{}, 5)
	tree := s.Tree(0)

	ids, forward := PathEdges(g, tree, 2)
	test.That(t, ids, test.ShouldResemble, []int{1, 0})
	// Edges were allocated as (i+1, i), i.e. From is the higher-numbered endpoint; each stored
	// edge therefore runs from the node to its predecessor, the same way as the walk towards the
	// root, so none is stored as (predecessor, node) and none is forward.
	test.That(t, forward[0], test.ShouldBeFalse)
	test.That(t, forward[1], test.ShouldBeFalse)
}
