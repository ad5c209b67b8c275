package sensormodels

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"go.viam.com/test"

	"go.viam.com/rba/spatialmath"
)

func TestSE2RangeBearingProject(t *testing.T) {
	m := SE2RangeBearing{}
	pose := spatialmath.IdentityPose2D()
	f := mat.NewVecDense(2, []float64{3, 4})
	pred, ok := m.Project(pose, f, nil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pred.AtVec(0), test.ShouldAlmostEqual, 5.0, 1e-9)
}

func TestSE2RangeBearingProjectOutOfRange(t *testing.T) {
	m := SE2RangeBearing{MaxRange: 1}
	pose := spatialmath.IdentityPose2D()
	f := mat.NewVecDense(2, []float64{3, 4})
	_, ok := m.Project(pose, f, nil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSE2RangeBearingJacobiansMatchFiniteDifference(t *testing.T) {
	m := SE2RangeBearing{}
	algebra := spatialmath.SE2Algebra{}
	pose := spatialmath.Pose2D{X: 1, Y: 0.5, Theta: 0.3}
	f := mat.NewVecDense(2, []float64{2, 1})

	dhdT, dhdf, ok := m.Jacobians(pose, f, nil)
	test.That(t, ok, test.ShouldBeTrue)
	pred, _ := m.Project(pose, f, nil)

	const eps = 1e-6
	for d := 0; d < 3; d++ {
		delta := mat.NewVecDense(3, nil)
		delta.SetVec(d, eps)
		perturbed := algebra.Compose(pose, algebra.Exp(delta)).(spatialmath.Pose2D)
		predPlus, ok := m.Project(perturbed, f, nil)
		test.That(t, ok, test.ShouldBeTrue)
		for r := 0; r < 2; r++ {
			numeric := (predPlus.AtVec(r) - pred.AtVec(r)) / eps
			test.That(t, dhdT.At(r, d), test.ShouldAlmostEqual, numeric, 1e-3)
		}
	}

	for d := 0; d < 2; d++ {
		fPlus := mat.VecDenseCopyOf(f)
		fPlus.SetVec(d, fPlus.AtVec(d)+eps)
		predPlus, ok := m.Project(pose, fPlus, nil)
		test.That(t, ok, test.ShouldBeTrue)
		for r := 0; r < 2; r++ {
			numeric := (predPlus.AtVec(r) - pred.AtVec(r)) / eps
			test.That(t, dhdf.At(r, d), test.ShouldAlmostEqual, numeric, 1e-3)
		}
	}
}
