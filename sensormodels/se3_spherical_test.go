package sensormodels

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"go.viam.com/test"

	"go.viam.com/rba/spatialmath"
)

func TestSE3SphericalRBEProject(t *testing.T) {
	m := SE3SphericalRBE{}
	pose := spatialmath.IdentityPose3D()
	f := mat.NewVecDense(3, []float64{3, 4, 0})
	pred, ok := m.Project(pose, f, nil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pred.AtVec(0), test.ShouldAlmostEqual, 5.0, 1e-9)
}

func TestSE3SphericalRBEJacobiansMatchFiniteDifference(t *testing.T) {
	m := SE3SphericalRBE{}
	algebra := spatialmath.SE3Algebra{}
	pose := spatialmath.Pose3D{Rot: spatialmath.IdentityPose3D().Rot, Trans: spatialmath.IdentityPose3D().Trans}
	pose = algebra.Compose(pose, algebra.Exp(mat.NewVecDense(6, []float64{1, 0.5, 0.2, 0.1, 0.2, 0.05}))).(spatialmath.Pose3D)
	f := mat.NewVecDense(3, []float64{2, 1, 0.5})

	dhdT, dhdf, ok := m.Jacobians(pose, f, nil)
	test.That(t, ok, test.ShouldBeTrue)
	pred, _ := m.Project(pose, f, nil)

	const eps = 1e-6
	for d := 0; d < 6; d++ {
		delta := mat.NewVecDense(6, nil)
		delta.SetVec(d, eps)
		perturbed := algebra.Compose(pose, algebra.Exp(delta)).(spatialmath.Pose3D)
		predPlus, ok := m.Project(perturbed, f, nil)
		test.That(t, ok, test.ShouldBeTrue)
		for r := 0; r < 3; r++ {
			numeric := (predPlus.AtVec(r) - pred.AtVec(r)) / eps
			test.That(t, dhdT.At(r, d), test.ShouldAlmostEqual, numeric, 1e-3)
		}
	}

	for d := 0; d < 3; d++ {
		fPlus := mat.VecDenseCopyOf(f)
		fPlus.SetVec(d, fPlus.AtVec(d)+eps)
		predPlus, ok := m.Project(pose, fPlus, nil)
		test.That(t, ok, test.ShouldBeTrue)
		for r := 0; r < 3; r++ {
			numeric := (predPlus.AtVec(r) - pred.AtVec(r)) / eps
			test.That(t, dhdf.At(r, d), test.ShouldAlmostEqual, numeric, 1e-3)
		}
	}
}
