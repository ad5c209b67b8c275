package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"go.viam.com/test"

	"go.viam.com/rba/rbatypes"
)

func TestSE2AlgebraDims(t *testing.T) {
	var a rbatypes.PoseAlgebra = SE2Algebra{}
	test.That(t, a.Dims().PoseDim, test.ShouldEqual, 3)
}

func TestSE2AlgebraIdentityComposeInverse(t *testing.T) {
	a := SE2Algebra{}
	id := a.Identity()
	test.That(t, id, test.ShouldResemble, IdentityPose2D())

	p := Pose2D{X: 1, Y: 2, Theta: 0.4}
	out := a.Compose(id, p).(Pose2D)
	test.That(t, out, test.ShouldResemble, p)

	inv := a.Inverse(p).(Pose2D)
	back := a.Compose(p, inv).(Pose2D)
	test.That(t, math.Abs(back.X) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(back.Y) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(back.Theta) < 1e-9, test.ShouldBeTrue)
}

func TestSE2AlgebraExpLogRoundTrip(t *testing.T) {
	a := SE2Algebra{}
	v := mat.NewVecDense(3, []float64{1.1, -0.4, 0.2})
	p := a.Exp(v)
	back := a.Log(p)
	for i := 0; i < 3; i++ {
		test.That(t, math.Abs(back.AtVec(i)-v.AtVec(i)) < 1e-6, test.ShouldBeTrue)
	}
}

func TestSE2AlgebraAdjointIdentity(t *testing.T) {
	a := SE2Algebra{}
	adj := a.Adjoint(a.Identity())
	r, c := adj.Dims()
	test.That(t, r, test.ShouldEqual, 3)
	test.That(t, c, test.ShouldEqual, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, adj.At(i, j), test.ShouldAlmostEqual, want, 1e-9)
		}
	}
}

func TestSE3AlgebraDims(t *testing.T) {
	var a rbatypes.PoseAlgebra = SE3Algebra{}
	test.That(t, a.Dims().PoseDim, test.ShouldEqual, 6)
}

func TestSE3AlgebraIdentityComposeInverse(t *testing.T) {
	a := SE3Algebra{}
	id := a.Identity()
	test.That(t, id, test.ShouldResemble, IdentityPose3D())

	p := ExpSE3(r3.Vector{X: 1, Y: -0.5, Z: 0.3}, r3.Vector{X: 0.2, Y: 0.1, Z: -0.1})
	out := a.Compose(id, p).(Pose3D)
	test.That(t, math.Abs(out.Trans.X-p.Trans.X) < 1e-9, test.ShouldBeTrue)

	inv := a.Inverse(p).(Pose3D)
	back := a.Compose(p, inv).(Pose3D)
	test.That(t, math.Abs(back.Trans.X) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(back.Trans.Y) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(back.Trans.Z) < 1e-9, test.ShouldBeTrue)
}

func TestSE3AlgebraExpLogRoundTrip(t *testing.T) {
	a := SE3Algebra{}
	v := mat.NewVecDense(6, []float64{1, -0.3, 0.2, 0.4, -0.1, 0.2})
	p := a.Exp(v)
	back := a.Log(p)
	for i := 0; i < 6; i++ {
		test.That(t, math.Abs(back.AtVec(i)-v.AtVec(i)) < 1e-6, test.ShouldBeTrue)
	}
}

func TestSE3AlgebraAdjointIdentity(t *testing.T) {
	a := SE3Algebra{}
	adj := a.Adjoint(a.Identity())
	r, c := adj.Dims()
	test.That(t, r, test.ShouldEqual, 6)
	test.That(t, c, test.ShouldEqual, 6)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			test.That(t, adj.At(i, j), test.ShouldAlmostEqual, want, 1e-9)
		}
	}
}
