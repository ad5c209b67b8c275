package spatialmath

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"go.viam.com/test"
)

func TestQuatToRotationMatrixIdentity(t *testing.T) {
	m := QuatToRotationMatrix(quat.Number{Real: 1})
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1.0
			}
			test.That(t, m.At(r, c), test.ShouldAlmostEqual, want, 1e-9)
		}
	}
}

func TestQuatToRotationMatrixQuarterTurnAboutZ(t *testing.T) {
	aa := R4AA{Theta: math.Pi / 2, RX: 0, RY: 0, RZ: 1}
	m := QuatToRotationMatrix(aa.ToQuat())

	// Rotating +X by 90 degrees about Z should land on +Y.
	x := m.At(0, 0)*1 + m.At(0, 1)*0 + m.At(0, 2)*0
	y := m.At(1, 0)*1 + m.At(1, 1)*0 + m.At(1, 2)*0
	test.That(t, x, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, y, test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestNewRotationMatrixAt(t *testing.T) {
	m := NewRotationMatrix([9]float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	test.That(t, m.At(0, 0), test.ShouldEqual, 1.0)
	test.That(t, m.At(1, 2), test.ShouldEqual, 6.0)
	test.That(t, m.At(2, 2), test.ShouldEqual, 9.0)
}

func TestQuatToOVIdentity(t *testing.T) {
	ov := QuatToOV(quat.Number{Real: 1})
	test.That(t, ov.Theta, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, ov.OZ, test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestQuaternionAlmostEqualHandlesSignFlip(t *testing.T) {
	q := quat.Number{Real: 0.5, Imag: 0.5, Jmag: 0.5, Kmag: 0.5}
	neg := quat.Number{Real: -0.5, Imag: -0.5, Jmag: -0.5, Kmag: -0.5}
	test.That(t, QuaternionAlmostEqual(q, neg, 1e-9), test.ShouldBeTrue)
}

func TestQuatToEulerAnglesIdentity(t *testing.T) {
	e := QuatToEulerAngles(quat.Number{Real: 1})
	test.That(t, e.Roll, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, e.Pitch, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, e.Yaw, test.ShouldAlmostEqual, 0.0, 1e-9)
}
