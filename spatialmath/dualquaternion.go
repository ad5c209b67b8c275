// Package spatialmath defines spatial mathematical operations used to reason about 3D rigid
// body transforms: keyframe poses, relative edge poses, and the analytic Jacobians derived
// from them.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

const radToDeg = 180 / math.Pi
const degToRad = math.Pi / 180

// If two angles differ by less than this amount, we consider them the same for the purpose of doing
// math around the poles of orientation.
const angleEpsilon = 0.01 // radians

// DualQuaternion represents a rigid transform in 3D: a rotation quaternion paired with a dual
// part encoding translation.
type DualQuaternion struct {
	Quat dualquat.Number
}

// NewDualQuaternion returns a pointer to a new DualQuaternion object whose Quaternion is an identity Quaternion.
// Since the real part of a dual quaternion should be a unit quaternion, not all zeroes, this should be used
// instead of &DualQuaternion{}.
func NewDualQuaternion() *DualQuaternion {
	return &DualQuaternion{dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{},
	}}
}

// NewDualQuaternionFromRotation returns a pointer to a new DualQuaternion object whose rotation quaternion is set from a provided
// orientation vector.
func NewDualQuaternionFromRotation(ov *OrientationVector) *DualQuaternion {
	if ov.OX == 0 && ov.OY == 0 && ov.OZ == 0 {
		ov.OZ = 1
	}
	aa := R4AA{Theta: ov.Theta, RX: ov.OX, RY: ov.OY, RZ: ov.OZ}
	aa.Normalize()
	return &DualQuaternion{dualquat.Number{
		Real: aa.ToQuat(),
		Dual: quat.Number{},
	}}
}

// NewDualQuaternionFromDH returns a pointer to a new DualQuaternion object created from a DH parameter.
func NewDualQuaternionFromDH(a, d, alpha float64) *DualQuaternion {
	m := mgl64.Ident4()

	m.Set(1, 1, math.Cos(alpha))
	m.Set(1, 2, -1*math.Sin(alpha))

	m.Set(2, 0, 0)
	m.Set(2, 1, math.Sin(alpha))
	m.Set(2, 2, math.Cos(alpha))

	qRot := mgl64.Mat4ToQuat(m)
	q := NewDualQuaternion()
	q.Quat.Real = quat.Number{Real: qRot.W, Imag: qRot.X(), Jmag: qRot.Y(), Kmag: qRot.Z()}
	q.SetTranslation(a, 0, d)
	return q
}

// Clone returns a DualQuaternion object identical to this one.
func (q *DualQuaternion) Clone() *DualQuaternion {
	t := &DualQuaternion{}
	t.Quat = q.Quat
	return t
}

// Rotation returns the rotation quaternion.
func (q *DualQuaternion) Rotation() quat.Number {
	return q.Quat.Real
}

// Translation multiplies the dual quaternion by its own conjugate to give a dq where the real is the identity quat,
// and the dual's imaginary parts are the translation in real world units.
func (q *DualQuaternion) Translation() dualquat.Number {
	return dualquat.Mul(q.Quat, dualquat.Conj(q.Quat))
}

// SetTranslation correctly sets the translation quaternion against the rotation.
func (q *DualQuaternion) SetTranslation(x, y, z float64) {
	q.Quat.Dual = quat.Number{Imag: x / 2, Jmag: y / 2, Kmag: z / 2}
	q.Rotate()
}

// SetX sets the x translation.
func (q *DualQuaternion) SetX(x float64) { q.Quat.Dual.Imag = x }

// SetY sets the y translation.
func (q *DualQuaternion) SetY(y float64) { q.Quat.Dual.Jmag = y }

// SetZ sets the z translation.
func (q *DualQuaternion) SetZ(z float64) { q.Quat.Dual.Kmag = z }

// Rotate multiplies the dual part of the quaternion by the real part to give the correct rotation.
func (q *DualQuaternion) Rotate() {
	q.Quat.Dual = quat.Mul(q.Quat.Dual, q.Quat.Real)
}

// ToDelta returns the difference between two DualQuaternions as [dx, dy, dz, theta, rx, ry, rz].
// We use quaternion/angle axis for this because distances are well-defined.
func (q *DualQuaternion) ToDelta(other *DualQuaternion) []float64 {
	ret := make([]float64, 7)

	quatBetween := quat.Mul(other.Quat.Real, quat.Conj(q.Quat.Real))

	otherTrans := dualquat.Mul(other.Quat, dualquat.Conj(other.Quat))
	mTrans := dualquat.Mul(q.Quat, dualquat.Conj(q.Quat))
	aa := QuatToR4AA(quatBetween)
	ret[0] = otherTrans.Dual.Imag - mTrans.Dual.Imag
	ret[1] = otherTrans.Dual.Jmag - mTrans.Dual.Jmag
	ret[2] = otherTrans.Dual.Kmag - mTrans.Dual.Kmag
	ret[3] = aa.Theta
	ret[4] = aa.RX
	ret[5] = aa.RY
	ret[6] = aa.RZ
	return ret
}

// Transformation multiplies the dual quat contained in this DualQuaternion by another dual quat.
func (q *DualQuaternion) Transformation(by dualquat.Number) dualquat.Number {
	if vecLen := quat.Abs(by.Real); vecLen != 1 {
		by.Real = quat.Scale(1/vecLen, by.Real)
	}
	return dualquat.Mul(q.Quat, by)
}

// QuatToR4AA converts a quat to an R4 axis angle in the same way the C++ Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR4AA(q quat.Number) R4AA {
	denom := Norm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return R4AA{Theta: angle, RX: 1, RY: 0, RZ: 0}
	}
	return R4AA{Theta: angle, RX: q.Imag / denom, RY: q.Jmag / denom, RZ: q.Kmag / denom}
}

// Norm returns the norm of the quaternion, i.e. the sqrt of the squares of the imaginary parts.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Flip multiplies a quaternion by -1, returning a quaternion representing the same orientation but in the opposing octant.
func Flip(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}
