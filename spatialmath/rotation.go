package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"
)

// OrientationVector is a representation of orientation as a vector pointing in the direction a frame's
// +Z axis has been rotated to, plus a rotation about that vector.
type OrientationVector struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// OrientationVectorDegrees is the same as OrientationVector, but expresses Theta in degrees.
type OrientationVectorDegrees struct {
	Theta float64 `json:"th"`
	OX    float64 `json:"x"`
	OY    float64 `json:"y"`
	OZ    float64 `json:"z"`
}

// EulerAngles carries a roll/pitch/yaw rotation, expressed in degrees to match the rest of the
// package's Euler conversions.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// RotationMatrix is a 3x3 rotation matrix stored in row-major order.
type RotationMatrix struct {
	Data [9]float64
}

// At returns the element at row r, column c.
func (m *RotationMatrix) At(r, c int) float64 {
	return m.Data[r*3+c]
}

// quaternion is a quat.Number with methods converting it to the other rotation
// representations in this file.
type quaternion quat.Number

// OrientationVectorRadians returns orientation as an orientation vector (in radians).
func (q *quaternion) OrientationVectorRadians() *OrientationVector {
	return QuatToOV(quat.Number(*q))
}

// OrientationVectorDegrees returns orientation as an orientation vector (in degrees).
func (q *quaternion) OrientationVectorDegrees() *OrientationVectorDegrees {
	return QuatToOVD(quat.Number(*q))
}

// AxisAngles returns the orientation in axis angle representation.
func (q *quaternion) AxisAngles() *R4AA {
	aa := QuatToR4AA(quat.Number(*q))
	return &aa
}

// Quaternion returns the orientation as a raw quaternion.
func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// EulerAngles returns the orientation in Euler angle representation.
func (q *quaternion) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(quat.Number(*q))
}

// RotationMatrix returns the orientation as a 3x3 rotation matrix.
func (q *quaternion) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(quat.Number(*q))
}

// QuaternionAlmostEqual returns whether two quaternions represent approximately the same
// rotation, to within tolerance. A quaternion and its negation represent the same rotation,
// so both signs are checked.
func QuaternionAlmostEqual(a, b quat.Number, tolerance float64) bool {
	diff := quat.Number{
		Real: a.Real - b.Real,
		Imag: a.Imag - b.Imag,
		Jmag: a.Jmag - b.Jmag,
		Kmag: a.Kmag - b.Kmag,
	}
	if quat.Abs(diff) <= tolerance {
		return true
	}
	sum := quat.Number{
		Real: a.Real + b.Real,
		Imag: a.Imag + b.Imag,
		Jmag: a.Jmag + b.Jmag,
		Kmag: a.Kmag + b.Kmag,
	}
	return quat.Abs(sum) <= tolerance
}

// QuatToOV converts a quaternion to an orientation vector.
func QuatToOV(q quat.Number) *OrientationVector {
	xAxis := quat.Number{Imag: -1}
	zAxis := quat.Number{Kmag: 1}
	ov := &OrientationVector{}
	newX := quat.Mul(quat.Mul(q, xAxis), quat.Conj(q))
	newZ := quat.Mul(quat.Mul(q, zAxis), quat.Conj(q))
	ov.OX = newZ.Imag
	ov.OY = newZ.Jmag
	ov.OZ = newZ.Kmag

	if 1-math.Abs(newZ.Kmag) < angleEpsilon {
		if newZ.Kmag < 0 {
			ov.Theta = -math.Atan2(newX.Jmag, newX.Imag)
		} else {
			ov.Theta = -math.Atan2(newX.Jmag, -newX.Imag)
		}
		return ov
	}

	v1 := mgl64.Vec3{newZ.Imag, newZ.Jmag, newZ.Kmag}
	v2 := mgl64.Vec3{newX.Imag, newX.Jmag, newX.Kmag}
	norm1 := v1.Cross(v2)
	norm2 := v1.Cross(mgl64.Vec3{zAxis.Imag, zAxis.Jmag, zAxis.Kmag})

	cosTheta := norm1.Dot(norm2) / (norm1.Len() * norm2.Len())
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)
	if theta <= angleEpsilon {
		ov.Theta = 0
		return ov
	}

	aa := R4AA{Theta: -theta, RX: ov.OX, RY: ov.OY, RZ: ov.OZ}
	q2 := aa.ToQuat()
	testZ := quat.Mul(quat.Mul(q2, zAxis), quat.Conj(q2))
	norm3 := v1.Cross(mgl64.Vec3{testZ.Imag, testZ.Jmag, testZ.Kmag})
	cosTest := norm1.Dot(norm3) / (norm1.Len() * norm3.Len())
	if 1-cosTest < angleEpsilon*angleEpsilon {
		ov.Theta = -theta
	} else {
		ov.Theta = theta
	}
	return ov
}

// QuatToOVD converts a quaternion to an orientation vector expressed in degrees.
func QuatToOVD(q quat.Number) *OrientationVectorDegrees {
	ov := QuatToOV(q)
	return &OrientationVectorDegrees{ov.Theta * radToDeg, ov.OX, ov.OY, ov.OZ}
}

// QuatToEulerAngles converts a rotation quaternion to roll/pitch/yaw, in degrees.
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitch := math.Asin(math.Max(-1, math.Min(1, 2*(w*y-z*x))))
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return &EulerAngles{roll * radToDeg, pitch * radToDeg, yaw * radToDeg}
}

// QuatToRotationMatrix converts a unit quaternion to a 3x3 rotation matrix.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{Data: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}}
}

// NewRotationMatrix builds a RotationMatrix directly from its nine row-major entries.
func NewRotationMatrix(data [9]float64) *RotationMatrix {
	return &RotationMatrix{Data: data}
}
