package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose3D is a rigid transform in space: a unit rotation quaternion and a translation. It is
// the pose representation used by the SE(3) relative pose edges and sensor models.
type Pose3D struct {
	Rot   quat.Number
	Trans r3.Vector
}

// IdentityPose3D returns the SE(3) identity transform.
func IdentityPose3D() Pose3D {
	return Pose3D{Rot: quat.Number{Real: 1}}
}

// Compose returns p1 (+) p2: the transform that first applies p1, then p2 expressed in p1's
// rotated frame.
func (p1 Pose3D) Compose(p2 Pose3D) Pose3D {
	rotated := rotateVec(p1.Rot, p2.Trans)
	return Pose3D{
		Rot:   quat.Mul(p1.Rot, p2.Rot),
		Trans: p1.Trans.Add(rotated),
	}
}

// Inverse returns the transform that undoes p.
func (p Pose3D) Inverse() Pose3D {
	invRot := quat.Conj(p.Rot)
	return Pose3D{
		Rot:   invRot,
		Trans: rotateVec(invRot, p.Trans.Mul(-1)),
	}
}

// Point maps a point from p's local frame into the frame p is expressed in.
func (p Pose3D) Point(v r3.Vector) r3.Vector {
	return p.Trans.Add(rotateVec(p.Rot, v))
}

func rotateVec(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// ExpSE3 maps a tangent vector (v, omega) in se(3) -- v the translational part, omega the
// rotational part, both in the local frame -- to the SE(3) pose it generates, using the
// closed-form Rodrigues rotation and the left-Jacobian V matrix for translation. See
// "A tutorial on SE(3) transformation parameterizations and on-manifold optimization",
// Jose-Luis Blanco, 2010, sec 9/10.
func ExpSE3(v, omega r3.Vector) Pose3D {
	theta := omega.Norm()
	rot := axisAngleToQuat(omega, theta)

	var a, b, c float64
	if theta < 1e-9 {
		a = 1 - theta*theta/6
		b = 0.5 - theta*theta/24
		c = 1.0 / 6
	} else {
		sin, cos := math.Sincos(theta)
		a = sin / theta
		b = (1 - cos) / (theta * theta)
		c = (1 - a) / (theta * theta)
	}
	// V = a*I + b*[omega]x + c*omega*omega^T
	skew := skewMat(omega)
	vMat := [9]float64{
		a + c*omega.X*omega.X, b*skew[1] + c*omega.X*omega.Y, b*skew[2] + c*omega.X*omega.Z,
		b*skew[3] + c*omega.Y*omega.X, a + c*omega.Y*omega.Y, b*skew[5] + c*omega.Y*omega.Z,
		b*skew[6] + c*omega.Z*omega.X, b*skew[7] + c*omega.Z*omega.Y, a + c*omega.Z*omega.Z,
	}
	trans := matVec(vMat, v)
	return Pose3D{Rot: rot, Trans: trans}
}

// LogSE3 is the inverse of ExpSE3.
func LogSE3(p Pose3D) (v, omega r3.Vector) {
	aa := QuatToR4AA(p.Rot)
	theta := aa.Theta
	omega = r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}.Mul(theta)

	var a, b float64
	if math.Abs(theta) < 1e-9 {
		a = 1 - theta*theta/6
		b = 0.5 - theta*theta/24
	} else {
		sin, cos := math.Sincos(theta)
		a = sin / theta
		b = (1 - cos) / (theta * theta)
	}
	c := 0.0
	if theta >= 1e-9 {
		c = (1 - a) / (theta * theta)
	} else {
		c = 1.0 / 6
	}
	skew := skewMat(omega)
	vMat := [9]float64{
		a + c*omega.X*omega.X, b*skew[1] + c*omega.X*omega.Y, b*skew[2] + c*omega.X*omega.Z,
		b*skew[3] + c*omega.Y*omega.X, a + c*omega.Y*omega.Y, b*skew[5] + c*omega.Y*omega.Z,
		b*skew[6] + c*omega.Z*omega.X, b*skew[7] + c*omega.Z*omega.Y, a + c*omega.Z*omega.Z,
	}
	v = solve3x3(vMat, p.Trans)
	return v, omega
}

// AdjointSE3 returns the 6x6 adjoint matrix of p in row-major order, acting on a stacked
// (v, omega) tangent vector: the top-left and bottom-right 3x3 blocks are the rotation matrix
// R, the bottom-left block is zero, and the top-right block is [t]x * R.
func AdjointSE3(p Pose3D) [36]float64 {
	rm := QuatToRotationMatrix(p.Rot)
	var r [9]float64
	copy(r[:], rm.Data[:])
	tx := skewMat(p.Trans)
	txr := matMul3x3(tx, r)

	var adj [36]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			adj[row*6+col] = r[row*3+col]
			adj[row*6+3+col] = txr[row*3+col]
			adj[(row+3)*6+3+col] = r[row*3+col]
		}
	}
	return adj
}

func axisAngleToQuat(omega r3.Vector, theta float64) quat.Number {
	if theta < 1e-12 {
		return quat.Number{Real: 1}
	}
	aa := R4AA{Theta: theta, RX: omega.X / theta, RY: omega.Y / theta, RZ: omega.Z / theta}
	return aa.ToQuat()
}

// skewMat returns the 3x3 skew-symmetric cross-product matrix [v]x in row-major order.
func skewMat(v r3.Vector) [9]float64 {
	return [9]float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	}
}

func matVec(m [9]float64, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

func matMul3x3(a, b [9]float64) [9]float64 {
	var out [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[i*3+k] * b[k*3+j]
			}
			out[i*3+j] = sum
		}
	}
	return out
}

// solve3x3 solves m*x = b via Cramer's rule; the V matrices passed in here are always
// well-conditioned (determinant bounded away from zero since a, b, c above stay near 1, 0.5,
// 1/6 respectively for small theta).
func solve3x3(m [9]float64, b r3.Vector) r3.Vector {
	det := m[0]*(m[4]*m[8]-m[5]*m[7]) - m[1]*(m[3]*m[8]-m[5]*m[6]) + m[2]*(m[3]*m[7]-m[4]*m[6])
	inv := [9]float64{
		(m[4]*m[8] - m[5]*m[7]) / det, (m[2]*m[7] - m[1]*m[8]) / det, (m[1]*m[5] - m[2]*m[4]) / det,
		(m[5]*m[6] - m[3]*m[8]) / det, (m[0]*m[8] - m[2]*m[6]) / det, (m[2]*m[3] - m[0]*m[5]) / det,
		(m[3]*m[7] - m[4]*m[6]) / det, (m[1]*m[6] - m[0]*m[7]) / det, (m[0]*m[4] - m[1]*m[3]) / det,
	}
	return matVec(inv, b)
}
