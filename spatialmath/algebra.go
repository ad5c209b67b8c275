package spatialmath

import (
	"github.com/golang/geo/r3"
	"go.viam.com/rba/rbatypes"
	"gonum.org/v1/gonum/mat"
)

// SE2Algebra implements rbatypes.PoseAlgebra for planar relative poses.
type SE2Algebra struct{}

// Dims returns {PoseDim: 3}.
func (SE2Algebra) Dims() rbatypes.Dims { return rbatypes.Dims{PoseDim: 3} }

// Identity returns the SE(2) identity pose.
func (SE2Algebra) Identity() any { return IdentityPose2D() }

// Compose returns a (+) b.
func (SE2Algebra) Compose(a, b any) any { return a.(Pose2D).Compose(b.(Pose2D)) }

// Inverse returns the pose that undoes a.
func (SE2Algebra) Inverse(a any) any { return a.(Pose2D).Inverse() }

// Exp maps a (vx, vy, omega) tangent vector to the pose it generates.
func (SE2Algebra) Exp(v *mat.VecDense) any {
	return ExpSE2(v.AtVec(0), v.AtVec(1), v.AtVec(2))
}

// Log is the inverse of Exp.
func (SE2Algebra) Log(p any) *mat.VecDense {
	vx, vy, omega := LogSE2(p.(Pose2D))
	return mat.NewVecDense(3, []float64{vx, vy, omega})
}

// Adjoint returns the 3x3 adjoint of p.
func (SE2Algebra) Adjoint(p any) *mat.Dense {
	a := AdjointSE2(p.(Pose2D))
	return mat.NewDense(3, 3, a[:])
}

// SE3Algebra implements rbatypes.PoseAlgebra for spatial relative poses.
type SE3Algebra struct{}

// Dims returns {PoseDim: 6}.
func (SE3Algebra) Dims() rbatypes.Dims { return rbatypes.Dims{PoseDim: 6} }

// Identity returns the SE(3) identity pose.
func (SE3Algebra) Identity() any { return IdentityPose3D() }

// Compose returns a (+) b.
func (SE3Algebra) Compose(a, b any) any { return a.(Pose3D).Compose(b.(Pose3D)) }

// Inverse returns the pose that undoes a.
func (SE3Algebra) Inverse(a any) any { return a.(Pose3D).Inverse() }

// Exp maps a stacked (v, omega) tangent vector to the pose it generates.
func (SE3Algebra) Exp(vec *mat.VecDense) any {
	v := r3.Vector{X: vec.AtVec(0), Y: vec.AtVec(1), Z: vec.AtVec(2)}
	omega := r3.Vector{X: vec.AtVec(3), Y: vec.AtVec(4), Z: vec.AtVec(5)}
	return ExpSE3(v, omega)
}

// Log is the inverse of Exp.
func (SE3Algebra) Log(p any) *mat.VecDense {
	v, omega := LogSE3(p.(Pose3D))
	return mat.NewVecDense(6, []float64{v.X, v.Y, v.Z, omega.X, omega.Y, omega.Z})
}

// Adjoint returns the 6x6 adjoint of p.
func (SE3Algebra) Adjoint(p any) *mat.Dense {
	a := AdjointSE3(p.(Pose3D))
	return mat.NewDense(6, 6, a[:])
}
