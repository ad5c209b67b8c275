// Package rbatypes defines the dimension traits and small pluggable-strategy interfaces every
// other RBA package is written against: pose algebra, sensor model, and observation noise.
// Dimensions are runtime fields rather than type parameters (Go generics can't parameterize
// array length), combined with gonum's mat.VecDense/mat.Dense for the actual fixed-size blocks.
package rbatypes

import "gonum.org/v1/gonum/mat"

// Dims carries the three dimension constants a concrete pose/landmark/observation kind fixes:
// D_p (relative pose), D_l (landmark position), D_o (observation).
type Dims struct {
	PoseDim     int
	LandmarkDim int
	ObsDim      int
}

// EdgeKind classifies a kf2kf edge by how the edge-creation policy introduced it.
type EdgeKind int

// The three edge kinds an edge-creation policy can produce.
const (
	EdgeRegular EdgeKind = iota
	EdgeLoopClosure
	EdgeFixedBase
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeLoopClosure:
		return "loop_closure"
	case EdgeFixedBase:
		return "fixed_base"
	default:
		return "regular"
	}
}

// PoseAlgebra is the pose-composition contract every relative-pose representation (SE(2),
// SE(3), ...) must satisfy so the spanning-tree, Jacobian, and solver packages never special
// case the underlying representation. Pose values are opaque to callers of this interface;
// each implementation defines its own concrete pose type and only exchanges it through here.
//
// Adjoint is required to differentiate a spanning-tree path's composed pose analytically with
// respect to a perturbation of any one edge on the path (see DESIGN.md's Open Question
// resolution).
type PoseAlgebra interface {
	// Dims reports this algebra's D_p.
	Dims() Dims
	// Identity returns the identity transform.
	Identity() any
	// Compose returns a (+) b.
	Compose(a, b any) any
	// Inverse returns the transform that undoes a.
	Inverse(a any) any
	// Exp maps a D_p-dimensional tangent vector to the pose it generates.
	Exp(v *mat.VecDense) any
	// Log is the inverse of Exp.
	Log(p any) *mat.VecDense
	// Adjoint returns the D_p x D_p matrix mapping a tangent vector in p's local frame to the
	// equivalent tangent vector in the ambient frame p is expressed in.
	Adjoint(p any) *mat.Dense
}

// SensorModel is the observation model contract: project a landmark through a relative pose
// to a predicted observation, and supply the analytic Jacobians of that projection.
type SensorModel interface {
	// Dims reports this model's (D_p, D_l, D_o). D_p must agree with the PoseAlgebra in use;
	// SensorModel.Dims is the authoritative source of D_l and D_o since PoseAlgebra.Dims only
	// fills in PoseDim.
	Dims() Dims
	// Project predicts the observation of landmark f as seen through relative pose relPose.
	// ok is false when the landmark falls outside the model's valid domain (e.g. behind the
	// sensor, or out of range) -- such observations contribute no Jacobian block.
	Project(relPose any, f *mat.VecDense, params any) (pred *mat.VecDense, ok bool)
	// Jacobians returns d(h)/d(relPose) (D_o x D_p) and d(h)/d(f) (D_o x D_l) at the given
	// linearization point. ok mirrors Project's.
	Jacobians(relPose any, f *mat.VecDense, params any) (dhdT, dhdf *mat.Dense, ok bool)
}

// NoiseModel supplies the (possibly per-observation) information matrix used to weight
// residuals and Jacobians.
type NoiseModel interface {
	// Information returns the D_o x D_o information matrix for observation obsIdx.
	Information(obsIdx int, dims Dims) *mat.Dense
}

// IdentityNoiseModel is the default NoiseModel: every observation is weighted by the identity
// matrix.
type IdentityNoiseModel struct{}

// Information returns the D_o x D_o identity matrix.
func (IdentityNoiseModel) Information(_ int, dims Dims) *mat.Dense {
	return mat.NewDense(dims.ObsDim, dims.ObsDim, identityData(dims.ObsDim))
}

func identityData(n int) []float64 {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return data
}

// SensorPoseOnRobot is the optional fixed transform composed into each observation before the
// sensor model sees it. A nil value means "none".
type SensorPoseOnRobot struct {
	Pose    any
	Algebra PoseAlgebra
}

// Apply composes the sensor-on-robot offset into a relative pose, or returns relPose unchanged
// if sp is nil.
func (sp *SensorPoseOnRobot) Apply(relPose any) any {
	if sp == nil {
		return relPose
	}
	return sp.Algebra.Compose(relPose, sp.Pose)
}
