package sensormodels

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spatialmath"
)

// SE3SphericalRBE observes a 3D landmark as (range, bearing, elevation) in the sensor's own
// frame. D_p=6 (v, omega), D_l=3, D_o=3.
type SE3SphericalRBE struct {
	MaxRange float64 // <=0 means unbounded
}

// Dims implements rbatypes.SensorModel.
func (SE3SphericalRBE) Dims() rbatypes.Dims {
	return rbatypes.Dims{PoseDim: 6, LandmarkDim: 3, ObsDim: 3}
}

func pointInSensorFrame(relPose any, f *mat.VecDense) (r3.Vector, bool) {
	pose, ok := relPose.(spatialmath.Pose3D)
	if !ok {
		return r3.Vector{}, false
	}
	fv := r3.Vector{X: f.AtVec(0), Y: f.AtVec(1), Z: f.AtVec(2)}
	return pose.Point(fv), true
}

// Project implements rbatypes.SensorModel.
func (m SE3SphericalRBE) Project(relPose any, f *mat.VecDense, params any) (*mat.VecDense, bool) {
	p, ok := pointInSensorFrame(relPose, f)
	if !ok {
		return nil, false
	}
	rng := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
	if rng < 1e-9 || (m.MaxRange > 0 && rng > m.MaxRange) {
		return nil, false
	}
	rxy := math.Hypot(p.X, p.Y)
	bearing := math.Atan2(p.Y, p.X)
	elevation := math.Atan2(p.Z, rxy)
	return mat.NewVecDense(3, []float64{rng, bearing, elevation}), true
}

// Jacobians implements rbatypes.SensorModel.
func (m SE3SphericalRBE) Jacobians(relPose any, f *mat.VecDense, params any) (*mat.Dense, *mat.Dense, bool) {
	pose, ok := relPose.(spatialmath.Pose3D)
	if !ok {
		return nil, nil, false
	}
	fv := r3.Vector{X: f.AtVec(0), Y: f.AtVec(1), Z: f.AtVec(2)}
	p := pose.Point(fv)
	rxy := math.Hypot(p.X, p.Y)
	r2 := p.X*p.X + p.Y*p.Y + p.Z*p.Z
	rng := math.Sqrt(r2)
	if rng < 1e-9 || rxy < 1e-9 {
		return nil, nil, false
	}

	dhdp := mat.NewDense(3, 3, []float64{
		p.X / rng, p.Y / rng, p.Z / rng,
		-p.Y / (rxy * rxy), p.X / (rxy * rxy), 0,
		-(p.Z * p.X) / (r2 * rxy), -(p.Z * p.Y) / (r2 * rxy), rxy / r2,
	})

	rot := rotationMatrixOf(pose)

	// d(point)/d(delta), delta=(v,omega) under T' = T (+) Exp(v,omega).
	skewF := mat.NewDense(3, 3, []float64{
		0, -fv.Z, fv.Y,
		fv.Z, 0, -fv.X,
		-fv.Y, fv.X, 0,
	})
	dpdDelta := mat.NewDense(3, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				dpdDelta.Set(i, j, 1)
			}
			dpdDelta.Set(i, j+3, -skewF.At(i, j))
		}
	}
	dpdDeltaRotated := mat.NewDense(3, 6, nil)
	dpdDeltaRotated.Mul(rot, dpdDelta)

	dhdT := mat.NewDense(3, 6, nil)
	dhdT.Mul(dhdp, dpdDeltaRotated)

	dhdf := mat.NewDense(3, 3, nil)
	dhdf.Mul(dhdp, rot)

	return dhdT, dhdf, true
}

func rotationMatrixOf(pose spatialmath.Pose3D) *mat.Dense {
	rm := spatialmath.QuatToRotationMatrix(pose.Rot)
	return mat.NewDense(3, 3, append([]float64{}, rm.Data[:]...))
}
