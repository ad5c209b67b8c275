// Package sensormodels supplies concrete rbatypes.SensorModel implementations: a 2D
// range-bearing model and a 3D spherical range-bearing-elevation model, both with fully
// analytic Jacobians.
package sensormodels

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spatialmath"
)

// SE2RangeBearing observes a 2D landmark as (range, bearing) in the sensor's own frame.
// D_p=3 (x, y, theta), D_l=2, D_o=2.
type SE2RangeBearing struct {
	MaxRange float64 // <=0 means unbounded
}

// Dims implements rbatypes.SensorModel.
func (SE2RangeBearing) Dims() rbatypes.Dims {
	return rbatypes.Dims{PoseDim: 3, LandmarkDim: 2, ObsDim: 2}
}

// Project implements rbatypes.SensorModel.
func (m SE2RangeBearing) Project(relPose any, f *mat.VecDense, params any) (*mat.VecDense, bool) {
	pose, ok := relPose.(spatialmath.Pose2D)
	if !ok {
		return nil, false
	}
	px, py := pose.Point(f.AtVec(0), f.AtVec(1))
	rng := math.Hypot(px, py)
	if rng < 1e-9 || (m.MaxRange > 0 && rng > m.MaxRange) {
		return nil, false
	}
	bearing := math.Atan2(py, px)
	return mat.NewVecDense(2, []float64{rng, bearing}), true
}

// Jacobians implements rbatypes.SensorModel.
func (m SE2RangeBearing) Jacobians(relPose any, f *mat.VecDense, params any) (*mat.Dense, *mat.Dense, bool) {
	pose, ok := relPose.(spatialmath.Pose2D)
	if !ok {
		return nil, nil, false
	}
	fx, fy := f.AtVec(0), f.AtVec(1)
	px, py := pose.Point(fx, fy)
	rng := math.Hypot(px, py)
	if rng < 1e-9 {
		return nil, nil, false
	}
	r2 := rng * rng

	// d(range,bearing)/d(point in sensor frame)
	dhdp := mat.NewDense(2, 2, []float64{
		px / rng, py / rng,
		-py / r2, px / r2,
	})

	cosT, sinT := math.Cos(pose.Theta), math.Sin(pose.Theta)
	rot := mat.NewDense(2, 2, []float64{cosT, -sinT, sinT, cosT})

	// d(point)/d(delta), delta=(dx,dy,dtheta) under T' = T (+) Exp(delta).
	dpdDelta := mat.NewDense(2, 3, []float64{
		1, 0, -fy,
		0, 1, fx,
	})
	dpdDeltaRotated := mat.NewDense(2, 3, nil)
	dpdDeltaRotated.Mul(rot, dpdDelta)

	dhdT := mat.NewDense(2, 3, nil)
	dhdT.Mul(dhdp, dpdDeltaRotated)

	dhdf := mat.NewDense(2, 2, nil)
	dhdf.Mul(dhdp, rot)

	return dhdT, dhdf, true
}
