package hessian

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"go.viam.com/test"

	"go.viam.com/rba/jacobian"
	"go.viam.com/rba/rbatypes"
)

func scalarObservation(obsIdx int, e0, e1, lm, residual float64, valid bool) *jacobian.Observation {
	return &jacobian.Observation{
		ObsIdx: obsIdx,
		EdgeColumns: []jacobian.EdgeColumn{
			{EdgeID: 0, Block: mat.NewDense(1, 1, []float64{e0})},
			{EdgeID: 1, Block: mat.NewDense(1, 1, []float64{e1})},
		},
		LandmarkCol: mat.NewDense(1, 1, []float64{lm}),
		Residual:    mat.NewVecDense(1, []float64{residual}),
		Valid:       valid,
	}
}

func scalarLmOf(_ int) int { return 7 }
func scalarInfo(_ int) *mat.Dense { return mat.NewDense(1, 1, []float64{1}) }

func TestBuildSymbolicStructure(t *testing.T) {
	obs := []*jacobian.Observation{scalarObservation(0, 3, 4, 5, 2, true)}
	sym := BuildSymbolic(rbatypes.Dims{PoseDim: 1, LandmarkDim: 1, ObsDim: 1}, obs, scalarLmOf)

	test.That(t, sym.EdgePairs, test.ShouldResemble, []EdgePair{{0, 0}, {0, 1}, {1, 1}})
	test.That(t, sym.Landmarks, test.ShouldResemble, []int{7})
	test.That(t, len(sym.HApfKeys), test.ShouldEqual, 2)
}

func TestBuildNumericScalarValues(t *testing.T) {
	obs := []*jacobian.Observation{scalarObservation(0, 3, 4, 5, 2, true)}
	sys := BuildNumeric(rbatypes.Dims{PoseDim: 1, LandmarkDim: 1, ObsDim: 1}, obs, scalarLmOf, scalarInfo, false, 1)

	test.That(t, sys.HAp[EdgePair{0, 0}].At(0, 0), test.ShouldEqual, 9.0)
	test.That(t, sys.HAp[EdgePair{0, 1}].At(0, 0), test.ShouldEqual, 12.0)
	test.That(t, sys.HAp[EdgePair{1, 1}].At(0, 0), test.ShouldEqual, 16.0)
	test.That(t, sys.Hf[7].At(0, 0), test.ShouldEqual, 25.0)
	test.That(t, sys.HApf[HApfKey{EdgeID: 0, LmID: 7}].At(0, 0), test.ShouldEqual, 15.0)
	test.That(t, sys.HApf[HApfKey{EdgeID: 1, LmID: 7}].At(0, 0), test.ShouldEqual, 20.0)
	test.That(t, sys.GAp[0].AtVec(0), test.ShouldEqual, 6.0)
	test.That(t, sys.GAp[1].AtVec(0), test.ShouldEqual, 8.0)
	test.That(t, sys.Gf[7].AtVec(0), test.ShouldEqual, 10.0)
	test.That(t, sys.TotalError, test.ShouldEqual, 4.0)
	test.That(t, sys.BlocksSkipped, test.ShouldEqual, 0)
}

func TestBuildNumericSkipsInvalid(t *testing.T) {
	obs := []*jacobian.Observation{
		scalarObservation(0, 3, 4, 5, 2, true),
		scalarObservation(1, 1, 1, 1, 1, false),
	}
	sys := BuildNumeric(rbatypes.Dims{PoseDim: 1, LandmarkDim: 1, ObsDim: 1}, obs, scalarLmOf, scalarInfo, false, 1)
	test.That(t, sys.BlocksSkipped, test.ShouldEqual, 1)
}

func TestHuberWeightDownweightsLargeResidual(t *testing.T) {
	small := HuberWeight(0.1, 1.0)
	large := HuberWeight(10.0, 1.0)
	test.That(t, small > large, test.ShouldBeTrue)
	test.That(t, HuberWeight(0, 1.0), test.ShouldEqual, 1.0)
}
