package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestPose2DComposeInverseIdentity(t *testing.T) {
	p := Pose2D{X: 1.5, Y: -0.5, Theta: 0.4}
	inv := p.Inverse()
	composed := p.Compose(inv)
	test.That(t, math.Abs(composed.X) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(composed.Y) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(composed.Theta) < 1e-9, test.ShouldBeTrue)
}

func TestPose2DComposeIdentity(t *testing.T) {
	p := Pose2D{X: 1.5, Y: -0.5, Theta: 0.4}
	id := IdentityPose2D()
	out := id.Compose(p)
	test.That(t, out, test.ShouldResemble, p)
}

func TestPose2DPointMatchesCompose(t *testing.T) {
	p := Pose2D{X: 1, Y: 2, Theta: math.Pi / 2}
	x, y := p.Point(1, 0)
	test.That(t, math.Abs(x-1) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(y-3) < 1e-9, test.ShouldBeTrue)
}

func TestExpLogSE2RoundTrip(t *testing.T) {
	cases := [][3]float64{
		{1.2, -0.3, 0.5},
		{0, 0, 0},
		{0.001, 0.002, 1e-10},
		{-2, 3, -2.5},
	}
	for _, c := range cases {
		p := ExpSE2(c[0], c[1], c[2])
		vx, vy, omega := LogSE2(p)
		test.That(t, math.Abs(vx-c[0]) < 1e-6, test.ShouldBeTrue)
		test.That(t, math.Abs(vy-c[1]) < 1e-6, test.ShouldBeTrue)
		test.That(t, math.Abs(omega-c[2]) < 1e-6, test.ShouldBeTrue)
	}
}

func TestAdjointSE2Identity(t *testing.T) {
	adj := AdjointSE2(IdentityPose2D())
	test.That(t, adj, test.ShouldResemble, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// AdjointSE2(p) maps a local tangent vector to its ambient equivalent: compare the small-angle
// prediction p*exp(delta) against exp(Ad(p)*delta)*p for a small delta.
func TestAdjointSE2MatchesConjugation(t *testing.T) {
	p := Pose2D{X: 1, Y: 0.5, Theta: 0.3}
	delta := [3]float64{0.001, -0.002, 0.0005}
	adj := AdjointSE2(p)
	ambient := [3]float64{
		adj[0]*delta[0] + adj[1]*delta[1] + adj[2]*delta[2],
		adj[3]*delta[0] + adj[4]*delta[1] + adj[5]*delta[2],
		adj[6]*delta[0] + adj[7]*delta[1] + adj[8]*delta[2],
	}

	lhs := p.Compose(ExpSE2(delta[0], delta[1], delta[2]))
	rhs := ExpSE2(ambient[0], ambient[1], ambient[2]).Compose(p)

	test.That(t, math.Abs(lhs.X-rhs.X) < 1e-6, test.ShouldBeTrue)
	test.That(t, math.Abs(lhs.Y-rhs.Y) < 1e-6, test.ShouldBeTrue)
	test.That(t, math.Abs(lhs.Theta-rhs.Theta) < 1e-6, test.ShouldBeTrue)
}
