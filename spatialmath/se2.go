package spatialmath

import "math"

// Pose2D is a rigid transform in the plane: a translation (X, Y) and a heading Theta, in
// radians. It is the pose representation used by planar sensor models and planar relative
// pose edges.
type Pose2D struct {
	X     float64
	Y     float64
	Theta float64
}

// IdentityPose2D returns the SE(2) identity transform.
func IdentityPose2D() Pose2D {
	return Pose2D{}
}

// Compose returns p1 (+) p2, the transform that first applies p1 then p2 in p1's frame.
func (p1 Pose2D) Compose(p2 Pose2D) Pose2D {
	sin, cos := math.Sincos(p1.Theta)
	return Pose2D{
		X:     p1.X + cos*p2.X - sin*p2.Y,
		Y:     p1.Y + sin*p2.X + cos*p2.Y,
		Theta: wrapAngle(p1.Theta + p2.Theta),
	}
}

// Inverse returns the pose that undoes p.
func (p Pose2D) Inverse() Pose2D {
	sin, cos := math.Sincos(p.Theta)
	return Pose2D{
		X:     -cos*p.X - sin*p.Y,
		Y:     sin*p.X - cos*p.Y,
		Theta: wrapAngle(-p.Theta),
	}
}

// Point applies the pose to a 2D point, mapping it from the pose's local frame to the frame
// the pose is expressed in.
func (p Pose2D) Point(x, y float64) (float64, float64) {
	sin, cos := math.Sincos(p.Theta)
	return p.X + cos*x - sin*y, p.Y + sin*x + cos*y
}

// ExpSE2 maps a tangent vector (vx, vy, omega) in se(2) to the SE(2) pose it generates,
// following the standard sinc-based closed form for the planar exponential map.
func ExpSE2(vx, vy, omega float64) Pose2D {
	var a, b float64
	if math.Abs(omega) < 1e-9 {
		a = 1 - omega*omega/6
		b = omega / 2
	} else {
		sin, cos := math.Sincos(omega)
		a = sin / omega
		b = (1 - cos) / omega
	}
	return Pose2D{
		X:     a*vx - b*vy,
		Y:     b*vx + a*vy,
		Theta: wrapAngle(omega),
	}
}

// LogSE2 is the inverse of ExpSE2: it maps an SE(2) pose to the tangent vector (vx, vy, omega)
// that generates it.
func LogSE2(p Pose2D) (vx, vy, omega float64) {
	omega = p.Theta
	var a, b float64
	if math.Abs(omega) < 1e-9 {
		a = 1 - omega*omega/6
		b = omega / 2
	} else {
		sin, cos := math.Sincos(omega)
		a = sin / omega
		b = (1 - cos) / omega
	}
	det := a*a + b*b
	vx = (a*p.X + b*p.Y) / det
	vy = (-b*p.X + a*p.Y) / det
	return vx, vy, omega
}

// AdjointSE2 returns the 3x3 adjoint matrix of p in row-major order, mapping a tangent vector
// expressed in p's local frame to the equivalent tangent vector expressed in the ambient frame:
// Ad(p) * log(delta) = log(p * exp(delta) * p^-1) to first order.
func AdjointSE2(p Pose2D) [9]float64 {
	sin, cos := math.Sincos(p.Theta)
	return [9]float64{
		cos, -sin, p.Y,
		sin, cos, -p.X,
		0, 0, 1,
	}
}

func wrapAngle(theta float64) float64 {
	for theta > math.Pi {
		theta -= 2 * math.Pi
	}
	for theta < -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}
