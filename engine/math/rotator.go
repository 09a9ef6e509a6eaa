package math

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// Rotator is an orientation expressed as yaw, pitch and roll in degrees.
// Yaw turns around +Z, pitch around +Y and roll around +X.
type Rotator struct {
	Yaw   float32
	Pitch float32
	Roll  float32
}

func sincos(degrees float32) (float32, float32) {
	s, c := gomath.Sincos(float64(Deg2Rad(degrees)))
	return float32(s), float32(c)
}

// Matrix returns the rotation as a column major matrix.
func (r Rotator) Matrix() mgl32.Mat4 {
	sa, ca := sincos(r.Roll)
	sb, cb := sincos(r.Pitch)
	sg, cg := sincos(r.Yaw)

	return mgl32.Mat4{
		cb * cg, cb * sg, -sb, 0,
		sa*sb*cg - ca*sg, sa*sb*sg + ca*cg, sa * cb, 0,
		ca*sb*cg + sa*sg, ca*sb*sg - sa*cg, ca * cb, 0,
		0, 0, 0, 1,
	}
}

// Forward, Right and Up are the rotated unit X, Y and Z axes.
func (r Rotator) Forward() mgl32.Vec3 {
	return r.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 0}).Vec3()
}

func (r Rotator) Right() mgl32.Vec3 {
	return r.Matrix().Mul4x1(mgl32.Vec4{0, 1, 0, 0}).Vec3()
}

func (r Rotator) Up() mgl32.Vec3 {
	return r.Matrix().Mul4x1(mgl32.Vec4{0, 0, 1, 0}).Vec3()
}
