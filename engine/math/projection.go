package math

import "github.com/go-gl/mathgl/mgl32"

// clipCorrection maps OpenGL clip space (y up, z in [-1, 1]) to the
// Vulkan convention (y down, z in [0, 1]).
var clipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Perspective builds a right handed projection for a [0, 1] depth range.
// fovy is in degrees.
func Perspective(fovy, aspect, near, far float32) mgl32.Mat4 {
	return clipCorrection.Mul4(mgl32.Perspective(mgl32.DegToRad(fovy), aspect, near, far))
}

// LookTo builds a right handed view matrix looking from eye along dir.
func LookTo(eye, dir, up mgl32.Vec3) mgl32.Mat4 {
	return mgl32.LookAtV(eye, eye.Add(dir), up)
}
