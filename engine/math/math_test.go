package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, 0, Clamp(-2, 0, 5))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
	assert.Equal(t, uint32(1), Clamp[uint32](0, 1, 10))
}

func TestLinearizeDepth(t *testing.T) {
	n, f := DefaultNear, DefaultFar

	// far plane sample maps to full intensity
	assert.InDelta(t, 1.0, LinearizeDepth(1.0, n, f), 1e-6)
	// near plane sample
	assert.InDelta(t, 2*n/(f+n), LinearizeDepth(0.0, n, f), 1e-6)
	assert.InDelta(t, 0.2/1.199, LinearizeDepth(0.99, n, f), 1e-4)

	prev := LinearizeDepth(0, n, f)
	for i := 1; i <= 100; i++ {
		cur := LinearizeDepth(float32(i)/100, n, f)
		assert.Greater(t, cur, prev, "must be monotonic in d")
		prev = cur
	}
}

func TestDepthIntensityIsClamped(t *testing.T) {
	for _, d := range []float32{0, 0.25, 0.5, 0.9, 0.999, 1} {
		v := DepthIntensity(d)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func assertVec(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-6), "want %v got %v", want, got)
}

func TestRotator(t *testing.T) {
	x, y, z := mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}
	apply := func(r Rotator, v mgl32.Vec3) mgl32.Vec3 {
		return r.Matrix().Mul4x1(v.Vec4(0)).Vec3()
	}

	zero := Rotator{}
	assertVec(t, x, apply(zero, x))
	assertVec(t, y, apply(zero, y))
	assertVec(t, z, apply(zero, z))

	yaw := Rotator{Yaw: 90}
	assertVec(t, y, apply(yaw, x))
	assertVec(t, x.Mul(-1), apply(yaw, y))
	assertVec(t, z, apply(yaw, z))

	pitch := Rotator{Pitch: 90}
	assertVec(t, z.Mul(-1), apply(pitch, x))
	assertVec(t, y, apply(pitch, y))
	assertVec(t, x, apply(pitch, z))

	roll := Rotator{Roll: 90}
	assertVec(t, x, apply(roll, x))
	assertVec(t, z, apply(roll, y))
	assertVec(t, y.Mul(-1), apply(roll, z))

	assertVec(t, y, yaw.Forward())
	assertVec(t, x.Mul(-1), yaw.Right())
	assertVec(t, z, yaw.Up())
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := Perspective(90, 1, DefaultNear, DefaultFar)
	project := func(zView float32) float32 {
		clip := p.Mul4x1(mgl32.Vec4{0, 0, zView, 1})
		return clip.Z() / clip.W()
	}
	assert.InDelta(t, 0.0, project(-DefaultNear), 1e-5)
	assert.InDelta(t, 1.0, project(-DefaultFar), 1e-5)

	clip := p.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	assert.Less(t, clip.Y(), float32(0), "y points down in clip space")
}
