package components

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/geometry"
)

/**
 * @brief A perspective camera placed at Eye and oriented by a Rotator. X is
 * forward, Y is right and Z is up in the camera's own frame.
 */
type Camera struct {
	eye     mgl32.Vec3
	rotator math.Rotator

	aspect float32
	fovy   float32
	near   float32
	far    float32

	/** @brief Internal flag used to determine when the cached vectors and matrices need to be rebuilt. */
	isDirty    bool
	forward    mgl32.Vec3
	right      mgl32.Vec3
	up         mgl32.Vec3
	viewMatrix mgl32.Mat4
}

func NewCamera(eye mgl32.Vec3, rotator math.Rotator, aspect, fovy, near, far float32) *Camera {
	return &Camera{
		eye:     eye,
		rotator: rotator,
		aspect:  aspect,
		fovy:    fovy,
		near:    near,
		far:     far,
		isDirty: true,
	}
}

func (c *Camera) Eye() mgl32.Vec3 {
	return c.eye
}

func (c *Camera) SetEye(eye mgl32.Vec3) {
	if c.eye != eye {
		c.eye = eye
		c.isDirty = true
	}
}

func (c *Camera) Rotator() math.Rotator {
	return c.rotator
}

func (c *Camera) SetRotator(rotator math.Rotator) {
	c.rotator = rotator
	c.isDirty = true
}

func (c *Camera) Aspect() float32 {
	return c.aspect
}

// SetAspect follows the surface size. A zero height keeps the previous aspect.
func (c *Camera) SetAspect(width, height uint32) {
	if height == 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *Camera) Near() float32 { return c.near }
func (c *Camera) Far() float32  { return c.far }

func (c *Camera) rebuild() {
	if !c.isDirty {
		return
	}
	c.forward = c.rotator.Forward()
	c.right = c.rotator.Right()
	c.up = c.rotator.Up()
	c.viewMatrix = math.LookTo(c.eye, c.forward, c.up)
	c.isDirty = false
}

func (c *Camera) Forward() mgl32.Vec3 {
	c.rebuild()
	return c.forward
}

func (c *Camera) Right() mgl32.Vec3 {
	c.rebuild()
	return c.right
}

func (c *Camera) Up() mgl32.Vec3 {
	c.rebuild()
	return c.up
}

func (c *Camera) View() mgl32.Mat4 {
	c.rebuild()
	return c.viewMatrix
}

func (c *Camera) Projection() mgl32.Mat4 {
	return math.Perspective(c.fovy, c.aspect, c.near, c.far)
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// CameraUniformSize is the size in bytes of the camera uniform buffer.
const CameraUniformSize = 64

/** @brief The data of the camera uniform buffer, binding 0 of the scene pipelines. */
type CameraUniform struct {
	ViewProj mgl32.Mat4
}

func NewCameraUniform() CameraUniform {
	return CameraUniform{ViewProj: mgl32.Ident4()}
}

func (u *CameraUniform) UpdateViewProj(camera *Camera) {
	u.ViewProj = camera.ViewProjection()
}

func (u *CameraUniform) Bytes() []byte {
	return geometry.AppendMat4(make([]byte, 0, CameraUniformSize), u.ViewProj)
}
