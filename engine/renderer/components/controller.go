package components

import (
	"github.com/spaghettifunk/prism/engine/core"
)

/**
 * @brief Flies a camera from the polled input state. W/S or Up/Down move
 * along the view direction, A/D or Left/Right strafe, and dragging with the
 * right mouse button turns the camera.
 */
type CameraController struct {
	MoveSpeed     float32
	RotationSpeed float32
}

func NewCameraController(moveSpeed, rotationSpeed float32) *CameraController {
	return &CameraController{
		MoveSpeed:     moveSpeed,
		RotationSpeed: rotationSpeed,
	}
}

// Update applies one frame of input to camera and reports whether it moved.
// Call it before input.Update so the previous frame's state is still there.
func (cc *CameraController) Update(input *core.Input, camera *Camera) bool {
	moved := false

	// the button must already have been down last frame
	if input.IsButtonDown(core.BUTTON_RIGHT) && input.WasButtonDown(core.BUTTON_RIGHT) {
		dx, dy := input.MouseDelta()
		if dx != 0 || dy != 0 {
			r := camera.Rotator()
			r.Yaw += float32(dx) * cc.RotationSpeed
			r.Pitch += float32(dy) * cc.RotationSpeed
			camera.SetRotator(r)
			moved = true
		}
	}

	forward, right := 0, 0
	if input.IsKeyDown(core.KEY_W) || input.IsKeyDown(core.KEY_UP) {
		forward++
	}
	if input.IsKeyDown(core.KEY_S) || input.IsKeyDown(core.KEY_DOWN) {
		forward--
	}
	if input.IsKeyDown(core.KEY_A) || input.IsKeyDown(core.KEY_LEFT) {
		right++
	}
	if input.IsKeyDown(core.KEY_D) || input.IsKeyDown(core.KEY_RIGHT) {
		right--
	}

	if forward != 0 || right != 0 {
		eye := camera.Eye().
			Add(camera.Forward().Mul(float32(forward) * cc.MoveSpeed)).
			Add(camera.Right().Mul(float32(right) * cc.MoveSpeed))
		camera.SetEye(eye)
		moved = true
	}
	return moved
}
