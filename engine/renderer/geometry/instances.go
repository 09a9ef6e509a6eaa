package geometry

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/math"
)

/** @brief Per instance data, the model matrix. */
type Instance struct {
	Model mgl32.Mat4
}

// InstanceAngle is the animated rotation in degrees at t seconds. It swings
// between 10 and 170.
func InstanceAngle(t float64) float32 {
	return float32(90 + 80*gomath.Sin(2*t))
}

// InstanceGrid places cols x rows instances one unit apart at z = 1. Every
// instance is turned by a share of angle that grows with its column (yaw)
// and its row (pitch), so the grid fans out from -angle/2 to +angle/2.
func InstanceGrid(cols, rows int, angle float32) []Instance {
	instances := make([]Instance, cols*rows)
	UpdateInstanceGrid(instances, cols, rows, angle)
	return instances
}

// UpdateInstanceGrid rewrites instances laid out by InstanceGrid in place.
func UpdateInstanceGrid(instances []Instance, cols, rows int, angle float32) {
	if len(instances) != cols*rows {
		return
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			rot := math.Rotator{
				Yaw:   angle * (-0.5 + float32(x+1)/float32(cols)),
				Pitch: angle * (-0.5 + float32(y+1)/float32(rows)),
			}
			translation := mgl32.Translate3D(float32(x), float32(y), 1)
			instances[y*cols+x].Model = translation.Mul4(rot.Matrix())
		}
	}
}
