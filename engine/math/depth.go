package math

const (
	// DefaultNear and DefaultFar are the camera planes the depth view is calibrated for.
	DefaultNear float32 = 0.1
	DefaultFar  float32 = 100.0
)

// LinearizeDepth maps a stored depth sample d in [0, 1] to a display
// intensity using r = 2n / (f + n - d(f - n)).
//
// assets/shaders/depth.frag evaluates the same expression on the GPU, keep them in sync.
func LinearizeDepth(d, near, far float32) float32 {
	return (2.0 * near) / (far + near - d*(far-near))
}

// DepthIntensity is LinearizeDepth with the default planes, clamped to [0, 1].
func DepthIntensity(d float32) float32 {
	return Clamp(LinearizeDepth(d, DefaultNear, DefaultFar), 0, 1)
}
