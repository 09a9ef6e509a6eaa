package renderer

import "github.com/spaghettifunk/prism/engine/renderer/metadata"

// Backend is the graphics device the surface manager drives. Implementations
// are not safe for concurrent use; the render loop owns them.
type Backend interface {
	Name() string
	// Initialize negotiates adapter and device for window and creates the
	// presentable surface, returning what it supports.
	Initialize(window metadata.Window) (*metadata.SurfaceCapabilities, error)
	// Configure (re)configures the surface. The device is idle when it returns.
	Configure(config metadata.SurfaceConfig) error
	CreateDepthTexture(label string, width, height uint32) (metadata.DepthTexture, error)

	Acquire() (*metadata.Frame, error)
	Record(frame *metadata.Frame, depth metadata.DepthTexture, passes []*metadata.Pass) error
	Submit(frame *metadata.Frame) error
	Present(frame *metadata.Frame) error

	CreatePipeline(label string, desc *metadata.PipelineDescriptor) (metadata.Pipeline, error)
	DestroyPipeline(pipeline metadata.Pipeline)
	CreateBuffer(label string, usage metadata.BufferUsage, data []byte) (metadata.Buffer, error)
	WriteBuffer(buffer metadata.Buffer, offset uint64, data []byte) error
	DestroyBuffer(buffer metadata.Buffer)

	WaitIdle() error
	Shutdown() error
}
