// Package views builds the passes of a frame. Each view owns its pipeline
// and buffers and rebuilds the pipeline when one of its shaders changes on
// disk.
package views

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/components"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Device creates and updates the resources views draw with. The surface
// manager implements it.
type Device interface {
	CreatePipeline(desc *metadata.PipelineDescriptor) (metadata.Pipeline, error)
	DestroyPipeline(pipeline metadata.Pipeline)
	CreateBuffer(name string, usage metadata.BufferUsage, data []byte) (metadata.Buffer, error)
	WriteBuffer(buffer metadata.Buffer, offset uint64, data []byte) error
	DestroyBuffer(buffer metadata.Buffer)
}

// ShaderLibrary loads compiled shaders by asset name, "lines.vert".
type ShaderLibrary interface {
	LoadShader(name string) (*metadata.ShaderSource, error)
}

/** @brief What a view needs to build its draws for one frame. */
type RenderViewPacket struct {
	// Seconds since the application started.
	Time   float64
	Camera *components.Camera
	// The camera uniform, already written for this frame.
	CameraUniform metadata.Buffer
}

type RenderView interface {
	Name() string
	Kind() metadata.PassKind
	OnCreate(device Device, shaders ShaderLibrary) error
	OnDestroy()
	// OnShaderChanged rebuilds the pipeline when it uses the named shader
	// and reports whether it did.
	OnShaderChanged(name string) (bool, error)
	OnBuildPacket(packet *RenderViewPacket) ([]metadata.Draw, error)
}

// pipelineState is the part every view shares: the shaders a pipeline is
// built from and the pipeline currently in use.
type pipelineState struct {
	device   Device
	shaders  ShaderLibrary
	vertex   string
	fragment string
	describe func(vertex, fragment *metadata.ShaderSource) *metadata.PipelineDescriptor

	pipeline metadata.Pipeline
}

func (ps *pipelineState) build() error {
	vs, err := ps.shaders.LoadShader(ps.vertex)
	if err != nil {
		return fmt.Errorf("load %s: %w", ps.vertex, err)
	}
	fs, err := ps.shaders.LoadShader(ps.fragment)
	if err != nil {
		return fmt.Errorf("load %s: %w", ps.fragment, err)
	}
	pipeline, err := ps.device.CreatePipeline(ps.describe(vs, fs))
	if err != nil {
		return err
	}
	if ps.pipeline != nil {
		ps.device.DestroyPipeline(ps.pipeline)
	}
	ps.pipeline = pipeline
	return nil
}

func (ps *pipelineState) uses(name string) bool {
	return name == ps.vertex || name == ps.fragment
}

// reload rebuilds the pipeline if it uses name. A shader that fails to load
// or build leaves the previous pipeline in place.
func (ps *pipelineState) reload(name string) (bool, error) {
	if !ps.uses(name) {
		return false, nil
	}
	if err := ps.build(); err != nil {
		core.LogWarn("keeping the previous pipeline, rebuild after %s changed failed: %s", name, err)
		return false, err
	}
	core.LogInfo("pipeline rebuilt after %s changed", name)
	return true, nil
}

func (ps *pipelineState) destroy() {
	if ps.pipeline != nil {
		ps.device.DestroyPipeline(ps.pipeline)
		ps.pipeline = nil
	}
}
