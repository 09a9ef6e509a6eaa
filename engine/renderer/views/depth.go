package views

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/geometry"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/**
 * @brief Shows the depth attachment of the scene pass as a full screen
 * gray scale image. It samples whatever depth texture the surface holds at
 * record time so it survives resizes without any work of its own.
 */
type RenderViewDepth struct {
	pipelineState
	quad      metadata.Buffer
	quadCount uint32
}

func NewRenderViewDepth() *RenderViewDepth {
	return &RenderViewDepth{}
}

func (vd *RenderViewDepth) Name() string            { return "depth" }
func (vd *RenderViewDepth) Kind() metadata.PassKind { return metadata.PassKindOverlay }

func (vd *RenderViewDepth) OnCreate(device Device, shaders ShaderLibrary) error {
	vd.pipelineState = pipelineState{
		device:   device,
		shaders:  shaders,
		vertex:   "depth.vert",
		fragment: "depth.frag",
		describe: depthDescriptor,
	}
	if err := vd.build(); err != nil {
		return fmt.Errorf("depth pipeline: %w", err)
	}

	quad := geometry.FullScreenQuad()
	buf, err := device.CreateBuffer("depth-quad", metadata.BufferUsageVertex, geometry.EncodeQuad(quad))
	if err != nil {
		vd.destroy()
		return err
	}
	vd.quad = buf
	vd.quadCount = uint32(len(quad))
	return nil
}

func depthDescriptor(vs, fs *metadata.ShaderSource) *metadata.PipelineDescriptor {
	return &metadata.PipelineDescriptor{
		Name:     "depth",
		Vertex:   *vs,
		Fragment: *fs,
		Layouts:  []metadata.VertexLayout{geometry.QuadLayout()},
		Bindings: []metadata.Binding{
			{Binding: 0, Type: metadata.BindingTypeDepthTexture, Stages: []metadata.ShaderStage{metadata.ShaderStageFragment}},
		},
		Topology: metadata.PrimitiveTopologyTriangleStrip,
		CullMode: metadata.FaceCullModeNone,
		Pass:     metadata.PassKindOverlay,
	}
}

func (vd *RenderViewDepth) OnShaderChanged(name string) (bool, error) {
	return vd.reload(name)
}

func (vd *RenderViewDepth) OnBuildPacket(packet *RenderViewPacket) ([]metadata.Draw, error) {
	if vd.pipeline == nil {
		return nil, nil
	}
	return []metadata.Draw{{
		Pipeline: vd.pipeline,
		Buffers: &metadata.FrameBuffers{
			Vertex:        vd.quad,
			VertexCount:   vd.quadCount,
			InstanceCount: 1,
		},
	}}, nil
}

func (vd *RenderViewDepth) OnDestroy() {
	vd.destroy()
	if vd.quad != nil {
		vd.device.DestroyBuffer(vd.quad)
		vd.quad = nil
	}
}
