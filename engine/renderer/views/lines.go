package views

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/geometry"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Half the extent of the reference grid, in world units.
const gridHalfSize = 25

/** @brief Draws the red and green reference grid on the z = 0 plane. */
type RenderViewLines struct {
	pipelineState
	vertices    metadata.Buffer
	vertexCount uint32
}

func NewRenderViewLines() *RenderViewLines {
	return &RenderViewLines{}
}

func (vl *RenderViewLines) Name() string            { return "lines" }
func (vl *RenderViewLines) Kind() metadata.PassKind { return metadata.PassKindScene }

func (vl *RenderViewLines) OnCreate(device Device, shaders ShaderLibrary) error {
	vl.pipelineState = pipelineState{
		device:   device,
		shaders:  shaders,
		vertex:   "lines.vert",
		fragment: "lines.frag",
		describe: linesDescriptor,
	}
	if err := vl.build(); err != nil {
		return fmt.Errorf("lines pipeline: %w", err)
	}

	lines := geometry.GridLines(gridHalfSize)
	buf, err := device.CreateBuffer("lines-vertices", metadata.BufferUsageVertex, geometry.EncodeVertices(lines))
	if err != nil {
		vl.destroy()
		return err
	}
	vl.vertices = buf
	vl.vertexCount = uint32(len(lines))
	return nil
}

func linesDescriptor(vs, fs *metadata.ShaderSource) *metadata.PipelineDescriptor {
	return &metadata.PipelineDescriptor{
		Name:     "lines",
		Vertex:   *vs,
		Fragment: *fs,
		Layouts:  []metadata.VertexLayout{geometry.VertexLayout()},
		Bindings: []metadata.Binding{
			{Binding: 0, Type: metadata.BindingTypeUniform, Stages: []metadata.ShaderStage{metadata.ShaderStageVertex}},
		},
		Topology:   metadata.PrimitiveTopologyLineList,
		CullMode:   metadata.FaceCullModeNone,
		Pass:       metadata.PassKindScene,
		DepthTest:  true,
		DepthWrite: true,
		DepthCmp:   metadata.CompareOpLess,
	}
}

func (vl *RenderViewLines) OnShaderChanged(name string) (bool, error) {
	return vl.reload(name)
}

func (vl *RenderViewLines) OnBuildPacket(packet *RenderViewPacket) ([]metadata.Draw, error) {
	if vl.pipeline == nil {
		return nil, nil
	}
	return []metadata.Draw{{
		Pipeline: vl.pipeline,
		Buffers: &metadata.FrameBuffers{
			Vertex:        vl.vertices,
			Uniform:       packet.CameraUniform,
			VertexCount:   vl.vertexCount,
			InstanceCount: 1,
		},
	}}, nil
}

func (vl *RenderViewLines) OnDestroy() {
	vl.destroy()
	if vl.vertices != nil {
		vl.device.DestroyBuffer(vl.vertices)
		vl.vertices = nil
	}
}
