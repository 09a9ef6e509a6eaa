package views

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/geometry"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

const (
	modelColumns = 10
	modelRows    = 10
)

/**
 * @brief Draws a grid of instanced cubes. The instance rotation is animated
 * and uploaded every frame.
 */
type RenderViewModels struct {
	pipelineState

	vertices   metadata.Buffer
	indices    metadata.Buffer
	instances  metadata.Buffer
	indexCount uint32

	transforms []geometry.Instance
}

func NewRenderViewModels() *RenderViewModels {
	return &RenderViewModels{}
}

func (vm *RenderViewModels) Name() string            { return "models" }
func (vm *RenderViewModels) Kind() metadata.PassKind { return metadata.PassKindScene }

func (vm *RenderViewModels) OnCreate(device Device, shaders ShaderLibrary) error {
	vm.pipelineState = pipelineState{
		device:   device,
		shaders:  shaders,
		vertex:   "models.vert",
		fragment: "models.frag",
		describe: modelsDescriptor,
	}
	if err := vm.build(); err != nil {
		return fmt.Errorf("models pipeline: %w", err)
	}

	cube := geometry.Cube(0.5)
	vm.transforms = geometry.InstanceGrid(modelColumns, modelRows, geometry.InstanceAngle(0))

	var err error
	if vm.vertices, err = device.CreateBuffer("cube-vertices", metadata.BufferUsageVertex, geometry.EncodeVertices(cube.Vertices)); err != nil {
		vm.OnDestroy()
		return err
	}
	if vm.indices, err = device.CreateBuffer("cube-indices", metadata.BufferUsageIndex, geometry.EncodeIndices(cube.Indices)); err != nil {
		vm.OnDestroy()
		return err
	}
	if vm.instances, err = device.CreateBuffer("cube-instances", metadata.BufferUsageVertex, geometry.EncodeInstances(vm.transforms)); err != nil {
		vm.OnDestroy()
		return err
	}
	vm.indexCount = uint32(len(cube.Indices))
	return nil
}

func modelsDescriptor(vs, fs *metadata.ShaderSource) *metadata.PipelineDescriptor {
	return &metadata.PipelineDescriptor{
		Name:     "models",
		Vertex:   *vs,
		Fragment: *fs,
		Layouts:  []metadata.VertexLayout{geometry.VertexLayout(), geometry.InstanceLayout()},
		Bindings: []metadata.Binding{
			{Binding: 0, Type: metadata.BindingTypeUniform, Stages: []metadata.ShaderStage{metadata.ShaderStageVertex}},
		},
		Topology:   metadata.PrimitiveTopologyTriangleList,
		CullMode:   metadata.FaceCullModeBack,
		Pass:       metadata.PassKindScene,
		DepthTest:  true,
		DepthWrite: true,
		DepthCmp:   metadata.CompareOpLess,
	}
}

func (vm *RenderViewModels) OnShaderChanged(name string) (bool, error) {
	return vm.reload(name)
}

func (vm *RenderViewModels) OnBuildPacket(packet *RenderViewPacket) ([]metadata.Draw, error) {
	if vm.pipeline == nil {
		return nil, nil
	}

	geometry.UpdateInstanceGrid(vm.transforms, modelColumns, modelRows, geometry.InstanceAngle(packet.Time))
	if err := vm.device.WriteBuffer(vm.instances, 0, geometry.EncodeInstances(vm.transforms)); err != nil {
		return nil, fmt.Errorf("upload instances: %w", err)
	}

	return []metadata.Draw{{
		Pipeline: vm.pipeline,
		Buffers: &metadata.FrameBuffers{
			Vertex:        vm.vertices,
			Instance:      vm.instances,
			Index:         vm.indices,
			Uniform:       packet.CameraUniform,
			IndexCount:    vm.indexCount,
			InstanceCount: uint32(len(vm.transforms)),
		},
	}}, nil
}

// Transforms returns the instance transforms uploaded by the last frame.
func (vm *RenderViewModels) Transforms() []geometry.Instance {
	return vm.transforms
}

func (vm *RenderViewModels) OnDestroy() {
	vm.destroy()
	for _, b := range []*metadata.Buffer{&vm.vertices, &vm.indices, &vm.instances} {
		if *b != nil {
			vm.device.DestroyBuffer(*b)
			*b = nil
		}
	}
}
