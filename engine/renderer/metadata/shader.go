package metadata

/** @brief Shader stages available in the system. */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000004
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	}
	return "unknown"
}

/**
 * @brief Compiled shader code for one stage. The code is opaque to the
 * renderer; Version increases when the source is reloaded.
 */
type ShaderSource struct {
	Name       string
	Stage      ShaderStage
	EntryPoint string
	Code       []byte
	Version    uint32
}

/** @brief Available attribute types. */
type ShaderAttributeType uint

const (
	ShaderAttribTypeFloat32   ShaderAttributeType = 0
	ShaderAttribTypeFloat32_2 ShaderAttributeType = 1
	ShaderAttribTypeFloat32_3 ShaderAttributeType = 2
	ShaderAttribTypeFloat32_4 ShaderAttributeType = 3
)

// Size in bytes of an attribute of this type.
func (t ShaderAttributeType) Size() uint32 {
	switch t {
	case ShaderAttribTypeFloat32:
		return 4
	case ShaderAttribTypeFloat32_2:
		return 8
	case ShaderAttribTypeFloat32_3:
		return 12
	case ShaderAttribTypeFloat32_4:
		return 16
	}
	return 0
}

type VertexAttribute struct {
	Location uint32
	Offset   uint32
	Type     ShaderAttributeType
}

type VertexStepMode int

const (
	VertexStepModeVertex VertexStepMode = iota
	VertexStepModeInstance
)

/** @brief Layout of one vertex buffer binding. */
type VertexLayout struct {
	Stride     uint32
	StepMode   VertexStepMode
	Attributes []VertexAttribute
}

/** @brief A resource bound to the pipeline's descriptor set. */
type BindingType int

const (
	// Uniform buffer taken from FrameBuffers.Uniform.
	BindingTypeUniform BindingType = iota
	// The surface's current depth texture with a sampler.
	BindingTypeDepthTexture
)

type Binding struct {
	Binding uint32
	Type    BindingType
	Stages  []ShaderStage
}
