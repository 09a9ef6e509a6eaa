package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline, its layout and the descriptor sets it binds.
 * It does not depend on the surface size, so it survives every resize.
 */
type VulkanPipeline struct {
	label      string
	descriptor *metadata.PipelineDescriptor

	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	/** @brief Descriptor sets, one per frame in flight. */
	Descriptors *VulkanDescriptorSets
}

type VulkanPipelineConfig struct {
	/** @brief The renderpass to associate with the pipeline. */
	Renderpass *VulkanRenderpass
	/** @brief One binding per vertex buffer. */
	Bindings []vk.VertexInputBindingDescription
	/** @brief An array of attributes. */
	Attributes []vk.VertexInputAttributeDescription
	/** @brief An array of descriptor set layouts. */
	DescriptorSetLayouts []vk.DescriptorSetLayout
	/** @brief An array of stages. */
	Stages []vk.PipelineShaderStageCreateInfo
	Topology vk.PrimitiveTopology
	/** @brief The face cull mode. */
	CullMode metadata.FaceCullMode
	/** @brief Indicates if this pipeline should use wireframe mode. */
	IsWireframe bool
	DepthTest   bool
	DepthWrite  bool
	DepthCmp    vk.CompareOp
	Blend       bool
}

func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if config.IsWireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}
	switch config.CullMode {
	case metadata.FaceCullModeNone:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthCompareOp:        config.DepthCmp,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}
	if config.DepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if config.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if config.Blend {
		colorBlendAttachmentState.BlendEnable = vk.True
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(config.Bindings)),
		PVertexBindingDescriptions:      config.Bindings,
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               config.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(config.DescriptorSetLayouts)),
		PSetLayouts:    config.DescriptorSetLayouts,
	}

	var pPipelineLayout vk.PipelineLayout
	if result := vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pPipelineLayout); !VulkanResultIsSuccess(result) {
		err := VulkanResultError("vkCreatePipelineLayout", result)
		core.LogError(err.Error())
		return nil, err
	}
	outPipeline.PipelineLayout = pPipelineLayout

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          config.Renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if result := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines); !VulkanResultIsSuccess(result) {
		err := VulkanResultError("vkCreateGraphicsPipelines", result)
		core.LogError(err.Error())
		outPipeline.Destroy(context)
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

// NewPipelineFromDescriptor compiles desc against the render pass of its kind.
func NewPipelineFromDescriptor(context *VulkanContext, renderpass *VulkanRenderpass, label string, desc *metadata.PipelineDescriptor) (*VulkanPipeline, error) {
	vertex, err := NewShaderStage(context, &desc.Vertex)
	if err != nil {
		return nil, err
	}
	// Modules are only needed while the pipeline is built.
	defer vertex.Destroy(context)

	fragment, err := NewShaderStage(context, &desc.Fragment)
	if err != nil {
		return nil, err
	}
	defer fragment.Destroy(context)

	descriptors, err := NewDescriptorSets(context, desc.Bindings)
	if err != nil {
		return nil, err
	}

	bindings, attributes, err := vertexInputToVulkan(desc.Layouts)
	if err != nil {
		descriptors.Destroy(context)
		return nil, fmt.Errorf("%w: pipeline %s: %w", core.ErrInvalidDescriptor, desc.Name, err)
	}

	pipeline, err := NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           renderpass,
		Bindings:             bindings,
		Attributes:           attributes,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{descriptors.Layout},
		Stages:               []vk.PipelineShaderStageCreateInfo{vertex.ShaderStageCreateInfo, fragment.ShaderStageCreateInfo},
		Topology:             topologyToVulkan(desc.Topology),
		CullMode:             desc.CullMode,
		DepthTest:            desc.DepthTest,
		DepthWrite:           desc.DepthWrite,
		DepthCmp:             compareOpToVulkan(desc.DepthCmp),
		Blend:                desc.Blend,
	})
	if err != nil {
		descriptors.Destroy(context)
		return nil, err
	}
	pipeline.label = label
	pipeline.descriptor = desc
	pipeline.Descriptors = descriptors
	return pipeline, nil
}

func (pipeline *VulkanPipeline) Label() string                            { return pipeline.label }
func (pipeline *VulkanPipeline) Descriptor() *metadata.PipelineDescriptor { return pipeline.descriptor }

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = vk.NullPipeline
	}
	if pipeline.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
		pipeline.PipelineLayout = vk.NullPipelineLayout
	}
	if pipeline.Descriptors != nil {
		pipeline.Descriptors.Destroy(context)
		pipeline.Descriptors = nil
	}
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, pipeline.Handle)
}

func vertexInputToVulkan(layouts []metadata.VertexLayout) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	bindings := make([]vk.VertexInputBindingDescription, 0, len(layouts))
	var attributes []vk.VertexInputAttributeDescription
	for i, l := range layouts {
		inputRate := vk.VertexInputRateVertex
		if l.StepMode == metadata.VertexStepModeInstance {
			inputRate = vk.VertexInputRateInstance
		}
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    l.Stride,
			InputRate: inputRate,
		})
		for _, a := range l.Attributes {
			format, ok := attributeFormatToVulkan(a.Type)
			if !ok {
				return nil, nil, fmt.Errorf("attribute %d has unknown type %d", a.Location, a.Type)
			}
			attributes = append(attributes, vk.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  uint32(i),
				Format:   format,
				Offset:   a.Offset,
			})
		}
	}
	return bindings, attributes, nil
}

func attributeFormatToVulkan(t metadata.ShaderAttributeType) (vk.Format, bool) {
	switch t {
	case metadata.ShaderAttribTypeFloat32:
		return vk.FormatR32Sfloat, true
	case metadata.ShaderAttribTypeFloat32_2:
		return vk.FormatR32g32Sfloat, true
	case metadata.ShaderAttribTypeFloat32_3:
		return vk.FormatR32g32b32Sfloat, true
	case metadata.ShaderAttribTypeFloat32_4:
		return vk.FormatR32g32b32a32Sfloat, true
	}
	return vk.FormatUndefined, false
}

func topologyToVulkan(t metadata.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case metadata.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	}
	return vk.PrimitiveTopologyTriangleList
}

func compareOpToVulkan(op metadata.CompareOp) vk.CompareOp {
	switch op {
	case metadata.CompareOpNever:
		return vk.CompareOpNever
	case metadata.CompareOpLessOrEqual:
		return vk.CompareOpLessOrEqual
	case metadata.CompareOpAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpLess
}
