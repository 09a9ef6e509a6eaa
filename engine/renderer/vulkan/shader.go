package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func NewShaderStage(context *VulkanContext, source *metadata.ShaderSource) (*VulkanShaderStage, error) {
	code, err := SpirvWords(source.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: shader %s: %w", core.ErrInvalidDescriptor, source.Name, err)
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(source.Code)),
		PCode:    code,
	}

	stage := &VulkanShaderStage{}
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &stage.Handle); res != vk.Success {
		err := VulkanResultError(fmt.Sprintf("vkCreateShaderModule(%s)", source.Name), res)
		core.LogError(err.Error())
		return nil, err
	}

	entryPoint := source.EntryPoint
	if entryPoint == "" {
		entryPoint = "main"
	}

	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageToVulkan(source.Stage),
		Module: stage.Handle,
		PName:  VulkanSafeString(entryPoint),
	}
	return stage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}

func shaderStageToVulkan(stage metadata.ShaderStage) vk.ShaderStageFlagBits {
	if stage == metadata.ShaderStageFragment {
		return vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageVertexBit
}

func shaderStagesToVulkan(stages []metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	for _, s := range stages {
		flags |= vk.ShaderStageFlags(shaderStageToVulkan(s))
	}
	return flags
}
