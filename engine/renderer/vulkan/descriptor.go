package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/**
 * @brief Represents the state of one descriptor for one frame. It is used to
 * skip vkUpdateDescriptorSets when nothing the set points at has changed.
 */
type VulkanDescriptorState struct {
	/** @brief The uniform buffer last written to the set. */
	Uniform vk.Buffer
	/** @brief The depth generation last written to the set. */
	DepthGeneration uint64
	/** @brief Whether the set has been written at all. */
	Written bool
}

/**
 * @brief The descriptor set layout, pool and one set per frame in flight
 * for a single pipeline.
 */
type VulkanDescriptorSets struct {
	Layout   vk.DescriptorSetLayout
	Pool     vk.DescriptorPool
	Sets     [MaxFramesInFlight]vk.DescriptorSet
	States   [MaxFramesInFlight]VulkanDescriptorState
	Bindings []metadata.Binding
}

func NewDescriptorSets(context *VulkanContext, bindings []metadata.Binding) (*VulkanDescriptorSets, error) {
	out := &VulkanDescriptorSets{Bindings: bindings}

	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	poolSizes := make([]vk.DescriptorPoolSize, 0, len(bindings))
	for i, b := range bindings {
		descriptorType := descriptorTypeToVulkan(b.Type)
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType,
			DescriptorCount: 1,
			StageFlags:      shaderStagesToVulkan(b.Stages),
		}
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            descriptorType,
			DescriptorCount: MaxFramesInFlight,
		})
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		err := VulkanResultError("vkCreateDescriptorSetLayout", res)
		core.LogError(err.Error())
		return nil, err
	}
	out.Layout = layout

	// Pipelines without bindings still get a layout, but nothing to allocate.
	if len(bindings) == 0 {
		return out, nil
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       MaxFramesInFlight,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		err := VulkanResultError("vkCreateDescriptorPool", res)
		core.LogError(err.Error())
		out.Destroy(context)
		return nil, err
	}
	out.Pool = pool

	layouts := make([]vk.DescriptorSetLayout, MaxFramesInFlight)
	for i := range layouts {
		layouts[i] = layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: MaxFramesInFlight,
		PSetLayouts:        layouts,
	}
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &out.Sets[0]); res != vk.Success {
		err := VulkanResultError("vkAllocateDescriptorSets", res)
		core.LogError(err.Error())
		out.Destroy(context)
		return nil, err
	}
	return out, nil
}

// Update points the set of frameIndex at uniform and depth, skipping the
// write when neither changed since the last time that set was used.
func (ds *VulkanDescriptorSets) Update(context *VulkanContext, frameIndex uint32, uniform *VulkanBuffer, depth *DepthTexture) {
	if len(ds.Bindings) == 0 {
		return
	}
	state := &ds.States[frameIndex]

	var uniformHandle vk.Buffer
	if uniform != nil {
		uniformHandle = uniform.Handle
	}
	var depthGeneration uint64
	if depth != nil {
		depthGeneration = depth.Generation()
	}
	if state.Written && state.Uniform == uniformHandle && state.DepthGeneration == depthGeneration {
		return
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(ds.Bindings))
	for _, b := range ds.Bindings {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          ds.Sets[frameIndex],
			DstBinding:      b.Binding,
			DstArrayElement: 0,
			DescriptorType:  descriptorTypeToVulkan(b.Type),
			DescriptorCount: 1,
		}
		switch b.Type {
		case metadata.BindingTypeUniform:
			if uniform == nil {
				continue
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: uniform.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(vk.WholeSize),
			}}
		case metadata.BindingTypeDepthTexture:
			if depth == nil {
				continue
			}
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayoutDepthStencilReadOnlyOptimal,
				ImageView:   depth.Image.View,
				Sampler:     depth.Sampler,
			}}
		}
		writes = append(writes, write)
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	}

	state.Uniform = uniformHandle
	state.DepthGeneration = depthGeneration
	state.Written = true
}

func (ds *VulkanDescriptorSets) Destroy(context *VulkanContext) {
	// Destroying the pool frees the sets allocated from it.
	if ds.Pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, ds.Pool, context.Allocator)
		ds.Pool = vk.NullDescriptorPool
	}
	if ds.Layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, ds.Layout, context.Allocator)
		ds.Layout = vk.NullDescriptorSetLayout
	}
	ds.Sets = [MaxFramesInFlight]vk.DescriptorSet{}
	ds.States = [MaxFramesInFlight]VulkanDescriptorState{}
}

func descriptorTypeToVulkan(t metadata.BindingType) vk.DescriptorType {
	if t == metadata.BindingTypeDepthTexture {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}
