package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// VulkanBuffer is a host visible, host coherent buffer that stays mapped for
// its whole life so updates are a plain copy.
type VulkanBuffer struct {
	label string
	usage metadata.BufferUsage
	size  uint64

	Handle vk.Buffer
	Memory vk.DeviceMemory
	mapped unsafe.Pointer
}

func NewVulkanBuffer(context *VulkanContext, label string, usage metadata.BufferUsage, data []byte) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		label: label,
		usage: usage,
		size:  uint64(len(data)),
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(buffer.size),
		Usage:       bufferUsageToVulkan(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := VulkanResultError(fmt.Sprintf("vkCreateBuffer(%s)", label), res)
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Handle = handle

	var memRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &memRequirements)
	memRequirements.Deref()

	memoryType, err := context.FindMemoryIndex(memRequirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		buffer.Destroy(context)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocInfo, context.Allocator, &memory); res != vk.Success {
		err := VulkanResultError(fmt.Sprintf("vkAllocateMemory(%s)", label), res)
		core.LogError(err.Error())
		buffer.Destroy(context)
		return nil, err
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		err := VulkanResultError(fmt.Sprintf("vkBindBufferMemory(%s)", label), res)
		core.LogError(err.Error())
		buffer.Destroy(context)
		return nil, err
	}

	var pData unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(buffer.size), 0, &pData); res != vk.Success {
		err := VulkanResultError(fmt.Sprintf("vkMapMemory(%s)", label), res)
		core.LogError(err.Error())
		buffer.Destroy(context)
		return nil, err
	}
	buffer.mapped = pData

	buffer.Write(0, data)
	return buffer, nil
}

func (b *VulkanBuffer) Label() string               { return b.label }
func (b *VulkanBuffer) Usage() metadata.BufferUsage { return b.usage }
func (b *VulkanBuffer) Size() uint64                { return b.size }

// Write copies data at offset. The caller guarantees the GPU is not reading
// the range.
func (b *VulkanBuffer) Write(offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}

func bufferUsageToVulkan(usage metadata.BufferUsage) vk.BufferUsageFlags {
	switch usage {
	case metadata.BufferUsageIndex:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case metadata.BufferUsageUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
}
