package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
)

// The number of frames recorded ahead of the GPU.
const MaxFramesInFlight = 2

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain *VulkanSwapchain
	// Clears color and depth, leaves the depth attachment readable.
	ScenePass *VulkanRenderpass
	// Loads color, has no depth attachment and ends in the present layout.
	OverlayPass *VulkanRenderpass

	// One per frame in flight.
	GraphicsCommandBuffers   []*VulkanCommandBuffer
	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore
	InFlightFences           []*VulkanFence

	// Holds pointers to fences which exist and are owned elsewhere.
	ImagesInFlight []*VulkanFence

	ImageIndex   uint32
	CurrentFrame uint32
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryType := memoryProperties.MemoryTypes[i]
		memoryType.Deref()
		if (typeFilter&(1<<i)) != 0 && memoryType.PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, fmt.Errorf("no memory type matches filter %b with flags %b", typeFilter, propertyFlags)
}

// WaitInFlight blocks until every submitted frame has finished on the GPU.
func (vc *VulkanContext) WaitInFlight() error {
	for _, fence := range vc.InFlightFences {
		if fence == nil {
			continue
		}
		if err := fence.FenceWait(vc, vk.MaxUint64); err != nil {
			return err
		}
	}
	return nil
}
