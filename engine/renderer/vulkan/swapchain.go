package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	Handle      vk.Swapchain
	Images      []vk.Image
	Views       []vk.ImageView
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// SwapchainCreate builds a swapchain for config. The depth attachment is
// not part of it; the surface manager owns that separately.
func SwapchainCreate(context *VulkanContext, config metadata.SurfaceConfig) (*VulkanSwapchain, error) {
	return createSwapchain(context, config, vk.NullSwapchain)
}

// SwapchainRecreate creates a replacement and retires the current swapchain.
// The device must be idle.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, config metadata.SurfaceConfig) (*VulkanSwapchain, error) {
	sc, err := createSwapchain(context, config, vs.Handle)
	vs.destroySwapchain(context)
	return sc, err
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vs.destroySwapchain(context)
}

func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)
	return imageIndex, result
}

func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) vk.Result {
	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
		PResults:           nil,
	}
	return vk.QueuePresent(presentQueue, &presentInfo)
}

func createSwapchain(context *VulkanContext, config metadata.SurfaceConfig, old vk.Swapchain) (*VulkanSwapchain, error) {
	support := &context.Device.SwapchainSupport
	swapchain := &VulkanSwapchain{}

	format, ok := findSurfaceFormat(support.Formats, config.Format)
	if !ok {
		err := fmt.Errorf("%w: %s", core.ErrNoSurfaceFormat, config.Format)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.ImageFormat = format
	swapchain.PresentMode = presentModeToVulkan(config.PresentMode)

	// Clamp to the value allowed by the GPU. The depth attachment is created
	// at the requested size, so a clamped extent means the window changed
	// again and a new resize is on its way.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	swapchain.Extent = vk.Extent2D{
		Width:  math.Clamp(config.Width, minExtent.Width, maxExtent.Width),
		Height: math.Clamp(config.Height, minExtent.Height, maxExtent.Height),
	}
	if swapchain.Extent.Width != config.Width || swapchain.Extent.Height != config.Height {
		return nil, fmt.Errorf("%w: requested %dx%d, surface allows %dx%d", core.ErrSurfaceOutdated,
			config.Width, config.Height, swapchain.Extent.Width, swapchain.Extent.Height)
	}

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchainHandle); res != vk.Success {
		err := VulkanResultError("vkCreateSwapchainKHR", res)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = swapchainHandle

	// Images
	var count uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &count, nil); res != vk.Success {
		err := VulkanResultError("vkGetSwapchainImagesKHR", res)
		core.LogError(err.Error())
		swapchain.destroySwapchain(context)
		return nil, err
	}
	swapchain.Images = make([]vk.Image, count)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &count, swapchain.Images); res != vk.Success {
		err := VulkanResultError("vkGetSwapchainImagesKHR", res)
		core.LogError(err.Error())
		swapchain.destroySwapchain(context)
		return nil, err
	}

	// Views
	swapchain.Views = make([]vk.ImageView, 0, count)
	for _, image := range swapchain.Images {
		view, err := ImageViewCreate(context, image, swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			swapchain.destroySwapchain(context)
			return nil, err
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	context.FramebufferWidth = swapchain.Extent.Width
	context.FramebufferHeight = swapchain.Extent.Height

	core.LogInfo("Swapchain created: %d images %dx%d.", count, swapchain.Extent.Width, swapchain.Extent.Height)
	return swapchain, nil
}

func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext) {
	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are thus destroyed when it is.
	for _, view := range vs.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil

	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}

// SwapchainCapabilities converts what the surface supports into the
// renderer's formats, skipping anything the renderer has no name for.
func SwapchainCapabilities(support *VulkanSwapchainSupportInfo) *metadata.SurfaceCapabilities {
	caps := &metadata.SurfaceCapabilities{}
	for _, f := range support.Formats {
		if f.ColorSpace != vk.ColorSpaceSrgbNonlinear {
			continue
		}
		if format := formatFromVulkan(f.Format); format != metadata.FormatUndefined {
			caps.Formats = append(caps.Formats, format)
		}
	}
	for _, m := range support.PresentModes {
		if mode, ok := presentModeFromVulkan(m); ok {
			caps.PresentModes = append(caps.PresentModes, mode)
		}
	}
	return caps
}

func findSurfaceFormat(formats []vk.SurfaceFormat, want metadata.Format) (vk.SurfaceFormat, bool) {
	target := formatToVulkan(want)
	for _, f := range formats {
		if f.Format == target && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, true
		}
	}
	return vk.SurfaceFormat{}, false
}

func formatToVulkan(f metadata.Format) vk.Format {
	switch f {
	case metadata.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case metadata.FormatBGRA8UnormSRGB:
		return vk.FormatB8g8r8a8Srgb
	case metadata.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case metadata.FormatRGBA8UnormSRGB:
		return vk.FormatR8g8b8a8Srgb
	}
	return vk.FormatUndefined
}

func formatFromVulkan(f vk.Format) metadata.Format {
	switch f {
	case vk.FormatB8g8r8a8Unorm:
		return metadata.FormatBGRA8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return metadata.FormatBGRA8UnormSRGB
	case vk.FormatR8g8b8a8Unorm:
		return metadata.FormatRGBA8Unorm
	case vk.FormatR8g8b8a8Srgb:
		return metadata.FormatRGBA8UnormSRGB
	}
	return metadata.FormatUndefined
}

func presentModeToVulkan(p metadata.PresentMode) vk.PresentMode {
	switch p {
	case metadata.PresentModeMailbox:
		return vk.PresentModeMailbox
	case metadata.PresentModeImmediate:
		return vk.PresentModeImmediate
	}
	return vk.PresentModeFifo
}

func presentModeFromVulkan(p vk.PresentMode) (metadata.PresentMode, bool) {
	switch p {
	case vk.PresentModeFifo:
		return metadata.PresentModeFifo, true
	case vk.PresentModeMailbox:
		return metadata.PresentModeMailbox, true
	case vk.PresentModeImmediate:
		return metadata.PresentModeImmediate, true
	}
	return metadata.PresentModeFifo, false
}
