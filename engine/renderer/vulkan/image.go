package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
}

func ImageCreate(
	context *VulkanContext,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspectFlags vk.ImageAspectFlags,
) (*VulkanImage, error) {
	outImage := &VulkanImage{
		Format: format,
		Width:  width,
		Height: height,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var image vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &image); res != vk.Success {
		err := VulkanResultError("vkCreateImage", res)
		core.LogError(err.Error())
		return nil, err
	}
	outImage.Handle = image

	// Query memory requirements.
	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType, err := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, memoryFlags)
	if err != nil {
		core.LogError("Required memory type not found. Image not valid.")
		outImage.ImageDestroy(context)
		return nil, err
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &memoryAllocateInfo, context.Allocator, &memory); res != vk.Success {
		err := VulkanResultError("vkAllocateMemory", res)
		core.LogError(err.Error())
		outImage.ImageDestroy(context)
		return nil, err
	}
	outImage.Memory = memory

	// TODO: configurable memory offset.
	if res := vk.BindImageMemory(context.Device.LogicalDevice, image, memory, 0); res != vk.Success {
		err := VulkanResultError("vkBindImageMemory", res)
		core.LogError(err.Error())
		outImage.ImageDestroy(context)
		return nil, err
	}

	if createView {
		view, err := ImageViewCreate(context, image, format, viewAspectFlags)
		if err != nil {
			outImage.ImageDestroy(context)
			return nil, err
		}
		outImage.View = view
	}
	return outImage, nil
}

func ImageViewCreate(context *VulkanContext, image vk.Image, format vk.Format, aspectFlags vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		err := VulkanResultError("vkCreateImageView", res)
		core.LogError(err.Error())
		return vk.NullImageView, err
	}
	return view, nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
}

// DepthTexture is the depth attachment of the surface plus the sampler the
// overlay pass reads it through.
type DepthTexture struct {
	context    *VulkanContext
	label      string
	generation uint64

	Image   *VulkanImage
	Sampler vk.Sampler
}

func NewDepthTexture(context *VulkanContext, label string, width, height uint32, generation uint64) (*DepthTexture, error) {
	image, err := ImageCreate(
		context,
		width, height,
		context.Device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, err
	}

	// Depth is read texel for texel, no filtering.
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterNearest,
		MinFilter:               vk.FilterNearest,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorFloatOpaqueWhite,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeNearest,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		err := VulkanResultError("vkCreateSampler", res)
		core.LogError(err.Error())
		image.ImageDestroy(context)
		return nil, err
	}

	return &DepthTexture{
		context:    context,
		label:      label,
		generation: generation,
		Image:      image,
		Sampler:    sampler,
	}, nil
}

func (d *DepthTexture) Label() string      { return d.label }
func (d *DepthTexture) Width() uint32      { return d.Image.Width }
func (d *DepthTexture) Height() uint32     { return d.Image.Height }
func (d *DepthTexture) Generation() uint64 { return d.generation }

// Destroy releases the image, its view and the sampler. It is safe to call
// more than once.
func (d *DepthTexture) Destroy() {
	if d.context == nil {
		return
	}
	if d.Sampler != vk.NullSampler {
		vk.DestroySampler(d.context.Device.LogicalDevice, d.Sampler, d.context.Allocator)
		d.Sampler = vk.NullSampler
	}
	d.Image.ImageDestroy(d.context)
	d.context = nil
	core.LogDebug("depth texture %s destroyed", d.label)
}
