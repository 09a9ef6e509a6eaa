package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type VulkanRenderpass struct {
	Handle      vk.RenderPass
	Kind        metadata.PassKind
	ColorFormat vk.Format
	DepthFormat vk.Format
}

// RenderpassCreate builds one of the two passes every frame runs through.
//
// The scene pass clears color and depth and leaves the depth attachment in
// a read only layout so the overlay pass can sample it. The overlay pass
// loads the color written by the scene pass, has no depth attachment and
// hands the image over for presentation.
func RenderpassCreate(context *VulkanContext, kind metadata.PassKind, colorFormat, depthFormat vk.Format) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		Kind:        kind,
		ColorFormat: colorFormat,
		DepthFormat: depthFormat,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{
			{
				Attachment: 0, // Attachment description array index
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			},
		},
	}

	colorAttachment := vk.AttachmentDescription{
		Format:         colorFormat,
		Samples:        vk.SampleCount1Bit,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
	}

	var attachments []vk.AttachmentDescription
	var dependencies []vk.SubpassDependency

	switch kind {
	case metadata.PassKindScene:
		colorAttachment.LoadOp = vk.AttachmentLoadOpClear
		colorAttachment.InitialLayout = vk.ImageLayoutUndefined
		colorAttachment.FinalLayout = vk.ImageLayoutColorAttachmentOptimal

		depthAttachment := vk.AttachmentDescription{
			Format:         depthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilReadOnlyOptimal,
		}
		attachments = []vk.AttachmentDescription{colorAttachment, depthAttachment}

		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}

		dependencies = []vk.SubpassDependency{
			{
				SrcSubpass:    vk.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) | vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
				SrcAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
				DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) |
					vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
				DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) |
					vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			},
			// Depth writes must land before the overlay samples them.
			{
				SrcSubpass: 0,
				DstSubpass: vk.SubpassExternal,
				SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit) |
					vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				SrcAccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit) |
					vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
				DstStageMask: vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) |
					vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit) |
					vk.AccessFlags(vk.AccessColorAttachmentReadBit) |
					vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			},
		}
	default:
		colorAttachment.LoadOp = vk.AttachmentLoadOpLoad
		colorAttachment.InitialLayout = vk.ImageLayoutColorAttachmentOptimal
		colorAttachment.FinalLayout = vk.ImageLayoutPresentSrc
		attachments = []vk.AttachmentDescription{colorAttachment}

		dependencies = []vk.SubpassDependency{
			{
				SrcSubpass:    vk.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
				DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) |
					vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			},
		}
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		err := VulkanResultError("vkCreateRenderPass", res)
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass.Handle = pRenderPass

	core.LogDebug("%s renderpass created", kind)
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer, width, height uint32, pass *metadata.Pass) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: width, Height: height},
		},
	}

	if vr.Kind == metadata.PassKindScene {
		clearValues := make([]vk.ClearValue, 2)
		clearValues[0].SetColor([]float32{
			float32(pass.ClearColor.R),
			float32(pass.ClearColor.G),
			float32(pass.ClearColor.B),
			float32(pass.ClearColor.A),
		})
		clearValues[1].SetDepthStencil(pass.ClearDepth, 0)
		beginInfo.ClearValueCount = uint32(len(clearValues))
		beginInfo.PClearValues = clearValues
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
