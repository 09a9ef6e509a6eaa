package vulkan

import (
	"encoding/binary"
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVulkanResultError(t *testing.T) {
	assert.NoError(t, VulkanResultError("op", vk.Success))

	cases := []struct {
		result vk.Result
		want   error
	}{
		{vk.ErrorOutOfDate, core.ErrSurfaceOutdated},
		{vk.Suboptimal, core.ErrSurfaceOutdated},
		{vk.Timeout, core.ErrSurfaceTimeout},
		{vk.NotReady, core.ErrSurfaceTimeout},
		{vk.ErrorSurfaceLost, core.ErrSurfaceLost},
		{vk.ErrorDeviceLost, core.ErrDeviceLost},
		{vk.ErrorOutOfHostMemory, core.ErrOutOfMemory},
		{vk.ErrorOutOfDeviceMemory, core.ErrOutOfMemory},
		{vk.ErrorInitializationFailed, core.ErrUnknown},
	}
	for _, c := range cases {
		err := VulkanResultError("vkQueuePresentKHR", c.result)
		require.Error(t, err)
		assert.True(t, errors.Is(err, c.want), "%s should map to %s", VulkanResultString(c.result, false), c.want)
		assert.Contains(t, err.Error(), "vkQueuePresentKHR")
	}

	assert.True(t, core.IsTransient(VulkanResultError("acquire", vk.ErrorOutOfDate)))
	assert.True(t, core.IsFatal(VulkanResultError("submit", vk.ErrorDeviceLost)))
}

func TestVulkanResultIsSuccess(t *testing.T) {
	assert.True(t, VulkanResultIsSuccess(vk.Success))
	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestSpirvWords(t *testing.T) {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code[0:], 0x07230203)
	binary.LittleEndian.PutUint32(code[4:], 0x00010000)

	words, err := SpirvWords(code)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x07230203), words[0])
	assert.Equal(t, uint32(0x00010000), words[1])

	_, err = SpirvWords(code[:7])
	assert.Error(t, err)
	_, err = SpirvWords(nil)
	assert.Error(t, err)
}

func TestVulkanStrings(t *testing.T) {
	name := make([]byte, 16)
	copy(name, "VK_LAYER_test")
	assert.Equal(t, "VK_LAYER_test", VulkanString(name))
	assert.Equal(t, "full", VulkanString([]byte("full")))

	assert.Equal(t, "abc\x00", VulkanSafeString("abc"))
	assert.Equal(t, "abc\x00", VulkanSafeString("abc\x00"))
	assert.Equal(t, "\x00", VulkanSafeString(""))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])
}

func TestFormatMapping(t *testing.T) {
	for _, f := range []metadata.Format{
		metadata.FormatBGRA8Unorm,
		metadata.FormatBGRA8UnormSRGB,
		metadata.FormatRGBA8Unorm,
		metadata.FormatRGBA8UnormSRGB,
	} {
		assert.Equal(t, f, formatFromVulkan(formatToVulkan(f)), f.String())
	}
	assert.Equal(t, metadata.FormatUndefined, formatFromVulkan(vk.FormatR16g16b16a16Sfloat))

	for _, p := range []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeMailbox, metadata.PresentModeImmediate} {
		got, ok := presentModeFromVulkan(presentModeToVulkan(p))
		assert.True(t, ok)
		assert.Equal(t, p, got)
	}
	_, ok := presentModeFromVulkan(vk.PresentModeFifoRelaxed)
	assert.False(t, ok)
}

func TestSwapchainCapabilities(t *testing.T) {
	support := &VulkanSwapchainSupportInfo{
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatA2b10g10r10UnormPack32, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifoRelaxed, vk.PresentModeFifo, vk.PresentModeMailbox},
	}
	caps := SwapchainCapabilities(support)
	assert.Equal(t, []metadata.Format{metadata.FormatBGRA8Unorm, metadata.FormatBGRA8UnormSRGB}, caps.Formats)
	assert.Equal(t, []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeMailbox}, caps.PresentModes)

	preferred, ok := caps.PreferredFormat()
	require.True(t, ok)
	assert.Equal(t, metadata.FormatBGRA8UnormSRGB, preferred)

	sf, ok := findSurfaceFormat(support.Formats, metadata.FormatBGRA8UnormSRGB)
	require.True(t, ok)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, sf.Format)
	_, ok = findSurfaceFormat(support.Formats, metadata.FormatRGBA8Unorm)
	assert.False(t, ok)
}

func TestVertexInputToVulkan(t *testing.T) {
	layouts := []metadata.VertexLayout{
		{
			Stride: 24,
			Attributes: []metadata.VertexAttribute{
				{Location: 0, Offset: 0, Type: metadata.ShaderAttribTypeFloat32_3},
				{Location: 1, Offset: 12, Type: metadata.ShaderAttribTypeFloat32_3},
			},
		},
		{
			Stride:   12,
			StepMode: metadata.VertexStepModeInstance,
			Attributes: []metadata.VertexAttribute{
				{Location: 2, Offset: 0, Type: metadata.ShaderAttribTypeFloat32_3},
			},
		},
	}
	bindings, attributes, err := vertexInputToVulkan(layouts)
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	require.Len(t, attributes, 3)

	assert.Equal(t, vk.VertexInputRateVertex, bindings[0].InputRate)
	assert.Equal(t, vk.VertexInputRateInstance, bindings[1].InputRate)
	assert.Equal(t, uint32(24), bindings[0].Stride)
	assert.Equal(t, uint32(1), attributes[2].Binding)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attributes[1].Format)

	layouts[0].Attributes[0].Type = metadata.ShaderAttributeType(42)
	_, _, err = vertexInputToVulkan(layouts)
	assert.Error(t, err)
}

func TestEnumMapping(t *testing.T) {
	assert.Equal(t, vk.PrimitiveTopologyLineList, topologyToVulkan(metadata.PrimitiveTopologyLineList))
	assert.Equal(t, vk.PrimitiveTopologyTriangleStrip, topologyToVulkan(metadata.PrimitiveTopologyTriangleStrip))
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, topologyToVulkan(metadata.PrimitiveTopologyTriangleList))

	assert.Equal(t, vk.CompareOpLess, compareOpToVulkan(metadata.CompareOpLess))
	assert.Equal(t, vk.CompareOpLessOrEqual, compareOpToVulkan(metadata.CompareOpLessOrEqual))

	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, descriptorTypeToVulkan(metadata.BindingTypeDepthTexture))
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, descriptorTypeToVulkan(metadata.BindingTypeUniform))

	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), bufferUsageToVulkan(metadata.BufferUsageIndex))
	assert.Equal(t, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), bufferUsageToVulkan(metadata.BufferUsageVertex))

	stages := shaderStagesToVulkan([]metadata.ShaderStage{metadata.ShaderStageVertex, metadata.ShaderStageFragment})
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), stages)
}

func TestSplitPasses(t *testing.T) {
	scene, overlay := splitPasses(nil)
	require.Len(t, scene, 1)
	require.Len(t, overlay, 1)
	assert.Equal(t, metadata.PassKindScene, scene[0].Kind)
	assert.Equal(t, float32(1), scene[0].ClearDepth)
	assert.Equal(t, metadata.PassKindOverlay, overlay[0].Kind)

	lines := &metadata.Pass{Label: "lines", Kind: metadata.PassKindScene}
	models := &metadata.Pass{Label: "models", Kind: metadata.PassKindScene}
	depth := &metadata.Pass{Label: "depth", Kind: metadata.PassKindOverlay}
	scene, overlay = splitPasses([]*metadata.Pass{depth, lines, nil, models})
	assert.Equal(t, []*metadata.Pass{lines, models}, scene)
	assert.Equal(t, []*metadata.Pass{depth}, overlay)
}
