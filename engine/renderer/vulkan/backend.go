package vulkan

import (
	"errors"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

var _ renderer.Backend = (*Backend)(nil)

// SurfaceSource is a window that can hand Vulkan a surface. The glfw
// platform window satisfies it.
type SurfaceSource interface {
	metadata.Window
	RequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}) (uintptr, error)
}

type Options struct {
	ApplicationName string
	// Enables VK_LAYER_KHRONOS_validation and the debug report callback.
	Validation bool
	// How long Acquire waits for an image before reporting a timeout.
	AcquireTimeout time.Duration
}

type Backend struct {
	opts    Options
	context *VulkanContext

	// Framebuffers per swapchain image, rebuilt when the swapchain or the
	// depth texture changes.
	sceneFramebuffers   []*VulkanFramebuffer
	overlayFramebuffers []*VulkanFramebuffer
	framebufferDepth    uint64

	depthGeneration uint64
	config          metadata.SurfaceConfig

	pipelines map[*VulkanPipeline]struct{}
	buffers   map[*VulkanBuffer]struct{}
}

func New(opts Options) *Backend {
	if opts.ApplicationName == "" {
		opts.ApplicationName = "Prism"
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = time.Second
	}
	return &Backend{
		opts: opts,
		context: &VulkanContext{
			Allocator: nil,
		},
		pipelines: make(map[*VulkanPipeline]struct{}),
		buffers:   make(map[*VulkanBuffer]struct{}),
	}
}

func (b *Backend) Name() string { return "vulkan" }

func (b *Backend) Initialize(window metadata.Window) (*metadata.SurfaceCapabilities, error) {
	source, ok := window.(SurfaceSource)
	if !ok {
		return nil, fmt.Errorf("%w: window %T cannot create a vulkan surface", core.ErrInitialization, window)
	}

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("%w: GetInstanceProcAddress is nil", core.ErrInitialization)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, fmt.Errorf("%w: %s", core.ErrInitialization, err)
	}

	if err := b.createInstance(source.RequiredInstanceExtensions()); err != nil {
		return nil, err
	}

	if b.opts.Validation {
		if err := b.createDebugCallback(); err != nil {
			return nil, err
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := source.CreateWindowSurface(b.context.Instance)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return nil, fmt.Errorf("%w: %s", core.ErrInitialization, err)
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	b.context.Device = &VulkanDevice{}
	if err := DeviceCreate(b.context); err != nil {
		core.LogError("Failed to create device!")
		return nil, err
	}

	if err := b.createCommandBuffers(); err != nil {
		return nil, err
	}
	if err := b.createSyncObjects(); err != nil {
		return nil, err
	}

	width, height := window.FramebufferSize()
	b.context.FramebufferWidth = width
	b.context.FramebufferHeight = height

	core.LogInfo("Vulkan renderer initialized successfully.")
	return SwapchainCapabilities(&b.context.Device.SwapchainSupport), nil
}

func (b *Backend) createInstance(windowExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(b.opts.ApplicationName),
		PEngineName:        VulkanSafeString("Prism Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	seen := make(map[string]struct{})
	var requiredExtensions []string
	add := func(names ...string) {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			requiredExtensions = append(requiredExtensions, n)
		}
	}
	add("VK_KHR_surface")
	add(windowExtensions...)
	if runtime.GOOS == "darwin" {
		add(portabilityInstanceExtensions()...)
		createInfo.Flags |= 1 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	}
	if b.opts.Validation {
		add(vk.ExtDebugReportExtensionName)
	}
	core.LogInfo("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if b.opts.Validation {
		layers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkValidationLayers(layers); err != nil {
			return err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &instance); res != vk.Success {
		err := VulkanResultError("vkCreateInstance", res)
		core.LogError(err.Error())
		return fmt.Errorf("%w: %s", core.ErrInitialization, err)
	}
	b.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		return fmt.Errorf("%w: %s", core.ErrInitialization, err)
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return VulkanResultError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return VulkanResultError("vkEnumerateInstanceLayerProperties", res)
	}

	names := make(map[string]struct{}, count)
	for i := range available {
		available[i].Deref()
		names[VulkanString(available[i].LayerName[:])] = struct{}{}
	}
	for _, layer := range required {
		core.LogInfo("Searching for layer: %s...", layer)
		if _, ok := names[layer]; !ok {
			core.LogError("Required validation layer is missing: %s", layer)
			return fmt.Errorf("%w: validation layer %s is missing", core.ErrInitialization, layer)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (b *Backend) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, b.context.Allocator, &dbg); res != vk.Success {
		err := VulkanResultError("vkCreateDebugReportCallback", res)
		core.LogError(err.Error())
		return err
	}
	b.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (b *Backend) createCommandBuffers() error {
	b.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, MaxFramesInFlight)
	for i := range b.context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(b.context, b.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		b.context.GraphicsCommandBuffers[i] = cb
	}
	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (b *Backend) createSyncObjects() error {
	b.context.ImageAvailableSemaphores = make([]vk.Semaphore, MaxFramesInFlight)
	b.context.QueueCompleteSemaphores = make([]vk.Semaphore, MaxFramesInFlight)
	b.context.InFlightFences = make([]*VulkanFence, MaxFramesInFlight)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := 0; i < MaxFramesInFlight; i++ {
		if res := vk.CreateSemaphore(b.context.Device.LogicalDevice, &semaphoreCreateInfo, b.context.Allocator, &b.context.ImageAvailableSemaphores[i]); res != vk.Success {
			return VulkanResultError("vkCreateSemaphore(image available)", res)
		}
		if res := vk.CreateSemaphore(b.context.Device.LogicalDevice, &semaphoreCreateInfo, b.context.Allocator, &b.context.QueueCompleteSemaphores[i]); res != vk.Success {
			return VulkanResultError("vkCreateSemaphore(queue complete)", res)
		}
		// Signaled so the first wait on each frame returns at once.
		f, err := NewFence(b.context, true)
		if err != nil {
			return err
		}
		b.context.InFlightFences[i] = f
	}
	return nil
}

// resetImageAvailable replaces the image available semaphores. An image
// acquired but never presented leaves its semaphore signaled, and the next
// acquire must not signal it again.
func (b *Backend) resetImageAvailable() error {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := range b.context.ImageAvailableSemaphores {
		if b.context.ImageAvailableSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(b.context.Device.LogicalDevice, b.context.ImageAvailableSemaphores[i], b.context.Allocator)
			b.context.ImageAvailableSemaphores[i] = vk.NullSemaphore
		}
		if res := vk.CreateSemaphore(b.context.Device.LogicalDevice, &semaphoreCreateInfo, b.context.Allocator, &b.context.ImageAvailableSemaphores[i]); res != vk.Success {
			return VulkanResultError("vkCreateSemaphore(image available)", res)
		}
	}
	return nil
}

// Configure builds the swapchain for config, replacing the current one. The
// render passes are created on first use; they only depend on the formats,
// so pipelines built against them survive every later reconfiguration.
func (b *Backend) Configure(config metadata.SurfaceConfig) error {
	if b.context.Device == nil || b.context.Device.LogicalDevice == nil {
		return fmt.Errorf("%w: configure before initialize", core.ErrInvalidState)
	}
	if res := vk.DeviceWaitIdle(b.context.Device.LogicalDevice); res != vk.Success {
		return VulkanResultError("vkDeviceWaitIdle", res)
	}

	support := &b.context.Device.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(b.context.Device.PhysicalDevice, b.context.Surface, support); err != nil {
		return err
	}

	var sc *VulkanSwapchain
	var err error
	if b.context.Swapchain == nil {
		sc, err = SwapchainCreate(b.context, config)
	} else {
		sc, err = b.context.Swapchain.SwapchainRecreate(b.context, config)
	}
	b.destroyFramebuffers()
	if err != nil {
		b.context.Swapchain = nil
		return err
	}
	b.context.Swapchain = sc

	colorFormat := sc.ImageFormat.Format
	if b.context.ScenePass != nil && b.context.ScenePass.ColorFormat != colorFormat {
		if len(b.pipelines) > 0 {
			return fmt.Errorf("%w: surface format changed with live pipelines", core.ErrInvalidState)
		}
		b.destroyRenderPasses()
	}
	if b.context.ScenePass == nil {
		if b.context.ScenePass, err = RenderpassCreate(b.context, metadata.PassKindScene, colorFormat, b.context.Device.DepthFormat); err != nil {
			return err
		}
		if b.context.OverlayPass, err = RenderpassCreate(b.context, metadata.PassKindOverlay, colorFormat, b.context.Device.DepthFormat); err != nil {
			return err
		}
	}

	// Nothing is in flight after the idle wait above.
	b.context.ImagesInFlight = make([]*VulkanFence, len(sc.Images))
	if err := b.resetImageAvailable(); err != nil {
		return err
	}
	b.config = config
	core.LogDebug("surface configured %dx%d (%s, %s)", config.Width, config.Height, config.Format, config.PresentMode)
	return nil
}

func (b *Backend) CreateDepthTexture(label string, width, height uint32) (metadata.DepthTexture, error) {
	if b.context.Device == nil || b.context.Device.LogicalDevice == nil {
		return nil, fmt.Errorf("%w: depth texture before initialize", core.ErrInvalidState)
	}
	b.depthGeneration++
	return NewDepthTexture(b.context, label, width, height, b.depthGeneration)
}

func (b *Backend) Acquire() (*metadata.Frame, error) {
	if b.context.Swapchain == nil {
		return nil, fmt.Errorf("%w: no swapchain", core.ErrSurfaceOutdated)
	}
	current := b.context.CurrentFrame

	// The fence frees up once the GPU is done with this frame's resources.
	if err := b.context.InFlightFences[current].FenceWait(b.context, vk.MaxUint64); err != nil {
		return nil, err
	}

	imageIndex, res := b.context.Swapchain.SwapchainAcquireNextImageIndex(
		b.context,
		uint64(b.opts.AcquireTimeout.Nanoseconds()),
		b.context.ImageAvailableSemaphores[current],
		vk.NullFence)
	switch res {
	case vk.Success, vk.Suboptimal:
	default:
		return nil, VulkanResultError("vkAcquireNextImageKHR", res)
	}
	b.context.ImageIndex = imageIndex

	return &metadata.Frame{
		ImageIndex: imageIndex,
		Width:      b.context.Swapchain.Extent.Width,
		Height:     b.context.Swapchain.Extent.Height,
		Suboptimal: res == vk.Suboptimal,
	}, nil
}

func (b *Backend) Record(frame *metadata.Frame, depth metadata.DepthTexture, passes []*metadata.Pass) error {
	dt, ok := depth.(*DepthTexture)
	if !ok || dt == nil || dt.Image == nil {
		return fmt.Errorf("%w: depth texture %T is not a vulkan depth texture", core.ErrInvalidState, depth)
	}
	if dt.Width() != frame.Width || dt.Height() != frame.Height {
		return fmt.Errorf("%w: depth %dx%d, surface %dx%d", core.ErrDepthMismatch, dt.Width(), dt.Height(), frame.Width, frame.Height)
	}
	if int(frame.ImageIndex) >= len(b.context.Swapchain.Images) {
		return fmt.Errorf("%w: image index %d out of range", core.ErrInvalidState, frame.ImageIndex)
	}
	if b.sceneFramebuffers == nil || b.framebufferDepth != dt.Generation() {
		if err := b.regenerateFramebuffers(dt); err != nil {
			return err
		}
	}

	// Make sure the previous frame is not using this image.
	if fence := b.context.ImagesInFlight[frame.ImageIndex]; fence != nil {
		if err := fence.FenceWait(b.context, vk.MaxUint64); err != nil {
			return err
		}
	}
	current := b.context.CurrentFrame
	b.context.ImagesInFlight[frame.ImageIndex] = b.context.InFlightFences[current]

	commandBuffer := b.context.GraphicsCommandBuffers[current]
	if err := commandBuffer.Reset(); err != nil {
		return err
	}
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(frame.Width),
		Height:   float32(frame.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: frame.Width, Height: frame.Height},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	// Every frame runs at least one scene pass, to clear, and one overlay
	// pass, to move the image into the present layout.
	scene, overlay := splitPasses(passes)
	for _, pass := range scene {
		if err := b.recordPass(commandBuffer, b.context.ScenePass, b.sceneFramebuffers[frame.ImageIndex], frame, dt, pass); err != nil {
			return err
		}
	}
	for _, pass := range overlay {
		if err := b.recordPass(commandBuffer, b.context.OverlayPass, b.overlayFramebuffers[frame.ImageIndex], frame, dt, pass); err != nil {
			return err
		}
	}
	return commandBuffer.End()
}

func splitPasses(passes []*metadata.Pass) (scene, overlay []*metadata.Pass) {
	for _, p := range passes {
		if p == nil {
			continue
		}
		if p.Kind == metadata.PassKindScene {
			scene = append(scene, p)
		} else {
			overlay = append(overlay, p)
		}
	}
	if len(scene) == 0 {
		scene = []*metadata.Pass{{Label: "clear", Kind: metadata.PassKindScene, ClearDepth: 1}}
	}
	if len(overlay) == 0 {
		overlay = []*metadata.Pass{{Label: "present", Kind: metadata.PassKindOverlay}}
	}
	return scene, overlay
}

func (b *Backend) recordPass(cb *VulkanCommandBuffer, rp *VulkanRenderpass, fb *VulkanFramebuffer, frame *metadata.Frame, depth *DepthTexture, pass *metadata.Pass) error {
	rp.RenderpassBegin(cb, fb.Handle, frame.Width, frame.Height, pass)
	for i, draw := range pass.Draws {
		if err := b.recordDraw(cb, pass, draw, depth); err != nil {
			rp.RenderpassEnd(cb)
			return fmt.Errorf("pass %s draw %d: %w", pass.Label, i, err)
		}
	}
	rp.RenderpassEnd(cb)
	return nil
}

func (b *Backend) recordDraw(cb *VulkanCommandBuffer, pass *metadata.Pass, draw metadata.Draw, depth *DepthTexture) error {
	pipeline, ok := draw.Pipeline.(*VulkanPipeline)
	if !ok || pipeline == nil {
		return fmt.Errorf("%w: pipeline %T is not a vulkan pipeline", core.ErrInvalidDescriptor, draw.Pipeline)
	}
	desc := pipeline.Descriptor()
	if desc.Pass != pass.Kind {
		return fmt.Errorf("%w: %s pipeline %s drawn in %s pass", core.ErrInvalidDescriptor, desc.Pass, pipeline.Label(), pass.Kind)
	}
	buffers := draw.Buffers
	if buffers == nil {
		return fmt.Errorf("%w: draw without buffers", core.ErrInvalidDescriptor)
	}

	uniform, err := asVulkanBuffer(buffers.Uniform)
	if err != nil {
		return err
	}
	if uniform == nil && desc.HasBinding(metadata.BindingTypeUniform) {
		return fmt.Errorf("%w: pipeline %s needs a uniform buffer", core.ErrInvalidDescriptor, pipeline.Label())
	}

	current := b.context.CurrentFrame
	pipeline.Bind(cb, vk.PipelineBindPointGraphics)
	if pipeline.Descriptors != nil && len(pipeline.Descriptors.Bindings) > 0 {
		pipeline.Descriptors.Update(b.context, current, uniform, depth)
		vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, pipeline.PipelineLayout, 0, 1,
			[]vk.DescriptorSet{pipeline.Descriptors.Sets[current]}, 0, nil)
	}

	if len(desc.Layouts) > 0 {
		handles := make([]vk.Buffer, len(desc.Layouts))
		offsets := make([]vk.DeviceSize, len(desc.Layouts))
		for i, layout := range desc.Layouts {
			source := buffers.Vertex
			if layout.StepMode == metadata.VertexStepModeInstance {
				source = buffers.Instance
			}
			vb, err := asVulkanBuffer(source)
			if err != nil {
				return err
			}
			if vb == nil {
				return fmt.Errorf("%w: pipeline %s is missing vertex buffer %d", core.ErrInvalidDescriptor, pipeline.Label(), i)
			}
			handles[i] = vb.Handle
		}
		vk.CmdBindVertexBuffers(cb.Handle, 0, uint32(len(handles)), handles, offsets)
	}

	instances := buffers.InstanceCount
	if instances == 0 {
		instances = 1
	}
	index, err := asVulkanBuffer(buffers.Index)
	if err != nil {
		return err
	}
	if index != nil {
		vk.CmdBindIndexBuffer(cb.Handle, index.Handle, 0, vk.IndexTypeUint16)
		vk.CmdDrawIndexed(cb.Handle, buffers.IndexCount, instances, 0, 0, 0)
		return nil
	}
	vk.CmdDraw(cb.Handle, buffers.VertexCount, instances, 0, 0)
	return nil
}

func asVulkanBuffer(buffer metadata.Buffer) (*VulkanBuffer, error) {
	if buffer == nil {
		return nil, nil
	}
	vb, ok := buffer.(*VulkanBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: buffer %T is not a vulkan buffer", core.ErrInvalidDescriptor, buffer)
	}
	return vb, nil
}

func (b *Backend) Submit(frame *metadata.Frame) error {
	current := b.context.CurrentFrame
	commandBuffer := b.context.GraphicsCommandBuffers[current]

	if err := b.context.InFlightFences[current].FenceReset(b.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer.Handle},
		// Signaled when the queue is done, waited on by present.
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.context.QueueCompleteSemaphores[current]},
		// Color writes wait until the image is actually available.
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{b.context.ImageAvailableSemaphores[current]},
		PWaitDstStageMask:  []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}
	if res := vk.QueueSubmit(b.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, b.context.InFlightFences[current].Handle); res != vk.Success {
		err := VulkanResultError("vkQueueSubmit", res)
		core.LogError(err.Error())
		return err
	}
	commandBuffer.UpdateSubmitted()
	return nil
}

func (b *Backend) Present(frame *metadata.Frame) error {
	current := b.context.CurrentFrame
	res := b.context.Swapchain.SwapchainPresent(
		b.context,
		b.context.Device.PresentQueue,
		b.context.QueueCompleteSemaphores[current],
		frame.ImageIndex)

	// The submit already consumed this frame's semaphores.
	b.context.CurrentFrame = (current + 1) % MaxFramesInFlight

	if res == vk.Success {
		return nil
	}
	return VulkanResultError("vkQueuePresentKHR", res)
}

func (b *Backend) regenerateFramebuffers(depth *DepthTexture) error {
	if err := b.context.WaitInFlight(); err != nil {
		return err
	}
	b.destroyFramebuffers()

	sc := b.context.Swapchain
	width, height := sc.Extent.Width, sc.Extent.Height
	b.sceneFramebuffers = make([]*VulkanFramebuffer, len(sc.Views))
	b.overlayFramebuffers = make([]*VulkanFramebuffer, len(sc.Views))
	for i, view := range sc.Views {
		fb, err := FramebufferCreate(b.context, b.context.ScenePass, width, height, []vk.ImageView{view, depth.Image.View})
		if err != nil {
			b.destroyFramebuffers()
			return err
		}
		b.sceneFramebuffers[i] = fb

		fb, err = FramebufferCreate(b.context, b.context.OverlayPass, width, height, []vk.ImageView{view})
		if err != nil {
			b.destroyFramebuffers()
			return err
		}
		b.overlayFramebuffers[i] = fb
	}
	b.framebufferDepth = depth.Generation()
	core.LogDebug("framebuffers regenerated for depth generation %d", b.framebufferDepth)
	return nil
}

func (b *Backend) destroyFramebuffers() {
	for _, fb := range b.sceneFramebuffers {
		if fb != nil {
			fb.Destroy(b.context)
		}
	}
	for _, fb := range b.overlayFramebuffers {
		if fb != nil {
			fb.Destroy(b.context)
		}
	}
	b.sceneFramebuffers = nil
	b.overlayFramebuffers = nil
	b.framebufferDepth = 0
}

func (b *Backend) destroyRenderPasses() {
	if b.context.ScenePass != nil {
		b.context.ScenePass.RenderpassDestroy(b.context)
		b.context.ScenePass = nil
	}
	if b.context.OverlayPass != nil {
		b.context.OverlayPass.RenderpassDestroy(b.context)
		b.context.OverlayPass = nil
	}
}

func (b *Backend) CreatePipeline(label string, desc *metadata.PipelineDescriptor) (metadata.Pipeline, error) {
	renderpass := b.context.ScenePass
	if desc.Pass == metadata.PassKindOverlay {
		renderpass = b.context.OverlayPass
	}
	if renderpass == nil {
		return nil, fmt.Errorf("%w: pipeline %s created before the surface was configured", core.ErrInvalidState, label)
	}
	p, err := NewPipelineFromDescriptor(b.context, renderpass, label, desc)
	if err != nil {
		return nil, err
	}
	b.pipelines[p] = struct{}{}
	return p, nil
}

func (b *Backend) DestroyPipeline(pipeline metadata.Pipeline) {
	p, ok := pipeline.(*VulkanPipeline)
	if !ok || p == nil {
		return
	}
	if _, live := b.pipelines[p]; !live {
		return
	}
	if err := b.context.WaitInFlight(); err != nil {
		core.LogWarn("destroying pipeline %s: %s", p.Label(), err)
	}
	p.Destroy(b.context)
	delete(b.pipelines, p)
}

func (b *Backend) CreateBuffer(label string, usage metadata.BufferUsage, data []byte) (metadata.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: buffer %s is empty", core.ErrInvalidDescriptor, label)
	}
	buf, err := NewVulkanBuffer(b.context, label, usage, data)
	if err != nil {
		return nil, err
	}
	b.buffers[buf] = struct{}{}
	return buf, nil
}

// WriteBuffer waits for the frames in flight before copying, since they may
// still read the buffer.
func (b *Backend) WriteBuffer(buffer metadata.Buffer, offset uint64, data []byte) error {
	vb, err := asVulkanBuffer(buffer)
	if err != nil {
		return err
	}
	if _, live := b.buffers[vb]; !live || vb == nil {
		return fmt.Errorf("%w: write to a destroyed buffer", core.ErrInvalidState)
	}
	if offset+uint64(len(data)) > vb.Size() {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer %s of %d bytes",
			core.ErrInvalidDescriptor, len(data), offset, vb.Label(), vb.Size())
	}
	if err := b.context.WaitInFlight(); err != nil {
		return err
	}
	vb.Write(offset, data)
	return nil
}

func (b *Backend) DestroyBuffer(buffer metadata.Buffer) {
	vb, err := asVulkanBuffer(buffer)
	if err != nil || vb == nil {
		return
	}
	if _, live := b.buffers[vb]; !live {
		return
	}
	if err := b.context.WaitInFlight(); err != nil {
		core.LogWarn("destroying buffer %s: %s", vb.Label(), err)
	}
	vb.Destroy(b.context)
	delete(b.buffers, vb)
}

func (b *Backend) WaitIdle() error {
	if b.context.Device == nil || b.context.Device.LogicalDevice == nil {
		return nil
	}
	if res := vk.DeviceWaitIdle(b.context.Device.LogicalDevice); res != vk.Success {
		return VulkanResultError("vkDeviceWaitIdle", res)
	}
	return nil
}

// Shutdown destroys everything in the opposite order of creation. It copes
// with a partially initialized backend and may be called more than once.
func (b *Backend) Shutdown() error {
	var errs []error
	device := b.context.Device
	if device != nil && device.LogicalDevice != nil {
		if err := b.WaitIdle(); err != nil {
			errs = append(errs, err)
		}

		for p := range b.pipelines {
			p.Destroy(b.context)
		}
		b.pipelines = make(map[*VulkanPipeline]struct{})
		for buf := range b.buffers {
			buf.Destroy(b.context)
		}
		b.buffers = make(map[*VulkanBuffer]struct{})

		b.destroyFramebuffers()

		for i := range b.context.ImageAvailableSemaphores {
			if b.context.ImageAvailableSemaphores[i] != vk.NullSemaphore {
				vk.DestroySemaphore(device.LogicalDevice, b.context.ImageAvailableSemaphores[i], b.context.Allocator)
				b.context.ImageAvailableSemaphores[i] = vk.NullSemaphore
			}
		}
		for i := range b.context.QueueCompleteSemaphores {
			if b.context.QueueCompleteSemaphores[i] != vk.NullSemaphore {
				vk.DestroySemaphore(device.LogicalDevice, b.context.QueueCompleteSemaphores[i], b.context.Allocator)
				b.context.QueueCompleteSemaphores[i] = vk.NullSemaphore
			}
		}
		for _, f := range b.context.InFlightFences {
			if f != nil {
				f.FenceDestroy(b.context)
			}
		}
		b.context.InFlightFences = nil
		b.context.ImagesInFlight = nil

		for _, cb := range b.context.GraphicsCommandBuffers {
			if cb != nil {
				cb.Free(b.context, device.GraphicsCommandPool)
			}
		}
		b.context.GraphicsCommandBuffers = nil

		b.destroyRenderPasses()

		if b.context.Swapchain != nil {
			b.context.Swapchain.SwapchainDestroy(b.context)
			b.context.Swapchain = nil
		}
	}

	if device != nil {
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(b.context)
		b.context.Device = nil
	}

	if b.context.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(b.context.Instance, b.context.Surface, b.context.Allocator)
		b.context.Surface = vk.NullSurface
	}

	if b.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(b.context.Instance, b.context.debugMessenger, b.context.Allocator)
		b.context.debugMessenger = vk.NullDebugReportCallback
	}

	if b.context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(b.context.Instance, b.context.Allocator)
		b.context.Instance = nil
	}
	return errors.Join(errs...)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
