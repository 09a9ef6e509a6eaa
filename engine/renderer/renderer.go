package renderer

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type Options struct {
	PresentMode metadata.PresentMode
	ClearColor  metadata.Color
}

// SurfaceManager keeps the presentable surface and its depth attachment
// consistent with the window size and drives one frame per RenderPasses call.
type SurfaceManager struct {
	backend Backend
	opts    Options

	state  State
	config metadata.SurfaceConfig
	depth  metadata.DepthTexture

	pendingWidth  uint32
	pendingHeight uint32

	frames  uint64
	retries uint64
}

func NewSurfaceManager(backend Backend, opts Options) *SurfaceManager {
	return &SurfaceManager{
		backend: backend,
		opts:    opts,
		state:   StateUninitialized,
	}
}

func (m *SurfaceManager) State() State                   { return m.state }
func (m *SurfaceManager) Config() metadata.SurfaceConfig { return m.config }
func (m *SurfaceManager) Depth() metadata.DepthTexture   { return m.depth }
func (m *SurfaceManager) Backend() Backend               { return m.backend }

// Frames is the number of presented frames.
func (m *SurfaceManager) Frames() uint64 { return m.frames }

// Retries is the number of reconfigure-and-retry cycles taken after a failed acquire.
func (m *SurfaceManager) Retries() uint64 { return m.retries }

// Initialize negotiates a format and present mode for window, configures the
// surface and creates a depth attachment at the window's size.
func (m *SurfaceManager) Initialize(window metadata.Window) error {
	if m.state != StateUninitialized {
		return fmt.Errorf("%w: initialize called while %s", core.ErrInvalidState, m.state)
	}

	caps, err := m.backend.Initialize(window)
	if err != nil {
		core.LogError("failed to initialize the %s backend: %s", m.backend.Name(), err.Error())
		return fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}

	format, ok := caps.PreferredFormat()
	if !ok {
		core.LogError(core.ErrNoSurfaceFormat.Error())
		return fmt.Errorf("%w: %w", core.ErrInitialization, core.ErrNoSurfaceFormat)
	}
	mode, ok := caps.PresentModeOr(m.opts.PresentMode)
	if !ok {
		core.LogError("surface reports no present modes")
		return fmt.Errorf("%w: %w", core.ErrInitialization, core.ErrNoSurfaceFormat)
	}
	if mode != m.opts.PresentMode {
		core.LogWarn("present mode %s is not supported, using %s", m.opts.PresentMode, mode)
	}

	width, height := window.FramebufferSize()
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: window has a degenerate size %dx%d", core.ErrInitialization, width, height)
	}

	m.config = metadata.SurfaceConfig{
		Format:      format,
		PresentMode: mode,
		Width:       width,
		Height:      height,
	}
	if _, err := m.configure(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}
	m.state = StateReady

	core.LogInfo("surface ready: %s %s %dx%d", format, mode, width, height)
	return nil
}

// MarkStale records a window resize. The surface is reconfigured before the
// next frame is acquired.
func (m *SurfaceManager) MarkStale(width, height uint32) {
	if m.state != StateReady && m.state != StateStale {
		return
	}
	m.pendingWidth, m.pendingHeight = width, height
	m.state = StateStale
}

// HandleResize reconfigures the surface and recreates the depth attachment.
// A zero dimension is a minimized window and leaves everything untouched.
func (m *SurfaceManager) HandleResize(width, height uint32) error {
	switch m.state {
	case StateDestroyed:
		return core.ErrSurfaceDestroyed
	case StateUninitialized:
		return fmt.Errorf("%w: resize before initialize", core.ErrInvalidState)
	}
	if width == 0 || height == 0 {
		core.LogDebug("ignoring resize to %dx%d", width, height)
		return nil
	}

	prev := m.config
	m.config.Width, m.config.Height = width, height
	if applied, err := m.configure(); err != nil {
		if !applied {
			m.config = prev
			return err
		}
		// the backend runs at the new size without a usable depth attachment
		m.pendingWidth, m.pendingHeight = width, height
		m.state = StateStale
		return err
	}
	m.pendingWidth, m.pendingHeight = 0, 0
	m.state = StateReady

	core.LogDebug("surface resized to %dx%d", width, height)
	return nil
}

// configure applies m.config and recreates the depth attachment. applied
// reports whether the backend accepted the config; once it has, the old depth
// attachment is gone even if creating the new one fails.
func (m *SurfaceManager) configure() (applied bool, err error) {
	if err := m.backend.Configure(m.config); err != nil {
		core.LogError("failed to configure surface: %s", err.Error())
		return false, fmt.Errorf("configure surface: %w", err)
	}

	if m.depth != nil {
		m.depth.Destroy()
		m.depth = nil
	}
	depth, err := m.backend.CreateDepthTexture(core.NewLabel("depth-texture"), m.config.Width, m.config.Height)
	if err != nil {
		core.LogError("failed to create depth texture: %s", err.Error())
		return true, fmt.Errorf("create depth texture: %w", err)
	}
	if depth.Width() != m.config.Width || depth.Height() != m.config.Height {
		depth.Destroy()
		return true, fmt.Errorf("%w: depth %dx%d, surface %dx%d", core.ErrDepthMismatch,
			depth.Width(), depth.Height(), m.config.Width, m.config.Height)
	}
	m.depth = depth
	return true, nil
}

// reconcile applies the pending window size. A degenerate pending size keeps
// the current one so the depth attachment stays valid.
func (m *SurfaceManager) reconcile() error {
	width, height := m.pendingWidth, m.pendingHeight
	if width == 0 || height == 0 {
		width, height = m.config.Width, m.config.Height
	}
	return m.HandleResize(width, height)
}

// RenderFrame renders a single scene pass that clears color and depth and
// draws buffers with pipeline.
func (m *SurfaceManager) RenderFrame(pipeline metadata.Pipeline, buffers *metadata.FrameBuffers) error {
	return m.RenderPasses([]*metadata.Pass{
		{
			Label:      "main",
			Kind:       metadata.PassKindScene,
			ClearColor: m.opts.ClearColor,
			ClearDepth: 1.0,
			Draws:      []metadata.Draw{{Pipeline: pipeline, Buffers: buffers}},
		},
	})
}

// RenderPasses acquires the next image, records passes, submits and presents
// it. An outdated or timed out acquire is retried once after reconfiguring.
// Device lost and out of memory errors are returned and end the render loop.
func (m *SurfaceManager) RenderPasses(passes []*metadata.Pass) error {
	switch m.state {
	case StateDestroyed:
		return core.ErrSurfaceDestroyed
	case StateUninitialized:
		return fmt.Errorf("%w: render before initialize", core.ErrInvalidState)
	case StateStale:
		if err := m.reconcile(); err != nil {
			return err
		}
	}

	frame, err := m.backend.Acquire()
	if err != nil {
		if !core.IsTransient(err) {
			core.LogError("failed to acquire next image: %s", err.Error())
			return fmt.Errorf("acquire: %w", err)
		}
		core.LogWarn("acquire failed (%s), reconfiguring surface and retrying", err.Error())
		m.retries++
		if err := m.HandleResize(m.config.Width, m.config.Height); err != nil {
			return err
		}
		frame, err = m.backend.Acquire()
		if err != nil {
			core.LogError("failed to acquire next image after reconfigure: %s", err.Error())
			return fmt.Errorf("acquire after reconfigure: %w", err)
		}
	}

	// An image that is acquired but never presented is only released by
	// reconfiguring, so a failed record or submit leaves the surface stale.
	if err := m.backend.Record(frame, m.depth, passes); err != nil {
		core.LogError("failed to record frame: %s", err.Error())
		m.MarkStale(m.config.Width, m.config.Height)
		return fmt.Errorf("record: %w", err)
	}
	if err := m.backend.Submit(frame); err != nil {
		core.LogError("failed to submit frame: %s", err.Error())
		m.MarkStale(m.config.Width, m.config.Height)
		return fmt.Errorf("submit: %w", err)
	}
	if err := m.backend.Present(frame); err != nil {
		if core.IsTransient(err) {
			// the image was not shown; reconfigure before the next acquire
			core.LogWarn("present failed (%s), surface marked stale", err.Error())
			m.MarkStale(m.config.Width, m.config.Height)
			return nil
		}
		core.LogError("failed to present frame: %s", err.Error())
		return fmt.Errorf("present: %w", err)
	}
	m.frames++

	if frame.Suboptimal {
		m.MarkStale(m.config.Width, m.config.Height)
	}
	return nil
}

func (m *SurfaceManager) CreatePipeline(desc *metadata.PipelineDescriptor) (metadata.Pipeline, error) {
	if m.state == StateUninitialized || m.state == StateDestroyed {
		return nil, fmt.Errorf("%w: create pipeline while %s", core.ErrInvalidState, m.state)
	}
	if err := ValidatePipelineDescriptor(desc); err != nil {
		return nil, err
	}
	return m.backend.CreatePipeline(core.NewLabel(desc.Name), desc)
}

func (m *SurfaceManager) DestroyPipeline(pipeline metadata.Pipeline) {
	if pipeline != nil && m.state != StateDestroyed {
		m.backend.DestroyPipeline(pipeline)
	}
}

func (m *SurfaceManager) CreateBuffer(name string, usage metadata.BufferUsage, data []byte) (metadata.Buffer, error) {
	if m.state == StateUninitialized || m.state == StateDestroyed {
		return nil, fmt.Errorf("%w: create buffer while %s", core.ErrInvalidState, m.state)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: buffer %s has no data", core.ErrInvalidDescriptor, name)
	}
	return m.backend.CreateBuffer(core.NewLabel(name), usage, data)
}

func (m *SurfaceManager) WriteBuffer(buffer metadata.Buffer, offset uint64, data []byte) error {
	if m.state == StateDestroyed {
		return core.ErrSurfaceDestroyed
	}
	if offset+uint64(len(data)) > buffer.Size() {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer %s of %d bytes",
			core.ErrInvalidDescriptor, len(data), offset, buffer.Label(), buffer.Size())
	}
	return m.backend.WriteBuffer(buffer, offset, data)
}

func (m *SurfaceManager) DestroyBuffer(buffer metadata.Buffer) {
	if buffer != nil && m.state != StateDestroyed {
		m.backend.DestroyBuffer(buffer)
	}
}

// Destroy waits for the device, releases the depth attachment and shuts the
// backend down. Calling it again is a no-op.
func (m *SurfaceManager) Destroy() error {
	if m.state == StateDestroyed {
		return nil
	}
	if m.state == StateUninitialized {
		m.state = StateDestroyed
		return m.backend.Shutdown()
	}

	if err := m.backend.WaitIdle(); err != nil {
		core.LogWarn("wait idle failed during shutdown: %s", err.Error())
	}
	if m.depth != nil {
		m.depth.Destroy()
		m.depth = nil
	}
	m.state = StateDestroyed
	if err := m.backend.Shutdown(); err != nil {
		core.LogError("failed to shut down the %s backend: %s", m.backend.Name(), err.Error())
		return err
	}
	core.LogInfo("surface destroyed after %d frames", m.frames)
	return nil
}

// ValidatePipelineDescriptor checks the invariants every backend relies on.
func ValidatePipelineDescriptor(desc *metadata.PipelineDescriptor) error {
	if desc == nil {
		return fmt.Errorf("%w: nil descriptor", core.ErrInvalidDescriptor)
	}
	if len(desc.Vertex.Code) == 0 || len(desc.Fragment.Code) == 0 {
		return fmt.Errorf("%w: pipeline %s needs vertex and fragment code", core.ErrInvalidDescriptor, desc.Name)
	}
	if desc.Vertex.Stage != metadata.ShaderStageVertex || desc.Fragment.Stage != metadata.ShaderStageFragment {
		return fmt.Errorf("%w: pipeline %s has mismatched shader stages", core.ErrInvalidDescriptor, desc.Name)
	}
	if desc.Pass == metadata.PassKindOverlay && (desc.DepthTest || desc.DepthWrite) {
		return fmt.Errorf("%w: overlay pipeline %s cannot use the depth test", core.ErrInvalidDescriptor, desc.Name)
	}
	if desc.Pass == metadata.PassKindScene && desc.HasBinding(metadata.BindingTypeDepthTexture) {
		return fmt.Errorf("%w: scene pipeline %s cannot sample the depth it writes", core.ErrInvalidDescriptor, desc.Name)
	}
	for _, l := range desc.Layouts {
		for _, a := range l.Attributes {
			if a.Offset+a.Type.Size() > l.Stride {
				return fmt.Errorf("%w: pipeline %s attribute %d overflows stride %d",
					core.ErrInvalidDescriptor, desc.Name, a.Location, l.Stride)
			}
		}
	}
	return nil
}
